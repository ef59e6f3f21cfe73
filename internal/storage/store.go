// Package storage is the persistence DAO: transactional, indexed storage
// of sessions, messages, tool executions, and compressed contexts over
// an embedded SQLite database with a single-writer discipline. Grounded
// in the teacher's internal/sessions/cockroach.go (prepared-statement
// struct, constructor that pings before returning, transactional
// multi-row mutation pattern), adapted from Postgres $N placeholders and
// ON CONFLICT upserts to SQLite's ? placeholders and INSERT OR IGNORE /
// manual read-then-write upserts.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gtplanner/core/pkg/models"
)

// ErrDataCorruption is returned by GetActiveCompressedContext when a
// session exists but has no active compressed_context row — per §4.6,
// this indicates corruption, not an empty session (an empty session
// always carries a v1 row).
var ErrDataCorruption = errors.New("storage: session has no active compressed_context row")

// ErrNotFound is returned when a lookup by id/key finds nothing.
var ErrNotFound = errors.New("storage: not found")

// Store is the persistence DAO. One Store per process; Open already
// constrains MaxOpenConns to 1 so every write goes through the same
// connection in order, honoring the single-writer invariant.
type Store struct {
	db *sql.DB
}

// New wraps db, applying DDL (idempotent) and inserting the
// schema_version row if absent.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("storage: apply schema: %w", err)
		}
	}
	s := &Store{db: db}
	if err := s.ensureSchemaVersion(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchemaVersion(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO database_metadata(key, value, updated_at) VALUES ('schema_version', ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		schemaVersion, nowRFC3339(),
	)
	return err
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func newID() string { return uuid.NewString() }

// CreateSession inserts a session row and a v1 compressed_context row
// (empty messages, empty summary, is_active=true, ratio=1.0) in a single
// transaction, per §4.6.
func (s *Store) CreateSession(ctx context.Context, title string) (*models.Session, error) {
	session := &models.Session{
		ID:        newID(),
		Title:     title,
		Status:    models.SessionActive,
		Metadata:  map[string]any{},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		meta, _ := json.Marshal(session.Metadata)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions(session_id, title, created_at, updated_at, project_stage, total_messages, total_tokens, metadata, status)
			 VALUES (?, ?, ?, ?, '', 0, 0, ?, ?)`,
			session.ID, session.Title, iso(session.CreatedAt), iso(session.UpdatedAt), string(meta), string(session.Status),
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		ctxRow := models.CompressedContext{
			ID:                   newID(),
			SessionID:            session.ID,
			CompressionVersion:   1,
			CreatedAt:            time.Now().UTC(),
			Messages:             []models.Message{},
			ToolExecutionResults: map[string]any{},
			CompressionRatio:     1.0,
			IsActive:             true,
		}
		return insertCompressedContext(ctx, tx, ctxRow)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func insertCompressedContext(ctx context.Context, tx *sql.Tx, c models.CompressedContext) error {
	messages, _ := json.Marshal(c.Messages)
	decisions, _ := json.Marshal(c.KeyDecisions)
	results, _ := json.Marshal(c.ToolExecutionResults)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO compressed_context(
			context_id, session_id, compression_version, created_at,
			original_message_count, compressed_message_count,
			original_token_count, compressed_token_count, compression_ratio,
			compressed_messages, summary, key_decisions, tool_execution_results, is_active
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SessionID, c.CompressionVersion, iso(c.CreatedAt),
		c.OriginalMessageCount, c.CompressedMessageCount,
		c.OriginalTokenCount, c.CompressedTokenCount, c.CompressionRatio,
		string(messages), c.Summary, string(decisions), string(results), boolToInt(c.IsActive),
	)
	if err != nil {
		return fmt.Errorf("insert compressed_context: %w", err)
	}
	return nil
}

// GetSession reads a session row by id.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, title, created_at, updated_at, project_stage, total_messages, total_tokens, metadata, status
		 FROM sessions WHERE session_id = ?`, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var sess models.Session
	var createdAt, updatedAt, metaJSON string
	err := row.Scan(&sess.ID, &sess.Title, &createdAt, &updatedAt, &sess.ProjectStage,
		&sess.TotalMessages, &sess.TotalTokens, &metaJSON, &sess.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	_ = json.Unmarshal([]byte(metaJSON), &sess.Metadata)
	return &sess, nil
}

// GetActiveCompressedContext reads the single is_active=true row for a
// session. Returns ErrDataCorruption if none exists.
func (s *Store) GetActiveCompressedContext(ctx context.Context, sessionID string) (*models.CompressedContext, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT context_id, session_id, compression_version, created_at,
			original_message_count, compressed_message_count,
			original_token_count, compressed_token_count, compression_ratio,
			compressed_messages, summary, key_decisions, tool_execution_results, is_active
		 FROM compressed_context WHERE session_id = ? AND is_active = 1`, sessionID)
	cc, err := scanCompressedContext(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDataCorruption
	}
	return cc, err
}

func scanCompressedContext(row *sql.Row) (*models.CompressedContext, error) {
	var cc models.CompressedContext
	var createdAt, messagesJSON, decisionsJSON, resultsJSON string
	var isActive int
	if err := row.Scan(&cc.ID, &cc.SessionID, &cc.CompressionVersion, &createdAt,
		&cc.OriginalMessageCount, &cc.CompressedMessageCount,
		&cc.OriginalTokenCount, &cc.CompressedTokenCount, &cc.CompressionRatio,
		&messagesJSON, &cc.Summary, &decisionsJSON, &resultsJSON, &isActive); err != nil {
		return nil, err
	}
	cc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	_ = json.Unmarshal([]byte(messagesJSON), &cc.Messages)
	_ = json.Unmarshal([]byte(decisionsJSON), &cc.KeyDecisions)
	_ = json.Unmarshal([]byte(resultsJSON), &cc.ToolExecutionResults)
	cc.IsActive = isActive != 0
	return &cc, nil
}

// AppendMessage writes msg to the messages table and mirror-writes a
// shaped copy into the active compressed_context's message list,
// incrementing its counts — both in one transaction, per §4.6.
func (s *Store) AppendMessage(ctx context.Context, msg models.Message) error {
	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertMessage(ctx, tx, msg); err != nil {
			return err
		}
		return mirrorIntoActiveContext(ctx, tx, msg)
	})
}

// AppendMessages writes every message in msgs — in order — to the
// messages table and mirrors each into the active compressed_context,
// all in a single transaction. Per §4.6, folding an orchestrator
// cycle's delta back into a session (the user's turn followed by
// result.new_messages) must commit or abort as one unit rather than
// leaving a partial prefix committed on a mid-loop failure. Assigns a
// fresh ID/Timestamp to each message in place, so the caller can read
// IDs back afterward (e.g. to index message content for search).
func (s *Store) AppendMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range msgs {
			if msgs[i].ID == "" {
				msgs[i].ID = newID()
			}
			if msgs[i].Timestamp.IsZero() {
				msgs[i].Timestamp = time.Now().UTC()
			}
			if err := insertMessage(ctx, tx, msgs[i]); err != nil {
				return err
			}
			if err := mirrorIntoActiveContext(ctx, tx, msgs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertMessage(ctx context.Context, tx *sql.Tx, msg models.Message) error {
	toolCalls, _ := json.Marshal(msg.ToolCalls)
	meta, _ := json.Marshal(msg.Metadata)
	var toolCallID any
	if msg.ToolCallID != "" {
		toolCallID = msg.ToolCallID
	}
	var parentID any
	if msg.ParentMessageID != "" {
		parentID = msg.ParentMessageID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages(message_id, session_id, role, content, timestamp, token_count, metadata, tool_calls, tool_call_id, parent_message_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, iso(msg.Timestamp), msg.TokenCount,
		string(meta), string(toolCalls), toolCallID, parentID,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// mirrorIntoActiveContext appends msg into the active compressed_context
// row's compressed_messages JSON array and bumps its counts. Must run
// inside the same transaction as the messages insert.
func mirrorIntoActiveContext(ctx context.Context, tx *sql.Tx, msg models.Message) error {
	var contextID, messagesJSON string
	var compressedCount int
	err := tx.QueryRowContext(ctx,
		`SELECT context_id, compressed_messages, compressed_message_count
		 FROM compressed_context WHERE session_id = ? AND is_active = 1`, msg.SessionID,
	).Scan(&contextID, &messagesJSON, &compressedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDataCorruption
	}
	if err != nil {
		return fmt.Errorf("load active compressed_context: %w", err)
	}

	var messages []models.Message
	_ = json.Unmarshal([]byte(messagesJSON), &messages)
	messages = append(messages, msg)
	updated, _ := json.Marshal(messages)

	_, err = tx.ExecContext(ctx,
		`UPDATE compressed_context
		 SET compressed_messages = ?, compressed_message_count = ?, compressed_token_count = compressed_token_count + ?
		 WHERE context_id = ?`,
		string(updated), compressedCount+1, msg.TokenCount, contextID,
	)
	if err != nil {
		return fmt.Errorf("update active compressed_context: %w", err)
	}
	return nil
}

// MergeToolExecutionResults per-key replaces entries in the active
// compressed_context's tool_execution_results map, per §4.6's decided
// per-key-replacement semantics (Open Question #5).
func (s *Store) MergeToolExecutionResults(ctx context.Context, sessionID string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var contextID, resultsJSON string
		err := tx.QueryRowContext(ctx,
			`SELECT context_id, tool_execution_results FROM compressed_context WHERE session_id = ? AND is_active = 1`,
			sessionID,
		).Scan(&contextID, &resultsJSON)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDataCorruption
		}
		if err != nil {
			return fmt.Errorf("load tool_execution_results: %w", err)
		}

		current := map[string]any{}
		_ = json.Unmarshal([]byte(resultsJSON), &current)
		for k, v := range updates {
			current[k] = v
		}
		merged, _ := json.Marshal(current)

		_, err = tx.ExecContext(ctx,
			`UPDATE compressed_context SET tool_execution_results = ? WHERE context_id = ?`,
			string(merged), contextID,
		)
		return err
	})
}

// InsertToolExecution writes the audit record for one tool invocation.
func (s *Store) InsertToolExecution(ctx context.Context, exec models.ToolExecution) error {
	if exec.ID == "" {
		exec.ID = newID()
	}
	args, _ := json.Marshal(exec.Arguments)
	meta, _ := json.Marshal(exec.Metadata)
	var messageID any
	if exec.MessageID != "" {
		messageID = exec.MessageID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_executions(execution_id, session_id, message_id, tool_name, arguments, result, success, execution_time, started_at, completed_at, error_message, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.SessionID, messageID, exec.ToolName, string(args), string(exec.Result),
		boolToInt(exec.Success), exec.ExecutionTime, iso(exec.StartedAt), iso(exec.CompletedAt),
		exec.ErrorMessage, string(meta),
	)
	if err != nil {
		return fmt.Errorf("insert tool_execution: %w", err)
	}
	return nil
}

// SwapActiveCompressedContext atomically deactivates the current active
// row and inserts next as the new active version, per §4.7 step 5.
func (s *Store) SwapActiveCompressedContext(ctx context.Context, sessionID string, next models.CompressedContext) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE compressed_context SET is_active = 0 WHERE session_id = ? AND is_active = 1`,
			sessionID,
		); err != nil {
			return fmt.Errorf("deactivate compressed_context: %w", err)
		}
		next.IsActive = true
		return insertCompressedContext(ctx, tx, next)
	})
}

// SearchHit is one row matched by SearchSessions.
type SearchHit struct {
	SessionID string
	MessageID string
	Snippet   string
}

// SearchSessions performs a full-text search over search_index_fts.
func (s *Store) SearchSessions(ctx context.Context, keyword string) ([]SearchHit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT si.session_id, si.message_id, snippet(search_index_fts, 0, '[', ']', '...', 8)
		 FROM search_index_fts
		 JOIN search_index si ON si.rowid = search_index_fts.rowid
		 WHERE search_index_fts MATCH ?`, keyword,
	)
	if err != nil {
		return nil, fmt.Errorf("search sessions: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.SessionID, &h.MessageID, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// IndexMessage mirrors a persisted message into the FTS-backed
// search_index, for SearchSessions to find later.
func (s *Store) IndexMessage(ctx context.Context, sessionID, messageID, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_index(index_id, session_id, message_id, content_type, searchable_content, keywords, created_at)
		 VALUES (?, ?, ?, 'message', ?, '[]', ?)`,
		newID(), sessionID, messageID, content, nowRFC3339(),
	)
	return err
}

// Statistics is the aggregate returned by GetSessionStatistics.
type Statistics struct {
	TotalMessages       int
	TotalToolExecutions int
	CompressionVersion  int
	CompressionRatio    float64
}

// GetSessionStatistics aggregates counts for one session.
func (s *Store) GetSessionStatistics(ctx context.Context, sessionID string) (*Statistics, error) {
	var stats Statistics
	err := s.db.QueryRowContext(ctx,
		`SELECT total_messages FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&stats.TotalMessages)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tool_executions WHERE session_id = ?`, sessionID,
	).Scan(&stats.TotalToolExecutions); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT compression_version, compression_ratio FROM compressed_context WHERE session_id = ? AND is_active = 1`,
		sessionID,
	).Scan(&stats.CompressionVersion, &stats.CompressionRatio)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDataCorruption
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// LoadSessionByPartialID resolves an exact id first, falling back to a
// prefix match across active sessions when absent. Returns the matching
// ids so the caller can disambiguate.
func (s *Store) LoadSessionByPartialID(ctx context.Context, prefix string) (found bool, id string, matches []string, err error) {
	if _, getErr := s.GetSession(ctx, prefix); getErr == nil {
		return true, prefix, nil, nil
	} else if !errors.Is(getErr, ErrNotFound) {
		return false, "", nil, getErr
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM sessions WHERE session_id LIKE ? AND status != 'deleted'`, prefix+"%",
	)
	if err != nil {
		return false, "", nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return false, "", nil, err
		}
		matches = append(matches, sid)
	}
	if err := rows.Err(); err != nil {
		return false, "", nil, err
	}

	if len(matches) == 1 {
		return true, matches[0], nil, nil
	}
	return false, "", matches, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func iso(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
