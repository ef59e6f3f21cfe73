package storage

// schemaVersion is stored in database_metadata on first initialization.
const schemaVersion = "1"

// ddl is applied in order on every Open call; every statement is
// idempotent (IF NOT EXISTS) so repeated initialization is a no-op,
// matching §4.5's "initialization is idempotent" requirement. Grounded
// in the teacher's internal/sessions/cockroach.go table shape, adapted
// from Postgres $N placeholders to SQLite, and the teacher's
// sqlitevec/backend.go for the WAL/index/trigger idiom.
var ddl = []string{
	`PRAGMA foreign_keys = ON`,
	`PRAGMA journal_mode = WAL`,

	`CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		project_stage TEXT NOT NULL DEFAULT '',
		total_messages INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		metadata TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'active'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at DESC)`,

	`CREATE TABLE IF NOT EXISTS messages (
		message_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL,
		token_count INTEGER NOT NULL DEFAULT 0,
		metadata TEXT NOT NULL DEFAULT '{}',
		tool_calls TEXT NOT NULL DEFAULT '[]',
		tool_call_id TEXT,
		parent_message_id TEXT REFERENCES messages(message_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_session_ts ON messages(session_id, timestamp DESC)`,

	`CREATE TABLE IF NOT EXISTS compressed_context (
		context_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
		compression_version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		original_message_count INTEGER NOT NULL DEFAULT 0,
		compressed_message_count INTEGER NOT NULL DEFAULT 0,
		original_token_count INTEGER NOT NULL DEFAULT 0,
		compressed_token_count INTEGER NOT NULL DEFAULT 0,
		compression_ratio REAL NOT NULL DEFAULT 1.0,
		compressed_messages TEXT NOT NULL DEFAULT '[]',
		summary TEXT NOT NULL DEFAULT '',
		key_decisions TEXT NOT NULL DEFAULT '[]',
		tool_execution_results TEXT NOT NULL DEFAULT '{}',
		is_active INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_compressed_context_version ON compressed_context(session_id, compression_version DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_compressed_context_active ON compressed_context(session_id, is_active)`,

	`CREATE TABLE IF NOT EXISTS tool_executions (
		execution_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
		message_id TEXT,
		tool_name TEXT NOT NULL,
		arguments TEXT NOT NULL DEFAULT '{}',
		result TEXT,
		success INTEGER NOT NULL DEFAULT 0,
		execution_time REAL NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tool_executions_session_started ON tool_executions(session_id, started_at DESC)`,

	`CREATE TABLE IF NOT EXISTS search_index (
		index_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
		message_id TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'message',
		searchable_content TEXT NOT NULL,
		keywords TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS search_index_fts USING fts5(
		searchable_content,
		content='search_index',
		content_rowid='rowid'
	)`,

	`CREATE TRIGGER IF NOT EXISTS trg_search_index_ai AFTER INSERT ON search_index BEGIN
		INSERT INTO search_index_fts(rowid, searchable_content) VALUES (new.rowid, new.searchable_content);
	END`,
	`CREATE TRIGGER IF NOT EXISTS trg_search_index_ad AFTER DELETE ON search_index BEGIN
		INSERT INTO search_index_fts(search_index_fts, rowid, searchable_content) VALUES('delete', old.rowid, old.searchable_content);
	END`,
	`CREATE TRIGGER IF NOT EXISTS trg_search_index_au AFTER UPDATE ON search_index BEGIN
		INSERT INTO search_index_fts(search_index_fts, rowid, searchable_content) VALUES('delete', old.rowid, old.searchable_content);
		INSERT INTO search_index_fts(rowid, searchable_content) VALUES (new.rowid, new.searchable_content);
	END`,

	`CREATE TRIGGER IF NOT EXISTS trg_sessions_touch AFTER UPDATE ON sessions
	WHEN new.updated_at = old.updated_at BEGIN
		UPDATE sessions SET updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now') WHERE session_id = new.session_id;
	END`,

	`CREATE TRIGGER IF NOT EXISTS trg_messages_ai AFTER INSERT ON messages BEGIN
		UPDATE sessions
		SET total_messages = total_messages + 1,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		WHERE session_id = new.session_id;
	END`,
	`CREATE TRIGGER IF NOT EXISTS trg_messages_ad AFTER DELETE ON messages BEGIN
		UPDATE sessions
		SET total_messages = total_messages - 1,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		WHERE session_id = old.session_id;
	END`,

	`CREATE TABLE IF NOT EXISTS database_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}
