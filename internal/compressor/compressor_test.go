package compressor

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gtplanner/core/internal/llm"
	"github.com/gtplanner/core/internal/storage"
	"github.com/gtplanner/core/pkg/models"
)

type fakeProvider struct {
	response string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (<-chan llm.CompletionChunk, error) {
	ch := make(chan llm.CompletionChunk, 2)
	ch <- llm.CompletionChunk{Text: f.response}
	ch <- llm.CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	s, err := storage.New(context.Background(), db)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return s
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShouldCompress_TrueWhenMessageCountExceedsThreshold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess, err := store.CreateSession(ctx, "s")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.AppendMessage(ctx, models.Message{SessionID: sess.ID, Role: models.RoleUser, Content: "x"}); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	c := New(store, &fakeProvider{}, Config{MaxMessages: 2, PreserveRecentCount: 1}, silentLogger())
	defer c.Close()

	should, err := c.ShouldCompress(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ShouldCompress: %v", err)
	}
	if !should {
		t.Error("expected ShouldCompress to be true above threshold")
	}
}

func TestShouldCompress_FalseBelowThreshold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess, err := store.CreateSession(ctx, "s")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	c := New(store, &fakeProvider{}, DefaultConfig(), silentLogger())
	defer c.Close()

	should, err := c.ShouldCompress(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ShouldCompress: %v", err)
	}
	if should {
		t.Error("expected ShouldCompress to be false for a fresh session")
	}
}

func TestCompressSession_SkipsWhenAtOrBelowPreserveRecentCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess, err := store.CreateSession(ctx, "s")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := store.AppendMessage(ctx, models.Message{SessionID: sess.ID, Role: models.RoleUser, Content: "x"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	c := New(store, &fakeProvider{}, Config{PreserveRecentCount: 5}, silentLogger())
	defer c.Close()

	if err := c.compressSession(ctx, sess.ID); err != nil {
		t.Fatalf("compressSession: %v", err)
	}

	cc, err := store.GetActiveCompressedContext(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetActiveCompressedContext: %v", err)
	}
	if cc.CompressionVersion != 1 {
		t.Errorf("CompressionVersion = %d, want unchanged 1", cc.CompressionVersion)
	}
}

func TestCompressSession_SwapsToNewVersionAndPreservesToolResults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess, err := store.CreateSession(ctx, "s")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := store.MergeToolExecutionResults(ctx, sess.ID, map[string]any{"recommended_tools": []any{"a"}}); err != nil {
		t.Fatalf("MergeToolExecutionResults: %v", err)
	}
	for i := 0; i < 8; i++ {
		if err := store.AppendMessage(ctx, models.Message{SessionID: sess.ID, Role: models.RoleUser, Content: "turn"}); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	provider := &fakeProvider{response: `{"compressed_messages":[{"role":"assistant","content":"recap"}],"summary":"condensed","key_decisions":["use sqlite"]}`}
	c := New(store, provider, Config{PreserveRecentCount: 3}, silentLogger())
	defer c.Close()

	if err := c.compressSession(ctx, sess.ID); err != nil {
		t.Fatalf("compressSession: %v", err)
	}

	cc, err := store.GetActiveCompressedContext(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetActiveCompressedContext: %v", err)
	}
	if cc.CompressionVersion != 2 {
		t.Errorf("CompressionVersion = %d, want 2", cc.CompressionVersion)
	}
	if cc.CompressedMessageCount != 1+3 {
		t.Errorf("CompressedMessageCount = %d, want 4 (1 recap + 3 preserved tail)", cc.CompressedMessageCount)
	}
	if cc.Summary != "condensed" {
		t.Errorf("Summary = %q", cc.Summary)
	}
	if cc.ToolExecutionResults["recommended_tools"] == nil {
		t.Error("expected tool_execution_results to be copied forward unchanged")
	}
}

func TestCompressIfNeeded_EnqueuesAndDropsWhenQueueFull(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess, err := store.CreateSession(ctx, "s")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := store.AppendMessage(ctx, models.Message{SessionID: sess.ID, Role: models.RoleUser, Content: "x"}); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	provider := &fakeProvider{response: `{"compressed_messages":[],"summary":"s","key_decisions":[]}`}
	c := New(store, provider, Config{MaxMessages: 1, PreserveRecentCount: 1, QueueDepth: 1}, silentLogger())
	defer c.Close()

	if err := c.CompressIfNeeded(ctx, sess.ID); err != nil {
		t.Fatalf("CompressIfNeeded: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		cc, err := store.GetActiveCompressedContext(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetActiveCompressedContext: %v", err)
		}
		if cc.CompressionVersion == 2 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for async compression to apply")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
