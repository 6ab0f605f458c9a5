package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuimarudev/mox/internal/kv"
)

// setupTestRegistry creates a registry over an in-memory store
func setupTestRegistry(t *testing.T, maxMessages int) *Registry {
	t.Helper()

	db, err := kv.Open(":memory:")
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { db.Close() })

	r := NewRegistry(db, maxMessages, slog.New(slog.DiscardHandler))
	t.Cleanup(r.Close)

	return r
}

// newTestRecord creates a record with a deterministic receivedAt ordering.
// seq orders records chronologically within a test.
func newTestRecord(id string, seq int) *MessageRecord {
	receivedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).
		Add(time.Duration(seq) * time.Second).
		Format(TimeFormat)
	text := "body of " + id
	return &MessageRecord{
		ID:         id,
		ReceivedAt: receivedAt,
		Mailbox:    "alice",
		To:         "alice@example.com",
		From:       "bob@example.com",
		Subject:    "message " + id,
		Headers:    map[string]string{"subject": "message " + id},
		Raw:        RawRef{Key: "raw/alice/2026-08-01/" + id + ".eml"},
		Parse:      ParseInfo{Truncated: false, MaxBytes: 1000000},
		Body:       Body{Text: &text},
		Attachments: []Attachment{},
	}
}

func ingestN(t *testing.T, a *Actor, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := a.Ingest(context.Background(), newTestRecord(fmt.Sprintf("id-%04d", i), i))
		require.NoError(t, err)
	}
}

// TestIngestGetRoundTrip tests that an ingested record reads back deep-equal
func TestIngestGetRoundTrip(t *testing.T) {
	reg := setupTestRegistry(t, 500)
	a := reg.Get("alice")

	rec := newTestRecord("id-1", 0)
	require.NoError(t, a.Ingest(context.Background(), rec))

	got, err := a.Get(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

// TestGetUnknownID tests the not-found path
func TestGetUnknownID(t *testing.T) {
	reg := setupTestRegistry(t, 500)

	_, err := reg.Get("alice").Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestRetentionEvictsOldest tests that only the cap's worth of newest
// messages survive a long ingest sequence
func TestRetentionEvictsOldest(t *testing.T) {
	const maxRetained = 10
	reg := setupTestRegistry(t, maxRetained)
	a := reg.Get("alice")

	ingestN(t, a, 25)

	page, err := a.List(context.Background(), 200, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, maxRetained)

	// Newest first: id-0024 down to id-0015
	assert.Equal(t, "id-0024", page.Messages[0].ID)
	assert.Equal(t, "id-0015", page.Messages[maxRetained-1].ID)

	// The evicted oldest are gone from the store too
	for i := 0; i < 15; i++ {
		_, err := a.Get(context.Background(), fmt.Sprintf("id-%04d", i))
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

// TestEvictionTiebreakByID tests that identical timestamps evict by id order
func TestEvictionTiebreakByID(t *testing.T) {
	reg := setupTestRegistry(t, 2)
	a := reg.Get("alice")
	ctx := context.Background()

	// Same receivedAt for all three; ids break the tie
	for _, id := range []string{"id-b", "id-a", "id-c"} {
		rec := newTestRecord(id, 0)
		require.NoError(t, a.Ingest(ctx, rec))
	}

	_, err := a.Get(ctx, "id-a")
	assert.ErrorIs(t, err, ErrNotFound, "smallest id should be evicted first")

	_, err = a.Get(ctx, "id-b")
	assert.NoError(t, err)
	_, err = a.Get(ctx, "id-c")
	assert.NoError(t, err)
}

// TestPaginationCompleteness tests that chaining pages yields every message
// exactly once in strict descending order
func TestPaginationCompleteness(t *testing.T) {
	const total = 23
	reg := setupTestRegistry(t, 500)
	a := reg.Get("alice")
	ctx := context.Background()

	ingestN(t, a, total)

	seen := map[string]bool{}
	var order []string
	cursor := ""
	for {
		page, err := a.List(ctx, 5, cursor)
		require.NoError(t, err)

		for _, m := range page.Messages {
			assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
			seen[m.ID] = true
			order = append(order, m.ReceivedAt+":"+m.ID)
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	require.Len(t, seen, total)
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i-1], order[i], "pages must be strictly descending")
	}
}

// TestCursorBoundary tests that a mailbox with exactly limit messages fits
// one page with no spurious extra page
func TestCursorBoundary(t *testing.T) {
	reg := setupTestRegistry(t, 500)
	a := reg.Get("alice")

	ingestN(t, a, 5)

	page, err := a.List(context.Background(), 5, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 5)
	assert.Empty(t, page.NextCursor, "no next page should be signaled")
}

// TestListLimitClamping tests the default and maximum page sizes
func TestListLimitClamping(t *testing.T) {
	reg := setupTestRegistry(t, 500)
	a := reg.Get("alice")
	ctx := context.Background()

	ingestN(t, a, 60)

	// Invalid limit falls back to the default of 50
	page, err := a.List(ctx, 0, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, DefaultPageSize)
	assert.NotEmpty(t, page.NextCursor)

	// Oversized limits clamp to 200
	ingestN(t, a, 60) // ids repeat, same mailbox ends up with 60 records
	page, err = a.List(ctx, 1000, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(page.Messages), MaxPageSize)
}

// TestListSkipsDanglingIndexEntries tests that an index entry whose record
// is gone does not surface in a page
func TestListSkipsDanglingIndexEntries(t *testing.T) {
	db, err := kv.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := NewRegistry(db, 500, slog.New(slog.DiscardHandler))
	t.Cleanup(reg.Close)
	a := reg.Get("alice")
	ctx := context.Background()

	ingestN(t, a, 3)

	// Remove one record but leave its index entry behind
	require.NoError(t, db.Delete(ctx, "alice", "msg:id-0001"))

	page, err := a.List(ctx, 50, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	for _, m := range page.Messages {
		assert.NotEqual(t, "id-0001", m.ID)
	}
}

// TestDeleteAll tests that the mailbox empties and reports the entry count
func TestDeleteAll(t *testing.T) {
	reg := setupTestRegistry(t, 500)
	a := reg.Get("alice")
	ctx := context.Background()

	ingestN(t, a, 7)

	deleted, err := a.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, deleted)

	page, err := a.List(ctx, 50, "")
	require.NoError(t, err)
	assert.Empty(t, page.Messages)

	_, err = a.Get(ctx, "id-0003")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = a.Attachments(ctx, "id-0003")
	assert.ErrorIs(t, err, ErrNotFound)

	// Empty mailbox deletes zero
	deleted, err = a.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	// The mailbox itself survives and accepts new messages
	require.NoError(t, a.Ingest(ctx, newTestRecord("id-new", 100)))
	page, err = a.List(ctx, 50, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 1)
}

// TestAttachmentsReturned tests the attachment metadata lookup
func TestAttachmentsReturned(t *testing.T) {
	reg := setupTestRegistry(t, 500)
	a := reg.Get("alice")
	ctx := context.Background()

	size := int64(42)
	rec := newTestRecord("id-att", 0)
	rec.Attachments = []Attachment{{
		ID:          "att-1",
		Filename:    "report.pdf",
		ContentType: "application/pdf",
		Size:        &size,
		Key:         "att/alice/2026-08-01/id-att/att-1/report.pdf",
	}}
	require.NoError(t, a.Ingest(ctx, rec))

	atts, err := a.Attachments(ctx, "id-att")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "report.pdf", atts[0].Filename)
}
