package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yuimarudev/mox/internal/kv"
)

// ErrNotFound is returned when a message id is unknown to the mailbox.
var ErrNotFound = errors.New("mailbox: message not found")

// Retention and pagination defaults.
const (
	DefaultMaxMessages = 500
	DefaultPageSize    = 50
	MaxPageSize        = 200
)

const (
	indexPrefix  = "ts:"
	recordPrefix = "msg:"
)

// IndexKey builds the composite ordering key for a message. The id tiebreak
// keeps the order total when two messages share a receivedAt value.
func IndexKey(receivedAt, id string) string {
	return indexPrefix + receivedAt + ":" + id
}

func recordKey(id string) string {
	return recordPrefix + id
}

// store holds one mailbox's index and message table. All methods are called
// from the owning actor goroutine only.
type store struct {
	db          *kv.DB
	name        string
	maxMessages int
	logger      *slog.Logger
}

// ingest writes the index entry and record, then evicts past the retention
// cap. The write is transactional, so readers observe both keys or neither.
func (s *store) ingest(ctx context.Context, rec *MessageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	entries := []kv.Entry{
		{Key: IndexKey(rec.ReceivedAt, rec.ID), Value: []byte(rec.ID)},
		{Key: recordKey(rec.ID), Value: data},
	}
	if err := s.db.PutMany(ctx, s.name, entries); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	return s.evict(ctx)
}

// evict removes the oldest messages once the index exceeds the retention
// cap. Oldest means smallest composite key: earliest receivedAt, then
// smallest id. The delete applies as one batch.
func (s *store) evict(ctx context.Context) error {
	entries, err := s.db.List(ctx, s.name, kv.ListOptions{Prefix: indexPrefix})
	if err != nil {
		return fmt.Errorf("list index: %w", err)
	}

	overflow := len(entries) - s.maxMessages
	if overflow <= 0 {
		return nil
	}

	keys := make([]string, 0, overflow*2)
	for _, e := range entries[:overflow] {
		keys = append(keys, e.Key)
		if id := string(e.Value); id != "" {
			keys = append(keys, recordKey(id))
		}
	}

	if err := s.db.Delete(ctx, s.name, keys...); err != nil {
		return fmt.Errorf("evict %d messages: %w", overflow, err)
	}

	s.logger.Debug("evicted oldest messages", "mailbox", s.name, "count", overflow)
	return nil
}

func (s *store) get(ctx context.Context, id string) (*MessageRecord, error) {
	data, err := s.db.Get(ctx, s.name, recordKey(id))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec MessageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *store) attachments(ctx context.Context, id string) ([]Attachment, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Attachments, nil
}

// deleteAll removes every index entry and record, returning the number of
// index entries removed.
func (s *store) deleteAll(ctx context.Context) (int, error) {
	entries, err := s.db.List(ctx, s.name, kv.ListOptions{Prefix: indexPrefix})
	if err != nil {
		return 0, fmt.Errorf("list index: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(entries)*2)
	for _, e := range entries {
		keys = append(keys, e.Key)
		if id := string(e.Value); id != "" {
			keys = append(keys, recordKey(id))
		}
	}

	if err := s.db.Delete(ctx, s.name, keys...); err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}
	return len(entries), nil
}

// list walks the index newest-first. The cursor is a previously returned
// index key; the scan starts there inclusive and the cursor entry itself is
// dropped so pages never overlap.
func (s *store) list(ctx context.Context, limit int, cursor string) (*Page, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	// Fetch one entry beyond the page to detect whether more remain, plus
	// one more to cover the cursor entry that gets dropped below.
	take := limit + 1
	if cursor != "" {
		take++
	}

	entries, err := s.db.List(ctx, s.name, kv.ListOptions{
		Prefix:  indexPrefix,
		Start:   cursor,
		Limit:   take,
		Reverse: true,
	})
	if err != nil {
		return nil, err
	}

	if cursor != "" && len(entries) > 0 && entries[0].Key == cursor {
		entries = entries[1:]
	}
	more := len(entries) > limit
	if more {
		entries = entries[:limit]
	}

	page := &Page{Messages: []*MessageRecord{}}
	for _, e := range entries {
		rec, err := s.get(ctx, string(e.Value))
		if errors.Is(err, ErrNotFound) {
			// index entry outlived its record, e.g. mid-eviction
			continue
		}
		if err != nil {
			return nil, err
		}
		page.Messages = append(page.Messages, rec)
	}

	if more {
		page.NextCursor = entries[len(entries)-1].Key
	}
	return page, nil
}
