package mailbox

import (
	"context"
	"log/slog"

	"github.com/yuimarudev/mox/internal/kv"
)

// Actor owns one mailbox's key space. Every operation funnels through the
// actor's request channel and executes on a single goroutine, so no two
// operations on the same mailbox ever interleave. That serialization is
// what makes the read-modify-evict sequence in Ingest race-free.
type Actor struct {
	store *store
	reqs  chan func()
}

func newActor(db *kv.DB, name string, maxMessages int, logger *slog.Logger) *Actor {
	a := &Actor{
		store: &store{db: db, name: name, maxMessages: maxMessages, logger: logger},
		reqs:  make(chan func()),
	}
	go a.run()
	return a
}

func (a *Actor) run() {
	for fn := range a.reqs {
		fn()
	}
}

// do executes fn on the actor goroutine and waits for it to finish. If ctx
// expires before fn is scheduled or completes, do returns early; an already
// scheduled fn still runs to completion.
func (a *Actor) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case a.reqs <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ingest stores the record and evicts past the retention cap.
func (a *Actor) Ingest(ctx context.Context, rec *MessageRecord) error {
	var err error
	if derr := a.do(ctx, func() { err = a.store.ingest(ctx, rec) }); derr != nil {
		return derr
	}
	return err
}

// Get returns the record stored under id, or ErrNotFound.
func (a *Actor) Get(ctx context.Context, id string) (*MessageRecord, error) {
	var (
		rec *MessageRecord
		err error
	)
	if derr := a.do(ctx, func() { rec, err = a.store.get(ctx, id) }); derr != nil {
		return nil, derr
	}
	return rec, err
}

// Attachments returns the attachment metadata of the record, or ErrNotFound.
func (a *Actor) Attachments(ctx context.Context, id string) ([]Attachment, error) {
	var (
		atts []Attachment
		err  error
	)
	if derr := a.do(ctx, func() { atts, err = a.store.attachments(ctx, id) }); derr != nil {
		return nil, derr
	}
	return atts, err
}

// List returns one page of the mailbox, newest first.
func (a *Actor) List(ctx context.Context, limit int, cursor string) (*Page, error) {
	var (
		page *Page
		err  error
	)
	if derr := a.do(ctx, func() { page, err = a.store.list(ctx, limit, cursor) }); derr != nil {
		return nil, derr
	}
	return page, err
}

// DeleteAll empties the mailbox, returning the number of index entries
// removed. The mailbox itself survives.
func (a *Actor) DeleteAll(ctx context.Context) (int, error) {
	var (
		n   int
		err error
	)
	if derr := a.do(ctx, func() { n, err = a.store.deleteAll(ctx) }); derr != nil {
		return 0, derr
	}
	return n, err
}
