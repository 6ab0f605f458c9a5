package mailbox

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/yuimarudev/mox/internal/kv"
)

// Registry hands out the single actor instance for each mailbox key.
// Mailboxes are created implicitly on first use and never destroyed.
type Registry struct {
	db          *kv.DB
	maxMessages int
	logger      *slog.Logger

	mu     sync.Mutex
	actors map[string]*Actor
}

// NewRegistry creates a registry over the given store. maxMessages is the
// per-mailbox retention cap; values <= 0 fall back to DefaultMaxMessages.
func NewRegistry(db *kv.DB, maxMessages int, logger *slog.Logger) *Registry {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Registry{
		db:          db,
		maxMessages: maxMessages,
		logger:      logger,
		actors:      map[string]*Actor{},
	}
}

// Get returns the actor owning the named mailbox, creating it on first use.
// Names are case-insensitive: "Alice" and "alice" share one mailbox.
func (r *Registry) Get(name string) *Actor {
	name = strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actors[name]
	if !ok {
		a = newActor(r.db, name, r.maxMessages, r.logger)
		r.actors[name] = a
	}
	return a
}

// Close stops every actor goroutine. Callers must not issue further
// operations after Close.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.actors {
		close(a.reqs)
	}
	r.actors = map[string]*Actor{}
}
