package mailbox

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegistryReturnsSameActor tests that one mailbox key maps to one actor
func TestRegistryReturnsSameActor(t *testing.T) {
	reg := setupTestRegistry(t, 500)

	a := reg.Get("alice")
	assert.Same(t, a, reg.Get("alice"))
	assert.NotSame(t, a, reg.Get("bob"))
}

// TestRegistryIsCaseInsensitive tests that mailbox keys are lowercased
func TestRegistryIsCaseInsensitive(t *testing.T) {
	reg := setupTestRegistry(t, 500)

	assert.Same(t, reg.Get("Alice"), reg.Get("alice"))
	assert.Same(t, reg.Get("ALICE"), reg.Get("aLiCe"))
}

// TestConcurrentIngestsAllApplied tests that parallel ingests into one
// mailbox serialize without losing writes
func TestConcurrentIngestsAllApplied(t *testing.T) {
	const workers = 8
	const perWorker = 10

	reg := setupTestRegistry(t, 500)
	a := reg.Get("alice")

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("id-%d-%d", w, i)
				rec := newTestRecord(id, w*perWorker+i)
				assert.NoError(t, a.Ingest(context.Background(), rec))
			}
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	cursor := ""
	for {
		page, err := a.List(context.Background(), 200, cursor)
		require.NoError(t, err)
		for _, m := range page.Messages {
			seen[m.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Len(t, seen, workers*perWorker)
}

// TestConcurrentEvictionKeepsCap tests the retention invariant under
// concurrent ingest pressure
func TestConcurrentEvictionKeepsCap(t *testing.T) {
	const maxRetained = 5
	reg := setupTestRegistry(t, maxRetained)
	a := reg.Get("alice")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				rec := newTestRecord(fmt.Sprintf("id-%d-%d", w, i), w*10+i)
				assert.NoError(t, a.Ingest(context.Background(), rec))
			}
		}()
	}
	wg.Wait()

	page, err := a.List(context.Background(), 200, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, maxRetained)
}

// TestDistinctMailboxesRunInParallel tests that one busy mailbox does not
// block another
func TestDistinctMailboxesRunInParallel(t *testing.T) {
	reg := setupTestRegistry(t, 500)

	alice := reg.Get("alice")
	bob := reg.Get("bob")

	done := make(chan string, 2)
	go func() {
		_ = alice.Ingest(context.Background(), newTestRecord("a-1", 0))
		done <- "alice"
	}()
	go func() {
		_ = bob.Ingest(context.Background(), newTestRecord("b-1", 0))
		done <- "bob"
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("mailbox operations appear deadlocked")
		}
	}
}

// TestActorHonorsContext tests that a canceled context aborts the wait
func TestActorHonorsContext(t *testing.T) {
	reg := setupTestRegistry(t, 500)
	a := reg.Get("alice")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Ingest(ctx, newTestRecord("id-1", 0))
	assert.ErrorIs(t, err, context.Canceled)
}
