package store

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type recordKey struct {
	member int64
	chat   int64
}

// keyLocks hands out one mutex per (member, chat) so writes to the same
// record apply in the order they were issued while unrelated records proceed
// in parallel. Entries are never evicted; there is at most one per record
// ever tracked.
type keyLocks struct {
	m *xsync.MapOf[recordKey, *sync.Mutex]
}

func newKeyLocks() *keyLocks {
	return &keyLocks{m: xsync.NewMapOf[recordKey, *sync.Mutex]()}
}

// lock acquires the mutex for the key and returns its release func.
func (k *keyLocks) lock(memberID, chatID int64) func() {
	mu, _ := k.m.LoadOrStore(recordKey{member: memberID, chat: chatID}, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}
