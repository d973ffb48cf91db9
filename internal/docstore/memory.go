package docstore

import (
	"context"
	"errors"
	"sync"
)

// ErrInjected is the cause used for failures injected into MemoryStore.
var ErrInjected = errors.New("injected failure")

// MemoryStore keeps documents in process memory. It doubles as the test fake:
// reads and writes can be made to fail, writes can be silently dropped, and a
// hook can overwrite a document right after a write to mimic another writer.
type MemoryStore struct {
	mu         sync.Mutex
	docs       map[string][]byte
	failReads  map[string]int
	failWrites map[string]int
	dropWrites map[string]int
	afterWrite func(key string, data []byte) []byte
	readCount  map[string]int
	writeCount map[string]int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:       make(map[string][]byte),
		failReads:  make(map[string]int),
		failWrites: make(map[string]int),
		dropWrites: make(map[string]int),
		readCount:  make(map[string]int),
		writeCount: make(map[string]int),
	}
}

// Read returns a copy of the stored document.
func (m *MemoryStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, readErr(key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCount[key]++
	if consume(m.failReads, key) {
		return nil, readErr(key, ErrInjected)
	}
	data, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Write stores a copy of data.
func (m *MemoryStore) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return writeErr(key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCount[key]++
	if consume(m.failWrites, key) {
		return writeErr(key, ErrInjected)
	}
	if consume(m.dropWrites, key) {
		return nil
	}
	stored := append([]byte(nil), data...)
	if m.afterWrite != nil {
		if replaced := m.afterWrite(key, stored); replaced != nil {
			stored = replaced
		}
	}
	m.docs[key] = stored
	return nil
}

// Put seeds a document without going through failure injection.
func (m *MemoryStore) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = append([]byte(nil), data...)
}

// Get returns the raw stored document.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[key]
	return append([]byte(nil), data...), ok
}

// FailReads makes the next n reads of key fail.
func (m *MemoryStore) FailReads(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReads[key] = n
}

// FailWrites makes the next n writes of key fail.
func (m *MemoryStore) FailWrites(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites[key] = n
}

// DropWrites makes the next n writes of key report success but store nothing.
func (m *MemoryStore) DropWrites(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropWrites[key] = n
}

// OnWrite installs a hook that may replace the stored bytes after each
// successful write. Returning nil keeps the written data.
func (m *MemoryStore) OnWrite(fn func(key string, data []byte) []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.afterWrite = fn
}

// Writes reports how many writes of key were attempted.
func (m *MemoryStore) Writes(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeCount[key]
}

// Reads reports how many reads of key were attempted.
func (m *MemoryStore) Reads(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCount[key]
}

func consume(counter map[string]int, key string) bool {
	if counter[key] <= 0 {
		return false
	}
	counter[key]--
	return true
}
