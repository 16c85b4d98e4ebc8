// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// mockKeyValueEntry implements jetstream.KeyValueEntry for testing
type mockKeyValueEntry struct {
	key      string
	value    []byte
	revision uint64
}

func (m *mockKeyValueEntry) Key() string                     { return m.key }
func (m *mockKeyValueEntry) Value() []byte                   { return m.value }
func (m *mockKeyValueEntry) Revision() uint64                { return m.revision }
func (m *mockKeyValueEntry) Created() time.Time              { return time.Now() }
func (m *mockKeyValueEntry) Delta() uint64                   { return 0 }
func (m *mockKeyValueEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }
func (m *mockKeyValueEntry) Bucket() string                  { return "test-bucket" }

// mockKeyLister implements jetstream.KeyLister for testing
type mockKeyLister struct {
	keys []string
}

func (m *mockKeyLister) Keys() <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, key := range m.keys {
			ch <- key
		}
	}()
	return ch
}

func (m *mockKeyLister) Stop() error { return nil }

// mockNatsKeyValue implements INatsKeyValue for testing
type mockNatsKeyValue struct {
	mu          sync.Mutex
	data        map[string][]byte
	revisions   map[string]uint64
	putError    error
	getError    error
	deleteError error
	updateError error
	createError error
	listError   error

	// beforeUpdate runs before each Update is applied, outside the lock,
	// so tests can interleave a competing write.
	beforeUpdate func(key string)
	updateCalls  int

	// beforeCreate runs before each Create is applied, outside the lock.
	beforeCreate func(key string)
}

func newMockNatsKeyValue() *mockNatsKeyValue {
	return &mockNatsKeyValue{
		data:      make(map[string][]byte),
		revisions: make(map[string]uint64),
	}
}

func (m *mockNatsKeyValue) ListKeys(ctx context.Context, opts ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listError != nil {
		return nil, m.listError
	}
	if len(m.data) == 0 {
		return nil, jetstream.ErrNoKeysFound
	}
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return &mockKeyLister{keys: keys}, nil
}

func (m *mockNatsKeyValue) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getError != nil {
		return nil, m.getError
	}
	value, exists := m.data[key]
	if !exists {
		return nil, jetstream.ErrKeyNotFound
	}
	return &mockKeyValueEntry{key: key, value: value, revision: m.revisions[key]}, nil
}

func (m *mockNatsKeyValue) Put(ctx context.Context, key string, data []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.putError != nil {
		return 0, m.putError
	}
	m.data[key] = data
	m.revisions[key]++
	return m.revisions[key], nil
}

func (m *mockNatsKeyValue) Create(ctx context.Context, key string, data []byte, opts ...jetstream.KVCreateOpt) (uint64, error) {
	if m.beforeCreate != nil {
		m.beforeCreate(key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createError != nil {
		return 0, m.createError
	}
	if _, exists := m.data[key]; exists {
		return 0, jetstream.ErrKeyExists
	}
	m.data[key] = data
	m.revisions[key]++
	return m.revisions[key], nil
}

func (m *mockNatsKeyValue) Update(ctx context.Context, key string, data []byte, expectedRevision uint64) (uint64, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate(key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateCalls++
	if m.updateError != nil {
		return 0, m.updateError
	}
	currentRevision, exists := m.revisions[key]
	if !exists {
		return 0, jetstream.ErrKeyNotFound
	}
	if currentRevision != expectedRevision {
		return 0, errors.New("nats: wrong last sequence: 2")
	}
	m.data[key] = data
	m.revisions[key] = currentRevision + 1
	return m.revisions[key], nil
}

func (m *mockNatsKeyValue) Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteError != nil {
		return m.deleteError
	}
	if _, exists := m.data[key]; !exists {
		return jetstream.ErrKeyNotFound
	}
	delete(m.data, key)
	delete(m.revisions, key)
	return nil
}

// keys returns the stored keys in order.
func (m *mockNatsKeyValue) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
