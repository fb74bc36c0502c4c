package db

import "sync"

// memoryDB is a map-backed Database for tests and simulations. It
// mirrors the bolt store's semantics, including nil-on-absent reads.
type memoryDB struct {
	lock    sync.RWMutex
	columns map[string]map[string][]byte
}

// NewMemoryDB returns an empty in-memory Database.
func NewMemoryDB() Database {
	return &memoryDB{columns: make(map[string]map[string][]byte)}
}

func (m *memoryDB) Put(column []byte, key []byte, value []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	bucket, ok := m.columns[string(column)]
	if !ok {
		bucket = make(map[string][]byte)
		m.columns[string(column)] = bucket
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	bucket[string(key)] = stored
	return nil
}

func (m *memoryDB) Get(column []byte, key []byte) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	bucket, ok := m.columns[string(column)]
	if !ok {
		return nil, nil
	}
	value, ok := bucket[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *memoryDB) Delete(column []byte, key []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if bucket, ok := m.columns[string(column)]; ok {
		delete(bucket, string(key))
	}
	return nil
}

func (m *memoryDB) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.columns = make(map[string]map[string][]byte)
	return nil
}
