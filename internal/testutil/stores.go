package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"habersin/internal/blob"
	"habersin/internal/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a migrated SQLite database in a temp dir. The single
// connection keeps transactions serialized the way a real server would.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// ErrBlobPut is returned by MemoryBlobs when a put is set up to fail.
var ErrBlobPut = errors.New("blob put failed")

// MemoryBlobs is an in-memory blob.Store.
type MemoryBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	puts    int

	// FailPutAt makes the n-th Put (1-based) fail. Zero never fails.
	FailPutAt int
	// PutErr overrides ErrBlobPut for the failing put.
	PutErr error
}

// NewMemoryBlobs creates an empty store.
func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{objects: make(map[string][]byte), types: make(map[string]string)}
}

var _ blob.Store = (*MemoryBlobs)(nil)

func (m *MemoryBlobs) Put(_ context.Context, key, contentType string, data []byte) (blob.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts++
	if m.FailPutAt > 0 && m.puts == m.FailPutAt {
		if m.PutErr != nil {
			return blob.Handle{}, m.PutErr
		}
		return blob.Handle{}, ErrBlobPut
	}
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	h := blob.Handle{Key: key}
	h.URL = m.URL(h)
	return h, nil
}

func (m *MemoryBlobs) URL(h blob.Handle) string {
	return "https://blobs.test/" + h.Key
}

func (m *MemoryBlobs) Delete(_ context.Context, h blob.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, h.Key)
	delete(m.types, h.Key)
	return nil
}

// Has reports whether key is stored.
func (m *MemoryBlobs) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// ContentType returns the declared type of key.
func (m *MemoryBlobs) ContentType(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.types[key]
}

// Keys lists stored keys in sorted order.
func (m *MemoryBlobs) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts counts Put calls, failed ones included.
func (m *MemoryBlobs) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
