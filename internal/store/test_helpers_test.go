package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a file-backed store in a temp dir with a
// deterministic clock and id generator.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testOptions()...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testOptions pins timestamps and event ids so test assertions and
// digests are stable.
func testOptions() []Option {
	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	tick := 0
	id := 0
	return []Option{
		WithTimestampFunc(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Millisecond)
		}),
		WithIDGenerator(func() string {
			id++
			return fmt.Sprintf("evt-%04d", id)
		}),
	}
}
