package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockLogger struct{}

func (m *mockLogger) Debugf(format string, v ...interface{}) {}
func (m *mockLogger) Infof(format string, v ...interface{})  {}
func (m *mockLogger) Warnf(format string, v ...interface{})  {}
func (m *mockLogger) Errorf(format string, v ...interface{}) {}

func TestSegmentCache_SetGetDelete(t *testing.T) {
	sc := New(&mockLogger{}, nil, 0)

	sc.Set("a", []byte("12345"))
	sc.Set("b", []byte("678"))
	sc.Set("a", []byte("1"))

	data, ok := sc.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), data)

	n, size := sc.Len()
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(4), size)

	sc.Delete("b")
	sc.Delete("missing")
	_, ok = sc.Get("b")
	assert.False(t, ok)
	_, size = sc.Len()
	assert.Equal(t, int64(1), size)
}

func TestSegmentCache_RunEviction(t *testing.T) {
	active := map[string]struct{}{"keep": {}}
	sc := New(&mockLogger{}, func() map[string]struct{} { return active }, 0)

	sc.Set("keep", []byte("x"))
	sc.Set("drop1", []byte("yy"))
	sc.Set("drop2", []byte("zzz"))

	assert.Equal(t, 2, sc.RunEviction())
	_, ok := sc.Get("keep")
	assert.True(t, ok)
	n, size := sc.Len()
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), size)
}

func TestSegmentCache_NoProviderKeepsEverything(t *testing.T) {
	sc := New(&mockLogger{}, nil, 0)
	sc.Set("a", []byte("x"))
	assert.Equal(t, 0, sc.RunEviction())
}

func TestSegmentCache_Worker(t *testing.T) {
	var mu sync.Mutex
	active := map[string]struct{}{}
	sc := New(&mockLogger{}, func() map[string]struct{} {
		mu.Lock()
		defer mu.Unlock()
		return active
	}, 5*time.Millisecond)
	sc.Set("stale", []byte("x"))

	sc.Start()
	defer sc.Stop()

	assert.Eventually(t, func() bool {
		_, ok := sc.Get("stale")
		return !ok
	}, time.Second, 5*time.Millisecond)
}
