package intake

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	first, dup := r.Record("abc", "a.vox")
	assert.False(t, dup)
	assert.Empty(t, first)

	first, dup = r.Record("abc", "b.vox")
	assert.True(t, dup)
	assert.Equal(t, "a.vox", first)

	_, dup = r.Record("def", "c.vox")
	assert.False(t, dup)

	assert.Equal(t, 2, r.Len())
	hits, misses := r.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(fmt.Sprintf("fp-%d", i%10), fmt.Sprintf("file-%d.vox", i))
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, r.Len())
	hits, misses := r.Stats()
	assert.Equal(t, 90, hits)
	assert.Equal(t, 10, misses)
}
