package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRevisionObject(t *testing.T) {
	code, rev, ok := parseRevisionObject("dms/1/ADL/1234/ADL-1234/r00000003")
	assert.True(t, ok)
	assert.Equal(t, "ADL-1234", code)
	assert.Equal(t, 3, rev)

	for _, bad := range []string{
		"dms/1/ADL-1234/counter", "dms/1/ADL-1234/r0000000x", "dms/1/ADL-1234/r00000000",
		"dms/1/ADL-1234/r", "dms/1/ADL-1234/r+0000001", "dms/1/ADL-1234/r-0000001",
	} {
		_, _, ok := parseRevisionObject(bad)
		assert.False(t, ok, bad)
	}
	assert.Equal(t, "p/1/X/r00000012", revisionObject("p/1/X", 12))
}

func TestParseRevisionObject_Wide(t *testing.T) {
	name := revisionObject("p/1/X", 123456789)
	assert.Equal(t, "p/1/X/r123456789", name)
	code, rev, ok := parseRevisionObject(name)
	assert.True(t, ok, "revisions wider than the padding round-trip")
	assert.Equal(t, "X", code)
	assert.Equal(t, 123456789, rev)
}

func TestKeyedMutex(t *testing.T) {
	var k KeyedMutex
	var wg sync.WaitGroup
	counter := 0

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("unit")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.held(), "locks are released once idle")
}
