package progress

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_TTY(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(&buf, "Ingesting", 10, true)
	p.Increment()
	assert.Contains(t, buf.String(), "Ingesting... 1/10 (10%)")
	p.Done()
	assert.Equal(t, 1, p.Current())
}

func TestProgress_Quiet(t *testing.T) {
	var buf bytes.Buffer
	small := newProgress(&buf, "x", minItems-1, true)
	small.Increment()
	small.Done()

	pipe := newProgress(&buf, "x", 100, false)
	pipe.Increment()
	pipe.Done()

	assert.Empty(t, buf.String())
}

func TestProgress_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(&buf, "x", 50, true)
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(p.Increment)
	}
	wg.Wait()
	assert.Equal(t, 50, p.Current())
}
