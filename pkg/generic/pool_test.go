package generic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolGeneratesValues(t *testing.T) {
	calls := 0
	p := NewPool(func() *int {
		calls++
		v := 7
		return &v
	})

	v := p.Get()
	assert.Equal(t, 7, *v)
	assert.Equal(t, 1, calls)
	p.Put(v)
}

func TestResetPoolClearsOnPut(t *testing.T) {
	p := NewResetPool(
		func() *bytes.Buffer { return new(bytes.Buffer) },
		func(b *bytes.Buffer) { b.Reset() },
	)

	buf := p.Get()
	buf.WriteString("tile")
	p.Put(buf)
	assert.Zero(t, buf.Len())

	// Whatever comes back, fresh or reused, is empty.
	assert.Zero(t, p.Get().Len())
}
