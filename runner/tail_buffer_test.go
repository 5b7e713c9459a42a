package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBuffer_KeepsMostRecentBytes(t *testing.T) {
	b := newTailBuffer(8)

	_, _ = b.Write([]byte("abcd"))
	assert.Equal(t, "abcd", b.String())
	assert.False(t, b.Truncated())

	_, _ = b.Write([]byte("efghij"))
	assert.Equal(t, "cdefghij", b.String())
	assert.True(t, b.Truncated())
	assert.Equal(t, int64(10), b.TotalBytes())

	// A single write larger than the buffer keeps only its tail
	n, err := b.Write([]byte(strings.Repeat("x", 20) + "12345678"))
	assert.NoError(t, err)
	assert.Equal(t, 28, n)
	assert.Equal(t, "12345678", b.String())
}

func TestTailBuffer_DefaultSize(t *testing.T) {
	b := newTailBuffer(0)
	assert.Equal(t, outputTailBytes, b.maxBytes)
}
