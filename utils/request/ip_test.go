package request

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveClientIP(t *testing.T) {
	assert.Equal(t, "203.0.113.7", ResolveClientIP("203.0.113.7, 10.0.0.1", "10.0.0.2"))
	assert.Equal(t, "198.51.100.4", ResolveClientIP("", "198.51.100.4"))
	assert.Equal(t, "198.51.100.4", ResolveClientIP(" , 10.0.0.1", "198.51.100.4"))
	assert.Equal(t, UnknownIP, ResolveClientIP("", ""))
}

func TestResolveClientIPBoundsLength(t *testing.T) {
	long := strings.Repeat("a", 500)

	got := ResolveClientIP(long+", 10.0.0.1", "")
	assert.Len(t, got, MaxClientIPLength)

	got = ResolveClientIP("", long)
	assert.Len(t, got, MaxClientIPLength)

	// A cut through a multi-byte character leaves valid text behind
	got = ResolveClientIP(strings.Repeat("a", MaxClientIPLength-1)+"é", "")
	assert.Equal(t, strings.Repeat("a", MaxClientIPLength-1), got)
}
