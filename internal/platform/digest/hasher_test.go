package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewHasher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cost int
		want int
	}{
		{"configured cost", 12, 12},
		{"below minimum falls back", 1, bcrypt.DefaultCost},
		{"above maximum falls back", 99, bcrypt.DefaultCost},
		{"zero falls back", 0, bcrypt.DefaultCost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NewHasher(tt.cost).Cost())
		})
	}
}

func TestHasher_DigestAndVerify(t *testing.T) {
	h := NewTestHasher()

	t.Run("digest verifies its own secret", func(t *testing.T) {
		d, err := h.Digest("foobar")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(d, "$2a$"))
		assert.NotEqual(t, "foobar", d)
		assert.True(t, h.Verify(d, "foobar"))
	})

	t.Run("other secrets do not verify", func(t *testing.T) {
		d, err := h.Digest("foobar")
		require.NoError(t, err)
		assert.False(t, h.Verify(d, "foobaz"))
		assert.False(t, h.Verify(d, ""))
	})

	t.Run("same secret produces different digests", func(t *testing.T) {
		d1, err := h.Digest("foobar")
		require.NoError(t, err)
		d2, err := h.Digest("foobar")
		require.NoError(t, err)
		assert.NotEqual(t, d1, d2)
	})

	t.Run("empty digest never matches", func(t *testing.T) {
		for _, candidate := range []string{"", "foobar", " "} {
			assert.False(t, h.Verify("", candidate), "candidate %q", candidate)
		}
	})

	t.Run("malformed digest never matches", func(t *testing.T) {
		assert.False(t, h.Verify("not-a-bcrypt-digest", "not-a-bcrypt-digest"))
	})
}

func TestNewToken(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok, err := NewToken()
		require.NoError(t, err)
		assert.Len(t, tok, 22)
		assert.NotContains(t, tok, "+")
		assert.NotContains(t, tok, "/")
		assert.NotContains(t, tok, "=")
		_, dup := seen[tok]
		assert.False(t, dup, "duplicate token %q", tok)
		seen[tok] = struct{}{}
	}
}
