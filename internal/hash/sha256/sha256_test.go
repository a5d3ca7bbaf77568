package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherHashKnownDigest(t *testing.T) {
	t.Parallel()

	h := New()
	require.Equal(t, "A591A6D40BF420404A011733CFB7B190D62C65BF0BCDA32B57B277D9AD9F146E", h.Hash("Hello World"))
}

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	first := h.Hash("https://example.com/a")
	second := h.Hash("https://example.com/a")
	require.Equal(t, first, second)
	require.Len(t, first, Size)
	require.True(t, Valid(first))
}

func TestHasherHashNoNormalization(t *testing.T) {
	t.Parallel()

	h := New()
	require.NotEqual(t, h.Hash("https://example.com/a"), h.Hash("https://example.com/a/"))
	require.NotEqual(t, h.Hash("https://example.com/a"), h.Hash("HTTPS://EXAMPLE.COM/a"))
}

func TestValid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		key  string
		want bool
	}{
		{"hash output", New().Hash("x"), true},
		{"lowercase", "a591a6d40bf420404a011733cfb7b190d62c65bf0bcda32b57b277d9ad9f146e", false},
		{"short", "A591", false},
		{"empty", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Valid(tc.key))
		})
	}
}
