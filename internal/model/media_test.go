package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMediaURLUnder(t *testing.T) {
	base := UserUploadPrefix("https://cdn.example.com/public/", "u1")
	require.Equal(t, "https://cdn.example.com/public/uploads/u1", base)

	cases := map[string]bool{
		"https://cdn.example.com/public/uploads/u1/1_a.mp4":         true,
		"https://cdn.example.com/public/uploads/u2/1_a.mp4":         false,
		"https://cdn.example.com/public/uploads/u1":                 false,
		"https://cdn.example.com/public/uploads/u10/a.mp4":          false,
		"https://cdn.example.com/public/uploads/u1/../u2/a.mp4":     false,
		"https://cdn.example.com/public/uploads/u1/%2e%2e/u2/a.mp4": false,
		"https://cdn.example.com@evil.test/public/uploads/u1/a.mp4": false,
		"http://169.254.169.254/latest/meta-data/":                  false,
		"file:///etc/passwd":                                        false,
		"not a url":                                                 false,
	}
	for raw, want := range cases {
		require.Equal(t, want, MediaURLUnder(raw, base), raw)
	}

	require.False(t, MediaURLUnder("https://cdn.example.com/a.mp4"))
	require.False(t, MediaURLUnder("https://cdn.example.com/a.mp4", ""))
}
