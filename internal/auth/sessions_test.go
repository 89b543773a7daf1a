package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "curl/8.4.0", 255, "curl/8.4.0"},
		{"exact", strings.Repeat("a", 5), 5, "aaaaa"},
		{"cut", strings.Repeat("a", 300), 255, strings.Repeat("a", 255)},
		{"rune boundary", "abcé", 4, "abc"},
		{"invalid utf8 dropped", "ab\xffcd", 255, "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clip(tt.in, tt.n))
		})
	}
}
