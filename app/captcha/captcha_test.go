package captcha

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	seen := map[string]bool{}
	for range 1000 {
		c := Generate()
		assert.Len(t, c, Length)
		for _, r := range c {
			assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected symbol %q", r)
		}
		seen[c] = true
	}
	assert.Greater(t, len(seen), 990, "challenges should practically never repeat")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		submitted string
		expected  string
		want      bool
	}{
		{name: "exact", submitted: "aB3dE9", expected: "aB3dE9", want: true},
		{name: "case differs", submitted: "ab3de9", expected: "aB3dE9"},
		{name: "shorter", submitted: "aB3dE", expected: "aB3dE9"},
		{name: "longer", submitted: "aB3dE9x", expected: "aB3dE9"},
		{name: "empty expected", submitted: "", expected: ""},
		{name: "empty submitted", submitted: "", expected: "aB3dE9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.submitted, tt.expected))
		})
	}

	c := Generate()
	assert.True(t, Validate(c, c))
}
