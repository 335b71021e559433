package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomID_Shape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := RandomID()
		require.Len(t, id, DocumentIDLength)
		assert.True(t, IsValidID(id), "id %q should be valid", id)
		assert.False(t, seen[id], "id %q repeated", id)
		seen[id] = true
	}
}

func TestIsValidID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "valid", id: "aB3dEfGh1jKlMnOp", want: true},
		{name: "too short", id: "abc", want: false},
		{name: "too long", id: "aB3dEfGh1jKlMnOpQ", want: false},
		{name: "bad characters", id: "aB3dEfGh1jKlMnO!", want: false},
		{name: "empty", id: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidID(tt.id))
		})
	}
}
