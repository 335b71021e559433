package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermissionLevel(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  PermissionLevel
		ok    bool
	}{
		{name: "numeric", input: 2, want: PermissionObserver, ok: true},
		{name: "numeric float", input: 3.0, want: PermissionOwner, ok: true},
		{name: "name", input: "OWNER", want: PermissionOwner, ok: true},
		{name: "name lowercase", input: "limited", want: PermissionLimited, ok: true},
		{name: "level value", input: PermissionNone, want: PermissionNone, ok: true},
		{name: "out of range", input: 9, ok: false},
		{name: "unknown name", input: "ADMIN", ok: false},
		{name: "unsupported type", input: []string{}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePermissionLevel(tt.input)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPermissionLevel_Ordering(t *testing.T) {
	assert.True(t, PermissionNone < PermissionLimited)
	assert.True(t, PermissionLimited < PermissionObserver)
	assert.True(t, PermissionObserver < PermissionOwner)
}

func TestUser_IsGM(t *testing.T) {
	assert.False(t, (&User{Role: RolePlayer}).IsGM())
	assert.False(t, (&User{Role: RoleTrusted}).IsGM())
	assert.True(t, (&User{Role: RoleAssistant}).IsGM())
	assert.True(t, (&User{Role: RoleGamemaster}).IsGM())

	var nobody *User
	assert.False(t, nobody.IsGM())
}
