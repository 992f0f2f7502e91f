package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{"admin", RoleAdmin},
		{"ADMIN", RoleAdmin},
		{"  supplier ", RoleSupplier},
		{"ai", RoleAI},
		{"system", RoleSystem},
		{"user", RoleUser},
		{"", RoleUser},
		{"whatever", RoleUser},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeRole(tc.in), "input %q", tc.in)
	}
}

func TestPrivileged(t *testing.T) {
	assert.True(t, RoleAdmin.Privileged())
	assert.True(t, RoleAI.Privileged())
	assert.False(t, RoleUser.Privileged())
	assert.False(t, RoleSupplier.Privileged())
	assert.False(t, RoleSystem.Privileged())
}

func TestSamePair(t *testing.T) {
	a := []Participant{
		{UserID: "u1", Role: RoleUser, Name: "One"},
		{UserID: "u2", Role: RoleSupplier},
	}
	reversed := []Participant{
		{UserID: "u2", Role: RoleSupplier, Name: "renamed later"},
		{UserID: "u1", Role: RoleUser},
	}
	assert.True(t, SamePair(a, reversed), "pair identity ignores order and names")

	differentRole := []Participant{
		{UserID: "u1", Role: RoleAdmin},
		{UserID: "u2", Role: RoleSupplier},
	}
	assert.False(t, SamePair(a, differentRole))

	assert.False(t, SamePair(a, a[:1]))
}
