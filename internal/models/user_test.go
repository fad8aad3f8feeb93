package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotificationAddress(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{
			name: "preferred email wins",
			user: User{PreferredEmail: "a@example.com", EmailAddresses: []string{"b@example.com"}},
			want: "a@example.com",
		},
		{
			name: "falls back to first registered address",
			user: User{EmailAddresses: []string{"b@example.com", "c@example.com"}},
			want: "b@example.com",
		},
		{
			name: "no address at all",
			user: User{},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.NotificationAddress())
		})
	}
}

func TestUserURL(t *testing.T) {
	assert.Equal(t, "/u/alice/", User{Username: "alice"}.URL())
}

func TestHasAtLeast(t *testing.T) {
	assert.True(t, HasAtLeast([]UserRole{RoleAdmin}, RoleMember))
	assert.True(t, HasAtLeast([]UserRole{RoleMember, RoleViewer}, RoleMember))
	assert.False(t, HasAtLeast([]UserRole{RoleViewer}, RoleMember))
	assert.False(t, HasAtLeast(nil, RoleViewer))
}
