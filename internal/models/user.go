package models

import "strings"

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
	RoleViewer UserRole = "viewer"
)

var roleRank = map[UserRole]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
}

func IsValidRole(role UserRole) bool {
	_, ok := roleRank[role]
	return ok
}

func IsValidRoleList(roles []UserRole) bool {
	if len(roles) == 0 {
		return false
	}
	for _, role := range roles {
		if !IsValidRole(role) {
			return false
		}
	}
	return true
}

// NormalizeRoles lowercases and de-duplicates a role list.
func NormalizeRoles(roles []UserRole) []UserRole {
	seen := make(map[UserRole]struct{}, len(roles))
	var out []UserRole
	for _, role := range roles {
		normalized := UserRole(strings.ToLower(strings.TrimSpace(string(role))))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// EnsureDefaultRole guarantees every account carries at least the viewer role.
func EnsureDefaultRole(roles []UserRole) []UserRole {
	for _, role := range roles {
		if role == RoleViewer {
			return roles
		}
	}
	return append(roles, RoleViewer)
}

func HighestRole(roles []UserRole) UserRole {
	highest := RoleViewer
	for _, role := range roles {
		if roleRank[role] > roleRank[highest] {
			highest = role
		}
	}
	return highest
}

// HasAtLeast reports whether any held role meets the required tier.
func HasAtLeast(roles []UserRole, required UserRole) bool {
	need := roleRank[required]
	for _, role := range roles {
		if roleRank[role] >= need {
			return true
		}
	}
	return false
}

// User is a forge account. PreferredEmail is the address the user asked
// notifications to go to; EmailAddresses lists every registered address.
type User struct {
	ID             string     `json:"id" db:"id"`
	Username       string     `json:"username" db:"username"`
	DisplayName    string     `json:"display_name" db:"display_name"`
	PreferredEmail string     `json:"preferred_email,omitempty" db:"preferred_email"`
	EmailAddresses []string   `json:"email_addresses" db:"email_addresses"`
	PasswordHash   string     `json:"-" db:"password_hash"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	Roles          []UserRole `json:"roles" db:"roles"`
}

// NotificationAddress resolves where mail for this user should be sent:
// the preferred address if set, otherwise the first registered address.
func (u User) NotificationAddress() string {
	if u.PreferredEmail != "" {
		return u.PreferredEmail
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0]
	}
	return ""
}

// URL is the user's profile path on the forge.
func (u User) URL() string {
	return "/u/" + u.Username + "/"
}
