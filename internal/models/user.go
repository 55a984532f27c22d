// internal/models/user.go
package models

import "fmt"

// Role gates which queue a user works from and which transitions they may trigger.
type Role string

const (
	// RoleReader ingests new chapters and reads the published library.
	RoleReader   Role = "user"
	RoleWriter   Role = "writer"
	RoleReviewer Role = "reviewer"
	RoleEditor   Role = "editor"
)

// AllRoles lists every role.
var AllRoles = []Role{RoleReader, RoleWriter, RoleReviewer, RoleEditor}

// ParseRole validates r.
func ParseRole(r string) (Role, error) {
	for _, role := range AllRoles {
		if string(role) == r {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", r)
}

// Identity is an authenticated user.
type Identity struct {
	Username string `json:"username" yaml:"username"`
	Name     string `json:"name" yaml:"name"`
	Role     Role   `json:"role" yaml:"role"`
}
