package model

import (
	"encoding/json"
	"fmt"
)

// Role is the account role chosen at registration.
type Role string

const (
	RoleTester    Role = "tester"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

// Roles returns the selectable roles, default first.
func Roles() []Role {
	return []Role{RoleTester, RoleDeveloper, RoleAdmin}
}

// User is the profile of the authenticated account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role,omitempty"`
}

// UnmarshalJSON accepts numeric or string user ids.
func (u *User) UnmarshalJSON(data []byte) error {
	var w struct {
		ID    BugID  `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  Role   `json:"role"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding user: %w", err)
	}
	*u = User{ID: string(w.ID), Name: w.Name, Email: w.Email, Role: w.Role}
	return nil
}

// DisplayName returns the name, else the email, else "User".
func (u User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return "User"
	}
}

// Session is the client's authenticated state: an opaque token plus the
// profile returned at login.
type Session struct {
	Token string
	User  *User
}

// Authenticated reports whether a token is present. The server is the
// authority on whether the token is still accepted.
func (s Session) Authenticated() bool {
	return s.Token != ""
}
