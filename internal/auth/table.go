// internal/auth/table.go
package auth

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	apperrors "github.com/Corphon/BookFlow/internal/errors"
	"github.com/Corphon/BookFlow/internal/models"
)

// MsgInvalidCredentials is returned for any failed login.
const MsgInvalidCredentials = "Invalid credentials"

// Credential is one row of the users file.
type Credential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
}

type usersFile struct {
	Users []Credential `yaml:"users"`
}

// DefaultCredentials is the built-in four-identity table.
func DefaultCredentials() []Credential {
	return []Credential{
		{Username: "user", Password: "123", Name: "User", Role: string(models.RoleReader)},
		{Username: "writer", Password: "123", Name: "Writer", Role: string(models.RoleWriter)},
		{Username: "reviewer", Password: "123", Name: "Reviewer", Role: string(models.RoleReviewer)},
		{Username: "editor", Password: "123", Name: "Editor", Role: string(models.RoleEditor)},
	}
}

type account struct {
	identity models.Identity
	hash     []byte
}

// Table authenticates usernames against bcrypt-hashed passwords.
type Table struct {
	accounts map[string]account
}

// NewTable hashes creds into a lookup table.
func NewTable(creds []Credential) (*Table, error) {
	t := &Table{accounts: make(map[string]account, len(creds))}
	for _, c := range creds {
		if c.Username == "" || c.Password == "" {
			return nil, fmt.Errorf("credential for %q needs username and password", c.Username)
		}
		role, err := models.ParseRole(c.Role)
		if err != nil {
			return nil, fmt.Errorf("credential %s: %w", c.Username, err)
		}
		if _, dup := t.accounts[c.Username]; dup {
			return nil, fmt.Errorf("duplicate username %q", c.Username)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", c.Username, err)
		}
		name := c.Name
		if name == "" {
			name = c.Username
		}
		t.accounts[c.Username] = account{
			identity: models.Identity{Username: c.Username, Name: name, Role: role},
			hash:     hash,
		}
	}
	return t, nil
}

// LoadTable reads a YAML users file, or the default table when path is empty.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return NewTable(DefaultCredentials())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	var f usersFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}
	if len(f.Users) == 0 {
		return nil, fmt.Errorf("users file %s defines no users", path)
	}
	return NewTable(f.Users)
}

// Authenticate checks username and password.
func (t *Table) Authenticate(username, password string) (models.Identity, error) {
	acct, ok := t.accounts[username]
	if !ok {
		return models.Identity{}, apperrors.NewUnauthorizedError(MsgInvalidCredentials, nil)
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return models.Identity{}, apperrors.NewUnauthorizedError(MsgInvalidCredentials, nil)
	}
	return acct.identity, nil
}

// Identities lists every account, sorted by username.
func (t *Table) Identities() []models.Identity {
	out := make([]models.Identity, 0, len(t.accounts))
	for _, a := range t.accounts {
		out = append(out, a.identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
