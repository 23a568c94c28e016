// Package auth holds the flat credential registries and the admin grant
// that elevated catalog operations require.
package auth

import (
	"crypto/subtle"
	"sync"

	"prokat/internal/domain"
	"prokat/internal/models"
)

// Registry is an insertion-ordered list of plaintext credentials.
type Registry struct {
	mu    sync.RWMutex
	creds []models.Credential
}

func NewRegistry(creds ...models.Credential) *Registry {
	r := &Registry{}
	for _, c := range creds {
		r.Register(c.Username, c.Password)
	}
	return r
}

// Register appends unconditionally; duplicate usernames are kept.
func (r *Registry) Register(username, password string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds = append(r.creds, models.Credential{Username: username, Password: password})
}

// Authenticate reports whether an entry with exactly this pair exists.
func (r *Registry) Authenticate(username, password string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.creds {
		if equal(c.Username, username) && equal(c.Password, password) {
			return true
		}
	}
	return false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.creds)
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Grant is proof of a successful admin authentication. The zero value
// carries no privilege; only Access.AuthenticateAdmin mints a valid one.
type Grant struct {
	admin    bool
	username string
}

func (g Grant) Admin() bool { return g.admin }

func (g Grant) Username() string { return g.username }

// RequireAdmin returns domain.ErrAdminRequired unless g is an admin grant.
func (g Grant) RequireAdmin() error {
	if !g.admin {
		return domain.ErrAdminRequired
	}
	return nil
}

// Access groups the user and admin registries.
type Access struct {
	users  *Registry
	admins *Registry
}

func NewAccess(users, admins []models.Credential) *Access {
	return &Access{
		users:  NewRegistry(users...),
		admins: NewRegistry(admins...),
	}
}

func (a *Access) RegisterUser(username, password string) {
	a.users.Register(username, password)
}

func (a *Access) AuthenticateUser(username, password string) bool {
	return a.users.Authenticate(username, password)
}

// AuthenticateAdmin returns an admin grant when the pair is registered.
func (a *Access) AuthenticateAdmin(username, password string) (Grant, bool) {
	if !a.admins.Authenticate(username, password) {
		return Grant{}, false
	}
	return Grant{admin: true, username: username}, true
}

// RegisterAdmin adds an admin entry on behalf of an existing admin.
func (a *Access) RegisterAdmin(grant Grant, username, password string) error {
	if err := grant.RequireAdmin(); err != nil {
		return err
	}
	a.admins.Register(username, password)
	return nil
}

func (a *Access) Users() *Registry { return a.users }

func (a *Access) Admins() *Registry { return a.admins }
