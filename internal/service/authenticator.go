package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/proctorhq/proctor-backend/internal/model"
	"github.com/proctorhq/proctor-backend/internal/repository"
)

// ErrInvalidCredentials is returned for any credential failure. Callers get
// one uniform error whether the account is missing, the role does not match,
// or the password is wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator verifies credentials against one backing store. Exactly one
// implementation is active per deployment, selected at startup; they are
// never chained or tried in order.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string, role model.Role) (*model.Profile, error)
}

// CredentialStore is the profile lookup an authenticator needs.
type CredentialStore interface {
	GetByEmailAndRole(ctx context.Context, email string, role model.Role) (*model.Profile, error)
}

// DBAuthenticator verifies credentials against the profiles table with bcrypt.
type DBAuthenticator struct {
	profiles CredentialStore
}

// NewDBAuthenticator creates a DBAuthenticator.
func NewDBAuthenticator(profiles CredentialStore) *DBAuthenticator {
	return &DBAuthenticator{profiles: profiles}
}

// Authenticate looks the account up by email and role and checks the password.
func (a *DBAuthenticator) Authenticate(ctx context.Context, email, password string, role model.Role) (*model.Profile, error) {
	profile, err := a.profiles.GetByEmailAndRole(ctx, email, role)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return profile, nil
}

// demoAccount is one fixed credential in the demo table.
type demoAccount struct {
	id       uuid.UUID
	name     string
	password string
	role     model.Role
}

// DemoAuthenticator verifies credentials against a fixed in-memory table.
// Used for demos and local development; enabled with DEMO_AUTH=true.
type DemoAuthenticator struct {
	accounts map[string]demoAccount
}

// NewDemoAuthenticator creates a DemoAuthenticator with the built-in accounts.
func NewDemoAuthenticator() *DemoAuthenticator {
	return &DemoAuthenticator{
		accounts: map[string]demoAccount{
			"faculty@demo.test": {
				id:       uuid.MustParse("00000000-0000-0000-0000-00000000f0c1"),
				name:     "Demo Faculty",
				password: "faculty123",
				role:     model.RoleFaculty,
			},
			"student@demo.test": {
				id:       uuid.MustParse("00000000-0000-0000-0000-00000000a1b2"),
				name:     "Demo Student",
				password: "student123",
				role:     model.RoleStudent,
			},
		},
	}
}

// Authenticate checks the demo table. Password comparison is constant time.
func (a *DemoAuthenticator) Authenticate(_ context.Context, email, password string, role model.Role) (*model.Profile, error) {
	acct, ok := a.accounts[email]
	if !ok || acct.role != role {
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(acct.password), []byte(password)) != 1 {
		return nil, ErrInvalidCredentials
	}
	return &model.Profile{ID: acct.id, Name: acct.name, Email: email}, nil
}
