package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/proctorhq/proctor-backend/internal/config"
	"github.com/proctorhq/proctor-backend/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
	}
}

func TestDemoAuthenticator(t *testing.T) {
	auth := NewDemoAuthenticator()

	profile, err := auth.Authenticate(context.Background(), "faculty@demo.test", "faculty123", model.RoleFaculty)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if profile.Name != "Demo Faculty" {
		t.Errorf("name = %q", profile.Name)
	}

	cases := []struct {
		email, password string
		role            model.Role
	}{
		{"faculty@demo.test", "wrong", model.RoleFaculty},
		{"faculty@demo.test", "faculty123", model.RoleStudent},
		{"nobody@demo.test", "faculty123", model.RoleFaculty},
	}
	for _, c := range cases {
		if _, err := auth.Authenticate(context.Background(), c.email, c.password, c.role); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("(%s, %s, %s): err = %v, want ErrInvalidCredentials", c.email, c.password, c.role, err)
		}
	}
}

func TestFacultyLoginIssuesValidToken(t *testing.T) {
	svc := NewAuthService(testConfig(), nil, NewDemoAuthenticator())

	resp, err := svc.Login(context.Background(), model.LoginRequest{
		Email:    "faculty@demo.test",
		Password: "faculty123",
		Role:     model.RoleFaculty,
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := svc.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Role != model.RoleFaculty {
		t.Errorf("role = %s, want faculty", claims.Role)
	}
	userID, err := claims.UserID()
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if userID != resp.User.ID {
		t.Errorf("token subject = %s, want %s", userID, resp.User.ID)
	}
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	issuer := NewAuthService(testConfig(), nil, NewDemoAuthenticator())
	resp, err := issuer.Login(context.Background(), model.LoginRequest{
		Email:    "faculty@demo.test",
		Password: "faculty123",
		Role:     model.RoleFaculty,
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	other := testConfig()
	other.JWTSecret = "different-secret"
	verifier := NewAuthService(other, nil, NewDemoAuthenticator())

	if _, err := verifier.ValidateToken(resp.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService(testConfig(), nil, NewDemoAuthenticator())

	if _, err := svc.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}
