package model

import (
	"time"

	"github.com/google/uuid"
)

// Role classifies what a user may do. Row-level authorization at the storage
// layer is keyed by the same values.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

// Profile is a user identity row. Students appear here too; session rows
// denormalize Name and Email from this table.
type Profile struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the payload for authentication, role-scoped.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=4,max=128"`
	Role     Role   `json:"role" binding:"required,oneof=admin faculty student"`
}

// LoginResponse is returned after successful login.
type LoginResponse struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
	Role  Role    `json:"role"`
}
