package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// KYCStatus represents the verification state of a user's identity
type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusVerified KYCStatus = "verified"
	KYCStatusRejected KYCStatus = "rejected"
)

// Validate checks if the KYC status is valid
func (s KYCStatus) Validate() error {
	switch s {
	case KYCStatusPending, KYCStatusVerified, KYCStatusRejected:
		return nil
	default:
		return fmt.Errorf("invalid KYC status: %s", s)
	}
}

// User roles
const (
	RoleCustomer = "customer"
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// User represents a bank customer or staff member. Registration, KYC
// transitions, and credential management live outside this service; the
// engine only reads users for ownership and bulk-operation lookups.
type User struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Email      string    `json:"email" db:"email"`
	FullName   string    `json:"full_name" db:"full_name"`
	NationalID string    `json:"national_id" db:"national_id"`
	Role       string    `json:"role" db:"role"`
	KYCStatus  KYCStatus `json:"kyc_status" db:"kyc_status"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// IsVerified returns true if the user's identity has been verified
func (u *User) IsVerified() bool {
	return u.KYCStatus == KYCStatusVerified
}

// IsEmployee returns true if the user may run employee-only operations
func (u *User) IsEmployee() bool {
	return u.Role == RoleEmployee || u.Role == RoleAdmin
}
