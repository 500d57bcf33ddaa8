package identity

import (
	"time"

	"github.com/karobar-pk/karobar/internal/access"
	"github.com/karobar-pk/karobar/internal/otp"
)

// Role distinguishes the three identity types. Email and username uniqueness
// is scoped per role.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

const (
	statusActive    = "active"
	statusSuspended = "suspended"
)

// User is a durable identity record for a buyer, seller or admin. Sellers
// additionally carry the trial/verification state; any identity may hold at
// most one pending OTP record at a time.
type User struct {
	ID           string
	Role         Role
	Username     string
	Email        string
	Phone        string
	PasswordHash []byte
	Status       string
	OTP          otp.Record
	Trial        access.TrialState
	CreatedAt    time.Time
}

// HasPendingOTP reports whether an OTP record is stored on the identity.
func (u User) HasPendingOTP() bool {
	return len(u.OTP.Hash) > 0
}

// Credentials is the login request structure.
type Credentials struct {
	Role     Role
	Email    string
	Password string
}
