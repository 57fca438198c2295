package identity

import "time"

// Role values assigned to users.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account. Email is the identity and is
// compared case-insensitively by the repositories.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         string
	Phone        string
	TOTPEnabled  bool
	PasswordHash []byte
	CreatedAt    time.Time
}
