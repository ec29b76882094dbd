package domain

import "time"

// Roles recognised by the role middleware
const (
	RoleAdmin  = "admin"  // Full access, including reversals and rate changes
	RoleBursar = "bursar" // Records fees, payments and opening balances
	RoleViewer = "viewer" // Read-only access
)

// User Model
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                         // Primary key
	Username  string    `gorm:"size:64;uniqueIndex;not null" json:"username"` // Unique username
	Password  string    `gorm:"not null" json:"-"`                            // Hashed password
	Role      string    `gorm:"size:16;default:viewer" json:"role"`           // Role: admin, bursar or viewer
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`             // Creation time
}

// ValidRole reports whether role is one of the known roles
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleBursar, RoleViewer:
		return true
	}
	return false
}
