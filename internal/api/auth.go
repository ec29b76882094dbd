package api

import (
	"net/http"                      // HTTP status codes
	"school_ledger/internal/domain" // Importing domain models
	"school_ledger/internal/utils"  // Utility functions
	"strings"                       // String manipulation
	"time"                          // Timestamps for logs

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/pkg/errors"        // Error matching
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"golang.org/x/crypto/bcrypt"   // Password hashing
	"gorm.io/gorm"                 // GORM ORM library
	"gorm.io/gorm/clause"          // Row locking
)

// RegisterRequest creates a user account
type RegisterRequest struct {
	Username string `json:"username" binding:"required,alphanum,min=3,max=64"`  // Letters and digits only
	Password string `json:"password" binding:"required,min=8,max=72"`           // bcrypt reads at most 72 bytes
	Role     string `json:"role" binding:"omitempty,oneof=admin bursar viewer"` // Defaults to viewer
}

// LoginRequest authenticates a user
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// AuthResponse carries the issued token
type AuthResponse struct {
	Token     string `json:"token"`      // JWT token
	Role      string `json:"role"`       // Role of the user
	ExpiresIn int    `json:"expires_in"` // Seconds until the token expires
}

// errRegisterForbidden rejects registrations by non-admins once a user exists
var errRegisterForbidden = errors.New("only admins can register users")

// RegisterHandler creates users. The very first account is created without
// authentication and always becomes an admin; after that only admins may
// register users.
func RegisterHandler(db *gorm.DB, rdb *redis.Client, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		role := req.Role
		if role == "" {
			role = domain.RoleViewer // Least privilege by default
		}
		isAdmin := callerIsAdmin(c, db, jwtSecret)
		// Hash the password and create the user
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			failErr(c, err, "Hash password", nil)
			return
		}
		// Lowercase usernames keep them unique regardless of case
		user := domain.User{Username: strings.ToLower(req.Username), Password: string(hash), Role: role}
		err = db.Transaction(func(tx *gorm.DB) error {
			var users int64 // Existing account count, locked so two first registrations serialise
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Model(&domain.User{}).Count(&users).Error; err != nil {
				return err
			}
			if users == 0 {
				user.Role = domain.RoleAdmin // Bootstrap account
			} else if !isAdmin {
				return errRegisterForbidden
			}
			var taken int64
			if err := tx.Model(&domain.User{}).Where("username = ?", user.Username).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return gorm.ErrDuplicatedKey
			}
			return tx.Create(&user).Error
		})
		switch {
		case errors.Is(err, errRegisterForbidden):
			fail(c, http.StatusForbidden, "Only admins can register users")
			return
		case errors.Is(err, gorm.ErrDuplicatedKey):
			fail(c, http.StatusConflict, "Username already exists")
			return
		case err != nil:
			failErr(c, err, "Register", logrus.Fields{"username": user.Username})
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":   user.ID,                         // New user ID
			"username":  user.Username,                   // Username
			"role":      user.Role,                       // Assigned role
			"timestamp": time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("User registered")
		if err := utils.DeletePrefix(c.Request.Context(), rdb, "admin:users"); err != nil {
			logrus.WithFields(logrus.Fields{"error": err.Error()}).Warn("Cache invalidation failed")
		}
		respond(c, http.StatusCreated, user)
	}
}

// callerIsAdmin checks the bearer token, if any, against a current admin account
func callerIsAdmin(c *gin.Context, db *gorm.DB, jwtSecret string) bool {
	token, ok := utils.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		return false
	}
	claims, err := utils.ParseJWT(token, jwtSecret)
	if err != nil {
		return false
	}
	var caller domain.User
	if err := db.First(&caller, claims.UserID).Error; err != nil {
		return false
	}
	return caller.Role == domain.RoleAdmin
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		var user domain.User // Fetch user from database
		if err := db.Where("username = ?", strings.ToLower(req.Username)).First(&user).Error; err != nil {
			fail(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			logrus.WithFields(logrus.Fields{"username": user.Username}).Warn("Failed login")
			fail(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		token, err := utils.GenerateJWT(user.ID, user.Role, jwtSecret) // Generate JWT token
		if err != nil {
			failErr(c, err, "Generate token", logrus.Fields{"user_id": user.ID})
			return
		}
		respond(c, http.StatusOK, AuthResponse{Token: token, Role: user.Role, ExpiresIn: int(utils.TokenTTL.Seconds())})
	}
}
