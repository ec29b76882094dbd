package api

import (
	"net/http"                      // HTTP status codes
	"school_ledger/internal/domain" // Importing domain models
	"school_ledger/internal/ledger" // Reconciliation
	"school_ledger/internal/utils"  // Utility functions
	"time"                          // Timestamps for logs

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// RoleRequest changes a user's role
type RoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin bursar viewer"`
}

// ReconcileHandler checks one student's ledger (student_id) or all of them
func ReconcileHandler(lg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		studentID, ok := optionalUint(c, "student_id")
		if !ok {
			return
		}
		if studentID != nil {
			rep, err := lg.Reconcile(c.Request.Context(), *studentID)
			if err != nil {
				failErr(c, err, "Reconcile", logrus.Fields{"student_id": *studentID})
				return
			}
			respond(c, http.StatusOK, rep)
			return
		}
		started := time.Now()
		checked, failed, err := lg.ReconcileAll(c.Request.Context())
		if err != nil {
			failErr(c, err, "Reconcile", logrus.Fields{"checked": checked})
			return
		}
		entry := logrus.WithFields(logrus.Fields{
			"checked":  checked,                      // Students checked
			"failed":   len(failed),                  // Students with discrepancies
			"duration": time.Since(started).String(), // Time taken
		})
		if len(failed) > 0 {
			entry.Error("Ledger discrepancies found")
		} else {
			entry.Info("Ledger reconciled")
		}
		if failed == nil {
			failed = []ledger.ReconcileReport{}
		}
		respond(c, http.StatusOK, gin.H{"checked": checked, "ok": len(failed) == 0, "failed": failed})
	}
}

// ListUsersHandler returns all users, paginated
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePagination(c)
		cacheKey := "admin:users" + p.CacheSuffix() // Cache key based on pagination
		var cached pageBody[domain.User]
		if readCache(c, rdb, cacheKey, &cached) {
			respondPage(c, cached, true) // Return cached page
			return
		}
		var total int64 // Total user count
		if err := db.Model(&domain.User{}).Count(&total).Error; err != nil {
			failErr(c, err, "Count users", nil)
			return
		}
		var users []domain.User
		if err := db.Scopes(p.Scope()).Order("id").Find(&users).Error; err != nil {
			failErr(c, err, "List users", nil)
			return
		}
		body := newPage(users, p, total)
		writeCache(c, rdb, cacheKey, body) // Password hashes are not serialised
		respondPage(c, body, false)
	}
}

// UpdateUserRoleHandler changes a user's role. The last admin cannot be demoted.
func UpdateUserRoleHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req RoleRequest
		if !bindJSON(c, &req) {
			return
		}
		var user domain.User
		if err := db.First(&user, id).Error; err != nil {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		if user.Role == domain.RoleAdmin && req.Role != domain.RoleAdmin {
			var admins int64
			if err := db.Model(&domain.User{}).Where("role = ?", domain.RoleAdmin).Count(&admins).Error; err != nil {
				failErr(c, err, "Update role", logrus.Fields{"user_id": id})
				return
			}
			if admins <= 1 {
				fail(c, http.StatusUnprocessableEntity, "Cannot demote the last admin")
				return
			}
		}
		if err := db.Model(&domain.User{}).Where("id = ?", user.ID).Update("role", req.Role).Error; err != nil {
			failErr(c, err, "Update role", logrus.Fields{"user_id": id})
			return
		}
		user.Role = req.Role
		logrus.WithFields(logrus.Fields{
			"user_id":    user.ID,          // Target user
			"role":       user.Role,        // New role
			"changed_by": currentUserID(c), // Acting admin
		}).Warn("User role changed")
		if err := utils.DeletePrefix(c.Request.Context(), rdb, "admin:users"); err != nil {
			logrus.WithFields(logrus.Fields{"error": err.Error()}).Warn("Cache invalidation failed")
		}
		respond(c, http.StatusOK, user)
	}
}
