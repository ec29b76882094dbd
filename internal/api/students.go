package api

import (
	"net/http"                      // HTTP status codes
	"school_ledger/internal/domain" // Importing domain models
	"school_ledger/internal/ledger" // Ledger operations
	"school_ledger/internal/utils"  // Utility functions
	"strings"                       // String manipulation
	"time"                          // Timestamps for logs

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/pkg/errors"         // Error matching
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// CreateStudentRequest enrolls a student
type CreateStudentRequest struct {
	AdmissionNo     string           `json:"admission_no" binding:"required,max=32"`
	FirstName       string           `json:"first_name" binding:"required,max=64"`
	LastName        string           `json:"last_name" binding:"required,max=64"`
	ClassTermYearID *uint            `json:"class_term_year_id"`
	OpeningBalance  *decimal.Decimal `json:"opening_balance"` // Debt carried in from before the system
}

// UpdateStudentRequest changes a student's details. Balances are never
// written directly.
type UpdateStudentRequest struct {
	FirstName       *string `json:"first_name" binding:"omitempty,max=64"`
	LastName        *string `json:"last_name" binding:"omitempty,max=64"`
	ClassTermYearID *uint   `json:"class_term_year_id"`
	Active          *bool   `json:"active"`
}

// classExists reports whether a class-term-year row exists
func classExists(db *gorm.DB, id uint) (bool, error) {
	var n int64
	err := db.Model(&domain.ClassTermYear{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// ListStudentsHandler lists students with optional class, status and name filters
func ListStudentsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		classID, ok := optionalUint(c, "class_term_year_id")
		if !ok {
			return
		}
		p := utils.ParsePagination(c)
		q := db.WithContext(c.Request.Context()).Model(&domain.Student{})
		if classID != nil {
			q = q.Where("class_term_year_id = ?", *classID) // Filter by class
		}
		if active := c.Query("active"); active != "" {
			q = q.Where("active = ?", active == "true") // Filter by enrolment status
		}
		if term := strings.TrimSpace(c.Query("q")); term != "" {
			like := "%" + strings.ToLower(term) + "%"
			q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(admission_no) LIKE ?", like, like, like)
		}
		var total int64
		if err := q.Count(&total).Error; err != nil {
			failErr(c, err, "Count students", nil)
			return
		}
		var students []domain.Student
		if err := q.Scopes(p.Scope()).Order("id").Find(&students).Error; err != nil {
			failErr(c, err, "List students", nil)
			return
		}
		respondPage(c, newPage(students, p, total), false)
	}
}

// CreateStudentHandler enrolls a student and records any opening balance
func CreateStudentHandler(db *gorm.DB, lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateStudentRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.OpeningBalance != nil && req.OpeningBalance.IsNegative() {
			fail(c, http.StatusBadRequest, "opening_balance must not be negative")
			return
		}
		if req.ClassTermYearID != nil {
			found, err := classExists(db, *req.ClassTermYearID)
			if err != nil {
				failErr(c, err, "Create student", nil)
				return
			}
			if !found {
				fail(c, http.StatusNotFound, "Class not found")
				return
			}
		}
		admissionNo := strings.TrimSpace(req.AdmissionNo) // Stored trimmed, so checked trimmed
		if admissionNo == "" {
			fail(c, http.StatusBadRequest, "admission_no must not be blank")
			return
		}
		var taken int64
		if err := db.Model(&domain.Student{}).Where("admission_no = ?", admissionNo).Count(&taken).Error; err != nil {
			failErr(c, err, "Create student", nil)
			return
		}
		if taken > 0 {
			fail(c, http.StatusConflict, "Admission number already in use")
			return
		}
		st := domain.Student{
			AdmissionNo:     admissionNo,
			FirstName:       strings.TrimSpace(req.FirstName),
			LastName:        strings.TrimSpace(req.LastName),
			ClassTermYearID: req.ClassTermYearID,
			Active:          true,
		}
		opening := decimal.Zero
		if req.OpeningBalance != nil {
			opening = *req.OpeningBalance
		}
		// The student and its opening balance commit together
		if err := lg.EnrollStudent(c.Request.Context(), &st, opening, ""); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				fail(c, http.StatusConflict, "Admission number already in use")
				return
			}
			failErr(c, err, "Create student", logrus.Fields{"admission_no": st.AdmissionNo})
			return
		}
		if opening.IsPositive() {
			invalidateLedger(rdb) // Balance lists changed
		}
		logrus.WithFields(logrus.Fields{
			"student_id":   st.ID,                           // New student ID
			"admission_no": st.AdmissionNo,                  // Admission number
			"recorded_by":  currentUserID(c),                // Acting user
			"timestamp":    time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Student created")
		respond(c, http.StatusCreated, st)
	}
}

// GetStudentHandler returns one student
func GetStudentHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var st domain.Student
		if err := db.WithContext(c.Request.Context()).First(&st, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fail(c, http.StatusNotFound, "Student not found")
				return
			}
			failErr(c, err, "Get student", logrus.Fields{"student_id": id})
			return
		}
		respond(c, http.StatusOK, st)
	}
}

// UpdateStudentHandler edits a student's name, class or enrolment status
func UpdateStudentHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req UpdateStudentRequest
		if !bindJSON(c, &req) {
			return
		}
		var st domain.Student
		if err := db.First(&st, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fail(c, http.StatusNotFound, "Student not found")
				return
			}
			failErr(c, err, "Update student", logrus.Fields{"student_id": id})
			return
		}
		updates := map[string]any{} // Only the fields that were sent
		if req.FirstName != nil {
			updates["first_name"] = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil {
			updates["last_name"] = strings.TrimSpace(*req.LastName)
		}
		if req.ClassTermYearID != nil {
			found, err := classExists(db, *req.ClassTermYearID)
			if err != nil {
				failErr(c, err, "Update student", nil)
				return
			}
			if !found {
				fail(c, http.StatusNotFound, "Class not found")
				return
			}
			updates["class_term_year_id"] = *req.ClassTermYearID
		}
		if req.Active != nil {
			updates["active"] = *req.Active
		}
		if len(updates) > 0 {
			if err := db.Model(&domain.Student{}).Where("id = ?", st.ID).Updates(updates).Error; err != nil {
				failErr(c, err, "Update student", logrus.Fields{"student_id": st.ID})
				return
			}
			invalidateLedger(rdb) // Names and classes appear in cached lists
		}
		if err := db.First(&st, st.ID).Error; err != nil {
			failErr(c, err, "Update student", logrus.Fields{"student_id": st.ID})
			return
		}
		respond(c, http.StatusOK, st)
	}
}
