package api

import (
	"net/http"                      // HTTP status codes
	"school_ledger/internal/domain" // Importing domain models
	"school_ledger/internal/ledger" // Ledger operations
	"time"                          // Timestamps for logs

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/pkg/errors"         // Error matching
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// FeeStructureRequest creates or replaces a fee structure
type FeeStructureRequest struct {
	Name            string          `json:"name" binding:"required,max=128"`
	ClassTermYearID uint            `json:"class_term_year_id" binding:"required"`
	Category        string          `json:"category" binding:"required,fee_category"`
	Amount          decimal.Decimal `json:"amount"`
	Mandatory       *bool           `json:"mandatory"`
}

// ApplyRequest sets the due date of charges created by an apply
type ApplyRequest struct {
	DueDate string `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
}

// AssignFeeRequest charges one student, either from a fee structure or ad hoc
type AssignFeeRequest struct {
	StudentID      uint            `json:"student_id" binding:"required"`
	FeeStructureID *uint           `json:"fee_structure_id"`
	Description    string          `json:"description" binding:"required_without=FeeStructureID,max=255"`
	Category       string          `json:"category" binding:"omitempty,fee_category"`
	Amount         decimal.Decimal `json:"amount"`
	DueDate        string          `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
}

// loadFeeStructure answers 404 itself when the structure is missing
func loadFeeStructure(c *gin.Context, db *gorm.DB) (*domain.FeeStructure, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	var fs domain.FeeStructure
	if err := db.First(&fs, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "Fee structure not found")
			return nil, false
		}
		failErr(c, err, "Load fee structure", logrus.Fields{"fee_structure_id": id})
		return nil, false
	}
	return &fs, true
}

// checkFeeStructure validates the parts of a request the tags cannot
func checkFeeStructure(c *gin.Context, db *gorm.DB, req *FeeStructureRequest) bool {
	if !req.Amount.IsPositive() {
		fail(c, http.StatusBadRequest, "amount must be greater than zero")
		return false
	}
	found, err := classExists(db, req.ClassTermYearID)
	if err != nil {
		failErr(c, err, "Check class", nil)
		return false
	}
	if !found {
		fail(c, http.StatusNotFound, "Class not found")
		return false
	}
	return true
}

// ListFeeStructuresHandler lists fee structures, optionally for one class
func ListFeeStructuresHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		classID, ok := optionalUint(c, "class_term_year_id")
		if !ok {
			return
		}
		q := db.WithContext(c.Request.Context()).Model(&domain.FeeStructure{})
		if classID != nil {
			q = q.Where("class_term_year_id = ?", *classID) // Filter by class
		}
		var list []domain.FeeStructure
		if err := q.Order("id").Find(&list).Error; err != nil {
			failErr(c, err, "List fee structures", nil)
			return
		}
		respond(c, http.StatusOK, list)
	}
}

// CreateFeeStructureHandler creates a fee structure
func CreateFeeStructureHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FeeStructureRequest
		if !bindJSON(c, &req) || !checkFeeStructure(c, db, &req) {
			return
		}
		fs := domain.FeeStructure{
			Name:            req.Name,
			ClassTermYearID: req.ClassTermYearID,
			Category:        req.Category,
			Amount:          req.Amount.Round(2),
			Mandatory:       req.Mandatory == nil || *req.Mandatory,
		}
		if err := db.Create(&fs).Error; err != nil {
			failErr(c, err, "Create fee structure", logrus.Fields{"name": fs.Name})
			return
		}
		respond(c, http.StatusCreated, fs)
	}
}

// UpdateFeeStructureHandler replaces a fee structure. Charges already made
// keep the amount they were created with.
func UpdateFeeStructureHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		fs, ok := loadFeeStructure(c, db)
		if !ok {
			return
		}
		var req FeeStructureRequest
		if !bindJSON(c, &req) || !checkFeeStructure(c, db, &req) {
			return
		}
		fs.Name = req.Name
		fs.ClassTermYearID = req.ClassTermYearID
		fs.Category = req.Category
		fs.Amount = req.Amount.Round(2)
		if req.Mandatory != nil {
			fs.Mandatory = *req.Mandatory
		}
		if err := db.Save(fs).Error; err != nil {
			failErr(c, err, "Update fee structure", logrus.Fields{"fee_structure_id": fs.ID})
			return
		}
		respond(c, http.StatusOK, fs)
	}
}

// DeleteFeeStructureHandler deletes a fee structure nobody has been charged for
func DeleteFeeStructureHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		fs, ok := loadFeeStructure(c, db)
		if !ok {
			return
		}
		var used int64
		if err := db.Model(&domain.FeeAssignment{}).Where("fee_structure_id = ?", fs.ID).Count(&used).Error; err != nil {
			failErr(c, err, "Delete fee structure", logrus.Fields{"fee_structure_id": fs.ID})
			return
		}
		if used > 0 {
			fail(c, http.StatusConflict, "Fee structure has already been charged to students")
			return
		}
		if err := db.Delete(&domain.FeeStructure{}, fs.ID).Error; err != nil {
			failErr(c, err, "Delete fee structure", logrus.Fields{"fee_structure_id": fs.ID})
			return
		}
		respond(c, http.StatusOK, gin.H{"id": fs.ID})
	}
}

// ApplyFeeStructureHandler charges a fee structure to its whole class
func ApplyFeeStructureHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req ApplyRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}
		due, _ := parseDate(req.DueDate) // Format already validated
		res, err := lg.ApplyFeeStructure(c.Request.Context(), id, due)
		if res.Assigned > 0 {
			invalidateLedger(rdb) // Some students were charged even if a later one failed
		}
		if err != nil {
			failErr(c, err, "Apply fee structure", logrus.Fields{"fee_structure_id": id, "assigned": res.Assigned})
			return
		}
		logrus.WithFields(logrus.Fields{
			"fee_structure_id": id,                              // Fee structure ID
			"assigned":         res.Assigned,                    // Students charged
			"skipped":          res.Skipped,                     // Students already charged
			"total":            res.Total.StringFixed(2),        // Amount charged
			"timestamp":        time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Fee structure applied")
		respond(c, http.StatusOK, res)
	}
}

// AssignFeeHandler charges a single student
func AssignFeeHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AssignFeeRequest
		if !bindJSON(c, &req) {
			return
		}
		due, _ := parseDate(req.DueDate) // Format already validated
		category := req.Category
		if category == "" {
			category = domain.CategoryTuition
		}
		a, err := lg.AssignFee(c.Request.Context(), ledger.AssignFeeInput{
			StudentID:      req.StudentID,
			FeeStructureID: req.FeeStructureID,
			Description:    req.Description,
			Category:       category,
			Amount:         req.Amount,
			DueDate:        due,
		})
		if err != nil {
			failErr(c, err, "Assign fee", logrus.Fields{"student_id": req.StudentID})
			return
		}
		logrus.WithFields(logrus.Fields{
			"student_id":    a.StudentID,                     // Student ID
			"assignment_id": a.ID,                            // New assignment ID
			"amount":        a.Amount.StringFixed(2),         // Amount charged
			"recorded_by":   currentUserID(c),                // Acting user
			"timestamp":     time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Fee assigned")
		invalidateLedger(rdb) // Balances changed
		respond(c, http.StatusCreated, a)
	}
}
