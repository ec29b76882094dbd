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

// HostelRequest creates or replaces a hostel
type HostelRequest struct {
	Name        string          `json:"name" binding:"required,max=64"`
	Capacity    int             `json:"capacity" binding:"required,min=1"`
	BoardingFee decimal.Decimal `json:"boarding_fee"` // Per term, base currency
}

// AssignHostelRequest places a student in a hostel
type AssignHostelRequest struct {
	StudentID uint   `json:"student_id" binding:"required"`
	DueDate   string `json:"due_date" binding:"omitempty,datetime=2006-01-02"` // Due date of the boarding fee
}

// HostelResponse is a hostel with its current occupancy
type HostelResponse struct {
	domain.Hostel
	Occupants int64 `json:"occupants"` // Active students assigned
}

// loadHostel answers 404 itself when the hostel is missing
func loadHostel(c *gin.Context, db *gorm.DB) (*domain.Hostel, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	var h domain.Hostel
	if err := db.First(&h, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "Hostel not found")
			return nil, false
		}
		failErr(c, err, "Load hostel", logrus.Fields{"hostel_id": id})
		return nil, false
	}
	return &h, true
}

// nameTaken reports whether another hostel already uses name
func nameTaken(db *gorm.DB, name string, exceptID uint) (bool, error) {
	var n int64
	err := db.Model(&domain.Hostel{}).Where("name = ? AND id <> ?", name, exceptID).Count(&n).Error
	return n > 0, err
}

func occupants(db *gorm.DB, hostelID uint) (int64, error) {
	var n int64
	err := db.Model(&domain.Student{}).Where("hostel_id = ? AND active = ?", hostelID, true).Count(&n).Error
	return n, err
}

// ListHostelsHandler lists hostels with their occupancy
func ListHostelsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var hostels []domain.Hostel
		if err := db.WithContext(c.Request.Context()).Order("name").Find(&hostels).Error; err != nil {
			failErr(c, err, "List hostels", nil)
			return
		}
		out := make([]HostelResponse, 0, len(hostels))
		for _, h := range hostels {
			n, err := occupants(db, h.ID)
			if err != nil {
				failErr(c, err, "List hostels", logrus.Fields{"hostel_id": h.ID})
				return
			}
			out = append(out, HostelResponse{Hostel: h, Occupants: n})
		}
		respond(c, http.StatusOK, out)
	}
}

// CreateHostelHandler creates a hostel
func CreateHostelHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req HostelRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.BoardingFee.IsNegative() {
			fail(c, http.StatusBadRequest, "boarding_fee must not be negative")
			return
		}
		taken, err := nameTaken(db, req.Name, 0)
		if err != nil {
			failErr(c, err, "Create hostel", nil)
			return
		}
		if taken {
			fail(c, http.StatusConflict, "Hostel name already in use")
			return
		}
		h := domain.Hostel{Name: req.Name, Capacity: req.Capacity, BoardingFee: req.BoardingFee.Round(2)}
		if err := db.Create(&h).Error; err != nil {
			failErr(c, err, "Create hostel", logrus.Fields{"name": h.Name})
			return
		}
		respond(c, http.StatusCreated, h)
	}
}

// UpdateHostelHandler replaces a hostel. Capacity cannot drop below the
// current occupancy.
func UpdateHostelHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		h, ok := loadHostel(c, db)
		if !ok {
			return
		}
		var req HostelRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.BoardingFee.IsNegative() {
			fail(c, http.StatusBadRequest, "boarding_fee must not be negative")
			return
		}
		taken, err := nameTaken(db, req.Name, h.ID)
		if err != nil {
			failErr(c, err, "Update hostel", logrus.Fields{"hostel_id": h.ID})
			return
		}
		if taken {
			fail(c, http.StatusConflict, "Hostel name already in use")
			return
		}
		n, err := occupants(db, h.ID)
		if err != nil {
			failErr(c, err, "Update hostel", logrus.Fields{"hostel_id": h.ID})
			return
		}
		if int64(req.Capacity) < n {
			fail(c, http.StatusUnprocessableEntity, "capacity is below the current number of occupants")
			return
		}
		h.Name = req.Name
		h.Capacity = req.Capacity
		h.BoardingFee = req.BoardingFee.Round(2)
		if err := db.Save(h).Error; err != nil {
			failErr(c, err, "Update hostel", logrus.Fields{"hostel_id": h.ID})
			return
		}
		respond(c, http.StatusOK, h)
	}
}

// DeleteHostelHandler deletes an empty hostel
func DeleteHostelHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		h, ok := loadHostel(c, db)
		if !ok {
			return
		}
		var assigned int64 // Any student, active or not, still pointing at it
		if err := db.Model(&domain.Student{}).Where("hostel_id = ?", h.ID).Count(&assigned).Error; err != nil {
			failErr(c, err, "Delete hostel", logrus.Fields{"hostel_id": h.ID})
			return
		}
		if assigned > 0 {
			fail(c, http.StatusConflict, "Hostel still has students assigned")
			return
		}
		if err := db.Delete(&domain.Hostel{}, h.ID).Error; err != nil {
			failErr(c, err, "Delete hostel", logrus.Fields{"hostel_id": h.ID})
			return
		}
		respond(c, http.StatusOK, gin.H{"id": h.ID})
	}
}

// AssignHostelHandler places a student in a hostel and charges the boarding fee
func AssignHostelHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		hostelID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req AssignHostelRequest
		if !bindJSON(c, &req) {
			return
		}
		due, _ := parseDate(req.DueDate) // Format already validated
		a, err := lg.AssignHostel(c.Request.Context(), hostelID, req.StudentID, due)
		if err != nil {
			failErr(c, err, "Assign hostel", logrus.Fields{"hostel_id": hostelID, "student_id": req.StudentID})
			return
		}
		logrus.WithFields(logrus.Fields{
			"hostel_id":  hostelID,                        // Hostel ID
			"student_id": req.StudentID,                   // Student ID
			"timestamp":  time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Student assigned to hostel")
		invalidateLedger(rdb) // Balances changed
		respond(c, http.StatusOK, gin.H{"hostel_id": hostelID, "student_id": req.StudentID, "assignment": a})
	}
}
