package api

import (
	"net/http"                      // HTTP status codes
	"school_ledger/internal/domain" // Importing domain models
	"school_ledger/internal/ledger" // Ledger operations
	"time"                          // Due dates and log timestamps

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/pkg/errors"         // Error matching
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// InvoiceItemRequest is one line of an invoice structure
type InvoiceItemRequest struct {
	Description string          `json:"description" binding:"required,max=255"`
	Category    string          `json:"category" binding:"omitempty,fee_category"`
	Amount      decimal.Decimal `json:"amount"`
}

// InstallmentRequest is one instalment of the payment plan
type InstallmentRequest struct {
	Label   string `json:"label" binding:"required,max=64"`
	DueDate string `json:"due_date" binding:"required,datetime=2006-01-02"`
	Formula string `json:"formula" binding:"required,max=255"` // e.g. "Total * 0.4"
}

// InvoiceStructureRequest creates or replaces an invoice structure
type InvoiceStructureRequest struct {
	Name            string               `json:"name" binding:"required,max=128"`
	ClassTermYearID uint                 `json:"class_term_year_id" binding:"required"`
	Items           []InvoiceItemRequest `json:"items" binding:"required,min=1,dive"`
	Installments    []InstallmentRequest `json:"installments" binding:"dive"`
}

// build validates amounts and formulas and converts the request to models
func (r InvoiceStructureRequest) build() ([]domain.InvoiceItem, []domain.InstallmentRule, error) {
	items := make([]domain.InvoiceItem, 0, len(r.Items))
	for _, it := range r.Items {
		if !it.Amount.IsPositive() {
			return nil, nil, errors.Wrapf(ledger.ErrInvalidAmount, "item %q", it.Description)
		}
		category := it.Category
		if category == "" {
			category = domain.CategoryTuition
		}
		items = append(items, domain.InvoiceItem{Description: it.Description, Category: category, Amount: it.Amount.Round(2)})
	}
	rules := make([]domain.InstallmentRule, 0, len(r.Installments))
	for _, in := range r.Installments {
		if err := ledger.ValidateFormula(in.Formula); err != nil {
			return nil, nil, err
		}
		due, _ := parseDate(in.DueDate) // Format already validated
		rules = append(rules, domain.InstallmentRule{Label: in.Label, DueDate: due, Formula: in.Formula})
	}
	// The plan must work out against the total before it is stored
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	if _, err := ledger.BuildSchedule(total, rules); err != nil {
		return nil, nil, err
	}
	return items, rules, nil
}

// loadInvoiceStructure answers 404 itself when the structure is missing
func loadInvoiceStructure(c *gin.Context, db *gorm.DB) (*domain.InvoiceStructure, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	var is domain.InvoiceStructure
	if err := db.Preload("Items").Preload("Installments").First(&is, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "Invoice structure not found")
			return nil, false
		}
		failErr(c, err, "Load invoice structure", logrus.Fields{"invoice_structure_id": id})
		return nil, false
	}
	return &is, true
}

// invoiceApplied reports whether any item of the structure has been charged
func invoiceApplied(db *gorm.DB, is *domain.InvoiceStructure) (bool, error) {
	ids := make([]uint, 0, len(is.Items))
	for _, it := range is.Items {
		ids = append(ids, it.ID)
	}
	if len(ids) == 0 {
		return false, nil
	}
	var n int64
	err := db.Model(&domain.FeeAssignment{}).Where("invoice_item_id IN ?", ids).Count(&n).Error
	return n > 0, err
}

// ListInvoiceStructuresHandler lists invoice structures with their items
func ListInvoiceStructuresHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		classID, ok := optionalUint(c, "class_term_year_id")
		if !ok {
			return
		}
		q := db.WithContext(c.Request.Context()).Preload("Items").Preload("Installments")
		if classID != nil {
			q = q.Where("class_term_year_id = ?", *classID) // Filter by class
		}
		var list []domain.InvoiceStructure
		if err := q.Order("id").Find(&list).Error; err != nil {
			failErr(c, err, "List invoice structures", nil)
			return
		}
		respond(c, http.StatusOK, list)
	}
}

// CreateInvoiceStructureHandler creates an invoice structure with its items
// and instalment plan
func CreateInvoiceStructureHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InvoiceStructureRequest
		if !bindJSON(c, &req) {
			return
		}
		items, rules, err := req.build()
		if err != nil {
			failErr(c, err, "Create invoice structure", nil)
			return
		}
		found, err := classExists(db, req.ClassTermYearID)
		if err != nil {
			failErr(c, err, "Create invoice structure", nil)
			return
		}
		if !found {
			fail(c, http.StatusNotFound, "Class not found")
			return
		}
		is := domain.InvoiceStructure{Name: req.Name, ClassTermYearID: req.ClassTermYearID, Items: items, Installments: rules}
		if err := db.Create(&is).Error; err != nil {
			failErr(c, err, "Create invoice structure", logrus.Fields{"name": is.Name})
			return
		}
		respond(c, http.StatusCreated, is)
	}
}

// UpdateInvoiceStructureHandler replaces an invoice structure that has not
// been charged to anyone yet
func UpdateInvoiceStructureHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		is, ok := loadInvoiceStructure(c, db)
		if !ok {
			return
		}
		var req InvoiceStructureRequest
		if !bindJSON(c, &req) {
			return
		}
		items, rules, err := req.build()
		if err != nil {
			failErr(c, err, "Update invoice structure", nil)
			return
		}
		applied, err := invoiceApplied(db, is)
		if err != nil {
			failErr(c, err, "Update invoice structure", logrus.Fields{"invoice_structure_id": is.ID})
			return
		}
		if applied {
			fail(c, http.StatusConflict, "Invoice structure has already been charged to students")
			return
		}
		// Replace the items and plan atomically
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("invoice_structure_id = ?", is.ID).Delete(&domain.InvoiceItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("invoice_structure_id = ?", is.ID).Delete(&domain.InstallmentRule{}).Error; err != nil {
				return err
			}
			for i := range items {
				items[i].InvoiceStructureID = is.ID
			}
			for i := range rules {
				rules[i].InvoiceStructureID = is.ID
			}
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
			if len(rules) > 0 {
				if err := tx.Create(&rules).Error; err != nil {
					return err
				}
			}
			return tx.Model(&domain.InvoiceStructure{}).Where("id = ?", is.ID).
				Updates(map[string]any{"name": req.Name, "class_term_year_id": req.ClassTermYearID}).Error
		})
		if err != nil {
			failErr(c, err, "Update invoice structure", logrus.Fields{"invoice_structure_id": is.ID})
			return
		}
		is.Name = req.Name
		is.ClassTermYearID = req.ClassTermYearID
		is.Items = items
		is.Installments = rules
		respond(c, http.StatusOK, is)
	}
}

// DeleteInvoiceStructureHandler deletes an invoice structure that has not
// been charged to anyone
func DeleteInvoiceStructureHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		is, ok := loadInvoiceStructure(c, db)
		if !ok {
			return
		}
		applied, err := invoiceApplied(db, is)
		if err != nil {
			failErr(c, err, "Delete invoice structure", logrus.Fields{"invoice_structure_id": is.ID})
			return
		}
		if applied {
			fail(c, http.StatusConflict, "Invoice structure has already been charged to students")
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("invoice_structure_id = ?", is.ID).Delete(&domain.InvoiceItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("invoice_structure_id = ?", is.ID).Delete(&domain.InstallmentRule{}).Error; err != nil {
				return err
			}
			return tx.Delete(&domain.InvoiceStructure{}, is.ID).Error
		})
		if err != nil {
			failErr(c, err, "Delete invoice structure", logrus.Fields{"invoice_structure_id": is.ID})
			return
		}
		respond(c, http.StatusOK, gin.H{"id": is.ID})
	}
}

// ApplyInvoiceStructureHandler charges every item to every student of the class
func ApplyInvoiceStructureHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
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
		res, err := lg.ApplyInvoiceStructure(c.Request.Context(), id, due)
		if res.Assigned > 0 {
			invalidateLedger(rdb) // Some students were charged even if a later one failed
		}
		if err != nil {
			failErr(c, err, "Apply invoice structure", logrus.Fields{"invoice_structure_id": id, "assigned": res.Assigned})
			return
		}
		logrus.WithFields(logrus.Fields{
			"invoice_structure_id": id,                              // Invoice structure ID
			"assigned":             res.Assigned,                    // Charges created
			"skipped":              res.Skipped,                     // Charges already present
			"total":                res.Total.StringFixed(2),        // Amount charged
			"timestamp":            time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Invoice structure applied")
		respond(c, http.StatusOK, res)
	}
}

// InstallmentScheduleHandler returns the dated payment plan of an invoice structure
func InstallmentScheduleHandler(lg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		plan, err := lg.InstallmentSchedule(c.Request.Context(), id)
		if err != nil {
			failErr(c, err, "Build schedule", logrus.Fields{"invoice_structure_id": id})
			return
		}
		respond(c, http.StatusOK, plan)
	}
}
