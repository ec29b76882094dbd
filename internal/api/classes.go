package api

import (
	"net/http"                      // HTTP status codes
	"school_ledger/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// ClassRequest creates a class for a term of a year
type ClassRequest struct {
	ClassName string `json:"class_name" binding:"required,max=64"`
	Term      int    `json:"term" binding:"required,min=1,max=3"`
	Year      int    `json:"year" binding:"required,min=2000,max=2100"`
}

// ListClassesHandler lists classes, newest year first
func ListClassesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.WithContext(c.Request.Context()).Model(&domain.ClassTermYear{})
		if year := c.Query("year"); year != "" {
			q = q.Where("year = ?", year) // Filter by year
		}
		var classes []domain.ClassTermYear
		if err := q.Order("year desc, term desc, class_name").Find(&classes).Error; err != nil {
			failErr(c, err, "List classes", nil)
			return
		}
		respond(c, http.StatusOK, classes)
	}
}

// CreateClassHandler creates a class-term-year
func CreateClassHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ClassRequest
		if !bindJSON(c, &req) {
			return
		}
		class := domain.ClassTermYear{ClassName: req.ClassName, Term: req.Term, Year: req.Year}
		var n int64
		if err := db.Model(&domain.ClassTermYear{}).
			Where("class_name = ? AND term = ? AND year = ?", class.ClassName, class.Term, class.Year).
			Count(&n).Error; err != nil {
			failErr(c, err, "Create class", nil)
			return
		}
		if n > 0 {
			fail(c, http.StatusConflict, "Class already exists for this term")
			return
		}
		if err := db.Create(&class).Error; err != nil {
			failErr(c, err, "Create class", logrus.Fields{"class_name": class.ClassName})
			return
		}
		respond(c, http.StatusCreated, class)
	}
}
