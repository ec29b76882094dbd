package utils

import (
	"strconv" // Query parameter parsing

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// Page size limits
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination is a page request parsed from the query string
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// ParsePagination reads page and page_size, falling back to defaults for
// missing or out of range values
func ParsePagination(c *gin.Context) Pagination {
	p := Pagination{Page: 1, PageSize: DefaultPageSize}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v // Set page if valid
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 && v <= MaxPageSize {
		p.PageSize = v // Set page size if valid
	}
	return p
}

// Offset is the number of rows before the page
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TotalPages is the number of pages needed for total rows
func (p Pagination) TotalPages(total int64) int {
	return (int(total) + p.PageSize - 1) / p.PageSize
}

// Scope applies the page to a GORM query
func (p Pagination) Scope() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.PageSize)
	}
}

// CacheSuffix identifies the page inside a cache key
func (p Pagination) CacheSuffix() string {
	return ":page:" + strconv.Itoa(p.Page) + ":size:" + strconv.Itoa(p.PageSize)
}
