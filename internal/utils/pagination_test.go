package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query string
		want  Pagination
	}{
		{"", Pagination{Page: 1, PageSize: DefaultPageSize}},
		{"?page=3&page_size=10", Pagination{Page: 3, PageSize: 10}},
		{"?page=0&page_size=0", Pagination{Page: 1, PageSize: DefaultPageSize}},
		{"?page=-2&page_size=500", Pagination{Page: 1, PageSize: DefaultPageSize}},
		{"?page=abc&page_size=100", Pagination{Page: 1, PageSize: MaxPageSize}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/students"+tt.query, nil)
			assert.Equal(t, tt.want, ParsePagination(c))
		})
	}
}

func TestPaginationMath(t *testing.T) {
	p := Pagination{Page: 3, PageSize: 20}
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, 0, p.TotalPages(0))
	assert.Equal(t, 1, p.TotalPages(20))
	assert.Equal(t, 3, p.TotalPages(41))
	assert.Equal(t, ":page:3:size:20", p.CacheSuffix())
}
