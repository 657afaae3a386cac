package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"github.com/gin-gonic/gin" // Gin web framework
)

const (
	defaultPageSize = 20      // Default page size
	maxPageSize     = 100     // Largest page a client may ask for
	maxPage         = 1000000 // Keeps (page-1)*pageSize far from overflow
)

// parsePage reads page and page_size from the query, falling back to defaults.
// A page beyond maxPage answers 400 and reports ok=false.
func parsePage(c *gin.Context) (page, pageSize int, ok bool) {
	page, pageSize = 1, defaultPageSize
	if p := c.Query("page"); p != "" {
		v, err := strconv.Atoi(p)
		if (err == nil && v > maxPage) || errors.Is(err, strconv.ErrRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be at most " + strconv.Itoa(maxPage)})
			return 0, 0, false
		}
		if err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= maxPageSize {
			pageSize = v // Set page size if valid
		}
	}
	return page, pageSize, true
}

// totalPages is the number of pages needed for total items
func totalPages(total int64, pageSize int) int {
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
