package persistence

import (
	"strings"

	"github.com/erp/integration-hub/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns defaultDir if the input is invalid or empty.
func ValidateSortOrder(orderDir, defaultDir string) string {
	switch strings.ToUpper(strings.TrimSpace(orderDir)) {
	case "ASC":
		return "ASC"
	case "DESC":
		return "DESC"
	}
	return defaultDir
}

// applyPage limits q to the filter's page. A zero page size returns every row.
func applyPage(q *gorm.DB, f shared.Filter) *gorm.DB {
	if f.PageSize > 0 {
		q = q.Offset(f.Offset()).Limit(f.PageSize)
	}
	return q
}
