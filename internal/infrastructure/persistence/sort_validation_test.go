package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		fallback string
		expected string
	}{
		{"empty string returns fallback", "", "ASC", "ASC"},
		{"asc lowercase returns ASC", "asc", "DESC", "ASC"},
		{"whitespace around desc returns DESC", "  desc ", "ASC", "DESC"},
		{"sql injection attempt returns fallback", "ASC; DROP TABLE connectors;--", "DESC", "DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input, tt.fallback))
		})
	}
}
