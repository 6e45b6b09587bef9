package services

import "strconv"

// formatNumber prints a float without a trailing ".0" for whole values.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
