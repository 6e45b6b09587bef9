package validate

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"estatelist/internal/domain"
)

var (
	ErrRequired  = errors.New("all fields are required")
	ErrNotNumber = errors.New("price and size must be numbers")
	ErrInvalidID = errors.New("invalid property id")
	ErrTooLong   = errors.New("address and description must be at most 200 characters")
)

var (
	reID   = regexp.MustCompile(`^[0-9]{1,18}$`)
	rePage = regexp.MustCompile(`^[0-9]{1,9}$`)
)

// MaxText is the longest address or description accepted, in characters.
const MaxText = 200

// ID validates a property id typed by the user: trimmed, digits only.
func ID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !reID.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Page parses a page number; anything invalid or below 1 yields def.
func Page(s string, def int) int {
	s = strings.TrimSpace(s)
	if !rePage.MatchString(s) {
		return def
	}
	n, _ := strconv.Atoi(s)
	if n < 1 {
		return def
	}
	return n
}

// Number coerces a trimmed decimal string to a finite float.
func Number(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Text trims a free-text value and clips it to MaxText characters.
// Only for values that are not stored, such as filters and log fields.
func Text(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxText {
		return s
	}
	r := []rune(s)
	return string(r[:MaxText])
}

// Property checks the four editable fields and coerces price and size.
// Empty fields win over the other errors so the user sees the simpler message first.
// Over-long text is rejected, never shortened.
func Property(address, price, size, description string) (domain.PropertyInput, error) {
	address, price = strings.TrimSpace(address), strings.TrimSpace(price)
	size, description = strings.TrimSpace(size), strings.TrimSpace(description)
	if address == "" || price == "" || size == "" || description == "" {
		return domain.PropertyInput{}, ErrRequired
	}
	if utf8.RuneCountInString(address) > MaxText || utf8.RuneCountInString(description) > MaxText {
		return domain.PropertyInput{}, ErrTooLong
	}
	p, okP := Number(price)
	s, okS := Number(size)
	if !okP || !okS {
		return domain.PropertyInput{}, ErrNotNumber
	}
	return domain.PropertyInput{Address: address, Price: p, Size: s, Description: description}, nil
}

// Filter trims the three optional filter fields.
func Filter(location, price, size string) domain.Filter {
	return domain.Filter{Location: Text(location), Price: Text(price), Size: Text(size)}
}
