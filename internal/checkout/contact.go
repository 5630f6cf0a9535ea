package checkout

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/order"
)

// FieldErrors maps a field name to what is wrong with it. Recoverable:
// the user fixes the field and resubmits.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f + " " + e[f])
	}
	return b.String()
}

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateContact checks the required contact fields locally. No
// network call happens until this passes.
func ValidateContact(c order.Contact) FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(c.FirstName) == "" {
		errs["firstName"] = "is required"
	}
	if strings.TrimSpace(c.LastName) == "" {
		errs["lastName"] = "is required"
	}
	if strings.TrimSpace(c.Email) == "" {
		errs["email"] = "is required"
	} else if !emailRx.MatchString(c.Email) {
		errs["email"] = "is not a valid email address"
	}
	if digits := countDigits(c.Phone); digits < 7 {
		errs["phone"] = "is not a valid phone number"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
