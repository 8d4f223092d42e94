// Package validation checks registration payloads field by field. Every rule
// runs in one pass and every violation is collected, so a client sees the
// full list at once instead of fixing fields one round trip at a time.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"

	"github.com/Lllllllleong/identityonboardflow/internal/models"
)

var (
	telephonePattern = regexp.MustCompile(`^\d{7,15}$`)
	alphanumPattern  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// Result reports the outcome of validating one payload. Violations preserve
// field declaration order.
type Result struct {
	Valid      bool
	Violations []models.Violation
}

// ValidateUser applies every field rule to a registration payload.
func ValidateUser(req *models.RegisterUserRequest) Result {
	var violations []models.Violation
	add := func(field, message string) {
		violations = append(violations, models.Violation{Field: field, Message: message})
	}

	checkLength(add, "firstName", req.FirstName, 2, 50)
	checkLength(add, "lastName", req.LastName, 2, 50)
	checkEmail(add, "email", req.Email)
	checkPresence(add, "phoneCountryCode", req.PhoneCountryCode)
	checkTelephone(add, "telephone", req.Telephone)
	checkPresence(add, "idType", req.IDType)
	checkIDNumber(add, "idNumber", req.IDNumber)
	checkLength(add, "department", req.Department, 2, 50)
	checkLength(add, "municipality", req.Municipality, 2, 50)
	checkLength(add, "direction", req.Direction, 5, 255)
	checkMonthlyEarns(add, "monthlyEarns", string(req.MonthlyEarns))

	return Result{Valid: len(violations) == 0, Violations: violations}
}

type addFunc func(field, message string)

func checkPresence(add addFunc, field, value string) {
	if value == "" {
		add(field, field+" is required")
	}
}

func checkLength(add addFunc, field, value string, min, max int) {
	if value == "" {
		add(field, field+" is required")
		return
	}
	if n := len([]rune(value)); n < min || n > max {
		add(field, fmt.Sprintf("%s must be between %d and %d characters", field, min, max))
	}
}

func checkEmail(add addFunc, field, value string) {
	if value == "" {
		add(field, field+" is required")
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		add(field, field+" must be a valid email address")
	}
}

func checkTelephone(add addFunc, field, value string) {
	if value == "" {
		add(field, field+" is required")
		return
	}
	if !telephonePattern.MatchString(value) {
		add(field, field+" must contain 7 to 15 digits")
	}
}

func checkIDNumber(add addFunc, field, value string) {
	if value == "" {
		add(field, field+" is required")
		return
	}
	if !alphanumPattern.MatchString(value) {
		add(field, field+" must be alphanumeric")
	} else if n := len(value); n < 5 || n > 20 {
		add(field, field+" must be between 5 and 20 characters")
	}
}

// checkMonthlyEarns validates the textual form of the number so a value like
// 1500.505 is rejected even though it would survive a float64 round trip.
func checkMonthlyEarns(add addFunc, field, value string) {
	if value == "" {
		add(field, field+" is required")
		return
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		add(field, field+" must be a number")
		return
	}
	if n <= 0 {
		add(field, field+" must be positive")
		return
	}
	if _, frac, ok := strings.Cut(value, "."); ok && len(frac) > 2 {
		add(field, field+" must have at most 2 decimal places")
	}
}
