package validation

import (
	"regexp"

	"github.com/customer-import-api/internal/models"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// FieldError represents a single validation error
type FieldError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Validator checks import rows before they reach the upsert engine.
// Duplicate emails within a batch are deliberately allowed; each row is
// reconciled independently against remote state.
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateRow validates one normalized import row.
func (v *Validator) ValidateRow(row *models.ImportRow) []FieldError {
	var errors []FieldError

	if row.Email == "" {
		errors = append(errors, FieldError{Field: "email", Message: "email is required"})
	} else if !emailRegex.MatchString(row.Email) {
		errors = append(errors, FieldError{Field: "email", Message: "invalid email format", Value: row.Email})
	}

	if row.Username != "" && !usernameRegex.MatchString(row.Username) {
		errors = append(errors, FieldError{
			Field:   "username",
			Message: "username may only contain letters, digits, dots, underscores and dashes",
			Value:   row.Username,
		})
	}

	if row.Password != "" && len(row.Password) < 6 {
		errors = append(errors, FieldError{Field: "password", Message: "password must be at least 6 characters"})
	}

	for _, role := range row.Roles {
		if role == "" {
			errors = append(errors, FieldError{Field: "roles", Message: "roles must not contain empty entries"})
			break
		}
	}

	return errors
}

// ValidateRows validates a batch and splits it into engine-ready rows and
// per-row errors keyed by position.
func (v *Validator) ValidateRows(rows []models.ImportRow) ([]models.ImportRow, []models.RowError) {
	valid := make([]models.ImportRow, 0, len(rows))
	var rowErrors []models.RowError
	for i, row := range rows {
		fieldErrors := v.ValidateRow(&row)
		if len(fieldErrors) == 0 {
			valid = append(valid, row)
			continue
		}
		for _, fe := range fieldErrors {
			rowErrors = append(rowErrors, models.RowError{
				Line:    i + 1,
				Email:   row.Email,
				Field:   fe.Field,
				Message: fe.Message,
			})
		}
	}
	return valid, rowErrors
}
