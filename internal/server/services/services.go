// Package services contains server-side business logic: registration and the
// login session lifecycle, account management and balance mutations.
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/server/auth"
	"github.com/go-playground/validator/v10"
)

// PasswordHasher hashes user passwords. Compare never fails; a malformed
// hash is a mismatch.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, hashed string) bool
}

// TokenHasher hashes issued tokens before they are stored.
type TokenHasher interface {
	Hash(token string) (string, error)
	Compare(token, hashed string) bool
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(subjectID, username, fullName, role string, ttl time.Duration, sessionID string) (string, time.Time, error)
	Parse(token string) (*auth.Claims, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct tag validation and reports failures as
// common.ErrorValidation.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email address")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s must be a date in %s format", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed validation for %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", common.ErrorValidation, strings.Join(msgs, "; "))
}
