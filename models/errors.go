package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrCaseNotFound = errors.New("case not found")
	ErrStorage      = errors.New("storage error")

	ErrPreconditionFailed    = errors.New("precondition failed")
	ErrDocumentsIncomplete   = fmt.Errorf("%w: both sides must submit documents before judgment can be rendered", ErrPreconditionFailed)
	ErrJudgmentRequired      = fmt.Errorf("%w: initial verdict must be rendered before arguments can be submitted", ErrPreconditionFailed)
	ErrArgumentQuotaExceeded = fmt.Errorf("%w: maximum number of arguments (%d) reached for this side", ErrPreconditionFailed, MaxArgumentsPerSide)
	ErrDocumentReplaced      = fmt.Errorf("%w: document was replaced by a newer upload", ErrPreconditionFailed)
)

// Validationf builds an ErrValidation carrying a user-facing message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
