package narrative

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSnapshot is matched by every validation failure.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// ValidationError describes one violated snapshot invariant.
type ValidationError struct {
	Field   string `json:"field"` // Path to the offending field, e.g. chapters[2].events[0].chapterId
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Message, e.Value)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSnapshot
}

// ValidationErrors aggregates every violation found in one snapshot.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return fmt.Sprintf("%s: %s", ErrInvalidSnapshot, strings.Join(msgs, "; "))
}

func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidSnapshot
}

// IsValidationError reports whether err carries snapshot validation details.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var list ValidationErrors
	var single *ValidationError
	return errors.As(err, &list) || errors.As(err, &single)
}
