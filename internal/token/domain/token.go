// Package domain defines the core token domain entities and types.
package domain

import (
	"strings"
	"time"

	"github.com/alexfok/gate-controller/internal/errors"
)

// Token is a registered wireless identifier authorized to trigger the gate.
// ID is stored in normalized form (lowercase, separators stripped) so that
// `AA:BB:CC:DD:EE:FF` and `aabbccddeeff` refer to the same token regardless
// of which scan source produced the identifier.
type Token struct {
	ID        string
	Name      string
	Enabled   bool
	CreatedAt time.Time
}

// Domain-specific errors for token operations.
var (
	// ErrTokenNotFound indicates the requested token does not exist.
	ErrTokenNotFound = errors.Wrap(errors.ErrNotFound, "token not found")

	// ErrTokenAlreadyExists indicates a token with the same normalized id exists.
	ErrTokenAlreadyExists = errors.Wrap(errors.ErrConflict, "token already exists")

	// ErrIDRequired indicates the id field is required.
	ErrIDRequired = errors.Wrap(errors.ErrInvalidInput, "id is required")

	// ErrNameRequired indicates the name field is required.
	ErrNameRequired = errors.Wrap(errors.ErrInvalidInput, "name is required")
)

// idSeparators are the characters stripped during normalization. Covers MAC
// address styles (colons, dashes) and UUID dashes, plus stray whitespace.
const idSeparators = ":-_ "

// NormalizeID lowercases an identifier and strips separator characters.
func NormalizeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range strings.ToLower(strings.TrimSpace(id)) {
		if strings.ContainsRune(idSeparators, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
