package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rzpsarthak13/smartsync/internal/core"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
)

const maxSoupNameLength = 255

var pathSegment = regexp.MustCompile(`^[A-Za-z0-9_$\-]+$`)

// SpecValidator validates soup names and index specs before they reach the catalog.
type SpecValidator struct{}

// NewSpecValidator creates a new spec validator.
func NewSpecValidator() *SpecValidator {
	return &SpecValidator{}
}

// ValidateSoupName checks that a soup name can be stored in the catalog.
func (sv *SpecValidator) ValidateSoupName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.New(apperrors.ErrInvalid, "soup name cannot be empty")
	}
	if len(name) > maxSoupNameLength {
		return apperrors.Newf(apperrors.ErrInvalid, "soup name exceeds %d characters", maxSoupNameLength)
	}
	if strings.ContainsAny(name, "{}:") {
		return apperrors.Newf(apperrors.ErrInvalid, "soup name %q contains a reserved character", name)
	}
	return nil
}

// ValidateIndexSpecs checks every spec and rejects duplicate or reserved paths.
func (sv *SpecValidator) ValidateIndexSpecs(specs []core.IndexSpec) error {
	if len(specs) == 0 {
		return apperrors.New(apperrors.ErrInvalid, "at least one index spec is required")
	}

	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if err := sv.ValidateIndexSpec(spec); err != nil {
			return err
		}
		if seen[spec.Path] {
			return apperrors.Newf(apperrors.ErrInvalid, "path %q is indexed twice", spec.Path)
		}
		seen[spec.Path] = true
	}
	return nil
}

// ValidateIndexSpec checks a single spec.
func (sv *SpecValidator) ValidateIndexSpec(spec core.IndexSpec) error {
	if spec.Path == "" {
		return apperrors.New(apperrors.ErrInvalid, "index path cannot be empty")
	}
	if _, err := core.ParseIndexType(string(spec.Type)); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("path %q", spec.Path), err)
	}
	if spec.Path == core.SoupPayload {
		return apperrors.Newf(apperrors.ErrInvalid, "path %q is reserved", spec.Path)
	}
	if _, reserved := ReservedColumn(spec.Path); reserved {
		return apperrors.Newf(apperrors.ErrInvalid, "path %q is managed by the store", spec.Path)
	}
	for _, segment := range strings.Split(spec.Path, ".") {
		if !pathSegment.MatchString(segment) {
			return apperrors.Newf(apperrors.ErrInvalid, "invalid segment %q in path %q", segment, spec.Path)
		}
	}
	return nil
}
