package registry

import (
	"strings"

	"streamregistry/internal/domain"
)

// ExternalValidator is an optional, pluggable predicate checked after the
// structural rules. Its failure reason is surfaced verbatim.
type ExternalValidator interface {
	Check(domain.StreamDefinition) error
}

// Validate checks a candidate definition for structural well-formedness.
// It never mutates state and runs before any provisioning or log write.
func Validate(def domain.StreamDefinition, ext ExternalValidator) error {
	if strings.TrimSpace(def.Name) == "" {
		return &InvalidDefinitionError{Reason: "stream name is required"}
	}
	if len(def.Placements) == 0 {
		return &InvalidDefinitionError{Stream: def.Name, Reason: "at least one placement is required"}
	}
	if ext != nil {
		if err := ext.Check(def); err != nil {
			return &InvalidDefinitionError{Stream: def.Name, Reason: err.Error()}
		}
	}
	return nil
}
