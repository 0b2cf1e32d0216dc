package schema

import (
	"fmt"
	"sync"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

// Registry holds one compiled JSON schema per event type and validates
// normalized event payloads against it. It satisfies the transport's
// Validator interface, so the same registry guards both publish and
// consume paths.
type Registry struct {
	mutex   sync.RWMutex
	schemas map[string]*gojsonschema.Schema
}

// NewRegistry compiles the canonical schemas for every known event type.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		schemas: make(map[string]*gojsonschema.Schema, len(canonicalSchemas)),
	}

	for eventType, raw := range canonicalSchemas {
		if err := r.Register(eventType, raw); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register compiles and stores the schema for an event type, replacing
// any previous registration.
func (r *Registry) Register(eventType, schemaJSON string) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", eventType, err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.schemas[eventType] = compiled

	return nil
}

// Has reports whether a schema is registered for the event type.
func (r *Registry) Has(eventType string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.schemas[eventType]

	return ok
}

// Validate checks the payload against the schema registered for the
// event type. Event types without a registered schema pass unchecked.
// A failure is reported as a domain.ValidationError carrying every
// violated constraint.
func (r *Registry) Validate(eventType string, data map[string]any) error {
	r.mutex.RLock()
	compiled, ok := r.schemas[eventType]
	r.mutex.RUnlock()

	if !ok {
		return nil
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation for %s: %w", eventType, err)
	}

	if result.Valid() {
		return nil
	}

	reasons := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		reasons = append(reasons, desc.String())
	}

	return &domain.ValidationError{
		EventType: domain.EventType(eventType),
		Reasons:   reasons,
	}
}
