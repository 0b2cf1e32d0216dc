package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownEnvelope describes a payload matching neither the typed
	// envelope nor the legacy flat form.
	ErrUnknownEnvelope = errors.New("payload is neither an enveloped event nor a flat legacy event")
)

type (
	// Metadata carries the identifiers that stitch a saga together
	// across services, plus the distributed-trace context.
	Metadata struct {
		EventID       string    `json:"eventId"`
		CorrelationID string    `json:"correlationId"`
		Traceparent   string    `json:"traceparent,omitempty"`
		Timestamp     time.Time `json:"timestamp"`
		Source        string    `json:"source,omitempty"`
	}

	// Envelope is the canonical wire form: {type, data, metadata}.
	Envelope struct {
		Type     string         `json:"type"`
		Data     map[string]any `json:"data"`
		Metadata Metadata       `json:"metadata"`
	}
)

func (e Envelope) marshal() ([]byte, error) {
	content, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("could not marshal envelope: %w", err)
	}

	return content, nil
}

// Normalize parses a raw message body into the canonical envelope.
//
// Two shapes are accepted: the typed envelope {type, data, metadata}
// and the legacy flat form where the event fields sit at the top level
// and the event type rides in an "eventType" (or "type") string field.
// Downstream code only ever sees the canonical record.
func Normalize(body []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Type != "" && envelope.Data != nil {
		return envelope, nil
	}

	var flat map[string]any
	if err := json.Unmarshal(body, &flat); err != nil {
		return Envelope{}, fmt.Errorf("could not parse message body: %w", err)
	}

	eventType := stringField(flat, "eventType")
	if eventType == "" {
		eventType = stringField(flat, "type")
	}

	if eventType == "" {
		return Envelope{}, ErrUnknownEnvelope
	}

	metadata := Metadata{
		EventID:       stringField(flat, "eventId"),
		CorrelationID: stringField(flat, "correlationId"),
		Timestamp:     time.Now().UTC(),
	}

	delete(flat, "eventType")
	delete(flat, "type")
	delete(flat, "eventId")
	delete(flat, "correlationId")

	return Envelope{
		Type:     eventType,
		Data:     flat,
		Metadata: metadata,
	}, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}

	return ""
}
