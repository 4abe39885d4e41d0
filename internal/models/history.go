package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// GenerationHistory is one append-only record of a generation attempt.
type GenerationHistory struct {
	ID   int64  `json:"id"`
	UUID string `json:"uuid"`

	// Spec is the exact Spec JSON used for the generation, kept verbatim for diffing.
	Spec json.RawMessage `json:"spec"`

	GeneratedImageURL string           `json:"generated_image_url"`
	Status            GenerationStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
}

// NewGenerationHistory builds an unsaved record. ID and CreatedAt are assigned
// by the store on append.
func NewGenerationHistory(uuid string, spec Spec, imageURL string, status GenerationStatus) (GenerationHistory, error) {
	if !status.Valid() {
		return GenerationHistory{}, fmt.Errorf("invalid generation status %q", status)
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return GenerationHistory{}, fmt.Errorf("encode spec: %w", err)
	}
	return GenerationHistory{
		UUID:              uuid,
		Spec:              specJSON,
		GeneratedImageURL: imageURL,
		Status:            status,
	}, nil
}

// DecodeSpec parses the stored spec back into a validated Spec.
func (h GenerationHistory) DecodeSpec() (Spec, error) {
	return ParseSpec(h.Spec)
}
