package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"visual-spec-compiler/internal/history"
	"visual-spec-compiler/internal/imagegen"
	"visual-spec-compiler/internal/models"
)

// ImageMirror copies a provider image into storage we control.
type ImageMirror interface {
	Copy(ctx context.Context, src, name string) (string, error)
}

// GenerationResult is what a successful Generate returns to the handler.
type GenerationResult struct {
	Record     *models.GenerationHistory `json:"record"`
	InternalID string                    `json:"internal_id"`
}

type GenerationService struct {
	Generator imagegen.Generator
	Store     history.Store
	// Mirror is optional; nil keeps the provider URL.
	Mirror ImageMirror
	Logger *slog.Logger
}

func NewGenerationService(gen imagegen.Generator, store history.Store, mirror ImageMirror, logger *slog.Logger) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{Generator: gen, Store: store, Mirror: mirror, Logger: logger}
}

// Generate renders spec and appends the attempt to history. A failed
// generation is recorded with status failed and the provider error is
// returned unchanged.
func (s *GenerationService) Generate(ctx context.Context, spec models.Spec) (*GenerationResult, error) {
	if spec.IsZero() {
		return nil, errors.New("generate: empty spec")
	}

	id := uuid.NewString()
	log := s.Logger.With("generation_uuid", id)

	start := time.Now()
	res, err := s.Generator.Generate(ctx, spec)
	if err != nil {
		log.WarnContext(ctx, "image generation failed", "error", err, "duration", time.Since(start))
		s.recordFailure(ctx, id, spec)
		return nil, fmt.Errorf("generate image: %w", err)
	}
	log.InfoContext(ctx, "image generated", "internal_id", res.InternalID, "duration", time.Since(start))

	imageURL := res.ImageURL
	if s.Mirror != nil {
		mirrored, err := s.Mirror.Copy(ctx, res.ImageURL, id)
		if err != nil {
			log.WarnContext(ctx, "image mirror failed, keeping provider url", "error", err)
		} else {
			imageURL = mirrored
		}
	}

	rec, err := models.NewGenerationHistory(id, spec, imageURL, models.StatusSuccess)
	if err != nil {
		return nil, err
	}
	saved, err := s.Store.Append(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("save generation record: %w", err)
	}

	return &GenerationResult{Record: saved, InternalID: res.InternalID}, nil
}

// recordFailure appends a failed record, even when ctx is already cancelled.
func (s *GenerationService) recordFailure(ctx context.Context, id string, spec models.Spec) {
	rec, err := models.NewGenerationHistory(id, spec, "", models.StatusFailed)
	if err == nil {
		_, err = s.Store.Append(context.WithoutCancel(ctx), rec)
	}
	if err != nil {
		s.Logger.ErrorContext(ctx, "failed to record failed generation", "generation_uuid", id, "error", err)
	}
}

func (s *GenerationService) GetHistory(ctx context.Context, id string) (*models.GenerationHistory, error) {
	return s.Store.GetByUUID(ctx, id)
}

// ListHistory returns every record, newest first. Never nil.
func (s *GenerationService) ListHistory(ctx context.Context) ([]models.GenerationHistory, error) {
	records, err := s.Store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.GenerationHistory{}
	}
	return records, nil
}
