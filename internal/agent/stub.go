package agent

import (
	"context"
	"log/slog"

	"visual-spec-compiler/internal/models"
	"visual-spec-compiler/internal/validation"
)

const (
	StubChangedSummary   = "The lighting style was changed to dramatic cinematic."
	StubUnchangedSummary = "No changes were needed based on the instruction."
)

// Stub keeps the patch endpoint usable without LLM credentials. It ignores the
// instruction and only ever switches the lighting to dramatic cinematic.
type Stub struct {
	logger *slog.Logger
}

func NewStub(logger *slog.Logger) *Stub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stub{logger: logger}
}

func (s *Stub) ProposePatch(ctx context.Context, current models.Spec, instruction string) (*Result, error) {
	if err := validation.ValidateInstruction(instruction); err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "stub agent patch", "instruction", instruction)

	if current.Lighting().Style == models.LightingDramaticCinematic {
		return &Result{NewSpec: current, PatchSummary: StubUnchangedSummary}, nil
	}

	next, err := current.With(func(f *models.SpecFields) {
		f.Lighting.Style = models.LightingDramaticCinematic
	})
	if err != nil {
		return nil, err
	}
	return &Result{NewSpec: next, PatchSummary: StubChangedSummary}, nil
}
