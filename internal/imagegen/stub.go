package imagegen

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"visual-spec-compiler/internal/models"
)

const StubImageBaseURL = "https://mockstorage.dev/images/"

// Stub stands in for the provider when no credentials are configured. It
// still builds the payload so invalid enum mappings surface the same way.
type Stub struct {
	logger *slog.Logger
}

func NewStub(logger *slog.Logger) *Stub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stub{logger: logger}
}

func (s *Stub) Generate(ctx context.Context, spec models.Spec) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Err: err}
	}
	payload := ToProviderPayload(spec)
	s.logger.DebugContext(ctx, "stub image generation", "prompt", payload.Prompt, "seed", payload.Seed)

	return &Result{
		Success:    true,
		ImageURL:   StubImageBaseURL + uuid.NewString() + ".jpg",
		InternalID: uuid.NewString(),
	}, nil
}
