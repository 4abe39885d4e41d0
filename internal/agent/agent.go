package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"visual-spec-compiler/internal/models"
	"visual-spec-compiler/internal/validation"
)

const DefaultTimeout = 60 * time.Second

// Result is a proposed Spec and a one-sentence description of the change.
type Result struct {
	NewSpec      models.Spec `json:"new_spec"`
	PatchSummary string      `json:"patch_summary"`
}

// Proposer turns a natural-language instruction into a new Spec. The current
// Spec is never modified.
type Proposer interface {
	ProposePatch(ctx context.Context, current models.Spec, instruction string) (*Result, error)
}

// LLMClient sends one prompt and returns the raw text of the answer.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Agent is the LLM-backed Proposer.
type Agent struct {
	llm     LLMClient
	timeout time.Duration
	logger  *slog.Logger
}

func NewAgent(llm LLMClient, timeout time.Duration, logger *slog.Logger) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{llm: llm, timeout: timeout, logger: logger}, nil
}

func (a *Agent) ProposePatch(ctx context.Context, current models.Spec, instruction string) (*Result, error) {
	if err := validation.ValidateInstruction(instruction); err != nil {
		return nil, err
	}

	prompt, err := BuildPatchPrompt(current, instruction)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrEmptyCompletion) {
			return nil, &ResponseError{Err: err}
		}
		return nil, &UnavailableError{Err: err}
	}
	a.logger.InfoContext(ctx, "agent completion received", "duration", time.Since(start), "bytes", len(raw))

	res, err := ParsePatchResponse(raw)
	if err != nil {
		return nil, &ResponseError{Err: err}
	}
	return res, nil
}

// ParsePatchResponse decodes and validates the raw LLM answer. Anything that
// is not exactly {new_spec, patch_summary} with a valid Spec is rejected.
func ParsePatchResponse(raw string) (*Result, error) {
	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return nil, errors.New("empty response")
	}

	var out struct {
		NewSpec      json.RawMessage `json:"new_spec"`
		PatchSummary *string         `json:"patch_summary"`
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if dec.More() {
		return nil, errors.New("trailing data after response object")
	}

	if len(out.NewSpec) == 0 || bytes.Equal(out.NewSpec, []byte("null")) {
		return nil, errors.New("response is missing new_spec")
	}
	spec, err := models.ParseSpecStrict(out.NewSpec)
	if err != nil {
		return nil, fmt.Errorf("new_spec: %w", err)
	}

	if out.PatchSummary == nil || strings.TrimSpace(*out.PatchSummary) == "" {
		return nil, errors.New("response is missing patch_summary")
	}

	return &Result{NewSpec: spec, PatchSummary: strings.TrimSpace(*out.PatchSummary)}, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
