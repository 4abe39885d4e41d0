package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visual-spec-compiler/internal/models"
	"visual-spec-compiler/internal/validation"
)

// mockLLM is a test double for LLMClient.
type mockLLM struct {
	completeFunc func(ctx context.Context, prompt Prompt) (string, error)
	calls        int
}

func (m *mockLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	m.calls++
	if m.completeFunc != nil {
		return m.completeFunc(ctx, prompt)
	}
	return "", nil
}

func currentSpec(t *testing.T, style models.LightingStyle) models.Spec {
	t.Helper()
	spec, err := models.NewSpec(models.SpecFields{
		ProductName:      "Aurora Headphones",
		SceneDescription: "on a marble plinth",
		Lighting:         models.Lighting{Style: style},
	})
	require.NoError(t, err)
	return spec
}

const validAnswer = `{
	"new_spec": {
		"product_name": "Aurora Headphones",
		"scene_description": "on a marble plinth in a storm",
		"camera": {"angle": "low-angle", "fov": "normal", "aspect_ratio": "1:1"},
		"lighting": {"style": "dramatic cinematic", "color_temperature": "cool"},
		"color_palette": ["#101010"],
		"seed": null,
		"spec_version": "v1.0"
	},
	"patch_summary": "Made the lighting dramatic and moved the scene into a storm."
}`

func TestAgent_ProposePatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Success/ReturnsValidatedSpec", func(t *testing.T) {
		llm := &mockLLM{completeFunc: func(ctx context.Context, p Prompt) (string, error) {
			assert.Contains(t, p.System, "DO NOT invent new fields")
			assert.Contains(t, p.System, `"patch_summary"`)
			assert.Contains(t, p.User, `"product_name": "Aurora Headphones"`)
			assert.Contains(t, p.User, "make it moody")
			assert.NotNil(t, p.Schema)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return validAnswer, nil
		}}
		a, err := NewAgent(llm, time.Second, nil)
		require.NoError(t, err)

		current := currentSpec(t, models.LightingStudioSoft)
		res, err := a.ProposePatch(ctx, current, "make it moody")
		require.NoError(t, err)

		assert.Equal(t, models.LightingDramaticCinematic, res.NewSpec.Lighting().Style)
		assert.Equal(t, models.CameraLowAngle, res.NewSpec.Camera().Angle)
		assert.Equal(t, "Made the lighting dramatic and moved the scene into a storm.", res.PatchSummary)
		assert.Equal(t, models.LightingStudioSoft, current.Lighting().Style)
	})

	t.Run("Success/ToleratesCodeFence", func(t *testing.T) {
		llm := &mockLLM{completeFunc: func(ctx context.Context, p Prompt) (string, error) {
			return "```json\n" + validAnswer + "\n```", nil
		}}
		a, _ := NewAgent(llm, time.Second, nil)

		_, err := a.ProposePatch(ctx, currentSpec(t, models.LightingStudioSoft), "make it moody")
		assert.NoError(t, err)
	})

	responseErrors := map[string]string{
		"not json":           `Sure! Here is your spec: {`,
		"empty":              ``,
		"spec fails rules":   `{"new_spec":{"product_name":"A","scene_description":"on a plinth","camera":{},"lighting":{"style":"neon"}},"patch_summary":"x"}`,
		"invented field":     `{"new_spec":{"product_name":"Aurora","scene_description":"on a plinth","camera":{},"lighting":{},"mood":"dark"},"patch_summary":"x"}`,
		"extra top field":    `{"new_spec":{"product_name":"Aurora","scene_description":"on a plinth","camera":{},"lighting":{}},"patch_summary":"x","notes":"y"}`,
		"missing new_spec":   `{"patch_summary":"x"}`,
		"missing summary":    `{"new_spec":{"product_name":"Aurora","scene_description":"on a plinth","camera":{},"lighting":{}}}`,
		"blank summary":      `{"new_spec":{"product_name":"Aurora","scene_description":"on a plinth","camera":{},"lighting":{}},"patch_summary":"  "}`,
		"two objects":        `{"new_spec":{"product_name":"Aurora","scene_description":"on a plinth","camera":{},"lighting":{}},"patch_summary":"x"} {}`,
		"spec is not object": `{"new_spec":"dramatic","patch_summary":"x"}`,
	}
	for name, raw := range responseErrors {
		t.Run("Failure/ResponseError/"+name, func(t *testing.T) {
			llm := &mockLLM{completeFunc: func(ctx context.Context, p Prompt) (string, error) { return raw, nil }}
			a, _ := NewAgent(llm, time.Second, nil)

			res, err := a.ProposePatch(ctx, currentSpec(t, models.LightingStudioSoft), "make it moody")
			assert.Nil(t, res)
			var rerr *ResponseError
			assert.True(t, errors.As(err, &rerr), "got %T: %v", err, err)
		})
	}

	t.Run("Failure/EmptyCompletionIsResponseError", func(t *testing.T) {
		llm := &mockLLM{completeFunc: func(ctx context.Context, p Prompt) (string, error) { return "", ErrEmptyCompletion }}
		a, _ := NewAgent(llm, time.Second, nil)

		_, err := a.ProposePatch(ctx, currentSpec(t, models.LightingStudioSoft), "make it moody")
		var rerr *ResponseError
		assert.True(t, errors.As(err, &rerr))
	})

	t.Run("Failure/ProviderErrorIsUnavailable", func(t *testing.T) {
		upstream := errors.New("429 quota exceeded")
		llm := &mockLLM{completeFunc: func(ctx context.Context, p Prompt) (string, error) { return "", upstream }}
		a, _ := NewAgent(llm, time.Second, nil)

		_, err := a.ProposePatch(ctx, currentSpec(t, models.LightingStudioSoft), "make it moody")
		var uerr *UnavailableError
		require.True(t, errors.As(err, &uerr))
		assert.ErrorIs(t, err, upstream)
	})

	t.Run("Failure/TimeoutIsUnavailable", func(t *testing.T) {
		llm := &mockLLM{completeFunc: func(ctx context.Context, p Prompt) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}}
		a, _ := NewAgent(llm, 20*time.Millisecond, nil)

		_, err := a.ProposePatch(ctx, currentSpec(t, models.LightingStudioSoft), "make it moody")
		var uerr *UnavailableError
		require.True(t, errors.As(err, &uerr))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Failure/BlankInstructionNeverCallsLLM", func(t *testing.T) {
		llm := &mockLLM{}
		a, _ := NewAgent(llm, time.Second, nil)

		_, err := a.ProposePatch(ctx, currentSpec(t, models.LightingStudioSoft), "   ")
		var verr *validation.Error
		require.True(t, errors.As(err, &verr))
		assert.True(t, verr.Has("instruction"))
		assert.Zero(t, llm.calls)
	})
}

func TestNewAgent_RequiresLLM(t *testing.T) {
	_, err := NewAgent(nil, 0, nil)
	assert.Error(t, err)
}

func TestStub_ProposePatch(t *testing.T) {
	ctx := context.Background()
	s := NewStub(nil)

	t.Run("ChangesLightingToDramatic", func(t *testing.T) {
		current := currentSpec(t, models.LightingNaturalDaylight)

		res, err := s.ProposePatch(ctx, current, "anything at all")
		require.NoError(t, err)

		assert.Equal(t, models.LightingDramaticCinematic, res.NewSpec.Lighting().Style)
		assert.NotEmpty(t, res.PatchSummary)
		assert.Equal(t, StubChangedSummary, res.PatchSummary)
		assert.Equal(t, models.LightingNaturalDaylight, current.Lighting().Style)

		expected, err := current.With(func(f *models.SpecFields) { f.Lighting.Style = models.LightingDramaticCinematic })
		require.NoError(t, err)
		assert.True(t, expected.Equal(res.NewSpec))
	})

	t.Run("AlreadyDramaticIsUnchanged", func(t *testing.T) {
		current := currentSpec(t, models.LightingDramaticCinematic)

		res, err := s.ProposePatch(ctx, current, "make it moody")
		require.NoError(t, err)

		assert.True(t, current.Equal(res.NewSpec))
		assert.Equal(t, StubUnchangedSummary, res.PatchSummary)
	})

	t.Run("RejectsBlankInstruction", func(t *testing.T) {
		_, err := s.ProposePatch(ctx, currentSpec(t, models.LightingStudioSoft), "")
		var verr *validation.Error
		assert.True(t, errors.As(err, &verr))
	})
}

func TestPatchResponseSchemas_AgreeWithSpecRules(t *testing.T) {
	js := PatchResponseJSONSchema()
	spec := js["properties"].(map[string]any)["new_spec"].(map[string]any)["properties"].(map[string]any)
	camera := spec["camera"].(map[string]any)["properties"].(map[string]any)
	lighting := spec["lighting"].(map[string]any)["properties"].(map[string]any)

	gs := PatchResponseGeminiSchema().Properties["new_spec"].Properties

	assert.Equal(t, camera["angle"].(map[string]any)["enum"], gs["camera"].Properties["angle"].Enum)
	assert.Equal(t, camera["aspect_ratio"].(map[string]any)["enum"], gs["camera"].Properties["aspect_ratio"].Enum)
	assert.Equal(t, lighting["style"].(map[string]any)["enum"], gs["lighting"].Properties["style"].Enum)
	assert.ElementsMatch(t, []string{"new_spec", "patch_summary"}, js["required"])

	t.Run("HexPatternOnPaletteItems", func(t *testing.T) {
		items := spec["color_palette"].(map[string]any)["items"].(map[string]any)
		assert.Equal(t, validation.HexColorPattern, items["pattern"])
		assert.Equal(t, validation.HexColorPattern, gs["color_palette"].Items.Pattern)
	})

	t.Run("StrictModeRequiresEveryProperty", func(t *testing.T) {
		var walk func(path string, node map[string]any)
		walk = func(path string, node map[string]any) {
			props, ok := node["properties"].(map[string]any)
			if !ok {
				return
			}
			assert.Equal(t, false, node["additionalProperties"], path)
			required, _ := node["required"].([]string)
			names := make([]string, 0, len(props))
			for name, child := range props {
				names = append(names, name)
				walk(path+"."+name, child.(map[string]any))
			}
			assert.ElementsMatch(t, names, required, path)
		}
		walk("$", js)

		assert.Equal(t, []string{"integer", "null"}, spec["seed"].(map[string]any)["type"])
		assert.Equal(t, []string{"array", "null"}, spec["color_palette"].(map[string]any)["type"])
	})

	t.Run("StrictAnswerParses", func(t *testing.T) {
		res, err := ParsePatchResponse(`{"new_spec":{"product_name":"Aurora","scene_description":"on a plinth",` +
			`"camera":{"angle":"top-down","fov":"normal","aspect_ratio":"16:9"},` +
			`"lighting":{"style":"hard rim light","color_temperature":"warm"},` +
			`"color_palette":null,"seed":null,"spec_version":"v1.0"},"patch_summary":"Top-down shot."}`)
		require.NoError(t, err)
		assert.Nil(t, res.NewSpec.ColorPalette())
	})
}
