package imagegen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visual-spec-compiler/internal/models"
)

func mustSpec(t *testing.T, edit func(*models.SpecFields)) models.Spec {
	t.Helper()
	f := models.SpecFields{
		ProductName:      "Aurora Headphones",
		SceneDescription: "on a marble plinth",
	}
	if edit != nil {
		edit(&f)
	}
	spec, err := models.NewSpec(f)
	require.NoError(t, err)
	return spec
}

func TestToProviderPayload_Mapping(t *testing.T) {
	seed := int64(7)
	spec := mustSpec(t, func(f *models.SpecFields) {
		f.Camera = models.Camera{Angle: models.CameraTopDown, FieldOfView: "telephoto", AspectRatio: models.AspectPortrait}
		f.Lighting = models.Lighting{Style: models.LightingNaturalDaylight}
		f.ColorPalette = []string{"#ff0000", "#00ff00"}
		f.Seed = &seed
	})

	p := ToProviderPayload(spec)

	assert.Equal(t, "Aurora Headphones, on a marble plinth", p.Prompt)
	assert.Equal(t, "blurry, low quality, noise, artifacts", p.NegativePrompt)
	assert.Equal(t, ControllabilityParams{
		CameraAngle:   "top-down",
		FOVType:       "telephoto",
		LightingStyle: "natural daylight",
		ColorScheme:   []string{"#ff0000", "#00ff00"},
	}, p.ControllabilityParams)
	assert.Equal(t, OutputSettings{AspectRatio: "9:16", BitDepth: "8bit"}, p.OutputSettings)
	assert.EqualValues(t, 7, p.Seed)
}

func TestToProviderPayload_SeedSentinel(t *testing.T) {
	p := ToProviderPayload(mustSpec(t, nil))
	assert.Equal(t, int64(-1), p.Seed)

	zero := int64(0)
	p = ToProviderPayload(mustSpec(t, func(f *models.SpecFields) { f.Seed = &zero }))
	assert.Equal(t, int64(0), p.Seed)
}

func TestToProviderPayload_EmptyColorScheme(t *testing.T) {
	data, err := json.Marshal(ToProviderPayload(mustSpec(t, nil)))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"color_scheme":[]`)
}

func TestToProviderPayload_Deterministic(t *testing.T) {
	seed := int64(12345)
	spec := mustSpec(t, func(f *models.SpecFields) {
		f.ColorPalette = []string{"#123", "#456", "#789"}
		f.Seed = &seed
	})

	first, err := json.Marshal(ToProviderPayload(spec))
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := json.Marshal(ToProviderPayload(spec))
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestPayloadCoversEveryEnumValue(t *testing.T) {
	for _, a := range models.CameraAngles() {
		assert.NotPanics(t, func() { cameraAngleParam(a) }, "camera angle %q", a)
	}
	for _, r := range models.AspectRatios() {
		assert.NotPanics(t, func() { aspectRatioParam(r) }, "aspect ratio %q", r)
	}
	for _, s := range models.LightingStyles() {
		assert.NotPanics(t, func() { lightingStyleParam(s) }, "lighting style %q", s)
	}
}
