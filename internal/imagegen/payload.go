package imagegen

import (
	"fmt"

	"visual-spec-compiler/internal/models"
)

const (
	NegativePrompt = "blurry, low quality, noise, artifacts"
	BitDepth       = "8bit"
	// RandomSeed tells the provider to pick its own seed.
	RandomSeed int64 = -1
)

// ProviderPayload is the request body of the FIBO /text-to-image endpoint.
type ProviderPayload struct {
	Prompt                string                `json:"prompt"`
	NegativePrompt        string                `json:"negative_prompt"`
	ControllabilityParams ControllabilityParams `json:"controllability_params"`
	OutputSettings        OutputSettings        `json:"output_settings"`
	Seed                  int64                 `json:"seed"`
}

type ControllabilityParams struct {
	CameraAngle   string   `json:"camera_angle"`
	FOVType       string   `json:"fov_type"`
	LightingStyle string   `json:"lighting_style"`
	ColorScheme   []string `json:"color_scheme"`
}

type OutputSettings struct {
	AspectRatio string `json:"aspect_ratio"`
	BitDepth    string `json:"bit_depth"`
}

// ToProviderPayload maps a Spec onto the provider request. It is pure: the
// same Spec always produces the same payload.
func ToProviderPayload(spec models.Spec) ProviderPayload {
	camera := spec.Camera()
	lighting := spec.Lighting()

	colors := spec.ColorPalette()
	if colors == nil {
		colors = []string{}
	}

	seed := RandomSeed
	if s, ok := spec.Seed(); ok {
		seed = s
	}

	return ProviderPayload{
		Prompt:         spec.ProductName() + ", " + spec.SceneDescription(),
		NegativePrompt: NegativePrompt,
		ControllabilityParams: ControllabilityParams{
			CameraAngle:   cameraAngleParam(camera.Angle),
			FOVType:       camera.FieldOfView,
			LightingStyle: lightingStyleParam(lighting.Style),
			ColorScheme:   colors,
		},
		OutputSettings: OutputSettings{
			AspectRatio: aspectRatioParam(camera.AspectRatio),
			BitDepth:    BitDepth,
		},
		Seed: seed,
	}
}

// The provider vocabulary currently matches ours one to one; every value is
// still listed so that a new enum value fails TestPayloadCoversEveryEnumValue
// instead of leaking through unmapped.

func cameraAngleParam(a models.CameraAngle) string {
	switch a {
	case models.CameraEyeLevel:
		return "eye-level"
	case models.CameraTopDown:
		return "top-down"
	case models.CameraLowAngle:
		return "low-angle"
	case models.CameraDutchAngle:
		return "dutch-angle"
	}
	panic(fmt.Sprintf("imagegen: unmapped camera angle %q", a))
}

func aspectRatioParam(r models.AspectRatio) string {
	switch r {
	case models.AspectSquare:
		return "1:1"
	case models.AspectLandscape:
		return "16:9"
	case models.AspectPortrait:
		return "9:16"
	}
	panic(fmt.Sprintf("imagegen: unmapped aspect ratio %q", r))
}

func lightingStyleParam(s models.LightingStyle) string {
	switch s {
	case models.LightingStudioSoft:
		return "studio soft light"
	case models.LightingHardRim:
		return "hard rim light"
	case models.LightingDramaticCinematic:
		return "dramatic cinematic"
	case models.LightingNaturalDaylight:
		return "natural daylight"
	}
	panic(fmt.Sprintf("imagegen: unmapped lighting style %q", s))
}
