package models

// CameraAngle is the camera perspective.
type CameraAngle string

const (
	CameraEyeLevel   CameraAngle = "eye-level"
	CameraTopDown    CameraAngle = "top-down"
	CameraLowAngle   CameraAngle = "low-angle"
	CameraDutchAngle CameraAngle = "dutch-angle"
)

func CameraAngles() []CameraAngle {
	return []CameraAngle{CameraEyeLevel, CameraTopDown, CameraLowAngle, CameraDutchAngle}
}

func (a CameraAngle) Valid() bool {
	switch a {
	case CameraEyeLevel, CameraTopDown, CameraLowAngle, CameraDutchAngle:
		return true
	}
	return false
}

// AspectRatio of the output image.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

func AspectRatios() []AspectRatio {
	return []AspectRatio{AspectSquare, AspectLandscape, AspectPortrait}
}

func (r AspectRatio) Valid() bool {
	switch r {
	case AspectSquare, AspectLandscape, AspectPortrait:
		return true
	}
	return false
}

// LightingStyle is the style and quality of illumination.
type LightingStyle string

const (
	LightingStudioSoft        LightingStyle = "studio soft light"
	LightingHardRim           LightingStyle = "hard rim light"
	LightingDramaticCinematic LightingStyle = "dramatic cinematic"
	LightingNaturalDaylight   LightingStyle = "natural daylight"
)

func LightingStyles() []LightingStyle {
	return []LightingStyle{LightingStudioSoft, LightingHardRim, LightingDramaticCinematic, LightingNaturalDaylight}
}

func (s LightingStyle) Valid() bool {
	switch s {
	case LightingStudioSoft, LightingHardRim, LightingDramaticCinematic, LightingNaturalDaylight:
		return true
	}
	return false
}

// GenerationStatus is the outcome stored on a history record.
type GenerationStatus string

const (
	StatusSuccess GenerationStatus = "success"
	StatusFailed  GenerationStatus = "failed"
)

func (s GenerationStatus) Valid() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Strings converts an enum list to its wire values.
func Strings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
