package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"visual-spec-compiler/internal/models"
	"visual-spec-compiler/internal/validation"
)

// Prompt is what an LLMClient sends to its provider.
type Prompt struct {
	System string
	User   string
	// Schema is the JSON Schema the answer must conform to.
	Schema map[string]any
}

const systemInstruction = `You are an expert Creative Director Agent. Your task is to intelligently modify a Visual Specification JSON based on a natural language instruction.
You MUST return the COMPLETE, MODIFIED JSON object that strictly adheres to the provided schema.
Return exactly one JSON object with two fields: "new_spec" (the full updated specification) and "patch_summary" (one sentence describing the changes).
DO NOT invent new fields or return anything other than that JSON object.
The JSON schema for the output is:
`

// BuildPatchPrompt renders the system instruction, the current Spec and the
// user's instruction.
func BuildPatchPrompt(current models.Spec, instruction string) (Prompt, error) {
	specJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return Prompt{}, fmt.Errorf("encode current spec: %w", err)
	}
	schema := PatchResponseJSONSchema()
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return Prompt{}, fmt.Errorf("encode schema: %w", err)
	}

	var user strings.Builder
	user.WriteString("The CURRENT Visual Spec is:\n\n---\n")
	user.Write(specJSON)
	user.WriteString("\n---\n\n")
	fmt.Fprintf(&user, "Your creative instruction is: **%s**\n\n", instruction)
	user.WriteString("Produce the complete, updated spec and a patch summary.")

	return Prompt{
		System: systemInstruction + string(schemaJSON),
		User:   user.String(),
		Schema: schema,
	}, nil
}

// Every schema member is listed as required; optional ones are nullable.
var (
	specFields     = []string{"product_name", "scene_description", "camera", "lighting", "color_palette", "seed", "spec_version"}
	cameraFields   = []string{"angle", "fov", "aspect_ratio"}
	lightingFields = []string{"style", "color_temperature"}
)

// PatchResponseJSONSchema describes {new_spec, patch_summary} with the same
// constraints models.ParseSpec enforces. It is valid for OpenAI strict mode,
// which has no minLength, so the length floors live in the descriptions.
func PatchResponseJSONSchema() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	enum := func(desc string, values []string) map[string]any {
		return map[string]any{"type": "string", "description": desc, "enum": values}
	}

	spec := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             specFields,
		"properties": map[string]any{
			"product_name": str(fmt.Sprintf("The primary subject of the image, at least %d characters.", models.MinProductNameLength)),
			"scene_description": str(fmt.Sprintf("The setting or context for the image, at least %d characters.",
				models.MinSceneDescriptionLength)),
			"camera": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             cameraFields,
				"properties": map[string]any{
					"angle":        enum("Camera perspective angle.", models.Strings(models.CameraAngles())),
					"fov":          str("Field of view, e.g. wide-angle, telephoto, normal."),
					"aspect_ratio": enum("Output image aspect ratio.", models.Strings(models.AspectRatios())),
				},
			},
			"lighting": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             lightingFields,
				"properties": map[string]any{
					"style":             enum("Style and quality of illumination.", models.Strings(models.LightingStyles())),
					"color_temperature": str("Color mood, e.g. warm, cool, neutral, vibrant."),
				},
			},
			"color_palette": map[string]any{
				"type":        []string{"array", "null"},
				"description": "1 to 5 primary hex color codes, e.g. #FFFFFF.",
				"minItems":    models.MinPaletteColors,
				"maxItems":    models.MaxPaletteColors,
				"items":       map[string]any{"type": "string", "pattern": validation.HexColorPattern},
			},
			"seed": map[string]any{
				"type":        []string{"integer", "null"},
				"minimum":     0,
				"description": "Optional seed for deterministic generation.",
			},
			"spec_version": enum("Version of this specification schema.", []string{models.SpecVersion}),
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"new_spec", "patch_summary"},
		"properties": map[string]any{
			"new_spec":      spec,
			"patch_summary": str("A one-sentence summary of the changes made to the spec."),
		},
	}
}
