package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"visual-spec-compiler/internal/models"
	"visual-spec-compiler/internal/validation"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the part of genai.Models the agent uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiLLM asks Gemini for schema-constrained JSON output.
type GeminiLLM struct {
	models contentGenerator
	model  string
}

func NewGeminiLLM(ctx context.Context, apiKey, model string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiLLM{models: client.Models, model: model}, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    PatchResponseGeminiSchema(),
		Temperature:       genai.Ptr[float32](0.2),
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt.User), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyCompletion
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyCompletion
	}
	return sb.String(), nil
}

// PatchResponseGeminiSchema is PatchResponseJSONSchema in Gemini's OpenAPI
// subset, so the model is constrained while it generates.
func PatchResponseGeminiSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	enum := func(desc string, values []string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc, Enum: values}
	}

	spec := &genai.Schema{
		Type:             genai.TypeObject,
		Required:         specFields,
		PropertyOrdering: specFields,
		Properties: map[string]*genai.Schema{
			"product_name": {
				Type:        genai.TypeString,
				Description: "The primary subject of the image.",
				MinLength:   genai.Ptr[int64](models.MinProductNameLength),
			},
			"scene_description": {
				Type:        genai.TypeString,
				Description: "The setting or context for the image.",
				MinLength:   genai.Ptr[int64](models.MinSceneDescriptionLength),
			},
			"camera": {
				Type:     genai.TypeObject,
				Required: cameraFields,
				Properties: map[string]*genai.Schema{
					"angle":        enum("Camera perspective angle.", models.Strings(models.CameraAngles())),
					"fov":          str("Field of view, e.g. wide-angle, telephoto, normal."),
					"aspect_ratio": enum("Output image aspect ratio.", models.Strings(models.AspectRatios())),
				},
			},
			"lighting": {
				Type:     genai.TypeObject,
				Required: lightingFields,
				Properties: map[string]*genai.Schema{
					"style":             enum("Style and quality of illumination.", models.Strings(models.LightingStyles())),
					"color_temperature": str("Color mood, e.g. warm, cool, neutral, vibrant."),
				},
			},
			"color_palette": {
				Type:        genai.TypeArray,
				Description: "1 to 5 primary hex color codes, e.g. #FFFFFF.",
				Nullable:    genai.Ptr(true),
				MinItems:    genai.Ptr[int64](models.MinPaletteColors),
				MaxItems:    genai.Ptr[int64](models.MaxPaletteColors),
				Items:       &genai.Schema{Type: genai.TypeString, Pattern: validation.HexColorPattern},
			},
			"seed": {
				Type:        genai.TypeInteger,
				Description: "Optional seed for deterministic generation.",
				Nullable:    genai.Ptr(true),
				Minimum:     genai.Ptr[float64](0),
			},
			"spec_version": enum("Version of this specification schema.", []string{models.SpecVersion}),
		},
	}

	return &genai.Schema{
		Type:             genai.TypeObject,
		Required:         []string{"new_spec", "patch_summary"},
		PropertyOrdering: []string{"new_spec", "patch_summary"},
		Properties: map[string]*genai.Schema{
			"new_spec":      spec,
			"patch_summary": str("A one-sentence summary of the changes made to the spec."),
		},
	}
}
