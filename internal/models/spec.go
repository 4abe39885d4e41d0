package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"visual-spec-compiler/internal/validation"
)

const (
	SpecVersion = "v1.0"

	MinProductNameLength      = 3
	MinSceneDescriptionLength = 5
	MinPaletteColors          = 1
	MaxPaletteColors          = 5

	DefaultFieldOfView      = "normal"
	DefaultColorTemperature = "neutral"
)

type Camera struct {
	Angle       CameraAngle `json:"angle"`
	FieldOfView string      `json:"fov"`
	AspectRatio AspectRatio `json:"aspect_ratio"`
}

type Lighting struct {
	Style            LightingStyle `json:"style"`
	ColorTemperature string        `json:"color_temperature"`
}

// SpecFields is the editable shape of a Spec. It carries no guarantees until
// passed through NewSpec.
type SpecFields struct {
	ProductName      string
	SceneDescription string
	Camera           Camera
	Lighting         Lighting
	// nil means no palette; an empty non-nil slice is rejected.
	ColorPalette []string
	// nil means non-deterministic generation.
	Seed *int64
}

// Spec is a validated product image specification. Values are immutable: use
// With to derive a changed copy.
type Spec struct {
	productName      string
	sceneDescription string
	camera           Camera
	lighting         Lighting
	colorPalette     []string
	seed             *int64
}

// NewSpec fills defaults for empty camera and lighting fields and validates
// the result.
func NewSpec(f SpecFields) (Spec, error) {
	f = f.clone()
	if f.Camera.Angle == "" {
		f.Camera.Angle = CameraEyeLevel
	}
	if f.Camera.FieldOfView == "" {
		f.Camera.FieldOfView = DefaultFieldOfView
	}
	if f.Camera.AspectRatio == "" {
		f.Camera.AspectRatio = AspectSquare
	}
	if f.Lighting.Style == "" {
		f.Lighting.Style = LightingStudioSoft
	}
	if f.Lighting.ColorTemperature == "" {
		f.Lighting.ColorTemperature = DefaultColorTemperature
	}

	var c validation.Collector
	f.validate(&c)
	if err := c.Err(); err != nil {
		return Spec{}, err
	}

	return Spec{
		productName:      f.ProductName,
		sceneDescription: f.SceneDescription,
		camera:           f.Camera,
		lighting:         f.Lighting,
		colorPalette:     f.ColorPalette,
		seed:             f.Seed,
	}, nil
}

func (f SpecFields) validate(c *validation.Collector) {
	c.MinLength("product_name", f.ProductName, MinProductNameLength)
	c.MinLength("scene_description", f.SceneDescription, MinSceneDescriptionLength)
	c.OneOf("camera.angle", string(f.Camera.Angle), Strings(CameraAngles()))
	c.OneOf("camera.aspect_ratio", string(f.Camera.AspectRatio), Strings(AspectRatios()))
	c.OneOf("lighting.style", string(f.Lighting.Style), Strings(LightingStyles()))
	if f.ColorPalette != nil {
		c.LengthBetween("color_palette", len(f.ColorPalette), MinPaletteColors, MaxPaletteColors)
		for i, color := range f.ColorPalette {
			c.HexColor("color_palette."+strconv.Itoa(i), color)
		}
	}
	if f.Seed != nil {
		c.NonNegative("seed", *f.Seed)
	}
}

func (f SpecFields) clone() SpecFields {
	if f.ColorPalette != nil {
		f.ColorPalette = slices.Clone(f.ColorPalette)
	}
	if f.Seed != nil {
		seed := *f.Seed
		f.Seed = &seed
	}
	return f
}

func (s Spec) ProductName() string      { return s.productName }
func (s Spec) SceneDescription() string { return s.sceneDescription }
func (s Spec) Camera() Camera           { return s.camera }
func (s Spec) Lighting() Lighting       { return s.lighting }
func (s Spec) SpecVersion() string      { return SpecVersion }

// ColorPalette returns a copy of the palette, nil when none was given.
func (s Spec) ColorPalette() []string {
	if s.colorPalette == nil {
		return nil
	}
	return slices.Clone(s.colorPalette)
}

func (s Spec) Seed() (int64, bool) {
	if s.seed == nil {
		return 0, false
	}
	return *s.seed, true
}

// Fields returns an independent editable copy of s.
func (s Spec) Fields() SpecFields {
	return SpecFields{
		ProductName:      s.productName,
		SceneDescription: s.sceneDescription,
		Camera:           s.camera,
		Lighting:         s.lighting,
		ColorPalette:     s.colorPalette,
		Seed:             s.seed,
	}.clone()
}

// With derives a new Spec from s plus the changes made by edit. s is left
// untouched.
func (s Spec) With(edit func(*SpecFields)) (Spec, error) {
	f := s.Fields()
	edit(&f)
	return NewSpec(f)
}

func (s Spec) Equal(o Spec) bool {
	if s.productName != o.productName || s.sceneDescription != o.sceneDescription ||
		s.camera != o.camera || s.lighting != o.lighting ||
		!slices.Equal(s.colorPalette, o.colorPalette) || (s.colorPalette == nil) != (o.colorPalette == nil) {
		return false
	}
	sa, okA := s.Seed()
	sb, okB := o.Seed()
	return okA == okB && sa == sb
}

// IsZero reports whether s was never constructed.
func (s Spec) IsZero() bool {
	return s.productName == "" && s.sceneDescription == ""
}

type specJSON struct {
	ProductName      string   `json:"product_name"`
	SceneDescription string   `json:"scene_description"`
	Camera           Camera   `json:"camera"`
	Lighting         Lighting `json:"lighting"`
	ColorPalette     []string `json:"color_palette"`
	Seed             *int64   `json:"seed"`
	SpecVersion      string   `json:"spec_version"`
}

func (s Spec) MarshalJSON() ([]byte, error) {
	return json.Marshal(specJSON{
		ProductName:      s.productName,
		SceneDescription: s.sceneDescription,
		Camera:           s.camera,
		Lighting:         s.lighting,
		ColorPalette:     s.colorPalette,
		Seed:             s.seed,
		SpecVersion:      SpecVersion,
	})
}

func (s *Spec) UnmarshalJSON(data []byte) error {
	parsed, err := ParseSpec(data)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// rawObject holds the members of an untrusted JSON object so each one can be
// type-checked on its own.
type rawObject map[string]json.RawMessage

var (
	specKeys     = []string{"product_name", "scene_description", "camera", "lighting", "color_palette", "seed", "spec_version"}
	cameraKeys   = []string{"angle", "fov", "aspect_ratio"}
	lightingKeys = []string{"style", "color_temperature"}
)

var errNotObject = errors.New("must be a JSON object")

// ParseSpec validates untrusted JSON and builds a Spec. Unknown fields are
// ignored. The returned *validation.Error lists every violated constraint.
func ParseSpec(data []byte) (Spec, error) {
	return parseSpec(data, false)
}

// ParseSpecStrict is ParseSpec but rejects fields outside the schema.
func ParseSpecStrict(data []byte) (Spec, error) {
	return parseSpec(data, true)
}

func parseSpec(data []byte, strict bool) (Spec, error) {
	p := specParser{strict: strict}

	top, err := decodeObject(data)
	if err != nil {
		p.c.Add("", "%s", err.Error())
		return Spec{}, p.c.Err()
	}
	p.unknown("", top, specKeys)

	var f SpecFields
	if p.required(top, "", "product_name") {
		p.member(top, "", "product_name", &f.ProductName, "string")
	}
	if p.required(top, "", "scene_description") {
		p.member(top, "", "scene_description", &f.SceneDescription, "string")
	}
	if camera, ok := p.object(top, "camera"); ok {
		p.unknown("camera", camera, cameraKeys)
		p.member(camera, "camera", "angle", (*string)(&f.Camera.Angle), "string")
		p.member(camera, "camera", "fov", &f.Camera.FieldOfView, "string")
		p.member(camera, "camera", "aspect_ratio", (*string)(&f.Camera.AspectRatio), "string")
	}
	if lighting, ok := p.object(top, "lighting"); ok {
		p.unknown("lighting", lighting, lightingKeys)
		p.member(lighting, "lighting", "style", (*string)(&f.Lighting.Style), "string")
		p.member(lighting, "lighting", "color_temperature", &f.Lighting.ColorTemperature, "string")
	}
	f.ColorPalette = p.palette(top)
	var seed int64
	if p.member(top, "", "seed", &seed, "integer") {
		f.Seed = &seed
	}
	var version string
	if p.member(top, "", "spec_version", &version, "string") && version != SpecVersion {
		p.c.Add("spec_version", "must be %q", SpecVersion)
	}

	// Value checks still run when members are missing or mistyped so every
	// violation is reported in one pass. Those members were reported already.
	spec, err := NewSpec(f)
	var verr *validation.Error
	if errors.As(err, &verr) {
		for _, fe := range verr.Fields {
			if !p.reported(fe.Field) {
				p.c.Add(fe.Field, "%s", fe.Message)
			}
		}
	}
	if err := p.c.Err(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

func decodeObject(data []byte) (rawObject, error) {
	var obj rawObject
	if err := json.Unmarshal(data, &obj); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, errNotObject
		}
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if obj == nil {
		return nil, errNotObject
	}
	return obj, nil
}

type specParser struct {
	c      validation.Collector
	strict bool
	// skip holds paths already reported as missing or mistyped. Value
	// violations on them or below them are dropped.
	skip []string
}

func (p *specParser) reported(field string) bool {
	for _, s := range p.skip {
		if field == s || strings.HasPrefix(field, s+".") {
			return true
		}
	}
	return false
}

func (p *specParser) fail(path, format string, args ...any) {
	p.c.Add(path, format, args...)
	p.skip = append(p.skip, path)
}

func (p *specParser) unknown(prefix string, obj rawObject, known []string) {
	if !p.strict {
		return
	}
	for _, key := range slices.Sorted(maps.Keys(obj)) {
		if !slices.Contains(known, key) {
			p.c.Add(joinPath(prefix, key), "extra fields not permitted")
		}
	}
}

// present reports whether obj has key with a non-null value.
func present(obj rawObject, key string) bool {
	raw, ok := obj[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (p *specParser) required(obj rawObject, prefix, key string) bool {
	path := joinPath(prefix, key)
	if !p.c.Required(path, present(obj, key)) {
		p.skip = append(p.skip, path)
		return false
	}
	return true
}

// member decodes obj[key] into dst. Absent and null members leave dst alone
// and report false; a member of the wrong JSON type is a violation.
func (p *specParser) member(obj rawObject, prefix, key string, dst any, typeName string) bool {
	if !present(obj, key) {
		return false
	}
	if err := json.Unmarshal(obj[key], dst); err != nil {
		p.fail(joinPath(prefix, key), "must be of type %s", typeName)
		return false
	}
	return true
}

func (p *specParser) object(obj rawObject, key string) (rawObject, bool) {
	if !p.required(obj, "", key) {
		return nil, false
	}
	nested, err := decodeObject(obj[key])
	if err != nil {
		p.fail(key, "must be of type object")
		return nil, false
	}
	return nested, true
}

// palette returns nil when color_palette is absent and a non-nil slice
// otherwise, so an explicit empty list is still rejected by NewSpec.
func (p *specParser) palette(obj rawObject) []string {
	var items []json.RawMessage
	if !p.member(obj, "", "color_palette", &items, "array") {
		return nil
	}
	colors := make([]string, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &colors[i]); err != nil || bytes.Equal(item, []byte("null")) {
			p.fail("color_palette."+strconv.Itoa(i), "must be of type string")
		}
	}
	return colors
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
