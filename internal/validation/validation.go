package validation

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	MaxInstructionLength = 2000

	// HexColorPattern matches #RGB and #RRGGBB color codes.
	HexColorPattern = `^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`
)

var hexColor = regexp.MustCompile(HexColorPattern)

// FieldError is one violated constraint on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error lists every violated field constraint of a single input, not just the first.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field has at least one violation.
func (e *Error) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Collector accumulates field errors. The zero value is ready to use.
type Collector struct {
	fields []FieldError
}

func (c *Collector) Add(field, format string, args ...any) {
	c.fields = append(c.fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *Collector) Required(field string, present bool) bool {
	if !present {
		c.Add(field, "field required")
	}
	return present
}

func (c *Collector) MinLength(field, value string, min int) {
	if utf8.RuneCountInString(value) < min {
		c.Add(field, "must be at least %d characters", min)
	}
}

func (c *Collector) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		c.Add(field, "must be one of %s", quoteAll(allowed))
	}
}

func (c *Collector) LengthBetween(field string, n, min, max int) {
	if n < min || n > max {
		c.Add(field, "must contain between %d and %d items", min, max)
	}
}

func (c *Collector) HexColor(field, value string) {
	if !hexColor.MatchString(value) {
		c.Add(field, "must be a hex color code like #FFFFFF")
	}
}

func (c *Collector) NonNegative(field string, n int64) {
	if n < 0 {
		c.Add(field, "must be greater than or equal to 0")
	}
}

// Merge copies the violations of err under prefix. An empty prefix keeps the
// field names as they are. Any other error becomes a violation of prefix itself.
func (c *Collector) Merge(prefix string, err error) {
	var verr *Error
	if !errors.As(err, &verr) {
		c.Add(prefix, "%s", err.Error())
		return
	}
	for _, f := range verr.Fields {
		field := prefix
		switch {
		case prefix == "":
			field = f.Field
		case f.Field != "":
			field = prefix + "." + f.Field
		}
		c.fields = append(c.fields, FieldError{Field: field, Message: f.Message})
	}
}

// Err returns nil when nothing was collected.
func (c *Collector) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &Error{Fields: slices.Clone(c.fields)}
}

// ValidateInstruction checks a natural-language patch instruction.
func ValidateInstruction(instruction string) error {
	var c Collector
	switch {
	case strings.TrimSpace(instruction) == "":
		c.Add("instruction", "field required")
	case utf8.RuneCountInString(instruction) > MaxInstructionLength:
		c.Add("instruction", "must be at most %d characters", MaxInstructionLength)
	}
	return c.Err()
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}
