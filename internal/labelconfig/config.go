package labelconfig

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// Document sources
const (
	SourceLabel   = "label_config"
	SourceSegment = "label_config_segment"
	SourceGlobal  = "global_config"
	SourceStyle   = "style_config"
	SourceTags    = "tag_group"
)

// NoneColor is the display color of the none role
const NoneColor = "transparent"

// DefaultMinSegmentLength is used when the global config does not set one
const DefaultMinSegmentLength = 0.05

var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

// AttributePolicy decides what normalization does with keys that are not configured
type AttributePolicy string

const (
	PolicyStrip  AttributePolicy = "strip"
	PolicyKeep   AttributePolicy = "keep"
	PolicyReject AttributePolicy = "reject"
)

// Document holds the base64-encoded JSON configuration documents of a template
type Document struct {
	LabelConfig   string `json:"label_config"`
	SegmentConfig string `json:"label_config_segment"`
	GlobalConfig  string `json:"global_config"`
	StyleConfig   string `json:"style_config"`
	TagGroup      string `json:"tag_group"`
}

// Field describes one configurable attribute
type Field struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Default  any      `json:"default,omitempty"`
	Required bool     `json:"required,omitempty"`
	Options  []string `json:"options,omitempty"`
	TagGroup string   `json:"tagGroup,omitempty"`
}

// Role is one ontology entry
type Role struct {
	Key   string `json:"key"`
	Color string `json:"color"`
}

// TagGroup is a named option list
type TagGroup struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// Global holds tool-wide settings
type Global struct {
	MinSegmentLength float64           `json:"minSegmentLength"`
	Mode             types.Mode        `json:"mode"`
	OverlapTolerance float64           `json:"overlapTolerance"`
	AttributePolicy  AttributePolicy   `json:"attributePolicy"`
	RequireRole      bool              `json:"requireRole"`
	KeyAttribute     string            `json:"keyAttribute"`
	Shortcuts        map[string]string `json:"shortcuts,omitempty"`
}

// Notice is a non-blocking configuration problem shown to the user
type Notice struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// Config is the parsed template configuration
type Config struct {
	LineFields    []Field    `json:"lineFields"`
	SegmentFields []Field    `json:"segmentFields"`
	Ontology      []Role     `json:"ontology"`
	TagGroups     []TagGroup `json:"tagGroups"`
	Global        Global     `json:"global"`
	Notices       []Notice   `json:"notices,omitempty"`

	// Declared is false for parts whose document was absent or degraded;
	// normalization never strips keys against an undeclared schema.
	LineFieldsDeclared    bool `json:"-"`
	SegmentFieldsDeclared bool `json:"-"`
	RolesDeclared         bool `json:"-"`
}

// Default returns the configuration used when no template documents exist
func Default() *Config {
	return &Config{
		Ontology: []Role{{Key: types.RoleNone, Color: NoneColor}},
		Global:   defaultGlobal(),
	}
}

func defaultGlobal() Global {
	return Global{
		MinSegmentLength: DefaultMinSegmentLength,
		Mode:             types.ModeContinuous,
		AttributePolicy:  PolicyStrip,
	}
}

// Parse decodes every document independently. A malformed document degrades
// to its default and adds a notice; Parse itself never fails.
func Parse(doc Document) *Config {
	cfg := Default()

	if doc.TagGroup != "" {
		var groups []TagGroup
		if err := decode(doc.TagGroup, &groups); err != nil {
			cfg.notice(SourceTags, err.Error())
		} else if err := checkGroups(groups); err != nil {
			cfg.notice(SourceTags, err.Error())
		} else {
			cfg.TagGroups = groups
		}
	}

	if doc.LabelConfig != "" {
		var fields []Field
		if err := decode(doc.LabelConfig, &fields); err != nil {
			cfg.notice(SourceLabel, err.Error())
		} else if err := cfg.checkFields(fields); err != nil {
			cfg.notice(SourceLabel, err.Error())
		} else {
			cfg.LineFields = fields
			cfg.LineFieldsDeclared = true
		}
	}

	if doc.SegmentConfig != "" {
		var fields []Field
		if err := decode(doc.SegmentConfig, &fields); err != nil {
			cfg.notice(SourceSegment, err.Error())
		} else if err := cfg.checkFields(fields); err != nil {
			cfg.notice(SourceSegment, err.Error())
		} else {
			cfg.SegmentFields = fields
			cfg.SegmentFieldsDeclared = true
		}
	}

	if doc.StyleConfig != "" {
		var roles []Role
		if err := decode(doc.StyleConfig, &roles); err != nil {
			cfg.notice(SourceStyle, err.Error())
		} else if ontology, err := buildOntology(roles); err != nil {
			cfg.notice(SourceStyle, err.Error())
		} else {
			cfg.Ontology = ontology
			cfg.RolesDeclared = true
		}
	}

	if doc.GlobalConfig != "" {
		g := defaultGlobal()
		if err := decode(doc.GlobalConfig, &g); err != nil {
			cfg.notice(SourceGlobal, err.Error())
		} else if err := checkGlobal(&g); err != nil {
			cfg.notice(SourceGlobal, err.Error())
		} else {
			cfg.Global = g
		}
	}

	return cfg
}

func (c *Config) notice(source, msg string) {
	c.Notices = append(c.Notices, Notice{Source: source, Message: msg})
}

func decode(encoded string, v any) error {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return fmt.Errorf("invalid base64: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// Encode is the inverse of the per-document decoding, used by tooling and tests
func Encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func (c *Config) checkFields(fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate attribute name %q", f.Name)
		}
		seen[f.Name] = true
		if f.TagGroup != "" && c.group(f.TagGroup) == nil {
			return fmt.Errorf("field %q references unknown tag group %q", f.Name, f.TagGroup)
		}
	}
	return nil
}

func checkGroups(groups []TagGroup) error {
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g.Name == "" {
			return fmt.Errorf("tag group without name")
		}
		if seen[g.Name] {
			return fmt.Errorf("duplicate tag group %q", g.Name)
		}
		seen[g.Name] = true
	}
	return nil
}

func buildOntology(roles []Role) ([]Role, error) {
	out := []Role{{Key: types.RoleNone, Color: NoneColor}}
	seen := map[string]bool{types.RoleNone: true}
	for i, r := range roles {
		if r.Key == "" {
			return nil, fmt.Errorf("role %d has no key", i)
		}
		if r.Key == types.RoleNone {
			continue
		}
		if seen[r.Key] {
			return nil, fmt.Errorf("duplicate role %q", r.Key)
		}
		seen[r.Key] = true
		if r.Color == "" {
			r.Color = palette[(len(out)-1)%len(palette)]
		}
		out = append(out, r)
	}
	return out, nil
}

func checkGlobal(g *Global) error {
	if g.MinSegmentLength <= 0 {
		g.MinSegmentLength = DefaultMinSegmentLength
	}
	switch g.Mode {
	case "":
		g.Mode = types.ModeContinuous
	case types.ModeContinuous, types.ModeOverlap:
	default:
		return fmt.Errorf("unknown mode %q", g.Mode)
	}
	switch g.AttributePolicy {
	case "":
		g.AttributePolicy = PolicyStrip
	case PolicyStrip, PolicyKeep, PolicyReject:
	default:
		return fmt.Errorf("unknown attribute policy %q", g.AttributePolicy)
	}
	if g.OverlapTolerance < 0 {
		return fmt.Errorf("overlapTolerance must not be negative")
	}
	return nil
}

func (c *Config) group(name string) *TagGroup {
	for i := range c.TagGroups {
		if c.TagGroups[i].Name == name {
			return &c.TagGroups[i]
		}
	}
	return nil
}

// Options returns the allowed values of a field, resolving tag groups
func (c *Config) Options(f Field) []string {
	if f.TagGroup != "" {
		if g := c.group(f.TagGroup); g != nil {
			return g.Tags
		}
	}
	return f.Options
}

// HasRole reports whether key is part of the ontology
func (c *Config) HasRole(key string) bool {
	for _, r := range c.Ontology {
		if r.Key == key {
			return true
		}
	}
	return false
}

// Color returns the display color of a role
func (c *Config) Color(role string) string {
	for _, r := range c.Ontology {
		if r.Key == role {
			return r.Color
		}
	}
	return NoneColor
}

// HasSegmentField reports whether name is a configured segment attribute
func (c *Config) HasSegmentField(name string) bool {
	return hasField(c.SegmentFields, name)
}

// HasLineField reports whether name is a configured line attribute
func (c *Config) HasLineField(name string) bool {
	return hasField(c.LineFields, name)
}

func hasField(fields []Field, name string) bool {
	_, ok := findField(fields, name)
	return ok
}

// SegmentField looks up a configured segment attribute
func (c *Config) SegmentField(name string) (Field, bool) {
	return findField(c.SegmentFields, name)
}

// LineField looks up a configured line attribute
func (c *Config) LineField(name string) (Field, bool) {
	return findField(c.LineFields, name)
}

func findField(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Allows reports whether value is acceptable for f. Fields without options
// accept anything; option lists accept a member or a list of members.
func (c *Config) Allows(f Field, value any) bool {
	opts := c.Options(f)
	if len(opts) == 0 || value == nil {
		return true
	}
	allowed := make(map[string]bool, len(opts))
	for _, o := range opts {
		allowed[o] = true
	}
	switch v := value.(type) {
	case string:
		return allowed[v]
	case []string:
		for _, s := range v {
			if !allowed[s] {
				return false
			}
		}
		return true
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok || !allowed[s] {
				return false
			}
		}
		return true
	}
	return false
}

// SegmentDefaults returns a fresh map of configured segment defaults, or nil
// when no segment field has one
func (c *Config) SegmentDefaults() map[string]any {
	return defaults(c.SegmentFields)
}

// LineDefaults returns a fresh map of configured line defaults
func (c *Config) LineDefaults() map[string]any {
	return defaults(c.LineFields)
}

func defaults(fields []Field) map[string]any {
	var out map[string]any
	for _, f := range fields {
		if f.Default == nil {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[f.Name] = f.Default
	}
	return out
}
