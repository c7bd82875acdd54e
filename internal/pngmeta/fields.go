package pngmeta

import (
	"encoding/json"

	"pixelbatch/internal/domain"
)

// Field names one embedded metadata entry. The keyword written to the file is
// KeywordPrefix + Field.
type Field string

const (
	FieldPrompt         Field = "Prompt"
	FieldOriginalPrompt Field = "OriginalPrompt"
	FieldNegativePrompt Field = "NegativePrompt"
	FieldSelections     Field = "Selections"
	FieldWidth          Field = "Width"
	FieldHeight         Field = "Height"
	FieldOutline        Field = "Outline"
	FieldShading        Field = "Shading"
	FieldDetail         Field = "Detail"
	FieldGuidanceScale  Field = "GuidanceScale"
	FieldNoBackground   Field = "NoBackground"
	FieldSeed           Field = "Seed"
	FieldTimestamp      Field = "Timestamp"
	FieldSettings       Field = "Settings"
	FieldGenerator      Field = "Generator"
)

// Fields is the enumeration order; chunks are written in this order.
var Fields = []Field{
	FieldPrompt,
	FieldOriginalPrompt,
	FieldNegativePrompt,
	FieldSelections,
	FieldWidth,
	FieldHeight,
	FieldOutline,
	FieldShading,
	FieldDetail,
	FieldGuidanceScale,
	FieldNoBackground,
	FieldSeed,
	FieldTimestamp,
	FieldSettings,
	FieldGenerator,
}

// canonicalKeys maps fields to the keys used by Map.
var canonicalKeys = map[Field]string{
	FieldPrompt:         "prompt",
	FieldOriginalPrompt: "originalPrompt",
	FieldNegativePrompt: "negativePrompt",
	FieldSelections:     "selections",
	FieldWidth:          "width",
	FieldHeight:         "height",
	FieldOutline:        "outline",
	FieldShading:        "shading",
	FieldDetail:         "detail",
	FieldGuidanceScale:  "guidanceScale",
	FieldNoBackground:   "noBackground",
	FieldSeed:           "seed",
	FieldTimestamp:      "timestamp",
	FieldSettings:       "settings",
	FieldGenerator:      "generator",
}

// Key returns the canonical map key for f.
func (f Field) Key() string { return canonicalKeys[f] }

// IsJSON reports whether the field value is serialized as JSON text.
func (f Field) IsJSON() bool { return f == FieldSelections || f == FieldSettings }

// Metadata is the provenance schema embedded into an image. Scalar values are
// carried in their textual form so that "0" and "false" survive unchanged.
type Metadata struct {
	Prompt         string
	OriginalPrompt string
	NegativePrompt string
	Selections     []domain.Selection
	Width          string
	Height         string
	Outline        string
	Shading        string
	Detail         string
	GuidanceScale  string
	NoBackground   string
	Seed           string
	Timestamp      string
	Settings       map[string]any
	Generator      string
}

// text returns the encoded chunk value for f.
func (m Metadata) text(f Field) (string, error) {
	switch f {
	case FieldPrompt:
		return m.Prompt, nil
	case FieldOriginalPrompt:
		return m.OriginalPrompt, nil
	case FieldNegativePrompt:
		return m.NegativePrompt, nil
	case FieldSelections:
		selections := m.Selections
		if selections == nil {
			selections = []domain.Selection{}
		}
		raw, err := json.Marshal(selections)
		return string(raw), err
	case FieldWidth:
		return m.Width, nil
	case FieldHeight:
		return m.Height, nil
	case FieldOutline:
		return m.Outline, nil
	case FieldShading:
		return m.Shading, nil
	case FieldDetail:
		return m.Detail, nil
	case FieldGuidanceScale:
		return m.GuidanceScale, nil
	case FieldNoBackground:
		return m.NoBackground, nil
	case FieldSeed:
		return m.Seed, nil
	case FieldTimestamp:
		return m.Timestamp, nil
	case FieldSettings:
		settings := m.Settings
		if settings == nil {
			settings = map[string]any{}
		}
		raw, err := json.Marshal(settings)
		return string(raw), err
	case FieldGenerator:
		return m.Generator, nil
	default:
		return "", nil
	}
}

// set stores a decoded chunk value for f.
func (m *Metadata) set(f Field, value string) {
	switch f {
	case FieldPrompt:
		m.Prompt = value
	case FieldOriginalPrompt:
		m.OriginalPrompt = value
	case FieldNegativePrompt:
		m.NegativePrompt = value
	case FieldSelections:
		var selections []domain.Selection
		if err := json.Unmarshal([]byte(value), &selections); err != nil || selections == nil {
			selections = []domain.Selection{}
		}
		m.Selections = selections
	case FieldWidth:
		m.Width = value
	case FieldHeight:
		m.Height = value
	case FieldOutline:
		m.Outline = value
	case FieldShading:
		m.Shading = value
	case FieldDetail:
		m.Detail = value
	case FieldGuidanceScale:
		m.GuidanceScale = value
	case FieldNoBackground:
		m.NoBackground = value
	case FieldSeed:
		m.Seed = value
	case FieldTimestamp:
		m.Timestamp = value
	case FieldSettings:
		var settings map[string]any
		if err := json.Unmarshal([]byte(value), &settings); err != nil {
			settings = nil
		}
		m.Settings = settings
	case FieldGenerator:
		m.Generator = value
	}
}

// keep decides whether a field is written. Only the empty string is dropped;
// "0" and "false" are real values.
func keep(value string) bool {
	return value != ""
}

// Map renders the metadata under canonical keys, omitting empty scalars.
func (m Metadata) Map() map[string]any {
	out := make(map[string]any, len(Fields))
	for _, f := range Fields {
		switch f {
		case FieldSelections:
			if m.Selections != nil {
				out[f.Key()] = m.Selections
			}
		case FieldSettings:
			if m.Settings != nil {
				out[f.Key()] = m.Settings
			}
		default:
			if v, _ := m.text(f); keep(v) {
				out[f.Key()] = v
			}
		}
	}
	return out
}

func fieldForSuffix(suffix string) (Field, bool) {
	f := Field(suffix)
	_, ok := canonicalKeys[f]
	return f, ok
}
