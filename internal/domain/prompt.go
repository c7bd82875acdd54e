package domain

// SelectionKind distinguishes wildcard draws from inline variations.
type SelectionKind string

const (
	SelectionWildcard  SelectionKind = "wildcard"
	SelectionVariation SelectionKind = "variation"
)

// Placement records how a wildcard entered the prompt.
type Placement string

const (
	PlacementManual       Placement = "manual"
	PlacementAutoAppended Placement = "auto-appended"
)

// Selection records one random substitution made while resolving a template.
// The JSON shape is the one embedded in image metadata.
type Selection struct {
	Kind         SelectionKind `json:"type"`
	OriginalText string        `json:"original"`
	Value        string        `json:"selected"`
	WildcardName string        `json:"wildcardName,omitempty"`
	Placement    Placement     `json:"placement,omitempty"`
}

// ResolvedPrompt is the final prompt text plus the ordered trace of draws.
type ResolvedPrompt struct {
	Text       string      `json:"text"`
	Selections []Selection `json:"selections"`
}
