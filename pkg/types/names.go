package types

import "strings"

// ProposedName is a filename suggestion coming back from a vision model.
type ProposedName struct {
	Stem      string `json:"stem"`
	Extension string `json:"extension"`
}

// Filename joins stem and extension, inserting the dot when it is missing.
// An empty extension yields the bare stem.
func (p ProposedName) Filename() string {
	if p.Extension == "" {
		return p.Stem
	}
	if strings.HasPrefix(p.Extension, ".") {
		return p.Stem + p.Extension
	}
	return p.Stem + "." + p.Extension
}

// NameAssessment is the verdict on whether a current filename already
// describes its image well enough to keep.
type NameAssessment struct {
	Suitable bool `json:"suitable"`
}

// ImageAnalysis combines assessment and proposal in a single model call.
type ImageAnalysis struct {
	CurrentNameSuitable bool         `json:"current_name_suitable"`
	ProposedName        ProposedName `json:"proposed_name"`
	Reasoning           string       `json:"reasoning"`
}
