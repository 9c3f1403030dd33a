package types

// RefType names one of the four reference syntaxes.
type RefType string

const (
	RefImage     RefType = "image"
	RefLink      RefType = "link"
	RefWikiEmbed RefType = "wiki_embed"
	RefWikiLink  RefType = "wiki_link"
)

// IsWiki reports whether the syntax is an Obsidian-style double bracket form.
func (t RefType) IsWiki() bool {
	return t == RefWikiEmbed || t == RefWikiLink
}

// Capture is the structured content of a reference, parsed once at scan time.
// It is either a StandardCapture or a WikiCapture.
type Capture interface {
	isCapture()
}

// StandardCapture holds the parts of ![text](target "title") and [text](target).
type StandardCapture struct {
	Text   string `json:"text"`
	Target string `json:"target"`
	// Title is the verbatim tail after the target, e.g. ` "A caption"`.
	Title string `json:"title,omitempty"`
	// Angle is set when the target was written as <target>.
	Angle bool `json:"angle,omitempty"`
}

// WikiCapture holds the parts of [[target]] and [[target|alias]].
type WikiCapture struct {
	Target   string `json:"target"`
	Alias    string `json:"alias,omitempty"`
	HasAlias bool   `json:"has_alias,omitempty"`
}

func (StandardCapture) isCapture() {}
func (WikiCapture) isCapture()     {}

// MarkdownReference is one occurrence of an image reference in a document.
type MarkdownReference struct {
	FilePath     string  `json:"file_path"`
	LineNumber   int     `json:"line_number"`
	Column       int     `json:"column"`
	OriginalText string  `json:"original_text"`
	ImagePath    string  `json:"image_path"`
	Type         RefType `json:"ref_type"`
	Capture      Capture `json:"-"`
}

// ReferenceUpdate reports how many substitutions were made in one document.
type ReferenceUpdate struct {
	FilePath         string `json:"file_path"`
	ReplacementCount int    `json:"replacement_count"`
}
