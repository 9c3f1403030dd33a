package provider

import (
	"context"

	"imagenamer/pkg/types"
)

// Namer proposes a filename for an image.
type Namer interface {
	ProposeName(ctx context.Context, path string) (types.ProposedName, error)
}

// Assessor judges whether candidate is a good enough name for the image.
type Assessor interface {
	AssessName(ctx context.Context, path, candidate string) (types.NameAssessment, error)
}

// Analyzer assesses the current name and proposes one in a single call.
type Analyzer interface {
	Analyze(ctx context.Context, path, currentName string) (types.ImageAnalysis, error)
}

// Vision is a vision model client. Implementations are safe for
// concurrent use.
type Vision interface {
	Namer
	Assessor
	Analyzer

	// Provider returns the provider name, e.g. "ollama"
	Provider() string

	// Model returns the model being used
	Model() string
}

// New creates a vision client for the given configuration.
func New(cfg Config) (Vision, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newClient(cfg), nil
}

// Factory builds a Vision client. The CLI resolves clients through
// CurrentFactory so tests can substitute stubs.
type Factory func(cfg Config) (Vision, error)

// DefaultFactory creates real HTTP clients.
var DefaultFactory Factory = New

// CurrentFactory is the currently active factory
var CurrentFactory = DefaultFactory

// SetFactory swaps the active factory.
func SetFactory(f Factory) {
	CurrentFactory = f
}

// ResetFactory restores DefaultFactory.
func ResetFactory() {
	CurrentFactory = DefaultFactory
}
