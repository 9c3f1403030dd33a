package provider

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"imagenamer/pkg/types"
)

// Stub is an in-memory Vision used by tests and offline runs. Answers are
// keyed by the image's base name.
type Stub struct {
	ProviderName string
	ModelName    string

	// Names maps a source filename to its proposal; Default covers the rest.
	Names   map[string]types.ProposedName
	Default types.ProposedName

	// Suitable lists filenames the assessor accepts.
	Suitable map[string]bool

	// Errors fails every call for the listed filenames.
	Errors map[string]error

	mu    sync.Mutex
	calls map[string]int
}

var _ Vision = (*Stub)(nil)

func (s *Stub) count(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[method]++
}

// Calls reports how many times method was invoked.
func (s *Stub) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Stub) Provider() string {
	if s.ProviderName == "" {
		return "stub"
	}
	return s.ProviderName
}

func (s *Stub) Model() string {
	if s.ModelName == "" {
		return "stub"
	}
	return s.ModelName
}

func (s *Stub) ProposeName(ctx context.Context, path string) (types.ProposedName, error) {
	s.count("ProposeName")
	if err := ctx.Err(); err != nil {
		return types.ProposedName{}, err
	}
	name := filepath.Base(path)
	if err := s.Errors[name]; err != nil {
		return types.ProposedName{}, err
	}
	if p, ok := s.Names[name]; ok {
		return p, nil
	}
	return s.Default, nil
}

func (s *Stub) AssessName(ctx context.Context, path, candidate string) (types.NameAssessment, error) {
	s.count("AssessName")
	if err := ctx.Err(); err != nil {
		return types.NameAssessment{}, err
	}
	if err := s.Errors[filepath.Base(path)]; err != nil {
		return types.NameAssessment{}, err
	}
	return types.NameAssessment{Suitable: s.Suitable[candidate]}, nil
}

func (s *Stub) Analyze(ctx context.Context, path, currentName string) (types.ImageAnalysis, error) {
	s.count("Analyze")
	if err := ctx.Err(); err != nil {
		return types.ImageAnalysis{}, err
	}
	name := filepath.Base(path)
	if err := s.Errors[name]; err != nil {
		return types.ImageAnalysis{}, err
	}
	if s.Suitable[currentName] {
		ext := filepath.Ext(currentName)
		return types.ImageAnalysis{
			CurrentNameSuitable: true,
			ProposedName:        types.ProposedName{Stem: strings.TrimSuffix(currentName, ext), Extension: ext},
			Reasoning:           "current name fits",
		}, nil
	}
	p, ok := s.Names[name]
	if !ok {
		p = s.Default
	}
	return types.ImageAnalysis{ProposedName: p, Reasoning: "stub proposal"}, nil
}
