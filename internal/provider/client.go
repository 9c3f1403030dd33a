package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"

	"imagenamer/internal/config"
	"imagenamer/internal/errors"
	"imagenamer/internal/log"
	"imagenamer/pkg/types"
)

// encodedImage is an image ready to be embedded in a request body.
type encodedImage struct {
	MIME string
	Data string // standard base64
}

// DataURL renders the image as a data: URL.
func (i encodedImage) DataURL() string {
	return "data:" + i.MIME + ";base64," + i.Data
}

// completion is one structured-output request.
type completion struct {
	Prompt     string
	Image      encodedImage
	SchemaName string
	Schema     map[string]interface{}
}

// backend speaks one provider's wire format and returns the raw JSON text
// the model produced.
type backend interface {
	complete(ctx context.Context, req completion) (string, error)
}

type client struct {
	provider string
	model    string
	backend  backend
	limiter  *rate.Limiter
}

func newClient(cfg Config) *client {
	c := &client{provider: cfg.Provider, model: cfg.Model}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		c.backend = newOpenAIImpl(cfg)
	default:
		c.backend = newOllamaImpl(cfg)
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

func (c *client) Provider() string { return c.provider }
func (c *client) Model() string    { return c.model }

// ProposeName asks the model for a new stem and extension.
func (c *client) ProposeName(ctx context.Context, path string) (types.ProposedName, error) {
	var out types.ProposedName
	if err := c.call(ctx, path, GeneratePrompt, "proposed_name", proposedNameSchema, &out); err != nil {
		return types.ProposedName{}, err
	}
	out.Stem = strings.TrimSpace(out.Stem)
	if out.Stem == "" {
		return types.ProposedName{}, errors.NewProviderError("model returned an empty stem", c.provider, c.model, errors.ErrProviderResponse)
	}
	return out, nil
}

// AssessName asks whether candidate already fits the rubric.
func (c *client) AssessName(ctx context.Context, path, candidate string) (types.NameAssessment, error) {
	var out types.NameAssessment
	if err := c.call(ctx, path, assessPrompt(candidate), "name_assessment", assessmentSchema, &out); err != nil {
		return types.NameAssessment{}, err
	}
	return out, nil
}

// Analyze assesses currentName and proposes a name in one request.
func (c *client) Analyze(ctx context.Context, path, currentName string) (types.ImageAnalysis, error) {
	var out types.ImageAnalysis
	if err := c.call(ctx, path, analyzePrompt(currentName), "image_analysis", analysisSchema, &out); err != nil {
		return types.ImageAnalysis{}, err
	}
	out.ProposedName.Stem = strings.TrimSpace(out.ProposedName.Stem)
	if out.ProposedName.Stem == "" && !out.CurrentNameSuitable {
		return types.ImageAnalysis{}, errors.NewProviderError("model returned an empty stem", c.provider, c.model, errors.ErrProviderResponse)
	}
	return out, nil
}

func (c *client) call(ctx context.Context, path, prompt, schemaName string, schema map[string]interface{}, out interface{}) error {
	img, err := loadImage(path)
	if err != nil {
		return err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.NewProviderError("rate limiter", c.provider, c.model, err)
		}
	}

	start := time.Now()
	text, err := c.backend.complete(ctx, completion{
		Prompt:     prompt,
		Image:      img,
		SchemaName: schemaName,
		Schema:     schema,
	})
	if err != nil {
		return errors.NewProviderError("vision request failed", c.provider, c.model, err)
	}
	log.LogWithFields(
		log.F("provider", c.provider),
		log.F("model", c.model),
		log.F("schema", schemaName),
		log.F("elapsed", time.Since(start).Round(time.Millisecond)),
	).Debug("vision response")

	if err := json.Unmarshal([]byte(extractJSON(text)), out); err != nil {
		return errors.NewProviderError("cannot decode model output", c.provider, c.model,
			errors.Join(errors.ErrProviderResponse, err))
	}
	return nil
}

// loadImage reads path and checks that its content is an image.
func loadImage(path string) (encodedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return encodedImage{}, errors.NewFileError("image not found", path, errors.FileNotFound, err)
		}
		return encodedImage{}, errors.NewFileError("cannot read image", path, errors.FileAccessDenied, err)
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return encodedImage{}, errors.NewFileError("not an image: "+mime.String(), path, errors.UnsupportedFileType, nil)
	}

	return encodedImage{
		MIME: mime.String(),
		Data: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// extractJSON trims markdown code fences and prose some models wrap around
// their JSON answer.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
