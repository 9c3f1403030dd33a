package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagenamer/internal/config"
	"imagenamer/internal/errors"
	"imagenamer/internal/provider"
	"imagenamer/pkg/testutils"
	"imagenamer/pkg/types"
)

func ollamaServer(t *testing.T, content string, seen *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": content},
			"done":    true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newOllama(t *testing.T, url string) provider.Vision {
	t.Helper()
	v, err := provider.New(provider.Config{Provider: "ollama", Model: "gemma3:27b", BaseURL: url})
	require.NoError(t, err)
	return v
}

func TestConfigValidate(t *testing.T) {
	t.Run("ollama defaults", func(t *testing.T) {
		cfg := provider.Config{Provider: "Ollama", Model: "gemma3:27b"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "ollama", cfg.Provider)
		assert.Equal(t, provider.DefaultOllamaURL, cfg.BaseURL)
		assert.Equal(t, provider.DefaultTimeout, cfg.Timeout)
		require.NotNil(t, cfg.HTTPClient)
	})

	t.Run("invalid provider", func(t *testing.T) {
		cfg := provider.Config{Provider: "bogus", Model: "x"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errors.IsInvalidProvider(err))
		assert.Contains(t, err.Error(), "invalid provider")
	})

	t.Run("openai needs a key", func(t *testing.T) {
		cfg := provider.Config{Provider: "openai", Model: "gpt-4o"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errors.IsMissingCredentials(err))
		assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	})

	t.Run("empty model", func(t *testing.T) {
		cfg := provider.Config{Provider: "ollama"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("trailing slash trimmed", func(t *testing.T) {
		cfg := provider.Config{Provider: "openai", Model: "gpt-4o", APIKey: "k", BaseURL: "http://h/v1/"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://h/v1", cfg.BaseURL)
	})
}

func TestFromConfig(t *testing.T) {
	cfg := config.New()
	cfg.Provider.OllamaURL = "http://gpu:11434"
	cfg.Provider.TimeoutSeconds = 30

	pc := provider.FromConfig(cfg)
	assert.Equal(t, "ollama", pc.Provider)
	assert.Equal(t, config.DefaultModel, pc.Model)
	assert.Equal(t, "http://gpu:11434", pc.BaseURL)
	assert.Equal(t, 30*time.Second, pc.Timeout)

	cfg.Provider.Name = config.ProviderOpenAI
	cfg.Provider.APIKey = "sk"
	pc = provider.FromConfig(cfg)
	assert.Equal(t, cfg.Provider.OpenAIURL, pc.BaseURL)
	assert.Equal(t, "sk", pc.APIKey)
}

func TestOllamaProposeName(t *testing.T) {
	img := testutils.CreateTestImages(t, t.TempDir(), "IMG_0001.png")[0]

	var body map[string]interface{}
	srv := ollamaServer(t, `{"stem":"cat--sitting-on-mat","extension":".png"}`, &body)

	name, err := newOllama(t, srv.URL).ProposeName(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, types.ProposedName{Stem: "cat--sitting-on-mat", Extension: ".png"}, name)

	assert.Equal(t, "gemma3:27b", body["model"])
	assert.Equal(t, false, body["stream"])
	assert.NotNil(t, body["format"])
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]interface{})
	assert.Contains(t, msg["content"], "<primary-subject>--<specific-detail>")
	assert.Len(t, msg["images"], 1)
}

func TestOllamaAssessName(t *testing.T) {
	img := testutils.CreateTestImages(t, t.TempDir(), "cat--sitting.png")[0]

	var body map[string]interface{}
	srv := ollamaServer(t, `{"suitable": true}`, &body)

	verdict, err := newOllama(t, srv.URL).AssessName(context.Background(), img, "cat--sitting.png")
	require.NoError(t, err)
	assert.True(t, verdict.Suitable)

	msg := body["messages"].([]interface{})[0].(map[string]interface{})
	assert.Contains(t, msg["content"], "Proposed filename: 'cat--sitting.png'.")
}

func TestOllamaAnalyze(t *testing.T) {
	img := testutils.CreateTestImages(t, t.TempDir(), "a.png")[0]

	// Fenced output is still accepted.
	srv := ollamaServer(t, "```json\n"+`{"current_name_suitable":false,"proposed_name":{"stem":"red-square","extension":"png"},"reasoning":"a is vague"}`+"\n```", nil)

	analysis, err := newOllama(t, srv.URL).Analyze(context.Background(), img, "a.png")
	require.NoError(t, err)
	assert.False(t, analysis.CurrentNameSuitable)
	assert.Equal(t, "red-square.png", analysis.ProposedName.Filename())
	assert.Equal(t, "a is vague", analysis.Reasoning)
}

func TestOpenAIProposeName(t *testing.T) {
	img := testutils.CreateTestImages(t, t.TempDir(), "shot.png")[0]

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []struct {
					Type     string `json:"type"`
					Text     string `json:"text"`
					ImageURL struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
			ResponseFormat struct {
				Type       string `json:"type"`
				JSONSchema struct {
					Name   string `json:"name"`
					Strict bool   `json:"strict"`
				} `json:"json_schema"`
			} `json:"response_format"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Equal(t, "json_schema", req.ResponseFormat.Type)
		assert.Equal(t, "proposed_name", req.ResponseFormat.JSONSchema.Name)
		assert.True(t, req.ResponseFormat.JSONSchema.Strict)
		require.Len(t, req.Messages, 1)
		require.Len(t, req.Messages[0].Content, 2)
		assert.Equal(t, "text", req.Messages[0].Content[0].Type)
		assert.True(t, strings.HasPrefix(req.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{
				"message":       map[string]string{"role": "assistant", "content": `{"stem":"terminal-screenshot--build-log","extension":".png"}`},
				"finish_reason": "stop",
			}},
		})
	}))
	defer srv.Close()

	v, err := provider.New(provider.Config{Provider: "openai", Model: "gpt-4o", APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	assert.Equal(t, "openai", v.Provider())
	assert.Equal(t, "gpt-4o", v.Model())

	name, err := v.ProposeName(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "terminal-screenshot--build-log.png", name.Filename())
}

func TestProviderErrors(t *testing.T) {
	dir := t.TempDir()
	img := testutils.CreateTestImages(t, dir, "a.png")[0]

	t.Run("http error is a provider error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newOllama(t, srv.URL).ProposeName(context.Background(), img)
		require.Error(t, err)
		assert.True(t, errors.IsProviderError(err))
		assert.Equal(t, errors.ProviderFailed, errors.KindOf(err))
		assert.Contains(t, err.Error(), "API error 500")
		assert.Contains(t, err.Error(), "ollama/gemma3:27b")
	})

	t.Run("undecodable output", func(t *testing.T) {
		srv := ollamaServer(t, "I think it is a cat", nil)
		_, err := newOllama(t, srv.URL).ProposeName(context.Background(), img)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrProviderResponse))
	})

	t.Run("empty stem", func(t *testing.T) {
		srv := ollamaServer(t, `{"stem":"  ","extension":".png"}`, nil)
		_, err := newOllama(t, srv.URL).ProposeName(context.Background(), img)
		require.Error(t, err)
		assert.True(t, errors.IsProviderError(err))
	})

	t.Run("not an image", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
		}))
		defer srv.Close()

		txt := filepath.Join(dir, "notes.png")
		require.NoError(t, os.WriteFile(txt, []byte("plain text pretending"), 0644))

		_, err := newOllama(t, srv.URL).ProposeName(context.Background(), txt)
		require.Error(t, err)
		assert.True(t, errors.IsUnsupportedFileType(err))
		assert.Zero(t, atomic.LoadInt32(&calls), "no request for non-images")
	})

	t.Run("missing image", func(t *testing.T) {
		_, err := newOllama(t, "http://127.0.0.1:1").ProposeName(context.Background(), filepath.Join(dir, "gone.png"))
		require.Error(t, err)
		assert.True(t, errors.IsFileNotFound(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := ollamaServer(t, `{"stem":"x","extension":".png"}`, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newOllama(t, srv.URL).ProposeName(ctx, img)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestRateLimiter(t *testing.T) {
	img := testutils.CreateTestImages(t, t.TempDir(), "a.png")[0]
	srv := ollamaServer(t, `{"suitable": false}`, nil)

	v, err := provider.New(provider.Config{
		Provider:          "ollama",
		Model:             "m",
		BaseURL:           srv.URL,
		RequestsPerMinute: 1,
	})
	require.NoError(t, err)

	_, err = v.AssessName(context.Background(), img, "a.png")
	require.NoError(t, err, "first call uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = v.AssessName(ctx, img, "a.png")
	require.Error(t, err, "second call would wait a minute")
	assert.True(t, errors.IsProviderError(err))
}

func TestFactory(t *testing.T) {
	defer provider.ResetFactory()

	stub := &provider.Stub{ProviderName: "ollama", ModelName: "fake"}
	provider.SetFactory(func(cfg provider.Config) (provider.Vision, error) { return stub, nil })

	v, err := provider.CurrentFactory(provider.Config{})
	require.NoError(t, err)
	assert.Same(t, stub, v)

	provider.ResetFactory()
	_, err = provider.CurrentFactory(provider.Config{Provider: "bogus", Model: "x"})
	assert.True(t, errors.IsInvalidProvider(err))
}

func TestStub(t *testing.T) {
	stub := &provider.Stub{
		Names:    map[string]types.ProposedName{"a.png": {Stem: "first", Extension: ".png"}},
		Default:  types.ProposedName{Stem: "other", Extension: ".png"},
		Suitable: map[string]bool{"good-name.png": true},
		Errors:   map[string]error{"bad.png": errors.New("boom")},
	}
	ctx := context.Background()

	p, err := stub.ProposeName(ctx, "/x/a.png")
	require.NoError(t, err)
	assert.Equal(t, "first", p.Stem)

	p, err = stub.ProposeName(ctx, "/x/b.png")
	require.NoError(t, err)
	assert.Equal(t, "other", p.Stem)

	_, err = stub.ProposeName(ctx, "/x/bad.png")
	assert.Error(t, err)

	a, err := stub.Analyze(ctx, "/x/good-name.png", "good-name.png")
	require.NoError(t, err)
	assert.True(t, a.CurrentNameSuitable)
	assert.Equal(t, "good-name.png", a.ProposedName.Filename())

	assert.Equal(t, 3, stub.Calls("ProposeName"))
	assert.Equal(t, 1, stub.Calls("Analyze"))
}
