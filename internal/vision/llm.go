package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

var log = logrus.WithField("component", "vision")

// Config selects and tunes the vision LLM backend
type Config struct {
	Provider    string // "openai", "anthropic", "googleai", "ollama"
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// LLMDetector implements Detector on top of a langchaingo vision model
type LLMDetector struct {
	provider string
	model    string
	llm      llms.Model
	cfg      Config
}

// NewLLMDetector creates a detector for the configured provider. API
// keys come from the conventional environment variables.
func NewLLMDetector(cfg Config) (*LLMDetector, error) {
	logger := log.WithFields(logrus.Fields{
		"provider": cfg.Provider,
		"model":    cfg.Model,
	})
	logger.Info("Creating vision detector")

	var m llms.Model
	var err error
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		m, err = createOpenAIClient(cfg)
	case "anthropic":
		m, err = createAnthropicClient(cfg)
	case "googleai":
		m, err = createGoogleAIClient(cfg)
	case "ollama":
		m, err = createOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported vision provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating vision client: %w", err)
	}

	return &LLMDetector{
		provider: strings.ToLower(cfg.Provider),
		model:    cfg.Model,
		llm:      m,
		cfg:      cfg,
	}, nil
}

// DetectRegions submits one page raster to the vision model and parses
// the structured response into candidates.
func (d *LLMDetector) DetectRegions(ctx context.Context, pageImage []byte, instructions string) ([]model.RegionCandidate, error) {
	if instructions == "" {
		instructions = DefaultInstructions
	}
	logger := log.WithFields(logrus.Fields{
		"provider":    d.provider,
		"image_bytes": len(pageImage),
	})
	logger.Debug("Submitting page to vision model")

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	// OpenAI-compatible APIs want data URLs; the rest take binary parts.
	var imagePart llms.ContentPart
	if d.provider == "openai" {
		imagePart = llms.ImageURLPart("data:image/png;base64," + base64.StdEncoding.EncodeToString(pageImage))
	} else {
		imagePart = llms.BinaryPart("image/png", pageImage)
	}

	opts := []llms.CallOption{}
	if d.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(d.cfg.MaxTokens))
	}
	opts = append(opts, llms.WithTemperature(d.cfg.Temperature))

	completion, err := d.llm.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{imagePart, llms.TextPart(instructions)},
		},
	}, opts...)
	if err != nil {
		return nil, classifyServiceError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("empty completion")}
	}

	candidates, err := ParseCandidates(completion.Choices[0].Content)
	if err != nil {
		return nil, err
	}
	logger.WithField("candidates", len(candidates)).Debug("Vision model returned candidates")
	return candidates, nil
}

// retryableStatus matches an HTTP status code in provider error text,
// either introduced by status phrasing ("status code: 503") or followed
// by its reason phrase ("503 service unavailable"). A bare substring
// check would misread token counts and model names containing the same
// digit runs as retryable statuses.
var retryableStatus = regexp.MustCompile(
	`(?:status(?:\s*code)?\s*[:=]?\s*(429|500|502|503|504)\b)` +
		`|\b(?:429|500|502|503|504)\s+(?:too many requests|internal server error|bad gateway|service unavailable|gateway timeout)`)

// classifyServiceError sorts provider failures into transient vs terminal
func classifyServiceError(err error) error {
	msg := strings.ToLower(err.Error())
	transient := strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "connection reset") ||
		retryableStatus.MatchString(msg)
	return &ServiceError{Transient: transient, Err: err}
}

func createOpenAIClient(cfg Config) (llms.Model, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return openai.New(opts...)
}

func createAnthropicClient(cfg Config) (llms.Model, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	return anthropic.New(
		anthropic.WithModel(cfg.Model),
		anthropic.WithToken(apiKey),
	)
}

func createGoogleAIClient(cfg Config) (llms.Model, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	return googleai.New(context.Background(),
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(cfg.Model),
	)
}

func createOllamaClient(cfg Config) (llms.Model, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	return ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(host),
	)
}
