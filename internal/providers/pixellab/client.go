package pixellab

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pixelbatch/internal/domain"
	"pixelbatch/internal/infra"
)

const (
	defaultBaseURL = "https://api.pixellab.ai/v1"
	pixfluxPath    = "/generate-image-pixflux"
)

// Options configures the PixelLab client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client calls the PixelLab pixflux text-to-image endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type imageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type pixfluxRequest struct {
	Description         string    `json:"description"`
	ImageSize           imageSize `json:"image_size"`
	TextGuidanceScale   float64   `json:"text_guidance_scale"`
	NoBackground        bool      `json:"no_background"`
	Outline             string    `json:"outline"`
	Shading             string    `json:"shading"`
	Detail              string    `json:"detail"`
	NegativeDescription string    `json:"negative_description,omitempty"`
	Seed                *int64    `json:"seed,omitempty"`
}

type pixfluxResponse struct {
	Image struct {
		Type   string `json:"type"`
		Base64 string `json:"base64"`
	} `json:"image"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// NewClient constructs a client with defaults for unset options.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Generate performs one pixflux call. Cancelling ctx aborts the in-flight
// request and yields an error wrapping domain.ErrCancelled.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	if !c.HasCredentials() {
		return domain.GenerationResult{}, &domain.GenerationError{Message: "No API key provided"}
	}
	params := req.Params.WithDefaults()
	payload := pixfluxRequest{
		Description:         req.Prompt,
		ImageSize:           imageSize{Width: params.Width, Height: params.Height},
		TextGuidanceScale:   params.GuidanceScale,
		NoBackground:        params.NoBackground,
		Outline:             params.Outline,
		Shading:             params.Shading,
		Detail:              params.Detail,
		NegativeDescription: strings.TrimSpace(params.NegativeDescription),
	}
	if req.Seed > 0 {
		seed := req.Seed
		payload.Seed = &seed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("pixellab: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pixfluxPath, bytes.NewReader(body))
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("pixellab: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return domain.GenerationResult{}, fmt.Errorf("pixellab: generation %w: %v", domain.ErrCancelled, ctx.Err())
		}
		return domain.GenerationResult{}, &domain.GenerationError{Message: fmt.Sprintf("pixellab: http request: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return domain.GenerationResult{}, fmt.Errorf("pixellab: generation %w: %v", domain.ErrCancelled, ctx.Err())
		}
		return domain.GenerationResult{}, &domain.GenerationError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("pixellab: read response: %v", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.GenerationResult{}, &domain.RateLimitError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.GenerationResult{}, &domain.GenerationError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	var decoded pixfluxResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.GenerationResult{}, &domain.GenerationError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("pixellab: decode response: %v", err)}
	}
	encoded := strings.TrimSpace(decoded.Image.Base64)
	if encoded == "" {
		return domain.GenerationResult{}, &domain.GenerationError{StatusCode: resp.StatusCode, Message: "pixellab: response contained no image"}
	}
	encoded = stripDataURL(encoded)
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.GenerationResult{}, &domain.GenerationError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("pixellab: decode image: %v", err)}
	}

	c.logger.Debug().
		Str("job_id", req.JobID).
		Int("bytes", len(data)).
		Dur("elapsed", time.Since(started)).
		Msg("pixellab: generated image")
	return domain.GenerationResult{ImageBytes: data, MIME: "image/png"}, nil
}

// errorMessage prefers the server message, then the error field, and leaves
// the status fallback to GenerationError.
func errorMessage(raw []byte) string {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err != nil {
		return ""
	}
	for _, candidate := range []string{detail.Message, detail.Error} {
		if msg := strings.TrimSpace(candidate); msg != "" {
			return msg
		}
	}
	return ""
}

func stripDataURL(encoded string) string {
	if !strings.HasPrefix(encoded, "data:") {
		return encoded
	}
	if _, payload, ok := strings.Cut(encoded, ","); ok {
		return payload
	}
	return encoded
}
