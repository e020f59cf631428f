// Package predict is the HTTP client for the remote prediction/matching
// service. It covers the four collaborator surfaces: image/audio
// classification, description chat, catalog fetch and species image fetch.
// The matching algorithm itself is opaque; this package only moves payloads.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/fieldguide/fieldguide-go/internal/errors"
	"github.com/fieldguide/fieldguide-go/internal/logging"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	serviceLevelVar.Set(slog.LevelInfo)
	logger, _ = logging.ForService("predict", serviceLevelVar)
}

// Config holds client construction parameters. Injected explicitly; the
// client never reads ambient globals.
type Config struct {
	BaseURL       string
	Timeout       time.Duration // per-request bound, expiry surfaces as a timeout error
	ImageCacheTTL time.Duration
	Debug         bool
}

// DefaultConfig returns config defaults for anything the caller left unset.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		ImageCacheTTL: 24 * time.Hour,
	}
}

// Client provides methods for interacting with the prediction service.
type Client struct {
	config     Config
	httpClient *http.Client
	imageCache *gocache.Cache
}

// NewClient creates a new prediction service client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.Newf("prediction service base URL is required").
			Category(errors.CategoryConfiguration).
			Component("predict").
			Build()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.ImageCacheTTL == 0 {
		config.ImageCacheTTL = DefaultConfig().ImageCacheTTL
	}

	client := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		imageCache: gocache.New(config.ImageCacheTTL, config.ImageCacheTTL*2),
	}

	logger.Info("prediction client initialized",
		"base_url", config.BaseURL,
		"timeout", config.Timeout,
		"image_cache_ttl", config.ImageCacheTTL)

	return client, nil
}

// PredictImage submits an image for classification.
func (c *Client) PredictImage(ctx context.Context, filename string, image io.Reader) (*Result, error) {
	return c.predictUpload(ctx, "/api/predict", "image", filename, image)
}

// PredictSound submits an audio clip for classification.
func (c *Client) PredictSound(ctx context.Context, filename string, audio io.Reader) (*Result, error) {
	return c.predictUpload(ctx, "/api/predict-sound", "audio", filename, audio)
}

func (c *Client) predictUpload(ctx context.Context, path, field, filename string, r io.Reader) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return nil, errors.Newf("failed to build multipart body: %w", err).
			Category(errors.CategoryGeneric).
			Component("predict").
			Build()
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, errors.Newf("failed to read %s payload: %w", field, err).
			Category(errors.CategoryGeneric).
			Component("predict").
			Context("filename", filename).
			Build()
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Newf("failed to finalize multipart body: %w", err).
			Category(errors.CategoryGeneric).
			Component("predict").
			Build()
	}

	var result Result
	if err := c.doRequest(ctx, http.MethodPost, path, writer.FormDataContentType(), &body, &result); err != nil {
		return nil, err
	}

	if c.config.Debug {
		logger.Debug("prediction received",
			"endpoint", path,
			"class", resultClass(&result),
			"has_warning", result.Warning != nil)
	}
	return &result, nil
}

func resultClass(r *Result) string {
	if r.Prediction == nil {
		return ""
	}
	return r.Prediction.Class
}

// DescribeChat submits a text-description identification turn together
// with the running conversation context.
func (c *Client) DescribeChat(ctx context.Context, req *DescribeRequest) (*DescribeResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Newf("failed to encode chat request: %w", err).
			Category(errors.CategoryGeneric).
			Component("predict").
			Build()
	}

	var resp DescribeResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/description-chat", "application/json", bytes.NewReader(payload), &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "description identification failed"
		}
		return nil, errors.Newf("%s", msg).
			Category(errors.CategoryNetwork).
			Component("predict").
			Build()
	}
	return &resp, nil
}

// catalogResponse is the wire shape of a catalog fetch: records keyed by
// opaque species ID under a category-named field.
type catalogResponse struct {
	Status      string                    `json:"status"`
	Birds       map[string]map[string]any `json:"birds,omitempty"`
	Butterflies map[string]map[string]any `json:"butterflies,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

// FetchCatalog retrieves the full reference catalog for one category as a
// map of opaque species ID to raw record.
func (c *Client) FetchCatalog(ctx context.Context, category string) (map[string]map[string]any, error) {
	var resp catalogResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/"+url.PathEscape(category), "", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("catalog fetch returned status %q", resp.Status)
		}
		return nil, errors.Newf("%s", msg).
			Category(errors.CategoryNetwork).
			Component("predict").
			Context("category", category).
			Build()
	}

	var records map[string]map[string]any
	switch category {
	case CategoryBirds:
		records = resp.Birds
	case CategoryButterflies:
		records = resp.Butterflies
	}
	if records == nil {
		return nil, errors.Newf("catalog response missing %q records", category).
			Category(errors.CategoryNetwork).
			Component("predict").
			Context("category", category).
			Build()
	}

	logger.Debug("catalog fetched", "category", category, "records", len(records))
	return records, nil
}

// FetchSpeciesImage retrieves a species image by its catalog path, with an
// in-memory TTL cache in front of the network.
func (c *Client) FetchSpeciesImage(ctx context.Context, imagePath string) ([]byte, error) {
	if cached, found := c.imageCache.Get(imagePath); found {
		if data, ok := cached.([]byte); ok {
			return data, nil
		}
	}

	reqURL := c.config.BaseURL + "/api/species-image?path=" + url.QueryEscape(imagePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Component("predict").
			Build()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(err, reqURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("species image fetch failed with status %d", resp.StatusCode).
			Category(errors.CategoryImageFetch).
			Component("predict").
			Context("image_path", imagePath).
			Context("status_code", resp.StatusCode).
			Build()
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(err, reqURL)
	}

	c.imageCache.Set(imagePath, data, gocache.DefaultExpiration)
	return data, nil
}

// doRequest performs an HTTP request against the service and decodes the
// JSON response into result.
func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader, result any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	reqURL := c.config.BaseURL + path
	req, err := http.NewRequestWithContext(reqCtx, method, reqURL, body)
	if err != nil {
		return errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Component("predict").
			Context("method", method).
			Context("url", reqURL).
			Build()
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.config.Debug {
		logger.Debug("service request", "method", method, "url", reqURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("service request failed", "error", err, "method", method, "url", reqURL)
		return c.transportError(err, reqURL)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(err, reqURL)
	}

	if resp.StatusCode != http.StatusOK {
		// The service reports failures as {"error": "..."} bodies.
		var wire struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(bodyBytes, &wire)
		msg := wire.Error
		if msg == "" {
			msg = fmt.Sprintf("service returned status %d", resp.StatusCode)
		}
		return errors.Newf("%s", msg).
			Category(errors.CategoryNetwork).
			Component("predict").
			Context("url", reqURL).
			Context("status_code", resp.StatusCode).
			Build()
	}

	if err := json.Unmarshal(bodyBytes, result); err != nil {
		return errors.Newf("failed to decode service response: %w", err).
			Category(errors.CategoryNetwork).
			Component("predict").
			Context("url", reqURL).
			Build()
	}
	return nil
}

// transportError classifies a transport failure: deadline expiry becomes
// the distinct timeout category, everything else is a network error.
func (c *Client) transportError(err error, reqURL string) error {
	category := errors.CategoryNetwork
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		category = errors.CategoryTimeout
	}
	return errors.Newf("service request failed: %w", err).
		Category(category).
		Component("predict").
		Context("url", reqURL).
		Context("timeout", c.config.Timeout.String()).
		Build()
}
