package ensembl

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"varexplorer/domain/variant"
	"varexplorer/internal"
	"varexplorer/internal/errors"
	"varexplorer/ports"
)

const serviceName = "ensembl"

// ErrNoData is returned when the service answers with an empty result
var ErrNoData = stderrors.New("no data found")

// StatusError is a non-2xx answer from the service
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ensembl returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("ensembl returned status %d: %s", e.StatusCode, e.Message)
}

// Client fetches region overlaps and VEP annotations from the Ensembl REST API
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *internal.Logger
}

var _ ports.VariantSource = (*Client)(nil)

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for skip and request messages
func WithLogger(logger *internal.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new Ensembl client
func NewClient(config ClientConfig, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "invalid ensembl client configuration")
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: internal.DefaultLogger.Named(serviceName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the client configuration
func (c *Client) Config() ClientConfig {
	return c.config
}

// RegionVariants lists the variation features overlapping a region
func (c *Client) RegionVariants(ctx context.Context, region variant.Region) ([]variant.Variant, error) {
	if err := region.Validate(); err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "invalid region")
	}

	endpoint := fmt.Sprintf("%s/overlap/region/%s/%s?feature=variation",
		c.config.BaseURL, url.PathEscape(c.config.Species), region.String())

	startTime := time.Now()
	body, err := c.getJSON(ctx, endpoint)
	if err != nil {
		return nil, errors.ExternalServiceError(serviceName, err)
	}

	variants, err := parseOverlap(body)
	if err != nil {
		return nil, errors.ExternalServiceError(serviceName, err)
	}

	c.logger.Info("fetched %d variants for region %s in %s", len(variants), region.String(), time.Since(startTime).Round(time.Millisecond))
	return variants, nil
}

// Annotate queries the VEP endpoint once per identifier, in order, pausing
// for the configured delay between requests. Identifiers that fail are
// recorded in the batch and skipped. Only context cancellation aborts the loop;
// the partial batch is returned with the context error.
func (c *Client) Annotate(ctx context.Context, ids []variant.RsID, progress ports.ProgressFunc) (*variant.AnnotationBatch, error) {
	batch := &variant.AnnotationBatch{
		Annotations: make([]variant.Annotation, 0, len(ids)),
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		annotation, err := c.AnnotateOne(ctx, id)
		switch {
		case err == nil:
			batch.Annotations = append(batch.Annotations, *annotation)
		case ctx.Err() != nil:
			return batch, ctx.Err()
		default:
			reason := skipReason(err)
			c.logger.Warn("skipping %s: %s", id, reason)
			batch.Skipped = append(batch.Skipped, variant.Skipped{RsID: id, Reason: reason})
		}

		if progress != nil {
			progress(i+1, len(ids), id)
		}

		if i < len(ids)-1 {
			if err := c.pause(ctx); err != nil {
				return batch, err
			}
		}
	}

	c.logger.Info("annotated %d of %d identifiers (%d skipped)", len(batch.Annotations), len(ids), len(batch.Skipped))
	return batch, nil
}

// AnnotateOne fetches and parses the VEP record for one identifier
func (c *Client) AnnotateOne(ctx context.Context, id variant.RsID) (*variant.Annotation, error) {
	id = variant.RsID(strings.TrimSpace(string(id)))
	if id == "" {
		return nil, errors.InvalidInput("identifier is required")
	}

	endpoint := fmt.Sprintf("%s/vep/%s/id/%s",
		c.config.BaseURL, url.PathEscape(c.config.Species), url.PathEscape(string(id)))

	c.logger.Trace("GET %s", endpoint)
	body, err := c.getJSON(ctx, endpoint)
	if err != nil {
		var statusErr *StatusError
		if stderrors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest {
			return nil, errors.Wrap(errors.NotFound(string(id)), statusErr.Error())
		}
		return nil, errors.ExternalServiceError(serviceName, err)
	}

	annotation, err := parseVEP(id, body)
	if err != nil {
		if stderrors.Is(err, ErrNoData) {
			return nil, errors.Wrap(errors.NotFound(string(id)), ErrNoData.Error())
		}
		return nil, errors.ExternalServiceError(serviceName, err)
	}
	return annotation, nil
}

// getJSON issues a GET request and returns the validated JSON body
func (c *Client) getJSON(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return body, nil
}

// pause waits for the configured request delay or until ctx is done
func (c *Client) pause(ctx context.Context) error {
	if c.config.RequestDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.config.RequestDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// errorMessage pulls the "error" field Ensembl puts in failure bodies
func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error"); msg.Exists() {
		return msg.String()
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func skipReason(err error) string {
	var statusErr *StatusError
	switch {
	case stderrors.As(err, &statusErr):
		return statusErr.Error()
	case errors.GetCode(err) == errors.CodeNotFound:
		return errors.UserMessage(err)
	default:
		return err.Error()
	}
}
