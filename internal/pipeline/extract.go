package pipeline

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shopdesk/workorder-cli/internal/model"
	"github.com/shopdesk/workorder-cli/internal/resilience"
	"github.com/shopdesk/workorder-cli/pkg/anthropic"
)

// noteMaxLen bounds failure text carried into processing notes so a verbose
// upstream error cannot bloat the audit trail.
const noteMaxLen = 100

// defaultCallTimeout bounds a single external call. No budget spans the
// whole run; each call gets its own.
const defaultCallTimeout = 30 * time.Second

const (
	vinPrompt      = "Extract the VIN number from this door placard image. Only return the VIN, nothing else."
	odometerPrompt = "Read the odometer value from this image. Return only the numeric value in miles, no text."
	platePrompt    = "Extract the license plate number from this vehicle image. Only return the plate number, nothing else."
)

// VINs exclude I, O and Q to avoid digit confusion.
var vinPattern = regexp.MustCompile(`[A-HJ-NPR-Z0-9]{17}`)

var odometerPattern = regexp.MustCompile(`[0-9,]+`)

// Extractor runs vision extraction over submitted photos. Every method
// returns a tagged outcome and never propagates an error: a failed call is
// an Outcome with Err set, an empty image is an empty Outcome.
type Extractor struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	callTimeout time.Duration
	retry       resilience.RetryConfig
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) ExtractorOption {
	return func(e *Extractor) { e.callTimeout = d }
}

// WithRetry overrides the retry policy. The default performs a single
// attempt; a failed call is final for the run.
func WithRetry(cfg resilience.RetryConfig) ExtractorOption {
	return func(e *Extractor) { e.retry = cfg }
}

// NewExtractor creates an Extractor using the given vision model.
func NewExtractor(client anthropic.Client, visionModel string, maxTokens int64, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		client:      client,
		model:       visionModel,
		maxTokens:   maxTokens,
		callTimeout: defaultCallTimeout,
		retry:       resilience.SingleAttempt(),
	}
	if e.maxTokens <= 0 {
		e.maxTokens = 100
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractVIN locates a 17-character VIN in the vision response. If the
// response carries text but no well-formed VIN, the raw text is returned so
// a reviewer can see what the model read.
func (e *Extractor) ExtractVIN(ctx context.Context, image []byte, mediaType string) model.Outcome {
	text, err := e.vision(ctx, vinPrompt, mediaType, image)
	if err != nil {
		zap.L().Warn("pipeline: vin extraction failed", zap.Error(err))
		return model.OutcomeErr(err)
	}
	if m := vinPattern.FindString(text); m != "" {
		return model.OutcomeValue(m)
	}
	return model.OutcomeValue(text)
}

// ReadOdometer extracts a numeric mileage reading with thousands separators
// stripped, falling back to the raw response text.
func (e *Extractor) ReadOdometer(ctx context.Context, image []byte, mediaType string) model.Outcome {
	text, err := e.vision(ctx, odometerPrompt, mediaType, image)
	if err != nil {
		zap.L().Warn("pipeline: odometer read failed", zap.Error(err))
		return model.OutcomeErr(err)
	}
	if m := odometerPattern.FindString(text); m != "" {
		return model.OutcomeValue(strings.ReplaceAll(m, ",", ""))
	}
	return model.OutcomeValue(text)
}

// ExtractPlate returns whatever plate text the vision model produced.
func (e *Extractor) ExtractPlate(ctx context.Context, image []byte, mediaType string) model.Outcome {
	text, err := e.vision(ctx, platePrompt, mediaType, image)
	if err != nil {
		zap.L().Warn("pipeline: plate extraction failed", zap.Error(err))
		return model.OutcomeErr(err)
	}
	return model.OutcomeValue(text)
}

func (e *Extractor) vision(ctx context.Context, prompt, mediaType string, image []byte) (string, error) {
	if len(image) == 0 {
		return "", nil
	}
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	resp, err := resilience.DoVal(callCtx, e.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     e.model,
			MaxTokens: e.maxTokens,
			Messages:  []anthropic.Message{anthropic.VisionMessage(prompt, mediaType, image)},
		})
	})
	if err != nil {
		return "", eris.Wrap(err, "pipeline: vision call")
	}
	return strings.TrimSpace(resp.Text()), nil
}

// truncateNote bounds s to noteMaxLen runes for inclusion in a processing note.
func truncateNote(s string) string {
	runes := []rune(s)
	if len(runes) <= noteMaxLen {
		return s
	}
	return string(runes[:noteMaxLen])
}
