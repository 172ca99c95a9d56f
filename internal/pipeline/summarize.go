package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shopdesk/workorder-cli/internal/model"
	"github.com/shopdesk/workorder-cli/pkg/anthropic"
)

const summarySystemPrompt = "You are an expert auto repair service writer who converts technician notes into professional work orders."

const summaryPromptTemplate = `Based on the following voice memo transcript from an auto technician, create:
1. A summary of work performed
2. A detailed list of parts used with prices
3. An estimate of labor hours and cost (assume $100/hour)
4. A total estimate

%s

Voice memo transcript:
%s

Format the response as JSON with these fields:
{
    "work_summary": "Brief description of work done",
    "line_items": [
        {"description": "Part or labor description", "type": "part|labor", "quantity": number, "unit_price": number, "total": number}
    ],
    "total_parts": number,
    "total_labor": number,
    "total": number
}`

// summaryTemperature keeps synthesis close to the transcript.
const summaryTemperature = 0.2

// Summarizer synthesizes a structured work summary from the full transcript
// and whatever vehicle attributes extraction produced. A malformed or failed
// generation yields the zeroed default payload, never an error.
type Summarizer struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	callTimeout time.Duration
}

// NewSummarizer creates a Summarizer using the given text model.
func NewSummarizer(client anthropic.Client, summaryModel string, maxTokens int64) *Summarizer {
	s := &Summarizer{
		client:      client,
		model:       summaryModel,
		maxTokens:   maxTokens,
		callTimeout: defaultCallTimeout,
	}
	if s.maxTokens <= 0 {
		s.maxTokens = 2048
	}
	return s
}

// Summarize returns the synthesized summary for transcript. The second
// return value carries notes describing any degradation.
func (s *Summarizer) Summarize(ctx context.Context, transcript string, vehicleInfo map[string]string) (*model.SummaryResult, []string) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	temp := summaryTemperature
	resp, err := s.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		System:      summarySystemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{
			anthropic.TextMessage(fmt.Sprintf(summaryPromptTemplate, vehicleContext(vehicleInfo), transcript)),
		},
	})
	if err != nil {
		zap.L().Warn("pipeline: summary generation failed", zap.Error(err))
		return model.ZeroSummary(), []string{"Work summary generation error: " + truncateNote(err.Error())}
	}

	var result model.SummaryResult
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &result); err != nil {
		zap.L().Warn("pipeline: summary response not parseable", zap.Error(err))
		return model.ZeroSummary(), []string{"Work summary response was malformed - using empty summary"}
	}
	return &result, nil
}

// vehicleContext formats the attributes map as prompt context; empty map
// yields an empty string.
func vehicleContext(vehicleInfo map[string]string) string {
	if len(vehicleInfo) == 0 {
		return ""
	}
	vin := vehicleInfo[model.InfoVIN]
	if vin == "" {
		vin = "unknown"
	}
	mileage := vehicleInfo[model.InfoMileage]
	if mileage == "" {
		mileage = "unknown"
	}
	return fmt.Sprintf("Vehicle information: VIN %s, Mileage: %s", vin, mileage)
}

// cleanJSON extracts a JSON object from text that may carry markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
