package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/fusion-intel/pkg/anthropic"
)

// Verdict is the confidence oracle's judgment of one field change.
type Verdict struct {
	Valid      bool    `json:"valid"`
	Confidence float64 `json:"confidence"`
}

// fallbackVerdict is used when the oracle fails: moderate confidence,
// enough to produce a review proposal but never an auto-apply.
var fallbackVerdict = Verdict{Valid: true, Confidence: 0.75}

// Validator scores a proposed field change.
type Validator interface {
	ValidateChange(ctx context.Context, entityName, fieldName, oldValue, newValue string) (Verdict, error)
}

const validateSystem = `You are a data quality checker for a fusion energy company research database.
Given a proposed field change, judge whether the new value is plausible for the field
and a reasonable successor to the old value. Respond with only a JSON object:
{"valid": true/false, "confidence": 0.0-1.0}`

const validateUser = `Company: %s
Field: %s
Current value: %s
Proposed value: %s

Is this change plausible?`

type anthropicValidator struct {
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
	timeout time.Duration
}

// NewAnthropicValidator builds the model-backed confidence oracle. rps
// bounds the request rate shared across a sync run.
func NewAnthropicValidator(client anthropic.Client, model string, timeout time.Duration, rps float64) Validator {
	if rps <= 0 {
		rps = 1
	}
	return &anthropicValidator{
		client:  client,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
	}
}

func (v *anthropicValidator) ValidateChange(ctx context.Context, entityName, fieldName, oldValue, newValue string) (Verdict, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return Verdict{}, eris.Wrap(err, "validator: rate limit wait")
	}

	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     v.model,
		MaxTokens: 256,
		System:    validateSystem,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(validateUser, entityName, fieldName, oldValue, newValue)},
		},
	})
	if err != nil {
		return Verdict{}, eris.Wrap(err, "validator: create message")
	}
	resp.Usage.LogCost(v.model, "validate_change")

	return parseVerdict(resp.Text())
}

// parseVerdict extracts the JSON object from the model's reply, which may
// be wrapped in prose or a code fence.
func parseVerdict(text string) (Verdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Verdict{}, eris.Errorf("validator: no JSON object in response %q", clipForError(text))
	}

	var v Verdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return Verdict{}, eris.Wrap(err, "validator: parse verdict")
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return Verdict{}, eris.Errorf("validator: confidence %.2f out of range", v.Confidence)
	}
	return v, nil
}

func clipForError(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
