// In file: internal/llm/errors.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dileep-u-k/llm-agent/internal/errorsx"
)

var timeNow = time.Now

// Phrases providers use when a request exceeds the model's context window.
var tokenLimitPhrases = []string{
	"context length",
	"context_length_exceeded",
	"maximum context",
	"too many tokens",
	"too long",
	"token limit",
	"max_tokens",
	"input is too large",
}

func mentionsTokenLimit(msg string) bool {
	msg = strings.ToLower(msg)
	for _, phrase := range tokenLimitPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// classifyHTTPStatus maps a failed HTTP response from an OpenAI-wire
// provider onto the agent error taxonomy.
func classifyHTTPStatus(provider string, status int, header http.Header, body []byte) *errorsx.Error {
	snippet := string(body)
	if len(snippet) > maxErrorBodyBytes {
		snippet = snippet[:maxErrorBodyBytes] + "..."
	}
	cause := fmt.Errorf("%s API error: status %d, body: %s", provider, status, snippet)

	switch {
	case status == http.StatusTooManyRequests:
		return errorsx.RateLimited(parseRetryAfter(header.Get("Retry-After"), timeNow()), cause)
	case (status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge) && mentionsTokenLimit(snippet):
		return &errorsx.Error{Kind: errorsx.KindTokenLimitExceeded, Err: cause}
	default:
		return &errorsx.Error{Kind: errorsx.KindModelUnavailable, Err: cause}
	}
}

// classifyTransportError handles failures before any response was received.
// Cancellation keeps its own kind so the loop can report it as such.
func classifyTransportError(provider string, err error) *errorsx.Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &errorsx.Error{Kind: errorsx.KindCanceled, Err: err}
	}
	return errorsx.Wrapf(err, errorsx.KindModelUnavailable, "%s request failed", provider)
}

// parseRetryAfter understands both forms of the Retry-After header.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// tokenLimitStop builds the error for a completion the model cut short.
func tokenLimitStop(provider, reason string) *errorsx.Error {
	return errorsx.New(errorsx.KindTokenLimitExceeded, "%s stopped generating (%s); the request may have hit a token limit", provider, reason)
}
