package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

// ErrNotConfigured is returned when a provider has no credentials.
var ErrNotConfigured = fmt.Errorf("%w: ai provider not configured", appErr.ErrInternal)

// classifyStatus maps an HTTP status from an OpenAI compatible endpoint onto
// the error taxonomy.
func classifyStatus(provider string, status int, body string) error {
	msg := fmt.Sprintf("%s request failed: %d: %s", provider, status, strings.TrimSpace(body))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", appErr.ErrUnauthorized, msg)
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return fmt.Errorf("%w: %s", appErr.ErrModelUnavailable, msg)
	default:
		return fmt.Errorf("%w: %s", appErr.ErrModelRejected, msg)
	}
}

// classifyCallErr wraps transport and SDK errors. SDK API errors are mapped by
// their HTTP status. Anything else falls back to matching the message.
func classifyCallErr(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, appErr.ErrUnauthorized) || errors.Is(err, appErr.ErrModelRejected) || errors.Is(err, appErr.ErrModelUnavailable) {
		return err
	}
	if code, ok := apiErrorCode(err); ok {
		return classifyStatus(provider, code, err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", appErr.ErrModelUnavailable, provider, err)
	}
	lower := strings.ToLower(err.Error())
	switch {
	case containsAny(lower, "unauthenticated", "permission_denied", "api key not valid"):
		return fmt.Errorf("%w: %s: %v", appErr.ErrUnauthorized, provider, err)
	case containsAny(lower, "invalid_argument", "failed_precondition", "safety", "blocked"):
		return fmt.Errorf("%w: %s: %v", appErr.ErrModelRejected, provider, err)
	}
	return fmt.Errorf("%w: %s: %v", appErr.ErrModelUnavailable, provider, err)
}

// apiErrorCode reports the HTTP status of a genai API error. The SDK returns
// it by value, pointers are accepted as well.
func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Code != 0 {
		return apiErrPtr.Code, true
	}
	return 0, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
