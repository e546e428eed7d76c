package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"litreview/internal/util"
)

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
)

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, util.ErrQuotaExhausted):
		return ErrorQuota
	case errors.Is(err, util.ErrRateLimited):
		return ErrorRate
	case errors.Is(err, util.ErrContextTooLong):
		return ErrorContext
	case errors.Is(err, util.ErrTransient):
		return ErrorTransient
	case errors.Is(err, util.ErrPermanent):
		return ErrorPermanent
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "context"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

// statusError wraps an HTTP error response in the sentinel matching its status.
func statusError(provider string, code int, body []byte) error {
	var kind error
	msg := strings.ToLower(string(body))
	switch {
	case strings.Contains(msg, "insufficient_quota"):
		kind = util.ErrQuotaExhausted
	case code == http.StatusTooManyRequests:
		kind = util.ErrRateLimited
	case strings.Contains(msg, "context_length_exceeded"):
		kind = util.ErrContextTooLong
	case code >= 500:
		kind = util.ErrTransient
	default:
		kind = util.ErrPermanent
	}
	return fmt.Errorf("%s generate error %d: %w: %s", provider, code, kind, string(body))
}
