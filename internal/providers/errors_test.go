package providers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"litreview/internal/util"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota": ErrorQuota,
		"429 rate":           ErrorRate,
		"context too long":   ErrorContext,
		"timeout":            ErrorTransient,
		"bad request":        ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
}

func TestClassifyWrappedSentinels(t *testing.T) {
	require.Equal(t, ErrorRate, ClassifyError(fmt.Errorf("call: %w", util.ErrRateLimited)))
	require.Equal(t, ErrorQuota, ClassifyError(statusError("openai", 429, []byte(`{"error":{"code":"insufficient_quota"}}`))))
	require.Equal(t, ErrorRate, ClassifyError(statusError("groq", 429, []byte(`slow down`))))
	require.Equal(t, ErrorTransient, ClassifyError(statusError("openai", 503, []byte(`overloaded`))))
	require.Equal(t, ErrorContext, ClassifyError(statusError("openai", 400, []byte(`context_length_exceeded`))))
	require.Equal(t, ErrorPermanent, ClassifyError(statusError("openai", 401, []byte(`bad key`))))
	require.Equal(t, ErrorType(""), ClassifyError(nil))
}
