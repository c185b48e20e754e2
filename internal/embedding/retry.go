package embedding

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// retryTransient runs op up to maxAttempts times, retrying only errors that
// isTransient accepts. The delay doubles after every failed attempt.
func retryTransient(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(attempt int) error) error {
	var lastErr error
	delay := baseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = op(attempt)
		if lastErr == nil {
			return nil
		}

		// parent cancellation is not a provider fault; stop here
		if ctx.Err() != nil || !isTransient(lastErr) || attempt == maxAttempts {
			return lastErr
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			case <-timer.C:
			}
			delay *= 2
		}
	}

	return lastErr
}

// isTransient reports whether err looks like a network blip or an overloaded
// upstream rather than a request the provider will always reject.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return retryableStatus(gErr.Code)
	}

	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
