package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	dserrors "github.com/systmms/acctexport/internal/errors"
)

// withStoreTimeout bounds one secret store call.
func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// timeoutError turns a store call that ran out of time into a UserError.
// Other errors, including cancellation of the parent context, come back
// unchanged.
func timeoutError(parent context.Context, err error, store string, timeout time.Duration) error {
	if !errors.Is(err, context.DeadlineExceeded) || parent.Err() != nil {
		return err
	}
	return dserrors.UserError{
		Message:    fmt.Sprintf("Secret store %q timed out", store),
		Details:    fmt.Sprintf("Operation exceeded %s timeout", timeout),
		Suggestion: timeoutSuggestion(timeout),
		Err:        err,
	}
}

func timeoutSuggestion(timeout time.Duration) string {
	if timeout < 10*time.Second {
		return "Try increasing timeout_ms for this store in the settings file"
	}
	return "Check network connectivity and store authentication. Consider increasing timeout_ms if the store is consistently slow"
}
