package llm

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// langchaingo reports HTTP failures as "API returned unexpected status code: NNN".
var statusInMessage = regexp.MustCompile(`status code: (\d{3})`)

// IsTransient reports whether a completion failure is worth retrying:
// timeouts, rate limits, 5xx responses, and unavailable or exhausted gRPC
// backends. Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		}
		return false
	}

	if m := statusInMessage.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code == 429 || code >= 500
	}
	return false
}
