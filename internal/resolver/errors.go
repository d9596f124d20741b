package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
)

// DemoModeMessage is shown when a view falls back to bundled sample data.
const DemoModeMessage = "Demo mode — showing sample data"

var (
	// ErrEmpty marks a tier that answered with zero records.
	ErrEmpty = errors.New("source returned no records")
	// ErrRoutingMisconfigured marks an HTML page served where JSON was expected,
	// typically the SPA index answering an API route.
	ErrRoutingMisconfigured = errors.New("received an html page instead of json")
	// ErrNotJSON marks a response with a non-JSON content type.
	ErrNotJSON = errors.New("response is not json")
	// ErrDecode marks a JSON body that could not be parsed.
	ErrDecode = errors.New("malformed json response")
	// ErrExhausted is returned when no tier produced data.
	ErrExhausted = errors.New("all data sources failed")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d %s", e.Code, http.StatusText(e.Code))
}

// Kind is a coarse classification of resolver failures.
type Kind string

const (
	KindNone      Kind = ""
	KindEmpty     Kind = "empty"
	KindRouting   Kind = "routing"
	KindNotJSON   Kind = "not_json"
	KindDecode    Kind = "decode"
	KindStatus    Kind = "status"
	KindCancelled Kind = "cancelled"
	KindTransport Kind = "transport"
)

// Classify maps an error onto a Kind.
func Classify(err error) Kind {
	var statusErr *StatusError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrRoutingMisconfigured):
		return KindRouting
	case errors.Is(err, ErrNotJSON):
		return KindNotJSON
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.As(err, &statusErr):
		return KindStatus
	case errors.Is(err, ErrEmpty):
		return KindEmpty
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindTransport
	}
}

// Describe returns the user-facing message for a failure.
func Describe(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindRouting:
		return "API returned invalid response: received a web page instead of data (check API routing)"
	case KindNotJSON:
		return "API returned invalid response"
	case KindDecode:
		return "API returned malformed data"
	case KindStatus:
		var statusErr *StatusError
		errors.As(err, &statusErr)
		return fmt.Sprintf("API error: HTTP %d", statusErr.Code)
	case KindEmpty:
		return "No records available"
	case KindCancelled:
		return "Request cancelled"
	default:
		return "Unable to reach the directory API"
	}
}

// LooksLikeHTML reports whether a body starts with an HTML document marker.
func LooksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 16 {
		trimmed = trimmed[:16]
	}
	lower := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lower, []byte("<!doctype")) || bytes.HasPrefix(lower, []byte("<html"))
}
