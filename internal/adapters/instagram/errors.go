package instagram

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	perr "instapilot/internal/platform/errors"
)

// Graph error codes that mean the caller is throttled
var rateLimitCodes = map[int]struct{}{
	4:   {}, // application request limit
	17:  {}, // user request limit
	32:  {}, // page request limit
	613: {}, // calls within one hour exceeded
}

// codeInvalidToken is the OAuthException code for an expired or revoked token
const codeInvalidToken = 190

// GraphError wraps a non-2xx Graph API response
type GraphError struct {
	Status  int
	Code    int
	Subcode int
	Type    string
	Message string
	Err     error
}

// Error interface
func (e *GraphError) Error() string { return e.Err.Error() }

// Unwrap interface
func (e *GraphError) Unwrap() error { return e.Err }

// HTTPStatus interface
func (e *GraphError) HTTPStatus() int { return e.Status }

type errorBody struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

// decodeError builds a GraphError and maps it onto a platform error code
func decodeError(status int, body []byte) *GraphError {
	ge := &GraphError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		ge.Code = eb.Error.Code
		ge.Subcode = eb.Error.ErrorSubcode
		ge.Type = eb.Error.Type
		ge.Message = eb.Error.Message
	}
	if ge.Message == "" {
		tail := string(body)
		if len(tail) > 256 {
			tail = tail[:256]
		}
		ge.Message = strings.TrimSpace(tail)
	}
	ge.Err = perr.Newf(classify(ge), "instagram status %d code %d: %s", status, ge.Code, ge.Message)
	return ge
}

func classify(ge *GraphError) perr.ErrorCode {
	if _, ok := rateLimitCodes[ge.Code]; ok {
		return perr.ErrorCodeTooManyRequests
	}
	if ge.Status == http.StatusTooManyRequests || strings.Contains(strings.ToLower(ge.Message), "rate limit") {
		return perr.ErrorCodeTooManyRequests
	}
	if ge.Code == codeInvalidToken || ge.Status == http.StatusUnauthorized {
		return perr.ErrorCodeUnauthorized
	}
	if ge.Status == http.StatusNotFound {
		return perr.ErrorCodeNotFound
	}
	if ge.Status >= 500 {
		return perr.ErrorCodeUnavailable
	}
	return perr.ErrorCodeUnknown
}

// IsRateLimited reports whether err is a throttling response
func IsRateLimited(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return perr.IsCode(ge.Err, perr.ErrorCodeTooManyRequests)
	}
	return perr.IsCode(err, perr.ErrorCodeTooManyRequests)
}

// IsTransient reports whether err is a 5xx Graph response
func IsTransient(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Status >= 500 && ge.Status <= 599
	}
	return false
}

// IsAuth reports whether err means the account credential is no longer valid
func IsAuth(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return perr.IsCode(ge.Err, perr.ErrorCodeUnauthorized)
	}
	return false
}

// usage is the X-App-Usage header, percentages of the app quota
type usage struct {
	CallCount    int `json:"call_count"`
	TotalCPUTime int `json:"total_cputime"`
	TotalTime    int `json:"total_time"`
}

func parseUsage(h http.Header) usage {
	var u usage
	if s := h.Get("X-App-Usage"); s != "" {
		_ = json.Unmarshal([]byte(s), &u)
	}
	return u
}
