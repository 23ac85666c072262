package subsonic

import (
	"errors"
	"fmt"
)

// Error codes of the remote API envelope.
const (
	CodeGeneric           = 0
	CodeMissingParameter  = 10
	CodeClientMustUpgrade = 20
	CodeServerMustUpgrade = 30
	CodeBadCredentials    = 40
	CodeUnsupportedAuth   = 41
	CodeUnauthorized      = 50
	CodeTrialExpired      = 60
	CodeNotFound          = 70
)

const unknownErrorCode = "Unknown Error Code."

var codeMessages = map[int]string{
	CodeGeneric:           "Generic Error.",
	CodeMissingParameter:  "Required Parameter Missing.",
	CodeClientMustUpgrade: "Incompatible Subsonic REST protocol version. Client must upgrade.",
	CodeServerMustUpgrade: "Incompatible Subsonic REST protocol version. Server must upgrade.",
	CodeBadCredentials:    "Wrong username or password.",
	CodeUnsupportedAuth:   "Token authentication not supported for LDAP users.",
	CodeUnauthorized:      "User is not authorized for the given operation.",
	CodeTrialExpired:      "The trial period for the Subsonic server is over.",
	CodeNotFound:          "The requested data was not found.",
}

var (
	// ErrNotFound is the soft "requested data was not found" condition.
	// Client operations absorb it and return empty values.
	ErrNotFound = errors.New("subsonic: not found")

	// ErrMalformedResponse means the payload did not have the expected shape.
	// Client operations log it and return empty values.
	ErrMalformedResponse = errors.New("subsonic: malformed response")
)

// APIError is a fatal error reported by the remote API envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("subsonic api error %d: %s", e.Code, e.Message)
}

// errorFromEnvelope maps an envelope error code to ErrNotFound or *APIError.
func errorFromEnvelope(code int) error {
	if code == CodeNotFound {
		return ErrNotFound
	}
	msg, ok := codeMessages[code]
	if !ok {
		msg = unknownErrorCode
	}
	return &APIError{Code: code, Message: msg}
}

// StatusError is a non-2xx HTTP answer.
type StatusError struct {
	Code     int
	Endpoint string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("subsonic: %s returned HTTP %d", e.Endpoint, e.Code)
}

func (e *StatusError) StatusCode() int { return e.Code }
