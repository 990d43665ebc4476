package api

import (
	"errors"
	"fmt"
)

// Kind tags the cause of a failed backend call.
type Kind string

const (
	KindAuth               Kind = "auth"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindValidation         Kind = "validation"
	KindServer             Kind = "server"
	KindNetwork            Kind = "network"
	KindDecode             Kind = "decode"
	KindNoCredential       Kind = "no_credential"
)

var (
	ErrUnauthorized       = errors.New("credential rejected")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrValidation         = errors.New("validation failed")
	ErrServer             = errors.New("server error")
	ErrUnavailable        = errors.New("backend unavailable")
	ErrDecode             = errors.New("malformed response")
	ErrNoCredential       = errors.New("no credential")
)

var sentinels = map[Kind]error{
	KindAuth:               ErrUnauthorized,
	KindNotFound:           ErrNotFound,
	KindConflict:           ErrConflict,
	KindInvalidCredentials: ErrInvalidCredentials,
	KindValidation:         ErrValidation,
	KindServer:             ErrServer,
	KindNetwork:            ErrUnavailable,
	KindDecode:             ErrDecode,
	KindNoCredential:       ErrNoCredential,
}

// Error is the single failure type returned by every Client helper.
type Error struct {
	Kind     Kind
	Endpoint string
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Endpoint, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error kind, so callers can write
// errors.Is(err, api.ErrNotFound).
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// KindOf returns the kind of err, KindServer for foreign errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindServer
}

// IsAuth reports whether err says the credential itself is unusable.
func IsAuth(err error) bool {
	k := KindOf(err)
	return k == KindAuth || k == KindNoCredential
}

// classify maps a non-success status to a kind. The backend answers 400
// "Invalid token" for undecodable bearer tokens.
func classify(status int, message string) Kind {
	switch {
	case status == 401:
		return KindAuth
	case status == 400 && message == "Invalid token":
		return KindAuth
	case status == 404:
		return KindNotFound
	case status == 403:
		return KindConflict
	case status == 400 || status == 422:
		return KindValidation
	default:
		return KindServer
	}
}
