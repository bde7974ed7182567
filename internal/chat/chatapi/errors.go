package chatapi

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrUnauthenticated means no credential was available or the server
// rejected it.
var ErrUnauthenticated = errors.New("chatapi: unauthenticated")

const (
	ReasonMissingToken  = "missing_token"
	ReasonTokenRejected = "token_rejected"
)

// APIError is a non-2xx response from the chat API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("chat api: %d %s", e.StatusCode, e.Message)
}

// Unwrap maps 401 responses onto ErrUnauthenticated.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	return nil
}

// LoginRequiredError tells the host to show its login prompt and come back to
// ReturnPath afterwards.
type LoginRequiredError struct {
	ReturnPath string
	Reason     string
}

func (e *LoginRequiredError) Error() string {
	return fmt.Sprintf("login required (%s), return to %s", e.Reason, e.ReturnPath)
}

func (e *LoginRequiredError) Unwrap() error {
	return ErrUnauthenticated
}

// RequireLogin converts an authentication failure into a LoginRequiredError
// for returnPath. Other errors are returned unchanged.
func RequireLogin(returnPath string, err error) error {
	if err == nil {
		return nil
	}
	var lr *LoginRequiredError
	if errors.As(err, &lr) {
		if lr.ReturnPath == "" {
			return &LoginRequiredError{ReturnPath: returnPath, Reason: lr.Reason}
		}
		return err
	}
	if errors.Is(err, ErrUnauthenticated) {
		return &LoginRequiredError{ReturnPath: returnPath, Reason: ReasonTokenRejected}
	}
	return err
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
