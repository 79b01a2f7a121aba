package session

import (
	"errors"
	"net/http"
)

// FailureKind classifies login and registration failures.
type FailureKind string

// Failure kinds surfaced to the user.
const (
	MissingFields          FailureKind = "MISSING_FIELDS"
	InvalidCredentials     FailureKind = "INVALID_CREDENTIALS"
	AccountInactive        FailureKind = "ACCOUNT_INACTIVE"
	EmailAlreadyRegistered FailureKind = "EMAIL_ALREADY_REGISTERED"
	Unknown                FailureKind = "UNKNOWN"
)

var defaultMessages = map[FailureKind]string{
	MissingFields:          "Todos los campos son requeridos",
	InvalidCredentials:     "Usuario o contraseña incorrecta",
	AccountInactive:        "La cuenta no está activa",
	EmailAlreadyRegistered: "El email ya está registrado",
	Unknown:                "No se pudo completar la operación",
}

// AuthError is the typed failure returned by Login and Register.
type AuthError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	msg := "session: " + string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches sentinel AuthErrors by kind.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// UserMessage is the text shown next to the form.
func (e *AuthError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return defaultMessages[e.Kind]
}

// Sentinels for errors.Is checks.
var (
	ErrMissingFields          = &AuthError{Kind: MissingFields}
	ErrInvalidCredentials     = &AuthError{Kind: InvalidCredentials}
	ErrAccountInactive        = &AuthError{Kind: AccountInactive}
	ErrEmailAlreadyRegistered = &AuthError{Kind: EmailAlreadyRegistered}
	ErrUnknown                = &AuthError{Kind: Unknown}

	// ErrAuthInFlight rejects a second login or registration while one is pending.
	ErrAuthInFlight = errors.New("session: authentication already in progress")
	// ErrSuperseded marks a login whose result arrived after a logout.
	ErrSuperseded = errors.New("session: superseded by logout")
)

// KindOf returns the failure kind carried by err, or Unknown.
func KindOf(err error) FailureKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Unknown
}

// statusError is implemented by collaborator errors that carry an HTTP status.
type statusError interface {
	error
	HTTPStatus() int
	ServerMessage() string
}

func classifyLogin(err error) *AuthError {
	var se statusError
	if errors.As(err, &se) {
		switch se.HTTPStatus() {
		case http.StatusUnauthorized:
			return &AuthError{Kind: InvalidCredentials, Err: err}
		case http.StatusForbidden:
			return &AuthError{Kind: AccountInactive, Err: err}
		}
		return &AuthError{Kind: Unknown, Message: se.ServerMessage(), Err: err}
	}
	return &AuthError{Kind: Unknown, Err: err}
}

func classifyRegister(err error) *AuthError {
	var se statusError
	if errors.As(err, &se) {
		if se.HTTPStatus() == http.StatusConflict {
			return &AuthError{Kind: EmailAlreadyRegistered, Err: err}
		}
		return &AuthError{Kind: Unknown, Message: se.ServerMessage(), Err: err}
	}
	return &AuthError{Kind: Unknown, Err: err}
}
