package app

import "errors"

// ErrorKind classifies failures so the transport layer can map them without
// inspecting message text.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindUnauthorized
	KindConflict
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a client-facing failure. Message is safe to return to callers.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrFieldsRequired      = &Error{Kind: KindValidation, Message: "All fields are required"}
	ErrCredentialsRequired = &Error{Kind: KindValidation, Message: "Username and password are required"}
	ErrPasswordTooLong     = &Error{Kind: KindValidation, Message: "Password must be at most 72 bytes"}

	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Message: "Invalid credentials"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "Unauthorized"}

	ErrUsernameTaken   = &Error{Kind: KindConflict, Message: "Username already exists"}
	ErrDonorNotFound   = &Error{Kind: KindNotFound, Message: "Donor not found"}
	ErrInvalidStatus   = &Error{Kind: KindValidation, Message: "Status must be approved or rejected"}
	ErrInvalidEmail    = &Error{Kind: KindValidation, Message: "Invalid email"}
	ErrPhoneTooShort   = &Error{Kind: KindValidation, Message: "Phone must be at least 5 characters"}
	ErrInvalidAge      = &Error{Kind: KindValidation, Message: "Age must be a positive integer"}
	ErrDonorIDRequired = &Error{Kind: KindValidation, Message: "Donor id is required"}
)

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
