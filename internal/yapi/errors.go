package yapi

// ErrorCode categorizes client errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError    ErrorCode = "InputError"
	NetworkError  ErrorCode = "NetworkError"
	AuthError     ErrorCode = "AuthError"
	NotFoundError ErrorCode = "NotFoundError"
	RemoteError   ErrorCode = "RemoteError"
	DecodeError   ErrorCode = "DecodeError"
)

// YAPI errcode values the client reacts to.
const (
	errcodeOK             = 0
	errcodeSessionExpired = 40011
	errcodeNotFound       = 490
)

// APIError is a structured client error.
type APIError struct {
	Code    ErrorCode
	Errcode int // YAPI errcode, when the server answered
	Message string
	Path    string // request path, e.g. "api/interface/get"
	Cause   error
}

func (e *APIError) Error() string { return e.Message }
func (e *APIError) Unwrap() error { return e.Cause }
