package session

// ErrorCode represents a specific session error type.
type ErrorCode string

const (
	ErrCodeNoCamera   ErrorCode = "NO_CAMERA"
	ErrCodeActivation ErrorCode = "ACTIVATION"
	ErrCodeCameraOpen ErrorCode = "CAMERA_OPEN"
	ErrCodeNotStarted ErrorCode = "NOT_STARTED"
	ErrCodeNoFrameYet ErrorCode = "NO_FRAME_YET"
)

// Error is a structured session error. Fatal errors end the session and are
// reported to the user; the others signal misuse of the API.
type Error struct {
	Code    ErrorCode
	Message string
	Fatal   bool
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so the package-level values below
// work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var errorMessages = map[ErrorCode]string{
	ErrCodeNoCamera:   "No camera available",
	ErrCodeActivation: "Recognition engine is not activated",
	ErrCodeCameraOpen: "Failed to open camera",
	ErrCodeNotStarted: "Session is not running",
	ErrCodeNoFrameYet: "No frame has been captured yet",
}

// GetErrorMessage returns a user-friendly message for an error code.
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Session error"
}

// NewError creates a session error wrapping cause, which may be nil.
func NewError(code ErrorCode, cause error) *Error {
	return &Error{
		Code:    code,
		Message: GetErrorMessage(code),
		Fatal:   code == ErrCodeNoCamera || code == ErrCodeActivation || code == ErrCodeCameraOpen,
		Err:     cause,
	}
}

// Sentinels for errors.Is.
var (
	ErrNoCamera   = NewError(ErrCodeNoCamera, nil)
	ErrActivation = NewError(ErrCodeActivation, nil)
	ErrCameraOpen = NewError(ErrCodeCameraOpen, nil)
	ErrNotStarted = NewError(ErrCodeNotStarted, nil)
	ErrNoFrameYet = NewError(ErrCodeNoFrameYet, nil)
)
