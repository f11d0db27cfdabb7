package driver

import "fmt"

// Category partitions raw driver errors, mirroring the minimum taxonomy
// strata requires from a backend.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryIntegrity
	CategoryOperational
	CategoryProgramming
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryIntegrity:
		return "integrity"
	case CategoryOperational:
		return "operational"
	case CategoryProgramming:
		return "programming"
	case CategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a raw driver error with its category and backend error code.
// Drivers bridged through sqladapter keep their native error types instead;
// dialects classify those directly.
type Error struct {
	Category Category
	Code     string
	Message  string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s error %s: %s", e.Category, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Category, e.Message)
}

// Errorf builds a categorized driver error.
func Errorf(cat Category, code, format string, args ...any) *Error {
	return &Error{Category: cat, Code: code, Message: fmt.Sprintf(format, args...)}
}
