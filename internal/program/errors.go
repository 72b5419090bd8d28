package program

import (
	"errors"
	"fmt"
)

// ErrorCode is a program failure kind. Codes start at 6000 so they never
// collide with host error numbers.
type ErrorCode uint32

const (
	ErrUnauthorized ErrorCode = 6000 + iota
	ErrNotAllowed
	ErrMathOverflow
	ErrAlreadyMarked
)

var codeInfo = map[ErrorCode]struct{ name, msg string }{
	ErrUnauthorized:  {"Unauthorized", "you are not authorized to perform this action"},
	ErrNotAllowed:    {"NotAllowed", "not allowed"},
	ErrMathOverflow:  {"MathOverflow", "math operation overflow"},
	ErrAlreadyMarked: {"AlreadyMarked", "todo is already marked"},
}

func (c ErrorCode) Name() string {
	if info, ok := codeInfo[c]; ok {
		return info.name
	}
	return fmt.Sprintf("Code%d", uint32(c))
}

func (c ErrorCode) Error() string {
	info, ok := codeInfo[c]
	if !ok {
		return fmt.Sprintf("program error %d", uint32(c))
	}
	return fmt.Sprintf("%s (%d): %s", info.name, uint32(c), info.msg)
}

var (
	errShortData     = errors.New("account data too short")
	errDiscriminator = errors.New("account discriminator mismatch")
)

// Error records which instruction failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the program error code from err, if it carries one.
func Code(err error) (ErrorCode, bool) {
	var code ErrorCode
	if errors.As(err, &code) {
		return code, true
	}
	return 0, false
}

func notAllowed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotAllowed}, args...)...)
}
