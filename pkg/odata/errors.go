package odata

import "fmt"

// SyntaxError reports a malformed OData option. It maps to a 400 response.
type SyntaxError struct {
	Option string // $filter, $orderby, ...
	Pos    int    // byte offset into the option value, -1 when unknown
	Msg    string
}

func (e *SyntaxError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("invalid %s at position %d: %s", e.Option, e.Pos, e.Msg)
	}
	return fmt.Sprintf("invalid %s: %s", e.Option, e.Msg)
}

// UnknownFieldError reports a field reference that is not a declared alias.
// It maps to a 400 response.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %s", e.Field)
}

func syntaxErr(option string, pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Option: option, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
