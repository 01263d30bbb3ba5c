package serrors

import "fmt"

// Base is a coded error shared by infrastructure packages. Domain services
// wrap their own richer error types; Base covers the plumbing layers where a
// stable machine-readable code is all a caller needs.
type Base struct {
	Code    string
	Message string
	Details string
}

func (e *Base) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Details)
}

func NewError(code, message, details string) *Base {
	return &Base{Code: code, Message: message, Details: details}
}
