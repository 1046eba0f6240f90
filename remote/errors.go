package remote

import "fmt"

// NetworkError covers transport failures and remote errors that carry
// no more specific classification. StatusCode is zero when the request
// never produced a response.
type NetworkError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: network failure", e.Op)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NotFoundError is returned when a referenced entity id is absent
// server-side.
type NotFoundError struct {
	Op      string
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: not found", e.Op)
}

// ConflictError is reserved for multi-writer conflicts; the current
// remote surface only reports it for duplicate member emails.
type ConflictError struct {
	Op      string
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: conflict", e.Op)
}
