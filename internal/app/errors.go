package app

import "fmt"

// DomainError carries the HTTP status and the machine-readable error code
// returned to the client.
type DomainError struct {
	Status int
	Code   string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Code)
}

func domainError(status int, code string) *DomainError {
	return &DomainError{Status: status, Code: code}
}
