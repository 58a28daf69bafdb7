package utils

import "fmt"

// UnimplementedError represents an error indicating that the operation is not implemented.
type UnimplementedError struct {
	Feature string
}

// Error returns the error message for UnimplementedError.
func (e UnimplementedError) Error() string {
	if e.Feature == "" {
		return "Not implemented"
	}
	return fmt.Sprintf("Not implemented: %s", e.Feature)
}
