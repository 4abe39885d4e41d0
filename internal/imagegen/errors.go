package imagegen

import "fmt"

// ProviderError is a non-2xx or unusable response from the image provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("image provider returned status %d: %s", e.StatusCode, e.Body)
}

// TransportError means the provider could not be reached: timeout, DNS,
// connection reset or a cancelled context.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "image provider unreachable: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }
