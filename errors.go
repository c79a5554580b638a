package cairn

import "fmt"

// ErrModel reports a failure talking to the model endpoint.
type ErrModel struct {
	Endpoint string
	Message  string
}

func (e *ErrModel) Error() string {
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

// ErrHTTP reports a non-200 response from the model endpoint. Status is
// used by the retry wrapper to detect transient failures (429, 503).
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
