// ABOUTME: Error taxonomy for remote chat service failures
// ABOUTME: One typed wrapper per operation so callers can discriminate, plus StatusError for non-2xx

package api

import "fmt"

// StatusError reports a non-2xx response from the remote service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

// FetchError wraps any failure of a conversation or document fetch. The
// engine propagates it to the caller of Load; there is no automatic retry
// and the store is left unchanged.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetching conversation: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// CreateError wraps a failure to create a conversation. The list-op flag
// resets to idle and no conversation is loaded.
type CreateError struct {
	Err error
}

func (e *CreateError) Error() string { return "creating conversation: " + e.Err.Error() }
func (e *CreateError) Unwrap() error { return e.Err }

// PostError wraps a failure to post a prompt. The submission workflow still
// clears the input and runs its reconciling fetch, so a failed send surfaces
// only as the optimistic message disappearing.
type PostError struct {
	Err error
}

func (e *PostError) Error() string { return "posting prompt: " + e.Err.Error() }
func (e *PostError) Unwrap() error { return e.Err }
