package poster

import (
	"errors"
	"fmt"
)

// ErrFetch is the sentinel every poster lookup failure unwraps to.
var ErrFetch = errors.New("poster fetch failed")

// FetchError describes a failed poster lookup for one item.
type FetchError struct {
	ExternalID string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("poster for %q: status %d: %v", e.ExternalID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("poster for %q: %v", e.ExternalID, e.Err)
}

// Unwrap returns both the sentinel and the cause so errors.Is matches either.
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

// errMissingPosterPath is the cause when the metadata response has no poster_path.
var errMissingPosterPath = errors.New("response has no poster_path")
