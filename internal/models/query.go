package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuery is returned (wrapped) for malformed recommendation or title queries.
var ErrInvalidQuery = errors.New("invalid query")

// DefaultK is the number of recommendations returned when the caller does not ask for a count.
const DefaultK = 5

// RecommendQuery is a recommendation request for the item with the given title.
type RecommendQuery struct {
	Title   string `json:"title"`
	K       int    `json:"k,omitempty"`
	Posters bool   `json:"posters,omitempty"` // resolve poster URLs for each recommendation
}

// Validate checks the query and normalizes K into [1, maxK].
// A non-positive K becomes defaultK. Title is matched exactly, so it is not trimmed;
// a blank title is rejected.
func (q *RecommendQuery) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(q.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidQuery)
	}
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	if maxK <= 0 {
		maxK = defaultK
	}
	if q.K <= 0 {
		q.K = defaultK
	}
	if q.K > maxK {
		q.K = maxK
	}
	return nil
}
