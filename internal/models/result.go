package models

// Recommendation is one ranked candidate for a query item.
type Recommendation struct {
	Item  Item    `json:"item"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// RecommendedItem is a recommendation with its display poster resolved.
// When the poster lookup fails, PosterURL is empty, Placeholder is true and PosterError says why;
// the other recommendations in the response are unaffected.
type RecommendedItem struct {
	Recommendation
	PosterURL   string `json:"poster_url,omitempty"`
	PosterError string `json:"poster_error,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// RecommendResponse is the response for a recommendation request.
type RecommendResponse struct {
	RequestID       string             `json:"request_id"`
	Query           string             `json:"query"`
	K               int                `json:"k"`
	Recommendations []*RecommendedItem `json:"recommendations"`
	QueryTime       int64              `json:"query_time_ms"`
}

// TitlesResponse is the response for a title listing or title search.
// CorrectedQuery is set when the query matched nothing and a spelling correction did.
type TitlesResponse struct {
	Query          string        `json:"query,omitempty"`
	CorrectedQuery string        `json:"corrected_query,omitempty"`
	Total          int           `json:"total"`
	Matches        []*TitleMatch `json:"matches"`
}

// ErrorResponse is the JSON body for failed API requests.
// Suggestions holds close catalog titles when the requested title is unknown.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}
