// Package cli renders recommendation and title results for the command line.
package cli

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hyperjump/kinorec/internal/models"
	"github.com/hyperjump/kinorec/pkg/utils"
)

// OutputFormat is the format for result output.
type OutputFormat string

const (
	// OutputText is a human-readable five-column grid (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one tab-separated line per result.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// GridColumns is the number of recommendations shown side by side in text output.
const GridColumns = 5

const (
	cellWidth         = 26
	posterPlaceholder = "[no poster]"
)

// ParseOutputFormat validates s as an output format. Empty means OutputText.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact:
		return OutputCompact, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text, compact, or json)", s)
	}
}

// WriteRecommendations writes a recommendation response to w in the given format.
func WriteRecommendations(w io.Writer, resp *models.RecommendResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, r := range resp.Recommendations {
			poster := r.PosterURL
			if poster == "" {
				poster = "-"
			}
			if _, err := fmt.Fprintf(w, "%d\t%s\t%.4f\t%s\n", r.Rank, r.Item.Title, r.Score, poster); err != nil {
				return err
			}
		}
		return nil
	default:
		return writeRecommendationsText(w, resp)
	}
}

func writeRecommendationsText(w io.Writer, resp *models.RecommendResponse) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\nRecommendations for %q (%d in %dms)\n\n", resp.Query, len(resp.Recommendations), resp.QueryTime)
	if len(resp.Recommendations) == 0 {
		b.WriteString("No other items in the catalog.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	showPosters := false
	for _, r := range resp.Recommendations {
		if r.PosterURL != "" || r.Placeholder {
			showPosters = true
			break
		}
	}

	for start := 0; start < len(resp.Recommendations); start += GridColumns {
		end := min(start+GridColumns, len(resp.Recommendations))
		row := resp.Recommendations[start:end]
		writeGridLine(&b, row, func(r *models.RecommendedItem) string {
			return fmt.Sprintf("#%d  %.4f", r.Rank, r.Score)
		})
		writeGridLine(&b, row, func(r *models.RecommendedItem) string {
			return r.Item.Title
		})
		if showPosters {
			writeGridLine(&b, row, posterCell)
		}
		b.WriteByte('\n')
	}

	if showPosters {
		b.WriteString("Posters:\n")
		for _, r := range resp.Recommendations {
			if r.Placeholder || r.PosterURL == "" {
				fmt.Fprintf(&b, "  #%d %s %s\n", r.Rank, posterPlaceholder, r.PosterError)
				continue
			}
			fmt.Fprintf(&b, "  #%d %s\n", r.Rank, r.PosterURL)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func posterCell(r *models.RecommendedItem) string {
	if r.Placeholder || r.PosterURL == "" {
		return posterPlaceholder
	}
	return path.Base(r.PosterURL)
}

// writeGridLine writes one line of the grid: cell(r) for each item, each cut to fit its column.
func writeGridLine(b *strings.Builder, row []*models.RecommendedItem, cell func(*models.RecommendedItem) string) {
	for i, r := range row {
		text := utils.Truncate(cell(r), cellWidth-5)
		if i == len(row)-1 {
			b.WriteString(text)
			break
		}
		fmt.Fprintf(b, "%-*s", cellWidth, text)
	}
	b.WriteByte('\n')
}

// WriteTitles writes a title listing or title search response to w in the given format.
func WriteTitles(w io.Writer, resp *models.TitlesResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, m := range resp.Matches {
			if _, err := fmt.Fprintln(w, m.Item.Title); err != nil {
				return err
			}
		}
		return nil
	default:
		var b strings.Builder
		if resp.CorrectedQuery != "" {
			fmt.Fprintf(&b, "No titles matched %q; showing results for %q\n", resp.Query, resp.CorrectedQuery)
		}
		fmt.Fprintf(&b, "%d titles\n", resp.Total)
		for _, m := range resp.Matches {
			fmt.Fprintf(&b, "  [%d] %s\n", m.Item.Index, m.Item.Title)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}
}

// WriteNotFound writes the message shown for an unknown title, with close titles if any.
func WriteNotFound(w io.Writer, title string, suggestions []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "No item titled %q in the catalog.\n", title)
	if len(suggestions) > 0 {
		b.WriteString("Did you mean:\n")
		for _, s := range suggestions {
			fmt.Fprintf(&b, "  %s\n", s)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
