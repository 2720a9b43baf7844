package artifact

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hyperjump/kinorec/internal/models"
)

// jsonArtifact accepts two item layouts:
//   - "movies": column -> row label -> value (the shape of a pandas DataFrame.to_dict())
//   - "items": a list of {"id", "title", "external_id"} records
type jsonArtifact struct {
	Movies     map[string]map[string]json.RawMessage `json:"movies"`
	Items      []jsonItem                            `json:"items"`
	Similarity [][]float64                           `json:"similarity"`
}

type jsonItem struct {
	ID         json.RawMessage `json:"id"`
	Title      string          `json:"title"`
	ExternalID json.RawMessage `json:"external_id"`
}

func readJSON(path string) ([]models.Item, [][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read artifact: %w", err)
	}
	var a jsonArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, nil, fmt.Errorf("parse artifact: %w", err)
	}
	if a.Similarity == nil {
		return nil, nil, fmt.Errorf("parse artifact: missing similarity matrix")
	}

	var items []models.Item
	switch {
	case a.Movies != nil && a.Items != nil:
		return nil, nil, fmt.Errorf("parse artifact: both movies and items present")
	case a.Movies != nil:
		items, err = itemsFromColumns(a.Movies)
	case a.Items != nil:
		items, err = itemsFromRecords(a.Items)
	default:
		return nil, nil, fmt.Errorf("parse artifact: missing movies or items table")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("parse artifact: %w", err)
	}
	return items, a.Similarity, nil
}

func itemsFromColumns(cols map[string]map[string]json.RawMessage) ([]models.Item, error) {
	ids, ok := cols["movie_id"]
	if !ok {
		return nil, fmt.Errorf("movies table has no movie_id column")
	}
	titles, ok := cols["title"]
	if !ok {
		return nil, fmt.Errorf("movies table has no title column")
	}
	externals := cols["external_id"]

	labels, err := rowLabels(titles)
	if err != nil {
		return nil, err
	}
	items := make([]models.Item, len(labels))
	for pos, label := range labels {
		key := strconv.Itoa(label)
		rawID, ok := ids[key]
		if !ok {
			return nil, fmt.Errorf("row %s has a title but no movie_id", key)
		}
		id, err := parseID(rawID)
		if err != nil {
			return nil, fmt.Errorf("row %s movie_id: %w", key, err)
		}
		var title string
		if err := json.Unmarshal(titles[key], &title); err != nil {
			return nil, fmt.Errorf("row %s title: %w", key, err)
		}
		ext := strconv.FormatInt(id, 10)
		if raw, ok := externals[key]; ok {
			if ext, err = parseExternalID(raw); err != nil {
				return nil, fmt.Errorf("row %s external_id: %w", key, err)
			}
		}
		items[pos] = models.Item{ID: id, Title: title, ExternalID: ext}
	}
	if len(ids) != len(labels) {
		return nil, fmt.Errorf("movie_id column has %d rows, title column has %d", len(ids), len(labels))
	}
	return items, nil
}

// rowLabels returns the integer row labels of a column sorted ascending. Labels must be
// 0..n-1 because a label is also the item's row in the similarity matrix.
func rowLabels(col map[string]json.RawMessage) ([]int, error) {
	labels := make([]int, 0, len(col))
	for k := range col {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("row label %q is not an integer", k)
		}
		labels = append(labels, n)
	}
	sort.Ints(labels)
	for i, n := range labels {
		if n != i {
			return nil, fmt.Errorf("row labels must be 0..%d, found %d at position %d", len(labels)-1, n, i)
		}
	}
	return labels, nil
}

func itemsFromRecords(records []jsonItem) ([]models.Item, error) {
	items := make([]models.Item, len(records))
	for i, r := range records {
		id, err := parseID(r.ID)
		if err != nil {
			return nil, fmt.Errorf("item %d id: %w", i, err)
		}
		ext := strconv.FormatInt(id, 10)
		if len(r.ExternalID) > 0 {
			if ext, err = parseExternalID(r.ExternalID); err != nil {
				return nil, fmt.Errorf("item %d external_id: %w", i, err)
			}
		}
		items[i] = models.Item{ID: id, Title: r.Title, ExternalID: ext}
	}
	return items, nil
}

// parseID accepts a JSON integer (including float-typed integers such as 19995.0) or a numeric string.
func parseID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("missing")
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("%s is not an integer", s)
	}
	return int64(f), nil
}

func parseExternalID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	n, err := parseID(raw)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}
