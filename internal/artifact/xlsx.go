package artifact

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/kinorec/internal/models"
)

const (
	itemsSheet      = "items"
	similaritySheet = "similarity"
)

func readXLSX(path string) ([]models.Item, [][]float64, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	itemRows, err := f.GetRows(itemsSheet)
	if err != nil {
		return nil, nil, fmt.Errorf("get rows for sheet %q: %w", itemsSheet, err)
	}
	items, err := parseItemRows(itemRows)
	if err != nil {
		return nil, nil, fmt.Errorf("sheet %q: %w", itemsSheet, err)
	}

	simRows, err := f.GetRows(similaritySheet)
	if err != nil {
		return nil, nil, fmt.Errorf("get rows for sheet %q: %w", similaritySheet, err)
	}
	rows := make([][]float64, len(simRows))
	for i, cells := range simRows {
		row := make([]float64, len(cells))
		for j, cell := range cells {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("sheet %q row %d column %d: %w", similaritySheet, i+1, j+1, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return items, rows, nil
}

func parseItemRows(rows [][]string) ([]models.Item, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("missing header row")
	}
	idCol, titleCol, extCol := -1, -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "movie_id", "id":
			idCol = i
		case "title":
			titleCol = i
		case "external_id":
			extCol = i
		}
	}
	if idCol < 0 || titleCol < 0 {
		return nil, fmt.Errorf("header must contain movie_id and title")
	}

	items := make([]models.Item, 0, len(rows)-1)
	for n, cells := range rows[1:] {
		id, err := strconv.ParseInt(strings.TrimSpace(cell(cells, idCol)), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d movie_id: %w", n+2, err)
		}
		ext := strings.TrimSpace(cell(cells, extCol))
		if ext == "" {
			ext = strconv.FormatInt(id, 10)
		}
		items = append(items, models.Item{ID: id, Title: cell(cells, titleCol), ExternalID: ext})
	}
	return items, nil
}

// cell returns cells[i], or "" when GetRows trimmed the trailing cell or i < 0.
func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}
