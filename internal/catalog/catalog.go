// Package catalog holds the immutable in-memory item table and its similarity matrix.
package catalog

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/hyperjump/kinorec/internal/models"
)

// Catalog is a read-only table of items plus one similarity row per item.
// It is never mutated after New returns, so it is safe for concurrent readers.
type Catalog struct {
	items   []models.Item
	rows    [][]float64
	byTitle map[string]int
}

// New builds a catalog from items and their similarity rows. Inputs are copied and each
// item's Index is set to its position. Row shapes are not checked here; call Validate
// to reject a non-square matrix up front.
func New(items []models.Item, rows [][]float64) *Catalog {
	c := &Catalog{
		items:   make([]models.Item, len(items)),
		rows:    make([][]float64, len(rows)),
		byTitle: make(map[string]int, len(items)),
	}
	for i, it := range items {
		it.Index = i
		c.items[i] = it
		// first occurrence wins for duplicate titles
		if _, ok := c.byTitle[it.Title]; !ok {
			c.byTitle[it.Title] = i
		}
	}
	for i, row := range rows {
		c.rows[i] = append([]float64(nil), row...)
	}
	return c
}

// Size returns the number of items.
func (c *Catalog) Size() int {
	return len(c.items)
}

// FindIndexByTitle returns the position of the first item whose title equals title exactly.
func (c *Catalog) FindIndexByTitle(title string) (int, error) {
	idx, ok := c.byTitle[title]
	if !ok {
		return -1, &NotFoundError{Title: title}
	}
	return idx, nil
}

// GetItem returns the item at index.
func (c *Catalog) GetItem(index int) (models.Item, error) {
	if index < 0 || index >= len(c.items) {
		return models.Item{}, &IndexOutOfRangeError{Index: index, Size: len(c.items)}
	}
	return c.items[index], nil
}

// Row returns the similarity row of the item at index. The returned slice must not be modified.
// A row whose length differs from Size is reported as a DataIntegrityError.
func (c *Catalog) Row(index int) ([]float64, error) {
	if index < 0 || index >= len(c.items) {
		return nil, &IndexOutOfRangeError{Index: index, Size: len(c.items)}
	}
	if index >= len(c.rows) {
		return nil, &DataIntegrityError{Row: index, Got: 0, Expected: len(c.items)}
	}
	row := c.rows[index]
	if len(row) != len(c.items) {
		return nil, &DataIntegrityError{Row: index, Got: len(row), Expected: len(c.items)}
	}
	return row, nil
}

// Items returns a copy of all items in catalog order.
func (c *Catalog) Items() []models.Item {
	return append([]models.Item(nil), c.items...)
}

// Titles returns all titles in catalog order.
func (c *Catalog) Titles() []string {
	titles := make([]string, len(c.items))
	for i, it := range c.items {
		titles[i] = it.Title
	}
	return titles
}

// Validate checks that the matrix is square: one row per item, each with Size scores.
// It returns the first offending row as a DataIntegrityError.
func (c *Catalog) Validate() error {
	n := len(c.items)
	if len(c.rows) != n {
		return &DataIntegrityError{Row: -1, Got: len(c.rows), Expected: n}
	}
	for i, row := range c.rows {
		if len(row) != n {
			return &DataIntegrityError{Row: i, Got: len(row), Expected: n}
		}
	}
	return nil
}

// Fingerprint returns a hex sha256 over items and scores. Two catalogs loaded from the
// same artifact have the same fingerprint.
func (c *Catalog) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	for _, it := range c.items {
		binary.LittleEndian.PutUint64(buf[:], uint64(it.ID))
		h.Write(buf[:])
		h.Write([]byte(it.Title))
		h.Write([]byte{0})
		h.Write([]byte(it.ExternalID))
		h.Write([]byte{0})
	}
	for _, row := range c.rows {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(row)))
		h.Write(buf[:])
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
