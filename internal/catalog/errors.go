package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no item has the requested title.
	ErrNotFound = errors.New("item not found")
	// ErrIndexOutOfRange is returned for a catalog position outside [0, size).
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrDataIntegrity is returned when the similarity matrix does not match the catalog.
	ErrDataIntegrity = errors.New("data integrity violation")
)

// NotFoundError reports an unknown title.
type NotFoundError struct {
	Title string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no item titled %q", e.Title)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IndexOutOfRangeError reports an access outside the catalog.
type IndexOutOfRangeError struct {
	Index int
	Size  int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Size)
}

func (e *IndexOutOfRangeError) Unwrap() error { return ErrIndexOutOfRange }

// DataIntegrityError reports a similarity row whose length differs from the catalog size.
type DataIntegrityError struct {
	Row      int
	Got      int
	Expected int
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("similarity row %d has %d scores, expected %d", e.Row, e.Got, e.Expected)
}

func (e *DataIntegrityError) Unwrap() error { return ErrDataIntegrity }
