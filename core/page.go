// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines page descriptors used by query cursors.
package core

import "github.com/pkg/errors"

// Page is a zero-based page index plus a page size.
//
// Example:
//
//	people, err := model.FindAll().Page(core.Page{Index: 2, Size: 25}).List(ctx)
type Page struct {
	Index int
	Size  int
}

// OfSize returns the first page of the given size.
func OfSize(size int) Page {
	return Page{Index: 0, Size: size}
}

// Validate checks that Index >= 0 and Size > 0.
func (p Page) Validate() error {
	if p.Size <= 0 {
		return errors.Wrapf(ErrInvalidPage, "page size %d", p.Size)
	}
	if p.Index < 0 {
		return errors.Wrapf(ErrInvalidPage, "page index %d", p.Index)
	}
	return nil
}

// Next returns the following page.
func (p Page) Next() Page { return Page{Index: p.Index + 1, Size: p.Size} }

// Previous returns the preceding page. The first page is its own predecessor.
func (p Page) Previous() Page {
	if p.Index == 0 {
		return p
	}
	return Page{Index: p.Index - 1, Size: p.Size}
}

// First returns the first page of the same size.
func (p Page) First() Page { return Page{Index: 0, Size: p.Size} }

// At returns the page of the same size at index.
func (p Page) At(index int) Page { return Page{Index: index, Size: p.Size} }

// skip is the number of documents before the page.
func (p Page) skip() int64 { return int64(p.Index) * int64(p.Size) }

// pageCount returns ceil(count / size).
func pageCount(count int64, size int) int {
	if size <= 0 || count <= 0 {
		return 0
	}
	return int((count + int64(size) - 1) / int64(size))
}
