package document

import (
	"fmt"
	"io"
	"os"
)

// Composer renders the cover page and merges artifact pages into one
// document. Rendering fidelity is a collaborator concern; the core only
// requires that Merge preserves page order and that Cover produces a
// fixed-size marker page.
type Composer interface {
	// Cover writes the cover page document to out.
	Cover(out string) error
	// Merge writes the concatenation of pages, in order, to out.
	Merge(pages []string, out string) error
}

// RawComposer is a byte-level composer: the cover is a fixed marker blob and
// Merge concatenates the page files verbatim. It stands in where no real PDF
// toolchain is wired, and is the composer the tests use.
type RawComposer struct {
	CoverData []byte
}

var _ Composer = &RawComposer{}

func (c *RawComposer) Cover(out string) error {
	data := c.CoverData
	if len(data) == 0 {
		return fmt.Errorf("no cover data configured")
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("failed to write cover page: %w", err)
	}
	return nil
}

func (c *RawComposer) Merge(pages []string, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create merged document: %w", err)
	}
	defer f.Close()

	for _, page := range pages {
		src, err := os.Open(page)
		if err != nil {
			return fmt.Errorf("failed to open page %s: %w", page, err)
		}
		_, err = io.Copy(f, src)
		src.Close()
		if err != nil {
			return fmt.Errorf("failed to append page %s: %w", page, err)
		}
	}
	return nil
}
