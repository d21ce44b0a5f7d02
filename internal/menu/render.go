package menu

import (
	"bytes"
	"errors"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// ErrEmptyDocument means a document downloaded fine but rendered to zero
// pages. Treated like a fetch failure for retry purposes.
var ErrEmptyDocument = errors.New("document rendered to zero pages")

// Renderer turns a downloaded document into an ordered set of page images.
type Renderer interface {
	Render(data []byte) ([][]byte, error)
}

// PDFRenderer renders PDF bytes to PNG page images via MuPDF.
type PDFRenderer struct{}

func (PDFRenderer) Render(data []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pages := make([][]byte, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		pages = append(pages, buf.Bytes())
	}

	if len(pages) == 0 {
		return nil, ErrEmptyDocument
	}
	return pages, nil
}
