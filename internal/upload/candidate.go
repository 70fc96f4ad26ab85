package upload

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const pdfContentType = "application/pdf"

// Candidate is a file the user picked or dropped, before it is accepted.
type Candidate struct {
	Path        string
	Name        string
	ContentType string
	Size        int64
	// Pages is 0 when the page count could not be read.
	Pages int
}

// IsPDF reports whether a file's declared type or name extension indicates a PDF.
func IsPDF(name, contentType string) bool {
	if strings.EqualFold(mediaType(contentType), pdfContentType) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// RejectionNotice is the message shown for a rejected file when notices are enabled.
func RejectionNotice(name string) string {
	return fmt.Sprintf("%s is not a PDF file.", name)
}

// IsPDF reports whether the candidate passes the PDF filter.
func (c Candidate) IsPDF() bool {
	return IsPDF(c.Name, c.ContentType)
}

// Inspect stats path and sniffs its content type. Page counts are only read for
// files that look like PDFs, and a PDF pdfcpu cannot parse still yields a candidate.
func Inspect(path string) (Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return Candidate{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Candidate{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Candidate{}, fmt.Errorf("%s is a directory", path)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Candidate{}, fmt.Errorf("reading %s: %w", path, err)
	}

	c := Candidate{
		Path:        path,
		Name:        filepath.Base(path),
		ContentType: mediaType(http.DetectContentType(head[:n])),
		Size:        info.Size(),
	}
	if c.IsPDF() {
		c.Pages = pageCount(path)
	}
	return c, nil
}

// pageCount returns 0 for anything pdfcpu cannot read. pdfcpu can panic on
// malformed input.
func pageCount(path string) (pages int) {
	defer func() {
		if r := recover(); r != nil {
			pages = 0
		}
	}()
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0
	}
	return n
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(mt)
}
