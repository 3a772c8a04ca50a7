package invoicepdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
)

// Wkhtmltopdf converts with the wkhtmltopdf binary: A4 portrait, 10mm margins.
type Wkhtmltopdf struct{}

// NewWkhtmltopdf points the wrapper at path when set; otherwise the binary is
// looked up in PATH and WKHTMLTOPDF_PATH.
func NewWkhtmltopdf(path string) *Wkhtmltopdf {
	if path != "" {
		wkhtmltopdf.SetPath(path)
	}
	return &Wkhtmltopdf{}
}

func (w *Wkhtmltopdf) Convert(ctx context.Context, html []byte) ([]byte, error) {
	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("wkhtmltopdf unavailable: %w", err)
	}
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.MarginTop.Set(10)
	pdfg.MarginBottom.Set(10)
	pdfg.MarginLeft.Set(10)
	pdfg.MarginRight.Set(10)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html))
	page.EnableLocalFileAccess.Set(true)
	pdfg.AddPage(page)

	if err := pdfg.CreateContext(ctx); err != nil {
		return nil, fmt.Errorf("wkhtmltopdf failed: %w", err)
	}
	return pdfg.Bytes(), nil
}
