// Package export produces downloadable artifacts for the current report.
package export

import (
	"fmt"

	"github.com/khanhnv2901/gatespy/internal/render"
	"github.com/khanhnv2901/gatespy/internal/report"
	consts "github.com/khanhnv2901/gatespy/internal/shared/constants"
)

// Download names and media types of the exported files.
const (
	FileName       = consts.ReportFileName
	ContentType    = "application/json"
	PDFFileName    = consts.ReportPDFFileName
	PDFContentType = "application/pdf"
)

// Artifact is one file ready to be written or served.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// JSON serializes r as the report object indented with two spaces. A nil report yields a
// nil artifact and no error.
func JSON(r *report.AnalysisReport) (*Artifact, error) {
	if r == nil {
		return nil, nil
	}
	b, err := r.Indented()
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Name:        FileName,
		ContentType: ContentType,
		Data:        append(b, '\n'),
	}, nil
}

// PDF renders r as a PDF document. A nil report yields a nil artifact and no error.
func PDF(r *report.AnalysisReport) (*Artifact, error) {
	if r == nil {
		return nil, nil
	}
	data, err := render.PDF(render.Render(r))
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	return &Artifact{
		Name:        PDFFileName,
		ContentType: PDFContentType,
		Data:        data,
	}, nil
}

// ContentDisposition is the header value that asks a browser to save a as a file.
func (a *Artifact) ContentDisposition() string {
	return fmt.Sprintf("attachment; filename=%q", a.Name)
}
