package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	sharederrors "github.com/khanhnv2901/gatespy/internal/shared/errors"
)

// Parse decodes a scanner success body. An empty body or a JSON null yields a nil report
// and no error. Bodies that are not a JSON object wrap ErrMalformedResponse.
func Parse(raw []byte) (*AnalysisReport, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var r AnalysisReport
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", sharederrors.ErrMalformedResponse, err)
	}
	r.raw = append([]byte(nil), trimmed...)
	return &r, nil
}

// Indented returns the verbatim report object indented with two spaces. Reports parsed from
// scanner bytes keep every field the scanner sent, including ones this package does not
// model.
func (r *AnalysisReport) Indented() ([]byte, error) {
	if r == nil {
		return nil, sharederrors.ErrNoReport
	}
	if raw := r.Raw(); len(raw) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return nil, fmt.Errorf("%w: %v", sharederrors.ErrSerializationFailed, err)
		}
		return buf.Bytes(), nil
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sharederrors.ErrSerializationFailed, err)
	}
	return b, nil
}
