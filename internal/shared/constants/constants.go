package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultScannerURL is used when neither config nor environment name a scanner.
	DefaultScannerURL = "http://localhost:8000"
	// DefaultScannerTimeout bounds a single scanner round trip. Headless scans are slow.
	DefaultScannerTimeout = 120 * time.Second
	// DefaultListenAddr is the address the serve command binds to.
	DefaultListenAddr = "127.0.0.1:8080"
	// MaxRequestBodyBytes caps analysis request bodies accepted by the gateway.
	MaxRequestBodyBytes = 1 << 20
)

const (
	// DisplayURLMaxRunes is the width at which request URLs are truncated for display.
	DisplayURLMaxRunes = 80
	// ReportFileName is the fixed download name of the exported JSON report.
	ReportFileName = "gatespy-report.json"
	// ReportPDFFileName is the fixed download name of the exported PDF report.
	ReportPDFFileName = "gatespy-report.pdf"
)
