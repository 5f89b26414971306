package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/gatespy/internal/export"
	"github.com/khanhnv2901/gatespy/internal/lifecycle"
	"github.com/khanhnv2901/gatespy/internal/relay"
	"github.com/khanhnv2901/gatespy/internal/render"
	"github.com/khanhnv2901/gatespy/internal/security"
	consts "github.com/khanhnv2901/gatespy/internal/shared/constants"
)

const (
	formatText     = "text"
	formatMarkdown = "md"
	formatHTML     = "html"
	formatJSON     = "json"
)

var supportedFormats = []string{formatText, formatMarkdown, formatHTML, formatJSON}

// AnalysisFailedError reports an analysis that finished in the failed state.
type AnalysisFailedError struct {
	URL     string
	Message string
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("analysis of %s failed: %s", e.URL, e.Message)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Analyze one checkout page and print the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runAnalyze(ctx, appCtx, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func validateFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "markdown" {
		f = formatMarkdown
	}
	for _, supported := range supportedFormats {
		if f == supported {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format %q (use %s)", format, strings.Join(supportedFormats, ", "))
}

// newAnalyzer uses a remote gateway when one is configured and the scanner directly
// otherwise.
func newAnalyzer(appCtx *AppContext) lifecycle.Analyzer {
	cfg := appCtx.Config
	if cfg.Analyze.Gateway != "" {
		return relay.NewClient(cfg.Analyze.Gateway, &http.Client{Timeout: cfg.ScannerTimeout}, appCtx.Logger)
	}
	return relay.NewGateway(relay.Config{
		ScannerURL: cfg.ScannerURL,
		Timeout:    cfg.ScannerTimeout,
		Logger:     appCtx.Logger,
	}).Analyzer()
}

func runAnalyze(ctx context.Context, appCtx *AppContext, url string, stdout, stderr io.Writer) error {
	cfg := appCtx.Config
	format, err := validateFormat(cfg.Analyze.Format)
	if err != nil {
		return err
	}

	controller := lifecycle.New(newAnalyzer(appCtx), lifecycle.Options{
		Timeout: cfg.ScannerTimeout,
		Logger:  appCtx.Logger,
	})
	defer controller.Close()

	var progress *progressPrinter
	if cfg.Analyze.Progress {
		updates, unsubscribe := controller.Subscribe()
		defer unsubscribe()
		progress = newProgressPrinter(stderr, updates)
		progress.Start()
	}

	snap, err := controller.Analyze(ctx, url)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}
	if snap.State != lifecycle.StateSucceeded {
		return &AnalysisFailedError{URL: url, Message: snap.Error}
	}

	appCtx.Logger.Info("analysis_complete", zap.String("url", url), zap.String("attempt_id", snap.AttemptID))
	fmt.Fprintf(stderr, "%s %s\n", colorSuccess("✓"), formatStateWithColor(string(snap.State)))

	if err := writeReport(stdout, format, snap); err != nil {
		return err
	}
	return exportArtifacts(stderr, cfg.Analyze, snap)
}

func writeReport(w io.Writer, format string, snap lifecycle.Snapshot) error {
	sections := render.Render(snap.Report)
	switch format {
	case formatMarkdown:
		return render.Markdown(w, sections)
	case formatHTML:
		return render.HTML(w, render.Page{
			State:    string(snap.State),
			URL:      snap.URL,
			Sections: sections,
		})
	case formatJSON:
		art, err := export.JSON(snap.Report)
		if err != nil {
			return err
		}
		_, err = w.Write(art.Data)
		return err
	default:
		return render.Text(w, sections)
	}
}

func exportArtifacts(w io.Writer, cfg AnalyzeConfig, snap lifecycle.Snapshot) error {
	var builders []func() (*export.Artifact, error)
	if cfg.Export {
		builders = append(builders, func() (*export.Artifact, error) { return export.JSON(snap.Report) })
	}
	if cfg.PDF {
		builders = append(builders, func() (*export.Artifact, error) { return export.PDF(snap.Report) })
	}

	for _, build := range builders {
		art, err := build()
		if err != nil {
			return err
		}
		if art == nil {
			return errors.New("no report to export")
		}
		path, err := writeArtifact(cfg.OutDir, art)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s Exported %s\n", colorSuccess("✓"), path)
	}
	return nil
}

func writeArtifact(outDir string, art *export.Artifact) (string, error) {
	if outDir == "" {
		outDir = defaultOutputDir
	}
	return security.WriteFileWithin(outDir, art.Name, art.Data)
}

func init() {
	analyzeCmd.Flags().StringVar(&cliConfig.Analyze.Gateway, "gateway", "", "Use a running gatespy gateway instead of calling the scanner directly")
	analyzeCmd.Flags().StringVarP(&cliConfig.Analyze.Format, "format", "f", cliConfig.Analyze.Format, "Output format: text, md, html, json")
	analyzeCmd.Flags().BoolVar(&cliConfig.Analyze.Export, "export", false, "Write "+consts.ReportFileName+" to the output directory")
	analyzeCmd.Flags().BoolVar(&cliConfig.Analyze.PDF, "pdf", false, "Write "+consts.ReportPDFFileName+" to the output directory")
	analyzeCmd.Flags().StringVarP(&cliConfig.Analyze.OutDir, "out", "o", cliConfig.Analyze.OutDir, "Output directory for exported files")
	analyzeCmd.Flags().BoolVar(&cliConfig.Analyze.Progress, "progress", cliConfig.Analyze.Progress, "Show a status line while analyzing")
}
