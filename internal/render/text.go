package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	colorYes     = color.New(color.FgGreen).SprintFunc()
	colorNo      = color.New(color.FgRed).SprintFunc()
	colorHeading = color.New(color.FgCyan, color.Bold).SprintFunc()
	colorMuted   = color.New(color.FgHiBlack).SprintFunc()
)

// Text writes s for a terminal. Colors follow color.NoColor.
func Text(w io.Writer, s Sections) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	heading(tw, "Target")
	fmt.Fprintf(tw, "  URL\t%s\n", s.Stats.URL)
	fmt.Fprintf(tw, "  Domain\t%s\n", s.Stats.Domain)
	fmt.Fprintf(tw, "  Requests\t%s\n", s.Stats.RequestCount)
	fmt.Fprintf(tw, "  Duration (s)\t%s\n", s.Stats.Duration)
	if s.Stats.ScannerVersion != Dash {
		fmt.Fprintf(tw, "  Scanner\t%s\n", s.Stats.ScannerVersion)
	}

	heading(tw, "Payment providers")
	fmt.Fprintf(tw, "  %s\n", textTags(s.Providers))
	for _, key := range s.StripeKeys {
		fmt.Fprintf(tw, "  stripe key\t%s\n", key)
	}

	heading(tw, "Security")
	for _, f := range s.Security {
		value := colorNo(f.Value)
		if f.Present {
			value = colorYes(f.Value)
		}
		fmt.Fprintf(tw, "  %s\t%s\n", f.Label, value)
	}

	heading(tw, "Payment methods")
	fmt.Fprintf(tw, "  %s\n", textTags(s.PaymentMethods))
	heading(tw, "Libraries")
	fmt.Fprintf(tw, "  %s\n", textTags(s.Libraries))

	heading(tw, "Network requests (sample)")
	fmt.Fprintf(tw, "  CDN\t%s\n", textTags(s.Network.CDNProviders))
	for _, row := range s.Network.Rows {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", row.Method, row.DisplayURL, row.Type, row.Status)
	}

	heading(tw, "Analytics / tracking")
	fmt.Fprintf(tw, "  %s\n", textTags(s.Analytics))

	heading(tw, "CSP")
	fmt.Fprintf(tw, "  meta\t%s\n", indentLines(s.CSPMeta))
	fmt.Fprintf(tw, "  headers\t%s\n", indentLines(s.CSPHeaders))

	heading(tw, "Country / currency")
	fmt.Fprintf(tw, "  currencies\t%s\n", s.Currencies)
	fmt.Fprintf(tw, "  locales\t%s\n", s.Locales)

	heading(tw, "Fonts")
	fmt.Fprintf(tw, "  %s\n", textTags(s.Fonts))

	heading(tw, "Hidden form fields")
	textBlocks(tw, s.HiddenFields)
	heading(tw, "Cookies")
	textBlocks(tw, s.Cookies)

	return tw.Flush()
}

func heading(w io.Writer, title string) {
	fmt.Fprintf(w, "%s\n", colorHeading(title))
}

func textTags(t TagList) string {
	if t.Empty() {
		return colorMuted(t.Placeholder)
	}
	return strings.Join(t.Items, ", ")
}

func textBlocks(w io.Writer, b Blocks) {
	if b.Empty() {
		fmt.Fprintf(w, "  %s\n", colorMuted(b.Placeholder))
		return
	}
	for _, block := range b.Items {
		parts := make([]string, len(block.Fields))
		for i, f := range block.Fields {
			parts[i] = f.Label + "=" + f.Value
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(parts, " "))
	}
}

// indentLines keeps multi-line CSP values aligned under the value column.
func indentLines(s string) string {
	return strings.ReplaceAll(s, "\n", "\n  \t")
}
