// Package render maps an analysis report onto a fixed set of display sections.
//
// Render is pure: the same report always yields the same Sections, and no subtree's
// absence affects how any other subtree is rendered.
package render

import (
	htmltemplate "html/template"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/khanhnv2901/gatespy/internal/report"
	consts "github.com/khanhnv2901/gatespy/internal/shared/constants"
)

// Placeholders shown when a subtree is absent or empty.
const (
	NotFound = "not found"
	None     = "none"
	Dash     = "-"
	Yes      = "yes"
	No       = "no"
	ZeroDur  = "0.00"
)

// Sections is the display model of one report.
type Sections struct {
	HasReport bool `json:"has_report"`

	Stats Stats `json:"stats"`

	Providers      TagList  `json:"providers"`
	StripeKeys     []string `json:"stripe_public_keys,omitempty"`
	PaymentMethods TagList  `json:"payment_methods"`
	Security       []Flag   `json:"security"`
	Libraries      TagList  `json:"libraries"`

	Network Network `json:"network"`

	Analytics    TagList `json:"analytics"`
	CSPMeta      string  `json:"csp_meta"`
	CSPHeaders   string  `json:"csp_headers"`
	Currencies   string  `json:"currencies"`
	Locales      string  `json:"locales"`
	Fonts        TagList `json:"fonts"`
	HiddenFields Blocks  `json:"hidden_fields"`
	Cookies      Blocks  `json:"cookies"`
	RawJSON      string  `json:"raw_json,omitempty"`
}

// Stats are the headline values, each with its own fallback.
type Stats struct {
	URL            string `json:"url"`
	Domain         string `json:"domain"`
	RequestCount   string `json:"request_count"`
	Duration       string `json:"duration"`
	ScannerVersion string `json:"scanner_version"`
	HTMLSize       string `json:"html_size"`
	ScriptsCount   string `json:"scripts_count"`
	GeneratedAt    string `json:"generated_at"`
}

// TagList is either a list of tags or a single placeholder.
type TagList struct {
	Items       []string `json:"items,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
}

// Empty reports whether the placeholder is shown instead of tags.
func (t TagList) Empty() bool {
	return len(t.Items) == 0
}

// Flag is one security presence flag.
type Flag struct {
	Label   string `json:"label"`
	Present bool   `json:"present"`
	Value   string `json:"value"`
}

// Network holds the sample request table.
type Network struct {
	CDNProviders TagList      `json:"cdn_providers"`
	Rows         []RequestRow `json:"rows,omitempty"`
}

// RequestRow is one sample request with its resolved status.
type RequestRow struct {
	Method     string `json:"method"`
	URL        string `json:"url"`
	DisplayURL string `json:"display_url"`
	// Href is the link target for URL, empty when the scheme is not safe to link.
	Href   htmltemplate.URL `json:"-"`
	Type   string           `json:"type"`
	Status string           `json:"status"`
}

// Blocks is a list of key/value blocks or a single placeholder.
type Blocks struct {
	Items       []Block `json:"items,omitempty"`
	Placeholder string  `json:"placeholder,omitempty"`
}

// Empty reports whether the placeholder is shown instead of blocks.
func (b Blocks) Empty() bool {
	return len(b.Items) == 0
}

// Block is an ordered list of fields.
type Block struct {
	Fields []Field `json:"fields"`
}

// Field is one labelled value inside a Block.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Render builds the display sections for r. A nil report renders every placeholder with
// HasReport false.
func Render(r *report.AnalysisReport) Sections {
	if r == nil {
		r = &report.AnalysisReport{}
		s := build(r)
		s.HasReport = false
		return s
	}
	s := build(r)
	s.HasReport = true
	s.RawJSON = rawJSON(r)
	return s
}

func build(r *report.AnalysisReport) Sections {
	var providers, stripeKeys []string
	if r.Payment != nil {
		providers = r.Payment.Providers
		stripeKeys = r.Payment.StripePublicKeys
	}

	var cspMeta, cspHeaders []string
	if r.CSP != nil {
		cspMeta = r.CSP.Meta
		cspHeaders = r.CSP.Headers
	}

	var currencies, locales []string
	if r.CountryCurrency != nil {
		currencies = r.CountryCurrency.Currencies
		locales = r.CountryCurrency.Locales
	}

	return Sections{
		Stats:          buildStats(r),
		Providers:      tags(providers),
		StripeKeys:     copyStrings(stripeKeys),
		PaymentMethods: tags(r.PaymentMethods),
		Security:       securityFlags(r.Security),
		Libraries:      tags(r.Libraries),
		Network:        buildNetwork(r.Network),
		Analytics:      tags(r.Analytics),
		CSPMeta:        joinOr(cspMeta, "\n", None),
		CSPHeaders:     joinOr(cspHeaders, "\n", None),
		Currencies:     joinOr(currencies, ", ", None),
		Locales:        joinOr(locales, ", ", None),
		Fonts:          tags(r.Fonts),
		HiddenFields:   hiddenFieldBlocks(r.HiddenFields),
		Cookies:        cookieBlocks(r.Cookies),
	}
}

func buildStats(r *report.AnalysisReport) Stats {
	st := Stats{
		URL:            Dash,
		Domain:         Dash,
		RequestCount:   Dash,
		Duration:       ZeroDur,
		ScannerVersion: orDash(r.GatespyVersion),
		HTMLSize:       intOrDash(r.HTMLSize),
		ScriptsCount:   intOrDash(r.ScriptsCount),
		GeneratedAt:    Dash,
	}
	if r.Target != nil {
		st.URL = orDash(r.Target.URL)
		st.Domain = orDash(r.Target.Domain)
	}
	if r.Network != nil {
		st.RequestCount = intOrDash(r.Network.RequestCount)
	}
	if r.DurationSeconds != nil {
		st.Duration = strconv.FormatFloat(*r.DurationSeconds, 'f', 2, 64)
	}
	if r.GeneratedAt != nil && *r.GeneratedAt > 0 {
		sec := int64(*r.GeneratedAt)
		st.GeneratedAt = time.Unix(sec, 0).UTC().Format(time.RFC3339)
	}
	return st
}

func securityFlags(sec *report.Security) []Flag {
	if sec == nil {
		sec = &report.Security{}
	}
	return []Flag{
		flag("HTTPS", sec.HTTPS),
		flag("reCAPTCHA", sec.Recaptcha),
		flag("Cloudflare", sec.CloudflareProtection),
		flag("Bot protection", sec.BotProtection),
		flag("3D Secure", sec.ThreeDSecure),
	}
}

func flag(label string, present bool) Flag {
	value := No
	if present {
		value = Yes
	}
	return Flag{Label: label, Present: present, Value: value}
}

func buildNetwork(n *report.Network) Network {
	if n == nil {
		return Network{CDNProviders: tags(nil)}
	}
	out := Network{CDNProviders: tags(n.CDNProviders)}
	for _, req := range n.SampleRequests {
		out.Rows = append(out.Rows, RequestRow{
			Method:     orDash(req.Method),
			URL:        req.URL,
			DisplayURL: TruncateURL(req.URL, consts.DisplayURLMaxRunes),
			Href:       requestHref(req.URL),
			Type:       orDash(req.Type),
			Status:     resolveStatus(n, req.RequestID),
		})
	}
	return out
}

var linkableSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"data":  true,
	"blob":  true,
	"ws":    true,
	"wss":   true,
}

// requestHref marks captured request URLs with a known scheme as safe link targets.
func requestHref(raw string) htmltemplate.URL {
	u, err := url.Parse(raw)
	if err != nil || !linkableSchemes[strings.ToLower(u.Scheme)] {
		return ""
	}
	return htmltemplate.URL(raw)
}

func resolveStatus(n *report.Network, requestID string) string {
	resp, ok := n.Lookup(requestID)
	if !ok || resp.Status == nil {
		return Dash
	}
	return strconv.Itoa(*resp.Status)
}

func hiddenFieldBlocks(fields []report.HiddenField) Blocks {
	if len(fields) == 0 {
		return Blocks{Placeholder: None}
	}
	out := Blocks{Items: make([]Block, 0, len(fields))}
	for _, h := range fields {
		out.Items = append(out.Items, Block{Fields: []Field{
			{Label: "name", Value: orDash(h.Name)},
			{Label: "id", Value: orDash(h.ID)},
			{Label: "value", Value: orDash(h.Value)},
		}})
	}
	return out
}

func cookieBlocks(cookies []report.Cookie) Blocks {
	if len(cookies) == 0 {
		return Blocks{Placeholder: None}
	}
	out := Blocks{Items: make([]Block, 0, len(cookies))}
	for _, c := range cookies {
		out.Items = append(out.Items, Block{Fields: []Field{
			{Label: "name", Value: orDash(c.Name)},
			{Label: "value", Value: orDash(c.Value)},
			{Label: "domain", Value: orDash(c.Domain)},
			{Label: "path", Value: orDash(c.Path)},
			{Label: "secure", Value: boolOrDash(c.Secure)},
			{Label: "httpOnly", Value: boolOrDash(c.HTTPOnly)},
			{Label: "sameSite", Value: orDash(c.SameSite)},
		}})
	}
	return out
}

// TruncateURL shortens u to at most max runes, ending in an ellipsis when cut.
func TruncateURL(u string, max int) string {
	if max <= 0 || utf8.RuneCountInString(u) <= max {
		return u
	}
	if max == 1 {
		return "…"
	}
	runes := []rune(u)
	return string(runes[:max-1]) + "…"
}

func tags(items []string) TagList {
	if len(items) == 0 {
		return TagList{Placeholder: NotFound}
	}
	return TagList{Items: copyStrings(items)}
}

func joinOr(items []string, sep, placeholder string) string {
	if joined := strings.Join(items, sep); joined != "" {
		return joined
	}
	return placeholder
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}

func orDash(s string) string {
	if s == "" {
		return Dash
	}
	return s
}

func intOrDash(v *int) string {
	if v == nil {
		return Dash
	}
	return strconv.Itoa(*v)
}

func boolOrDash(v *bool) string {
	if v == nil {
		return Dash
	}
	return strconv.FormatBool(*v)
}

// rawJSON pretty-prints the report for the summary section.
func rawJSON(r *report.AnalysisReport) string {
	b, err := r.Indented()
	if err != nil {
		return ""
	}
	return string(b)
}
