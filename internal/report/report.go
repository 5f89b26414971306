// Package report defines the analysis report exchanged between the scanner and its callers.
//
// Every field is optional. Scanners evolve independently and partial failures are normal,
// so consumers must treat any absent subtree as "unknown" rather than as an error.
package report

import (
	"strings"

	sharederrors "github.com/khanhnv2901/gatespy/internal/shared/errors"
)

// AnalysisRequest is the body accepted by the gateway and forwarded to the scanner.
type AnalysisRequest struct {
	URL string `json:"url"`
}

// Validate rejects empty URLs. Everything else is left to the scanner.
func (r AnalysisRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return sharederrors.ErrEmptyURL
	}
	return nil
}

// AnalysisReport is the result of one scan.
type AnalysisReport struct {
	GatespyVersion  string           `json:"gatespy_version,omitempty"`
	Target          *Target          `json:"target,omitempty"`
	HTMLSize        *int             `json:"html_size,omitempty"`
	ScriptsCount    *int             `json:"scripts_count,omitempty"`
	Payment         *Payment         `json:"payment,omitempty"`
	PaymentMethods  []string         `json:"payment_methods,omitempty"`
	Security        *Security        `json:"security,omitempty"`
	Libraries       []string         `json:"libraries,omitempty"`
	Analytics       []string         `json:"analytics,omitempty"`
	CSP             *CSP             `json:"csp,omitempty"`
	CountryCurrency *CountryCurrency `json:"country_currency,omitempty"`
	Fonts           []string         `json:"fonts,omitempty"`
	HiddenFields    []HiddenField    `json:"hidden_fields,omitempty"`
	Cookies         []Cookie         `json:"cookies,omitempty"`
	Network         *Network         `json:"network,omitempty"`
	Performance     map[string]any   `json:"performance,omitempty"`
	GeneratedAt     *float64         `json:"generated_at,omitempty"`
	DurationSeconds *float64         `json:"duration_seconds,omitempty"`

	raw []byte
}

// Target identifies the scanned page.
type Target struct {
	URL    string `json:"url,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// Payment lists detected payment providers in scanner order. Duplicates are kept.
type Payment struct {
	Providers        []string `json:"providers,omitempty"`
	StripePublicKeys []string `json:"stripe_public_keys,omitempty"`
}

// Security holds presence flags. A missing Security object means every flag is unknown.
type Security struct {
	HTTPS                bool `json:"https"`
	Recaptcha            bool `json:"recaptcha"`
	CloudflareProtection bool `json:"cloudflare_protection"`
	BotProtection        bool `json:"bot_protection"`
	ThreeDSecure         bool `json:"three_d_secure"`
}

// CSP holds raw directive lines from meta tags and from HTTP headers.
type CSP struct {
	Meta    []string `json:"meta,omitempty"`
	Headers []string `json:"headers,omitempty"`
}

// CountryCurrency lists currencies and locales seen on the page.
type CountryCurrency struct {
	Currencies []string `json:"currencies,omitempty"`
	Locales    []string `json:"locales,omitempty"`
}

// HiddenField is a hidden form input found on the page.
type HiddenField struct {
	Name  string `json:"name,omitempty"`
	ID    string `json:"id,omitempty"`
	Value string `json:"value,omitempty"`
}

// Cookie is a cookie set while the page loaded.
type Cookie struct {
	Name     string `json:"name,omitempty"`
	Value    string `json:"value,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Secure   *bool  `json:"secure,omitempty"`
	HTTPOnly *bool  `json:"httpOnly,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
}

// Network summarizes requests the page issued while loading.
type Network struct {
	RequestCount   *int                `json:"request_count,omitempty"`
	CDNProviders   []string            `json:"cdn_providers,omitempty"`
	SampleRequests []SampleRequest     `json:"sample_requests,omitempty"`
	Responses      map[string]Response `json:"responses,omitempty"`
}

// SampleRequest is one captured request. RequestID may be empty.
type SampleRequest struct {
	RequestID string   `json:"requestId,omitempty"`
	Method    string   `json:"method,omitempty"`
	URL       string   `json:"url,omitempty"`
	Type      string   `json:"type,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// Response is the captured response for a request ID.
type Response struct {
	Status   *int   `json:"status,omitempty"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Protocol string `json:"protocol,omitempty"`
}

// Lookup resolves the response captured for requestID. A nil network, a missing
// responses map, an empty ID and an unknown ID all report false.
func (n *Network) Lookup(requestID string) (Response, bool) {
	if n == nil || requestID == "" || n.Responses == nil {
		return Response{}, false
	}
	resp, ok := n.Responses[requestID]
	return resp, ok
}

// Raw returns the scanner bytes the report was parsed from, or nil when the report was
// built in code. Callers must not modify the returned slice.
func (r *AnalysisReport) Raw() []byte {
	if r == nil {
		return nil
	}
	return r.raw
}
