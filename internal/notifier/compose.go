package notifier

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/model"
)

// Message is a rendered notification
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// Logo is one image placed at the top of the HTML body
type Logo struct {
	URL       string
	AltText   string
	MaxWidth  string
	MaxHeight string
}

// GitHubImageURL returns the raw URL of an asset committed to a repository
func GitHubImageURL(gh config.GitHubConfig, filename string) string {
	if gh.Username == "" || gh.Repository == "" || filename == "" {
		return ""
	}
	branch := gh.Branch
	if branch == "" {
		branch = "main"
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/assets/%s", gh.Username, gh.Repository, branch, filename)
}

func logo(l config.LogoConfig, gh config.GitHubConfig) Logo {
	url := l.URL
	if url == "" {
		url = GitHubImageURL(gh, l.Filename)
	}
	return Logo{URL: url, AltText: l.AltText, MaxWidth: l.MaxWidth, MaxHeight: l.MaxHeight}
}

// SelectLogos applies the branding strategy to a record. Logos without a
// resolvable URL are dropped.
func SelectLogos(r model.RowRecord, b config.BrandingConfig) []Logo {
	primary := logo(b.Primary, b.GitHub)
	secondary := logo(b.Secondary, b.GitHub)

	var logos []Logo
	switch b.Strategy {
	case config.LogoSecondary:
		logos = []Logo{secondary}
	case config.LogoBoth:
		logos = []Logo{primary, secondary}
	case config.LogoConditional:
		logos = []Logo{primary}
		text := strings.ToLower(r.Email + " " + r.Description)
		for _, kw := range b.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(text, kw) {
				logos = []Logo{secondary}
				break
			}
		}
	default:
		logos = []Logo{primary}
	}

	out := logos[:0]
	for _, l := range logos {
		if l.URL != "" {
			out = append(out, l)
		}
	}
	return out
}

type templateData struct {
	Greeting    string
	PO          string
	Description string
	Date        string
	Signature   string
	Logos       []Logo
	Inline      bool
	RepoURL     string
}

var htmlTemplate = htmltemplate.Must(htmltemplate.New("html").Parse(`<div style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #ffffff;">
{{- if .Logos}}
<div style="text-align: center; margin-bottom: 30px;">
{{- range .Logos}}
<img src="{{.URL}}" alt="{{.AltText}}" style="max-width: {{.MaxWidth}}; max-height: {{.MaxHeight}}; {{if $.Inline}}margin: 0 10px; display: inline-block;{{else}}display: block; margin: 0 auto;{{end}} border-radius: 4px;">
{{- end}}
</div>
{{- end}}
<p style="font-size: 16px; line-height: 1.5; color: #333; margin-bottom: 20px;">{{.Greeting}}</p>
<p style="font-size: 16px; line-height: 1.5; color: #333; margin-bottom: 25px;">Great news! Your order has been placed and is being processed.</p>
<div style="background: #ffffff; border: 1px solid #e1e5e9; border-radius: 12px; overflow: hidden; margin: 25px 0;">
<div style="background: #667eea; color: white; padding: 20px;"><h2 style="margin: 0; font-size: 20px; font-weight: 600;">Order Details</h2></div>
{{- if .PO}}
<div style="padding: 16px 20px; border-bottom: 1px solid #f0f0f0;"><strong style="color: #555;">PO Number:</strong> <span style="font-family: monospace;">{{.PO}}</span></div>
{{- end}}
{{- if .Description}}
<div style="padding: 16px 20px; border-bottom: 1px solid #f0f0f0;"><strong style="color: #555;">Description:</strong> {{.Description}}</div>
{{- end}}
<div style="padding: 16px 20px; border-bottom: 1px solid #f0f0f0;"><strong style="color: #555;">Status:</strong> <span style="color: #28a745; font-weight: 600;">&#9989; Order Placed</span></div>
<div style="padding: 16px 20px;"><strong style="color: #555;">Date:</strong> {{.Date}}</div>
</div>
<div style="background: #e3f2fd; border-radius: 8px; padding: 20px; margin: 25px 0;">
<h3 style="margin: 0 0 10px 0; color: #1976d2; font-size: 16px;">Next Steps</h3>
<p style="margin: 0; color: #555; line-height: 1.5;">We'll keep you updated on your order progress. If you have any questions about your order, please reply to this email and we'll get back to you promptly.</p>
</div>
<div style="text-align: center; margin-top: 40px; padding-top: 20px; border-top: 1px solid #e0e0e0;">
<p style="margin: 0; color: #666; font-size: 14px;">{{.Signature}}</p>
{{- if .RepoURL}}
<p style="margin: 10px 0 0 0; font-size: 12px; color: #999;"><a href="{{.RepoURL}}" style="color: #999; text-decoration: none;">Powered by GitHub automation</a></p>
{{- end}}
</div>
</div>
`))

var textTemplate = texttemplate.Must(texttemplate.New("text").Parse(`{{.Greeting}}

Great news! Your order has been placed and is being processed.

ORDER DETAILS
=============
{{if .PO}}PO Number: {{.PO}}
{{end}}{{if .Description}}Description: {{.Description}}
{{end}}Status: Order Placed
Date: {{.Date}}

NEXT STEPS
==========
We'll keep you updated on your order progress. If you have any questions
about your order, please reply to this email and we'll get back to you promptly.

{{.Signature}}
{{if .RepoURL}}
This notification is powered by GitHub automation:
{{.RepoURL}}
{{end}}`))

// Composer renders notification messages
type Composer struct {
	cfg config.EmailConfig
	loc *time.Location
}

// NewComposer creates a composer; an unknown time zone is an error
func NewComposer(cfg config.EmailConfig) (*Composer, error) {
	loc := time.Local
	if cfg.TimeZone != "" && cfg.TimeZone != "Local" {
		var err error
		if loc, err = time.LoadLocation(cfg.TimeZone); err != nil {
			return nil, fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
		}
	}
	return &Composer{cfg: cfg, loc: loc}, nil
}

// Compose renders the subject and both bodies for r. All record fields are
// escaped by the HTML template.
func (c *Composer) Compose(r model.RowRecord, b config.BrandingConfig, now time.Time) (*Message, error) {
	greeting := c.cfg.Greeting + ","
	if r.Name != "" {
		greeting = "Hello " + r.Name + ","
	}
	data := templateData{
		Greeting:    greeting,
		PO:          r.PO,
		Description: r.Description,
		Date:        now.In(c.loc).Format(c.cfg.DateFormat),
		Signature:   c.cfg.Signature,
		Logos:       SelectLogos(r, b),
	}
	data.Inline = len(data.Logos) > 1
	if b.GitHub.Username != "" && b.GitHub.Repository != "" {
		data.RepoURL = fmt.Sprintf("https://github.com/%s/%s", b.GitHub.Username, b.GitHub.Repository)
	}

	var html, text bytes.Buffer
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render html body: %w", err)
	}
	if err := textTemplate.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("failed to render text body: %w", err)
	}

	return &Message{Subject: c.cfg.Subject, HTML: html.String(), Text: text.String()}, nil
}
