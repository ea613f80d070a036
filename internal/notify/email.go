package notify

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/config"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
)

//go:embed templates/alert.html
var templateFS embed.FS

// Email sends alerts through the Resend transactional email API.
type Email struct {
	apiKey     string
	from       string
	to         string
	apiURL     string
	tmpl       *template.Template
	httpClient *http.Client
	loc        *time.Location
}

type emailReq struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type emailResp struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type emailData struct {
	Ticker     string
	Name       string
	Direction  models.Direction
	Percentage string
	Class      string
	Price      string
	Time       string
}

// NewEmail builds the email dispatcher. TemplatePath, when set, replaces the
// embedded template.
func NewEmail(cfg config.EmailConfig, loc *time.Location) (*Email, error) {
	var (
		tmpl *template.Template
		err  error
	)
	if cfg.TemplatePath != "" {
		tmpl, err = template.ParseFiles(cfg.TemplatePath)
	} else {
		tmpl, err = template.ParseFS(templateFS, "templates/alert.html")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://api.resend.com/emails"
	}

	return &Email{
		apiKey:     cfg.ResendAPIKey,
		from:       cfg.From,
		to:         cfg.To,
		apiURL:     apiURL,
		tmpl:       tmpl,
		httpClient: &http.Client{Timeout: timeout},
		loc:        locationOrUTC(loc),
	}, nil
}

func (e *Email) Name() string { return "email" }

func (e *Email) Enabled() bool {
	return e.apiKey != "" && e.from != "" && e.to != ""
}

// Render returns the HTML body for an alert.
func (e *Email) Render(a models.AlertEvent) (string, error) {
	class := "highlight-up"
	if a.Direction == models.DirectionDown {
		class = "highlight-down"
	}
	var buf bytes.Buffer
	err := e.tmpl.Execute(&buf, emailData{
		Ticker:     a.Symbol,
		Name:       a.Name,
		Direction:  a.Direction,
		Percentage: a.AbsPercent(),
		Class:      class,
		Price:      a.CurrentPrice.StringFixed(2),
		Time:       a.Timestamp.In(e.loc).Format(sentLayout) + " (" + e.loc.String() + ")",
	})
	if err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

// Dispatch sends the alert and returns the Resend message id.
func (e *Email) Dispatch(ctx context.Context, a models.AlertEvent) (string, error) {
	html, err := e.Render(a)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(emailReq{
		From:    e.from,
		To:      []string{e.to},
		Subject: Subject(a),
		HTML:    html,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out emailResp
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode >= 300 {
		if out.Message != "" {
			return "", fmt.Errorf("resend: status %d: %s", resp.StatusCode, out.Message)
		}
		return "", fmt.Errorf("resend: status %d", resp.StatusCode)
	}
	return out.ID, nil
}
