package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var messageTypes = []MessageType{
	MessageTypeIncidentCreated,
	MessageTypeIncidentResolved,
	MessageTypeHostDown,
	MessageTypeHostRecovered,
}

// Renderer renders notifications from templates.
type Renderer struct {
	templates map[MessageType]*template.Template
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":          titleCase,
		"upper":          strings.ToUpper,
		"formatTime":     formatTime,
		"formatDuration": formatDuration,
		"ago":            ago,
		"severityEmoji":  severityEmoji,
		"statusEmoji":    statusEmoji,
	}

	r := &Renderer{
		templates: make(map[MessageType]*template.Template),
	}

	for _, msg := range messageTypes {
		name := string(msg)
		filename := fmt.Sprintf("templates/%s.tmpl", name)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(name).Funcs(funcMap).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}

		r.templates[msg] = tmpl
	}

	return r, nil
}

// Render renders a notification payload. Returns subject and body.
func (r *Renderer) Render(payload NotificationPayload) (subject, body string, err error) {
	tmpl, ok := r.templates[payload.MessageType]
	if !ok {
		return "", "", NewNonRetryableError(fmt.Errorf("template not found: %s", payload.MessageType))
	}

	subject, err = renderSubject(payload)
	if err != nil {
		return "", "", NewNonRetryableError(err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", "", NewNonRetryableError(fmt.Errorf("execute template %s: %w", payload.MessageType, err))
	}

	body = strings.TrimSpace(buf.String())
	return subject, body, nil
}

func renderSubject(payload NotificationPayload) (string, error) {
	switch payload.MessageType {
	case MessageTypeIncidentCreated, MessageTypeIncidentResolved:
		if payload.Incident == nil {
			return "", fmt.Errorf("%s payload has no incident", payload.MessageType)
		}
		prefix := "Incident"
		if payload.MessageType == MessageTypeIncidentResolved {
			prefix = "Resolved"
		}
		return fmt.Sprintf("[%s #%d] %s", prefix, payload.Incident.Number, payload.Incident.Title), nil
	case MessageTypeHostDown, MessageTypeHostRecovered:
		if payload.Host == nil {
			return "", fmt.Errorf("%s payload has no host", payload.MessageType)
		}
		prefix := "Host Down"
		if payload.MessageType == MessageTypeHostRecovered {
			prefix = "Host Recovered"
		}
		return fmt.Sprintf("[%s] %s", prefix, payload.Host.Name), nil
	default:
		return "", fmt.Errorf("unknown message type: %s", payload.MessageType)
	}
}

// Template functions

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

// formatTime accepts time.Time or *time.Time.
func formatTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format("Jan 2, 2006 15:04 UTC")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format("Jan 2, 2006 15:04 UTC")
	default:
		return ""
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", minutes)
}

// ago renders t relative to ref, e.g. "3 minutes ago".
func ago(t *time.Time, ref time.Time) string {
	if t == nil {
		return "never"
	}
	return humanize.RelTime(*t, ref, "ago", "from now")
}

func severityEmoji(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return "🔴"
	case "high":
		return "🟠"
	case "medium":
		return "🟡"
	case "low":
		return "🔵"
	default:
		return "⚪"
	}
}

func statusEmoji(status string) string {
	switch strings.ToLower(status) {
	case "up", "resolved", "closed":
		return "✅"
	case "down":
		return "🔴"
	case "warning", "degraded":
		return "⚠️"
	default:
		return "📋"
	}
}
