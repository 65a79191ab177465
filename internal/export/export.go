// Package export renders research answers into documents a user can keep:
// a Markdown report of one answer and a paginated plain-text report that
// includes a snapshot of the insight panel.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/MrWong99/aura/internal/insight"
	"github.com/MrWong99/aura/pkg/chat"
)

// PageBreak separates the pages of a [Report].
const PageBreak = "\f"

// ReportWidth is the column width of report pages.
const ReportWidth = 80

// Document is a named export ready to be written.
type Document struct {
	Name    string
	Content string
}

// Markdown builds the Markdown report of one bot answer. The summary
// section is only present when data is non-nil.
func Markdown(text string, data *chat.Payload, now time.Time) Document {
	day := now.UTC().Format(time.DateOnly)

	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report - %s\n\n%s\n\n", day, text)
	if data != nil {
		b.WriteString("\n## Data Summary\n\n")
		if data.Company != "" {
			fmt.Fprintf(&b, "**Company:** %s\n\n", data.Company)
		}
		if data.Metrics != nil && data.Metrics.Len() > 0 {
			b.WriteString("### Metrics\n")
			for p := data.Metrics.Oldest(); p != nil; p = p.Next() {
				fmt.Fprintf(&b, "- %s: %s\n", p.Key, strconv.FormatFloat(p.Value, 'f', -1, 64))
			}
			b.WriteString("\n")
		}
		if len(data.Competitors) > 0 {
			b.WriteString("### Competitors\n")
			for _, c := range data.Competitors {
				fmt.Fprintf(&b, "- %s\n", c)
			}
		}
	}
	return Document{Name: "research-" + day + ".md", Content: b.String()}
}

// Report builds the paginated report of one answer. The first page holds
// the answer text; a second "Visual Insights" page with the rendered panel
// follows only when units is non-empty. Styling escapes are stripped.
func Report(text string, units []insight.Unit, now time.Time) Document {
	wrap := lipgloss.NewStyle().Width(ReportWidth)

	var b strings.Builder
	b.WriteString("Aura Research Report\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", now.Format(time.DateTime))
	b.WriteString(plain(wrap.Render(text)))
	b.WriteString("\n")
	if len(units) > 0 {
		b.WriteString(PageBreak)
		b.WriteString("Visual Insights\n\n")
		b.WriteString(plain(insight.Render(units, ReportWidth)))
		b.WriteString("\n")
	}
	return Document{
		Name:    fmt.Sprintf("aura-research-%d.txt", now.UnixMilli()),
		Content: b.String(),
	}
}

// plain strips styling and the padding lipgloss adds to every line.
func plain(s string) string {
	lines := strings.Split(ansi.Strip(s), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}

// Write stores doc in dir, creating dir if needed, and returns the path.
func Write(dir string, doc Document) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, doc.Name)
	if err := os.WriteFile(path, []byte(doc.Content), 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	return path, nil
}
