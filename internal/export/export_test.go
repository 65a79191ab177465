package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/aura/internal/insight"
	"github.com/MrWong99/aura/pkg/chat"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func TestMarkdown(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data *chat.Payload
		want string
	}{
		{
			name: "text only",
			want: "# Research Report - 2025-03-14\n\nAcme is growing.\n\n",
		},
		{
			name: "full summary",
			data: &chat.Payload{
				Company:     "Acme",
				Metrics:     chat.NewMetrics(chat.MetricPair{Name: "revenue", Value: 2.5}, chat.MetricPair{Name: "pe_ratio", Value: 28}),
				Competitors: []string{"Globex", "Initech"},
			},
			want: "# Research Report - 2025-03-14\n\nAcme is growing.\n\n" +
				"\n## Data Summary\n\n" +
				"**Company:** Acme\n\n" +
				"### Metrics\n- revenue: 2.5\n- pe_ratio: 28\n\n" +
				"### Competitors\n- Globex\n- Initech\n",
		},
		{
			name: "empty payload",
			data: &chat.Payload{},
			want: "# Research Report - 2025-03-14\n\nAcme is growing.\n\n\n## Data Summary\n\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := Markdown("Acme is growing.", tt.data, fixedNow)
			if doc.Name != "research-2025-03-14.md" {
				t.Errorf("want name research-2025-03-14.md, got %q", doc.Name)
			}
			if doc.Content != tt.want {
				t.Errorf("content:\nwant %q\ngot  %q", tt.want, doc.Content)
			}
		})
	}
}

func TestReport(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("Revenue keeps growing across every segment. ", 5)

	doc := Report(text, nil, fixedNow)
	if want := "aura-research-1741944413000.txt"; doc.Name != want {
		t.Errorf("want name %q, got %q", want, doc.Name)
	}
	if strings.Contains(doc.Content, PageBreak) {
		t.Error("want a single page without insights")
	}
	if !strings.HasPrefix(doc.Content, "Aura Research Report\nGenerated: 2025-03-14 09:26:53\n\n") {
		t.Errorf("unexpected header: %q", doc.Content)
	}
	for _, line := range strings.Split(doc.Content, "\n") {
		if len(line) > ReportWidth {
			t.Errorf("line wider than %d: %q", ReportWidth, line)
		}
	}

	units := []insight.Unit{{Kind: insight.KindList, Title: insight.TitleCompetitors, Items: []string{"Globex"}}}
	doc = Report(text, units, fixedNow)
	pages := strings.Split(doc.Content, PageBreak)
	if len(pages) != 2 {
		t.Fatalf("want 2 pages, got %d", len(pages))
	}
	if !strings.HasPrefix(pages[1], "Visual Insights\n") || !strings.Contains(pages[1], "Globex") {
		t.Errorf("unexpected insights page: %q", pages[1])
	}
	if strings.Contains(doc.Content, "\x1b[") {
		t.Error("want styling escapes stripped")
	}
}

func TestWrite(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "exports")
	path, err := Write(dir, Document{Name: "r.md", Content: "# hi\n"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != "# hi\n" {
		t.Errorf("want content written, got %q", b)
	}
}
