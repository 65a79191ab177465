package app

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/aura/internal/export"
	"github.com/MrWong99/aura/internal/insight"
	"github.com/MrWong99/aura/pkg/chat"
)

// ErrNothingToExport is returned by [App.ExportLatest] when the transcript
// holds no bot message.
var ErrNothingToExport = errors.New("app: no answer to export")

// ExportLatest writes the Markdown document and the paginated report of the
// newest bot message into dir and returns both paths. The report shows the
// live insight panel; when it is empty (for example right after a restart)
// the insights are derived from the exported message alone.
func (a *App) ExportLatest(ctx context.Context, dir string, now time.Time) ([]string, error) {
	var (
		msg   chat.Message
		found bool
	)
	t := a.orch.Transcript()
	for i := len(t) - 1; i >= 0 && !found; i-- {
		msg, found = t[i], t[i].IsBot()
	}
	if !found {
		return nil, ErrNothingToExport
	}

	units := a.orch.Panel().Units()
	if len(units) == 0 {
		p := insight.NewPanel(insight.WithMetrics(a.metrics))
		p.Apply(ctx, insight.Derive(msg.Text, msg.Data))
		units = p.Units()
	}

	var paths []string
	for _, doc := range []export.Document{
		export.Markdown(msg.Text, msg.Data, now),
		export.Report(msg.Text, units, now),
	} {
		path, err := export.Write(dir, doc)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
