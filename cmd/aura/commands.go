package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/MrWong99/aura/internal/app"
	"github.com/MrWong99/aura/internal/health"
	"github.com/MrWong99/aura/internal/insight"
	"github.com/MrWong99/aura/internal/tui"
	"github.com/MrWong99/aura/pkg/chat"
)

var (
	exportDir    string
	showInsights bool
	insightWidth int
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat (default)",
	RunE:  runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the answer",
	Long: `Ask a single question in the current conversation and print the answer.

The question and the answer are added to the saved conversation, so a later
"aura chat" continues from here.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the saved conversation",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the newest answer as Markdown and as a report",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Start a new conversation, discarding the saved one",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the backend, the storage and the speech engine",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	chatCmd.Flags().StringVar(&exportDir, "export-dir", ".", "directory for exports and copied answers")
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())

	askCmd.Flags().BoolVar(&showInsights, "insights", false, "print the insight panel after the answer")
	askCmd.Flags().IntVar(&insightWidth, "width", 72, "width of the printed insight panel")

	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "directory the documents are written to")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	logOut, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logOut.Close()

	bridge := tui.NewBridge()
	opts := []app.Option{app.WithObserver(bridge)}
	if _, err := os.Stat(configPath); err == nil {
		opts = append(opts, app.WithConfigPath(configPath))
	}
	inst, err := start(ctx, logOut, opts...)
	if err != nil {
		return err
	}
	defer inst.close()

	a := inst.app
	dir := exportDir
	model := tui.New(ctx, a.Orchestrator(), bridge,
		tui.WithOverlay(a.Facts()),
		tui.WithCopyDir(dir),
		tui.WithExporter(func(ctx context.Context) ([]string, error) {
			return a.ExportLatest(ctx, dir, time.Now())
		}),
	)
	return a.Run(ctx, func(ctx context.Context) error { return tui.Run(ctx, model) })
}

// startConversation builds the application with logs on stderr and
// restores the saved conversation.
func startConversation(cmd *cobra.Command) (*instance, context.CancelFunc, error) {
	ctx, stop := signalContext(cmd.Context())
	inst, err := start(ctx, cmd.ErrOrStderr())
	if err != nil {
		stop()
		return nil, nil, err
	}
	if err := inst.app.Orchestrator().Initialize(ctx); err != nil {
		inst.close()
		stop()
		return nil, nil, err
	}
	cmd.SetContext(ctx)
	return inst, func() {
		inst.close()
		stop()
	}, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	inst, done, err := startConversation(cmd)
	if err != nil {
		return err
	}
	defer done()

	orch := inst.app.Orchestrator()
	if orch.Autoplay() {
		orch.ToggleAutoplay()
	}
	reply, ok := orch.Send(cmd.Context(), strings.Join(args, " "))
	if !ok {
		return errors.New("no answer received")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, reply.Text)
	if showInsights {
		fmt.Fprintln(out)
		fmt.Fprintln(out, insight.Render(orch.Panel().Units(), insightWidth))
	}
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	inst, done, err := startConversation(cmd)
	if err != nil {
		return err
	}
	defer done()

	orch := inst.app.Orchestrator()
	printTranscript(cmd.OutOrStdout(), orch.SessionID(), orch.Transcript())
	return nil
}

func printTranscript(w io.Writer, sessionID string, msgs []chat.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No saved conversation.")
		return
	}
	if sessionID != "" {
		fmt.Fprintf(w, "Session %s\n\n", sessionID)
	}
	for _, m := range msgs {
		who := "You"
		if m.IsBot() {
			who = "Aura"
		}
		fmt.Fprintf(w, "%s:\n%s\n\n", who, m.Text)
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	inst, done, err := startConversation(cmd)
	if err != nil {
		return err
	}
	defer done()

	paths, err := inst.app.ExportLatest(cmd.Context(), exportDir, time.Now())
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	inst, done, err := startConversation(cmd)
	if err != nil {
		return err
	}
	defer done()

	if err := inst.app.Orchestrator().NewChat(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Conversation cleared.")
	return nil
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00b894")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e17055")).Bold(true)
)

// errChecksFailed makes doctor exit non-zero.
var errChecksFailed = errors.New("some checks failed")

func runDoctor(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	inst, err := start(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer inst.close()

	if !printResults(cmd.OutOrStdout(), inst.app.Check(ctx)) {
		return errChecksFailed
	}
	return nil
}

// printResults writes one line per result and reports whether all passed.
func printResults(w io.Writer, results []health.Result) bool {
	ok := true
	for _, r := range results {
		d := r.Duration.Round(time.Millisecond)
		if r.OK() {
			fmt.Fprintf(w, "%s %-8s %s\n", okStyle.Render("ok  "), r.Name, d)
			continue
		}
		ok = false
		fmt.Fprintf(w, "%s %-8s %s: %v\n", failStyle.Render("FAIL"), r.Name, d, r.Err)
	}
	return ok
}
