// Package cli wires the editor core into a small command-line surface for
// inspecting and batch-driving a project database.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okoshkin/dubedit/internal/editor"
	"github.com/okoshkin/dubedit/internal/history"
	"github.com/okoshkin/dubedit/internal/logging"
	"github.com/okoshkin/dubedit/internal/store/sqlite"
	"github.com/okoshkin/dubedit/internal/voice"
)

// Main builds the command tree and runs it.
func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:           "dubedit",
		Short:         "Inspect and batch-edit a dubbing project database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	root.PersistentFlags().String("db", "dubedit.db", "Path to the project database")
	root.PersistentFlags().String("audio-dir", "audio", "Directory for generated audio files")

	root.AddCommand(segmentsCmd(), addCmd(), staleCmd(), importCmd(), undoCmd(), redoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openEngine opens the project database and an engine with the project
// loaded. The returned cleanup closes the database.
func openEngine(cmd *cobra.Command, projectID string) (*editor.Engine, func(), error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dsn, _ := cmd.Flags().GetString("db")
	audioDir, _ := cmd.Flags().GetString("audio-dir")

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	stores, err := sqlite.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}

	var synth voice.Synthesizer
	if base := os.Getenv("DUBEDIT_TTS_URL"); base != "" {
		synth = voice.NewHTTPSynthesizer(base, os.Getenv("DUBEDIT_TTS_API_KEY"), audioDir, nil, log)
	}

	hist := history.New(stores.History, log)
	eng := editor.New(stores.Segments, stores.Speakers, hist, synth, log)

	if err := eng.OpenProject(ctx, projectID); err != nil {
		_ = stores.Close()
		return nil, nil, err
	}
	return eng, func() { _ = stores.Close() }, nil
}
