package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okoshkin/dubedit/internal/editor"
	"github.com/okoshkin/dubedit/internal/importer"
	"github.com/okoshkin/dubedit/internal/store"
)

func segmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "segments <project-id>",
		Short: "List a project's segments in timeline order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, done, err := openEngine(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			for _, s := range eng.Segments() {
				mark := " "
				if s.IsStale() {
					mark = "*"
				}
				speaker := "-"
				if sp, ok := eng.SpeakerByID(s.SpeakerID); ok {
					speaker = sp.Name
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s [%6d..%6d] %-12s %s\n",
					mark, s.StartTimeMs, s.EndTimeMs, speaker, s.TranslatedText)
			}
			return nil
		},
	}
}

func addCmd() *cobra.Command {
	var (
		start   int64
		end     int64
		text    string
		speaker string
	)

	cmd := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Add a segment to a project; the add is undoable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, done, err := openEngine(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			seg, err := eng.CreateUndoable(cmd.Context(), store.CreateSegmentInput{
				ProjectID:      args[0],
				StartTimeMs:    start,
				EndTimeMs:      end,
				TranslatedText: text,
				SpeakerID:      speaker,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s [%6d..%6d]\n",
				seg.ID, seg.StartTimeMs, seg.EndTimeMs)
			return nil
		},
	}
	cmd.Flags().Int64Var(&start, "start", 0, "Start time in milliseconds")
	cmd.Flags().Int64Var(&end, "end", 0, "End time in milliseconds")
	cmd.Flags().StringVar(&text, "text", "", "Translated text")
	cmd.Flags().StringVar(&speaker, "speaker", "", "Speaker id (optional)")
	return cmd
}

func staleCmd() *cobra.Command {
	var regenerate bool

	cmd := &cobra.Command{
		Use:   "stale <project-id>",
		Short: "Show segments whose audio is stale, optionally regenerating them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, done, err := openEngine(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			stale := eng.StaleSegments()
			for _, s := range stale {
				fmt.Fprintf(cmd.OutOrStdout(), "%s [%6d..%6d] %s\n",
					s.ID, s.StartTimeMs, s.EndTimeMs, s.TranslatedText)
			}
			if !regenerate {
				return nil
			}

			return eng.RegenerateAllStale(cmd.Context(), func(p editor.Progress) {
				fmt.Fprintf(cmd.OutOrStdout(), "regenerated %d/%d\n", p.Completed, p.Total)
			})
		},
	}
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "Regenerate all stale audio")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <project-id> <segments.csv>",
		Short: "Import segments from a CSV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := importer.ParseCSV(f)
			if err != nil {
				return err
			}

			eng, done, err := openEngine(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			created, err := eng.Import(cmd.Context(), rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d segments\n", len(created))
			return nil
		},
	}
}

func undoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo <project-id>",
		Short: "Undo the most recent recorded edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, done, err := openEngine(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			if !eng.History().CanUndo() {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to undo")
				return nil
			}
			eng.History().Undo(cmd.Context())
			return nil
		},
	}
}

func redoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redo <project-id>",
		Short: "Reapply the most recently undone edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, done, err := openEngine(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			if !eng.History().CanRedo() {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to redo")
				return nil
			}
			eng.History().Redo(cmd.Context())
			return nil
		},
	}
}
