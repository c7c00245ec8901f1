package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"timeblock/internal/bootstrap"
	"timeblock/internal/modules/timer/domain"
	timerdto "timeblock/internal/modules/timer/dto"
	"timeblock/internal/platform/config"
	"timeblock/internal/platform/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	dataDir  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "timeblock",
		Short:         "Sequential countdown timers for time-blocked work",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data", ".", "data directory (holds .timeblock/)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level: debug|info|warn|error")

	root.AddCommand(newTUICmd(flags))
	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newAddCmd(flags))
	root.AddCommand(newListCmd(flags))
	root.AddCommand(newEstimateCmd(flags))
	root.AddCommand(newActivityCmd(flags, "play", "Start an activity, pausing any other", func(ctx context.Context, app *bootstrap.App, id string) error {
		return app.TimerCLI.Play(ctx, id)
	}))
	root.AddCommand(newActivityCmd(flags, "pause", "Pause a running activity", func(ctx context.Context, app *bootstrap.App, id string) error {
		return app.TimerCLI.Pause(ctx, id)
	}))
	root.AddCommand(newActivityCmd(flags, "reset", "Restore an activity's full duration", func(ctx context.Context, app *bootstrap.App, id string) error {
		return app.TimerCLI.Reset(ctx, id)
	}))
	root.AddCommand(newActivityCmd(flags, "delete", "Delete an activity", func(ctx context.Context, app *bootstrap.App, id string) error {
		return app.TimerCLI.Delete(ctx, id)
	}))
	root.AddCommand(newEditCmd(flags))
	root.AddCommand(newMoveCmd(flags))
	root.AddCommand(newSessionCmd(flags))
	root.AddCommand(newExportCmd(flags))
	root.AddCommand(newImportCmd(flags))
	return root
}

func loadApp(flags *globalFlags, bell io.Writer) (*bootstrap.App, error) {
	cfg, err := config.New(flags.dataDir)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if strings.TrimSpace(flags.logLevel) != "" {
		level = flags.logLevel
	}
	return bootstrap.New(cfg, logging.New(os.Stderr, level), bell)
}

// withApp opens the board for the duration of fn.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, app *bootstrap.App) error) error {
	app, err := loadApp(flags, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer app.Close()
	ctx := cmd.Context()
	if err := app.Open(ctx); err != nil {
		return err
	}
	return fn(ctx, app)
}

func newTUICmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the interactive board",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags, os.Stdout)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.Open(cmd.Context()); err != nil {
				return err
			}
			return bootstrap.RunTUI(cmd.Context(), app)
		},
	}
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Advance timers headlessly until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				catchUp, stop := resumeSignals()
				defer stop()
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "running scope %s (ctrl+c to stop)\n", app.Config.Scope)
				return app.TimerCLI.Run(ctx, timerdto.RunInput{TickInterval: app.Config.TickInterval, CatchUp: catchUp})
			})
		},
	}
}

func newAddCmd(flags *globalFlags) *cobra.Command {
	var span string
	var hours, minutes, seconds int
	cmd := &cobra.Command{
		Use:   "add <title...>",
		Short: "Append an activity to the active list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(span) != "" {
				total, err := domain.ParseSpan(span)
				if err != nil {
					return err
				}
				hours, minutes, seconds = 0, 0, total
			}
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.TimerCLI.Add(ctx, strings.Join(args, " "), hours, minutes, seconds)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s %q %s\n", out.ID, out.Title, domain.FormatClock(out.InitialDuration))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&span, "duration", "d", "", "duration as 1h30m or HH:MM:SS (overrides the part flags)")
	cmd.Flags().IntVar(&hours, "hours", 0, "hours")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "minutes")
	cmd.Flags().IntVar(&seconds, "seconds", 0, "seconds")
	return cmd
}

func newListCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the board",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				board, err := app.TimerCLI.List(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(board.Activities)
				}
				printBoard(cmd.OutOrStdout(), board)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print activities as JSON")
	return cmd
}

func printBoard(w io.Writer, board timerdto.Board) {
	_, _ = fmt.Fprintf(w, "session: %s\n", board.Session)
	if board.LastError != "" {
		_, _ = fmt.Fprintf(w, "error: %s\n", board.LastError)
	}
	active := board.Active()
	_, _ = fmt.Fprintln(w, "active:")
	if len(active) == 0 {
		_, _ = fmt.Fprintln(w, "  (none)")
	}
	for i, a := range active {
		state := "paused"
		if a.IsRunning {
			state = "running"
		}
		_, _ = fmt.Fprintf(w, "  %d. %s %s %-7s %s\n", i+1, shortID(a.ID), domain.FormatClock(a.Remaining), state, a.Title)
	}
	completed := board.Completed()
	_, _ = fmt.Fprintln(w, "completed:")
	if len(completed) == 0 {
		_, _ = fmt.Fprintln(w, "  (none)")
	}
	for i, a := range completed {
		_, _ = fmt.Fprintf(w, "  %d. %s spent %s %s\n", i+1, shortID(a.ID), domain.FormatClock(a.TimeSpent), a.Title)
	}
}

func newEstimateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate",
		Short: "Project finish times for the active list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				board, err := app.TimerCLI.List(ctx)
				if err != nil {
					return err
				}
				for _, a := range board.Active() {
					if a.EstimatedFinish == nil {
						continue
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n", shortID(a.ID), domain.FormatClock(a.Remaining), a.EstimatedFinish.Local().Format("15:04:05"), a.Title)
				}
				total := "-"
				if board.ProjectedFinish != nil {
					total = board.ProjectedFinish.Local().Format("15:04:05")
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "total %s finish %s\n", domain.FormatClock(board.RemainingTotal), total)
				return nil
			})
		},
	}
}

func newActivityCmd(flags *globalFlags, use, short string, action func(context.Context, *bootstrap.App, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				if err := action(ctx, app, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", use, args[0])
				return nil
			})
		},
	}
}

func newEditCmd(flags *globalFlags) *cobra.Command {
	var title, span string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Rename an activity or change its planned duration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := timerdto.EditInput{ID: args[0]}
			if cmd.Flags().Changed("title") {
				input.Title = &title
			}
			if cmd.Flags().Changed("duration") {
				total, err := domain.ParseSpan(span)
				if err != nil {
					return err
				}
				input.Seconds = &total
			}
			if input.Title == nil && input.Seconds == nil {
				return fmt.Errorf("nothing to edit: pass --title and/or --duration")
			}
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.TimerCLI.Edit(ctx, input)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "edited %s %q %s\n", out.ID, out.Title, domain.FormatClock(out.InitialDuration))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&span, "duration", "d", "", "new duration as 1h30m or HH:MM:SS")
	return cmd
}

func newMoveCmd(flags *globalFlags) *cobra.Command {
	var to string
	var position int
	cmd := &cobra.Command{
		Use:   "move <id> --position <n>",
		Short: "Reorder an activity or restore a completed one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if position < 1 {
				return fmt.Errorf("--position must be at least 1")
			}
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.TimerCLI.Move(ctx, args[0], to, position-1); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "moved %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destination list: active|completed (default: current list)")
	cmd.Flags().IntVar(&position, "position", 1, "1-based destination position")
	return cmd
}

func newSessionCmd(flags *globalFlags) *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Start or pause the work session"}
	for _, action := range []string{"start", "pause", "toggle"} {
		session.AddCommand(&cobra.Command{
			Use:   action,
			Short: action + " the session",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
					if err := app.TimerCLI.Session(ctx, action); err != nil {
						return err
					}
					board, err := app.TimerCLI.List(ctx)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session %s\n", board.Session)
					return nil
				})
			},
		})
	}
	return session
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var format, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the board as JSON or a markdown agenda",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.TimerCLI.Export(ctx, format)
				if err != nil {
					return err
				}
				if outPath == "" || outPath == "-" {
					_, err := cmd.OutOrStdout().Write(out.Payload)
					return err
				}
				if err := os.WriteFile(outPath, out.Payload, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", out.Format, outPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json|markdown")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Append activities from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload []byte
			var err error
			if args[0] == "-" {
				payload, err = io.ReadAll(cmd.InOrStdin())
			} else {
				payload, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.TimerCLI.Import(ctx, payload)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d activities\n", out.Imported)
				return nil
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
