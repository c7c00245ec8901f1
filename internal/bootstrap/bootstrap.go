package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	timerinadapter "timeblock/internal/modules/timer/adapter/in"
	timeroutadapter "timeblock/internal/modules/timer/adapter/out"
	timerout "timeblock/internal/modules/timer/port/out"
	timerservice "timeblock/internal/modules/timer/service"
	timerusecase "timeblock/internal/modules/timer/usecase"
	"timeblock/internal/platform/clock"
	"timeblock/internal/platform/config"
	"timeblock/internal/platform/id"
	uiapp "timeblock/internal/ui/app"
)

type App struct {
	Config   config.Config
	TimerCLI timerinadapter.CLIHandler
	TimerTUI timerinadapter.TUIHandler

	closers []func() error
}

// New wires the timer module. bell receives the audio cue; pass nil to keep
// completions silent.
func New(cfg config.Config, logger *slog.Logger, bell io.Writer) (*App, error) {
	clk := clock.SystemClock{}
	ids := id.UUID{}

	app := &App{Config: cfg}
	var store timerout.ActivityStore
	switch cfg.Store {
	case "memory":
		store = timeroutadapter.NewMemoryActivityStore(ids)
	default:
		sqliteStore, err := timeroutadapter.NewSQLiteActivityStore(cfg.DBPath, ids, cfg.PollInterval, logger.With(slog.String("component", "store")))
		if err != nil {
			return nil, fmt.Errorf("new activity store: %w", err)
		}
		app.closers = append(app.closers, sqliteStore.Close)
		store = sqliteStore
	}

	audio := cfg.Audio
	if bell == nil {
		audio = "none"
	}
	scheduler := timerservice.NewScheduler(timerservice.Options{
		Scope:    cfg.Scope,
		Clock:    clk,
		IDs:      ids,
		Store:    store,
		Notifier: timeroutadapter.NewNotifier(cfg.Notifier, logger),
		Audio:    timeroutadapter.NewAudioCue(audio, bell),
		Logger:   logger.With(slog.String("component", "scheduler")),
	})
	codec := timeroutadapter.NewJSONCodec()
	timerUC := timerusecase.NewInteractor(timerusecase.Options{
		Scheduler: scheduler,
		Store:     store,
		Scope:     cfg.Scope,
		Exporters: []timerout.ActivityExporter{codec, timeroutadapter.NewMarkdownAgenda()},
		Importer:  codec,
		Logger:    logger,
	})
	// Stop the subscription pump before the store goes away.
	app.closers = append([]func() error{timerUC.Close}, app.closers...)

	app.TimerCLI = timerinadapter.NewCLIHandler(timerUC)
	app.TimerTUI = timerinadapter.NewTUIHandler(timerUC)
	return app, nil
}

// Open loads the board; every handler call requires it.
func (a *App) Open(ctx context.Context) error {
	return a.TimerCLI.Open(ctx)
}

func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

func RunTUI(ctx context.Context, app *App) error {
	model := uiapp.NewModel(app.TimerTUI, app.Config.TickInterval)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
