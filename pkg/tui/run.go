package tui

import (
	"context"
	"errors"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sabio/insight-dash/pkg/app"
	"github.com/sabio/insight-dash/pkg/config"
	"github.com/sabio/insight-dash/pkg/logging"
	"github.com/sabio/insight-dash/pkg/session"
)

// Run wires a session to the terminal and blocks until the user quits or
// ctx is done. initial, when non-empty, is uploaded right away.
func Run(ctx context.Context, cfg *config.Config, logger logging.Logger, initial string) error {
	bridge := NewBridge(filepath.Join(cfg.Output.Dir, "plots"))
	a, err := app.New(cfg, logger, bridge.Views())
	if err != nil {
		return err
	}
	stop := bridge.Watch(a.Coordinator)
	defer stop()

	m := New(ctx, a.Coordinator, a.ChartPaths)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p.Send)

	if initial != "" {
		go func() {
			p.Send(m.dispatch(session.FileFromPath(initial))())
		}()
	}

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
