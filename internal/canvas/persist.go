package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/board"
	"github.com/starford/vellum/internal/storage"
)

const (
	defaultAutosave = 5 * time.Second
	saveQuiet       = 300 * time.Millisecond
)

func (s *Service) markDirty() {
	s.dirty.Store(true)
}

// requestSave asks the autosave loop to persist soon.
func (s *Service) requestSave() {
	s.markDirty()
	select {
	case s.saveCh <- struct{}{}:
	default:
	}
}

// Load replaces the board with the workspace's saved board. A workspace
// without one leaves the board empty.
func (s *Service) Load() error {
	if s.workspace == nil {
		return nil
	}
	saved, err := s.workspace.LoadBoard()
	if errors.Is(err, apperr.ErrNotFound) {
		s.log.Info("canvas: no saved board, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("canvas: load: %w", err)
	}
	s.store.Replace(board.Snapshot{Nodes: saved.Nodes, Tabs: saved.Tabs, ActiveTab: saved.ActiveTab})
	s.cache.Observe(saved.Nodes)
	tr := saved.Transform.Normalize(s.cfg.Limits)
	s.transform.Store(&tr)
	s.dirty.Store(false)
	s.log.Info("canvas: board loaded", slog.Int("nodes", len(saved.Nodes)))
	return nil
}

// Save writes the board to the workspace if it changed since the last save.
func (s *Service) Save() error {
	if s.workspace == nil || !s.dirty.Swap(false) {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	snap := s.store.Snapshot()
	err := s.workspace.SaveBoard(storage.SavedBoard{
		Nodes:     snap.Nodes,
		Tabs:      snap.Tabs,
		ActiveTab: snap.ActiveTab,
		Transform: s.Transform(),
		SavedAt:   time.Now().UTC(),
	})
	if err != nil {
		s.dirty.Store(true)
		return fmt.Errorf("canvas: save: %w", err)
	}
	s.log.Debug("canvas: board saved", slog.Int("nodes", len(snap.Nodes)))
	return nil
}

// Run autosaves the board until ctx is cancelled, then saves once more.
// Dirty boards are saved every Config.Autosave; a requested save happens
// after a short quiet period.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Autosave)
	defer ticker.Stop()

	var soonTimer *time.Timer
	var soonCh <-chan time.Time

	save := func() {
		if err := s.Save(); err != nil {
			s.log.Error("canvas: autosave failed", slog.Any("error", err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			if soonTimer != nil {
				soonTimer.Stop()
			}
			return s.Save()
		case <-s.saveCh:
			if soonTimer == nil {
				soonTimer = time.NewTimer(saveQuiet)
				soonCh = soonTimer.C
			} else {
				soonTimer.Reset(saveQuiet)
			}
		case <-soonCh:
			save()
		case <-ticker.C:
			save()
		}
	}
}
