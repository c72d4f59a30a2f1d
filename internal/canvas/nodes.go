package canvas

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/board"
	"github.com/starford/vellum/internal/export"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/parser"
	"github.com/starford/vellum/internal/sse"
)

// AddNode appends a node. Missing sizes fall back to the type's floor;
// component nodes are never smaller than their floor.
func (s *Service) AddNode(n models.Node) (models.Node, error) {
	floor := s.cfg.Floors.For(n.Type)
	if n.Width <= 0 {
		n.Width = floor.Width
	}
	if n.Height <= 0 {
		n.Height = floor.Height
	}
	n.Width = math.Max(n.Width, floor.Width)
	n.Height = math.Max(n.Height, floor.Height)
	if n.Type == models.NodeNote {
		n.Color = export.NoteColor(n.Color)
	}

	added, err := s.store.Add(n)
	if err != nil {
		return models.Node{}, err
	}
	s.cache.Observe([]models.Node{added})
	s.observers.OnAddNode(added)
	s.markDirty()
	s.log.Debug("canvas: node added", slog.String("node", added.ID), slog.String("type", string(added.Type)))
	return added, nil
}

// UpdateNode shallow-merges p into a node. It is a no-op reporting false
// when the node does not exist.
func (s *Service) UpdateNode(id string, p board.Patch) (models.Node, bool) {
	n, ok := s.store.Update(id, p)
	if !ok {
		return models.Node{}, false
	}
	s.cache.Observe([]models.Node{n})
	s.observers.OnUpdateNode(n)
	s.markDirty()
	return n, true
}

// PatchNode validates and applies a user edit. Fields that do not belong
// to the node's type are rejected, note content is sanitized and geometry
// respects the type's floor.
func (s *Service) PatchNode(id string, p board.Patch) (models.Node, error) {
	cur, ok := s.store.Snapshot().Node(id)
	if !ok {
		return models.Node{}, fmt.Errorf("canvas: node %s: %w", id, apperr.ErrNotFound)
	}
	if p.Empty() {
		return cur, nil
	}
	switch cur.Type {
	case models.NodeComponent:
		if p.ImageURL != nil || p.Content != nil || p.Color != nil {
			return models.Node{}, fmt.Errorf("canvas: component fields: %w", apperr.ErrInvalidInput)
		}
	case models.NodeImage:
		if p.HTML != nil || p.Content != nil || p.Color != nil {
			return models.Node{}, fmt.Errorf("canvas: image fields: %w", apperr.ErrInvalidInput)
		}
	case models.NodeNote:
		if p.HTML != nil || p.ImageURL != nil {
			return models.Node{}, fmt.Errorf("canvas: note fields: %w", apperr.ErrInvalidInput)
		}
		if p.Content != nil {
			c := parser.PlainText(*p.Content)
			p.Content = &c
		}
		if p.Color != nil {
			c := export.NoteColor(*p.Color)
			p.Color = &c
		}
	}
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
	}
	floor := s.cfg.Floors.For(cur.Type)
	if p.Width != nil {
		w := math.Max(*p.Width, floor.Width)
		p.Width = &w
	}
	if p.Height != nil {
		h := math.Max(*p.Height, floor.Height)
		p.Height = &h
	}
	n, ok := s.UpdateNode(id, p)
	if !ok {
		return models.Node{}, fmt.Errorf("canvas: node %s: %w", id, apperr.ErrNotFound)
	}
	return n, nil
}

// RenameNode sets a node's title.
func (s *Service) RenameNode(id, title string) (models.Node, error) {
	return s.PatchNode(id, board.Title(title))
}

// CreateNote adds a sticky note. A nil position places it to the right of
// the existing nodes.
func (s *Service) CreateNote(title, content, color string, at *models.Point) (models.Node, error) {
	pos := s.place(at)
	return s.AddNode(models.Node{
		Type:    models.NodeNote,
		Title:   strings.TrimSpace(title),
		X:       pos.X,
		Y:       pos.Y,
		Width:   s.cfg.NoteSize.Width,
		Height:  s.cfg.NoteSize.Height,
		Content: parser.PlainText(content),
		Color:   color,
	})
}

func (s *Service) place(at *models.Point) models.Point {
	if at != nil {
		return *at
	}
	return board.NextSlot(s.store.Snapshot().Nodes, 80)
}

// DeleteNode removes a node. Its stream is cancelled, its frames unmounted
// and its cached HTML forgotten. When it was selected, selection becomes
// empty and every frame is told to clear its element selection.
func (s *Service) DeleteNode(id string) bool {
	before := s.store.Snapshot()
	n, ok := s.store.Delete(id)
	if !ok {
		return false
	}
	s.pipeline.Cancel(id)
	s.cache.Forget(id)
	s.host.UnmountNode(id)
	s.observers.OnDeleteNode(n)

	after := s.store.Snapshot()
	if before.Element != nil && after.Element == nil {
		s.observers.OnSelectElement(nil)
	}
	if before.SelectedID != after.SelectedID {
		s.observers.OnSelectNode(after.SelectedID)
		s.host.SelectionChanged(after.SelectedID)
	}
	if len(before.Tabs) != len(after.Tabs) {
		s.publishTabs(after)
	}
	if n.Type == models.NodeImage {
		s.releaseAsset(n.ImageURL, after)
	}
	s.markDirty()
	s.log.Debug("canvas: node deleted", slog.String("node", id))
	return true
}

// SelectNode makes id the selected node; "" deselects. Deselecting clears
// element highlights in every mounted frame.
func (s *Service) SelectNode(id string) {
	before := s.store.Snapshot()
	if !s.store.Select(id) {
		return
	}
	after := s.store.Snapshot()
	if before.Element != nil && after.Element == nil {
		s.observers.OnSelectElement(nil)
	}
	s.observers.OnSelectNode(after.SelectedID)
	s.host.SelectionChanged(after.SelectedID)
}

// ClearElement drops the selected element.
func (s *Service) ClearElement() bool {
	if !s.store.ClearElement() {
		return false
	}
	s.observers.OnSelectElement(nil)
	return true
}

// FocusNode fits the viewport to a node and records a focus trigger.
func (s *Service) FocusNode(id string) bool {
	ft, ok := s.store.Focus(id)
	if !ok {
		return false
	}
	n, ok := s.store.Snapshot().Node(id)
	if !ok {
		return false
	}
	tr := s.setTransform(geomFit(n, *s.viewport.Load(), s.cfg))
	s.events.Publish(sse.Event{Type: sse.EventFocus, Data: focusPayload{FocusTrigger: ft, Transform: tr}})
	return true
}

// OpenTab opens the preview tab of a node.
func (s *Service) OpenTab(nodeID string) (models.PreviewTab, error) {
	tab, ok := s.store.OpenTab(nodeID)
	if !ok {
		return models.PreviewTab{}, fmt.Errorf("canvas: node %s: %w", nodeID, apperr.ErrNotFound)
	}
	s.publishTabs(s.store.Snapshot())
	return tab, nil
}

// CloseTab closes a node's preview tab.
func (s *Service) CloseTab(nodeID string) error {
	if !s.store.CloseTab(nodeID) {
		return fmt.Errorf("canvas: tab for %s: %w", nodeID, apperr.ErrNotFound)
	}
	s.publishTabs(s.store.Snapshot())
	return nil
}

// ActivateTab switches the active preview tab; "" returns to the canvas.
func (s *Service) ActivateTab(tabID string) error {
	snap := s.store.Snapshot()
	if tabID == snap.ActiveTab {
		return nil
	}
	if !s.store.ActivateTab(tabID) {
		return fmt.Errorf("canvas: tab %s: %w", tabID, apperr.ErrNotFound)
	}
	s.publishTabs(s.store.Snapshot())
	return nil
}

type tabsPayload struct {
	Tabs      []models.PreviewTab `json:"tabs"`
	ActiveTab string              `json:"activeTab"`
}

func (s *Service) publishTabs(snap *board.Snapshot) {
	s.events.Publish(sse.Event{Type: sse.EventTabs, Data: tabsPayload{Tabs: snap.Tabs, ActiveTab: snap.ActiveTab}})
}
