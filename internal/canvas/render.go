package canvas

import (
	"fmt"
	"log/slog"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/board"
	"github.com/starford/vellum/internal/bridge"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/render"
)

// Frame is a mounted embedded document.
type Frame struct {
	Key      string        `json:"key"`
	NodeID   string        `json:"nodeId"`
	Source   render.Source `json:"source"`
	Progress bool          `json:"progress"`
	HTML     string        `json:"-"`
}

// Display returns what a node should show right now.
func (s *Service) Display(id string) (render.Display, error) {
	n, ok := s.store.Snapshot().Node(id)
	if !ok {
		return render.Display{}, fmt.Errorf("canvas: node %s: %w", id, apperr.ErrNotFound)
	}
	return s.cache.Display(n), nil
}

// Frame mounts the node's displayable document with the bridge script
// injected. A node with nothing to display yields apperr.ErrNotRenderable;
// the host shows its placeholder instead.
func (s *Service) Frame(id string) (Frame, error) {
	d, err := s.Display(id)
	if err != nil {
		return Frame{}, err
	}
	if d.Empty() {
		return Frame{}, fmt.Errorf("canvas: frame %s: %w", id, apperr.ErrNotRenderable)
	}
	markup, err := s.host.Mount(d.Key, id, d.HTML)
	if err != nil {
		return Frame{}, fmt.Errorf("canvas: mount %s: %w", id, err)
	}
	return Frame{Key: d.Key, NodeID: id, Source: d.Source, Progress: d.Progress, HTML: markup}, nil
}

// UnmountFrame forgets a frame the host tore down.
func (s *Service) UnmountFrame(key string) {
	s.host.Unmount(key)
}

// HandleBridge processes a message posted by an embedded document. Bad
// messages are ignored.
func (s *Service) HandleBridge(raw []byte) {
	before := s.store.Snapshot().SelectedID
	el, ok := s.host.HandleInbound(raw)
	if !ok {
		return
	}
	if before != el.NodeID {
		s.observers.OnSelectNode(el.NodeID)
	}
	s.observers.OnSelectElement(&el)
}

// UpdateElement edits an element inside the node's mounted documents.
func (s *Service) UpdateElement(nodeID string, cmd bridge.UpdateElement) error {
	return s.host.UpdateElement(nodeID, cmd)
}

// ApplyEdits commits in-document edits as the node's HTML. liveMarkup is
// the markup read back from the live document; when empty the server-side
// mirror is used.
func (s *Service) ApplyEdits(nodeID, liveMarkup string) (models.Node, error) {
	n, ok := s.store.Snapshot().Node(nodeID)
	if !ok {
		return models.Node{}, fmt.Errorf("canvas: node %s: %w", nodeID, apperr.ErrNotFound)
	}
	if n.Type != models.NodeComponent {
		return models.Node{}, fmt.Errorf("canvas: node %s: %w", nodeID, apperr.ErrNotRenderable)
	}
	if s.cache.Streaming(nodeID) {
		return models.Node{}, fmt.Errorf("canvas: node %s is generating: %w", nodeID, apperr.ErrConflict)
	}
	markup, err := s.host.Apply(nodeID, liveMarkup)
	if err != nil {
		return models.Node{}, err
	}
	out, ok := s.UpdateNode(nodeID, board.HTML(markup))
	if !ok {
		return models.Node{}, fmt.Errorf("canvas: node %s: %w", nodeID, apperr.ErrNotFound)
	}
	s.log.Info("canvas: element edits applied", slog.String("node", nodeID), slog.Int("bytes", len(markup)))
	return out, nil
}
