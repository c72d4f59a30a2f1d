package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/board"
	"github.com/starford/vellum/internal/models"
)

// Board is the node state the host resolves inbound messages against.
type Board interface {
	Snapshot() *board.Snapshot
	SelectElement(el models.SelectedElement) bool
}

// Outbound is a message addressed to one mounted frame.
type Outbound struct {
	FrameKey string  `json:"frameKey"`
	NodeID   string  `json:"nodeId"`
	Message  Message `json:"-"`
}

// MarshalJSON encodes the message with its type tag.
func (o Outbound) MarshalJSON() ([]byte, error) {
	msg, err := Encode(o.Message)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		FrameKey string          `json:"frameKey"`
		NodeID   string          `json:"nodeId"`
		Message  json.RawMessage `json:"message"`
	}{o.FrameKey, o.NodeID, msg})
}

// Sender delivers outbound messages to the browser that hosts the frames.
type Sender interface {
	SendBridge(out Outbound)
}

type frame struct {
	nodeID string
	doc    *Document
}

// Host tracks mounted frames and routes messages between them and the board.
type Host struct {
	schema Schema
	board  Board
	send   Sender
	log    *slog.Logger

	mu     sync.Mutex
	frames map[string]*frame
}

// NewHost creates a host. A nil logger uses slog.Default.
func NewHost(s Schema, b Board, send Sender, log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	return &Host{schema: s, board: b, send: send, log: log, frames: make(map[string]*frame)}
}

// Schema returns the protocol the host speaks.
func (h *Host) Schema() Schema { return h.schema }

// Mount registers a frame rendering markup for a node and returns the
// markup with the interaction script injected. A node has one frame at a
// time: mounting tears down the node's other frames, and mounting an
// existing key replaces its mirror.
//
// Each mount gets a fresh nonce that the document's generated element ids
// carry, so ids assigned in an earlier mount can never collide.
func (h *Host) Mount(key, nodeID, markup string) (string, error) {
	nonce := uuid.NewString()[:8]
	doc, err := h.schema.ParseDocument(markup)
	if err != nil {
		return "", err
	}
	doc.idBase = h.schema.idBase(nonce)
	out, err := h.schema.Inject(markup, nodeID, nonce)
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	for k, f := range h.frames {
		if f.nodeID == nodeID && k != key {
			delete(h.frames, k)
		}
	}
	h.frames[key] = &frame{nodeID: nodeID, doc: doc}
	h.mu.Unlock()
	return out, nil
}

// Unmount forgets a frame.
func (h *Host) Unmount(key string) {
	h.mu.Lock()
	delete(h.frames, key)
	h.mu.Unlock()
}

// UnmountNode forgets every frame of a node.
func (h *Host) UnmountNode(nodeID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, f := range h.frames {
		if f.nodeID == nodeID {
			delete(h.frames, k)
		}
	}
}

// Frames lists mounted frame keys in sorted order.
func (h *Host) Frames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, 0, len(h.frames))
	for k := range h.frames {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HandleInbound processes a message posted by a document. Malformed
// messages and messages for unknown nodes are dropped without error.
func (h *Host) HandleInbound(raw []byte) (models.SelectedElement, bool) {
	msg, err := Decode(raw)
	if err != nil {
		h.log.Debug("bridge: dropped inbound message", slog.Any("error", err))
		return models.SelectedElement{}, false
	}
	sel, ok := msg.(ElementSelected)
	if !ok {
		return models.SelectedElement{}, false
	}
	n, ok := h.board.Snapshot().Node(sel.NodeID)
	if !ok || n.Type != models.NodeComponent {
		h.log.Debug("bridge: element selected for unknown node", slog.String("node", sel.NodeID))
		return models.SelectedElement{}, false
	}
	el := sel.Element()
	if !h.board.SelectElement(el) {
		return models.SelectedElement{}, false
	}
	return el, true
}

// SelectionChanged reacts to the board's selected node changing. When
// nothing is selected, every mounted frame is told to clear its selection.
func (h *Host) SelectionChanged(selectedID string) {
	if selectedID != "" {
		return
	}
	h.mu.Lock()
	outs := make([]Outbound, 0, len(h.frames))
	for k, f := range h.frames {
		outs = append(outs, Outbound{FrameKey: k, NodeID: f.nodeID, Message: ClearSelection{}})
	}
	h.mu.Unlock()
	sort.Slice(outs, func(i, j int) bool { return outs[i].FrameKey < outs[j].FrameKey })
	for _, o := range outs {
		h.send.SendBridge(o)
	}
}

// UpdateElement sends an update command to the node's frames and mirrors it.
func (h *Host) UpdateElement(nodeID string, cmd UpdateElement) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	var outs []Outbound
	applied := false
	for k, f := range h.frames {
		if f.nodeID != nodeID {
			continue
		}
		if f.doc.Apply(cmd) {
			applied = true
		}
		outs = append(outs, Outbound{FrameKey: k, NodeID: nodeID, Message: cmd})
	}
	h.mu.Unlock()
	if len(outs) == 0 {
		return fmt.Errorf("bridge: update element: no frame for node %s: %w", nodeID, apperr.ErrNotFound)
	}
	if !applied {
		return fmt.Errorf("bridge: update element: element %s: %w", cmd.ID, apperr.ErrNotFound)
	}
	for _, o := range outs {
		h.send.SendBridge(o)
	}
	return nil
}

// Apply returns the markup to commit after in-document edits. liveMarkup is
// the outer markup read back from the live document; when empty, the mirror
// is used instead. Bridge artifacts are removed either way.
func (h *Host) Apply(nodeID, liveMarkup string) (string, error) {
	if liveMarkup != "" {
		return h.schema.Strip(liveMarkup)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, f := range h.frames {
		if f.nodeID == nodeID {
			return f.doc.Render()
		}
	}
	return "", fmt.Errorf("bridge: apply: no frame for node %s: %w", nodeID, apperr.ErrNotFound)
}
