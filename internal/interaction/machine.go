// Package interaction arbitrates pointer input on the canvas. The active
// gesture is a single State value; at most one gesture runs at a time.
package interaction

import (
	"sync"

	"github.com/starford/vellum/internal/board"
	"github.com/starford/vellum/internal/geom"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/toolbar"
)

// Mode is the active gesture.
type Mode string

const (
	Idle         Mode = "idle"
	Panning      Mode = "panning"
	DraggingNode Mode = "dragging"
	Resizing     Mode = "resizing"
)

// Tool is the user-selected pointer tool.
type Tool string

const (
	ToolSelect Tool = "select"
	ToolHand   Tool = "hand"
)

// Mouse buttons as reported by the DOM.
const (
	ButtonPrimary = 0
	ButtonMiddle  = 1
)

// State is the gesture state. Fields other than Mode are only meaningful for
// the modes that use them: NodeID and Origin for dragging and resizing,
// Handle for resizing.
type State struct {
	Mode           Mode           `json:"mode"`
	NodeID         string         `json:"nodeId,omitempty"`
	Handle         board.Handle   `json:"handle,omitempty"`
	Start          models.Point   `json:"start"`
	StartTransform geom.Transform `json:"startTransform"`
	Origin         models.Rect    `json:"origin"`
	Moved          bool           `json:"moved"`
}

// PointerEvent is a pointer event in screen coordinates. PanKey is set while
// the pan modifier (Space or Alt) is held.
type PointerEvent struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button"`
	PanKey bool    `json:"panKey"`
}

func (e PointerEvent) point() models.Point { return models.Point{X: e.X, Y: e.Y} }

// Canvas is what the machine reads and mutates.
type Canvas interface {
	Snapshot() *board.Snapshot
	Transform() geom.Transform
	SetTransform(geom.Transform)
	Viewport() models.Size
	UpdateNode(id string, p board.Patch) (models.Node, bool)
	SelectNode(id string)
	// CommitNode reports the final geometry once a drag or resize ends.
	CommitNode(n models.Node)
}

// Outcome describes what a pointer event did.
type Outcome struct {
	State   State  `json:"state"`
	Target  Target `json:"target"`
	Ignored bool   `json:"ignored,omitempty"`
}

// Machine is the interaction state machine.
type Machine struct {
	mu     sync.Mutex
	canvas Canvas
	floors board.Floors
	tool   Tool
	state  State
}

// New creates an idle machine.
func New(c Canvas, floors board.Floors) *Machine {
	return &Machine{canvas: c, floors: floors, tool: ToolSelect, state: State{Mode: Idle}}
}

// State returns the current gesture state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Tool returns the active tool.
func (m *Machine) Tool() Tool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tool
}

// SetTool switches the pointer tool.
func (m *Machine) SetTool(t Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t != ToolHand {
		t = ToolSelect
	}
	m.tool = t
}

// Down starts a gesture. It is ignored while another gesture is active.
func (m *Machine) Down(e PointerEvent) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Mode != Idle {
		return Outcome{State: m.state, Ignored: true}
	}

	p := e.point()
	snap := m.canvas.Snapshot()
	tr := m.canvas.Transform()
	target := HitTest(snap, tr, m.canvas.Viewport(), p)

	if m.tool == ToolHand || e.Button == ButtonMiddle || e.PanKey {
		m.begin(Panning, p, tr)
		return Outcome{State: m.state, Target: target}
	}

	switch target.Kind {
	case TargetBackground:
		if snap.SelectedID != "" {
			m.canvas.SelectNode("")
		}
		m.begin(Panning, p, tr)

	case TargetHandle:
		n, ok := snap.Node(target.NodeID)
		if !ok {
			break
		}
		m.begin(Resizing, p, tr)
		m.state.NodeID = n.ID
		m.state.Handle = target.Handle
		m.state.Origin = n.Rect()

	case TargetHeader, TargetFrame:
		if snap.SelectedID != target.NodeID {
			m.canvas.SelectNode(target.NodeID)
			break
		}
		if target.Kind == TargetHeader {
			n, ok := snap.Node(target.NodeID)
			if !ok {
				break
			}
			m.begin(DraggingNode, p, tr)
			m.state.NodeID = n.ID
			m.state.Origin = n.Rect()
		}
		// A press on the body of the selected node belongs to its embedded
		// document (element picking); the canvas stays idle.
	}
	return Outcome{State: m.state, Target: target}
}

// Move advances the active gesture.
func (m *Machine) Move(e PointerEvent) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &m.state
	if st.Mode == Idle {
		return Outcome{State: *st, Ignored: true}
	}
	dx, dy := e.X-st.Start.X, e.Y-st.Start.Y
	scale := st.StartTransform.Scale
	if scale == 0 {
		scale = 1
	}

	switch st.Mode {
	case Panning:
		m.canvas.SetTransform(st.StartTransform.PanBy(dx, dy))
		st.Moved = true

	case DraggingNode:
		// The node may have been deleted mid-gesture; skip the tick.
		if _, ok := m.canvas.Snapshot().Node(st.NodeID); !ok {
			break
		}
		r := board.Move(st.Origin, dx/scale, dy/scale)
		if _, ok := m.canvas.UpdateNode(st.NodeID, board.Geometry(r)); ok {
			st.Moved = true
		}

	case Resizing:
		n, ok := m.canvas.Snapshot().Node(st.NodeID)
		if !ok {
			break
		}
		r := board.Resize(st.Origin, st.Handle, dx/scale, dy/scale, m.floors.For(n.Type))
		if _, ok := m.canvas.UpdateNode(st.NodeID, board.Geometry(r)); ok {
			st.Moved = true
		}
	}
	return Outcome{State: *st}
}

// Up ends any active gesture and returns to Idle.
func (m *Machine) Up(_ PointerEvent) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state
	m.state = State{Mode: Idle}
	if prev.Moved && (prev.Mode == DraggingNode || prev.Mode == Resizing) {
		if n, ok := m.canvas.Snapshot().Node(prev.NodeID); ok {
			m.canvas.CommitNode(n)
		}
	}
	return Outcome{State: m.state, Ignored: prev.Mode == Idle}
}

// Cancel abandons the active gesture without committing it.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{Mode: Idle}
}

func (m *Machine) begin(mode Mode, p models.Point, tr geom.Transform) {
	m.state = State{Mode: mode, Start: p, StartTransform: tr}
}

// TargetKind classifies what lies under the pointer.
type TargetKind string

const (
	TargetBackground TargetKind = "background"
	TargetFrame      TargetKind = "frame"
	TargetHeader     TargetKind = "header"
	TargetHandle     TargetKind = "handle"
)

// Target is the hit-test result.
type Target struct {
	Kind   TargetKind   `json:"kind"`
	NodeID string       `json:"nodeId,omitempty"`
	Handle board.Handle `json:"handle,omitempty"`
}

// HitTest finds what is under the screen point p. The selected node's
// handles are tested first because they overhang its frame; then nodes are
// tested top-most first.
func HitTest(snap *board.Snapshot, tr geom.Transform, viewport models.Size, p models.Point) Target {
	if sel, ok := snap.Selected(); ok {
		l := toolbar.Compute(sel, tr, viewport)
		if h, ok := l.HitHandle(p); ok {
			return Target{Kind: TargetHandle, NodeID: sel.ID, Handle: h}
		}
	}
	for i := len(snap.Nodes) - 1; i >= 0; i-- {
		n := snap.Nodes[i]
		l := toolbar.Compute(n, tr, viewport)
		switch {
		case l.InFrame(p):
			return Target{Kind: TargetFrame, NodeID: n.ID}
		case l.InHeader(p):
			return Target{Kind: TargetHeader, NodeID: n.ID}
		}
	}
	return Target{Kind: TargetBackground}
}
