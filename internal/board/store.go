// Package board holds the canonical node list and selection state.
//
// Concurrency model: readers load an immutable *Snapshot through an atomic
// pointer and never observe a partially applied mutation. Writers serialize
// on a mutex, copy the current snapshot, mutate the copy, and publish it.
package board

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/models"
)

// Snapshot is an immutable view of the board. Callers must not modify it.
type Snapshot struct {
	Nodes      []models.Node           `json:"nodes"`
	SelectedID string                  `json:"selectedId,omitempty"`
	Element    *models.SelectedElement `json:"selectedElement,omitempty"`
	Tabs       []models.PreviewTab     `json:"tabs"`
	ActiveTab  string                  `json:"activeTab,omitempty"`
	Focus      *models.FocusTrigger    `json:"focus,omitempty"`
}

// Node looks up a node by id.
func (s *Snapshot) Node(id string) (models.Node, bool) {
	if i := s.index(id); i >= 0 {
		return s.Nodes[i], true
	}
	return models.Node{}, false
}

// Selected returns the selected node, if any.
func (s *Snapshot) Selected() (models.Node, bool) {
	if s.SelectedID == "" {
		return models.Node{}, false
	}
	return s.Node(s.SelectedID)
}

func (s *Snapshot) index(id string) int {
	return slices.IndexFunc(s.Nodes, func(n models.Node) bool { return n.ID == id })
}

func (s *Snapshot) clone() *Snapshot {
	c := *s
	c.Nodes = slices.Clone(s.Nodes)
	c.Tabs = slices.Clone(s.Tabs)
	if s.Element != nil {
		el := *s.Element
		c.Element = &el
	}
	if s.Focus != nil {
		f := *s.Focus
		c.Focus = &f
	}
	return &c
}

// Store owns the board snapshot.
type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[Snapshot]
	now func() time.Time
}

// NewStore creates a store seeded with nodes in paint order.
func NewStore(nodes ...models.Node) *Store {
	s := &Store{now: time.Now}
	s.cur.Store(&Snapshot{Nodes: slices.Clone(nodes), Tabs: []models.PreviewTab{}})
	return s
}

// Snapshot returns the current immutable board state.
func (s *Store) Snapshot() *Snapshot {
	return s.cur.Load()
}

// Replace swaps in a whole snapshot, e.g. one loaded from disk.
func (s *Store) Replace(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := snap.clone()
	if next.Tabs == nil {
		next.Tabs = []models.PreviewTab{}
	}
	s.cur.Store(next)
}

// mutate applies fn to a copy of the current snapshot and publishes the copy
// when fn reports a change.
func (s *Store) mutate(fn func(next *Snapshot) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur.Load().clone()
	if !fn(next) {
		return false
	}
	s.cur.Store(next)
	return true
}

// Add appends a node; later nodes paint on top. An empty ID is filled in.
func (s *Store) Add(n models.Node) (models.Node, error) {
	if !n.Type.Valid() {
		return models.Node{}, fmt.Errorf("board: node type %q: %w", n.Type, apperr.ErrInvalidInput)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	var err error
	s.mutate(func(next *Snapshot) bool {
		if next.index(n.ID) >= 0 {
			err = fmt.Errorf("board: node %s: %w", n.ID, apperr.ErrAlreadyExists)
			return false
		}
		n.Revision = 1
		n.UpdatedAt = s.now()
		next.Nodes = append(next.Nodes, n)
		return true
	})
	if err != nil {
		return models.Node{}, err
	}
	return n, nil
}

// Update shallow-merges p into the node with the given id. It reports false
// when the node does not exist.
func (s *Store) Update(id string, p Patch) (models.Node, bool) {
	var out models.Node
	ok := s.mutate(func(next *Snapshot) bool {
		i := next.index(id)
		if i < 0 {
			return false
		}
		n := next.Nodes[i]
		p.apply(&n)
		n.Revision++
		n.UpdatedAt = s.now()
		next.Nodes[i] = n
		if p.Title != nil {
			for j := range next.Tabs {
				if next.Tabs[j].NodeID == id {
					next.Tabs[j].Title = n.Title
				}
			}
		}
		out = n
		return true
	})
	return out, ok
}

// Delete removes a node. Selection, the selected element, preview tabs and
// focus triggers pointing at it are cleared.
func (s *Store) Delete(id string) (models.Node, bool) {
	var out models.Node
	ok := s.mutate(func(next *Snapshot) bool {
		i := next.index(id)
		if i < 0 {
			return false
		}
		out = next.Nodes[i]
		next.Nodes = slices.Delete(next.Nodes, i, i+1)
		if next.SelectedID == id {
			next.SelectedID = ""
		}
		if next.Element != nil && next.Element.NodeID == id {
			next.Element = nil
		}
		if next.Focus != nil && next.Focus.NodeID == id {
			next.Focus = nil
		}
		closeTab(next, id)
		return true
	})
	return out, ok
}

// Select makes id the single selected node; "" deselects. Selecting an
// unknown id is a no-op. The selected element is dropped when its node
// loses selection. It reports whether the selection changed.
func (s *Store) Select(id string) bool {
	return s.mutate(func(next *Snapshot) bool {
		if id == next.SelectedID {
			return false
		}
		if id != "" && next.index(id) < 0 {
			return false
		}
		next.SelectedID = id
		if next.Element != nil && next.Element.NodeID != id {
			next.Element = nil
		}
		return true
	})
}

// SelectElement records a picked element and selects its node. It reports
// false when the owning node is gone or is not a component.
func (s *Store) SelectElement(el models.SelectedElement) bool {
	return s.mutate(func(next *Snapshot) bool {
		i := next.index(el.NodeID)
		if i < 0 || next.Nodes[i].Type != models.NodeComponent {
			return false
		}
		next.SelectedID = el.NodeID
		next.Element = &el
		return true
	})
}

// ClearElement drops the selected element, if any.
func (s *Store) ClearElement() bool {
	return s.mutate(func(next *Snapshot) bool {
		if next.Element == nil {
			return false
		}
		next.Element = nil
		return true
	})
}

// Focus records a focus trigger for the node.
func (s *Store) Focus(id string) (models.FocusTrigger, bool) {
	var ft models.FocusTrigger
	ok := s.mutate(func(next *Snapshot) bool {
		if next.index(id) < 0 {
			return false
		}
		ft = models.FocusTrigger{NodeID: id, At: s.now()}
		next.Focus = &ft
		return true
	})
	return ft, ok
}
