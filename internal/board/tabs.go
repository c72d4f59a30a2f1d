package board

import (
	"slices"

	"github.com/google/uuid"

	"github.com/starford/vellum/internal/models"
)

// OpenTab opens (or re-activates) the preview tab for a node.
func (s *Store) OpenTab(nodeID string) (models.PreviewTab, bool) {
	var tab models.PreviewTab
	ok := s.mutate(func(next *Snapshot) bool {
		i := next.index(nodeID)
		if i < 0 {
			return false
		}
		if j := slices.IndexFunc(next.Tabs, func(t models.PreviewTab) bool { return t.NodeID == nodeID }); j >= 0 {
			tab = next.Tabs[j]
		} else {
			tab = models.PreviewTab{ID: uuid.NewString(), NodeID: nodeID, Title: next.Nodes[i].Title}
			next.Tabs = append(next.Tabs, tab)
		}
		next.ActiveTab = tab.ID
		return true
	})
	return tab, ok
}

// CloseTab closes the preview tab for a node.
func (s *Store) CloseTab(nodeID string) bool {
	return s.mutate(func(next *Snapshot) bool {
		return closeTab(next, nodeID)
	})
}

// ActivateTab marks a tab active; "" returns to the canvas.
func (s *Store) ActivateTab(tabID string) bool {
	return s.mutate(func(next *Snapshot) bool {
		if tabID == next.ActiveTab {
			return false
		}
		if tabID != "" && !slices.ContainsFunc(next.Tabs, func(t models.PreviewTab) bool { return t.ID == tabID }) {
			return false
		}
		next.ActiveTab = tabID
		return true
	})
}

func closeTab(next *Snapshot, nodeID string) bool {
	j := slices.IndexFunc(next.Tabs, func(t models.PreviewTab) bool { return t.NodeID == nodeID })
	if j < 0 {
		return false
	}
	closed := next.Tabs[j]
	next.Tabs = slices.Delete(next.Tabs, j, j+1)
	if next.ActiveTab == closed.ID {
		next.ActiveTab = ""
		if len(next.Tabs) > 0 {
			next.ActiveTab = next.Tabs[len(next.Tabs)-1].ID
		}
	}
	return true
}
