package canvas

import (
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/sse"
)

// Observer receives board changes after they are applied.
type Observer interface {
	OnAddNode(n models.Node)
	OnUpdateNode(n models.Node)
	OnDeleteNode(n models.Node)
	OnSelectNode(id string)
	OnSelectElement(el *models.SelectedElement)
}

type multiObserver []Observer

func (m multiObserver) OnAddNode(n models.Node) {
	for _, o := range m {
		o.OnAddNode(n)
	}
}

func (m multiObserver) OnUpdateNode(n models.Node) {
	for _, o := range m {
		o.OnUpdateNode(n)
	}
}

func (m multiObserver) OnDeleteNode(n models.Node) {
	for _, o := range m {
		o.OnDeleteNode(n)
	}
}

func (m multiObserver) OnSelectNode(id string) {
	for _, o := range m {
		o.OnSelectNode(id)
	}
}

func (m multiObserver) OnSelectElement(el *models.SelectedElement) {
	for _, o := range m {
		o.OnSelectElement(el)
	}
}

// brokerObserver pushes board changes to canvas hosts.
type brokerObserver struct {
	events Events
}

type selectionPayload struct {
	NodeID *string `json:"nodeId"`
}

type nodeRef struct {
	ID string `json:"id"`
}

func (b brokerObserver) OnAddNode(n models.Node) {
	b.events.PublishNodeEvent(sse.EventNodeAdded, n)
}

func (b brokerObserver) OnUpdateNode(n models.Node) {
	b.events.PublishNodeEvent(sse.EventNodeUpdated, n)
}

func (b brokerObserver) OnDeleteNode(n models.Node) {
	b.events.PublishNodeEvent(sse.EventNodeDeleted, nodeRef{ID: n.ID})
}

func (b brokerObserver) OnSelectNode(id string) {
	p := selectionPayload{}
	if id != "" {
		p.NodeID = &id
	}
	b.events.Publish(sse.Event{Type: sse.EventSelection, Data: p})
}

func (b brokerObserver) OnSelectElement(el *models.SelectedElement) {
	b.events.Publish(sse.Event{Type: sse.EventElementSelected, Data: el})
}
