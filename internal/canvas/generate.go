package canvas

import (
	"context"
	"fmt"
	"slices"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/sse"
)

type generatingPayload struct {
	Generating bool     `json:"generating"`
	Nodes      []string `json:"nodes"`
}

// BeginStream marks a node as receiving generated HTML.
func (s *Service) BeginStream(id string) {
	s.cache.BeginStream(id)
	s.publishGenerating()
}

// EndStream settles a node's stream. A final stream hands the finished
// document to the render cache.
func (s *Service) EndStream(id string, final bool) {
	if n, ok := s.store.Snapshot().Node(id); ok && final {
		s.cache.MarkFinal(n)
	} else {
		s.cache.AbortStream(id)
	}
	s.publishGenerating()
	s.requestSave()
}

// Notify shows a toast on every host.
func (s *Service) Notify(level, msg string) {
	s.events.Toast(level, msg)
}

// Generating lists nodes with a stream in flight.
func (s *Service) Generating() []string {
	ids := s.pipeline.Active()
	slices.Sort(ids)
	return ids
}

func (s *Service) publishGenerating() {
	ids := s.Generating()
	s.events.Publish(sse.Event{Type: sse.EventGenerating, Data: generatingPayload{Generating: len(ids) > 0, Nodes: ids}})
}

// Generate creates a component and streams a new page into it.
func (s *Service) Generate(ctx context.Context, prompt string) (models.Node, error) {
	return s.pipeline.Generate(ctx, prompt)
}

// StartVariant asks the hosts to collect a variant prompt for a node.
func (s *Service) StartVariant(nodeID string) error {
	n, ok := s.store.Snapshot().Node(nodeID)
	if !ok {
		return fmt.Errorf("canvas: node %s: %w", nodeID, apperr.ErrNotFound)
	}
	if n.Type != models.NodeComponent || n.HTML == "" {
		return fmt.Errorf("canvas: node %s: %w", nodeID, apperr.ErrNotRenderable)
	}
	s.events.Publish(sse.Event{Type: sse.EventVariant, Data: nodeRef{ID: nodeID}})
	return nil
}

// CreateVariant places a variant of a node beside it and streams it.
func (s *Service) CreateVariant(ctx context.Context, nodeID, prompt string) (models.Node, error) {
	return s.pipeline.Variant(ctx, nodeID, prompt)
}

// Regenerate rewrites a component according to instruction.
func (s *Service) Regenerate(ctx context.Context, nodeID, instruction string) error {
	return s.pipeline.Regenerate(ctx, nodeID, instruction)
}

// EditElement regenerates the selected element's node with an instruction
// scoped to that element.
func (s *Service) EditElement(ctx context.Context, instruction string) error {
	el := s.store.Snapshot().Element
	if el == nil {
		return fmt.Errorf("canvas: no element selected: %w", apperr.ErrInvalidInput)
	}
	return s.pipeline.EditElement(ctx, *el, instruction)
}

// CancelGeneration stops the stream targeting a node.
func (s *Service) CancelGeneration(nodeID string) error {
	if !s.pipeline.Cancel(nodeID) {
		return fmt.Errorf("canvas: no generation for %s: %w", nodeID, apperr.ErrNotFound)
	}
	return nil
}

// WaitGenerations blocks until running streams settle.
func (s *Service) WaitGenerations() {
	s.pipeline.Wait()
}
