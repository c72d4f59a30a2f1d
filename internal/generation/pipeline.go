package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/board"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/parser"
)

// Canvas is the board surface the pipeline writes into.
type Canvas interface {
	Snapshot() *board.Snapshot
	AddNode(n models.Node) (models.Node, error)
	UpdateNode(id string, p board.Patch) (models.Node, bool)
	DeleteNode(id string) bool
	FocusNode(id string) bool
	ClearElement() bool
	// BeginStream and EndStream bracket the chunks applied to a node.
	// final is false when the stream failed or was cancelled.
	BeginStream(id string)
	EndStream(id string, final bool)
	Notify(level, msg string)
}

// DefaultSystemPrompt instructs the model to answer with a bare document.
const DefaultSystemPrompt = `You are a senior web designer. Reply with one complete, self-contained HTML document ` +
	`(inline CSS, no external scripts) that starts with <!DOCTYPE html> and ends with </html>. ` +
	`Include a concise <title>. Do not wrap the document in Markdown and do not add commentary.`

// Config tunes node placement and prompts.
type Config struct {
	System    string
	MaxTokens int
	// NodeSize is the size of freshly generated components.
	NodeSize models.Size
	// Gap separates a new node from existing ones.
	Gap float64
	// VariantGap separates a variant from its source.
	VariantGap float64
	// DigestLimit truncates element digests in prompts.
	DigestLimit int
}

// DefaultConfig returns desktop-sized components placed 80 units apart.
func DefaultConfig() Config {
	return Config{
		System:      DefaultSystemPrompt,
		MaxTokens:   8000,
		NodeSize:    models.Size{Width: 1440, Height: 900},
		Gap:         80,
		VariantGap:  80,
		DigestLimit: 800,
	}
}

type mode int

const (
	modeCreate mode = iota
	modeVariant
	modeEdit
)

type job struct {
	seq    uint64
	cancel context.CancelFunc
}

// Pipeline runs generations against the canvas. At most one stream targets
// a node at a time; starting another cancels the first.
type Pipeline struct {
	cfg      Config
	canvas   Canvas
	streamer Streamer
	credits  Credits
	log      *slog.Logger

	mu   sync.Mutex
	seq  uint64
	jobs map[string]*job
	wg   sync.WaitGroup
	// settle is held while a job hands its last update to the canvas and
	// while a new job begins its stream, so an EndStream can never land
	// after the next job's BeginStream.
	settle sync.Mutex
}

// New creates a pipeline. Nil credits and logger use NopCredits and slog.Default.
func New(cfg Config, c Canvas, s Streamer, credits Credits, log *slog.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.System == "" {
		cfg.System = def.System
	}
	if cfg.NodeSize.Width <= 0 || cfg.NodeSize.Height <= 0 {
		cfg.NodeSize = def.NodeSize
	}
	if cfg.Gap <= 0 {
		cfg.Gap = def.Gap
	}
	if cfg.VariantGap <= 0 {
		cfg.VariantGap = def.VariantGap
	}
	if cfg.DigestLimit <= 0 {
		cfg.DigestLimit = def.DigestLimit
	}
	if credits == nil {
		credits = NopCredits{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cfg: cfg, canvas: c, streamer: s, credits: credits, log: log, jobs: make(map[string]*job)}
}

// Generate creates an empty component to the right of the existing nodes,
// focuses it and streams a new document into it.
func (p *Pipeline) Generate(ctx context.Context, prompt string) (models.Node, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return models.Node{}, fmt.Errorf("generation: empty prompt: %w", apperr.ErrInvalidInput)
	}
	pos := board.NextSlot(p.canvas.Snapshot().Nodes, p.cfg.Gap)
	n, err := p.canvas.AddNode(models.Node{
		Type:   models.NodeComponent,
		Title:  clip(prompt, 48),
		X:      pos.X,
		Y:      pos.Y,
		Width:  p.cfg.NodeSize.Width,
		Height: p.cfg.NodeSize.Height,
	})
	if err != nil {
		return models.Node{}, fmt.Errorf("generation: add node: %w", err)
	}
	p.canvas.FocusNode(n.ID)
	p.start(ctx, n.ID, p.request(prompt), modeCreate)
	return n, nil
}

// Variant places a new component beside source and streams a modified copy
// of it. The variant is removed if its generation does not complete.
func (p *Pipeline) Variant(ctx context.Context, sourceID, prompt string) (models.Node, error) {
	src, err := p.source(sourceID)
	if err != nil {
		return models.Node{}, err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return models.Node{}, fmt.Errorf("generation: empty prompt: %w", apperr.ErrInvalidInput)
	}
	pos := board.Beside(src, p.cfg.VariantGap)
	n, err := p.canvas.AddNode(models.Node{
		Type:   models.NodeComponent,
		Title:  src.Title + " (variant)",
		X:      pos.X,
		Y:      pos.Y,
		Width:  src.Width,
		Height: src.Height,
	})
	if err != nil {
		return models.Node{}, fmt.Errorf("generation: add variant: %w", err)
	}
	p.canvas.FocusNode(n.ID)
	p.start(ctx, n.ID, p.request(variantPrompt(src.HTML, prompt)), modeVariant)
	return n, nil
}

// Regenerate rewrites an existing component according to instruction.
func (p *Pipeline) Regenerate(ctx context.Context, nodeID, instruction string) error {
	src, err := p.source(nodeID)
	if err != nil {
		return err
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return fmt.Errorf("generation: empty instruction: %w", apperr.ErrInvalidInput)
	}
	p.start(ctx, nodeID, p.request(editPrompt(src.HTML, "", instruction)), modeEdit)
	return nil
}

// EditElement regenerates a component with an instruction scoped to one of
// its elements. The selected element is cleared once the edit is dispatched.
func (p *Pipeline) EditElement(ctx context.Context, el models.SelectedElement, instruction string) error {
	src, err := p.source(el.NodeID)
	if err != nil {
		return err
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return fmt.Errorf("generation: empty instruction: %w", apperr.ErrInvalidInput)
	}
	digest := fmt.Sprintf("Element <%s id=%q class=%q>:\n%s", el.TagName, el.ElementID, el.ClassName,
		parser.Digest(el.OuterHTML, p.cfg.DigestLimit))
	p.start(ctx, src.ID, p.request(editPrompt(src.HTML, digest, instruction)), modeEdit)
	p.canvas.ClearElement()
	return nil
}

// Cancel stops the stream targeting nodeID. It reports whether one was running.
func (p *Pipeline) Cancel(nodeID string) bool {
	p.mu.Lock()
	j, ok := p.jobs[nodeID]
	p.mu.Unlock()
	if ok {
		j.cancel()
	}
	return ok
}

// Active lists nodes with a stream in flight.
func (p *Pipeline) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.jobs))
	for id := range p.jobs {
		out = append(out, id)
	}
	return out
}

// Wait blocks until every running stream has settled.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Close cancels all streams and waits for them.
func (p *Pipeline) Close() {
	p.mu.Lock()
	for _, j := range p.jobs {
		j.cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pipeline) source(id string) (models.Node, error) {
	n, ok := p.canvas.Snapshot().Node(id)
	if !ok {
		return models.Node{}, fmt.Errorf("generation: node %s: %w", id, apperr.ErrNotFound)
	}
	if n.Type != models.NodeComponent || n.HTML == "" {
		return models.Node{}, fmt.Errorf("generation: node %s: %w", id, apperr.ErrNotRenderable)
	}
	return n, nil
}

func (p *Pipeline) request(prompt string) Request {
	return Request{System: p.cfg.System, Prompt: prompt, MaxTokens: p.cfg.MaxTokens}
}

// start registers a job for nodeID, superseding any previous one, and runs
// the stream in the background. The stream outlives the caller's context
// but not the pipeline.
func (p *Pipeline) start(ctx context.Context, nodeID string, req Request, m mode) {
	jctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.settle.Lock()
	defer p.settle.Unlock()
	p.mu.Lock()
	if prev, ok := p.jobs[nodeID]; ok {
		prev.cancel()
	}
	p.seq++
	j := &job{seq: p.seq, cancel: cancel}
	p.jobs[nodeID] = j
	p.mu.Unlock()

	p.canvas.BeginStream(nodeID)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		p.run(jctx, j, nodeID, req, m)
	}()
}

func (p *Pipeline) current(nodeID string, j *job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobs[nodeID] == j
}

// finish removes j if it is still the node's job and reports whether it was.
func (p *Pipeline) finish(nodeID string, j *job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.jobs[nodeID] != j {
		return false
	}
	delete(p.jobs, nodeID)
	return true
}

func (p *Pipeline) run(ctx context.Context, j *job, nodeID string, req Request, m mode) {
	log := p.log.With(slog.String("node", nodeID))
	var raw strings.Builder
	res, err := p.streamer.Stream(ctx, req, func(chunk string) error {
		if !p.current(nodeID, j) {
			return apperr.ErrCanceled
		}
		raw.WriteString(chunk)
		if _, ok := p.canvas.UpdateNode(nodeID, board.HTML(parser.StripFences(raw.String()))); !ok {
			return fmt.Errorf("generation: node %s: %w", nodeID, apperr.ErrNotFound)
		}
		return nil
	})

	if err != nil {
		p.settle.Lock()
		if !p.finish(nodeID, j) {
			p.settle.Unlock()
			// Superseded: the newer job owns the node now.
			log.Debug("generation: stream superseded")
			return
		}
		p.canvas.EndStream(nodeID, false)
		p.settle.Unlock()
		canceled := ctx.Err() != nil || errors.Is(err, apperr.ErrCanceled)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			log.Info("generation: target node removed mid-stream")
		case canceled:
			log.Info("generation: stream canceled")
		default:
			log.Error("generation: stream failed", slog.Any("error", err))
			p.canvas.Notify("error", "Generation failed: "+err.Error())
		}
		if m == modeVariant {
			p.canvas.DeleteNode(nodeID)
		}
		return
	}

	text := res.Text
	if text == "" {
		text = raw.String()
	}
	html := parser.StripFences(text)
	patch := board.HTML(html)
	if title := parser.Title(html); title != "" && m != modeEdit {
		patch.Title = &title
	}
	p.settle.Lock()
	if !p.finish(nodeID, j) {
		p.settle.Unlock()
		log.Debug("generation: stream superseded")
		return
	}
	_, ok := p.canvas.UpdateNode(nodeID, patch)
	if ok {
		p.canvas.EndStream(nodeID, true)
	}
	p.settle.Unlock()
	if !ok {
		log.Info("generation: target node removed before completion")
		return
	}
	if err := p.credits.Charge(ctx, res.Usage); err != nil {
		log.Warn("generation: charge credits", slog.Any("error", err))
	}
	log.Info("generation: completed",
		slog.Int("bytes", len(html)), slog.Int("tokens", res.Usage.TotalTokens))
}

func variantPrompt(html, prompt string) string {
	return "Here is an existing page:\n\n" + html +
		"\n\nCreate a variant of this page with the following change, keeping everything else intact:\n" + prompt
}

func editPrompt(html, digest, instruction string) string {
	var sb strings.Builder
	sb.WriteString("Here is the current page:\n\n")
	sb.WriteString(html)
	if digest != "" {
		sb.WriteString("\n\nThe change applies only to this element; leave the rest of the page unchanged.\n")
		sb.WriteString(digest)
	}
	sb.WriteString("\n\nApply this change and return the full updated document:\n")
	sb.WriteString(instruction)
	return sb.String()
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n])) + "…"
}
