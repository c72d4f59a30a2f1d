// Package canvas is the canvas engine service. It owns the board, the
// viewport transform and the pointer machine, and routes their changes to
// the render cache, the document bridge, the generation pipeline and the
// registered observers.
package canvas

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/vellum/internal/board"
	"github.com/starford/vellum/internal/bridge"
	"github.com/starford/vellum/internal/export"
	"github.com/starford/vellum/internal/generation"
	"github.com/starford/vellum/internal/geom"
	"github.com/starford/vellum/internal/interaction"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/render"
	"github.com/starford/vellum/internal/sse"
	"github.com/starford/vellum/internal/storage"
)

// Events is the push channel to canvas hosts. *sse.Broker implements it.
type Events interface {
	Publish(event sse.Event)
	PublishNodeEvent(kind string, data interface{})
	SendBridge(out bridge.Outbound)
	Toast(level, msg string)
}

// Config tunes the canvas.
type Config struct {
	// Viewport is the initial host viewport size until the host reports one.
	Viewport  models.Size
	Limits    geom.Limits
	Wheel     geom.WheelConfig
	Fit       geom.FitConfig
	Floors    board.Floors
	MinLength int
	NoteSize  models.Size
	// ImageMax bounds the longer side of a new image node.
	ImageMax float64
	Autosave time.Duration
}

// DefaultConfig returns the stock canvas tuning.
func DefaultConfig() Config {
	return Config{
		Viewport:  models.Size{Width: 1280, Height: 800},
		Limits:    geom.DefaultLimits(),
		Wheel:     geom.DefaultWheelConfig(),
		Fit:       geom.FitConfig{Padding: 40, MaxScale: geom.DefaultFitMaxScale, Limits: geom.DefaultLimits()},
		Floors:    board.DefaultFloors(),
		MinLength: render.DefaultMinLength,
		NoteSize:  models.Size{Width: 320, Height: 240},
		ImageMax:  640,
		Autosave:  defaultAutosave,
	}
}

// Deps are the collaborators of a Service. Everything but Exporter and
// Streamer is optional.
type Deps struct {
	Workspace  *storage.Workspace
	Events     Events
	Observers  []Observer
	Streamer   generation.Streamer
	Credits    generation.Credits
	Generation generation.Config
	Exporter   *export.Exporter
	Logger     *slog.Logger
}

// Service is the canvas engine.
type Service struct {
	cfg       Config
	log       *slog.Logger
	store     *board.Store
	cache     *render.Cache
	host      *bridge.Host
	machine   *interaction.Machine
	pipeline  *generation.Pipeline
	exporter  *export.Exporter
	workspace *storage.Workspace
	events    Events
	observers multiObserver

	transform atomic.Pointer[geom.Transform]
	viewport  atomic.Pointer[models.Size]

	// saveMu serializes writes of the board file.
	saveMu sync.Mutex
	dirty  atomic.Bool
	saveCh chan struct{}
}

// New creates a canvas service with an empty board.
func New(cfg Config, deps Deps) *Service {
	def := DefaultConfig()
	if cfg.Viewport.Width <= 0 || cfg.Viewport.Height <= 0 {
		cfg.Viewport = def.Viewport
	}
	if cfg.Limits == (geom.Limits{}) {
		cfg.Limits = def.Limits
	}
	if cfg.Wheel == (geom.WheelConfig{}) {
		cfg.Wheel = def.Wheel
	}
	cfg.Wheel.Limits = cfg.Limits
	cfg.Fit.Limits = cfg.Limits
	if cfg.Floors == (board.Floors{}) {
		cfg.Floors = def.Floors
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = def.MinLength
	}
	if cfg.NoteSize.Width <= 0 || cfg.NoteSize.Height <= 0 {
		cfg.NoteSize = def.NoteSize
	}
	if cfg.ImageMax <= 0 {
		cfg.ImageMax = def.ImageMax
	}
	if cfg.Autosave <= 0 {
		cfg.Autosave = def.Autosave
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	events := deps.Events
	if events == nil {
		events = nopEvents{}
	}
	streamer := deps.Streamer
	if streamer == nil {
		streamer = generation.Disabled{}
	}

	s := &Service{
		cfg:       cfg,
		log:       log,
		store:     board.NewStore(),
		cache:     render.NewCache(cfg.MinLength),
		exporter:  deps.Exporter,
		workspace: deps.Workspace,
		events:    events,
		observers: append(multiObserver{brokerObserver{events}}, deps.Observers...),
		saveCh:    make(chan struct{}, 1),
	}
	tr := geom.Identity()
	s.transform.Store(&tr)
	vp := cfg.Viewport
	s.viewport.Store(&vp)

	s.host = bridge.NewHost(bridge.DefaultSchema, s.store, events, log)
	s.machine = interaction.New(s, cfg.Floors)
	s.pipeline = generation.New(deps.Generation, s, streamer, deps.Credits, log)
	return s
}

// Snapshot returns the current board.
func (s *Service) Snapshot() *board.Snapshot {
	return s.store.Snapshot()
}

// Host returns the document bridge host.
func (s *Service) Host() *bridge.Host {
	return s.host
}

// Machine returns the pointer state machine.
func (s *Service) Machine() *interaction.Machine {
	return s.machine
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Close cancels running generations and waits for them to settle.
func (s *Service) Close() {
	s.pipeline.Close()
}

type nopEvents struct{}

func (nopEvents) Publish(sse.Event)                    {}
func (nopEvents) PublishNodeEvent(string, interface{}) {}
func (nopEvents) SendBridge(bridge.Outbound)           {}
func (nopEvents) Toast(string, string)                 {}
