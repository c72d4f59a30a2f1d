package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/vellum/internal/board"
	"github.com/starford/vellum/internal/canvas"
	"github.com/starford/vellum/internal/export"
	"github.com/starford/vellum/internal/generation"
	"github.com/starford/vellum/internal/geom"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/render"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Generation providers.
const (
	ProviderDisabled = "disabled"
	ProviderOpenAI   = "openai"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Workspace  WorkspaceConfig   `yaml:"workspace"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Canvas     CanvasConfig      `yaml:"canvas"`
	Generation GenerationConfig  `yaml:"generation"`
	Export     ExportConfig      `yaml:"export"`
	Browser    BrowserConfig     `yaml:"browser"`
	Inbox      InboxConfig       `yaml:"inbox"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Workspace, &c.SQLite, &c.Auth, &c.Canvas, &c.Generation, &c.Export, &c.Browser, &c.Inbox,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// WorkspaceConfig holds the directory the board and its assets live in.
type WorkspaceConfig struct {
	Path string `yaml:"path"`
	// AutosaveInterval bounds how long edits stay unsaved.
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.AutosaveInterval, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
	// IndexInterval is how often pending canvas changes are written to the catalog.
	IndexInterval time.Duration `yaml:"index_interval"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.IndexInterval, validation.Required, validation.Min(10*time.Millisecond)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SizeConfig is a width and height in canvas units.
type SizeConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

func (s SizeConfig) size() models.Size {
	return models.Size{Width: s.Width, Height: s.Height}
}

// Validate validates the size.
func (s SizeConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Width, validation.Required, validation.Min(1.0)),
		validation.Field(&s.Height, validation.Required, validation.Min(1.0)),
	)
}

// CanvasConfig tunes viewport, gestures and render readiness.
type CanvasConfig struct {
	MinScale         float64 `yaml:"min_scale"`
	MaxScale         float64 `yaml:"max_scale"`
	PinchSensitivity float64 `yaml:"pinch_sensitivity"`
	WheelSensitivity float64 `yaml:"wheel_sensitivity"`
	PinchThreshold   float64 `yaml:"pinch_threshold"`
	KeyZoomStep      float64 `yaml:"key_zoom_step"`
	FitPadding       float64 `yaml:"fit_padding"`
	FitMaxScale      float64 `yaml:"fit_max_scale"`
	// MinLength is the shortest HTML considered structurally complete.
	MinLength int        `yaml:"min_length"`
	Floors    FloorsConf `yaml:"floors"`
	NoteSize  SizeConfig `yaml:"note_size"`
	ImageMax  float64    `yaml:"image_max"`
}

// FloorsConf holds the minimum node sizes per type.
type FloorsConf struct {
	Component SizeConfig `yaml:"component"`
	Image     SizeConfig `yaml:"image"`
	Note      SizeConfig `yaml:"note"`
}

// Validate validates the canvas configuration.
func (c *CanvasConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MinScale, validation.Required, validation.Min(0.01)),
		validation.Field(&c.MaxScale, validation.Required, validation.Min(c.MinScale)),
		validation.Field(&c.PinchSensitivity, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&c.WheelSensitivity, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&c.PinchThreshold, validation.Min(0.0)),
		validation.Field(&c.KeyZoomStep, validation.Required, validation.Min(1.0).Exclusive()),
		validation.Field(&c.FitPadding, validation.Min(0.0)),
		validation.Field(&c.FitMaxScale, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&c.MinLength, validation.Min(0)),
		validation.Field(&c.NoteSize),
		validation.Field(&c.ImageMax, validation.Required, validation.Min(1.0)),
	); err != nil {
		return fmt.Errorf("canvas: %w", err)
	}
	for _, f := range []SizeConfig{c.Floors.Component, c.Floors.Image, c.Floors.Note} {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("canvas: floors: %w", err)
		}
	}
	return nil
}

// service converts the section into the canvas engine's tuning.
func (c *CanvasConfig) service(autosave time.Duration) canvas.Config {
	limits := geom.Limits{Min: c.MinScale, Max: c.MaxScale}
	cfg := canvas.DefaultConfig()
	cfg.Limits = limits
	cfg.Wheel = geom.WheelConfig{
		PinchSensitivity: c.PinchSensitivity,
		WheelSensitivity: c.WheelSensitivity,
		PinchThreshold:   c.PinchThreshold,
		KeyZoomStep:      c.KeyZoomStep,
		Limits:           limits,
	}
	cfg.Fit = geom.FitConfig{Padding: c.FitPadding, MaxScale: c.FitMaxScale, Limits: limits}
	cfg.Floors = board.Floors{
		Component: c.Floors.Component.size(),
		Image:     c.Floors.Image.size(),
		Note:      c.Floors.Note.size(),
	}
	cfg.MinLength = c.MinLength
	cfg.NoteSize = c.NoteSize.size()
	cfg.ImageMax = c.ImageMax
	cfg.Autosave = autosave
	return cfg
}

// GenerationConfig selects and configures the model provider.
type GenerationConfig struct {
	Provider  string        `yaml:"provider"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
	// SystemPrompt overrides the built-in instructions when set.
	SystemPrompt string `yaml:"system_prompt"`
}

// Validate validates the generation configuration.
func (c *GenerationConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = ProviderDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(ProviderDisabled, ProviderOpenAI)),
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.MaxTokens, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if c.Provider == ProviderOpenAI && c.APIKey == "" {
		return fmt.Errorf("generation: provider is %q but api_key is empty", ProviderOpenAI)
	}
	return nil
}

// streamer builds the configured Streamer.
func (c *GenerationConfig) streamer() generation.Streamer {
	if c.Provider != ProviderOpenAI {
		return generation.Disabled{}
	}
	return generation.NewOpenAI(generation.OpenAIConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Timeout: c.Timeout,
	})
}

func (c *GenerationConfig) pipeline() generation.Config {
	cfg := generation.DefaultConfig()
	if c.SystemPrompt != "" {
		cfg.System = c.SystemPrompt
	}
	if c.MaxTokens > 0 {
		cfg.MaxTokens = c.MaxTokens
	}
	return cfg
}

// ExportConfig sizes captures and thumbnails.
type ExportConfig struct {
	CaptureWidth  int     `yaml:"capture_width"`
	CaptureHeight int     `yaml:"capture_height"`
	ThumbWidth    int     `yaml:"thumb_width"`
	Density       float64 `yaml:"density"`
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CaptureWidth, validation.Required, validation.Min(1)),
		validation.Field(&c.CaptureHeight, validation.Required, validation.Min(1)),
		validation.Field(&c.ThumbWidth, validation.Required, validation.Min(1), validation.Max(c.CaptureWidth)),
		validation.Field(&c.Density, validation.Required, validation.Min(0.5), validation.Max(4.0)),
	)
}

func (c *ExportConfig) exporter() export.Config {
	return export.Config{
		CaptureWidth:  c.CaptureWidth,
		CaptureHeight: c.CaptureHeight,
		ThumbWidth:    c.ThumbWidth,
		Density:       c.Density,
	}
}

// BrowserConfig enables the headless Chrome rasterizer.
type BrowserConfig struct {
	Enabled bool `yaml:"enabled"`
	// RemoteURL is the DevTools WebSocket URL of an external Chrome; empty
	// launches a local one.
	RemoteURL string `yaml:"remote_url"`
}

// Validate validates the browser configuration.
func (c *BrowserConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RemoteURL, is.URL),
	)
}

// InboxConfig enables the image drop directory.
type InboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	wheel := geom.DefaultWheelConfig()
	floors := board.DefaultFloors()
	exp := export.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Workspace: WorkspaceConfig{
			Path:             "./workspace",
			AutosaveInterval: 5 * time.Second,
		},
		SQLite: SQLiteConfig{
			Path:          "./vellum.db",
			IndexInterval: 2 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Canvas: CanvasConfig{
			MinScale:         geom.DefaultMinScale,
			MaxScale:         geom.DefaultMaxScale,
			PinchSensitivity: wheel.PinchSensitivity,
			WheelSensitivity: wheel.WheelSensitivity,
			PinchThreshold:   wheel.PinchThreshold,
			KeyZoomStep:      wheel.KeyZoomStep,
			FitPadding:       40,
			FitMaxScale:      geom.DefaultFitMaxScale,
			MinLength:        render.DefaultMinLength,
			Floors: FloorsConf{
				Component: SizeConfig{Width: floors.Component.Width, Height: floors.Component.Height},
				Image:     SizeConfig{Width: floors.Image.Width, Height: floors.Image.Height},
				Note:      SizeConfig{Width: floors.Note.Width, Height: floors.Note.Height},
			},
			NoteSize: SizeConfig{Width: 320, Height: 240},
			ImageMax: 640,
		},
		Generation: GenerationConfig{
			Provider:  ProviderDisabled,
			MaxTokens: 8000,
			Timeout:   5 * time.Minute,
		},
		Export: ExportConfig{
			CaptureWidth:  exp.CaptureWidth,
			CaptureHeight: exp.CaptureHeight,
			ThumbWidth:    exp.ThumbWidth,
			Density:       exp.Density,
		},
		Inbox: InboxConfig{
			Path: "./inbox",
		},
	}
}
