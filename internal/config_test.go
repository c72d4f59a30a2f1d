package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Generation.Provider != ProviderDisabled {
		t.Errorf("provider = %q, want disabled", cfg.Generation.Provider)
	}
}

func TestCanvasConfig_ScaleBounds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Canvas.MinScale = 2
	cfg.Canvas.MaxScale = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("max_scale below min_scale should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Canvas.KeyZoomStep = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("key_zoom_step of 1 should fail")
	}
}

func TestCanvasConfig_Floors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Canvas.Floors.Note.Width = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "floors") {
		t.Fatalf("zero floor should fail, got %v", err)
	}
}

func TestCanvasConfig_Service(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Canvas.MinScale = 0.25
	cfg.Canvas.MaxScale = 2
	cfg.Canvas.ImageMax = 500

	sc := cfg.Canvas.service(cfg.Workspace.AutosaveInterval)
	if sc.Limits.Min != 0.25 || sc.Limits.Max != 2 {
		t.Errorf("limits = %+v", sc.Limits)
	}
	if sc.Wheel.Limits != sc.Limits || sc.Fit.Limits != sc.Limits {
		t.Error("wheel and fit limits should follow the scale bounds")
	}
	if sc.ImageMax != 500 || sc.Autosave != cfg.Workspace.AutosaveInterval {
		t.Errorf("service config = %+v", sc)
	}
}

func TestGenerationConfig(t *testing.T) {
	cfg := GenerationConfig{Provider: "openai"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "api_key is empty") {
		t.Fatalf("openai without key should fail, got %v", err)
	}

	cfg = GenerationConfig{Provider: "anthropic", APIKey: "k"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown provider should fail")
	}

	cfg = GenerationConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty provider should default to disabled: %v", err)
	}
	if cfg.Provider != ProviderDisabled {
		t.Errorf("provider = %q", cfg.Provider)
	}

	cfg = GenerationConfig{Provider: "openai", APIKey: "k", BaseURL: "not a url"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("bad base_url should fail")
	}
}

func TestGenerationConfig_Pipeline(t *testing.T) {
	cfg := GenerationConfig{MaxTokens: 1234, SystemPrompt: "be brief"}
	p := cfg.pipeline()
	if p.MaxTokens != 1234 || p.System != "be brief" {
		t.Errorf("pipeline = %+v", p)
	}
	if p.Gap <= 0 || p.NodeSize.Width <= 0 {
		t.Error("placement defaults should be kept")
	}
}

func TestExportConfig_ThumbWithinCapture(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Export.ThumbWidth = cfg.Export.CaptureWidth + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("thumbnail wider than capture should fail")
	}
}

func TestInboxConfig(t *testing.T) {
	cfg := InboxConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled inbox without path should fail")
	}
	cfg = InboxConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled inbox needs no path: %v", err)
	}
}

func TestHTTPConfig_Address(t *testing.T) {
	c := HTTPConfig{Port: 9090}
	if c.Address() != ":9090" {
		t.Errorf("address = %q", c.Address())
	}
	if err := (&HTTPConfig{Port: 70000}).Validate(); err == nil {
		t.Error("port out of range should fail")
	}
}
