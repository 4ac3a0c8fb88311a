package config

import (
	"strings"
	"testing"
	"time"
)

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("GIN_MODE", "weird") // normalizes to "release"
	t.Setenv("LOG_LEVEL", "warning") // normalizes to "warn"
	t.Setenv("API_BASE_PATH", "api/v1/")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("SD_BASE_URL", "http://sd.local:7860")
	t.Setenv("CHAT_LLM_PROVIDER", "OpenAI")
	t.Setenv("RATE_CHAT_PER_MINUTE", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8088" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q, want release", cfg.GinMode)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Errorf("APIBasePath = %q", cfg.APIBasePath)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.SD.BaseURL != "http://sd.local:7860" {
		t.Errorf("SD.BaseURL = %q", cfg.SD.BaseURL)
	}
	if cfg.Chat.Provider != "openai" {
		t.Errorf("Chat.Provider = %q, want openai (lowercased)", cfg.Chat.Provider)
	}
	// The image-assist channel must stay pinned to LM Studio regardless of
	// the chat provider selection.
	if !strings.Contains(cfg.Chat.ImageAssist.BaseURL, "1234") {
		t.Errorf("ImageAssist.BaseURL = %q, want LM Studio endpoint", cfg.Chat.ImageAssist.BaseURL)
	}
	if cfg.Rate.ChatPerMinute != 30 {
		t.Errorf("Rate.ChatPerMinute = %d", cfg.Rate.ChatPerMinute)
	}
}

func TestLoad_UnknownChatProvider_FallsBackToLMStudio(t *testing.T) {
	t.Setenv("SD_BASE_URL", "http://sd.local:7860")
	t.Setenv("CHAT_LLM_PROVIDER", "some-unknown-provider")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Chat.Provider != "lmstudio" {
		t.Errorf("Chat.Provider = %q, want fallback lmstudio", cfg.Chat.Provider)
	}
}

func TestLoad_ImageAssistAlwaysLMStudio_RegardlessOfChatProvider(t *testing.T) {
	for _, provider := range []string{"lmstudio", "openai", "claude", "gemini"} {
		t.Run(provider, func(t *testing.T) {
			t.Setenv("SD_BASE_URL", "http://sd.local:7860")
			t.Setenv("CHAT_LLM_PROVIDER", provider)
			t.Setenv("LMSTUDIO_BASE_URL", "http://127.0.0.1:1234/v1")

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Chat.ImageAssist.BaseURL != "http://127.0.0.1:1234/v1" {
				t.Errorf("ImageAssist.BaseURL changed with chat provider %q: %q", provider, cfg.Chat.ImageAssist.BaseURL)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]func(t *testing.T){
		"bad log level": func(t *testing.T) { t.Setenv("LOG_LEVEL", "noisy"); t.Setenv("SD_BASE_URL", "x") },
		"blank sd base url": func(t *testing.T) {
			t.Setenv("SD_BASE_URL", "   ")
		},
		"bad auto clean method": func(t *testing.T) {
			t.Setenv("SD_BASE_URL", "x")
			t.Setenv("AUTO_CLEAN_METHOD", "weeks")
		},
		"nsfw threshold out of range": func(t *testing.T) {
			t.Setenv("SD_BASE_URL", "x")
			t.Setenv("LORA_CONTENT_NSFW_THRESHOLD", "1.5")
		},
		"rate limit below 1": func(t *testing.T) {
			t.Setenv("SD_BASE_URL", "x")
			t.Setenv("RATE_CHAT_PER_MINUTE", "0")
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			setup(t)
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error for case %q", name)
			}
		})
	}
}

func TestDefaultNudeNetThresholds_ExposedClassesLow(t *testing.T) {
	th := defaultNudeNetThresholds()
	if len(th) != 18 {
		t.Fatalf("expected 18 thresholds, got %d", len(th))
	}
	// Face_female (index 1) should default to "never censor".
	if th[1] != 1.0 {
		t.Errorf("Face_female threshold = %v, want 1.0", th[1])
	}
	// Female_genitalia_exposed (index 4) should default to sensitive.
	if th[4] >= 1.0 {
		t.Errorf("Female_genitalia_exposed threshold = %v, want < 1.0", th[4])
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":            "/",
		"api":         "/api",
		"/api/":       "/api",
		"/":           "/",
		" /api/v1/ ":  "/api/v1",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetDuration_FallsBackOnParseError(t *testing.T) {
	t.Setenv("SOME_DUR", "not-a-duration")
	if got := getdur("SOME_DUR", 5*time.Second); got != 5*time.Second {
		t.Errorf("getdur fallback = %v, want 5s", got)
	}
}
