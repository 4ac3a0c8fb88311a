// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rate limiting,
// observability, and every external collaborator this service talks to: the
// Stable Diffusion engine, the chat/image-assist LLM providers, the image
// hosting services, and the NSFW censor extension.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SDConfig configures the SDGateway's connection to the external Stable
// Diffusion HTTP engine.
type SDConfig struct {
	BaseURL         string        // SD_BASE_URL
	BasicAuthUser   string        // SD_AUTH_USER
	BasicAuthPass   string        // SD_AUTH_PASSWORD
	GenerateTimeout time.Duration // SD_GENERATE_TIMEOUT (long: generation calls)
	ListTimeout     time.Duration // SD_LIST_TIMEOUT (short: listing/options calls)
	CensorTimeout   time.Duration // SD_CENSOR_TIMEOUT
	OutputPath      string        // SD_OUTPUT_PATH, local dir for saved images
}

// CatalogConfig configures LoRACatalog and ContentClassifier persistence and
// the fixed content-type detection thresholds.
type CatalogConfig struct {
	DBPath              string  // CATALOG_DB_PATH
	NSFWShareThreshold   float64 // LORA_CONTENT_NSFW_THRESHOLD
	SuggestiveShareThreshold float64 // LORA_CONTENT_SUGGESTIVE_THRESHOLD
}

// ChatProviderConfig configures a single LLM provider endpoint.
type ChatProviderConfig struct {
	BaseURL      string
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
}

// ChatConfig configures the user-configurable chat LLM channel and the
// always-local image-assist channel (LLMRouter §4.6's dual-provider
// invariant: only the chat provider is selectable here).
type ChatConfig struct {
	Provider string // CHAT_LLM_PROVIDER: lmstudio|openai|claude|gemini
	LMStudio ChatProviderConfig
	OpenAI   ChatProviderConfig
	Claude   ChatProviderConfig
	Gemini   ChatProviderConfig
	// ImageAssist is always LM Studio; it is configurable only in the sense
	// of base URL/model/timeout, never in provider selection.
	ImageAssist ChatProviderConfig
}

// HostingConfig configures UploadRouter's external sinks and local fallback.
type HostingConfig struct {
	BaseURL       string // HOSTING_BASE_URL
	UserAPIKeyEnv string // name of the per-user credential store; credentials live in HostedUser rows
	GuestAPIKey   string // HOSTING_GUEST_API_KEY
	Timeout       time.Duration
	MaxFileSize   int64 // bytes
	LocalFallback bool  // HOSTING_LOCAL_FALLBACK
	LocalDir      string // HOSTING_LOCAL_DIR
	FileServerHost string // FILE_SERVER_HOST
	FileServerPort string // FILE_SERVER_PORT
	PublicBaseURL  string // derived: http://{host}:{port}
}

// RateConfig configures per-action-type rate limits for ConversationStore.
type RateConfig struct {
	ChatPerMinute     int // RATE_CHAT_PER_MINUTE
	GeneratePerMinute int // RATE_GENERATE_PER_MINUTE
}

// ModerationConfig configures administrative access to moderation tools.
type ModerationConfig struct {
	AdminUserIDs []string // ADMIN_USER_IDS (CSV)
}

// AutoCleanConfig configures ConversationStore's auto-cleanup policy.
type AutoCleanConfig struct {
	Enabled    bool   // AUTO_CLEAN_ENABLED
	Method     string // AUTO_CLEAN_METHOD: days|launches
	Days       int    // AUTO_CLEAN_DAYS
	Launches   int    // AUTO_CLEAN_LAUNCHES
	RetainDays int    // AUTO_CLEAN_RETAIN_DAYS
}

// NSFWConfig configures the censor pass invoked by SDGateway.censor.
type NSFWConfig struct {
	Enabled             bool // NSFW_FILTER_ENABLED
	FilterType          string
	BlurRadius          int
	BlurStrengthCurve   float64
	PixelationFactor    float64
	FillColor           string
	MaskShape           string
	MaskBlendRadius     int
	RectangleRoundRadius int
	NMSThreshold        float64
	ExpandHorizontal     float64
	ExpandVertical       float64
	// Thresholds, indexed by the fixed NudeNet label order (18 entries);
	// see internal/sdgateway for the label-index documentation.
	Thresholds [18]float64
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string

	// Logging / Docs
	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Rate limiting (HTTP layer token bucket)
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration

	// Observability
	OTEL OTELConfig

	// Domain
	SD         SDConfig
	Catalog    CatalogConfig
	Chat       ChatConfig
	Hosting    HostingConfig
	Rate       RateConfig
	Moderation ModerationConfig
	AutoClean  AutoCleanConfig
	NSFW       NSFWConfig
}

func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "sdforge"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},

		SD: SDConfig{
			BaseURL:         getenv("SD_BASE_URL", "http://127.0.0.1:7860"),
			BasicAuthUser:   getenv("SD_AUTH_USER", ""),
			BasicAuthPass:   getenv("SD_AUTH_PASSWORD", ""),
			GenerateTimeout: getdur("SD_GENERATE_TIMEOUT", 300*time.Second),
			ListTimeout:     getdur("SD_LIST_TIMEOUT", 10*time.Second),
			CensorTimeout:   getdur("SD_CENSOR_TIMEOUT", 60*time.Second),
			OutputPath:      getenv("SD_OUTPUT_PATH", "output"),
		},

		Catalog: CatalogConfig{
			DBPath:                   getenv("CATALOG_DB_PATH", "catalog.db"),
			NSFWShareThreshold:       getfloat("LORA_CONTENT_NSFW_THRESHOLD", 0.10),
			SuggestiveShareThreshold: getfloat("LORA_CONTENT_SUGGESTIVE_THRESHOLD", 0.05),
		},

		Chat: ChatConfig{
			Provider: strings.ToLower(getenv("CHAT_LLM_PROVIDER", "lmstudio")),
			LMStudio: ChatProviderConfig{
				BaseURL:      getenv("LMSTUDIO_BASE_URL", "http://127.0.0.1:1234/v1"),
				APIKey:       getenv("LMSTUDIO_API_KEY", ""),
				DefaultModel: getenv("LMSTUDIO_MODEL", "local-model"),
				Timeout:      getdur("LMSTUDIO_TIMEOUT", 60*time.Second),
			},
			OpenAI: ChatProviderConfig{
				BaseURL:      getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				APIKey:       getenv("OPENAI_API_KEY", ""),
				DefaultModel: getenv("OPENAI_MODEL", "gpt-4o-mini"),
				Timeout:      getdur("OPENAI_TIMEOUT", 60*time.Second),
			},
			Claude: ChatProviderConfig{
				BaseURL:      getenv("CLAUDE_BASE_URL", "https://api.anthropic.com/v1"),
				APIKey:       getenv("CLAUDE_API_KEY", ""),
				DefaultModel: getenv("CLAUDE_MODEL", "claude-3-haiku-20240307"),
				Timeout:      getdur("CLAUDE_TIMEOUT", 60*time.Second),
			},
			Gemini: ChatProviderConfig{
				BaseURL:      getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
				APIKey:       getenv("GEMINI_API_KEY", ""),
				DefaultModel: getenv("GEMINI_MODEL", "gemini-1.5-flash"),
				Timeout:      getdur("GEMINI_TIMEOUT", 60*time.Second),
			},
			// ImageAssist is always LM Studio, never provider-selectable.
			ImageAssist: ChatProviderConfig{
				BaseURL:      getenv("LMSTUDIO_BASE_URL", "http://127.0.0.1:1234/v1"),
				APIKey:       getenv("LMSTUDIO_API_KEY", ""),
				DefaultModel: getenv("LMSTUDIO_IMAGE_ASSIST_MODEL", getenv("LMSTUDIO_MODEL", "local-model")),
				Timeout:      getdur("LMSTUDIO_TIMEOUT", 60*time.Second),
			},
		},

		Hosting: HostingConfig{
			BaseURL:        getenv("HOSTING_BASE_URL", ""),
			GuestAPIKey:    getenv("HOSTING_GUEST_API_KEY", ""),
			Timeout:        getdur("HOSTING_TIMEOUT", 30*time.Second),
			MaxFileSize:    int64(getint("HOSTING_MAX_FILE_SIZE", 10<<20)),
			LocalFallback:  getbool("HOSTING_LOCAL_FALLBACK", true),
			LocalDir:       getenv("HOSTING_LOCAL_DIR", "uploaded_images"),
			FileServerHost: getenv("FILE_SERVER_HOST", "localhost"),
			FileServerPort: getenv("FILE_SERVER_PORT", "8081"),
		},

		Rate: RateConfig{
			ChatPerMinute:     getint("RATE_CHAT_PER_MINUTE", 20),
			GeneratePerMinute: getint("RATE_GENERATE_PER_MINUTE", 5),
		},

		Moderation: ModerationConfig{
			AdminUserIDs: splitCSV(getenv("ADMIN_USER_IDS", "")),
		},

		AutoClean: AutoCleanConfig{
			Enabled:    getbool("AUTO_CLEAN_ENABLED", true),
			Method:     strings.ToLower(getenv("AUTO_CLEAN_METHOD", "launches")),
			Days:       getint("AUTO_CLEAN_DAYS", 30),
			Launches:   getint("AUTO_CLEAN_LAUNCHES", 20),
			RetainDays: getint("AUTO_CLEAN_RETAIN_DAYS", 90),
		},

		NSFW: NSFWConfig{
			Enabled:              getbool("NSFW_FILTER_ENABLED", true),
			FilterType:           getenv("NSFW_FILTER_TYPE", "Variable blur"),
			BlurRadius:           getint("NSFW_BLUR_RADIUS", 25),
			BlurStrengthCurve:    getfloat("NSFW_BLUR_STRENGTH_CURVE", 3.0),
			PixelationFactor:     getfloat("NSFW_PIXELATION_FACTOR", 0.25),
			FillColor:            getenv("NSFW_FILL_COLOR", "#000000"),
			MaskShape:            getenv("NSFW_MASK_SHAPE", "Ellipse"),
			MaskBlendRadius:      getint("NSFW_MASK_BLEND_RADIUS", 10),
			RectangleRoundRadius: getint("NSFW_RECTANGLE_ROUND_RADIUS", 0),
			NMSThreshold:         getfloat("NSFW_NMS_THRESHOLD", 0.5),
			ExpandHorizontal:     getfloat("NSFW_EXPAND_HORIZONTAL", 0),
			ExpandVertical:       getfloat("NSFW_EXPAND_VERTICAL", 0),
		},
	}
	cfg.Hosting.PublicBaseURL = "http://" + cfg.Hosting.FileServerHost + ":" + cfg.Hosting.FileServerPort
	cfg.NSFW.Thresholds = defaultNudeNetThresholds()

	switch cfg.Chat.Provider {
	case "lmstudio", "openai", "claude", "gemini":
	default:
		cfg.Chat.Provider = "lmstudio"
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	if strings.TrimSpace(cfg.SD.BaseURL) == "" {
		return cfg, errors.New("SD_BASE_URL must not be empty")
	}
	if cfg.SD.GenerateTimeout <= 0 || cfg.SD.ListTimeout <= 0 || cfg.SD.CensorTimeout <= 0 {
		return cfg, errors.New("SD timeouts must be positive durations")
	}
	if cfg.Catalog.NSFWShareThreshold < 0 || cfg.Catalog.NSFWShareThreshold > 1 {
		return cfg, errors.New("LORA_CONTENT_NSFW_THRESHOLD must be in [0,1]")
	}
	if cfg.Catalog.SuggestiveShareThreshold < 0 || cfg.Catalog.SuggestiveShareThreshold > cfg.Catalog.NSFWShareThreshold {
		return cfg, errors.New("LORA_CONTENT_SUGGESTIVE_THRESHOLD must be in [0, nsfw threshold]")
	}
	if cfg.Rate.ChatPerMinute < 1 || cfg.Rate.GeneratePerMinute < 1 {
		return cfg, errors.New("rate limits must be >= 1 per minute")
	}
	switch cfg.AutoClean.Method {
	case "days", "launches":
	default:
		return cfg, errors.New("AUTO_CLEAN_METHOD must be one of: days, launches")
	}

	return cfg, nil
}

// defaultNudeNetThresholds mirrors the upstream censor extension's default
// per-class thresholds: 1.0 means "never censor this class"; exposed-content
// classes default to a low threshold so they are censored by default.
// Index order matches internal/sdgateway's documented NudeNet label order.
func defaultNudeNetThresholds() [18]float64 {
	t := [18]float64{}
	for i := range t {
		t[i] = 1.0
	}
	// exposed-content indices default to sensitive (low threshold)
	exposed := []int{2, 3, 4, 5, 6, 13, 14}
	for _, i := range exposed {
		t[i] = 0.1
	}
	return t
}

// ---- helpers (no external deps, matching the teacher's own style) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
