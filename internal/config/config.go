package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration, loaded from the environment.
type Config struct {
	Profile  string
	HTTPAddr string
	BaseURL  string

	// Campus OAuth2 authority.
	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthRedirectURL  string
	OAuthScopes       []string

	// HMAC secret for the signed login state parameter.
	StateSecret string

	SessionTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseDriver string
	DatabaseDSN    string

	// Approval routing service.
	WorkflowBaseURL string
	WorkflowFormID  string
	CallbackSecret  string

	// Document-sync mirror endpoints.
	DocSyncCreateURL string
	DocSyncUpdateURL string
	DocSyncDeleteURL string

	// Origins allowed to bypass the session guard during local development.
	DevOrigins []string

	// Applied to every outbound call to an external system.
	ExternalTimeout time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
}

// Load reads configuration from the environment, applying defaults and
// validating the result.
func Load(ctx context.Context) (*Config, error) {
	cfg := &Config{
		Profile:  getEnv("ROOMRES_PROFILE", "dev"),
		HTTPAddr: getEnv("ROOMRES_HTTP_ADDR", ":8080"),
		BaseURL:  getEnv("ROOMRES_BASE_URL", "http://localhost:8080"),

		OAuthClientID:     os.Getenv("ROOMRES_OAUTH_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("ROOMRES_OAUTH_CLIENT_SECRET"),
		OAuthAuthURL:      getEnv("ROOMRES_OAUTH_AUTH_URL", "https://login.uiowa.edu/uip/auth.page"),
		OAuthTokenURL:     getEnv("ROOMRES_OAUTH_TOKEN_URL", "https://login.uiowa.edu/uip/token.page"),
		OAuthRedirectURL:  os.Getenv("ROOMRES_OAUTH_REDIRECT_URL"),
		OAuthScopes:       getEnvList("ROOMRES_OAUTH_SCOPES", nil),

		StateSecret: os.Getenv("ROOMRES_STATE_SECRET"),

		SessionTTL:    getEnvDuration("ROOMRES_SESSION_TTL", 12*time.Hour),
		RedisAddr:     getEnvAllowEmpty("ROOMRES_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("ROOMRES_REDIS_PASSWORD"),
		RedisDB:       getEnvInt("ROOMRES_REDIS_DB", 0),

		DatabaseDriver: getEnv("ROOMRES_DB_DRIVER", "sqlite"),
		DatabaseDSN:    getEnv("ROOMRES_DB_DSN", "file:roomres.db?cache=shared"),

		WorkflowBaseURL: os.Getenv("ROOMRES_WORKFLOW_BASE_URL"),
		WorkflowFormID:  os.Getenv("ROOMRES_WORKFLOW_FORM_ID"),
		CallbackSecret:  os.Getenv("ROOMRES_CALLBACK_SECRET"),

		DocSyncCreateURL: os.Getenv("ROOMRES_DOCSYNC_CREATE_URL"),
		DocSyncUpdateURL: os.Getenv("ROOMRES_DOCSYNC_UPDATE_URL"),
		DocSyncDeleteURL: os.Getenv("ROOMRES_DOCSYNC_DELETE_URL"),

		DevOrigins: getEnvList("ROOMRES_DEV_ORIGINS", []string{"http://localhost:3000"}),

		ExternalTimeout: getEnvDuration("ROOMRES_EXTERNAL_TIMEOUT", 15*time.Second),

		OTELServiceName:           getEnv("OTEL_SERVICE_NAME", "roomres"),
		OTELEnvironment:           getEnv("OTEL_ENVIRONMENT", "dev"),
		OTELExporterOTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:        getEnvBool("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:        getEnvBool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:           getEnvBool("OTEL_LOGS_ENABLED", false),
		OTELMetricsExportInterval: getEnvDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second),
	}

	if err := cfg.validate(); err != nil {
		recordConfigValidationEvent(ctx, cfg.Profile, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(ctx, cfg.Profile, "success", "none")
	return cfg, nil
}

func (c *Config) validate() error {
	var problems []string
	if c.Profile != "dev" && c.Profile != "prod" {
		problems = append(problems, fmt.Sprintf("unknown profile %q", c.Profile))
	}
	if c.Profile == "prod" {
		for name, v := range map[string]string{
			"ROOMRES_OAUTH_CLIENT_ID":     c.OAuthClientID,
			"ROOMRES_OAUTH_CLIENT_SECRET": c.OAuthClientSecret,
			"ROOMRES_OAUTH_REDIRECT_URL":  c.OAuthRedirectURL,
			"ROOMRES_STATE_SECRET":        c.StateSecret,
			"ROOMRES_WORKFLOW_BASE_URL":   c.WorkflowBaseURL,
			"ROOMRES_CALLBACK_SECRET":     c.CallbackSecret,
		} {
			if v == "" {
				problems = append(problems, name+" is required in prod")
			}
		}
	}
	for name, raw := range map[string]string{
		"ROOMRES_BASE_URL":          c.BaseURL,
		"ROOMRES_OAUTH_AUTH_URL":    c.OAuthAuthURL,
		"ROOMRES_OAUTH_TOKEN_URL":   c.OAuthTokenURL,
		"ROOMRES_WORKFLOW_BASE_URL": c.WorkflowBaseURL,
	} {
		if raw == "" {
			continue
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			problems = append(problems, fmt.Sprintf("%s: parse %q", name, raw))
		}
	}
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		problems = append(problems, fmt.Sprintf("unsupported ROOMRES_DB_DRIVER %q", c.DatabaseDriver))
	}
	if c.ExternalTimeout <= 0 {
		problems = append(problems, "ROOMRES_EXTERNAL_TIMEOUT must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("validate config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsDev reports whether the service runs under the local-development profile.
func (c *Config) IsDev() bool { return c.Profile == "dev" }

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// getEnvAllowEmpty keeps an explicitly empty value instead of substituting
// the fallback, so a deployment can set the variable to "" to opt out of
// whatever it configures. Only an unset variable gets the fallback.
func getEnvAllowEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
