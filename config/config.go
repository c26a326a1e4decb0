package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	JWT       JWTConfig
	Firebase  FirebaseConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	AI        AIConfig
	Session   SessionConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

type JWTConfig struct {
	Secret                 string
	Expiration             time.Duration
	RefreshTokenExpiration time.Duration
}

// FirebaseConfig selects the hosted store. An empty ProjectID means no backend
// is configured.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string
	StorageBucket   string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type AIConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

type SessionConfig struct {
	ToastTTL    time.Duration
	IdleTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

const devSecret = "dev-secret-key"

var defaults = map[string]string{
	"PORT":                      "8080",
	"HOST":                      "0.0.0.0",
	"ENVIRONMENT":               "development",
	"JWT_SECRET":                devSecret,
	"JWT_EXPIRATION":            "30m",
	"REFRESH_TOKEN_EXPIRATION":  "7d",
	"FIREBASE_PROJECT_ID":       "",
	"FIREBASE_CREDENTIALS_PATH": "./serviceAccountKey.json",
	"FIREBASE_STORAGE_BUCKET":   "",
	"ALLOWED_ORIGINS":           "http://localhost:5173",
	"RATE_LIMIT_REQUESTS":       "100",
	"RATE_LIMIT_WINDOW":         "60",
	"AI_PROVIDER":               "",
	"AI_API_KEY":                "",
	"AI_MODEL":                  "",
	"AI_BASE_URL":               "",
	"AI_TIMEOUT":                "20s",
	"TOAST_TTL":                 "8s",
	"SESSION_IDLE_TIMEOUT":      "30m",
	"LOG_LEVEL":                 "info",
	"LOG_FORMAT":                "text",
}

// Load reads configuration from the environment and, when configFile is not
// empty, from that file. Environment variables win over the file.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:        v.GetString("PORT"),
			Host:        v.GetString("HOST"),
			Environment: v.GetString("ENVIRONMENT"),
		},
		JWT: JWTConfig{
			Secret:                 v.GetString("JWT_SECRET"),
			Expiration:             parseDuration(v.GetString("JWT_EXPIRATION"), 30*time.Minute),
			RefreshTokenExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		},
		Firebase: FirebaseConfig{
			ProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
			CredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
			StorageBucket:   v.GetString("FIREBASE_STORAGE_BUCKET"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseStringSlice(v.GetString("ALLOWED_ORIGINS")),
		},
		RateLimit: RateLimitConfig{
			Requests: parseInt(v.GetString("RATE_LIMIT_REQUESTS"), 100),
			Window:   parseDuration(v.GetString("RATE_LIMIT_WINDOW"), 60*time.Second),
		},
		AI: AIConfig{
			Provider: v.GetString("AI_PROVIDER"),
			APIKey:   v.GetString("AI_API_KEY"),
			Model:    v.GetString("AI_MODEL"),
			BaseURL:  v.GetString("AI_BASE_URL"),
			Timeout:  parseDuration(v.GetString("AI_TIMEOUT"), 20*time.Second),
		},
		Session: SessionConfig{
			ToastTTL:    parseDuration(v.GetString("TOAST_TTL"), 8*time.Second),
			IdleTimeout: parseDuration(v.GetString("SESSION_IDLE_TIMEOUT"), 30*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}, nil
}

func parseInt(s string, defaultValue int) int {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return defaultValue
}

// parseDuration accepts Go durations, a day suffix ("7d") or bare seconds ("60").
func parseDuration(s string, defaultValue time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if i, err := strconv.Atoi(days); err == nil {
			return time.Duration(i) * 24 * time.Hour
		}
	}
	if i, err := strconv.Atoi(s); err == nil {
		return time.Duration(i) * time.Second
	}
	return defaultValue
}

func parseStringSlice(s string) []string {
	result := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// FirebaseEnabled reports whether a hosted store is configured.
func (c *Config) FirebaseEnabled() bool {
	return c.Firebase.ProjectID != ""
}

func (c *Config) Validate() error {
	if c.JWT.Secret == devSecret && c.IsProduction() {
		return errors.New("JWT_SECRET must be set in production")
	}
	if !c.FirebaseEnabled() {
		if c.IsProduction() {
			return errors.New("FIREBASE_PROJECT_ID must be set in production")
		}
		return nil
	}
	if c.Firebase.CredentialsPath != "" {
		if _, err := os.Stat(c.Firebase.CredentialsPath); os.IsNotExist(err) {
			return fmt.Errorf("firebase credentials file not found: %s", c.Firebase.CredentialsPath)
		}
	}
	return nil
}
