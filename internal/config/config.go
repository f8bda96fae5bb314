package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends understood by STORE_BACKEND.
const (
	BackendGitHub = "github"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	GitHub     GitHubConfig
	MongoDB    MongoDBConfig
	MinIO      MinIOConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	Google     GoogleConfig
	OAuthState OAuthStateConfig
	Lessons    LessonsConfig
	LogLevel   string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StoreConfig selects the document store backend. Timeout bounds every single store call.
type StoreConfig struct {
	Backend string
	Timeout time.Duration
}

// GitHubConfig points at the repository whose files hold the JSON documents.
type GitHubConfig struct {
	Token   string
	Owner   string
	Repo    string
	Branch  string
	DataDir string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// MinIOConfig enables the revision snapshot archive when Endpoint is set.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// RefreshToken is the environment-supplied credential; it wins over the stored record.
	RefreshToken string
	CalendarID   string
	// TutorEmail restricts the consent callback to a single Google account when set.
	TutorEmail string
}

type OAuthStateConfig struct {
	Secret string
	TTL    time.Duration
}

type LessonsConfig struct {
	WindowDays int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "3000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendGitHub)
	v.SetDefault("STORE_TIMEOUT", 15)
	v.SetDefault("GITHUB_BRANCH", "main")
	v.SetDefault("GITHUB_DATA_DIR", "data")
	v.SetDefault("MONGODB_DATABASE", "tutor")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("MINIO_BUCKET", "tutor-documents")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("GOOGLE_CALENDAR_ID", "primary")
	v.SetDefault("OAUTH_STATE_TTL", 10)
	v.SetDefault("LESSON_WINDOW_DAYS", 30)

	port := v.GetString("SERVER_PORT")
	// Render and similar hosts inject PORT
	if p := v.GetString("PORT"); p != "" {
		port = p
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         port,
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND"))),
			Timeout: time.Duration(v.GetInt("STORE_TIMEOUT")) * time.Second,
		},
		GitHub: GitHubConfig{
			Token:   v.GetString("GITHUB_TOKEN"),
			Owner:   v.GetString("GITHUB_OWNER"),
			Repo:    v.GetString("GITHUB_REPO"),
			Branch:  v.GetString("GITHUB_BRANCH"),
			DataDir: strings.Trim(v.GetString("GITHUB_DATA_DIR"), "/"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Google: GoogleConfig{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  v.GetString("GOOGLE_REDIRECT_URI"),
			RefreshToken: strings.TrimSpace(v.GetString("GOOGLE_REFRESH_TOKEN")),
			CalendarID:   v.GetString("GOOGLE_CALENDAR_ID"),
			TutorEmail:   strings.ToLower(strings.TrimSpace(v.GetString("TUTOR_EMAIL"))),
		},
		OAuthState: OAuthStateConfig{
			Secret: v.GetString("OAUTH_STATE_SECRET"),
			TTL:    time.Duration(v.GetInt("OAUTH_STATE_TTL")) * time.Minute,
		},
		Lessons: LessonsConfig{
			WindowDays: v.GetInt("LESSON_WINDOW_DAYS"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings required by the selected store backend.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendGitHub:
		var missing []string
		if c.GitHub.Token == "" {
			missing = append(missing, "GITHUB_TOKEN")
		}
		if c.GitHub.Owner == "" {
			missing = append(missing, "GITHUB_OWNER")
		}
		if c.GitHub.Repo == "" {
			missing = append(missing, "GITHUB_REPO")
		}
		if len(missing) > 0 {
			return fmt.Errorf("config: github store requires %s", strings.Join(missing, ", "))
		}
	case BackendMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("config: mongo store requires MONGODB_URI")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("config: STORE_TIMEOUT must be positive")
	}
	if c.Lessons.WindowDays <= 0 {
		return fmt.Errorf("config: LESSON_WINDOW_DAYS must be positive")
	}
	return nil
}

// GoogleConfigured reports whether the OAuth client is set up.
func (c *Config) GoogleConfigured() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// RedisAddr returns host:port or "" when Redis is not configured.
func (c *Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return c.Redis.Host + ":" + c.Redis.Port
}
