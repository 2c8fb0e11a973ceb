// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Notifier and backend names accepted in NOTIFIERS and HISTORY_BACKEND.
const (
	NotifierStdout   = "stdout"
	NotifierTelegram = "telegram"
	NotifierEmail    = "email"
	NotifierNATS     = "nats"

	HistoryNone     = "none"
	HistoryFile     = "file"
	HistoryPostgres = "postgres"
	HistoryRedis    = "redis"

	SimilarityJaccard = "jaccard"
	SimilarityOverlap = "overlap"

	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var sendTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

type Config struct {
	// Feeds and scoring
	FeedsConfigPath string
	ProfilePath     string
	MaxNewsItems    int
	NewsMaxAge      time.Duration
	FeedItemLimit   int

	DedupeSimilarity string // jaccard or overlap

	// Scraper settings
	ScrapeConcurrency  int
	ScrapeMaxPerSource int

	// Synopsis settings
	SynopsisProvider    string
	SynopsisTimeout     time.Duration
	GeminiAPIKey        string
	GeminiModel         string
	OpenAIAPIKey        string
	OpenAIModel         string
	MaxSynopsisRequests int // per day, 0 = unlimited

	// Delivery
	Notifiers      []string
	TelegramToken  string
	TelegramChatID string
	SMTPServer     string
	SMTPPort       int
	EmailSender    string
	EmailPassword  string
	EmailRecipient string
	NATSURL        string
	NATSSubject    string

	// Sent history
	HistoryBackend string
	CacheFilePath  string
	DatabaseURL    string
	RedisURL       string
	HistoryTTL     time.Duration

	// Scheduling
	SendTime string // HH:MM, local time

	// App settings
	LogLevel             string
	RequestTimeout       time.Duration
	RetryAttempts        int
	RetryDelay           time.Duration
	EnableHTTPMonitoring bool
	MonitoringPort       string
}

// Load reads .env (when present) and the environment into a validated Config.
func Load() (*Config, error) {
	// Missing .env is normal in containers.
	_ = godotenv.Load()

	cfg := FromEnv()
	return cfg, cfg.Validate()
}

// FromEnv builds a Config from the current environment without validating it.
func FromEnv() *Config {
	cfg := &Config{
		FeedsConfigPath:     getEnvOrDefault("FEEDS_CONFIG_PATH", "configs/feeds.yaml"),
		ProfilePath:         os.Getenv("PROFILE_PATH"),
		MaxNewsItems:        getEnvIntOrDefault("MAX_NEWS_ITEMS", 10),
		NewsMaxAge:          time.Duration(getEnvIntOrDefault("NEWS_MAX_AGE_HOURS", 24)) * time.Hour,
		FeedItemLimit:       getEnvIntOrDefault("FEED_ITEM_LIMIT", 20),
		DedupeSimilarity:    strings.ToLower(getEnvOrDefault("DEDUPE_SIMILARITY", SimilarityJaccard)),
		ScrapeConcurrency:   getEnvIntOrDefault("SCRAPE_CONCURRENCY", 4),
		ScrapeMaxPerSource:  getEnvIntOrDefault("SCRAPE_MAX_PER_SOURCE", 5),
		SynopsisProvider:    strings.ToLower(getEnvOrDefault("SYNOPSIS_PROVIDER", ProviderNone)),
		SynopsisTimeout:     getEnvDurationOrDefault("SYNOPSIS_TIMEOUT", 15*time.Second),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         getEnvOrDefault("OPENAI_MODEL", "gpt-3.5-turbo"),
		MaxSynopsisRequests: getEnvIntOrDefault("MAX_SYNOPSIS_REQUESTS", 10),
		Notifiers:           splitList(getEnvOrDefault("NOTIFIERS", NotifierStdout)),
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:      os.Getenv("TELEGRAM_CHAT_ID"),
		SMTPServer:          getEnvOrDefault("SMTP_SERVER", "smtp.gmail.com"),
		SMTPPort:            getEnvIntOrDefault("SMTP_PORT", 587),
		EmailSender:         os.Getenv("EMAIL_SENDER"),
		EmailPassword:       os.Getenv("EMAIL_PASSWORD"),
		EmailRecipient:      os.Getenv("EMAIL_RECIPIENT"),
		NATSURL:             getEnvOrDefault("NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubject:         getEnvOrDefault("NATS_SUBJECT", "ainews.digest"),
		HistoryBackend:      strings.ToLower(getEnvOrDefault("HISTORY_BACKEND", HistoryFile)),
		CacheFilePath:       getEnvOrDefault("CACHE_FILE_PATH", "sent_news.json"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		HistoryTTL:          time.Duration(getEnvIntOrDefault("HISTORY_TTL_HOURS", 48)) * time.Hour,
		SendTime:            getEnvOrDefault("SEND_TIME", "09:00"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		RequestTimeout:      getEnvDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		RetryAttempts:       getEnvIntOrDefault("RETRY_ATTEMPTS", 3),
		RetryDelay:          getEnvDurationOrDefault("RETRY_DELAY", 5*time.Second),
		MonitoringPort:      getEnvOrDefault("MONITORING_PORT", "8080"),
	}

	if os.Getenv("DEBUG") == "true" {
		cfg.LogLevel = "debug"
	}
	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		cfg.EnableHTTPMonitoring = true
	}

	return cfg
}

// HasNotifier reports whether name is among the configured notifiers.
func (c *Config) HasNotifier(name string) bool {
	for _, n := range c.Notifiers {
		if n == name {
			return true
		}
	}
	return false
}

// SendHourMinute splits SendTime into its hour and minute.
func (c *Config) SendHourMinute() (int, int, error) {
	m := sendTimePattern.FindStringSubmatch(c.SendTime)
	if m == nil {
		return 0, 0, fmt.Errorf("SEND_TIME %q must be HH:MM", c.SendTime)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return hour, minute, nil
}

// Validate checks numeric bounds and requires credentials only for the
// notifiers, synopsis provider and history backend actually selected.
func (c *Config) Validate() error {
	var errs []error

	if c.MaxNewsItems < 0 {
		errs = append(errs, errors.New("MAX_NEWS_ITEMS must not be negative"))
	}
	if c.FeedItemLimit <= 0 {
		errs = append(errs, errors.New("FEED_ITEM_LIMIT must be positive"))
	}
	if c.NewsMaxAge <= 0 {
		errs = append(errs, errors.New("NEWS_MAX_AGE_HOURS must be positive"))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, errors.New("RETRY_ATTEMPTS must be at least 1"))
	}
	if _, _, err := c.SendHourMinute(); err != nil {
		errs = append(errs, err)
	}

	if c.DedupeSimilarity != SimilarityJaccard && c.DedupeSimilarity != SimilarityOverlap {
		errs = append(errs, fmt.Errorf("DEDUPE_SIMILARITY must be jaccard or overlap, got %q", c.DedupeSimilarity))
	}

	switch c.SynopsisProvider {
	case ProviderNone:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for SYNOPSIS_PROVIDER=gemini"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for SYNOPSIS_PROVIDER=openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("SYNOPSIS_PROVIDER must be none, gemini or openai, got %q", c.SynopsisProvider))
	}

	if len(c.Notifiers) == 0 {
		errs = append(errs, errors.New("NOTIFIERS must name at least one notifier"))
	}
	for _, n := range c.Notifiers {
		switch n {
		case NotifierStdout:
		case NotifierTelegram:
			if c.TelegramToken == "" || c.TelegramChatID == "" {
				errs = append(errs, errors.New("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required for the telegram notifier"))
			}
		case NotifierEmail:
			if c.EmailSender == "" || c.EmailPassword == "" || c.EmailRecipient == "" {
				errs = append(errs, errors.New("EMAIL_SENDER, EMAIL_PASSWORD and EMAIL_RECIPIENT are required for the email notifier"))
			}
		case NotifierNATS:
			if c.NATSURL == "" || c.NATSSubject == "" {
				errs = append(errs, errors.New("NATS_URL and NATS_SUBJECT are required for the nats notifier"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown notifier %q", n))
		}
	}
	if c.HasNotifier(NotifierEmail) && (c.SMTPServer == "" || c.SMTPPort <= 0 || c.SMTPPort > 65535) {
		errs = append(errs, fmt.Errorf("SMTP_SERVER and a SMTP_PORT in 1-65535 are required for the email notifier, got %q:%d", c.SMTPServer, c.SMTPPort))
	}

	switch c.HistoryBackend {
	case HistoryNone, HistoryFile:
	case HistoryPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for HISTORY_BACKEND=postgres"))
		}
	case HistoryRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for HISTORY_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("HISTORY_BACKEND must be none, file, postgres or redis, got %q", c.HistoryBackend))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("15s") or bare seconds ("15").
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
