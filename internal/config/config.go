package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBotEmail      = "bot@chatpilot.ai"
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultEncryptionKey = "v6yB$#@F1pL0t_S3cr3t_K3y_32_Chars!"
)

type Config struct {
	Port string
	Env  string

	DatabaseURL   string
	EncryptionKey string

	BotEmail        string
	BotThinkDelay   time.Duration
	GeminiModel     string
	Credentials     []string // ordered: primary first
	ProviderTimeout time.Duration // 0 = rely on the provider's own deadline

	Archive ArchiveConfig
}

type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":3001", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	var creds []string
	for _, key := range []string{"GEMINI_API_KEY", "SECONDARY_GEMINI_KEY"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			creds = append(creds, v)
		}
	}

	return &Config{
		Port:            *port,
		Env:             env,
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		EncryptionKey:   firstNonEmpty(strings.TrimSpace(os.Getenv("MESSAGE_ENCRYPTION_KEY")), defaultEncryptionKey),
		BotEmail:        firstNonEmpty(strings.TrimSpace(os.Getenv("BOT_EMAIL")), defaultBotEmail),
		BotThinkDelay:   durationEnv("BOT_THINK_DELAY", 2*time.Second),
		GeminiModel:     firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), defaultGeminiModel),
		Credentials:     creds,
		ProviderTimeout: durationEnv("PROVIDER_TIMEOUT", 0),
		Archive:         loadArchiveConfig(),
	}, nil
}

func loadArchiveConfig() ArchiveConfig {
	endpoint := strings.TrimSpace(os.Getenv("ARCHIVE_S3_ENDPOINT"))
	return ArchiveConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_BUCKET")), "chatpilot-transcripts"),
		UseSSL:    boolEnv("ARCHIVE_S3_USE_SSL", false),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func boolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
