package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Vonage    VonageConfig
	Twilio    TwilioConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Recording RecordingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
}

// VonageConfig holds Vonage Video (OpenTok) project credentials and API endpoint.
type VonageConfig struct {
	APIKey    string
	APISecret string
	APIURL    string // e.g. https://api.opentok.com
}

// TwilioConfig holds Twilio Video API-key credentials for the recording retrieval path.
type TwilioConfig struct {
	AccountSID   string
	APIKeySID    string
	APIKeySecret string
	VideoAPIURL  string // e.g. https://video.twilio.com
}

// RedisConfig holds Redis connection settings. Empty Addr = in-memory session cache only.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds the optional shared passcode for API access. Identity
// verification proper lives in front of this service; an empty passcode
// disables the check entirely.
type AuthConfig struct {
	Passcode string
}

// RecordingConfig holds composed-recording policy: the role marker appended to
// the composer's view URL, the render resource duration ceiling, and the
// output resolution.
type RecordingConfig struct {
	ECRole         string
	MaxDurationSec int
	Resolution     string
	ArchiveName    string
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8081"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Vonage: VonageConfig{
			APIKey:    getEnv("VONAGE_API_KEY", ""),
			APISecret: getEnv("VONAGE_API_SECRET", ""),
			APIURL:    getEnv("VONAGE_API_URL", "https://api.opentok.com"),
		},
		Twilio: TwilioConfig{
			AccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
			APIKeySID:    getEnv("TWILIO_API_KEY_SID", ""),
			APIKeySecret: getEnv("TWILIO_API_KEY_SECRET", ""),
			VideoAPIURL:  getEnv("TWILIO_VIDEO_API_URL", "https://video.twilio.com"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Passcode: getEnv("API_PASSCODE", ""),
		},
		Recording: RecordingConfig{
			ECRole:         getEnv("EC_ROLE_NAME", "ec-recorder"),
			MaxDurationSec: getEnvInt("EC_MAX_DURATION_SEC", 1800),
			Resolution:     getEnv("EC_RESOLUTION", "1280x720"),
			ArchiveName:    getEnv("EC_ARCHIVE_NAME", "EC Recording"),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
