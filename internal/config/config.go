package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/muratovb/geowatch/internal/models"
	"github.com/muratovb/geowatch/internal/store"
)

// Config holds everything tunable about the tracker. Values come from the
// environment (optionally seeded by a .env file) with reference-deployment
// defaults.
type Config struct {
	APIBaseURL string
	AuthToken  string

	DBPath        string
	LocationsPath string

	EntryGrace       time.Duration
	ExitGrace        time.Duration
	DeepValidation   time.Duration
	SyncInterval     time.Duration
	SyncFlex         time.Duration
	DirectRetries    int
	DirectRetryDelay time.Duration
	RetentionDays    int

	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPath := os.Getenv("GEOWATCH_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
	}

	return &Config{
		APIBaseURL: os.Getenv("GEOWATCH_API_BASE_URL"),
		AuthToken:  os.Getenv("GEOWATCH_AUTH_TOKEN"),

		DBPath:        dbPath,
		LocationsPath: getEnv("GEOWATCH_LOCATIONS", "locations.json"),

		EntryGrace:       getDuration("GEOWATCH_ENTRY_GRACE", time.Minute),
		ExitGrace:        getDuration("GEOWATCH_EXIT_GRACE", time.Minute),
		DeepValidation:   getDuration("GEOWATCH_DEEP_VALIDATION", 30*time.Minute),
		SyncInterval:     getDuration("GEOWATCH_SYNC_INTERVAL", 15*time.Minute),
		SyncFlex:         getDuration("GEOWATCH_SYNC_FLEX", 5*time.Minute),
		DirectRetries:    getInt("GEOWATCH_DIRECT_RETRIES", 3),
		DirectRetryDelay: getDuration("GEOWATCH_DIRECT_RETRY_DELAY", 2*time.Second),
		RetentionDays:    getInt("GEOWATCH_RETENTION_DAYS", 30),

		LogLevel:  getEnv("GEOWATCH_LOG_LEVEL", "info"),
		LogFormat: getEnv("GEOWATCH_LOG_FORMAT", "console"),
	}, nil
}

// LoadWorkLocations reads and validates a work-location set from a JSON file.
func LoadWorkLocations(path string) ([]models.WorkLocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locations file: %w", err)
	}
	return ParseWorkLocations(data)
}

// ParseWorkLocations decodes a JSON array of work locations and rejects
// invalid entries (zero or negative radius, out-of-range coordinates).
func ParseWorkLocations(data []byte) ([]models.WorkLocation, error) {
	var locations []models.WorkLocation
	if err := json.Unmarshal(data, &locations); err != nil {
		return nil, fmt.Errorf("failed to parse locations: %w", err)
	}

	validate := validator.New()
	for i, loc := range locations {
		if err := validate.Struct(loc); err != nil {
			return nil, fmt.Errorf("invalid location %q (index %d): %w", loc.ID, i, err)
		}
	}
	return locations, nil
}

// Credentials resolves the API base URL and bearer token, preferring the
// persisted service-local values, then the environment config, then the
// hardcoded fallback base URL. The token has no fallback.
func Credentials(state *models.PersistentState, cfg *Config) (baseURL, token string) {
	baseURL = state.APIBaseURL
	if baseURL == "" {
		baseURL = cfg.APIBaseURL
	}
	token = state.AuthToken
	if token == "" {
		token = cfg.AuthToken
	}
	return baseURL, token
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
