package config

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/linesmerrill/civil-defense-api/logging"
	"github.com/linesmerrill/civil-defense-api/models"
)

// Config holds the project config values
type Config struct {
	Env          string
	URL          string
	DatabaseName string
	// DatabaseDriver is mongo or memory
	DatabaseDriver string
	BaseURL        string
	Port           string

	JWTSecret string
	TokenTTL  time.Duration

	// RAAllocator is scan, counter or redis
	RAAllocator string
	RedisURL    string

	SendGridAPIKey  string
	SendGridHost    string
	AlertFromEmail  string
	AlertRecipients []string

	AuditSchedule  string
	LoginRateLimit int
	RequestTimeout time.Duration
}

// New sets up all config related services. Values come from the environment,
// a .env file in the working directory is loaded first when present.
func New() *Config {
	envErr := godotenv.Load()

	env := getEnv("ENV", "local")
	if _, err := setLogger(env); err != nil {
		zap.S().Errorw("failed to build logger, keeping the default one", "error", err)
	}
	if envErr != nil && !os.IsNotExist(envErr) {
		zap.S().Warnw(".env load warning", "error", envErr)
	}

	return &Config{
		Env:             env,
		URL:             getEnv("DB_URI", "mongodb://127.0.0.1:27017"),
		DatabaseName:    getEnv("DB_NAME", "civil-defense"),
		DatabaseDriver:  getEnv("DB_DRIVER", "mongo"),
		BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		Port:            getEnv("PORT", "8080"),
		JWTSecret:       getEnv("JWT_SECRET", "change_me"),
		TokenTTL:        getEnvDuration("TOKEN_TTL", 24*time.Hour),
		RAAllocator:     getEnv("RA_ALLOCATOR", "scan"),
		RedisURL:        os.Getenv("REDIS_URL"),
		SendGridAPIKey:  os.Getenv("SENDGRID_API_KEY"),
		SendGridHost:    getEnv("SENDGRID_HOST", "https://api.sendgrid.com"),
		AlertFromEmail:  getEnv("ALERT_FROM_EMAIL", "alertas@defesacivil.local"),
		AlertRecipients: getEnvList("ALERT_RECIPIENTS"),
		AuditSchedule:   getEnv("AUDIT_SCHEDULE", "0 6 * * *"),
		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 5),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
	}
}

// setLogger builds the logger for env and installs it as the zap global
func setLogger(env string) (*zap.Logger, error) {
	logger, err := logging.New(env)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	if httpStatusCode >= http.StatusInternalServerError {
		zap.S().Errorw(message, "status", httpStatusCode, "error", errText)
	} else {
		zap.S().Debugw(message, "status", httpStatusCode, "error", errText)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_ = json.NewEncoder(w).Encode(models.ErrorMessageResponse{
		Response: models.MessageError{
			Message: message,
			Error:   errText,
		},
	})
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
