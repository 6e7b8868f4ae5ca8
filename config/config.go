package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Environment  string
	JWTSecret    string
	RedisURL     string
	SendgridKey  string
	MailFrom     string

	ReminderSchedule string
	ReminderDelay    time.Duration
	SendRate         float64
	SendBurst        int
}

// LoadEnv loads variables from the given .env files into the process environment.
// Missing files are ignored so production can rely on the real environment.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			zap.S().Warnw("failed to load env file", "file", f, "error", err)
		}
	}
}

// New sets up all config related services
func New() *Config {
	env := Getenv("ENVIRONMENT", "local")

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:              os.Getenv("DB_URI"),
		DatabaseName:     Getenv("DB_NAME", "primecare"),
		BaseURL:          os.Getenv("BASE_URL"),
		Port:             Getenv("PORT", "3001"),
		Environment:      env,
		JWTSecret:        os.Getenv("JWT_SECRET"),
		RedisURL:         os.Getenv("REDIS_URL"),
		SendgridKey:      os.Getenv("SENDGRID_API_KEY"),
		MailFrom:         Getenv("MAIL_FROM", "no-reply@primecare.health"),
		ReminderSchedule: Getenv("REMINDER_SCHEDULE", "@every 5m"),
		ReminderDelay:    GetDuration("REMINDER_DELAY", 15*time.Minute),
		SendRate:         GetFloat("SEND_RATE", 5),
		SendBurst:        GetInt("SEND_BURST", 10),
	}
}

// Getenv returns the value of key or def when it is unset or empty
func Getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetDuration parses key as a time.Duration, falling back to def
func GetDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		zap.S().Warnw("invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// GetInt parses key as an int, falling back to def
func GetInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		zap.S().Warnw("invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

// GetFloat parses key as a float64, falling back to def
func GetFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		zap.S().Warnw("invalid float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}
