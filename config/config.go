package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is read once at startup and passed by value to whatever needs it.
// Nothing reads the environment after Load returns.
type Config struct {
	Port string

	DBDriver string
	DBURL    string

	APIKey    string
	MediaURL  string
	MediaRoot string

	TwilioAccountSID          string
	TwilioAuthToken           string
	TwilioPhoneNumber         string
	TwilioMessagingServiceSID string

	OIDCUserInfoURL string
	OIDCIssuer      string
	OIDCCreateUser  bool

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	CORSAllowedOrigins []string

	LogLevel             string
	LogFormat            string
	SlowRequestThreshold time.Duration

	NotifyRetrySchedule string
	NotifyMaxAttempts   int
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	// A missing .env is fine, the variables may come from the OS.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can supply
// their own values.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:                      withDefault(getenv("PORT"), "8080"),
		DBDriver:                  strings.ToLower(withDefault(getenv("DB_DRIVER"), "postgres")),
		DBURL:                     getenv("DB_URL"),
		APIKey:                    getenv("API_KEY"),
		MediaURL:                  withDefault(getenv("MEDIA_URL"), "/media/"),
		MediaRoot:                 withDefault(getenv("MEDIA_ROOT"), "media"),
		TwilioAccountSID:          getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:           getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber:         getenv("TWILIO_PHONE_NUMBER"),
		TwilioMessagingServiceSID: getenv("TWILIO_MESSAGING_SERVICE_SID"),
		OIDCUserInfoURL:           getenv("OIDC_OP_USER_ENDPOINT"),
		OIDCIssuer:                strings.TrimRight(getenv("OIDC_ISSUER"), "/"),
		OIDCCreateUser:            true,
		JWTSecret:                 getenv("JWT_SECRET"),
		JWTIssuer:                 getenv("JWT_ISSUER"),
		JWTAudience:               getenv("JWT_AUDIENCE"),
		CORSAllowedOrigins:        splitList(getenv("CORS_ALLOWED_ORIGINS")),
		LogLevel:                  withDefault(getenv("LOG_LEVEL"), "info"),
		LogFormat:                 withDefault(getenv("LOG_FORMAT"), "json"),
		SlowRequestThreshold:      200 * time.Millisecond,
		NotifyRetrySchedule:       "*/10 * * * *",
		NotifyMaxAttempts:         3,
	}

	if !strings.HasPrefix(cfg.MediaURL, "/") {
		cfg.MediaURL = "/" + cfg.MediaURL
	}
	if !strings.HasSuffix(cfg.MediaURL, "/") {
		cfg.MediaURL += "/"
	}

	if v := getenv("OIDC_CREATE_USER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("OIDC_CREATE_USER: %w", err)
		}
		cfg.OIDCCreateUser = b
	}
	if v := getenv("SLOW_REQUEST_THRESHOLD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("SLOW_REQUEST_THRESHOLD: %w", err)
		}
		cfg.SlowRequestThreshold = d
	}
	// "off" disables the retry job.
	switch v := getenv("NOTIFY_RETRY_SCHEDULE"); strings.ToLower(v) {
	case "":
	case "off":
		cfg.NotifyRetrySchedule = ""
	default:
		cfg.NotifyRetrySchedule = v
	}
	if v := getenv("NOTIFY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("NOTIFY_MAX_ATTEMPTS must be a positive integer, got %q", v)
		}
		cfg.NotifyMaxAttempts = n
	}

	return cfg, cfg.Validate()
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("API_KEY is required"))
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver))
	}
	if c.DBURL == "" {
		errs = append(errs, errors.New("DB_URL is required"))
	}
	if c.OIDCUserInfoURL == "" && c.OIDCIssuer == "" && c.JWTSecret == "" {
		errs = append(errs, errors.New("one of OIDC_OP_USER_ENDPOINT, OIDC_ISSUER or JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}

// SMSEnabled reports whether Twilio credentials and a sender are configured.
func (c Config) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" &&
		(c.TwilioPhoneNumber != "" || c.TwilioMessagingServiceSID != "")
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
