// Package config loads quicklist settings from defaults, an optional .env
// file, the process environment and finally command-line flags (applied by
// the caller). Later sources win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSetting is wrapped by Validate for every required value that is
// absent.
var ErrMissingSetting = errors.New("missing required setting")

type Backend string

const (
	BackendFirestore Backend = "firestore"
	BackendPostgres  Backend = "postgres"
	BackendMemory    Backend = "memory"
)

// DefaultPresets are the one-tap "frequent item" buttons.
var DefaultPresets = []string{"牛乳", "卵", "納豆", "豆腐", "玉ねぎ", "歯磨き粉", "洗剤", "ティッシュ", "トイレットペーパー"}

// DefaultMembers maps family e-mail addresses to display names.
var DefaultMembers = map[string]string{
	"ramu@example.com":   "らむ",
	"shinto@example.com": "しんと",
}

const DefaultFallbackName = "家族"

type Config struct {
	Backend Backend

	// ProjectID addresses the Firestore database, APIKey authenticates
	// against Identity Toolkit.
	ProjectID   string
	APIKey      string
	DatabaseURL string

	SessionDB string
	Port      string

	Members      map[string]string
	FallbackName string
	Presets      []string
	Location     *time.Location
	LogLevel     string

	LineChannelToken  string
	LineChannelSecret string

	// DemoPassword is the password of every member account on the memory
	// backend.
	DemoPassword string
}

// Defaults returns a Config with every optional value filled in.
func Defaults() *Config {
	members := make(map[string]string, len(DefaultMembers))
	for k, v := range DefaultMembers {
		members[k] = v
	}
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	return &Config{
		Backend:      BackendFirestore,
		SessionDB:    defaultSessionDB(),
		Port:         "8080",
		Members:      members,
		FallbackName: DefaultFallbackName,
		Presets:      append([]string(nil), DefaultPresets...),
		Location:     loc,
		LogLevel:     "info",
		DemoPassword: "quicklist",
	}
}

func defaultSessionDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "quicklist-session.db"
	}
	return filepath.Join(dir, "quicklist", "session.db")
}

// Load reads envFile (".env" when empty; a missing file is not an error)
// and overlays the process environment onto the defaults. It does not
// validate; callers apply flags first and then call Validate.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	cfg := Defaults()
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays the values found through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("QUICKLIST_BACKEND")); v != "" {
		c.Backend = Backend(strings.ToLower(v))
	}
	setIf(&c.ProjectID, getenv("FIREBASE_PROJECT_ID"))
	setIf(&c.APIKey, getenv("FIREBASE_API_KEY"))
	setIf(&c.DatabaseURL, getenv("DATABASE_URL"))
	setIf(&c.SessionDB, getenv("QUICKLIST_SESSION_DB"))
	setIf(&c.Port, getenv("PORT"))
	setIf(&c.LogLevel, getenv("QUICKLIST_LOG_LEVEL"))
	setIf(&c.LineChannelToken, getenv("LINE_CHANNEL_TOKEN"))
	setIf(&c.LineChannelSecret, getenv("LINE_CHANNEL_SECRET"))
	setIf(&c.FallbackName, getenv("QUICKLIST_FALLBACK_NAME"))
	setIf(&c.DemoPassword, getenv("QUICKLIST_DEMO_PASSWORD"))

	if v := strings.TrimSpace(getenv("QUICKLIST_MEMBERS")); v != "" {
		members, err := ParseMembers(v)
		if err != nil {
			return err
		}
		c.Members = members
	}
	if v := strings.TrimSpace(getenv("QUICKLIST_PRESETS")); v != "" {
		c.Presets = ParseList(v)
	}
	if v := strings.TrimSpace(getenv("QUICKLIST_TZ")); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return fmt.Errorf("invalid QUICKLIST_TZ %q: %w", v, err)
		}
		c.Location = loc
	}
	return nil
}

func setIf(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// Validate checks that the settings required by the selected backend are
// present.
func (c *Config) Validate() error {
	var missing []string
	switch c.Backend {
	case BackendFirestore:
		if c.ProjectID == "" {
			missing = append(missing, "FIREBASE_PROJECT_ID")
		}
		if c.APIKey == "" {
			missing = append(missing, "FIREBASE_API_KEY")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if c.APIKey == "" {
			missing = append(missing, "FIREBASE_API_KEY")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}
	return nil
}

// LineEnabled reports whether the LINE bridge is configured.
func (c *Config) LineEnabled() bool {
	return c.LineChannelToken != "" && c.LineChannelSecret != ""
}

// ParseMembers parses "email=name,email=name".
func ParseMembers(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, part := range ParseList(s) {
		email, name, ok := strings.Cut(part, "=")
		email, name = strings.ToLower(strings.TrimSpace(email)), strings.TrimSpace(name)
		if !ok || email == "" || name == "" {
			return nil, fmt.Errorf("invalid QUICKLIST_MEMBERS entry %q", part)
		}
		out[email] = name
	}
	return out, nil
}

// ParseList splits a comma separated list and drops empty entries.
func ParseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
