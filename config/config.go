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

// Version of this build, compared against the published version file.
const Version = "5.0"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Files    FilesConfig
	Jobs     JobsConfig
	Updates  UpdatesConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port      string
	WebOrigin string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	// Embedded starts a bundled Postgres instead of connecting to Host.
	Embedded bool
	DataPath string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type SessionConfig struct {
	TTL          time.Duration
	CartTTL      time.Duration
	AdminIDs     []string
	SeedUsers    map[string]string
	SeenThrottle time.Duration
}

type FilesConfig struct {
	SlipDir  string
	ImageDir string
}

type JobsConfig struct {
	SlipArchiveCron  string
	VersionCheckCron string
}

type UpdatesConfig struct {
	VersionURL string
	Current    string
}

type LogConfig struct {
	Level string
}

// Load reads the environment, optionally from envFile, into a Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	sessTTL, err := seconds("SESSION_TTL_SECONDS", 24*60*60)
	if err != nil {
		return nil, err
	}
	cartTTL, err := seconds("CART_TTL_SECONDS", 2*60*60)
	if err != nil {
		return nil, err
	}
	seeds, err := parseSeedUsers(os.Getenv("SEED_USERS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:      getenvWithDefault("PORT", "3001"),
			WebOrigin: getenvWithDefault("WEB_ORIGIN", "http://localhost:5173"),
		},
		Database: DatabaseConfig{
			Host:     getenvWithDefault("DB_HOST", "localhost"),
			Port:     getenvWithDefault("DB_PORT", "5432"),
			User:     getenvWithDefault("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getenvWithDefault("DB_NAME", "dms"),
			Embedded: getenvBool("DB_EMBEDDED"),
			DataPath: getenvWithDefault("DB_EMBEDDED_PATH", "./db_data"),
		},
		Redis: RedisConfig{
			Addr:     getenvWithDefault("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Session: SessionConfig{
			TTL:          sessTTL,
			CartTTL:      cartTTL,
			AdminIDs:     splitCSV(os.Getenv("ADMIN_IDS")),
			SeedUsers:    seeds,
			SeenThrottle: 5 * time.Minute,
		},
		Files: FilesConfig{
			SlipDir:  getenvWithDefault("SLIP_DIR", "./borrow_pdfs"),
			ImageDir: getenvWithDefault("IMAGE_DIR", "./images"),
		},
		Jobs: JobsConfig{
			SlipArchiveCron:  getenvWithDefault("SLIP_ARCHIVE_CRON", "30 2 * * *"),
			VersionCheckCron: getenvWithDefault("VERSION_CHECK_CRON", "0 */6 * * *"),
		},
		Updates: UpdatesConfig{
			VersionURL: getenvWithDefault("VERSION_URL", "https://raw.githubusercontent.com/Matti-Krebelder/DMS/refs/heads/main/version.txt"),
			Current:    Version,
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Server.Port)
	}
	if c.Database.Name == "" || c.Database.User == "" {
		return errors.New("DB_NAME and DB_USER must be provided")
	}
	if !c.Database.Embedded && c.Database.Host == "" {
		return errors.New("DB_HOST must be provided unless DB_EMBEDDED is set")
	}
	if c.Redis.Addr == "" {
		return errors.New("REDIS_ADDR must be provided")
	}
	if c.Session.TTL <= 0 || c.Session.CartTTL <= 0 {
		return errors.New("session TTLs must be positive")
	}
	if c.Files.SlipDir == "" {
		return errors.New("SLIP_DIR must not be empty")
	}
	return nil
}

// IsAdminID reports whether id is listed in ADMIN_IDS.
func (c *Config) IsAdminID(id string) bool {
	for _, a := range c.Session.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func seconds(key string, def int) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(def) * time.Second, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive number of seconds, got %q", key, raw)
	}
	return time.Duration(n) * time.Second, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseSeedUsers reads "id:Name,id:Name".
func parseSeedUsers(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range splitCSV(s) {
		id, name, ok := strings.Cut(pair, ":")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("SEED_USERS entry %q must look like id:Name", pair)
		}
		out[id] = name
	}
	return out, nil
}
