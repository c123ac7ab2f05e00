package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables
// and the targets file.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	StoreDriver      string

	RequestsPerMinute int
	DomainBudgets     map[string]int
	ParallelURLs      int
	MaxRetries        int
	RetryBaseDelay    time.Duration

	ScrollDepth    int
	ScrollDelayMin time.Duration
	ScrollDelayMax time.Duration
	NavTimeout     time.Duration
	Headless       bool
	ChromeBin      string

	CycleCooldown time.Duration
	CooldownMin   time.Duration
	CooldownMax   time.Duration

	LLMProviders         []string
	LLMModel             string
	OllamaURL            string
	XAIURL               string
	XAIAPIKey            string
	LLMRequestsPerSecond float64
	LLMTimeout           time.Duration
	PhoneRegion          string

	MinPrivateConfidence int
	AgentCSVPath         string
	TargetsFile          string
	Debug                bool
	DryRun               bool

	Targets *Targets
}

// Load reads the .env file, the environment and the targets file, and returns
// a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "harvester"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "harvester"),
		PostgresDB:       getEnv("POSTGRES_DB", "leads"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		StoreDriver:      getEnv("STORE_DRIVER", "postgres"),

		RequestsPerMinute: getEnvInt("REQUESTS_PER_MINUTE", 30),
		DomainBudgets:     parseBudgets(getEnv("DOMAIN_BUDGETS", "")),
		ParallelURLs:      clamp(getEnvInt("PARALLEL_URLS", 1), 1, 3),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay:    getEnvDuration("RETRY_BASE_DELAY", time.Second),

		ScrollDepth:    getEnvInt("SCROLL_DEPTH", 3),
		ScrollDelayMin: getEnvDuration("SCROLL_DELAY_MIN", 400*time.Millisecond),
		ScrollDelayMax: getEnvDuration("SCROLL_DELAY_MAX", 900*time.Millisecond),
		NavTimeout:     getEnvDuration("NAV_TIMEOUT", 45*time.Second),
		Headless:       getEnvBool("HEADLESS", true),
		ChromeBin:      getEnv("CHROME_BIN", ""),

		CycleCooldown: getEnvDuration("CYCLE_COOLDOWN", 5*time.Minute),
		CooldownMin:   getEnvDuration("COOLDOWN_MIN", 30*time.Second),
		CooldownMax:   getEnvDuration("COOLDOWN_MAX", 90*time.Second),

		LLMProviders:         splitList(getEnv("LLM_PROVIDERS", "ollama")),
		LLMModel:             getEnv("LLM_MODEL", "llama3.2"),
		OllamaURL:            getEnv("OLLAMA_URL", "http://localhost:11434"),
		XAIURL:               getEnv("XAI_URL", "https://api.x.ai/v1"),
		XAIAPIKey:            getEnv("XAI_API_KEY", ""),
		LLMRequestsPerSecond: getEnvFloat("LLM_RPS", 2),
		LLMTimeout:           getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		PhoneRegion:          getEnv("PHONE_REGION", "LU"),

		MinPrivateConfidence: getEnvInt("MIN_PRIVATE_CONFIDENCE", 6),
		AgentCSVPath:         getEnv("AGENT_CSV_PATH", "./data/agents.csv"),
		TargetsFile:          getEnv("TARGETS_FILE", "targets.yaml"),
		Debug:                getEnvBool("LOG_DEBUG", false),
		DryRun:               getEnvBool("DRY_RUN", false),
	}

	targets, err := LoadTargets(cfg.TargetsFile)
	if err != nil {
		log.Printf("[config] targets file %q not loaded (%v), starting with no targets", cfg.TargetsFile, err)
		targets = &Targets{}
	}
	targets.applyDefaults()
	cfg.Targets = targets

	return cfg
}

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.RequestsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("REQUESTS_PER_MINUTE must be positive, got %d", c.RequestsPerMinute))
	}
	if c.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must be positive, got %d", c.MaxRetries))
	}
	if c.ScrollDelayMax < c.ScrollDelayMin {
		errs = append(errs, fmt.Errorf("SCROLL_DELAY_MAX (%v) below SCROLL_DELAY_MIN (%v)", c.ScrollDelayMax, c.ScrollDelayMin))
	}
	if c.CooldownMax < c.CooldownMin {
		errs = append(errs, fmt.Errorf("COOLDOWN_MAX (%v) below COOLDOWN_MIN (%v)", c.CooldownMax, c.CooldownMin))
	}
	if len(c.LLMProviders) == 0 {
		errs = append(errs, errors.New("LLM_PROVIDERS must name at least one backend"))
	}
	if c.StoreDriver != "postgres" && c.StoreDriver != "memory" {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver))
	}
	return errors.Join(errs...)
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseBudgets reads "host=rpm,host=rpm". Malformed entries are ignored.
func parseBudgets(s string) map[string]int {
	out := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		host, n, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		rpm, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || rpm <= 0 {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(host))] = rpm
	}
	return out
}

func clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}
