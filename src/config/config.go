package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvPathEnvVar  = "RECTCOPY_ENV"
	LogFileEnvVar  = "LOG_FILE"
	DefaultLogFile = "rectcopy_debug.log"
	DefaultHotkey  = "Ctrl+Alt+C"
)

type LoadOptions struct {
	EnvPathOverride  string
	StartURLOverride string
	HeadlessOverride *bool
}

type Config struct {
	LineBreakThreshold float64
	CaretEpsilon       float64
	MinDragSize        float64
	Hotkey             string
	EnableFileLogging  bool
	LogFile            string
	StartURL           string
	ChromeRemoteURL    string
	Headless           bool
	ViewportWidth      int
	ViewportHeight     int
	LayoutCharWidth    float64
	LayoutLineHeight   float64
	DebugCaptureDir    string
	TraceMessages      bool
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) an explicit override path
	// 2) .env in the application (executable) directory
	// 3) If not found, use RECTCOPY_ENV env var as a path to a config file
	envPath := resolveEnvPath(opts)
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{
		LineBreakThreshold: getFloat("LINE_BREAK_THRESHOLD_PX", 5),
		CaretEpsilon:       getFloat("CARET_EPSILON_PX", 0.1),
		MinDragSize:        getFloat("MIN_DRAG_PX", 2),
		Hotkey:             getEnvWithDefault("HOTKEY", DefaultHotkey),
		EnableFileLogging:  getBool("ENABLE_FILE_LOGGING", false),
		LogFile:            resolveLogFile(dotenvValues),
		StartURL:           getEnvWithDefault("START_URL", "about:blank"),
		ChromeRemoteURL:    strings.TrimSpace(os.Getenv("CHROME_REMOTE_URL")),
		Headless:           getBool("HEADLESS", false),
		ViewportWidth:      getInt("VIEWPORT_WIDTH", 1280),
		ViewportHeight:     getInt("VIEWPORT_HEIGHT", 800),
		LayoutCharWidth:    getFloat("LAYOUT_CHAR_WIDTH", 8),
		LayoutLineHeight:   getFloat("LAYOUT_LINE_HEIGHT", 16),
		DebugCaptureDir:    strings.TrimSpace(os.Getenv("DEBUG_CAPTURE_DIR")),
		TraceMessages:      getBool("TRACE_MESSAGES", false),
	}
	if v := strings.TrimSpace(opts.StartURLOverride); v != "" {
		cfg.StartURL = v
	}
	if opts.HeadlessOverride != nil {
		cfg.Headless = *opts.HeadlessOverride
	}

	return cfg, nil
}

func resolveEnvPath(opts LoadOptions) string {
	if p := strings.TrimSpace(opts.EnvPathOverride); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

// resolveLogFile lets the .env file win over the inherited environment so a
// portable install always logs next to its own configuration.
func resolveLogFile(dotenvValues map[string]string) string {
	path := DefaultLogFile

	if envPath := strings.TrimSpace(os.Getenv(LogFileEnvVar)); envPath != "" {
		path = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[LogFileEnvVar]); dotenvPath != "" {
		path = dotenvPath
	}

	return path
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getInt(key string, defaultValue int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// getFloat accepts non-negative values only; anything else keeps the default.
func getFloat(key string, defaultValue float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return defaultValue
}
