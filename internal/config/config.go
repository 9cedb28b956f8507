package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB

	DefaultVisionProvider = "openai"
	DefaultVisionModel    = "gpt-4o"
	DefaultAnalysisScale  = 2.0
	DefaultMaxInFlight    = 3
	DefaultMaxAttempts    = 3
	DefaultCacheEntries   = 200
	DefaultCacheMB        = 64
	DefaultLookAhead      = 2
	DefaultMinBoxSize     = 0.02
	DefaultSnapGrid       = 0.005
)

// Config holds all configuration for the diagram engine server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Vision configuration
	VisionProvider string
	VisionModel    string

	// Detection configuration
	AnalysisScale float64
	MaxInFlight   int
	MaxAttempts   int

	// Render cache configuration
	CacheEntries int
	CacheMB      int

	// Geometry configuration
	MinBoxSize float64
	SnapGrid   float64

	// Viewport configuration
	LookAhead int

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF upload size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:           ModeStdio, // Default to stdio mode for MCP compatibility
		Host:           DefaultHost,
		Port:           DefaultPort,
		VisionProvider: DefaultVisionProvider,
		VisionModel:    DefaultVisionModel,
		AnalysisScale:  DefaultAnalysisScale,
		MaxInFlight:    DefaultMaxInFlight,
		MaxAttempts:    DefaultMaxAttempts,
		CacheEntries:   DefaultCacheEntries,
		CacheMB:        DefaultCacheMB,
		MinBoxSize:     DefaultMinBoxSize,
		SnapGrid:       DefaultSnapGrid,
		LookAhead:      DefaultLookAhead,
		Version:        "1.0.0",
		ServerName:     "rankify-diagrams",
		LogLevel:       DefaultLogLevel,
		MaxFileSize:    DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix("RANKIFY")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("provider", cfg.VisionProvider)
	viper.SetDefault("model", cfg.VisionModel)
	viper.SetDefault("analysisscale", cfg.AnalysisScale)
	viper.SetDefault("maxinflight", cfg.MaxInFlight)
	viper.SetDefault("maxattempts", cfg.MaxAttempts)
	viper.SetDefault("cacheentries", cfg.CacheEntries)
	viper.SetDefault("cachemb", cfg.CacheMB)
	viper.SetDefault("minboxsize", cfg.MinBoxSize)
	viper.SetDefault("snapgrid", cfg.SnapGrid)
	viper.SetDefault("lookahead", cfg.LookAhead)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("provider", cfg.VisionProvider, "Vision provider (openai, anthropic, googleai, ollama)")
	pflag.String("model", cfg.VisionModel, "Vision model name")
	pflag.Float64("analysisscale", cfg.AnalysisScale, "Render scale for detection rasters")
	pflag.Int("maxinflight", cfg.MaxInFlight, "Maximum concurrent vision requests")
	pflag.Int("maxattempts", cfg.MaxAttempts, "Attempts per page including retries")
	pflag.Int("cacheentries", cfg.CacheEntries, "Maximum render cache entries")
	pflag.Int("cachemb", cfg.CacheMB, "Approximate render cache budget in MB")
	pflag.Float64("minboxsize", cfg.MinBoxSize, "Minimum region size as a page fraction")
	pflag.Float64("snapgrid", cfg.SnapGrid, "Snap grid for manual edits, as a page fraction")
	pflag.Int("lookahead", cfg.LookAhead, "Questions to prefetch beyond the visible one")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF upload size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "provider", "model", "analysisscale",
		"maxinflight", "maxattempts", "cacheentries", "cachemb",
		"minboxsize", "snapgrid", "lookahead", "loglevel", "maxfilesize",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nRankify Diagrams - AI diagram detection and rendering for question papers\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                          # stdio mode (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --provider=anthropic --model=claude-sonnet-4-20250514\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 # HTTP server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  RANKIFY_MODE          Server mode\n")
		fmt.Fprintf(os.Stderr, "  RANKIFY_PROVIDER      Vision provider\n")
		fmt.Fprintf(os.Stderr, "  RANKIFY_MODEL         Vision model\n")
		fmt.Fprintf(os.Stderr, "  RANKIFY_LOGLEVEL      Log level\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY        Key for the openai provider\n")
		fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY     Key for the anthropic provider\n")
		fmt.Fprintf(os.Stderr, "  GOOGLE_API_KEY        Key for the googleai provider\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.VisionProvider = viper.GetString("provider")
	cfg.VisionModel = viper.GetString("model")
	cfg.AnalysisScale = viper.GetFloat64("analysisscale")
	cfg.MaxInFlight = viper.GetInt("maxinflight")
	cfg.MaxAttempts = viper.GetInt("maxattempts")
	cfg.CacheEntries = viper.GetInt("cacheentries")
	cfg.CacheMB = viper.GetInt("cachemb")
	cfg.MinBoxSize = viper.GetFloat64("minboxsize")
	cfg.SnapGrid = viper.GetFloat64("snapgrid")
	cfg.LookAhead = viper.GetInt("lookahead")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.VisionProvider == "" {
		return errors.New("vision provider cannot be empty")
	}
	if c.VisionModel == "" {
		return errors.New("vision model cannot be empty")
	}

	if c.AnalysisScale <= 0 {
		return errors.New("analysis scale must be positive")
	}
	if c.MaxInFlight < 1 {
		return errors.New("max in-flight requests must be at least 1")
	}
	if c.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}

	if c.MinBoxSize <= 0 || c.MinBoxSize > 0.5 {
		return errors.New("minimum box size must be in (0, 0.5]")
	}
	if c.SnapGrid < 0 || c.SnapGrid > c.MinBoxSize {
		return errors.New("snap grid must be non-negative and no larger than the minimum box size")
	}

	if c.CacheEntries < 1 {
		return errors.New("cache entries must be at least 1")
	}
	if c.CacheMB < 1 {
		return errors.New("cache budget must be at least 1MB")
	}

	if c.LookAhead < 0 {
		return errors.New("look-ahead cannot be negative")
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheBytes returns the cache budget in bytes
func (c *Config) CacheBytes() int64 {
	return int64(c.CacheMB) << 20
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Provider: %s, Model: %s, AnalysisScale: %.1f, MaxInFlight: %d, LogLevel: %s}",
		c.Mode, c.VisionProvider, c.VisionModel, c.AnalysisScale, c.MaxInFlight, c.LogLevel)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
