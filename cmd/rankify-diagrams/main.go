package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/namandhakad712/Rankify-sub003/internal/config"
	"github.com/namandhakad712/Rankify-sub003/internal/detect"
	"github.com/namandhakad712/Rankify-sub003/internal/engine"
	"github.com/namandhakad712/Rankify-sub003/internal/geometry"
	"github.com/namandhakad712/Rankify-sub003/internal/mcp"
	"github.com/namandhakad712/Rankify-sub003/internal/vision"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.IsStdioMode() {
		// In stdio mode, redirect log output to stderr to avoid interfering with MCP protocol
		log.SetOutput(os.Stderr)
		logrus.SetOutput(os.Stderr)
		// Reduce log verbosity in stdio mode unless debug is enabled
		if !cfg.IsDebug() {
			log.SetOutput(os.NewFile(0, os.DevNull))
			logrus.SetLevel(logrus.WarnLevel)
		}
	} else {
		// In server mode, use normal stdout logging with more detail
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

// buildEngine wires the pipeline from configuration. A missing API key
// degrades to a manual-only session instead of refusing to start.
func buildEngine(cfg *config.Config) *engine.Service {
	var visionDetector vision.Detector
	detector, err := vision.NewLLMDetector(vision.Config{
		Provider: cfg.VisionProvider,
		Model:    cfg.VisionModel,
		Timeout:  60 * time.Second,
	})
	if err != nil {
		logrus.WithError(err).Warn("Vision backend unavailable; detection disabled, manual regions still work")
	} else {
		visionDetector = detector
	}

	return engine.NewService(engine.Options{
		Vision: visionDetector,
		Sanitizer: geometry.NewSanitizer(geometry.Config{
			MinWidth:            cfg.MinBoxSize,
			MinHeight:           cfg.MinBoxSize,
			SnapGrid:            cfg.SnapGrid,
			DegenerateSize:      geometry.DefaultDegenerateSize,
			CorrectionThreshold: geometry.DefaultCorrectionThreshold,
			ConfidencePenalty:   geometry.DefaultConfidencePenalty,
			Aspect:              geometry.DefaultAspectPolicy(),
		}),
		DetectConfig: detect.Config{
			AnalysisScale: cfg.AnalysisScale,
			MaxInFlight:   cfg.MaxInFlight,
			MaxAttempts:   cfg.MaxAttempts,
		},
		CacheEntries: cfg.CacheEntries,
		CacheBytes:   cfg.CacheBytes(),
		LookAhead:    cfg.LookAhead,
		Name:         cfg.ServerName,
		Version:      cfg.Version,
	})
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) {
	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Start server in a goroutine
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		// Wait for server to shutdown
		if err := <-serverErrCh; err != nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Server stopped successfully")
}

// runStdioMode handles stdio mode execution
func runStdioMode(ctx context.Context, _ context.CancelFunc, server *mcp.Server) {
	// In stdio mode, the parent process controls our lifecycle
	// We should exit cleanly when stdin is closed or we get an error

	// Start server and wait for it to complete
	if err := server.Run(ctx); err != nil {
		// Only log to stderr in debug mode to avoid protocol interference
		if os.Getenv("DEBUG") != "" {
			log.Printf("Server error: %v", err)
		}
		os.Exit(1)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	// Load configuration from flags first
	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging based on mode
	setupLogging(cfg)

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() && cfg.IsServerMode() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	// Create the diagram engine
	eng := buildEngine(cfg)
	defer eng.Reset()

	// Create MCP server
	server, err := mcp.NewServer(cfg, eng)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle different modes
	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server)
	} else {
		runStdioMode(ctx, cancel, server)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("Rankify Diagrams\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
