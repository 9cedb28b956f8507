package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Helper function to reset pflag.CommandLine for testing
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

// Helper function to clear environment variables
func clearEnvVars() {
	os.Unsetenv("RANKIFY_MODE")
	os.Unsetenv("RANKIFY_HOST")
	os.Unsetenv("RANKIFY_PORT")
	os.Unsetenv("RANKIFY_PROVIDER")
	os.Unsetenv("RANKIFY_MODEL")
	os.Unsetenv("RANKIFY_ANALYSISSCALE")
	os.Unsetenv("RANKIFY_MAXINFLIGHT")
	os.Unsetenv("RANKIFY_LOOKAHEAD")
	os.Unsetenv("RANKIFY_LOGLEVEL")
	os.Unsetenv("RANKIFY_MAXFILESIZE")
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	os.Args = []string{"rankify-diagrams"}
	resetFlags()
	clearEnvVars()

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.VisionProvider != "openai" {
		t.Errorf("LoadFromFlags() VisionProvider = %v, want %v", cfg.VisionProvider, "openai")
	}
	if cfg.AnalysisScale != 2.0 {
		t.Errorf("LoadFromFlags() AnalysisScale = %v, want %v", cfg.AnalysisScale, 2.0)
	}
	if cfg.LookAhead != 2 {
		t.Errorf("LoadFromFlags() LookAhead = %v, want %v", cfg.LookAhead, 2)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want %v", cfg.LogLevel, "info")
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		wantMode      string
		wantProvider  string
		wantModel     string
		wantInFlight  int
		wantLogLevel  string
		wantLookAhead int
	}{
		{
			name:          "defaults",
			args:          []string{"rankify-diagrams"},
			wantMode:      "stdio",
			wantProvider:  "openai",
			wantModel:     "gpt-4o",
			wantInFlight:  3,
			wantLogLevel:  "info",
			wantLookAhead: 2,
		},
		{
			name: "anthropic provider with custom model",
			args: []string{
				"rankify-diagrams",
				"--provider=anthropic",
				"--model=claude-sonnet-4-20250514",
			},
			wantMode:      "stdio",
			wantProvider:  "anthropic",
			wantModel:     "claude-sonnet-4-20250514",
			wantInFlight:  3,
			wantLogLevel:  "info",
			wantLookAhead: 2,
		},
		{
			name: "server mode with tuned detection",
			args: []string{
				"rankify-diagrams",
				"--mode=server",
				"--port=9090",
				"--maxinflight=5",
				"--lookahead=4",
				"--loglevel=debug",
			},
			wantMode:      "server",
			wantProvider:  "openai",
			wantModel:     "gpt-4o",
			wantInFlight:  5,
			wantLogLevel:  "debug",
			wantLookAhead: 4,
		},
	}

	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			resetFlags()
			clearEnvVars()

			cfg, err := LoadFromFlags()
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}

			if cfg.Mode != tt.wantMode {
				t.Errorf("Mode = %v, want %v", cfg.Mode, tt.wantMode)
			}
			if cfg.VisionProvider != tt.wantProvider {
				t.Errorf("VisionProvider = %v, want %v", cfg.VisionProvider, tt.wantProvider)
			}
			if cfg.VisionModel != tt.wantModel {
				t.Errorf("VisionModel = %v, want %v", cfg.VisionModel, tt.wantModel)
			}
			if cfg.MaxInFlight != tt.wantInFlight {
				t.Errorf("MaxInFlight = %v, want %v", cfg.MaxInFlight, tt.wantInFlight)
			}
			if cfg.LogLevel != tt.wantLogLevel {
				t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, tt.wantLogLevel)
			}
			if cfg.LookAhead != tt.wantLookAhead {
				t.Errorf("LookAhead = %v, want %v", cfg.LookAhead, tt.wantLookAhead)
			}
		})
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	os.Args = []string{"rankify-diagrams"}
	resetFlags()
	clearEnvVars()

	os.Setenv("RANKIFY_PROVIDER", "ollama")
	os.Setenv("RANKIFY_MODEL", "llava")
	os.Setenv("RANKIFY_LOGLEVEL", "warn")

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.VisionProvider != "ollama" {
		t.Errorf("VisionProvider = %v, want ollama", cfg.VisionProvider)
	}
	if cfg.VisionModel != "llava" {
		t.Errorf("VisionModel = %v, want llava", cfg.VisionModel)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %v, want warn", cfg.LogLevel)
	}
}

func TestLoadFromFlags_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "bad mode",
			args: []string{"rankify-diagrams", "--mode=grpc"},
		},
		{
			name: "bad log level",
			args: []string{"rankify-diagrams", "--loglevel=chatty"},
		},
		{
			name: "zero analysis scale",
			args: []string{"rankify-diagrams", "--analysisscale=0"},
		},
		{
			name: "bad port in server mode",
			args: []string{"rankify-diagrams", "--mode=server", "--port=70000"},
		},
	}

	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			resetFlags()
			clearEnvVars()

			if _, err := LoadFromFlags(); err == nil {
				t.Error("LoadFromFlags() expected an error, got nil")
			}
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	os.Args = []string{"rankify-diagrams", "--version"}
	resetFlags()
	clearEnvVars()

	if _, err := LoadFromFlags(); err == nil {
		t.Error("LoadFromFlags() expected version error, got nil")
	}
}
