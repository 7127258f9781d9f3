package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Anthropic Anthropic       `yaml:"anthropic"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Data      DataConfig      `yaml:"data"`
	NATS      NATSConfig      `yaml:"nats"`
	Web       WebConfig       `yaml:"web"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Chat      ChatConfig      `yaml:"chat"`
}

type Anthropic struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type WorkflowConfig struct {
	DocumentPath  string        `yaml:"document_path"`
	DefaultTask   string        `yaml:"default_task"`
	Stack         string        `yaml:"stack"`
	MaxIterations int           `yaml:"max_iterations"`
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialWait   time.Duration `yaml:"initial_wait"`
}

type DataConfig struct {
	Dir       string `yaml:"dir"`
	StorePath string `yaml:"store_path"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type WebConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type ChatConfig struct {
	ProjectsDir string `yaml:"projects_dir"`
}

func defaults() Config {
	return Config{
		Anthropic: Anthropic{
			Model:       "claude-3-haiku-20240307",
			MaxTokens:   2500,
			Temperature: 0.3,
		},
		Workflow: WorkflowConfig{
			DocumentPath:  "data/communication.json",
			DefaultTask:   "Implement login with Google",
			Stack:         "NestJS + NextJS + PostgreSQL",
			MaxIterations: 3,
			MaxAttempts:   5,
			InitialWait:   time.Second,
		},
		Data: DataConfig{
			Dir:       "data",
			StorePath: "data/synergo.db",
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
		},
		Chat: ChatConfig{
			ProjectsDir: "data/projects",
		},
	}
}

func Load() (*Config, error) {
	// The API credential may live in a local dotfile; a missing file is fine.
	_ = godotenv.Load()

	cfg := defaults()

	path := os.Getenv("SYNERGO_CONFIG")
	if path == "" {
		path = "config/synergo.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Anthropic.APIKey = v
	}
	if v := os.Getenv("SYNERGO_MODEL"); v != "" {
		cfg.Anthropic.Model = v
	}
	if v := os.Getenv("SYNERGO_DOC_PATH"); v != "" {
		cfg.Workflow.DocumentPath = v
	}
	if v := os.Getenv("SYNERGO_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
		cfg.Data.StorePath = filepath.Join(v, "synergo.db")
		cfg.NATS.DataDir = filepath.Join(v, "nats")
		cfg.Chat.ProjectsDir = filepath.Join(v, "projects")
	}
	if v := os.Getenv("SYNERGO_STORE_PATH"); v != "" {
		cfg.Data.StorePath = v
	}
	if v := os.Getenv("SYNERGO_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("SYNERGO_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
}
