package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v2"

	"textclf/classifier"
	"textclf/db"
	thttp "textclf/http"
	"textclf/logger"
)

// ModelConfig 单个模型的服务配置
type ModelConfig struct {
	Name              string `yaml:"name"`
	Algorithm         string `yaml:"algorithm"`
	classifier.Config `yaml:",inline"`
	Watch             bool `yaml:"watch"`
}

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Logging logger.Config `yaml:"logging"`
	Models  []ModelConfig `yaml:"models"`
}

func main() {
	// 1. Load config
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(config.Logging)
	defer logger.Sync()

	// 2. Initialize database
	if config.Database.Path != "" {
		if err := db.InitDB(config.Database.Path); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.CloseDB()
		logger.With("main").Infof("database initialized at %s", config.Database.Path)
	}

	// 3. Build the serving set
	classifier.RegisterBuiltins()
	if err := serveModels(config.Models); err != nil {
		log.Fatalf("Failed to build models: %v", err)
	}
	defer thttp.ResetServing()

	// 4. Start HTTP server
	server := thttp.NewServer(serverConfig(config))
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.With("main").Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.With("main").Warnf("server forced to shutdown: %v", err)
	}
}

func serveModels(models []ModelConfig) error {
	for _, mc := range models {
		if mc.Name == "" || mc.Algorithm == "" {
			return fmt.Errorf("model entries need a name and an algorithm")
		}

		clf, err := classifier.New(mc.Algorithm, mc.Config)
		if err != nil {
			return fmt.Errorf("building %s: %w", mc.Name, err)
		}

		served := thttp.NewServedModel(mc.Name, mc.Algorithm, clf)
		if mc.Watch {
			if err := served.WatchArtifact(); err != nil {
				return fmt.Errorf("watching %s: %w", mc.Name, err)
			}
		}
		thttp.AddServedModel(served)
		logger.With("main").Infof("serving %s (%s)", mc.Name, mc.Algorithm)

		if db.Ready() {
			rec := &db.ModelRecord{
				Name:         mc.Name,
				Algorithm:    mc.Algorithm,
				ArtifactPath: served.ArtifactPath(),
			}
			if err := db.UpsertModelRecord(rec); err != nil {
				logger.With("main").Warnf("recording model %s: %v", mc.Name, err)
			}
		}
	}
	return nil
}

func serverConfig(config *Config) thttp.ServerConfig {
	sc := thttp.DefaultServerConfig()
	if config.Server.Port > 0 {
		sc.Port = config.Server.Port
	}
	if config.Server.TimeoutSeconds > 0 {
		sc.Timeout = time.Duration(config.Server.TimeoutSeconds) * time.Second
	}
	if len(config.Server.AllowedOrigins) > 0 {
		sc.AllowedOrigins = config.Server.AllowedOrigins
	}
	return sc
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
