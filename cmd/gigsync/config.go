package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/ignatzorin/gig-escrow-backend/internal/client/pendingsync"
	"github.com/ignatzorin/gig-escrow-backend/internal/client/txmonitor"
)

// Config хранит настройки клиента синхронизации из gigsync.yaml.
type Config struct {
	APIURL       string        `yaml:"api_url"`
	Token        string        `yaml:"token"`
	JournalPath  string        `yaml:"journal_path"`
	Network      string        `yaml:"network"`
	MaxRetries   int           `yaml:"max_retries"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	LogLevel     string        `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		APIURL:       "http://localhost:8080/api",
		JournalPath:  "pending-sync.json",
		Network:      "devnet",
		MaxRetries:   pendingsync.DefaultMaxRetries,
		PollInterval: txmonitor.DefaultInterval,
		MaxAttempts:  txmonitor.DefaultMaxAttempts,
		LogLevel:     "info",
	}
}

// loadConfig читает yaml поверх значений по умолчанию. Отсутствующий файл не ошибка.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("gigsync: чтение %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("gigsync: разбор %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.APIURL == "" {
		return errors.New("gigsync: api_url обязателен")
	}
	if c.JournalPath == "" {
		return errors.New("gigsync: journal_path обязателен")
	}
	return nil
}

func configPathFromArgs(args []string, fallback string) string {
	for i, a := range args {
		name := strings.TrimLeft(a, "-")
		if a == name {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return fallback
}
