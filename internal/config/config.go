package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cartseg/internal/segment"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the ambient application configuration: paths, the HTTP
// listen address, and the data-source settings. Run parameters (cut points,
// weights, thresholds) live in a segment.RunConfig document, not here.
type AppConfig struct {
	DataPath      string
	StoreDir      string
	ReportDir     string
	ListenAddr    string
	CSVPath       string
	MySQLDSN      string
	MySQLTable    string
	RunConfigPath string
}

// Load reads .env files (binary directory first, working directory second)
// and resolves the configuration from the environment, creating the store
// and report directories as needed.
func Load() (*AppConfig, error) {
	exeDir := ""
	if exePath, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env in working directory; using environment and binary-relative .env")
	}

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	cfg := &AppConfig{
		DataPath:      dataPath,
		StoreDir:      getEnv("STORE_DIR", filepath.Join(dataPath, "store")),
		ReportDir:     getEnv("REPORTS_DIR", filepath.Join(dataPath, "reports")),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8787"),
		CSVPath:       getEnv("CUSTOMER_CSV", ""),
		MySQLDSN:      getEnv("MYSQL_DSN", ""),
		MySQLTable:    getEnv("MYSQL_TABLE", "abandoned_carts"),
		RunConfigPath: getEnv("RUN_CONFIG", ""),
	}

	for _, dir := range []string{cfg.StoreDir, cfg.ReportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create directory")
		}
	}

	return cfg, nil
}

// LoadRunConfig reads a run-configuration JSON document. An empty path
// yields the zero RunConfig (every parameter derived or defaulted).
func LoadRunConfig(path string) (segment.RunConfig, error) {
	var rc segment.RunConfig
	if path == "" {
		return rc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rc, fmt.Errorf("read run config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &rc); err != nil {
		return rc, fmt.Errorf("parse run config %s: %w", path, err)
	}

	log.Debug().Str("path", path).Msg("Loaded run configuration")
	return rc, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
