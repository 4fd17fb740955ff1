package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
)

// clearEnv unsets a variable for the test while restoring the original
// value afterwards.
func clearEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func clearAppEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATA_PATH", "STORE_DIR", "REPORTS_DIR", "LISTEN_ADDR",
		"CUSTOMER_CSV", "MYSQL_DSN", "MYSQL_TABLE", "RUN_CONFIG",
	} {
		clearEnv(t, key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearAppEnv(t)
	dataPath := t.TempDir()
	t.Setenv("DATA_PATH", dataPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.DataPath != dataPath {
		t.Errorf("DataPath = %s, want %s", cfg.DataPath, dataPath)
	}
	if want := filepath.Join(dataPath, "store"); cfg.StoreDir != want {
		t.Errorf("StoreDir = %s, want %s", cfg.StoreDir, want)
	}
	if want := filepath.Join(dataPath, "reports"); cfg.ReportDir != want {
		t.Errorf("ReportDir = %s, want %s", cfg.ReportDir, want)
	}
	if cfg.ListenAddr != ":8787" {
		t.Errorf("ListenAddr = %s, want :8787", cfg.ListenAddr)
	}
	if cfg.MySQLTable != "abandoned_carts" {
		t.Errorf("MySQLTable = %s, want abandoned_carts", cfg.MySQLTable)
	}
	if cfg.CSVPath != "" || cfg.MySQLDSN != "" || cfg.RunConfigPath != "" {
		t.Errorf("optional sources = %q/%q/%q, want all empty", cfg.CSVPath, cfg.MySQLDSN, cfg.RunConfigPath)
	}

	// Load creates the store and report directories.
	for _, dir := range []string{cfg.StoreDir, cfg.ReportDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s was not created: %v", dir, err)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearAppEnv(t)
	dataPath := t.TempDir()
	storeDir := filepath.Join(dataPath, "artifacts")
	t.Setenv("DATA_PATH", dataPath)
	t.Setenv("STORE_DIR", storeDir)
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("MYSQL_DSN", "user:pw@tcp(db:3306)/carts")
	t.Setenv("MYSQL_TABLE", "events")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.StoreDir != storeDir {
		t.Errorf("StoreDir = %s, want %s", cfg.StoreDir, storeDir)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr = %s, want 127.0.0.1:9000", cfg.ListenAddr)
	}
	if cfg.MySQLDSN != "user:pw@tcp(db:3306)/carts" || cfg.MySQLTable != "events" {
		t.Errorf("MySQL settings = %q/%q, want override values", cfg.MySQLDSN, cfg.MySQLTable)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T)
		want  string
	}{
		{
			"Set",
			func(t *testing.T) { t.Setenv("CARTSEG_TEST_KEY", "configured") },
			"configured",
		},
		{
			"Unset",
			func(t *testing.T) { clearEnv(t, "CARTSEG_TEST_KEY") },
			"fallback",
		},
		{
			"SetButEmpty",
			func(t *testing.T) { t.Setenv("CARTSEG_TEST_KEY", "") },
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)
			if got := getEnv("CARTSEG_TEST_KEY", "fallback"); got != tt.want {
				t.Errorf("getEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadRunConfig(t *testing.T) {
	t.Run("EmptyPathYieldsZeroConfig", func(t *testing.T) {
		rc, err := LoadRunConfig("")
		if err != nil {
			t.Fatalf("LoadRunConfig(\"\") returned error: %v", err)
		}
		if rc.AOVLow != nil || rc.Weights != nil || rc.MinSegmentSize != 0 {
			t.Errorf("zero config expected, got %+v", rc)
		}
	})

	t.Run("ReadsDocument", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.json")
		doc := `{"aov_low": 50, "aov_high": 150, "min_segment_size": 250, "split_oversize": true}`
		if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
			t.Fatal(err)
		}

		rc, err := LoadRunConfig(path)
		if err != nil {
			t.Fatalf("LoadRunConfig() returned error: %v", err)
		}
		if rc.AOVLow == nil || *rc.AOVLow != 50 {
			t.Errorf("AOVLow = %v, want 50", rc.AOVLow)
		}
		if rc.AOVHigh == nil || *rc.AOVHigh != 150 {
			t.Errorf("AOVHigh = %v, want 150", rc.AOVHigh)
		}
		if rc.MinSegmentSize != 250 || !rc.SplitOversize {
			t.Errorf("MinSegmentSize/SplitOversize = %d/%v, want 250/true", rc.MinSegmentSize, rc.SplitOversize)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadRunConfig(filepath.Join(t.TempDir(), "absent.json"))
		if err == nil {
			t.Fatal("LoadRunConfig(missing) should fail")
		}
	})

	t.Run("MalformedDocument", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.json")
		if err := os.WriteFile(path, []byte(`{"aov_low": `), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadRunConfig(path); err == nil {
			t.Fatal("LoadRunConfig(malformed) should fail")
		}
	})
}

// .env values are single-quoted in the deployment templates; godotenv must
// preserve embedded double quotes.
func TestGodotenvQuoting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `TEST_VAR='value with "double quotes"'`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("godotenv.Read() returned error: %v", err)
	}

	want := `value with "double quotes"`
	if env["TEST_VAR"] != want {
		t.Errorf("TEST_VAR = %q, want %q", env["TEST_VAR"], want)
	}
}
