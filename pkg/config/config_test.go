package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setTestDirs keeps XDG lookups inside the test sandbox.
func setTestDirs(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	return tmpDir
}

func TestLoadConfigMissingFile(t *testing.T) {
	tmpDir := setTestDirs(t)

	cfg, err := LoadConfig(filepath.Join(tmpDir, "nope", "config.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.StorageDir == "" {
		t.Error("Expected default storage dir, got empty string")
	}
	if len(cfg.Search.Fields) != 2 || cfg.Search.Fields[0] != "title" {
		t.Errorf("Expected default fields, got: %v", cfg.Search.Fields)
	}
	if cfg.Search.Limit != 1 {
		t.Errorf("Expected default limit 1, got: %d", cfg.Search.Limit)
	}
	if cfg.Search.Timeout.Duration != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got: %v", cfg.Search.Timeout.Duration)
	}
}

func TestLoadConfigParsesFile(t *testing.T) {
	tmpDir := setTestDirs(t)

	content := `storage_dir = "` + tmpDir + `"
listen_addr = "localhost:9999"
user_agent = "tomes-test/1.0"

[search]
fields = ["key", "title", "first_publish_year"]
limit = 5
timeout = "5s"
requests_per_second = 3.0
`
	path := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.ListenAddr != "localhost:9999" {
		t.Errorf("Expected listen addr localhost:9999, got: %s", cfg.ListenAddr)
	}
	if len(cfg.Search.Fields) != 3 || cfg.Search.Fields[2] != "first_publish_year" {
		t.Errorf("Expected parsed fields, got: %v", cfg.Search.Fields)
	}
	if cfg.Search.Limit != 5 {
		t.Errorf("Expected limit 5, got: %d", cfg.Search.Limit)
	}
	if cfg.Search.Timeout.Duration != 5*time.Second {
		t.Errorf("Expected timeout 5s, got: %v", cfg.Search.Timeout.Duration)
	}
	if cfg.Search.RequestsPerSecond != 3.0 {
		t.Errorf("Expected 3 rps, got: %v", cfg.Search.RequestsPerSecond)
	}
}

func TestLoadConfigAppliesDefaultsToPartialFile(t *testing.T) {
	tmpDir := setTestDirs(t)

	path := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(path, []byte(`listen_addr = "localhost:7070"`), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.ListenAddr != "localhost:7070" {
		t.Errorf("Expected configured listen addr, got: %s", cfg.ListenAddr)
	}
	if cfg.StorageDir == "" {
		t.Error("Expected storage dir filled in, got empty string")
	}
	if len(cfg.Search.Fields) == 0 || cfg.Search.Limit != 1 {
		t.Errorf("Expected search defaults filled in, got: %+v", cfg.Search)
	}
}

func TestLoadConfigRejectsNegativeLimit(t *testing.T) {
	tmpDir := setTestDirs(t)

	path := filepath.Join(tmpDir, "config.toml")
	content := "[search]\nlimit = -2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("Expected error for negative limit, got nil")
	}
}

func TestSaveTemplateConfig(t *testing.T) {
	tmpDir := setTestDirs(t)

	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatalf("GetDefaultConfig: %v", err)
	}

	path := filepath.Join(tmpDir, "config.toml")
	if err := cfg.SaveTemplateConfig(path); err != nil {
		t.Fatalf("SaveTemplateConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading template: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "[search]") {
		t.Errorf("Expected [search] section in template, got: %s", content)
	}
	if !strings.Contains(content, cfg.StorageDir) {
		t.Errorf("Expected storage dir %s substituted into template", cfg.StorageDir)
	}

	if err := cfg.SaveTemplateConfig(path); err == nil {
		t.Error("Expected error when template target already exists, got nil")
	}
}

func TestClientConfigBridge(t *testing.T) {
	cfg := &Config{
		UserAgent: "tomes-test/1.0",
		Search: SearchConfig{
			Fields:            []string{"title"},
			Limit:             4,
			Timeout:           Duration{9 * time.Second},
			RequestsPerSecond: 1.5,
		},
	}

	cc := cfg.ClientConfig()
	if len(cc.Fields) != 1 || cc.Fields[0] != "title" {
		t.Errorf("Expected fields [title], got: %v", cc.Fields)
	}
	if cc.Limit != 4 {
		t.Errorf("Expected limit 4, got: %d", cc.Limit)
	}
	if cc.UserAgent != "tomes-test/1.0" {
		t.Errorf("Expected user agent carried over, got: %s", cc.UserAgent)
	}
	if cc.Timeout != 9*time.Second {
		t.Errorf("Expected timeout 9s, got: %v", cc.Timeout)
	}
	if cc.RequestsPerSecond != 1.5 {
		t.Errorf("Expected 1.5 rps, got: %v", cc.RequestsPerSecond)
	}
}

func TestDurationText(t *testing.T) {
	tests := []struct {
		text string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"1m30s", 90 * time.Second},
		{"500ms", 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var d Duration
			if err := d.UnmarshalText([]byte(tt.text)); err != nil {
				t.Fatalf("UnmarshalText: %v", err)
			}
			if d.Duration != tt.want {
				t.Errorf("Expected %v, got: %v", tt.want, d.Duration)
			}

			out, err := d.MarshalText()
			if err != nil {
				t.Fatalf("MarshalText: %v", err)
			}
			var back Duration
			if err := back.UnmarshalText(out); err != nil {
				t.Fatalf("UnmarshalText round trip: %v", err)
			}
			if back.Duration != tt.want {
				t.Errorf("Expected round trip %v, got: %v", tt.want, back.Duration)
			}
		})
	}
}
