package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Application != DefaultApplication {
		t.Fatalf("Application = %q, want %q", cfg.Application, DefaultApplication)
	}
	if cfg.HTTPTimeoutSeconds != 30 {
		t.Fatalf("HTTPTimeoutSeconds = %d, want 30", cfg.HTTPTimeoutSeconds)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	data := `{"log_level": "debug", "properties": {"claimstore": {"claim_size_threshold": "1024"}}}`
	if err := os.WriteFile(configPath, []byte(data), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if got := cfg.Properties["claimstore"]["claim_size_threshold"]; got != "1024" {
		t.Fatalf("Properties[claimstore][claim_size_threshold] = %q, want %q", got, "1024")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"http_timeout_seconds": 60, "disabled_tools": ["claimstore_config_set"],
		"properties": {"claimstore": {"check_in_directory": "/global/in", "check_out_directory": "/global/out"}}}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	repoDir := filepath.Join(repoRoot, ".claimstore")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"http_timeout_seconds": 5, "disabled_tools": ["claimstore_redeem"],
		"properties": {"claimstore": {"check_in_directory": "/repo/in"}}}`
	if err := os.WriteFile(filepath.Join(repoDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.HTTPTimeoutSeconds != 5 {
		t.Errorf("HTTPTimeoutSeconds = %d, want 5 (repo override)", cfg.HTTPTimeoutSeconds)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	props := cfg.Properties["claimstore"]
	if props["check_in_directory"] != "/repo/in" {
		t.Errorf("check_in_directory = %q, want %q (repo override)", props["check_in_directory"], "/repo/in")
	}
	if props["check_out_directory"] != "/global/out" {
		t.Errorf("check_out_directory = %q, want %q (global kept)", props["check_out_directory"], "/global/out")
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoDir := t.TempDir()

	cfg, err := LoadWithRepo(globalDir, repoDir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.Application != DefaultApplication {
		t.Errorf("Application = %q, want %q", cfg.Application, DefaultApplication)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{LogLevel: "info", DBMaxOpenConns: 5}
	overlay := &Config{LogLevel: "warn"}

	result := Merge(base, overlay)

	if result.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q (overlay)", result.LogLevel, "warn")
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	base := &Config{S3: S3Config{UsePathStyle: true}}
	overlay := &Config{}

	result := Merge(base, overlay)

	if !result.S3.UsePathStyle {
		t.Error("S3.UsePathStyle should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"claimstore_redeem", "claimstore_jobs"}}
	overlay := &Config{DisabledTools: []string{"claimstore_jobs", " claimstore_config_set "}}

	result := Merge(base, overlay)

	if len(result.DisabledTools) != 3 {
		t.Fatalf("DisabledTools = %v, want 3 entries (merged, deduped)", result.DisabledTools)
	}
	if result.DisabledTools[2] != "claimstore_config_set" {
		t.Errorf("DisabledTools[2] = %q, want trimmed %q", result.DisabledTools[2], "claimstore_config_set")
	}
}

func TestFindRepoConfig_InParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	repoDir := filepath.Join(tmpDir, ".claimstore")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	configPath := filepath.Join(repoDir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	found := FindRepoConfig(subdir)
	if found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}
