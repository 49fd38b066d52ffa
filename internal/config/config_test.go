package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validSingleConfig = `
node:
  id: 1
  locator: 16
  port: 8080
  bufferSizeBytes: 1200
  loopback: false
  multicastGroups: ["ff02::1:10"]
sink:
  id: 65535
  sendIntervalSecs: 5
  sinkLogPath: "./sink.csv"
  resultsPath: "./results.csv"
battery:
  maxSends: 1000
control:
  keepaliveIntervalSecs: 20
  maxRetries: 3
  ageUntilRetryIntervals: 3
logger:
  active: true
  level: info
  encoding: console
  mode: stdout
telemetry:
  tracing:
    enabled: false
`

func TestLoadConfigSingle(t *testing.T) {
	path := writeTempConfig(t, validSingleConfig)
	cfg, err := LoadConfig(path, "")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Node.ID != 1 || cfg.Node.Locator != 16 {
		t.Fatalf("unexpected node config: %+v", cfg.Node)
	}
	if err := cfg.ValidateConfig(); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
}

func TestLoadConfigSection(t *testing.T) {
	content := "nodeA:\n" + indent(validSingleConfig) + "nodeB:\n" + indent(validSingleConfig)
	path := writeTempConfig(t, content)

	cfg, err := LoadConfig(path, "nodeA")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Node.ID != 1 {
		t.Fatalf("unexpected node id: %d", cfg.Node.ID)
	}

	if _, err := LoadConfig(path, "missing"); err == nil {
		t.Fatalf("expected error for missing section")
	}
}

func indent(s string) string {
	out := ""
	for _, line := range splitLines(s) {
		if line == "" {
			continue
		}
		out += "  " + line + "\n"
	}
	return out
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func TestValidateConfigRejectsBadMulticastGroup(t *testing.T) {
	content := validSingleConfig
	path := writeTempConfig(t, content)
	cfg, err := LoadConfig(path, "")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.Node.MulticastGroups = []string{"not-an-ip"}
	if err := cfg.ValidateConfig(); err == nil {
		t.Fatalf("expected validation error for bad multicast group")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validSingleConfig)
	cfg, err := LoadConfig(path, "")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	t.Setenv("NODE_PORT", "9999")
	t.Setenv("LOGGER_LEVEL", "debug")
	cfg.ApplyEnvOverrides()
	if cfg.Node.Port != 9999 {
		t.Fatalf("expected port override, got %d", cfg.Node.Port)
	}
	if cfg.Logger.Level != "debug" {
		t.Fatalf("expected logger level override, got %s", cfg.Logger.Level)
	}
}
