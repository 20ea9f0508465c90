package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danderson/qi/internal/qigen"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zapcore"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	wantSvc := qigen.Service{
		Name:       "Calculator",
		Methods:    []string{"add::i(ii)"},
		Signals:    []string{"overflow::(l)"},
		Properties: []qigen.Property{{Name: "total", Type: "l", Writable: true}},
	}

	yamlPath := write("qi.yaml", `
logLevel: debug
timeout: 3s
service:
  name: Calculator
  methods: ["add::i(ii)"]
  signals: ["overflow::(l)"]
  properties:
    - name: total
      type: l
      writable: true
`)
	tomlPath := write("qi.toml", `
log_level = "debug"
timeout = "3s"

[service]
name = "Calculator"
methods = ["add::i(ii)"]
signals = ["overflow::(l)"]

[[service.properties]]
name = "total"
type = "l"
writable = true
`)

	for _, path := range []string{yamlPath, tomlPath} {
		cfg, err := loadConfig(path)
		if err != nil {
			t.Errorf("loadConfig(%s): %v", filepath.Base(path), err)
			continue
		}
		if cfg.level != zapcore.DebugLevel || cfg.timeout != 3*time.Second {
			t.Errorf("loadConfig(%s) level=%v timeout=%v, want debug and 3s", filepath.Base(path), cfg.level, cfg.timeout)
		}
		if diff := cmp.Diff(cfg.Service, wantSvc); diff != "" {
			t.Errorf("loadConfig(%s) wrong service (-got+want):\n%s", filepath.Base(path), diff)
		}
	}

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig with no file: %v", err)
	}
	if cfg.level != zapcore.InfoLevel || cfg.timeout != defaultTimeout {
		t.Errorf("defaults level=%v timeout=%v, want info and %v", cfg.level, cfg.timeout, defaultTimeout)
	}

	for _, bad := range []string{
		write("bad.json", `{}`),
		write("level.yaml", "logLevel: loud\n"),
		write("timeout.toml", `timeout = "-1s"`),
		filepath.Join(dir, "missing.yaml"),
	} {
		if _, err := loadConfig(bad); err == nil {
			t.Errorf("loadConfig(%s) succeeded, want error", filepath.Base(bad))
		}
	}
}
