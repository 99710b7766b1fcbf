package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.Channels != 1 || cfg.Audio.BitDepth != 16 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if cfg.STT.Language != "fr-FR" {
		t.Fatalf("expected fr-FR locale, got %q", cfg.STT.Language)
	}
	if cfg.BusRequired() {
		t.Fatal("default config should not require a bus")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ortheloquence.yaml")
	data := []byte(`
http:
  port: 9000
grammar:
  mode: languagetool
  endpoint: http://lt:8010
events:
  backend: nats
bus:
  embedded: true
  port: 14222
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.HTTP.Port)
	}
	if cfg.Grammar.Mode != "languagetool" || cfg.Grammar.Endpoint != "http://lt:8010" {
		t.Fatalf("unexpected grammar config: %+v", cfg.Grammar)
	}
	if !cfg.BusRequired() {
		t.Fatal("nats events backend should require a bus")
	}
	if cfg.STT.Language != "fr-FR" {
		t.Fatal("unset fields should keep defaults")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ORTHO_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("ORTHO_BUS_USERNAME", "alice")
	t.Setenv("ORTHO_BUS_PASSWORD", "secret")
	t.Setenv("ORTHO_BUS_TLS_INSECURE", "true")
	t.Setenv("ORTHO_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("ORTHO_AUDIO_COMMAND", "/usr/local/bin/ffmpeg")
	t.Setenv("ORTHO_STT_MODE", "exec")
	t.Setenv("ORTHO_STT_COMMAND", "whisper-json")
	t.Setenv("ORTHO_GRAMMAR_MODE", "exec")
	t.Setenv("ORTHO_GRAMMAR_COMMAND", "lt-json --lang fr")
	t.Setenv("ORTHO_SESSION_STORE_PATH", "./tmp.db")
	t.Setenv("ORTHO_SESSION_STORE_RETENTION_MODE", "session")
	t.Setenv("ORTHO_SESSION_STORE_RETENTION_DAYS", "7")
	t.Setenv("ORTHO_SESSION_STORE_MAX_SESSIONS", "123")
	t.Setenv("ORTHO_SESSION_STORE_VACUUM_ON_START", "true")
	t.Setenv("ORTHO_EVENTS_BACKEND", "kafka")
	t.Setenv("ORTHO_EVENTS_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.Audio.Command != "/usr/local/bin/ffmpeg" {
		t.Fatalf("expected audio command override")
	}
	if cfg.STT.Mode != "exec" || cfg.STT.Command != "whisper-json" {
		t.Fatalf("expected stt override, got %+v", cfg.STT)
	}
	if cfg.Grammar.Mode != "exec" || cfg.Grammar.Command != "lt-json --lang fr" {
		t.Fatalf("expected grammar override, got %+v", cfg.Grammar)
	}
	if cfg.SessionStore.Path != "./tmp.db" {
		t.Fatalf("expected session store path override")
	}
	if cfg.SessionStore.RetentionMode != "session" {
		t.Fatalf("expected retention mode override")
	}
	if cfg.SessionStore.RetentionDays != 7 {
		t.Fatalf("expected retention days override")
	}
	if cfg.SessionStore.MaxSessions != 123 {
		t.Fatalf("expected max sessions override")
	}
	if !cfg.SessionStore.VacuumOnStart {
		t.Fatalf("expected vacuum flag override")
	}
	if cfg.Events.Backend != "kafka" || len(cfg.Events.Brokers) != 2 {
		t.Fatalf("expected kafka events override, got %+v", cfg.Events)
	}
}

func TestValidateRejectsInvalidModes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"audio mode", func(c *Config) { c.Audio.Mode = "sox" }},
		{"audio exec without command", func(c *Config) { c.Audio.Command = "" }},
		{"bit depth", func(c *Config) { c.Audio.BitDepth = 24 }},
		{"stt mode", func(c *Config) { c.STT.Mode = "deepgram" }},
		{"stt exec without command", func(c *Config) { c.STT.Mode = "exec" }},
		{"grammar mode", func(c *Config) { c.Grammar.Mode = "hunspell" }},
		{"languagetool without endpoint", func(c *Config) { c.Grammar.Mode = "languagetool"; c.Grammar.Endpoint = "" }},
		{"retention mode", func(c *Config) { c.SessionStore.RetentionMode = "forever" }},
		{"kafka without brokers", func(c *Config) { c.Events.Backend = "kafka" }},
		{"events backend", func(c *Config) { c.Events.Backend = "redis" }},
		{"busapi concurrency", func(c *Config) { c.BusAPI.Enabled = true; c.BusAPI.Concurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
