package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind        string `yaml:"bind"`
	Port        int    `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

type Config struct {
	RuntimeName  string             `yaml:"runtime_name"`
	Environment  string             `yaml:"environment"`
	HTTP         HTTPConfig         `yaml:"http"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Bus          BusConfig          `yaml:"bus"`
	Audio        AudioConfig        `yaml:"audio"`
	STT          STTConfig          `yaml:"stt"`
	Grammar      GrammarConfig      `yaml:"grammar"`
	Exercises    ExercisesConfig    `yaml:"exercises"`
	SessionStore SessionStoreConfig `yaml:"session_store"`
	Events       EventsConfig       `yaml:"events"`
	BusAPI       BusAPIConfig       `yaml:"busapi"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// AudioConfig controls how uploads are normalized before recognition.
type AudioConfig struct {
	Mode       string `yaml:"mode"` // exec, mock
	Command    string `yaml:"command"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	BitDepth   int    `yaml:"bit_depth"`
	TempDir    string `yaml:"temp_dir"`
}

type STTConfig struct {
	Mode            string `yaml:"mode"` // mock, exec, google
	Command         string `yaml:"command"`
	ModelPath       string `yaml:"model_path"`
	Language        string `yaml:"language"`
	CredentialsFile string `yaml:"credentials_file"`
	TimeoutMS       int    `yaml:"timeout_ms"`
}

type GrammarConfig struct {
	Mode     string `yaml:"mode"` // mock, languagetool, exec
	Endpoint string `yaml:"endpoint"`
	Command  string `yaml:"command"`
	Language string `yaml:"language"`
}

type ExercisesConfig struct {
	Path string `yaml:"path"`
}

type SessionStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type EventsConfig struct {
	Backend     string   `yaml:"backend"` // none, nats, kafka
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix"`
}

type BusAPIConfig struct {
	Enabled     bool `yaml:"enabled"`
	Concurrency int  `yaml:"max_concurrency"`
}

func Default() Config {
	return Config{
		RuntimeName: "ortheloquence",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:        "0.0.0.0",
			Port:        8000,
			MaxUploadMB: 25,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       false,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Audio: AudioConfig{
			Mode:       "exec",
			Command:    "ffmpeg",
			SampleRate: 44100,
			Channels:   1,
			BitDepth:   16,
		},
		STT: STTConfig{
			Mode:      "mock",
			Language:  "fr-FR",
			TimeoutMS: 60000,
		},
		Grammar: GrammarConfig{
			Mode:     "mock",
			Endpoint: "http://localhost:8081",
			Language: "fr",
		},
		SessionStore: SessionStoreConfig{
			Path:          "./data/ortheloquence.db",
			RetentionMode: "persistent",
			RetentionDays: 0,
			MaxSessions:   10000,
		},
		Events: EventsConfig{
			Backend:     "none",
			TopicPrefix: "ortheloquence",
		},
		BusAPI: BusAPIConfig{
			Enabled:     false,
			Concurrency: 4,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// BusRequired reports whether any configured component needs a NATS connection.
func (c Config) BusRequired() bool {
	return c.Bus.Embedded || c.BusAPI.Enabled || c.Events.Backend == "nats"
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "ORTHO_RUNTIME_NAME")
	overrideString(&cfg.Environment, "ORTHO_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "ORTHO_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "ORTHO_HTTP_PORT")
	overrideInt(&cfg.HTTP.MaxUploadMB, "ORTHO_HTTP_MAX_UPLOAD_MB")
	overrideString(&cfg.Telemetry.LogLevel, "ORTHO_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "ORTHO_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "ORTHO_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "ORTHO_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "ORTHO_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "ORTHO_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "ORTHO_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "ORTHO_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "ORTHO_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "ORTHO_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "ORTHO_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "ORTHO_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "ORTHO_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Audio.Mode, "ORTHO_AUDIO_MODE")
	overrideString(&cfg.Audio.Command, "ORTHO_AUDIO_COMMAND")
	overrideInt(&cfg.Audio.SampleRate, "ORTHO_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "ORTHO_AUDIO_CHANNELS")
	overrideInt(&cfg.Audio.BitDepth, "ORTHO_AUDIO_BIT_DEPTH")
	overrideString(&cfg.Audio.TempDir, "ORTHO_AUDIO_TEMP_DIR")
	overrideString(&cfg.STT.Mode, "ORTHO_STT_MODE")
	overrideString(&cfg.STT.Command, "ORTHO_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "ORTHO_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "ORTHO_STT_LANGUAGE")
	overrideString(&cfg.STT.CredentialsFile, "ORTHO_STT_CREDENTIALS_FILE")
	overrideInt(&cfg.STT.TimeoutMS, "ORTHO_STT_TIMEOUT_MS")
	overrideString(&cfg.Grammar.Mode, "ORTHO_GRAMMAR_MODE")
	overrideString(&cfg.Grammar.Endpoint, "ORTHO_GRAMMAR_ENDPOINT")
	overrideString(&cfg.Grammar.Command, "ORTHO_GRAMMAR_COMMAND")
	overrideString(&cfg.Grammar.Language, "ORTHO_GRAMMAR_LANGUAGE")
	overrideString(&cfg.Exercises.Path, "ORTHO_EXERCISES_PATH")
	overrideString(&cfg.SessionStore.Path, "ORTHO_SESSION_STORE_PATH")
	overrideString(&cfg.SessionStore.RetentionMode, "ORTHO_SESSION_STORE_RETENTION_MODE")
	overrideInt(&cfg.SessionStore.RetentionDays, "ORTHO_SESSION_STORE_RETENTION_DAYS")
	overrideInt(&cfg.SessionStore.MaxSessions, "ORTHO_SESSION_STORE_MAX_SESSIONS")
	overrideBool(&cfg.SessionStore.VacuumOnStart, "ORTHO_SESSION_STORE_VACUUM_ON_START")
	overrideString(&cfg.Events.Backend, "ORTHO_EVENTS_BACKEND")
	overrideStringSlice(&cfg.Events.Brokers, "ORTHO_EVENTS_BROKERS")
	overrideString(&cfg.Events.TopicPrefix, "ORTHO_EVENTS_TOPIC_PREFIX")
	overrideBool(&cfg.BusAPI.Enabled, "ORTHO_BUSAPI_ENABLED")
	overrideInt(&cfg.BusAPI.Concurrency, "ORTHO_BUSAPI_MAX_CONCURRENCY")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		return errors.New("http.max_upload_mb must be positive")
	}
	if cfg.BusRequired() {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Audio.Mode {
	case "exec", "mock":
	default:
		return errors.New("audio.mode must be one of exec|mock")
	}
	if cfg.Audio.Mode == "exec" && cfg.Audio.Command == "" {
		return errors.New("audio.command must be set when mode=exec")
	}
	if cfg.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if cfg.Audio.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	if cfg.Audio.BitDepth != 16 {
		return errors.New("audio.bit_depth must be 16")
	}
	switch cfg.STT.Mode {
	case "mock", "exec", "google":
	default:
		return errors.New("stt.mode must be one of mock|exec|google")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	if cfg.STT.Language == "" {
		return errors.New("stt.language must not be empty")
	}
	switch cfg.Grammar.Mode {
	case "mock", "languagetool", "exec":
	default:
		return errors.New("grammar.mode must be one of mock|languagetool|exec")
	}
	if cfg.Grammar.Mode == "languagetool" && cfg.Grammar.Endpoint == "" {
		return errors.New("grammar.endpoint must be set when mode=languagetool")
	}
	if cfg.Grammar.Mode == "exec" && cfg.Grammar.Command == "" {
		return errors.New("grammar.command must be set when mode=exec")
	}
	if cfg.Grammar.Language == "" {
		return errors.New("grammar.language must not be empty")
	}
	switch cfg.SessionStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("session_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.SessionStore.RetentionMode != "ephemeral" && cfg.SessionStore.Path == "" {
		return errors.New("session_store.path must not be empty")
	}
	if cfg.SessionStore.RetentionDays < 0 {
		return errors.New("session_store.retention_days must be >= 0")
	}
	switch cfg.Events.Backend {
	case "none", "nats":
	case "kafka":
		if len(cfg.Events.Brokers) == 0 {
			return errors.New("events.brokers must not be empty when backend=kafka")
		}
	default:
		return errors.New("events.backend must be one of none|nats|kafka")
	}
	if cfg.BusAPI.Enabled && cfg.BusAPI.Concurrency <= 0 {
		return errors.New("busapi.max_concurrency must be >= 1")
	}
	return nil
}
