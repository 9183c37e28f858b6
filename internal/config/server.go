package config

import "fmt"

// ModelType enumerates the recognizer models spec.md §6 names. Model
// internals are out of scope; this is purely a selector string passed to the
// external recognizer collaborator.
type ModelType string

const (
	ModelFunASRNano  ModelType = "fun_asr_nano"
	ModelSenseVoice  ModelType = "sensevoice"
	ModelParaformer  ModelType = "paraformer"
)

// HTTPConfig groups the http_* keys of spec.md §6.
type HTTPConfig struct {
	Enable      bool    `mapstructure:"enable"`
	Addr        string  `mapstructure:"addr"`
	Port        int     `mapstructure:"port"`
	SegDuration float64 `mapstructure:"seg_duration"`
	SegOverlap  float64 `mapstructure:"seg_overlap"`
	TimeoutSecs float64 `mapstructure:"timeout_secs"`
	MaxUploadMB int     `mapstructure:"max_upload_mb"`
}

// TranslateConfig groups the translate_* keys of spec.md §6.
type TranslateConfig struct {
	CommandEnable bool   `mapstructure:"command_enable"`
	ServerURL     string `mapstructure:"server_url"`
	SourceLang    string `mapstructure:"source_lang"`
	TimeoutMs     int    `mapstructure:"timeout_ms"`
	APIToken      string `mapstructure:"api_token"`
}

// ServerConfig holds every server-recognized key from spec.md §6.
type ServerConfig struct {
	Addr   string `mapstructure:"addr"`
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`

	ModelType ModelType `mapstructure:"model_type"`

	QueueMaxTotal     int `mapstructure:"queue_max_total"`
	QueueMaxPerClient int `mapstructure:"queue_max_per_client"`

	HTTP      HTTPConfig      `mapstructure:"http"`
	Translate TranslateConfig `mapstructure:"translate"`
}

// ListenAddr formats Addr:Port for net.Listen.
func (c ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

// HTTPListenAddr formats the HTTP API's own listen address.
func (c ServerConfig) HTTPListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Addr, c.HTTP.Port)
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              "0.0.0.0",
		Port:              6016,
		ModelType:         ModelParaformer,
		QueueMaxTotal:     64,
		QueueMaxPerClient: 8,
		HTTP: HTTPConfig{
			Enable:      true,
			Addr:        "0.0.0.0",
			Port:        6017,
			SegDuration: 60,
			SegOverlap:  4,
			TimeoutSecs: 30,
			MaxUploadMB: 200,
		},
		Translate: TranslateConfig{
			SourceLang: "auto",
			TimeoutMs:  5000,
		},
	}
}

// LoadServerConfig layers defaults, an optional config file, and
// CAPSWRITER_-prefixed environment variables, identically to
// LoadClientConfig.
func LoadServerConfig(path string) (ServerConfig, error) {
	v := newViper()

	defaults := defaultServerConfig()
	setDefaultsFromStruct(v, "", defaults)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return ServerConfig{}, fmt.Errorf("read server config %s: %w", path, err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("unmarshal server config: %w", err)
	}
	if cfg.HTTP.TimeoutSecs < 5 {
		cfg.HTTP.TimeoutSecs = 5 // spec.md §4.8: timeout_secs lower bound 5s
	}
	return cfg, nil
}
