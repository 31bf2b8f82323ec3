package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    Server    `yaml:"server"`
	GitHub    GitHub    `yaml:"github"`
	Refresh   Refresh   `yaml:"refresh"`
	Cache     Cache     `yaml:"cache"`
	Download  Download  `yaml:"download"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Log       Log       `yaml:"log"`
}

type Server struct {
	Port int `yaml:"port"`
}

type GitHub struct {
	Owner    string        `yaml:"owner"`
	Repo     string        `yaml:"repo"`
	Endpoint string        `yaml:"endpoint"`  // defaults to https://api.github.com
	TokenEnv string        `yaml:"token_env"` // env var holding the API token
	Timeout  time.Duration `yaml:"timeout"`
}

type Refresh struct {
	Interval time.Duration `yaml:"interval"` // index TTL between upstream listings
}

type Cache struct {
	Dir     string        `yaml:"dir"`
	MaxSize int64         `yaml:"max_size"` // bytes
	MaxAge  time.Duration `yaml:"max_age"`
}

type Download struct {
	BaseURL string `yaml:"base_url"`
}

type RateLimit struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

type Log struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Filename   string `yaml:"filename"`    // log file path
	MaxSize    int    `yaml:"max_size"`    // megabytes
	MaxBackups int    `yaml:"max_backups"` // number of backups
	MaxAge     int    `yaml:"max_age"`     // days
	Compress   bool   `yaml:"compress"`    // compress rotated files
}

var (
	config *Config
	once   sync.Once
)

// Load loads the configuration from the default config file
func Load() (*Config, error) {
	return LoadFromFile("config/config.yaml")
}

// LoadFromFile loads the configuration from the specified file
func LoadFromFile(path string) (*Config, error) {
	var err error
	once.Do(func() {
		config = &Config{}
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return
		}
		err = yaml.Unmarshal(data, config)
		if err != nil {
			return
		}
		applyDefaults(config)
		err = os.MkdirAll(config.Cache.Dir, 0755)
	})
	return config, err
}

// Get returns the current configuration
func Get() *Config {
	return config
}

func applyDefaults(c *Config) {
	if c.GitHub.Endpoint == "" {
		c.GitHub.Endpoint = "https://api.github.com"
	}
	if c.GitHub.TokenEnv == "" {
		c.GitHub.TokenEnv = "GITHUB_TOKEN"
	}
	if c.GitHub.Timeout == 0 {
		c.GitHub.Timeout = 30 * time.Second
	}
	if c.Refresh.Interval == 0 {
		c.Refresh.Interval = 5 * time.Minute
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "data/assets"
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = 512 << 20
	}
	if c.Cache.MaxAge == 0 {
		c.Cache.MaxAge = 30 * 24 * time.Hour
	}
}
