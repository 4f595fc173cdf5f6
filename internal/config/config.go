package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-yaml/yaml"
)

const (
	DefaultPath           = "/etc/memorial/config.yaml"
	DefaultListen         = ":8000"
	DefaultSignedURLTTL   = time.Hour
	DefaultMaxUploadBytes = 50 << 20
	DefaultRepositoryPath = "/var/lib/memorial"
)

type Config struct {
	Site   Site   `yaml:"site"`
	Server Server `yaml:"server"`
}

type Site struct {
	FQDN           string        `yaml:"fqdn"`
	JWTSecret      string        `yaml:"jwtSecret"`
	AdminEmails    []string      `yaml:"adminEmails"`
	SignedURLTTL   time.Duration `yaml:"signedURLTTL"`
	MaxUploadBytes int64         `yaml:"maxUploadBytes"`
}

type Server struct {
	Listen         string `yaml:"listen"`
	PostgresDsn    string `yaml:"postgresDsn"`
	RedisAddr      string `yaml:"redisAddr"`
	RedisDB        int    `yaml:"redisDB"`
	MemcachedAddr  string `yaml:"memcachedAddr"`
	EnableTrace    bool   `yaml:"enableTrace"`
	TraceEndpoint  string `yaml:"traceEndpoint"`
	RepositoryPath string `yaml:"repositoryPath"`
}

// Path returns the config file named by MEMORIAL_CONFIG, or DefaultPath.
func Path() string {
	if p := os.Getenv("MEMORIAL_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Site.JWTSecret == "" {
		return Config{}, fmt.Errorf("%s: site.jwtSecret must be set", path)
	}

	config.applyDefaults()

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.RepositoryPath == "" {
		c.Server.RepositoryPath = DefaultRepositoryPath
	}
	if c.Site.SignedURLTTL <= 0 {
		c.Site.SignedURLTTL = DefaultSignedURLTTL
	}
	if c.Site.MaxUploadBytes <= 0 {
		c.Site.MaxUploadBytes = DefaultMaxUploadBytes
	}
}
