package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	TrailShare TrailShareConfig `yaml:"trailshare"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type KafkaConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	TrackChangedTopicName string `yaml:"track_changed_topic_name"`
}

type TrailShareConfig struct {
	HTTPAddr        string `yaml:"http_addr"`
	CORSAllowOrigin string `yaml:"cors_allow_origin"`

	TrackCacheTTLSeconds int   `yaml:"track_cache_ttl_seconds"`
	RateLimitPerMinute   int64 `yaml:"rate_limit_per_minute"`
	MaxTrackBytes        int64 `yaml:"max_track_bytes"`

	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	StaticDir string `yaml:"static_dir"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
