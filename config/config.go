package config

import (
	"encoding/json"
	"log"
	"os"
)

type Config struct {
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Redis    RedisConfig    `json:"redis"`
	Kafka    KafkaConfig    `json:"kafka"`
}

type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

type AuthConfig struct {
	JWTSecret   string `json:"jwt_secret"`
	TokenExpiry int    `json:"token_expiry"` // in hours
}

// RedisConfig 聊天广播与限流共用同一个 Redis
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"` // 密码，没有则留空
	DB       int    `json:"db"`       // 数据库编号
	PoolSize int    `json:"pool_size"`
}

// KafkaConfig 课程事件（lesson.created）的投递配置
// Brokers 为空时降级为进程内分发，见 kafka 包
type KafkaConfig struct {
	Brokers       []string `json:"brokers"`
	Topic         string   `json:"topic"`
	GroupID       string   `json:"group_id"`
	Username      string   `json:"username"`
	Password      string   `json:"password"`
	SASLMechanism string   `json:"sasl_mechanism"` // SCRAM-SHA-256 / SCRAM-SHA-512，留空用 PLAIN
	UseTLS        bool     `json:"use_tls"`
	CertFile      string   `json:"cert_file"`
	KeyFile       string   `json:"key_file"`
	CAFile        string   `json:"ca_file"`
}

func LoadConfig() (config Config, err error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.json"
	}
	file, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer func(file *os.File) {
		closeErr := file.Close()
		if closeErr != nil {
			log.Printf("Error closing config file: %v", closeErr)
		}
	}(file)
	decoder := json.NewDecoder(file)
	err = decoder.Decode(&config)
	if err != nil {
		return config, err
	}
	if config.Kafka.Topic == "" {
		config.Kafka.Topic = "driveadmin.lesson.events"
	}
	if config.Kafka.GroupID == "" {
		config.Kafka.GroupID = "driveadmin-chat"
	}
	return config, nil
}
