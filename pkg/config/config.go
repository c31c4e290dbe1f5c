package config

import "time"

// Storage backends
const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

// Fan-out modes
const (
	FanoutRedis = "redis"
	FanoutLocal = "local"
)

// Chat definition chat_service YAML structure
type Chat struct {
	Port     string         `mapstructure:"port"`
	Storage  string         `mapstructure:"storage"`
	MongoSQL DatabaseConfig `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
}

// RealtimeConfig websocket / presence tuning
type RealtimeConfig struct {
	PingPeriod              time.Duration `mapstructure:"ping_period"`
	WriteWait               time.Duration `mapstructure:"write_wait"`
	SendBuffer              int           `mapstructure:"send_buffer"`
	RequestTimeout          time.Duration `mapstructure:"request_timeout"`
	PresenceTTL             time.Duration `mapstructure:"presence_ttl"`
	ClearTypingOnDisconnect bool          `mapstructure:"clear_typing_on_disconnect"`
	Fanout                  string        `mapstructure:"fanout"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
	// Addr 單機模式, 未設定 sentinel 時使用
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// MinIOConfig attachment storage
type MinIOConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	URLExpiry     time.Duration `mapstructure:"url_expiry"`
	RetryInterval int           `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// KafkaConfig message lifecycle event log
type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// Client definition chat_client YAML structure
type Client struct {
	ServerURL         string        `mapstructure:"server_url"`
	Token             string        `mapstructure:"token"`
	UserID            string        `mapstructure:"user_id"`
	TypingIdle        time.Duration `mapstructure:"typing_idle"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	PageLimit         int           `mapstructure:"page_limit"`
}

// SetDefaults fill zero values
func (c *Chat) SetDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Storage == "" {
		c.Storage = StorageMongo
	}
	if c.Realtime.PingPeriod <= 0 {
		c.Realtime.PingPeriod = 30 * time.Second
	}
	if c.Realtime.WriteWait <= 0 {
		c.Realtime.WriteWait = 10 * time.Second
	}
	if c.Realtime.SendBuffer <= 0 {
		c.Realtime.SendBuffer = 128
	}
	if c.Realtime.RequestTimeout <= 0 {
		c.Realtime.RequestTimeout = 10 * time.Second
	}
	if c.Realtime.PresenceTTL <= 0 {
		c.Realtime.PresenceTTL = 24 * time.Hour
	}
	if c.Realtime.Fanout == "" {
		c.Realtime.Fanout = FanoutRedis
	}
	if c.MinIO.URLExpiry <= 0 {
		c.MinIO.URLExpiry = 15 * time.Minute
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "chat.message.lifecycle"
	}
}

// SetDefaults fill zero values
func (c *Client) SetDefaults() {
	if c.TypingIdle <= 0 {
		c.TypingIdle = 2 * time.Second
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = 3 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.PageLimit <= 0 {
		c.PageLimit = 50
	}
}
