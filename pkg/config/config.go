package config

import (
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

type Config struct {
	// Port Settings
	ServerAddr string `json:"serverAddr"` // The address the server endpoint binds to.

	// Public URLs used when building links in emails and HTML pages
	FrontendURL string `json:"frontendURL"` // The web application, e.g. https://cobrew.app
	BaseURL     string `json:"baseURL"`     // This server as seen from a mail client

	Auth struct {
		AccessTokenSecret      string `json:"accessTokenSecret"`
		RefreshTokenSecret     string `json:"refreshTokenSecret"`
		AccessTokenExpiryHour  int    `json:"accessTokenExpiryHour"`
		RefreshTokenExpiryHour int    `json:"refreshTokenExpiryHour"`
	} `json:"auth"`

	Postgres struct {
		Host     string `json:"host"`
		Port     string `json:"port"`
		DBName   string `json:"dbname"`
		User     string `json:"user"`
		Password string `json:"password"`
		SSLMode  string `json:"sslmode"`
		TimeZone string `json:"TimeZone"`
		// Replicas are DSNs of read-only replicas serving the notification read paths.
		Replicas     []string `json:"replicas"`
		MaxIdleConns int      `json:"maxIdleConns"`
		MaxOpenConns int      `json:"maxOpenConns"`
	} `json:"postgres"`

	// Redis carries the change feed between replicas. Empty Addr keeps the feed in-process.
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
		Channel  string `json:"channel"`
	} `json:"redis"`

	Mail struct {
		Driver string `json:"driver"` // smtp, resend or log
		From   string `json:"from"`
		SMTP   struct {
			Host     string `json:"host"`
			Port     int    `json:"port"`
			User     string `json:"user"`
			Password string `json:"password"`
		} `json:"smtp"`
		Resend struct {
			APIKey   string `json:"apiKey"`
			Endpoint string `json:"endpoint"`
		} `json:"resend"`
	} `json:"mail"`

	Outbox struct {
		Schedule           string `json:"schedule"` // cron spec, e.g. "@every 10s"
		BatchSize          int    `json:"batchSize"`
		PoolSize           int    `json:"poolSize"`
		MaxAttempts        int    `json:"maxAttempts"`
		LeaseSeconds       int    `json:"leaseSeconds"`
		BaseBackoffSeconds int    `json:"baseBackoffSeconds"`
		MaxBackoffSeconds  int    `json:"maxBackoffSeconds"`
	} `json:"outbox"`

	Respond struct {
		RequireToken bool   `json:"requireToken"`
		TokenSecret  string `json:"tokenSecret"`
		TokenTTLHour int    `json:"tokenTTLHour"`
	} `json:"respond"`

	Log struct {
		Verbosity  int    `json:"verbosity"`
		File       string `json:"file"` // rotated with lumberjack when set
		MaxSizeMB  int    `json:"maxSizeMB"`
		MaxBackups int    `json:"maxBackups"`
		MaxAgeDays int    `json:"maxAgeDays"`
	} `json:"log"`
}

var (
	once   sync.Once
	config *Config
)

func GetConfig() *Config {
	once.Do(func() {
		config = initConfig()
	})
	return config
}

func IsDebugMode() bool {
	return gin.Mode() == gin.DebugMode
}

// NewDefaultConfig returns a Config holding the values used for keys the
// YAML file leaves out.
func NewDefaultConfig() *Config {
	c := &Config{}
	c.ServerAddr = ":8088"
	c.FrontendURL = "http://localhost:5173"
	c.BaseURL = "http://localhost:8088"

	c.Auth.AccessTokenExpiryHour = 1
	c.Auth.RefreshTokenExpiryHour = 168

	c.Postgres.Port = "5432"
	c.Postgres.SSLMode = "disable"
	c.Postgres.TimeZone = "UTC"
	c.Postgres.MaxIdleConns = 5
	c.Postgres.MaxOpenConns = 10

	c.Redis.Channel = "cobrew:changes"

	c.Mail.Driver = "log"
	c.Mail.From = "CO-brew <notifications@cobrew.app>"
	c.Mail.SMTP.Port = 587
	c.Mail.Resend.Endpoint = "https://api.resend.com/emails"

	c.Outbox.Schedule = "@every 10s"
	c.Outbox.BatchSize = 32
	c.Outbox.PoolSize = 8
	c.Outbox.MaxAttempts = 8
	c.Outbox.LeaseSeconds = 60
	c.Outbox.BaseBackoffSeconds = 30
	c.Outbox.MaxBackoffSeconds = 3600

	c.Respond.RequireToken = true
	c.Respond.TokenTTLHour = 7 * 24

	c.Log.MaxSizeMB = 100
	c.Log.MaxBackups = 5
	c.Log.MaxAgeDays = 30
	return c
}

// InitConfig initializes the configuration by reading the configuration file.
// If the environment is set to debug, it reads the debug-config.yaml file.
// Otherwise, it reads the config.yaml file from ConfigMap.
func initConfig() *Config {
	config := NewDefaultConfig()
	var configPath string
	if IsDebugMode() {
		if os.Getenv("COBREW_DEBUG_CONFIG_PATH") != "" {
			configPath = os.Getenv("COBREW_DEBUG_CONFIG_PATH")
		} else {
			configPath = "./etc/debug-config.yaml"
		}
	} else {
		configPath = "/etc/config/config.yaml"
	}
	klog.Info("config path: ", configPath)

	err := readConfig(configPath, config)
	if err != nil {
		klog.Error("init config", err)
		panic(err)
	}
	if config.Respond.TokenSecret == "" {
		config.Respond.TokenSecret = config.Auth.AccessTokenSecret
	}
	return config
}

func readConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	// keys missing from the file keep their defaults
	return yaml.Unmarshal(data, config)
}
