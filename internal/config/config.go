package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	Server struct {
		ReadTimeout  int `mapstructure:"readTimeout"`
		WriteTimeout int `mapstructure:"writeTimeout"`
	} `mapstructure:"server"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Enabled bool     `mapstructure:"enabled"`
	} `mapstructure:"kafka"`
	Stripe struct {
		APIKey        string `mapstructure:"apiKey"`
		WebhookSecret string `mapstructure:"webhookSecret"`
	} `mapstructure:"stripe"`
	Worker struct {
		BaseURL        string `mapstructure:"baseUrl"`
		TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
		SharedSecret   string `mapstructure:"sharedSecret"`
	} `mapstructure:"worker"`
	Jobs struct {
		PollIntervalSeconds int `mapstructure:"pollIntervalSeconds"`
		PollAttempts        int `mapstructure:"pollAttempts"`
	} `mapstructure:"jobs"`
}

// PollInterval возвращает интервал опроса задач.
func (c *Config) PollInterval() time.Duration {
	if c.Jobs.PollIntervalSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Jobs.PollIntervalSeconds) * time.Second
}

// PollAttempts возвращает предельное число попыток опроса.
func (c *Config) PollAttempts() int {
	if c.Jobs.PollAttempts <= 0 {
		return 15
	}
	return c.Jobs.PollAttempts
}

// WorkerTimeout возвращает таймаут уведомления воркера.
func (c *Config) WorkerTimeout() time.Duration {
	if c.Worker.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Worker.TimeoutSeconds) * time.Second
}

// LoadConfig загружает конфигурацию из файла или переменных окружения.
func LoadConfig(envPath string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env опционален: в контейнере переменные приходят из окружения
		_ = godotenv.Load(envPath)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv() // Чтение переменных окружения

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
