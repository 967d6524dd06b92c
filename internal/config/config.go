package config

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"8000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"30"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN            string `env:"DSN,required"`
		ConnectTimeout int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout   int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		MaxOpenConns   int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns   int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime    int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Email    string `env:"EMAIL,required"`
		Password string `env:"PASSWORD,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Secret     string        `env:"SECRET,required"`
		AccessTTL  time.Duration `env:"ACCESS_TTL" envDefault:"5m"`
		RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"24h"`
		// 为 true 时刷新 access token 前会重新检查账号是否存在且未被停用
		RefreshCheckActive bool `env:"REFRESH_CHECK_ACTIVE" envDefault:"true"`
	} `envPrefix:"JWT_"`
	Cookie struct {
		Secure   bool   `env:"SECURE" envDefault:"true"`
		SameSite string `env:"SAME_SITE" envDefault:"none"`
		Domain   string `env:"DOMAIN"`
	} `envPrefix:"COOKIE_"`
	Seed struct {
		Password string `env:"PASSWORD" envDefault:"password123"`
		Domain   string `env:"DOMAIN" envDefault:"example.com"`
	} `envPrefix:"SEED_"`
	Email struct {
		SMTP struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
		TemplateDir string `env:"TEMPLATE_DIR" envDefault:"./templates"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		Queue          string `env:"QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host             string `env:"HOST" envDefault:"localhost"`
		Port             int    `env:"PORT" envDefault:"6379"`
		Password         string `env:"PASSWORD"`
		OperationTimeout int    `env:"OPERATION_TIMEOUT" envDefault:"5"`
	} `envPrefix:"REDIS_"`
	OTP struct {
		Expiration  int `env:"EXPIRATION" envDefault:"900"` // 15 分钟
		MaxAttempts int `env:"MAX_ATTEMPTS" envDefault:"5"`
	} `envPrefix:"OTP_"`
	S3 struct {
		Endpoint      string `env:"ENDPOINT,required"`
		Region        string `env:"REGION" envDefault:"us-east-1"`
		Bucket        string `env:"BUCKET,required"`
		AccessKey     string `env:"ACCESS_KEY,required"`
		SecretKey     string `env:"SECRET_KEY,required"`
		PublicBaseURL string `env:"PUBLIC_BASE_URL,required"`
		UsePathStyle  bool   `env:"USE_PATH_STYLE" envDefault:"true"`
	} `envPrefix:"S3_"`
	Upload struct {
		MaxMemory   int64 `env:"MAX_MEMORY" envDefault:"33554432"`   // 32 MiB
		MaxFileSize int64 `env:"MAX_FILE_SIZE" envDefault:"10485760"` // 10 MiB
	} `envPrefix:"UPLOAD_"`
	Metrics struct {
		Port string `env:"PORT" envDefault:"9090"`
	} `envPrefix:"METRICS_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}

// CookieSameSite 将配置中的字符串转换为 http.SameSite，无法识别时使用 None
func (c *Config) CookieSameSite() http.SameSite {
	switch strings.ToLower(c.Cookie.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteNoneMode
	}
}
