package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env:"LISTEN_BIND_IP" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env:"PORT" env-default:"8080"`
}

type TelegramConfig struct {
	ApiKey      string  `yaml:"api_key" env:"BOT_TOKEN" env-required:"true"`
	AdminIds    []int64 `yaml:"admin_ids" env:"ADMIN_IDS" env-separator:","`
	GroupId     int64   `yaml:"group_id" env:"VIP_CHAT_ID" env-required:"true"`
	GroupUrl    string  `yaml:"group_url" env:"VIP_GROUP_URL" env-default:""`
	PreviewsUrl string  `yaml:"previews_url" env:"PREVIEWS_URL" env-default:"https://t.me"`
	WelcomeText string  `yaml:"welcome_text" env:"WELCOME_TEXT" env-default:""`
	// forward ERROR log records to admins
	LogErrors bool `yaml:"log_errors" env:"TELEGRAM_LOG_ERRORS" env-default:"true"`
}

type PushinPayConfig struct {
	Token      string `yaml:"token" env:"PUSHIN_PAY_TOKEN" env-default:""`
	ApiUrl     string `yaml:"api_url" env:"PUSHIN_PAY_API_URL" env-default:"https://api.pushinpay.com.br"`
	TimeoutSec int    `yaml:"timeout_sec" env:"PUSHIN_PAY_TIMEOUT" env-default:"30"`
}

type DatabaseConfig struct {
	// sqlite3, mysql, postgres or mongo
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite3"`
	Dsn    string `yaml:"dsn" env:"DB_PATH" env-default:"vipbot.db"`
}

type MongoConfig struct {
	Host     string `yaml:"host" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:"vipbot"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Prefix   string `yaml:"prefix" env-default:"vipbot"`
	TtlHours int    `yaml:"ttl_hours" env-default:"24"`
}

type SubscriptionConfig struct {
	InviteTtlMin     int    `yaml:"invite_ttl_min" env-default:"60"`
	SweepIntervalSec int    `yaml:"sweep_interval_sec" env-default:"60"`
	Renewal          string `yaml:"renewal" env:"RENEWAL_POLICY" env-default:"reset"`
	Location         string `yaml:"location" env-default:"America/Sao_Paulo"`
}

type Config struct {
	Env          string             `yaml:"env" env:"ENV" env-default:"local"`
	BaseUrl      string             `yaml:"base_url" env:"BASE_URL" env-default:""`
	Listen       Listen             `yaml:"listen"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	PushinPay    PushinPayConfig    `yaml:"pushin_pay"`
	Database     DatabaseConfig     `yaml:"database"`
	Mongo        MongoConfig        `yaml:"mongo"`
	Redis        RedisConfig        `yaml:"redis"`
	Subscription SubscriptionConfig `yaml:"subscription"`
}

func (c *Config) InviteTtl() time.Duration {
	return time.Duration(c.Subscription.InviteTtlMin) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Subscription.SweepIntervalSec) * time.Second
}

func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.PushinPay.TimeoutSec) * time.Second
}

func (c *Config) WebhookUrl() string {
	return c.BaseUrl + "/pushin/webhook"
}

func (c *Config) QrCodeUrl(chargeId string) string {
	return c.BaseUrl + "/qrcode/" + chargeId
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite3", "mysql", "postgres", "mongo":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Subscription.Renewal {
	case "reset", "extend":
	default:
		return fmt.Errorf("unsupported renewal policy %q", c.Subscription.Renewal)
	}
	if c.Subscription.InviteTtlMin <= 0 || c.Subscription.SweepIntervalSec <= 0 {
		return fmt.Errorf("invite ttl and sweep interval must be positive")
	}
	if _, err := time.LoadLocation(c.Subscription.Location); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	return nil
}

var instance *Config
var once sync.Once

// MustLoad reads the YAML file at path, applies environment overrides and
// exits the process when the result is unusable. If path is empty only the
// environment is read.
func MustLoad(path string) *Config {
	once.Do(func() {
		conf, err := Load(path)
		if err != nil {
			log.Fatal(err)
		}
		instance = conf
	})
	return instance
}

func Load(path string) (*Config, error) {
	conf := &Config{}
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, conf)
	} else {
		err = cleanenv.ReadEnv(conf)
	}
	if err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("config: %s; %s", err, desc)
	}
	if err = conf.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return conf, nil
}
