package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env-default:"development"` // environment
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Gateways   GatewaysConfig   `yaml:"gateways"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
}

// JWTConfig настройка jwt
type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"60"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// GatewaysConfig — настройки платёжных шлюзов.
// Timeout ограничивает один вызов шлюза; Latency — имитация сетевой задержки.
// Учётные данные берутся только из переменных окружения и никогда не логируются.
type GatewaysConfig struct {
	Timeout      time.Duration `yaml:"timeout" env-default:"5s"`
	Latency      time.Duration `yaml:"latency" env-default:"150ms"`
	Card         GatewayConfig `yaml:"card"`
	Wallet       GatewayConfig `yaml:"wallet"`
	BankTransfer GatewayConfig `yaml:"bank_transfer"`
	HostedToken  GatewayConfig `yaml:"hosted_token"`
}

// GatewayConfig — настройки одного шлюза.
// По умолчанию шлюз работает в песочнице; боевой режим включается
// явным live: true в конфиге.
type GatewayConfig struct {
	APIKey string `yaml:"-"`
	Live   bool   `yaml:"live"`
}

// Sandbox сообщает, работает ли шлюз в песочнице
func (g GatewayConfig) Sandbox() bool {
	return !g.Live
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s", configPath)
	}

	// ключи шлюзов читаем напрямую: у каждого шлюза своя переменная окружения
	cfg.Gateways.Card.APIKey = os.Getenv("CARD_API_KEY")
	cfg.Gateways.Wallet.APIKey = os.Getenv("WALLET_API_KEY")
	cfg.Gateways.BankTransfer.APIKey = os.Getenv("BANK_TRANSFER_API_KEY")
	cfg.Gateways.HostedToken.APIKey = os.Getenv("HOSTED_TOKEN_API_KEY")

	return &cfg
}
