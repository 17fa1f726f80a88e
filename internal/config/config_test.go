package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/linemk/order-payments/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestMustLoadByPath_Success(t *testing.T) {
	// Устанавливаем обязательные переменные окружения
	os.Setenv("DB_PASSWORD", "mypassword")
	os.Setenv("JWT_SECRET", "mysecret")
	os.Setenv("CARD_API_KEY", "card-key")
	defer os.Unsetenv("DB_PASSWORD")
	defer os.Unsetenv("JWT_SECRET")
	defer os.Unsetenv("CARD_API_KEY")

	// Пример содержимого конфигурационного файла
	content := `
env: "local"
http_server:
  address: "localhost:8080"
  timeout: "4s"
  idle_timeout: "60s"
database:
  host: "localhost"
  port: 5432
  user: "postgres"
  name: "orders"
jwt:
  token_ttl: 60
migrations:
  path: "./migrations"
gateways:
  timeout: "5s"
  latency: "150ms"
  card:
    live: false
  hosted_token:
    live: true
`
	// Создаем временный файл с конфигурацией
	tmpFile, err := os.CreateTemp("", "config_test_*.yaml")
	assert.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(content)
	assert.NoError(t, err)
	assert.NoError(t, tmpFile.Close())

	cfg := config.MustLoadByPath(tmpFile.Name())

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Address)
	assert.Equal(t, 4*time.Second, cfg.HTTPServer.Timeout)
	assert.Equal(t, "mypassword", cfg.Database.Password)
	assert.Equal(t, "mysecret", cfg.JWT.Secret)
	assert.Equal(t, 5*time.Second, cfg.Gateways.Timeout)
	assert.Equal(t, 150*time.Millisecond, cfg.Gateways.Latency)
	assert.Equal(t, "card-key", cfg.Gateways.Card.APIKey)
	// если live не указан, шлюз остаётся в песочнице
	assert.True(t, cfg.Gateways.Card.Sandbox())
	assert.True(t, cfg.Gateways.Wallet.Sandbox())
	// явный live: true в файле должен переключать шлюз в боевой режим
	assert.False(t, cfg.Gateways.HostedToken.Sandbox())
}

func TestMustLoadByPath_FileNotFound(t *testing.T) {
	assert.Panics(t, func() {
		config.MustLoadByPath("/nonexistent/config.yaml")
	})
}
