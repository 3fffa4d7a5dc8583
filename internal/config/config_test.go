package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
env: prod
base_url: https://vip.example
telegram:
  api_key: "123:abc"
  group_id: -100123
  admin_ids: [1, 2]
database:
  driver: postgres
  dsn: postgres://vip@localhost/vip
subscription:
  renewal: extend
`)
	conf, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Env != "prod" || conf.Telegram.GroupId != -100123 || len(conf.Telegram.AdminIds) != 2 {
		t.Errorf("conf = %+v", conf)
	}
	if conf.Database.Driver != "postgres" || conf.Subscription.Renewal != "extend" {
		t.Errorf("database = %+v subscription = %+v", conf.Database, conf.Subscription)
	}
	if conf.Listen.Port != "8080" || conf.PushinPay.ApiUrl != "https://api.pushinpay.com.br" {
		t.Errorf("defaults not applied: %+v %+v", conf.Listen, conf.PushinPay)
	}
	if conf.InviteTtl() != time.Hour || conf.SweepInterval() != time.Minute || conf.GatewayTimeout() != 30*time.Second {
		t.Errorf("durations = %v %v %v", conf.InviteTtl(), conf.SweepInterval(), conf.GatewayTimeout())
	}
	if conf.WebhookUrl() != "https://vip.example/pushin/webhook" || conf.QrCodeUrl("c1") != "https://vip.example/qrcode/c1" {
		t.Errorf("urls = %q %q", conf.WebhookUrl(), conf.QrCodeUrl("c1"))
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"driver": `
telegram: {api_key: "k", group_id: -1}
database: {driver: oracle}
`,
		"renewal": `
telegram: {api_key: "k", group_id: -1}
subscription: {renewal: stack}
`,
		"location": `
telegram: {api_key: "k", group_id: -1}
subscription: {location: Mars/Olympus}
`,
		"sweep": `
telegram: {api_key: "k", group_id: -1}
subscription: {sweep_interval_sec: -5}
`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.yml")); err == nil {
		t.Error("missing file accepted")
	}
}
