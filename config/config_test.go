package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: a-very-long-test-secret\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 应成功: %v", err)
	}
	if cfg.Lending.GraceDays != 7 {
		t.Errorf("期望 grace_days=7，实际=%d", cfg.Lending.GraceDays)
	}
	if cfg.Lending.MaxOpenLoans != 3 {
		t.Errorf("期望 max_open_loans=3，实际=%d", cfg.Lending.MaxOpenLoans)
	}
	if cfg.Lending.SuspensionThresholdCents != 5000 {
		t.Errorf("期望 suspension_threshold_cents=5000，实际=%d", cfg.Lending.SuspensionThresholdCents)
	}
	if cfg.Lending.LockTimeout != 5*time.Second {
		t.Errorf("期望 lock_timeout=5s，实际=%s", cfg.Lending.LockTimeout)
	}
	if cfg.RabbitMQ.Exchange != "lending.exchange" {
		t.Errorf("期望 exchange=lending.exchange，实际=%s", cfg.RabbitMQ.Exchange)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: a-very-long-test-secret\nlending:\n  grace_days: 10\n")
	t.Setenv("LENDING_LENDING_GRACE_DAYS", "14")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 应成功: %v", err)
	}
	if cfg.Lending.GraceDays != 14 {
		t.Errorf("环境变量应覆盖配置文件，期望 14，实际=%d", cfg.Lending.GraceDays)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080},
			Auth:    AuthConfig{JWTSecret: "a-very-long-test-secret"},
			Lending: LendingConfig{GraceDays: 7, MaxOpenLoans: 3},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}

	cases := map[string]func(c *Config){
		"密钥为空":   func(c *Config) { c.Auth.JWTSecret = "" },
		"密钥过短":   func(c *Config) { c.Auth.JWTSecret = "short" },
		"端口越界":   func(c *Config) { c.Server.Port = 70000 },
		"宽限期为负":  func(c *Config) { c.Lending.GraceDays = -1 },
		"借阅上限为零": func(c *Config) { c.Lending.MaxOpenLoans = 0 },
		"阈值为负":   func(c *Config) { c.Lending.SuspensionThresholdCents = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("期望校验失败")
			}
		})
	}
}

func TestLoad_SecretFromEnv(t *testing.T) {
	t.Setenv("LENDING_AUTH_JWT_SECRET", "secret-from-environment")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("Load 应成功: %v", err)
	}
	if cfg.Auth.JWTSecret != "secret-from-environment" {
		t.Errorf("期望从环境变量读取密钥，实际=%q", cfg.Auth.JWTSecret)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("期望 port=9090，实际=%d", cfg.Server.Port)
	}
}
