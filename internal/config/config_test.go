package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestLoad_ConfigYAML(t *testing.T) {
	path := filepath.Join("..", "..", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.Host == "" {
		t.Fatalf("expected database.host to be set")
	}
	if cfg.RabbitMQ.Port == 0 {
		t.Fatalf("expected rabbitmq.port to be set")
	}
	if cfg.Redis.Port == 0 {
		t.Fatalf("expected redis.port to be set")
	}
	if cfg.POS.TableCount == 0 {
		t.Fatalf("expected pos.table_count to be set")
	}
}

func TestLoad_UnknownSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := writeFile(path, "nonsense:\n  key: value\n"); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown section")
	}
}
