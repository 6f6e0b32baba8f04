package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
bus:
  port: /dev/ttyACM0
  baud: 9600
  read_timeout: 5s
instrument:
  plus: true
plot:
  gnuplot: /usr/local/bin/gnuplot
redis:
  enabled: true
  addr: redis:6379
  channel: lab_dmm
log:
  level: debug
  format: json
monitor:
  enabled: true
  metrics_port: 9191
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Bus.Port != "/dev/ttyACM0" || cfg.Bus.Baud != 9600 {
		t.Errorf("总线配置解析错误: %+v", cfg.Bus)
	}
	if cfg.Bus.ReadTimeout != 5*time.Second {
		t.Errorf("read_timeout = %v", cfg.Bus.ReadTimeout)
	}
	if !cfg.Instrument.Plus {
		t.Error("plus标志未解析")
	}
	if cfg.Plot.Gnuplot != "/usr/local/bin/gnuplot" {
		t.Errorf("gnuplot路径 = %q", cfg.Plot.Gnuplot)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Channel != "lab_dmm" {
		t.Errorf("redis配置解析错误: %+v", cfg.Redis)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("日志配置解析错误: %+v", cfg.Log)
	}
	if cfg.Monitor.MetricsPort != 9191 {
		t.Errorf("metrics_port = %d", cfg.Monitor.MetricsPort)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/no/such/config.yaml"); err == nil {
		t.Error("缺失的配置文件应返回错误")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Bus.Port == "" || cfg.Bus.Baud == 0 {
		t.Error("默认总线配置不完整")
	}
	if cfg.Instrument.Plus {
		t.Error("默认应为基本型号")
	}
	if cfg.Plot.Gnuplot != "gnuplot" {
		t.Errorf("默认gnuplot = %q", cfg.Plot.Gnuplot)
	}
	if cfg.Redis.Enabled || cfg.Monitor.Enabled {
		t.Error("Redis和Monitor默认应关闭")
	}
}
