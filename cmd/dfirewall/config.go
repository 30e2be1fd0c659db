package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reckless-huang/dfirewall/pkg/iptracker"
	"github.com/reckless-huang/dfirewall/pkg/metrics"
	"github.com/reckless-huang/dfirewall/pkg/providers"
	"github.com/reckless-huang/dfirewall/pkg/providers/tencent"
	"github.com/reckless-huang/dfirewall/pkg/types"
)

const defaultTemplate = "rules.json"

// Config 配置结构
type Config struct {
	Tencent  *TencentConfig         `yaml:"tencent,omitempty"`
	Template string                 `yaml:"template,omitempty"`
	Marker   string                 `yaml:"marker,omitempty"`
	IPSource iptracker.SourceConfig `yaml:"ip_source"`
	Metrics  MetricsConfig          `yaml:"metrics"`
	Watch    WatchConfig            `yaml:"watch"`
	Log      LogConfig              `yaml:"log"`
}

// TencentConfig 腾讯云配置
type TencentConfig struct {
	SecretID   string `yaml:"secret_id"`
	SecretKey  string `yaml:"secret_key"`
	Region     string `yaml:"region"`
	InstanceID string `yaml:"instance_id,omitempty"`
	Endpoint   string `yaml:"endpoint,omitempty"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

type WatchConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
}

// 日志配置结构
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// 保存配置
func saveConfig(cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(configFile, data, 0600)
}

// 读取配置
func loadConfig() (Config, error) {
	var cfg Config
	data, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	err = yaml.Unmarshal(data, &cfg)
	return cfg, err
}

func initLogger(cfg LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
}

// firstNonEmpty 按优先级返回第一个非空值
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// 按 命令行参数 > 配置文件 > 环境变量 的顺序组装云服务商配置
func firewallConfig(cfg Config) (types.FirewallConfig, error) {
	tc := cfg.Tencent
	if tc == nil {
		tc = &TencentConfig{}
	}

	sid := firstNonEmpty(secretID, tc.SecretID, os.Getenv("TENCENTCLOUD_SECRET_ID"), os.Getenv("SECRETID"))
	skey := firstNonEmpty(secretKey, tc.SecretKey, os.Getenv("TENCENTCLOUD_SECRET_KEY"), os.Getenv("SECRETKEY"))
	if sid == "" || skey == "" {
		return types.FirewallConfig{}, fmt.Errorf("%w: secret-id and secret-key are required (can be set via TENCENTCLOUD_SECRET_ID and TENCENTCLOUD_SECRET_KEY)", types.ErrInvalidConfig)
	}

	return types.FirewallConfig{
		Provider:   providers.TENCENT,
		Region:     firstNonEmpty(region, tc.Region, os.Getenv("TENCENTCLOUD_REGION")),
		Endpoint:   tc.Endpoint,
		InstanceID: firstNonEmpty(instanceID, tc.InstanceID, os.Getenv("INSTANCEID")),
		Credential: map[string]string{
			"secret_id":  sid,
			"secret_key": skey,
		},
	}, nil
}

// 创建 Provider 实例
func createProvider(cfg Config, reg *metrics.Registry) (*tencent.Provider, error) {
	fc, err := firewallConfig(cfg)
	if err != nil {
		return nil, err
	}
	slog.Debug("Using region", "region", fc.Region, "instance_id", fc.InstanceID)
	return providers.NewProvider(fc, tencent.WithMetrics(reg))
}

// 创建 IP 跟踪器
func createTracker(cfg Config) (*iptracker.Tracker, error) {
	src, err := iptracker.NewSource(cfg.IPSource)
	if err != nil {
		return nil, err
	}
	return iptracker.New(src, cfg.Marker), nil
}

// 按 命令行参数 > 配置文件 > 默认值 读取规则模板
func loadRuleTemplate(cfg Config, path string) (types.FirewallRuleTemplate, error) {
	path = firstNonEmpty(path, cfg.Template, defaultTemplate)
	tpl, err := types.LoadTemplateFile(path)
	if err != nil {
		return tpl, fmt.Errorf("load template %s failed: %w", path, err)
	}
	return tpl, nil
}

// 需要写 textfile 时才创建指标注册表
func newMetrics(cfg Config) *metrics.Registry {
	if cfg.Metrics.Textfile == "" {
		return nil
	}
	return metrics.New()
}
