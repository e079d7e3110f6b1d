package metrics

import "strings"

// Config 指标配置
//
//	metrics:
//	  enabled: true
//	  service_name: "snowflake"
//	  version: "v1.0.0"
//	  path: "/metrics"
type Config struct {
	// Enabled 为 false 时 New 返回空操作 Meter
	Enabled bool `mapstructure:"enabled"`

	// ServiceName 作为 Resource 的 service.name
	ServiceName string `mapstructure:"service_name"`

	// Version 作为 Resource 的 service.version
	Version string `mapstructure:"version"`

	// Path 指标抓取路径，由 HTTP 服务挂载
	Path string `mapstructure:"path"`
}

// NewDevDefaultConfig 开发环境默认配置
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
		Path:        "/metrics",
	}
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "snowflake"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if !strings.HasPrefix(c.Path, "/") {
		c.Path = "/" + c.Path
	}
}
