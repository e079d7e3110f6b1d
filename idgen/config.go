package idgen

import (
	"strings"

	"github.com/ceyewan/snowflake/xerrors"
)

// 节点号获取方式
const (
	MethodStatic   = "static"   // 使用 NodeID
	MethodMAC      = "mac"      // 网卡 MAC 哈希
	MethodIP       = "ip"       // IPv4 地址哈希
	MethodHostname = "hostname" // 主机名哈希
	MethodIdentity = "identity" // Identity 字符串哈希
)

// 时钟回拨策略
const (
	// ClockBackwardReset 回拨时序列号归零并继续使用更小的时间戳，可能与历史 ID 重复
	ClockBackwardReset = "reset"
	// ClockBackwardReject 回拨时返回 ErrClockBackwards，状态不变
	ClockBackwardReject = "reject"
	// ClockBackwardReuse 回拨不超过 MaxDriftMs 时沿用上次时间戳，超过则拒绝
	ClockBackwardReuse = "reuse"
)

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	// Method 节点号获取方式，默认 "mac"
	Method string `yaml:"method" json:"method" mapstructure:"method"`

	// NodeID Method="static" 时使用，范围 [0, MaxNodeID]
	NodeID int64 `yaml:"node_id" json:"node_id" mapstructure:"node_id"`

	// Identity Method="identity" 时参与哈希的字符串
	Identity string `yaml:"identity" json:"identity" mapstructure:"identity"`

	// Epoch 纪元（Unix 毫秒），默认 DefaultEpoch
	Epoch int64 `yaml:"epoch" json:"epoch" mapstructure:"epoch"`

	// ClockBackward 时钟回拨策略，默认 "reset"
	ClockBackward string `yaml:"clock_backward" json:"clock_backward" mapstructure:"clock_backward"`

	// MaxDriftMs ClockBackward="reuse" 时允许的最大回拨毫秒数，默认 5
	MaxDriftMs int64 `yaml:"max_drift_ms" json:"max_drift_ms" mapstructure:"max_drift_ms"`
}

func (c *SnowflakeConfig) setDefaults() {
	if c.Method == "" {
		c.Method = MethodMAC
	}
	c.Method = strings.ToLower(c.Method)
	if c.Epoch == 0 {
		c.Epoch = DefaultEpoch
	}
	if c.ClockBackward == "" {
		c.ClockBackward = ClockBackwardReset
	}
	c.ClockBackward = strings.ToLower(c.ClockBackward)
	if c.MaxDriftMs == 0 {
		c.MaxDriftMs = 5
	}
}

func (c *SnowflakeConfig) validate() error {
	switch c.Method {
	case MethodStatic, MethodMAC, MethodIP, MethodHostname:
	case MethodIdentity:
		if c.Identity == "" {
			return xerrors.WithCode(ErrInvalidInput, "identity_required")
		}
	default:
		return xerrors.WithCode(ErrInvalidInput, "unsupported_method")
	}
	if c.Epoch < 0 {
		return xerrors.WithCode(ErrInvalidInput, "epoch_negative")
	}
	switch c.ClockBackward {
	case ClockBackwardReset, ClockBackwardReject, ClockBackwardReuse:
	default:
		return xerrors.WithCode(ErrInvalidInput, "unsupported_clock_backward_policy")
	}
	if c.MaxDriftMs < 0 {
		return xerrors.WithCode(ErrInvalidInput, "max_drift_negative")
	}
	return nil
}

// AllocatorConfig 节点号分配器配置
type AllocatorConfig struct {
	// Driver 后端类型: "redis" | "etcd"，默认 "redis"
	Driver string `yaml:"driver" json:"driver" mapstructure:"driver"`

	// KeyPrefix 键前缀，默认 "snowflake:node"
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix" mapstructure:"key_prefix"`

	// MaxID 可分配范围 [0, MaxID)，默认 1024，不能超过布局允许的节点数
	MaxID int `yaml:"max_id" json:"max_id" mapstructure:"max_id"`

	// TTL 租约秒数，默认 30
	TTL int `yaml:"ttl" json:"ttl" mapstructure:"ttl"`
}

func (c *AllocatorConfig) setDefaults() {
	if c.Driver == "" {
		c.Driver = "redis"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "snowflake:node"
	}
	if c.MaxID <= 0 {
		c.MaxID = MaxNodeID + 1
	}
	if c.TTL <= 0 {
		c.TTL = 30
	}
}

func (c *AllocatorConfig) validate(layout Layout) error {
	if c.Driver != "redis" && c.Driver != "etcd" {
		return xerrors.WithCode(ErrInvalidInput, "unsupported_driver")
	}
	if int64(c.MaxID) > layout.MaxNodeID()+1 {
		return xerrors.WithCode(ErrInvalidInput, "max_id_out_of_range")
	}
	if c.TTL < 3 {
		return xerrors.WithCode(ErrInvalidInput, "ttl_too_short")
	}
	return nil
}
