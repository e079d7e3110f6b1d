package nodeid

import (
	"context"
	"encoding/hex"
	"net"
	"os"
	"strings"

	"github.com/ceyewan/snowflake/xerrors"
)

// Source 提供机器的稳定标识字符串
type Source interface {
	// Name 返回来源名称，用于日志
	Name() string
	// Identity 返回标识，获取失败时返回包装了 ErrIdentityUnavailable 的错误
	Identity(ctx context.Context) (string, error)
}

type funcSource struct {
	name string
	fn   func(ctx context.Context) (string, error)
}

func (s *funcSource) Name() string { return s.name }

func (s *funcSource) Identity(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := s.fn(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", xerrors.Wrapf(ErrIdentityUnavailable, "%s: empty identity", s.name)
	}
	return id, nil
}

// SourceFunc 用函数构造 Source
func SourceFunc(name string, fn func(ctx context.Context) (string, error)) Source {
	return &funcSource{name: name, fn: fn}
}

// interfaces 便于测试替换
var interfaces = net.Interfaces

// MACSource 使用第一个已启用、非回环且带硬件地址的网卡 MAC
//
// 格式为去掉分隔符的小写十六进制，如 "02aa4356a467"。
func MACSource() Source {
	return SourceFunc("mac", func(context.Context) (string, error) {
		ifaces, err := interfaces()
		if err != nil {
			return "", xerrors.Combine(ErrIdentityUnavailable, xerrors.Wrap(err, "list interfaces"))
		}
		for _, iface := range ifaces {
			if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
				continue
			}
			if len(iface.HardwareAddr) == 0 || isZero(iface.HardwareAddr) {
				continue
			}
			return hex.EncodeToString(iface.HardwareAddr), nil
		}
		return "", xerrors.Wrap(ErrIdentityUnavailable, "mac: no usable interface")
	})
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// interfaceAddrs 便于测试替换
var interfaceAddrs = net.InterfaceAddrs

// IPSource 使用第一个非回环 IPv4 地址，格式为点分十进制
func IPSource() Source {
	return SourceFunc("ip", func(context.Context) (string, error) {
		addrs, err := interfaceAddrs()
		if err != nil {
			return "", xerrors.Combine(ErrIdentityUnavailable, xerrors.Wrap(err, "list addresses"))
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() {
				continue
			}
			if ip := ipnet.IP.To4(); ip != nil {
				return ip.String(), nil
			}
		}
		return "", xerrors.Wrap(ErrIdentityUnavailable, "ip: no ipv4 address")
	})
}

// hostname 便于测试替换
var hostname = os.Hostname

// HostnameSource 使用主机名
func HostnameSource() Source {
	return SourceFunc("hostname", func(context.Context) (string, error) {
		name, err := hostname()
		if err != nil {
			return "", xerrors.Combine(ErrIdentityUnavailable, xerrors.Wrap(err, "hostname"))
		}
		return strings.TrimSpace(name), nil
	})
}

// StaticSource 返回固定标识，适用于容器或测试
func StaticSource(identity string) Source {
	return SourceFunc("static", func(context.Context) (string, error) {
		return identity, nil
	})
}

// FirstOf 依次尝试各来源，返回第一个成功的结果
//
// 全部失败时返回的错误同时匹配 ErrIdentityUnavailable 和每个来源的错误。
func FirstOf(sources ...Source) Source {
	return SourceFunc("first_of", func(ctx context.Context) (string, error) {
		errs := []error{ErrIdentityUnavailable}
		for _, src := range sources {
			if src == nil {
				continue
			}
			id, err := src.Identity(ctx)
			if err == nil {
				return id, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			errs = append(errs, xerrors.Wrap(err, src.Name()))
		}
		return "", xerrors.Combine(errs...)
	})
}

// FromSource 获取标识并映射为节点号，返回标识本身便于日志
func FromSource(ctx context.Context, src Source, bits uint) (string, int64, error) {
	if src == nil {
		return "", 0, xerrors.WithCode(xerrors.ErrInvalidInput, "source_nil")
	}
	identity, err := src.Identity(ctx)
	if err != nil {
		return "", 0, err
	}
	id, err := Resolve(identity, bits)
	if err != nil {
		return "", 0, err
	}
	return identity, id, nil
}
