// Package nodeid 将机器的稳定标识（MAC、IP、主机名等）映射为 snowflake 节点号。
//
// 映射规则是契约的一部分，跨进程、跨 Go 版本保持不变：
//
//	h = 0
//	for each byte b: h = h*31 + b   (uint32 回绕)
//	nodeID = h % 2^bits
//
// 不同机器的哈希可能落到同一节点号，本包不做冲突检测；需要严格唯一时，
// 使用 idgen 的 Redis/Etcd 分配器。
package nodeid

import "github.com/ceyewan/snowflake/xerrors"

// hashPrime 多项式滚动哈希的乘数
const hashPrime = 31

// Hash 计算标识字符串的 32 位多项式滚动哈希
func Hash(identity string) uint32 {
	var h uint32
	for i := 0; i < len(identity); i++ {
		h = h*hashPrime + uint32(identity[i])
	}
	return h
}

// Resolve 将标识映射为 [0, 2^bits-1] 内的节点号
//
// identity 为空时返回 ErrIdentityUnavailable，bits 须在 [1, 31] 内。
func Resolve(identity string, bits uint) (int64, error) {
	if bits == 0 || bits > 31 {
		return 0, xerrors.WithCode(xerrors.ErrInvalidInput, "node_id_bits_out_of_range")
	}
	if identity == "" {
		return 0, xerrors.WithCode(ErrIdentityUnavailable, "identity_empty")
	}
	return int64(Hash(identity) % (uint32(1) << bits)), nil
}
