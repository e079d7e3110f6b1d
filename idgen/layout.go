package idgen

import "github.com/ceyewan/snowflake/xerrors"

// 默认位布局，决定 ID 的线上格式，外部解码方依赖这些常量
//
//	| timestamp (42) | node id (10) | sequence (12) |
//	 63            22 21          12 11           0
const (
	TotalBits    = 64
	EpochBits    = 42
	NodeIDBits   = 10
	SequenceBits = 12

	NodeIDShift    = SequenceBits
	TimestampShift = NodeIDBits + SequenceBits

	MaxTimestamp = 1<<EpochBits - 1
	MaxNodeID    = 1<<NodeIDBits - 1
	MaxSequence  = 1<<SequenceBits - 1
)

// DefaultEpoch 默认纪元 2019-01-01T00:00:00Z（毫秒）
const DefaultEpoch int64 = 1546300800000

// DefaultLayout 42/10/12 的标准布局
var DefaultLayout = Layout{
	EpochBits:    EpochBits,
	NodeIDBits:   NodeIDBits,
	SequenceBits: SequenceBits,
}

// Layout ID 的位布局，构造后不可变
type Layout struct {
	EpochBits    uint
	NodeIDBits   uint
	SequenceBits uint
}

// Validate 检查三个字段宽度均大于 0 且总和为 64
func (l Layout) Validate() error {
	if l.EpochBits == 0 || l.NodeIDBits == 0 || l.SequenceBits == 0 {
		return xerrors.WithCode(ErrInvalidInput, "layout_zero_width")
	}
	if l.EpochBits+l.NodeIDBits+l.SequenceBits != TotalBits {
		return xerrors.WithCode(ErrInvalidInput, "layout_bits_not_64")
	}
	if l.NodeIDBits > 31 {
		return xerrors.WithCode(ErrInvalidInput, "layout_node_bits_too_wide")
	}
	return nil
}

func (l Layout) MaxTimestamp() int64 { return int64(1)<<l.EpochBits - 1 }
func (l Layout) MaxNodeID() int64    { return int64(1)<<l.NodeIDBits - 1 }
func (l Layout) MaxSequence() int64  { return int64(1)<<l.SequenceBits - 1 }
func (l Layout) NodeIDShift() uint   { return l.SequenceBits }
func (l Layout) TimestampShift() uint {
	return l.NodeIDBits + l.SequenceBits
}

// Compose 按布局拼装 ID，调用方保证各字段在范围内
func (l Layout) Compose(timestamp, nodeID, sequence int64) ID {
	return ID(uint64(timestamp)<<l.TimestampShift() |
		uint64(nodeID)<<l.NodeIDShift() |
		uint64(sequence))
}

// Parts ID 拆解后的三个字段
type Parts struct {
	Timestamp int64 `json:"timestamp"` // 相对纪元的毫秒数
	NodeID    int64 `json:"node_id"`
	Sequence  int64 `json:"sequence"`
}

// Decode 按布局拆解 ID
func (l Layout) Decode(id ID) Parts {
	v := uint64(id)
	return Parts{
		Timestamp: int64(v >> l.TimestampShift()),
		NodeID:    int64(v>>l.NodeIDShift()) & l.MaxNodeID(),
		Sequence:  int64(v) & l.MaxSequence(),
	}
}
