package idgen

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ceyewan/snowflake/xerrors"
)

// ID snowflake ID
//
// JSON 中编码为十进制字符串，避免 JavaScript 等环境丢失 53 位以上的精度。
type ID uint64

// String 返回十进制表示
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Int64 返回 int64 表示，最高位为 1 时结果为负
func (id ID) Int64() int64 {
	return int64(id)
}

// Timestamp 按默认布局返回时间戳字段
func (id ID) Timestamp() int64 { return DefaultLayout.Decode(id).Timestamp }

// NodeID 按默认布局返回节点号字段
func (id ID) NodeID() int64 { return DefaultLayout.Decode(id).NodeID }

// Sequence 按默认布局返回序列号字段
func (id ID) Sequence() int64 { return DefaultLayout.Decode(id).Sequence }

func (id ID) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, 22)
	b = append(b, '"')
	b = strconv.AppendUint(b, uint64(id), 10)
	return append(b, '"'), nil
}

// UnmarshalJSON 同时接受字符串和数字形式，null 保持原值
func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return xerrors.WithCode(xerrors.Wrapf(ErrInvalidID, "decode %s", data), "id_not_decimal")
		}
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseID 解析十进制字符串形式的 ID，允许首尾空白
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, xerrors.WithCode(ErrInvalidID, "id_empty")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, xerrors.WithCode(xerrors.Wrapf(ErrInvalidID, "parse %q", s), "id_not_decimal")
	}
	return ID(v), nil
}

// DecodeTimestamp 返回默认布局下的时间戳字段（相对纪元的毫秒数）
func DecodeTimestamp(id uint64) uint64 {
	return id >> TimestampShift
}

// DecodeTimestampString 解析字符串 ID 并返回时间戳字段
//
// 非十进制或超出 64 位时返回 ErrInvalidID，不做部分解析。
func DecodeTimestampString(s string) (uint64, error) {
	id, err := ParseID(s)
	if err != nil {
		return 0, err
	}
	return DecodeTimestamp(uint64(id)), nil
}

// DecodeNodeID 返回默认布局下的节点号字段
func DecodeNodeID(id uint64) int64 {
	return int64(id>>NodeIDShift) & MaxNodeID
}

// DecodeSequence 返回默认布局下的序列号字段
func DecodeSequence(id uint64) int64 {
	return int64(id & MaxSequence)
}

// toInt64 检查 ID 能否无损转换为 int64
func toInt64(id ID) (int64, error) {
	if uint64(id) > math.MaxInt64 {
		return 0, xerrors.WithCode(xerrors.Wrapf(ErrInvalidID, "%d overflows int64", uint64(id)), "id_exceeds_int64")
	}
	return int64(id), nil
}
