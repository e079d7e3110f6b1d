package idgen

import "github.com/ceyewan/snowflake/xerrors"

var (
	// ErrNodeIdentityUnavailable 无法获取机器标识，同时匹配 nodeid.ErrIdentityUnavailable
	ErrNodeIdentityUnavailable = xerrors.New("idgen: node identity unavailable")

	// ErrInvalidTimestamp 时间戳为负或超出布局范围
	ErrInvalidTimestamp = xerrors.New("idgen: invalid timestamp")

	// ErrInvalidID 字符串不是合法的十进制 64 位无符号整数
	ErrInvalidID = xerrors.New("idgen: invalid id")

	// ErrInvalidInput 无效的输入
	ErrInvalidInput = xerrors.New("idgen: invalid input")

	// ErrClockBackwards 时钟回拨且策略不允许继续
	ErrClockBackwards = xerrors.New("idgen: clock moved backwards")

	// ErrConnectorNil 连接器为空
	ErrConnectorNil = xerrors.New("idgen: connector is nil")

	// ErrNodeIDExhausted 没有可分配的节点号
	ErrNodeIDExhausted = xerrors.New("idgen: no available node id")

	// ErrLeaseExpired 节点号租约已失效
	ErrLeaseExpired = xerrors.New("idgen: lease expired")
)
