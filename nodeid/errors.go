package nodeid

import "github.com/ceyewan/snowflake/xerrors"

// ErrIdentityUnavailable 无法获取机器标识
var ErrIdentityUnavailable = xerrors.New("nodeid: identity unavailable")
