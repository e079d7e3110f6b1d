package idgen

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/nodeid"
	"github.com/ceyewan/snowflake/xerrors"
)

// MaxBatchSize NextBatch 单次最多生成的 ID 数量
const MaxBatchSize = 4096

// Snowflake 雪花算法生成器
//
// 所有方法并发安全。同一毫秒内最多生成 MaxSequence+1 个 ID，
// 超出后阻塞至多 1ms 等待下一毫秒。
type Snowflake struct {
	mu            sync.Mutex
	lastTimestamp int64 // -1 表示尚未生成过 ID
	lastSupplied  int64 // 最近一次传入的时间戳；rollover 后 lastTimestamp 会领先于它
	sequence      int64

	layout     Layout
	nodeID     int64
	identity   string
	epoch      int64
	policy     string
	maxDriftMs int64
	clock      Clock
	logger     clog.Logger
	metrics    *generatorMetrics
}

// NewSnowflake 创建 Snowflake 生成器
//
// 节点号按 cfg.Method 获取：static 直接使用 cfg.NodeID，其余方式对机器标识做哈希。
// 无法获取标识时返回 ErrNodeIdentityUnavailable，不会退化为 0。
//
//	gen, _ := idgen.NewSnowflake(&idgen.SnowflakeConfig{Method: "mac"},
//	    idgen.WithLogger(logger))
//	id, _ := gen.Next()
func NewSnowflake(cfg *SnowflakeConfig, opts ...Option) (*Snowflake, error) {
	if cfg == nil {
		return nil, xerrors.WithCode(ErrInvalidInput, "config_nil")
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	if err := o.layout.Validate(); err != nil {
		return nil, err
	}

	if c.Method == MethodStatic {
		return newSnowflake(&c, c.NodeID, "", o)
	}

	src := o.source
	if src == nil {
		src = sourceFor(&c)
	}
	identity, nodeID, err := nodeid.FromSource(context.Background(), src, o.layout.NodeIDBits)
	if err != nil {
		o.logger.Error("resolve node identity failed",
			clog.String("method", c.Method),
			clog.String("source", src.Name()),
			clog.Error(err),
		)
		return nil, xerrors.WithCode(xerrors.Mark(err, ErrNodeIdentityUnavailable), "identity_unavailable")
	}
	return newSnowflake(&c, nodeID, identity, o)
}

// NewSnowflakeWithNodeID 使用指定节点号和默认配置创建生成器
func NewSnowflakeWithNodeID(nodeID int64, opts ...Option) (*Snowflake, error) {
	return NewSnowflake(&SnowflakeConfig{Method: MethodStatic, NodeID: nodeID}, opts...)
}

func sourceFor(c *SnowflakeConfig) nodeid.Source {
	switch c.Method {
	case MethodIP:
		return nodeid.IPSource()
	case MethodHostname:
		return nodeid.HostnameSource()
	case MethodIdentity:
		return nodeid.StaticSource(c.Identity)
	default:
		return nodeid.MACSource()
	}
}

func newSnowflake(c *SnowflakeConfig, nodeID int64, identity string, o *options) (*Snowflake, error) {
	if nodeID < 0 || nodeID > o.layout.MaxNodeID() {
		return nil, xerrors.WithCode(
			xerrors.Wrapf(ErrInvalidInput, "node id %d not in [0, %d]", nodeID, o.layout.MaxNodeID()),
			"node_id_out_of_range")
	}

	m, err := newGeneratorMetrics(o.meter, nodeID)
	if err != nil {
		return nil, xerrors.Wrap(err, "create idgen metrics")
	}

	s := &Snowflake{
		lastTimestamp: -1,
		lastSupplied:  -1,
		layout:        o.layout,
		nodeID:        nodeID,
		identity:      identity,
		epoch:         c.Epoch,
		policy:        c.ClockBackward,
		maxDriftMs:    c.MaxDriftMs,
		clock:         o.clock,
		logger:        o.logger.With(clog.NodeID(nodeID)),
		metrics:       m,
	}

	s.logger.Info("snowflake generator created",
		clog.String("method", c.Method),
		clog.String("identity", identity),
		clog.Int64("epoch", c.Epoch),
		clog.String("clock_backward", c.ClockBackward),
	)
	return s, nil
}

// stepStats 一次加锁期间的统计，解锁后统一上报
type stepStats struct {
	issued    int
	rollovers int
	backwards int
	drift     int64
}

// NextID 使用调用方提供的时间戳（相对纪元的毫秒数）生成 ID
//
// 时间戳为负或超出布局范围时返回 ErrInvalidTimestamp，生成器状态不变。
func (s *Snowflake) NextID(ts int64) (ID, error) {
	if err := s.checkTimestamp(ts); err != nil {
		return 0, err
	}

	var st stepStats
	s.mu.Lock()
	id, err := s.next(ts, &st)
	s.mu.Unlock()

	s.report(&st)
	return id, err
}

// Next 使用生成器时钟的当前时间生成 ID
func (s *Snowflake) Next() (ID, error) {
	var st stepStats
	s.mu.Lock()
	id, err := s.nextNow(&st)
	s.mu.Unlock()

	s.report(&st)
	return id, err
}

// NextString 返回十进制字符串形式的 ID
func (s *Snowflake) NextString() (string, error) {
	id, err := s.Next()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NextInt64 返回 int64 形式的 ID，最高位被占用时返回错误
func (s *Snowflake) NextInt64() (int64, error) {
	id, err := s.Next()
	if err != nil {
		return 0, err
	}
	return toInt64(id)
}

// NextStringAt 是 NextID 的字符串版本
func (s *Snowflake) NextStringAt(ts int64) (string, error) {
	id, err := s.NextID(ts)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NextBatch 在一次加锁内生成 n 个 ID，n 须在 [1, MaxBatchSize] 内
func (s *Snowflake) NextBatch(n int) ([]ID, error) {
	if n <= 0 || n > MaxBatchSize {
		return nil, xerrors.WithCode(
			xerrors.Wrapf(ErrInvalidInput, "batch size %d not in [1, %d]", n, MaxBatchSize),
			"batch_size_out_of_range")
	}

	ids := make([]ID, 0, n)
	var st stepStats
	var err error

	s.mu.Lock()
	for i := 0; i < n; i++ {
		var id ID
		if id, err = s.nextNow(&st); err != nil {
			break
		}
		ids = append(ids, id)
	}
	s.mu.Unlock()

	s.report(&st)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// IDFromTimestamp 返回本节点在该时间戳下序列号为 0 的 ID，不改变生成器状态
//
// 可用作按时间范围扫描的下界。
func (s *Snowflake) IDFromTimestamp(ts int64) (ID, error) {
	if err := s.checkTimestamp(ts); err != nil {
		return 0, err
	}
	return s.layout.Compose(ts, s.nodeID, 0), nil
}

// Decode 按生成器的布局拆解 ID
func (s *Snowflake) Decode(id ID) Parts {
	return s.layout.Decode(id)
}

// Time 返回 ID 中时间戳对应的绝对时间
func (s *Snowflake) Time(id ID) time.Time {
	return time.UnixMilli(s.epoch + s.layout.Decode(id).Timestamp)
}

// NodeID 返回节点号
func (s *Snowflake) NodeID() int64 { return s.nodeID }

// Identity 返回参与哈希的机器标识，static 方式为空
func (s *Snowflake) Identity() string { return s.identity }

// Epoch 返回纪元（Unix 毫秒）
func (s *Snowflake) Epoch() int64 { return s.epoch }

// Layout 返回位布局
func (s *Snowflake) Layout() Layout { return s.layout }

func (s *Snowflake) checkTimestamp(ts int64) error {
	if ts < 0 || ts > s.layout.MaxTimestamp() {
		return xerrors.WithCode(
			xerrors.Wrapf(ErrInvalidTimestamp, "timestamp %d not in [0, %d]", ts, s.layout.MaxTimestamp()),
			"timestamp_out_of_range")
	}
	return nil
}

// nextNow 在锁内读取时钟，避免并发调用之间出现虚假的时钟回拨
func (s *Snowflake) nextNow(st *stepStats) (ID, error) {
	ms := s.clock.Now().UnixMilli() - s.epoch
	if ms < 0 {
		return 0, xerrors.WithCode(
			xerrors.Wrapf(ErrInvalidTimestamp, "clock is %dms before epoch", -ms),
			"clock_before_epoch")
	}
	if err := s.checkTimestamp(ms); err != nil {
		return 0, err
	}
	return s.next(ms, st)
}

// next 必须持有 s.mu；新状态先在局部变量中计算，成功后才写回
func (s *Snowflake) next(ts int64, st *stepStats) (ID, error) {
	last, seq := s.lastTimestamp, s.sequence
	supplied := ts

	switch {
	case last >= 0 && ts < last && ts >= s.lastSupplied:
		// last 是 rollover 推进出来的，时间戳并未回退，继续在 last 上计数
		ts = last
	case last >= 0 && ts < last:
		drift := last - ts
		st.backwards++
		st.drift = max(st.drift, drift)

		switch s.policy {
		case ClockBackwardReject:
			return 0, xerrors.WithCode(
				xerrors.Wrapf(ErrClockBackwards, "drift %dms", drift),
				"clock_backwards_rejected")
		case ClockBackwardReuse:
			if drift > s.maxDriftMs {
				return 0, xerrors.WithCode(
					xerrors.Wrapf(ErrClockBackwards, "drift %dms exceeds %dms", drift, s.maxDriftMs),
					"clock_backwards_exceeded")
			}
			ts = last
		}
	}

	if ts == last {
		seq = (seq + 1) & s.layout.MaxSequence()
		if seq == 0 {
			st.rollovers++
			next, err := s.waitNextMillis(last)
			if err != nil {
				return 0, err
			}
			ts = next
		}
	} else {
		seq = 0
	}

	s.lastTimestamp, s.sequence, s.lastSupplied = ts, seq, supplied
	st.issued++
	return s.layout.Compose(ts, s.nodeID, seq), nil
}

// waitNextMillis 序列号用尽后等待进入下一毫秒
//
// 单次睡眠不超过 1ms；若时钟仍未前进（或调用方时间戳领先于时钟），直接使用 last+1。
func (s *Snowflake) waitNextMillis(last int64) (int64, error) {
	target := time.UnixMilli(s.epoch + last + 1)
	if d := target.Sub(s.clock.Now()); d > 0 {
		s.clock.Sleep(min(d, time.Millisecond))
	}

	ts := max(s.clock.Now().UnixMilli()-s.epoch, last+1)
	if ts > s.layout.MaxTimestamp() {
		return 0, xerrors.WithCode(ErrInvalidTimestamp, "timestamp_exhausted")
	}
	return ts, nil
}

func (s *Snowflake) report(st *stepStats) {
	s.metrics.record(st.issued, st.rollovers, st.backwards, s.policy)

	if st.rollovers > 0 {
		s.logger.Debug("sequence exhausted, advanced to next millisecond",
			clog.Int("rollovers", st.rollovers))
	}
	if st.backwards > 0 {
		s.logger.Warn("clock moved backwards",
			clog.Int64("drift_ms", st.drift),
			clog.String("policy", s.policy),
		)
	}
}
