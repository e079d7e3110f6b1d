package idgen

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ceyewan/snowflake/nodeid"
	"github.com/ceyewan/snowflake/testkit"
	"github.com/ceyewan/snowflake/xerrors"
)

func newTestSnowflake(t *testing.T, cfg *SnowflakeConfig, opts ...Option) *Snowflake {
	t.Helper()
	gen, err := NewSnowflake(cfg, opts...)
	if err != nil {
		t.Fatalf("NewSnowflake() error = %v", err)
	}
	return gen
}

func TestNextIDComposition(t *testing.T) {
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 5})

	const ts = int64(1700000000000)
	id1, err := gen.NextID(ts)
	if err != nil {
		t.Fatalf("NextID() error = %v", err)
	}
	want := ID(uint64(ts)<<22 | 5<<12)
	if id1 != want {
		t.Fatalf("id1 = %d，期望 %d", id1, want)
	}

	id2, err := gen.NextID(ts)
	if err != nil {
		t.Fatalf("NextID() error = %v", err)
	}
	if id2 != id1+1 {
		t.Errorf("id2 = %d，期望 %d", id2, id1+1)
	}
	if got := DecodeTimestamp(uint64(id1)); got != uint64(ts) {
		t.Errorf("DecodeTimestamp(id1) = %d，期望 %d", got, ts)
	}
	if p := gen.Decode(id2); p.Timestamp != ts || p.NodeID != 5 || p.Sequence != 1 {
		t.Errorf("Decode(id2) = %+v", p)
	}
}

func TestNextIDFirstAtZero(t *testing.T) {
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 7})

	id, err := gen.NextID(0)
	if err != nil {
		t.Fatalf("NextID(0) error = %v", err)
	}
	if id != ID(7<<12) {
		t.Errorf("NextID(0) = %d，期望 %d", id, 7<<12)
	}
}

func TestNextIDInvalidTimestamp(t *testing.T) {
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 1})

	first, err := gen.NextID(100)
	if err != nil {
		t.Fatalf("NextID(100) error = %v", err)
	}

	for _, ts := range []int64{-1, MaxTimestamp + 1} {
		if _, err := gen.NextID(ts); !errors.Is(err, ErrInvalidTimestamp) {
			t.Errorf("NextID(%d) error = %v，期望 ErrInvalidTimestamp", ts, err)
		}
		if code := xerrors.GetCode(err); code != "timestamp_out_of_range" {
			t.Errorf("NextID(%d) code = %q", ts, code)
		}
	}

	// 失败的调用不改变状态
	second, err := gen.NextID(100)
	if err != nil {
		t.Fatalf("NextID(100) error = %v", err)
	}
	if second != first+1 {
		t.Errorf("second = %d，期望 %d", second, first+1)
	}

	if _, err := gen.NextID(MaxTimestamp); err != nil {
		t.Errorf("NextID(MaxTimestamp) error = %v", err)
	}
}

func TestSequenceRollover(t *testing.T) {
	const ts = int64(1000)
	clock := testkit.NewFakeClockAt(DefaultEpoch + ts)
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 3}, WithClock(clock))

	for i := int64(0); i <= MaxSequence; i++ {
		id, err := gen.NextID(ts)
		if err != nil {
			t.Fatalf("NextID() #%d error = %v", i, err)
		}
		if id.Sequence() != i || id.Timestamp() != ts {
			t.Fatalf("NextID() #%d = (ts=%d, seq=%d)", i, id.Timestamp(), id.Sequence())
		}
	}

	id, err := gen.NextID(ts)
	if err != nil {
		t.Fatalf("NextID() after exhaustion error = %v", err)
	}
	if id.Timestamp() != ts+1 || id.Sequence() != 0 {
		t.Errorf("rollover id = (ts=%d, seq=%d)，期望 (%d, 0)", id.Timestamp(), id.Sequence(), ts+1)
	}

	sleeps := clock.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != time.Millisecond {
		t.Errorf("sleeps = %v，期望 [1ms]", sleeps)
	}
}

func TestSequenceRolloverClockBehind(t *testing.T) {
	// 调用方时间戳领先时钟很多，等待被限制在 1ms 内
	clock := testkit.NewFakeClockAt(DefaultEpoch)
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 3}, WithClock(clock))

	const ts = int64(50000)
	for i := int64(0); i <= MaxSequence; i++ {
		if _, err := gen.NextID(ts); err != nil {
			t.Fatalf("NextID() error = %v", err)
		}
	}
	id, err := gen.NextID(ts)
	if err != nil {
		t.Fatalf("NextID() error = %v", err)
	}
	if id.Timestamp() != ts+1 || id.Sequence() != 0 {
		t.Errorf("rollover id = (ts=%d, seq=%d)", id.Timestamp(), id.Sequence())
	}
	for _, d := range clock.Sleeps() {
		if d > time.Millisecond {
			t.Errorf("sleep %v 超过 1ms", d)
		}
	}
}

func TestSequenceRolloverExhausted(t *testing.T) {
	clock := testkit.NewFakeClockAt(DefaultEpoch)
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 3}, WithClock(clock))

	for i := int64(0); i <= MaxSequence; i++ {
		if _, err := gen.NextID(MaxTimestamp); err != nil {
			t.Fatalf("NextID() error = %v", err)
		}
	}
	_, err := gen.NextID(MaxTimestamp)
	if !errors.Is(err, ErrInvalidTimestamp) || xerrors.GetCode(err) != "timestamp_exhausted" {
		t.Errorf("NextID() error = %v，期望 timestamp_exhausted", err)
	}
}

func TestSequenceRolloverRepeatedTimestamp(t *testing.T) {
	// 调用方在 rollover 之后继续传入同一时间戳，ID 必须保持唯一且递增
	const ts = int64(1000)
	clock := testkit.NewFakeClockAt(DefaultEpoch + ts)
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 3}, WithClock(clock))

	const calls = 3*(MaxSequence+1) + 2
	seen := make(map[ID]int, calls)
	var prev ID
	for i := 0; i < calls; i++ {
		id := mustNextID(t, gen, ts)
		if j, ok := seen[id]; ok {
			t.Fatalf("call %d duplicates call %d: id=%d (ts=%d seq=%d)", i, j, id, id.Timestamp(), id.Sequence())
		}
		if i > 0 && id <= prev {
			t.Fatalf("call %d: id %d 不大于前一个 %d", i, id, prev)
		}
		seen[id] = i
		prev = id
	}
	if last := prev; last.Timestamp() != ts+3 || last.Sequence() != 1 {
		t.Errorf("last id = (ts=%d, seq=%d)，期望 (%d, 1)", last.Timestamp(), last.Sequence(), ts+3)
	}
}

func TestRolloverThenClockBackwards(t *testing.T) {
	const ts = int64(1000)

	exhaust := func(t *testing.T, gen *Snowflake) {
		t.Helper()
		for i := int64(0); i <= MaxSequence+1; i++ {
			mustNextID(t, gen, ts)
		}
	}

	t.Run("reset", func(t *testing.T) {
		gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 1},
			WithClock(testkit.NewFakeClockAt(DefaultEpoch+ts)))
		exhaust(t, gen)

		// 低于调用方实际传入过的时间戳才算回拨
		id := mustNextID(t, gen, ts-1)
		if id.Timestamp() != ts-1 || id.Sequence() != 0 {
			t.Errorf("reset id = (ts=%d, seq=%d)，期望 (%d, 0)", id.Timestamp(), id.Sequence(), ts-1)
		}
	})

	t.Run("reject", func(t *testing.T) {
		gen := newTestSnowflake(t, &SnowflakeConfig{
			Method: MethodStatic, NodeID: 1, ClockBackward: ClockBackwardReject,
		}, WithClock(testkit.NewFakeClockAt(DefaultEpoch+ts)))
		exhaust(t, gen)

		id := mustNextID(t, gen, ts)
		if id.Timestamp() != ts+1 || id.Sequence() != 1 {
			t.Errorf("id = (ts=%d, seq=%d)，期望 (%d, 1)", id.Timestamp(), id.Sequence(), ts+1)
		}
		if _, err := gen.NextID(ts - 1); !errors.Is(err, ErrClockBackwards) {
			t.Errorf("NextID(%d) error = %v，期望 ErrClockBackwards", ts-1, err)
		}
	})
}

func TestClockBackwardPolicies(t *testing.T) {
	t.Run("reset", func(t *testing.T) {
		gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 1})
		mustNextID(t, gen, 100)
		mustNextID(t, gen, 100)

		id := mustNextID(t, gen, 90)
		if id.Timestamp() != 90 || id.Sequence() != 0 {
			t.Errorf("reset id = (ts=%d, seq=%d)，期望 (90, 0)", id.Timestamp(), id.Sequence())
		}
	})

	t.Run("reject", func(t *testing.T) {
		gen := newTestSnowflake(t, &SnowflakeConfig{
			Method: MethodStatic, NodeID: 1, ClockBackward: ClockBackwardReject,
		})
		first := mustNextID(t, gen, 100)

		if _, err := gen.NextID(99); !errors.Is(err, ErrClockBackwards) {
			t.Fatalf("NextID(99) error = %v，期望 ErrClockBackwards", err)
		}
		if next := mustNextID(t, gen, 100); next != first+1 {
			t.Errorf("拒绝后状态被修改: next = %d，期望 %d", next, first+1)
		}
	})

	t.Run("reuse", func(t *testing.T) {
		gen := newTestSnowflake(t, &SnowflakeConfig{
			Method: MethodStatic, NodeID: 1, ClockBackward: ClockBackwardReuse, MaxDriftMs: 5,
		})
		first := mustNextID(t, gen, 100)

		id := mustNextID(t, gen, 97)
		if id != first+1 {
			t.Errorf("reuse id = %d，期望 %d", id, first+1)
		}

		_, err := gen.NextID(90)
		if !errors.Is(err, ErrClockBackwards) || xerrors.GetCode(err) != "clock_backwards_exceeded" {
			t.Errorf("NextID(90) error = %v", err)
		}
	})
}

func mustNextID(t *testing.T, gen *Snowflake, ts int64) ID {
	t.Helper()
	id, err := gen.NextID(ts)
	if err != nil {
		t.Fatalf("NextID(%d) error = %v", ts, err)
	}
	return id
}

func TestNextUsesClock(t *testing.T) {
	clock := testkit.NewFakeClockAt(DefaultEpoch + 12345)
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 9}, WithClock(clock))

	id, err := gen.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if id.Timestamp() != 12345 || id.NodeID() != 9 {
		t.Errorf("Next() = (ts=%d, node=%d)", id.Timestamp(), id.NodeID())
	}
	if got := gen.Time(id); !got.Equal(time.UnixMilli(DefaultEpoch + 12345)) {
		t.Errorf("Time() = %v", got)
	}

	clock.Advance(time.Millisecond)
	s, err := gen.NextString()
	if err != nil {
		t.Fatalf("NextString() error = %v", err)
	}
	ts, err := DecodeTimestampString(s)
	if err != nil || ts != 12346 {
		t.Errorf("DecodeTimestampString(%q) = %d, %v", s, ts, err)
	}

	n, err := gen.NextInt64()
	if err != nil || n <= 0 {
		t.Errorf("NextInt64() = %d, %v", n, err)
	}
}

func TestNextClockBeforeEpoch(t *testing.T) {
	clock := testkit.NewFakeClockAt(DefaultEpoch - 1000)
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 1}, WithClock(clock))

	_, err := gen.Next()
	if !errors.Is(err, ErrInvalidTimestamp) || xerrors.GetCode(err) != "clock_before_epoch" {
		t.Errorf("Next() error = %v，期望 clock_before_epoch", err)
	}
}

func TestNextConcurrentUnique(t *testing.T) {
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 42})

	const workers, perWorker = 8, 2000
	results := make([][]ID, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ids := make([]ID, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				id, err := gen.Next()
				if err != nil {
					t.Errorf("Next() error = %v", err)
					return
				}
				ids = append(ids, id)
			}
			results[w] = ids
		}(w)
	}
	wg.Wait()

	seen := make(map[ID]struct{}, workers*perWorker)
	for _, ids := range results {
		var prev ID
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				t.Fatalf("重复 ID: %d", id)
			}
			seen[id] = struct{}{}
			// 单个 goroutine 内严格递增
			if id <= prev {
				t.Fatalf("ID 未递增: %d <= %d", id, prev)
			}
			prev = id
		}
	}
	if len(seen) != workers*perWorker {
		t.Errorf("生成 %d 个 ID，期望 %d", len(seen), workers*perWorker)
	}
}

func TestCrossNodeDistinct(t *testing.T) {
	a := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 1})
	b := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 2})

	for ts := int64(0); ts < 10; ts++ {
		idA, idB := mustNextID(t, a, ts), mustNextID(t, b, ts)
		if idA == idB {
			t.Fatalf("不同节点生成相同 ID: %d", idA)
		}
	}
}

func TestNextBatch(t *testing.T) {
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 4})

	ids, err := gen.NextBatch(1000)
	if err != nil {
		t.Fatalf("NextBatch() error = %v", err)
	}
	if len(ids) != 1000 {
		t.Fatalf("len(ids) = %d", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("ids[%d] = %d 不大于 ids[%d] = %d", i, ids[i], i-1, ids[i-1])
		}
	}

	for _, n := range []int{0, -1, MaxBatchSize + 1} {
		if _, err := gen.NextBatch(n); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("NextBatch(%d) error = %v，期望 ErrInvalidInput", n, err)
		}
	}
}

func TestIDFromTimestamp(t *testing.T) {
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 5})

	lower, err := gen.IDFromTimestamp(2000)
	if err != nil {
		t.Fatalf("IDFromTimestamp() error = %v", err)
	}
	if lower != ID(2000<<22|5<<12) {
		t.Errorf("IDFromTimestamp(2000) = %d", lower)
	}
	if id := mustNextID(t, gen, 2000); id != lower {
		t.Errorf("IDFromTimestamp 修改了状态: NextID = %d，期望 %d", id, lower)
	}
	if _, err := gen.IDFromTimestamp(-5); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("IDFromTimestamp(-5) error = %v", err)
	}
}

func TestNewSnowflakeConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *SnowflakeConfig
		code string
	}{
		{"nil config", nil, "config_nil"},
		{"unsupported method", &SnowflakeConfig{Method: "dns"}, "unsupported_method"},
		{"identity required", &SnowflakeConfig{Method: MethodIdentity}, "identity_required"},
		{"node id too large", &SnowflakeConfig{Method: MethodStatic, NodeID: MaxNodeID + 1}, "node_id_out_of_range"},
		{"node id negative", &SnowflakeConfig{Method: MethodStatic, NodeID: -1}, "node_id_out_of_range"},
		{"bad policy", &SnowflakeConfig{Method: MethodStatic, ClockBackward: "panic"}, "unsupported_clock_backward_policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSnowflake(tt.cfg)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("NewSnowflake() error = %v，期望 ErrInvalidInput", err)
			}
			if code := xerrors.GetCode(err); code != tt.code {
				t.Errorf("code = %q，期望 %q", code, tt.code)
			}
		})
	}
}

func TestNewSnowflakeIdentity(t *testing.T) {
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodIdentity, Identity: "host-a"})
	if gen.NodeID() != 380 || gen.Identity() != "host-a" {
		t.Errorf("NodeID() = %d, Identity() = %q", gen.NodeID(), gen.Identity())
	}

	gen = newTestSnowflake(t, &SnowflakeConfig{Method: MethodIP},
		WithIdentitySource(nodeid.StaticSource("10.0.0.5")))
	if gen.NodeID() != 682 {
		t.Errorf("NodeID() = %d，期望 682", gen.NodeID())
	}
}

func TestNewSnowflakeIdentityUnavailable(t *testing.T) {
	failing := nodeid.SourceFunc("mac", func(context.Context) (string, error) {
		return "", xerrors.Wrap(nodeid.ErrIdentityUnavailable, "no interfaces")
	})

	_, err := NewSnowflake(&SnowflakeConfig{Method: MethodMAC}, WithIdentitySource(failing))
	if !errors.Is(err, ErrNodeIdentityUnavailable) {
		t.Errorf("error = %v，期望 ErrNodeIdentityUnavailable", err)
	}
	if !errors.Is(err, nodeid.ErrIdentityUnavailable) {
		t.Errorf("error = %v，期望同时匹配 nodeid.ErrIdentityUnavailable", err)
	}
	if code := xerrors.GetCode(err); code != "identity_unavailable" {
		t.Errorf("GetCode() = %q，期望 identity_unavailable", code)
	}
}

func TestNewSnowflakeWithNodeID(t *testing.T) {
	gen, err := NewSnowflakeWithNodeID(MaxNodeID)
	if err != nil {
		t.Fatalf("NewSnowflakeWithNodeID() error = %v", err)
	}
	if gen.NodeID() != MaxNodeID || gen.Epoch() != DefaultEpoch || gen.Layout() != DefaultLayout {
		t.Errorf("gen = node %d, epoch %d, layout %+v", gen.NodeID(), gen.Epoch(), gen.Layout())
	}
}

func TestCustomLayout(t *testing.T) {
	layout := Layout{EpochBits: 41, NodeIDBits: 8, SequenceBits: 15}
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 200}, WithLayout(layout))

	id := mustNextID(t, gen, 77)
	if p := gen.Decode(id); p.Timestamp != 77 || p.NodeID != 200 || p.Sequence != 0 {
		t.Errorf("Decode() = %+v", p)
	}

	_, err := NewSnowflake(&SnowflakeConfig{Method: MethodStatic, NodeID: 256}, WithLayout(layout))
	if xerrors.GetCode(err) != "node_id_out_of_range" {
		t.Errorf("error = %v，期望 node_id_out_of_range", err)
	}

	_, err = NewSnowflake(&SnowflakeConfig{Method: MethodStatic}, WithLayout(Layout{EpochBits: 40, NodeIDBits: 10, SequenceBits: 12}))
	if xerrors.GetCode(err) != "layout_bits_not_64" {
		t.Errorf("error = %v，期望 layout_bits_not_64", err)
	}
}

func TestGeneratorMetrics(t *testing.T) {
	meter := testkit.NewMeter()
	gen := newTestSnowflake(t, &SnowflakeConfig{Method: MethodStatic, NodeID: 11}, WithMeter(meter))

	if _, err := gen.NextBatch(10); err != nil {
		t.Fatalf("NextBatch() error = %v", err)
	}
	mustNextID(t, gen, 1)
	mustNextID(t, gen, 0)

	rec := httptest.NewRecorder()
	meter.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, name := range []string{"snowflake_ids_generated", "snowflake_clock_backwards"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("指标输出缺少 %s", name)
		}
	}
}

func BenchmarkNext(b *testing.B) {
	gen, err := NewSnowflakeWithNodeID(1)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := gen.Next(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNextParallel(b *testing.B) {
	gen, err := NewSnowflakeWithNodeID(1)
	if err != nil {
		b.Fatal(err)
	}
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := gen.Next(); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
