package idgen

import (
	"context"
	"strconv"

	"github.com/ceyewan/snowflake/metrics"
)

const (
	// MetricIDsGenerated 已生成的 ID 总数 (Counter)
	MetricIDsGenerated = "snowflake_ids_generated_total"

	// MetricSequenceRollovers 序列号溢出、等待下一毫秒的次数 (Counter)
	MetricSequenceRollovers = "snowflake_sequence_rollovers_total"

	// MetricClockBackwards 检测到时钟回拨的次数 (Counter)
	MetricClockBackwards = "snowflake_clock_backwards_total"
)

type generatorMetrics struct {
	generated metrics.Counter
	rollovers metrics.Counter
	backwards metrics.Counter
	node      metrics.Label
}

func newGeneratorMetrics(meter metrics.Meter, nodeID int64) (*generatorMetrics, error) {
	generated, err := meter.Counter(MetricIDsGenerated, "Total number of snowflake ids generated")
	if err != nil {
		return nil, err
	}
	rollovers, err := meter.Counter(MetricSequenceRollovers, "Times the sequence wrapped within one millisecond")
	if err != nil {
		return nil, err
	}
	backwards, err := meter.Counter(MetricClockBackwards, "Times a timestamp older than the last one was observed")
	if err != nil {
		return nil, err
	}
	return &generatorMetrics{
		generated: generated,
		rollovers: rollovers,
		backwards: backwards,
		node:      metrics.L("node_id", strconv.FormatInt(nodeID, 10)),
	}, nil
}

func (m *generatorMetrics) record(n int, rollovers int, backwards int, policy string) {
	ctx := context.Background()
	if n > 0 {
		m.generated.Add(ctx, float64(n), m.node)
	}
	if rollovers > 0 {
		m.rollovers.Add(ctx, float64(rollovers), m.node)
	}
	if backwards > 0 {
		m.backwards.Add(ctx, float64(backwards), m.node, metrics.L("policy", policy))
	}
}
