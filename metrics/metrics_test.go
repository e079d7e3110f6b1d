package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ceyewan/snowflake/clog"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		opts    []Option
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "disabled", cfg: &Config{Enabled: false}},
		{name: "minimal config", cfg: &Config{Enabled: true}},
		{name: "dev default", cfg: NewDevDefaultConfig("snowflake-test")},
		{
			name: "with logger",
			cfg:  &Config{Enabled: true, ServiceName: "snowflake-test", Version: "v1.0.0"},
			opts: []Option{WithLogger(clog.Discard())},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meter, err := New(tt.cfg, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if meter == nil {
				t.Fatal("New() returned nil meter")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := meter.Shutdown(ctx); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{Enabled: true, Path: "metrics"}
	cfg.setDefaults()
	if cfg.ServiceName != "snowflake" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.Path != "/metrics" {
		t.Errorf("Path = %q", cfg.Path)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	meter, err := New(&Config{Enabled: true, ServiceName: "snowflake-test"})
	if err != nil {
		t.Fatal(err)
	}
	defer meter.Shutdown(context.Background())

	ctx := context.Background()
	counter, err := meter.Counter("snowflake_ids_generated_total", "IDs generated")
	if err != nil {
		t.Fatal(err)
	}
	counter.Inc(ctx, L("node_id", "5"))
	counter.Add(ctx, 2, L("node_id", "5"))
	counter.Add(ctx, -10, L("node_id", "5"))

	gauge, err := meter.Gauge("snowflake_node_id", "Current node id")
	if err != nil {
		t.Fatal(err)
	}
	gauge.Set(ctx, 5)

	histogram, err := meter.Histogram("snowflake_batch_size", "Batch size", WithBuckets([]float64{1, 10, 100}))
	if err != nil {
		t.Fatal(err)
	}
	histogram.Record(ctx, 42)

	rec := httptest.NewRecorder()
	meter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, want := range []string{
		`snowflake_ids_generated_total{node_id="5"`,
		"snowflake_node_id",
		"snowflake_batch_size_bucket",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("指标输出缺少 %q", want)
		}
	}
	if !strings.Contains(text, `node_id="5"`) || !strings.Contains(text, "} 3") {
		t.Errorf("计数器值应为 3（负数被忽略）:\n%s", text)
	}
}

func TestGaugeIncDec(t *testing.T) {
	meter, err := New(&Config{Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	defer meter.Shutdown(context.Background())

	g, _ := meter.Gauge("inflight", "in flight")
	impl := g.(*gaugeImpl)
	ctx := context.Background()
	g.Inc(ctx, L("route", "/v1/ids"))
	g.Inc(ctx, L("route", "/v1/ids"))
	g.Dec(ctx, L("route", "/v1/ids"))

	if v := impl.values["route=/v1/ids"]; v != 1 {
		t.Errorf("gauge value = %v, want 1", v)
	}
}

func TestDiscard(t *testing.T) {
	meter := Discard()
	ctx := context.Background()

	c, _ := meter.Counter("c", "c")
	c.Inc(ctx)
	g, _ := meter.Gauge("g", "g")
	g.Set(ctx, 1)
	h, _ := meter.Histogram("h", "h")
	h.Record(ctx, 1)

	rec := httptest.NewRecorder()
	meter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Discard handler status = %d", rec.Code)
	}
	if err := meter.Shutdown(ctx); err != nil {
		t.Error(err)
	}
}

func TestHTTPStatusClass(t *testing.T) {
	tests := []struct {
		status  int
		class   string
		outcome string
	}{
		{200, "2xx", OutcomeSuccess},
		{304, "3xx", OutcomeSuccess},
		{400, "4xx", OutcomeError},
		{429, "4xx", OutcomeError},
		{503, "5xx", OutcomeError},
		{42, "unknown", OutcomeError},
	}
	for _, tt := range tests {
		if got := HTTPStatusClass(tt.status); got != tt.class {
			t.Errorf("HTTPStatusClass(%d) = %q, want %q", tt.status, got, tt.class)
		}
		if got := HTTPOutcome(tt.status); got != tt.outcome {
			t.Errorf("HTTPOutcome(%d) = %q, want %q", tt.status, got, tt.outcome)
		}
	}
}

func TestNewHTTPMetrics(t *testing.T) {
	if _, err := NewHTTPMetrics(nil, "svc"); err == nil {
		t.Error("nil meter 应返回错误")
	}
	m, err := NewHTTPMetrics(Discard(), "")
	if err != nil {
		t.Fatal(err)
	}
	if m.service != "unknown" {
		t.Errorf("service = %q", m.service)
	}
	m.Observe(context.Background(), "", "", 200, time.Millisecond)

	var nilMetrics *HTTPMetrics
	nilMetrics.Observe(context.Background(), "GET", "/", 200, time.Millisecond)
}
