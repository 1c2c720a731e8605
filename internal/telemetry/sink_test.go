package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestUsageTracker(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewUsageTracker(func() time.Time { return now })
	ctx := context.Background()

	tracker.RecordComponent(ctx, ComponentStats{Component: "timeline"})
	tracker.RecordComponent(ctx, ComponentStats{Component: "timeline"})
	tracker.RecordComponent(ctx, ComponentStats{Component: "arcs"})
	tracker.RecordRun(ctx, RunStats{Score: 80})
	tracker.RecordRun(ctx, RunStats{Err: errors.New("boom")})

	usage := tracker.Snapshot()
	if usage.Counts["timeline"] != 2 {
		t.Errorf("timeline count = %d, want 2", usage.Counts["timeline"])
	}
	if usage.Counts["analysis"] != 2 {
		t.Errorf("analysis count = %d, want 2", usage.Counts["analysis"])
	}
	if usage.Failures != 1 {
		t.Errorf("failures = %d, want 1", usage.Failures)
	}
	if !usage.LastUsed["arcs"].Equal(now) {
		t.Errorf("last used = %v, want %v", usage.LastUsed["arcs"], now)
	}

	t.Run("snapshot is a copy", func(t *testing.T) {
		usage.Counts["timeline"] = 99
		if tracker.Snapshot().Counts["timeline"] != 2 {
			t.Error("mutating a snapshot changed the tracker")
		}
	})

	t.Run("reset", func(t *testing.T) {
		tracker.Reset()
		if got := tracker.Snapshot(); len(got.Counts) != 0 || got.Failures != 0 {
			t.Errorf("after reset got %+v", got)
		}
	})
}

func TestUsageTrackerConcurrent(t *testing.T) {
	tracker := NewUsageTracker(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.RecordComponent(ctx, ComponentStats{Component: "structure"})
		}()
	}
	wg.Wait()

	if got := tracker.Snapshot().Counts["structure"]; got != 50 {
		t.Errorf("count = %d, want 50", got)
	}
}

func TestMulti(t *testing.T) {
	a := NewUsageTracker(nil)
	b := NewUsageTracker(nil)
	sink := Multi(a, nil, b, Nop{})

	sink.RecordComponent(context.Background(), ComponentStats{Component: "score"})
	sink.RecordRun(context.Background(), RunStats{})

	for name, tr := range map[string]*UsageTracker{"a": a, "b": b} {
		u := tr.Snapshot()
		if u.Counts["score"] != 1 || u.Counts["analysis"] != 1 {
			t.Errorf("tracker %s counts = %v", name, u.Counts)
		}
	}
}

func TestOTelSink(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sink, err := NewOTelSink(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewOTelSink() error = %v", err)
	}
	ctx := context.Background()
	sink.RecordComponent(ctx, ComponentStats{Component: "timeline", Duration: time.Millisecond, Findings: 2})
	sink.RecordComponent(ctx, ComponentStats{Component: "arcs", Duration: time.Millisecond, Findings: 1})
	sink.RecordRun(ctx, RunStats{Score: 70})
	sink.RecordRun(ctx, RunStats{Err: errors.New("invalid")})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	sums := make(map[string]int64)
	var scores []int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					scores = append(scores, dp.Sum)
				}
			}
		}
	}

	want := map[string]int64{
		"storyscope.analysis.runs":      1,
		"storyscope.analysis.failures":  1,
		"storyscope.component.findings": 3,
	}
	for name, n := range want {
		if sums[name] != n {
			t.Errorf("%s = %d, want %d", name, sums[name], n)
		}
	}
	if len(scores) != 1 || scores[0] != 70 {
		t.Errorf("score histogram sums = %v, want [70]", scores)
	}
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), ExportConfig{ServiceName: "storyscope-test"})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestSetupExportsMetrics(t *testing.T) {
	prevMeters, prevTracers := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMeters)
		otel.SetTracerProvider(prevTracers)
	})

	var posts atomic.Int64
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	shutdown, err := Setup(context.Background(), ExportConfig{
		Endpoint:       collector.URL,
		ServiceName:    "storyscope-test",
		MetricInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, ok := otel.GetMeterProvider().(*sdkmetric.MeterProvider); !ok {
		t.Fatalf("global meter provider = %T, want the SDK provider", otel.GetMeterProvider())
	}

	sink, err := NewOTelSink(nil)
	if err != nil {
		t.Fatal(err)
	}
	sink.RecordRun(context.Background(), RunStats{Score: 90})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	if posts.Load() == 0 {
		t.Error("no metrics exported on shutdown")
	}
}
