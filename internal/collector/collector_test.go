package collector

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nzgrid/mercury-usage-exporter/internal/coordinator"
	"github.com/nzgrid/mercury-usage-exporter/internal/derive"
	"github.com/nzgrid/mercury-usage-exporter/internal/mercury"
)

// stubSource is a hand-rolled UsageSource with fixed state
type stubSource struct {
	snapshot  coordinator.Snapshot
	hasSnap   bool
	cumEnergy derive.CumulativeState
	cumCost   derive.CumulativeState
	ready     bool
	lastErr   error
	lastPoll  time.Time
	duration  time.Duration
	polls     uint64
	errs      uint64
}

func (s *stubSource) Snapshot() (coordinator.Snapshot, bool) { return s.snapshot, s.hasSnap }
func (s *stubSource) Cumulative() (derive.CumulativeState, derive.CumulativeState) {
	return s.cumEnergy, s.cumCost
}
func (s *stubSource) IsReady() bool                   { return s.ready }
func (s *stubSource) LastError() error                { return s.lastErr }
func (s *stubSource) LastPoll() time.Time             { return s.lastPoll }
func (s *stubSource) LastPollDuration() time.Duration { return s.duration }
func (s *stubSource) PollsTotal() uint64              { return s.polls }
func (s *stubSource) ErrorsTotal() uint64             { return s.errs }

func twoHourSnapshot() coordinator.Snapshot {
	return coordinator.Snapshot{
		Series: []mercury.HourlyEntry{
			{Date: "2025-08-08T00:00:00+12:00", Consumption: 1.0, Cost: 0.30},
			{Date: "2025-08-08T01:00:00+12:00", Consumption: 2.0, Cost: 0.50},
		},
		MeasurementDate: "2025-08-08",
		WindowStart:     "2025-08-08",
		WindowEnd:       "2025-08-09",
	}
}

func collect(c *UsageCollector) []prometheus.Metric {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	var metrics []prometheus.Metric
	for m := range ch {
		metrics = append(metrics, m)
	}
	return metrics
}

func TestDescribe(t *testing.T) {
	c := NewUsageCollector(&stubSource{})

	ch := make(chan *prometheus.Desc, 32)
	go func() {
		c.Describe(ch)
		close(ch)
	}()

	var descs []*prometheus.Desc
	for d := range ch {
		descs = append(descs, d)
	}

	// 17 usage/operational descriptors plus build info
	if len(descs) != 18 {
		t.Errorf("Describe() sent %d descriptors, want 18", len(descs))
	}
}

func TestCollectBeforeFirstPoll(t *testing.T) {
	c := NewUsageCollector(&stubSource{})

	metrics := collect(c)

	// cumulative x2, up, poll_duration, polls_total, poll_errors_total, build info;
	// last_poll stays absent while its timestamp is zero
	if len(metrics) != 7 {
		t.Errorf("Collect() sent %d metrics before the first poll, want 7", len(metrics))
	}
}

func TestCollectWithSnapshot(t *testing.T) {
	source := &stubSource{
		snapshot:  twoHourSnapshot(),
		hasSnap:   true,
		ready:     true,
		cumEnergy: derive.CumulativeState{Value: 3.0, LastProcessedDate: "2025-08-08"},
		cumCost:   derive.CumulativeState{Value: 0.8, LastProcessedDate: "2025-08-08"},
		lastPoll:  time.Date(2025, 8, 10, 8, 0, 0, 0, time.UTC),
		duration:  2 * time.Second,
		polls:     4,
		errs:      1,
	}
	c := NewUsageCollector(source)

	metrics := collect(c)

	// daily x2, average_hourly, peak x2, average_rate, peak/lowest rate x2,
	// hourly x4, cumulative x2, up, last_poll, duration, polls, errors, build info
	if len(metrics) != 20 {
		t.Errorf("Collect() sent %d metrics, want 20", len(metrics))
	}
}

func TestCollectZeroConsumptionDayOmitsRates(t *testing.T) {
	snap := coordinator.Snapshot{
		Series: []mercury.HourlyEntry{
			{Date: "2025-08-08T00:00:00+12:00", Consumption: 0, Cost: 5},
		},
		MeasurementDate: "2025-08-08",
	}
	c := NewUsageCollector(&stubSource{snapshot: snap, hasSnap: true, ready: true})

	found := map[string]bool{}
	for _, m := range collect(c) {
		found[m.Desc().String()] = true
	}

	if found[c.peakRate.String()] || found[c.lowestRate.String()] {
		t.Error("peak/lowest rate exported for a day with no consumption")
	}
	if !found[c.averageRate.String()] {
		t.Error("average rate missing; it should export as 0")
	}
	if !found[c.peakHour.String()] {
		t.Error("peak hour missing for a non-empty series")
	}
}

func TestCollectEmptySeriesSnapshot(t *testing.T) {
	snap := coordinator.Snapshot{MeasurementDate: "", WindowStart: "2025-08-08", WindowEnd: "2025-08-09"}
	c := NewUsageCollector(&stubSource{snapshot: snap, hasSnap: true, ready: true, lastPoll: time.Now()})

	found := map[string]bool{}
	for _, m := range collect(c) {
		found[m.Desc().String()] = true
	}

	// Totals export as zero; positional stats are suppressed.
	if !found[c.dailyConsumption.String()] || !found[c.dailyCost.String()] {
		t.Error("daily totals missing; an empty day should export zeros")
	}
	if found[c.peakHour.String()] || found[c.peakConsumption.String()] {
		t.Error("peak metrics exported for an empty series")
	}
	if found[c.hourlyConsumption.String()] {
		t.Error("hourly breakdown exported for an empty series")
	}
}

func TestUpMetricValue(t *testing.T) {
	tests := []struct {
		name    string
		ready   bool
		lastErr error
	}{
		{"ready and healthy", true, nil},
		{"ready but failing", true, errors.New("api down")},
		{"not ready", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewUsageCollector(&stubSource{ready: tt.ready, lastErr: tt.lastErr})

			found := false
			for _, m := range collect(c) {
				if m.Desc().String() == c.upMetric.String() {
					found = true
				}
			}
			if !found {
				t.Error("up metric not collected")
			}
		})
	}
}

func TestCollectorRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewUsageCollector(&stubSource{})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
}
