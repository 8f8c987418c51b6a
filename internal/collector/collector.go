package collector

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nzgrid/mercury-usage-exporter/internal/coordinator"
	"github.com/nzgrid/mercury-usage-exporter/internal/derive"
	"github.com/nzgrid/mercury-usage-exporter/internal/version"
)

// UsageSource is the read-only coordinator surface the collector consumes
type UsageSource interface {
	Snapshot() (coordinator.Snapshot, bool)
	Cumulative() (energy, cost derive.CumulativeState)
	IsReady() bool
	LastError() error
	LastPoll() time.Time
	LastPollDuration() time.Duration
	PollsTotal() uint64
	ErrorsTotal() uint64
}

// UsageCollector implements prometheus.Collector over the coordinator's
// cached snapshot. It never triggers a fetch: scrapes read whatever the
// last successful poll published.
type UsageCollector struct {
	source UsageSource

	dailyConsumption  *prometheus.Desc
	dailyCost         *prometheus.Desc
	cumConsumption    *prometheus.Desc
	cumCost           *prometheus.Desc
	peakHour          *prometheus.Desc
	peakConsumption   *prometheus.Desc
	averageHourly     *prometheus.Desc
	averageRate       *prometheus.Desc
	peakRate          *prometheus.Desc
	lowestRate        *prometheus.Desc
	hourlyConsumption *prometheus.Desc
	hourlyCost        *prometheus.Desc

	upMetric        *prometheus.Desc
	lastPollMetric  *prometheus.Desc
	pollDuration    *prometheus.Desc
	pollsTotal      *prometheus.Desc
	pollErrorsTotal *prometheus.Desc
	buildInfo       *prometheus.GaugeVec
}

// NewUsageCollector creates a collector reading from the given source
func NewUsageCollector(source UsageSource) *UsageCollector {
	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mercury_exporter_build_info",
			Help: "Build version information",
		},
		[]string{"version", "git_commit", "build_date", "go_version"},
	)
	versionInfo := version.Info()
	buildInfo.With(prometheus.Labels{
		"version":    versionInfo["version"],
		"git_commit": versionInfo["git_commit"],
		"build_date": versionInfo["build_date"],
		"go_version": versionInfo["go_version"],
	}).Set(1)

	return &UsageCollector{
		source: source,
		dailyConsumption: prometheus.NewDesc(
			"mercury_daily_consumption_kwh",
			"Total electricity consumption for the measured day.",
			[]string{"measurement_date"},
			nil,
		),
		dailyCost: prometheus.NewDesc(
			"mercury_daily_cost_nzd",
			"Total electricity cost for the measured day.",
			[]string{"measurement_date"},
			nil,
		),
		cumConsumption: prometheus.NewDesc(
			"mercury_cumulative_consumption_kwh",
			"Running total of daily consumption, advanced once per measurement date.",
			nil,
			nil,
		),
		cumCost: prometheus.NewDesc(
			"mercury_cumulative_cost_nzd",
			"Running total of daily cost, advanced once per measurement date.",
			nil,
			nil,
		),
		peakHour: prometheus.NewDesc(
			"mercury_peak_hour",
			"Hour index of the day's highest consumption (first occurrence on ties).",
			[]string{"measurement_date"},
			nil,
		),
		peakConsumption: prometheus.NewDesc(
			"mercury_peak_consumption_kwh",
			"Consumption during the day's peak hour.",
			[]string{"measurement_date"},
			nil,
		),
		averageHourly: prometheus.NewDesc(
			"mercury_average_hourly_kwh",
			"Mean hourly consumption over a nominal 24-hour day.",
			[]string{"measurement_date"},
			nil,
		),
		averageRate: prometheus.NewDesc(
			"mercury_average_rate_nzd_per_kwh",
			"Total cost divided by total consumption for the measured day.",
			[]string{"measurement_date"},
			nil,
		),
		peakRate: prometheus.NewDesc(
			"mercury_peak_rate_nzd_per_kwh",
			"Highest per-hour rate among hours with non-zero consumption.",
			[]string{"measurement_date"},
			nil,
		),
		lowestRate: prometheus.NewDesc(
			"mercury_lowest_rate_nzd_per_kwh",
			"Lowest per-hour rate among hours with non-zero consumption.",
			[]string{"measurement_date"},
			nil,
		),
		hourlyConsumption: prometheus.NewDesc(
			"mercury_hourly_consumption_kwh",
			"Per-hour consumption breakdown of the measured day.",
			[]string{"measurement_date", "hour"},
			nil,
		),
		hourlyCost: prometheus.NewDesc(
			"mercury_hourly_cost_nzd",
			"Per-hour cost breakdown of the measured day.",
			[]string{"measurement_date", "hour"},
			nil,
		),
		upMetric: prometheus.NewDesc(
			"up",
			"Was the last poll cycle successful (1 = success, 0 = failure)",
			nil,
			nil,
		),
		lastPollMetric: prometheus.NewDesc(
			"mercury_exporter_last_poll_timestamp_seconds",
			"Unix timestamp of the last completed poll cycle",
			nil,
			nil,
		),
		pollDuration: prometheus.NewDesc(
			"mercury_exporter_poll_duration_seconds",
			"Duration of the last poll cycle in seconds",
			nil,
			nil,
		),
		pollsTotal: prometheus.NewDesc(
			"mercury_exporter_polls_total",
			"Total number of completed poll cycles since startup",
			nil,
			nil,
		),
		pollErrorsTotal: prometheus.NewDesc(
			"mercury_exporter_poll_errors_total",
			"Total number of failed poll cycles since startup",
			nil,
			nil,
		),
		buildInfo: buildInfo,
	}
}

// Describe implements prometheus.Collector
func (c *UsageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.dailyConsumption
	ch <- c.dailyCost
	ch <- c.cumConsumption
	ch <- c.cumCost
	ch <- c.peakHour
	ch <- c.peakConsumption
	ch <- c.averageHourly
	ch <- c.averageRate
	ch <- c.peakRate
	ch <- c.lowestRate
	ch <- c.hourlyConsumption
	ch <- c.hourlyCost
	ch <- c.upMetric
	ch <- c.lastPollMetric
	ch <- c.pollDuration
	ch <- c.pollsTotal
	ch <- c.pollErrorsTotal
	c.buildInfo.Describe(ch)
}

// Collect implements prometheus.Collector
func (c *UsageCollector) Collect(ch chan<- prometheus.Metric) {
	if snap, ok := c.source.Snapshot(); ok {
		date := snap.MeasurementDate

		ch <- prometheus.MustNewConstMetric(c.dailyConsumption, prometheus.GaugeValue,
			derive.DailyTotal(snap.Series, derive.Consumption), date)
		ch <- prometheus.MustNewConstMetric(c.dailyCost, prometheus.GaugeValue,
			derive.DailyTotal(snap.Series, derive.Cost), date)

		peak := derive.PeakAndAverage(snap.Series)
		ch <- prometheus.MustNewConstMetric(c.averageHourly, prometheus.GaugeValue, peak.Average, date)
		if peak.PeakHour >= 0 {
			ch <- prometheus.MustNewConstMetric(c.peakHour, prometheus.GaugeValue, float64(peak.PeakHour), date)
			ch <- prometheus.MustNewConstMetric(c.peakConsumption, prometheus.GaugeValue, peak.PeakValue, date)
		}

		rates := derive.RateStats(snap.Series)
		ch <- prometheus.MustNewConstMetric(c.averageRate, prometheus.GaugeValue, rates.AverageRate, date)
		if rates.TotalConsumption > 0 {
			ch <- prometheus.MustNewConstMetric(c.peakRate, prometheus.GaugeValue, rates.PeakRate, date)
			ch <- prometheus.MustNewConstMetric(c.lowestRate, prometheus.GaugeValue, rates.LowestRate, date)
		}

		for i, entry := range snap.Series {
			hour := strconv.Itoa(i)
			ch <- prometheus.MustNewConstMetric(c.hourlyConsumption, prometheus.GaugeValue, entry.Consumption, date, hour)
			ch <- prometheus.MustNewConstMetric(c.hourlyCost, prometheus.GaugeValue, entry.Cost, date, hour)
		}
	}

	cumEnergy, cumCost := c.source.Cumulative()
	ch <- prometheus.MustNewConstMetric(c.cumConsumption, prometheus.GaugeValue, cumEnergy.Value)
	ch <- prometheus.MustNewConstMetric(c.cumCost, prometheus.GaugeValue, cumCost.Value)

	upValue := 0.0
	if c.source.IsReady() && c.source.LastError() == nil {
		upValue = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.upMetric, prometheus.GaugeValue, upValue)

	if lastPoll := c.source.LastPoll(); !lastPoll.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastPollMetric, prometheus.GaugeValue, float64(lastPoll.Unix()))
	}
	ch <- prometheus.MustNewConstMetric(c.pollDuration, prometheus.GaugeValue, c.source.LastPollDuration().Seconds())
	ch <- prometheus.MustNewConstMetric(c.pollsTotal, prometheus.CounterValue, float64(c.source.PollsTotal()))
	ch <- prometheus.MustNewConstMetric(c.pollErrorsTotal, prometheus.CounterValue, float64(c.source.ErrorsTotal()))

	c.buildInfo.Collect(ch)
}
