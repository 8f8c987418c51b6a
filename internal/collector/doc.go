// Package collector implements a Prometheus collector for the derived
// usage metrics.
//
// The collector is a pure read-side: it holds no state of its own and
// derives every value from the coordinator's cached snapshot at scrape
// time. Daily metrics carry a measurement_date label; the per-hour
// breakdown is exported as labeled series, mirroring the attribute map the
// MQTT publisher sends.
//
// Exposed metrics:
//   - mercury_daily_consumption_kwh / mercury_daily_cost_nzd
//   - mercury_cumulative_consumption_kwh / mercury_cumulative_cost_nzd
//   - mercury_peak_hour / mercury_peak_consumption_kwh / mercury_average_hourly_kwh
//   - mercury_average_rate_nzd_per_kwh / mercury_peak_rate_nzd_per_kwh /
//     mercury_lowest_rate_nzd_per_kwh
//   - mercury_hourly_consumption_kwh / mercury_hourly_cost_nzd (hour label)
//   - up, mercury_exporter_last_poll_timestamp_seconds,
//     mercury_exporter_poll_duration_seconds, mercury_exporter_polls_total,
//     mercury_exporter_poll_errors_total, mercury_exporter_build_info
package collector
