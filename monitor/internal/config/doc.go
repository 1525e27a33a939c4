// Package config loads and watches the monitor configuration file (config.yaml).
//
// Top-level types:
//   - Config{LogLevel, HTTP, Measurement, History, Sensor, Alerts}: full tree
//   - HTTPConfig: port, auth (none|apikey, header, key_env), broadcast_interval
//   - MeasurementConfig: per-kind durations, progress ticker settings,
//     camera frame rate, inference seed
//   - HistoryConfig: retention and max_records, both 0 = unbounded
//   - SensorConfig: mode (synthetic|replay), replay_file, synthetic model
//   - AlertsConfig: abnormal-reading rules and webhook targets
//
// Load(path) reads the YAML file, applies defaults (port 8080, 30/30/15s
// durations, 300ms/10/90 progress, synthetic sensor), then validates.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config, keeping the previous one when the
// new file does not parse.
package config
