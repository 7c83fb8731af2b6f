// Package output renders celerix-cli results as a table, JSON or YAML.
//
// Values read from the store are decoded JSON trees, so every format
// handles nil, bool, int64, uint64, float64, string, []any and
// map[string]any.
package output
