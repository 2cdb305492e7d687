// Package output renders stashkv CLI results.
//
//   - formatter.go: Formatter interface, --output parsing
//   - table.go: aligned columns for Tabular values, key/value maps and scalars
//   - json.go: indented JSON
//   - yaml.go: YAML through gopkg.in/yaml.v3
//
// Table output is for people; json and yaml are stable for scripts.
package output
