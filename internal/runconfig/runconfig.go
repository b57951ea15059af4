// Package runconfig loads the variables file passed to `nodeflow run --vars`.
package runconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"nodeflow/pkg/workflow"
)

// Config seeds the execution context of one run. Zero fields take defaults
// from the workflow and the clock (see ExecContext).
type Config struct {
	WorkflowID string         `json:"workflowId,omitempty" yaml:"workflowId,omitempty"`
	Timestamp  int64          `json:"timestamp,omitempty" yaml:"timestamp,omitempty"` // Unix milliseconds
	Variables  map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// LoadFromPath reads a run config file (YAML or JSON).
// Format is detected by extension (.yaml/.yml → YAML, .json → JSON) or by content (first non-whitespace char).
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses a run config from bytes. ext is a format hint; empty = detect from content.
func Load(data []byte, ext string) (*Config, error) {
	var c Config
	switch workflow.DetectFormat(ext, data) {
	case workflow.FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("parse run config json: %w", err)
		}
		for k, v := range c.Variables {
			c.Variables[k] = normalizeNumbers(v)
		}
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse run config yaml: %w", err)
		}
	}
	if c.Timestamp < 0 {
		return nil, fmt.Errorf("run config: negative timestamp %d", c.Timestamp)
	}
	return &c, nil
}

// normalizeNumbers turns json.Number values into int64 when integral, float64 otherwise.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeNumbers(e)
		}
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	}
	return v
}

// ExecContext builds the execution context for g. The workflow id defaults
// to g.ID and the timestamp to now.
func (c *Config) ExecContext(g *workflow.Graph, now time.Time) workflow.ExecContext {
	ectx := workflow.ExecContext{
		WorkflowID: g.ID,
		Timestamp:  now.UnixMilli(),
		Variables:  map[string]any{},
	}
	if c == nil {
		return ectx
	}
	if c.WorkflowID != "" {
		ectx.WorkflowID = workflow.WorkflowID(c.WorkflowID)
	}
	if c.Timestamp != 0 {
		ectx.Timestamp = c.Timestamp
	}
	for k, v := range c.Variables {
		ectx.Variables[k] = v
	}
	return ectx
}
