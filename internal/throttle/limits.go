package throttle

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Limits bounds concurrent calls of one operation against one endpoint.
type Limits struct {
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	RetryDelay  time.Duration `yaml:"retry_delay" json:"retry_delay"`
	Lease       time.Duration `yaml:"lease" json:"lease"`
}

// DefaultLimits applies to every operation without an override.
var DefaultLimits = Limits{
	Concurrency: 1,
	RetryDelay:  30 * time.Second,
	Lease:       3600 * time.Second,
}

// overrideFile is the YAML layout of THROTTLE_CONFIG:
//
//	operations:
//	  provision:
//	    concurrency: 4
//	    retry_delay: 10s
type overrideFile struct {
	Operations map[string]struct {
		Concurrency int    `yaml:"concurrency"`
		RetryDelay  string `yaml:"retry_delay"`
		Lease       string `yaml:"lease"`
	} `yaml:"operations"`
}

// LoadOverrides reads per-operation limits from a YAML file. An empty path
// yields no overrides.
func LoadOverrides(path string) (map[string]Limits, error) {
	if path == "" {
		return map[string]Limits{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read throttle config: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes the YAML override document. Unset fields keep
// their default.
func ParseOverrides(data []byte) (map[string]Limits, error) {
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse throttle config: %w", err)
	}
	out := make(map[string]Limits, len(f.Operations))
	for op, o := range f.Operations {
		l := DefaultLimits
		if o.Concurrency > 0 {
			l.Concurrency = o.Concurrency
		}
		if o.RetryDelay != "" {
			d, err := time.ParseDuration(o.RetryDelay)
			if err != nil {
				return nil, fmt.Errorf("operation %s: retry_delay: %w", op, err)
			}
			l.RetryDelay = d
		}
		if o.Lease != "" {
			d, err := time.ParseDuration(o.Lease)
			if err != nil {
				return nil, fmt.Errorf("operation %s: lease: %w", op, err)
			}
			l.Lease = d
		}
		out[op] = l
	}
	return out, nil
}
