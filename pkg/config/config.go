// Package config loads and validates mcp-datasette configuration from YAML
// or JSON files and from single-instance CLI arguments.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/mcp-datasette/pkg/datasette"
)

// DefaultCourtesyDelaySeconds spaces requests to the same instance unless
// the configuration says otherwise.
const DefaultCourtesyDelaySeconds = 0.5

// Config is the parsed server configuration.
type Config struct {
	// Instances in declaration order.
	Instances []Instance

	// CourtesyDelaySeconds is the default minimum spacing between requests
	// to the same instance. Zero disables throttling.
	CourtesyDelaySeconds float64

	// Description is an optional global description of the served datasets,
	// surfaced in the MCP server instructions.
	Description string
}

// Instance is one instance entry from the configuration.
type Instance struct {
	ID                   string   `yaml:"-" json:"-"`
	URL                  string   `yaml:"url" json:"url"`
	Description          string   `yaml:"description" json:"description"`
	AuthToken            string   `yaml:"auth_token" json:"auth_token"`
	CourtesyDelaySeconds *float64 `yaml:"courtesy_delay_seconds" json:"courtesy_delay_seconds"`
}

// fileConfig is the on-disk YAML layout. Instances are decoded through a
// yaml.Node so declaration order survives the mapping.
type fileConfig struct {
	Instances            yaml.Node `yaml:"datasette_instances"`
	CourtesyDelaySeconds *float64  `yaml:"courtesy_delay_seconds"`
	Description          string    `yaml:"description"`
}

// jsonFileConfig is the on-disk JSON layout.
type jsonFileConfig struct {
	Instances            json.RawMessage `json:"datasette_instances"`
	CourtesyDelaySeconds *float64        `json:"courtesy_delay_seconds"`
	Description          string          `json:"description"`
}

// Load reads a configuration file. ${VAR} references are expanded from the
// environment before parsing; .json files use the JSON decoder, everything
// else is treated as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator-controlled flags or discovery
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	data = []byte(expandEnvVars(string(data)))

	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".json") {
		cfg, err = parseJSON(data)
	} else {
		cfg, err = parseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

func parseYAML(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, err
	}

	cfg := &Config{
		CourtesyDelaySeconds: courtesyOrDefault(fc.CourtesyDelaySeconds),
		Description:          fc.Description,
	}

	if fc.Instances.Kind == 0 {
		return cfg, nil
	}
	if fc.Instances.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("datasette_instances must be a mapping of id to instance")
	}
	for i := 0; i+1 < len(fc.Instances.Content); i += 2 {
		id := fc.Instances.Content[i].Value
		var inst Instance
		if err := fc.Instances.Content[i+1].Decode(&inst); err != nil {
			return nil, fmt.Errorf("instance %q: %w", id, err)
		}
		inst.ID = id
		cfg.Instances = append(cfg.Instances, inst)
	}
	return cfg, nil
}

func parseJSON(data []byte) (*Config, error) {
	var fc jsonFileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, err
	}

	cfg := &Config{
		CourtesyDelaySeconds: courtesyOrDefault(fc.CourtesyDelaySeconds),
		Description:          fc.Description,
	}

	if len(fc.Instances) == 0 {
		return cfg, nil
	}
	var byID map[string]Instance
	if err := json.Unmarshal(fc.Instances, &byID); err != nil {
		return nil, fmt.Errorf("datasette_instances must be a mapping of id to instance: %w", err)
	}
	ids, err := datasette.ObjectKeys(fc.Instances)
	if err != nil {
		return nil, fmt.Errorf("datasette_instances must be a mapping of id to instance: %w", err)
	}
	for _, id := range ids {
		inst := byID[id]
		inst.ID = id
		cfg.Instances = append(cfg.Instances, inst)
	}
	return cfg, nil
}

func courtesyOrDefault(v *float64) float64 {
	if v != nil {
		return *v
	}
	return DefaultCourtesyDelaySeconds
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// SingleInstance is the CLI flag bundle for single-instance mode.
type SingleInstance struct {
	URL                  string
	ID                   string
	Description          string
	AuthToken            string
	CourtesyDelaySeconds *float64
}

// FromSingleInstance synthesizes a configuration for one instance given on
// the command line. The id falls back to a slug derived from the URL.
func FromSingleInstance(si SingleInstance) *Config {
	id := si.ID
	if id == "" {
		id = datasette.DeriveID(si.URL)
	}
	return &Config{
		Instances: []Instance{{
			ID:          id,
			URL:         si.URL,
			Description: si.Description,
			AuthToken:   si.AuthToken,
		}},
		CourtesyDelaySeconds: courtesyOrDefault(si.CourtesyDelaySeconds),
		Description:          si.Description,
	}
}

// Validate checks the configuration, collecting every problem into one
// error. Any failure here is startup-fatal.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Instances) == 0 {
		errs = append(errs, "no instances configured under datasette_instances")
	}
	if c.CourtesyDelaySeconds < 0 {
		errs = append(errs, "courtesy_delay_seconds must be non-negative")
	}

	seen := make(map[string]bool, len(c.Instances))
	for _, inst := range c.Instances {
		switch {
		case inst.ID == "":
			errs = append(errs, "instance with an empty id")
		case seen[inst.ID]:
			errs = append(errs, fmt.Sprintf("duplicate instance id %q", inst.ID))
		default:
			seen[inst.ID] = true
		}
		if inst.URL == "" {
			errs = append(errs, fmt.Sprintf("instance %q is missing the required url field", inst.ID))
		} else if !strings.HasPrefix(inst.URL, "http://") && !strings.HasPrefix(inst.URL, "https://") {
			errs = append(errs, fmt.Sprintf("instance %q url must start with http:// or https://: %s", inst.ID, inst.URL))
		}
		if inst.CourtesyDelaySeconds != nil && *inst.CourtesyDelaySeconds < 0 {
			errs = append(errs, fmt.Sprintf("instance %q courtesy_delay_seconds must be non-negative", inst.ID))
		}
	}

	if len(errs) > 0 {
		return &datasette.Error{
			Kind:    datasette.KindConfiguration,
			Message: "config validation errors: " + strings.Join(errs, "; "),
		}
	}
	return nil
}

// Build converts the configuration into registry profiles, resolving the
// effective courtesy delay for each instance.
func (c *Config) Build() []datasette.Instance {
	out := make([]datasette.Instance, 0, len(c.Instances))
	for _, ic := range c.Instances {
		delay := c.CourtesyDelaySeconds
		if ic.CourtesyDelaySeconds != nil {
			delay = *ic.CourtesyDelaySeconds
		}
		out = append(out, datasette.Instance{
			ID:            ic.ID,
			BaseURL:       ic.URL,
			Description:   ic.Description,
			AuthToken:     ic.AuthToken,
			CourtesyDelay: time.Duration(delay * float64(time.Second)),
		})
	}
	return out
}
