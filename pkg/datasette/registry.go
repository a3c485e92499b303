// Package datasette implements the core of the Datasette MCP server: the
// instance registry, the per-instance courtesy throttle, the upstream HTTP
// client with its error taxonomy, request construction, and response
// normalization.
package datasette

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Instance is the resolved connection profile for one configured Datasette
// service.
type Instance struct {
	// ID is the stable identifier callers use to address this instance.
	ID string

	// BaseURL is the absolute root URL of the instance, without a trailing
	// slash.
	BaseURL string

	// Description is optional free text shown to callers by list_instances.
	Description string

	// AuthToken, when non-empty, is forwarded as a bearer token on every
	// request to this instance.
	AuthToken string

	// CourtesyDelay is the minimum spacing between consecutive requests to
	// this instance. Zero disables throttling.
	CourtesyDelay time.Duration
}

// HasAuth reports whether requests to this instance carry credentials.
func (i *Instance) HasAuth() bool {
	return i.AuthToken != ""
}

// Registry holds the configured instances. It is built once at startup and
// read-only afterwards, so concurrent tool calls need no locking.
type Registry struct {
	byID  map[string]*Instance
	order []string
}

// NewRegistry validates the profiles and builds a registry preserving
// declaration order. All validation failures are configuration errors and
// should abort startup.
func NewRegistry(instances []Instance) (*Registry, error) {
	if len(instances) == 0 {
		return nil, newError(KindConfiguration, "no datasette instances configured")
	}

	r := &Registry{byID: make(map[string]*Instance, len(instances))}
	for i := range instances {
		inst := instances[i]
		if inst.ID == "" {
			return nil, newError(KindConfiguration, "instance %d has an empty id", i)
		}
		if _, dup := r.byID[inst.ID]; dup {
			return nil, newError(KindConfiguration, "duplicate instance id %q", inst.ID)
		}
		base, err := validateBaseURL(inst.BaseURL)
		if err != nil {
			return nil, wrapError(KindConfiguration, err, "instance %q has an invalid url %q", inst.ID, inst.BaseURL)
		}
		inst.BaseURL = base
		r.byID[inst.ID] = &inst
		r.order = append(r.order, inst.ID)
	}
	return r, nil
}

// validateBaseURL checks that raw is an absolute http(s) URL and strips any
// trailing slash.
func validateBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", newError(KindConfiguration, "url scheme must be http or https")
	}
	if u.Host == "" {
		return "", newError(KindConfiguration, "url has no host")
	}
	return strings.TrimRight(raw, "/"), nil
}

// Resolve returns the profile registered under id.
func (r *Registry) Resolve(id string) (*Instance, error) {
	inst, ok := r.byID[id]
	if !ok {
		return nil, newError(KindUnknownInstance,
			"unknown instance %q (available: %s)", id, strings.Join(r.order, ", "))
	}
	return inst, nil
}

// List returns all instances in registration order.
func (r *Registry) List() []*Instance {
	out := make([]*Instance, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered instances.
func (r *Registry) Len() int {
	return len(r.order)
}

var nonSlugChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// DeriveID derives a stable instance id from a URL for single-instance mode:
// non-alphanumeric runs collapse to single underscores and the result gets a
// leading underscore so derived ids never collide with hand-picked ones.
func DeriveID(rawURL string) string {
	slug := nonSlugChars.ReplaceAllString(rawURL, "_")
	slug = strings.Trim(slug, "_")
	return "_" + slug
}
