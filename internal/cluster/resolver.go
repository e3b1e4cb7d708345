package cluster

import (
	"context"
	"fmt"
)

// BootstrapServers is the connection property every resolved cluster carries.
const BootstrapServers = "bootstrap.servers"

// Entry describes one physical cluster a placement can resolve to. An empty
// Role matches any requested role.
type Entry struct {
	Placement   string
	Environment string
	Hint        string
	Role        string
	Properties  map[string]string
}

// PlacementNotFoundError reports an unresolvable placement triple.
type PlacementNotFoundError struct {
	Placement   string
	Environment string
	Hint        string
	Role        string
}

func (e *PlacementNotFoundError) Error() string {
	return fmt.Sprintf("no cluster for placement %q environment %q hint %q role %q",
		e.Placement, e.Environment, e.Hint, e.Role)
}

// StaticResolver resolves placements against a fixed, config-supplied table.
type StaticResolver struct {
	entries []Entry
}

func NewStaticResolver(entries []Entry) (*StaticResolver, error) {
	for _, e := range entries {
		if e.Placement == "" {
			return nil, fmt.Errorf("cluster entry without placement")
		}
		if e.Properties[BootstrapServers] == "" {
			return nil, fmt.Errorf("cluster entry %q/%q missing %s", e.Placement, e.Hint, BootstrapServers)
		}
	}
	return &StaticResolver{entries: entries}, nil
}

func (r *StaticResolver) Resolve(_ context.Context, placement, environment, hint, role string) (map[string]string, error) {
	for _, e := range r.entries {
		if e.Placement != placement || e.Environment != environment || e.Hint != hint {
			continue
		}
		if e.Role != "" && e.Role != role {
			continue
		}
		out := make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			out[k] = v
		}
		return out, nil
	}
	return nil, &PlacementNotFoundError{Placement: placement, Environment: environment, Hint: hint, Role: role}
}
