package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"streamregistry/internal/domain"
)

const (
	// PrimaryHint is assigned when a definition arrives without a usable hint.
	PrimaryHint = "primary"
	// ProducerRole selects producer-facing cluster connection parameters.
	ProducerRole = "producer"

	DefaultPartitionCount    = 1
	DefaultReplicationFactor = 3
)

// MaterializedView is the read-side projection of the compacted changelog.
// It is populated asynchronously by a log consumer, so a write is not
// immediately visible here.
type MaterializedView interface {
	Lookup(ctx context.Context, name string) (domain.StreamDefinition, bool, error)
	All(ctx context.Context) ([]domain.StreamDefinition, error)
}

// PlacementResolver maps (placement, environment, hint, role) to cluster
// connection properties, e.g. bootstrap servers.
type PlacementResolver interface {
	Resolve(ctx context.Context, placement, environment, hint, role string) (map[string]string, error)
}

// ResourceProvisioner ensures a physical topic exists on a target cluster.
// Implementations must be idempotent.
type ResourceProvisioner interface {
	Ensure(ctx context.Context, name string, partitions, replicationFactor int32, config map[string]string) error
}

// ChangeLogWriter appends one keyed event to the compacted log. A nil stream
// is a deletion tombstone.
type ChangeLogWriter interface {
	Append(ctx context.Context, key string, stream *domain.StreamDefinition) error
}

// Service orchestrates validation, defaulting, merge-against-existing,
// provisioning fan-out and changelog emission.
//
// Concurrent upserts for the same name are not mutually excluded here: both
// may read the same snapshot, provision and append. Last-write-wins is
// resolved by changelog ordering and compaction.
type Service struct {
	view        MaterializedView
	resolver    PlacementResolver
	provisioner ResourceProvisioner
	changelog   ChangeLogWriter
	external    ExternalValidator
	env         string
	logger      *slog.Logger
	now         func() time.Time
}

// Options tunes optional Service collaborators.
type Options struct {
	// Environment qualifies placement resolution, e.g. "prod" or "test".
	Environment string
	// External is an optional validation plugin; nil disables the check.
	External ExternalValidator
	Logger   *slog.Logger
	// Now overrides the creation timestamp clock. Nil means time.Now.
	Now func() time.Time
}

func NewService(view MaterializedView, resolver PlacementResolver, provisioner ResourceProvisioner, changelog ChangeLogWriter, opts Options) (*Service, error) {
	if view == nil {
		return nil, fmt.Errorf("materialized view is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("placement resolver is required")
	}
	if provisioner == nil {
		return nil, fmt.Errorf("resource provisioner is required")
	}
	if changelog == nil {
		return nil, fmt.Errorf("changelog writer is required")
	}
	s := &Service{
		view:        view,
		resolver:    resolver,
		provisioner: provisioner,
		changelog:   changelog,
		external:    opts.External,
		env:         opts.Environment,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Upsert validates and defaults def, merges it against the materialized
// record, provisions every declared placement and appends exactly one UPSERT
// event. Provisioning fully precedes the append; a late append failure can
// leave provisioned topics without a changelog entry, and nothing is rolled
// back. The merged snapshot is returned on success.
func (s *Service) Upsert(ctx context.Context, def domain.StreamDefinition) (domain.StreamDefinition, error) {
	def = def.Clone()
	applyDefaults(&def)

	if err := Validate(def, s.external); err != nil {
		return domain.StreamDefinition{}, err
	}

	existing, found, err := s.view.Lookup(ctx, def.Name)
	if err != nil {
		return domain.StreamDefinition{}, fmt.Errorf("lookup stream %q: %w", def.Name, err)
	}
	if found {
		if def.PartitionCount != existing.PartitionCount {
			return domain.StreamDefinition{}, &ImmutableFieldError{
				Stream:    def.Name,
				Field:     "partition_count",
				Requested: def.PartitionCount,
				Current:   existing.PartitionCount,
			}
		}
		if def.ReplicationFactor != existing.ReplicationFactor {
			return domain.StreamDefinition{}, &ImmutableFieldError{
				Stream:    def.Name,
				Field:     "replication_factor",
				Requested: def.ReplicationFactor,
				Current:   existing.ReplicationFactor,
			}
		}
		// Creation time and sub-records owned by other subsystems carry
		// over from the stored record; caller-supplied values are dropped.
		// Cloned here so the merged snapshot never aliases view storage.
		snapshot := existing.Clone()
		def.CreatedAtMs = snapshot.CreatedAtMs
		def.Producers = snapshot.Producers
		def.Consumers = snapshot.Consumers
		def.Replicators = snapshot.Replicators
		def.Connectors = snapshot.Connectors
	} else {
		def.CreatedAtMs = s.now().UTC().UnixMilli()
		def.Producers = nil
		def.Consumers = nil
		def.Replicators = nil
		def.Connectors = nil
	}

	if err := s.provision(ctx, def); err != nil {
		return domain.StreamDefinition{}, err
	}

	if err := s.changelog.Append(ctx, def.Name, &def); err != nil {
		return domain.StreamDefinition{}, &LogAppendError{Stream: def.Name, Err: err}
	}
	s.logger.Info("stream upserted",
		"stream", def.Name,
		"partitions", def.PartitionCount,
		"replication_factor", def.ReplicationFactor,
		"placements", len(def.Placements),
		"created", !found,
	)
	return def, nil
}

// Get reads the materialized record for name. Absence is not an error.
func (s *Service) Get(ctx context.Context, name string) (domain.StreamDefinition, bool, error) {
	return s.view.Lookup(ctx, name)
}

// GetAll returns every live (non-tombstoned) definition. Ordering is
// whatever the view yields.
func (s *Service) GetAll(ctx context.Context) ([]domain.StreamDefinition, error) {
	return s.view.All(ctx)
}

// Delete appends a tombstone for name. Physical resources are not touched;
// only the logical registry entry goes away. One attempt, no retry.
func (s *Service) Delete(ctx context.Context, name string) error {
	_, found, err := s.view.Lookup(ctx, name)
	if err != nil {
		return fmt.Errorf("lookup stream %q: %w", name, err)
	}
	if !found {
		return &NotFoundError{Stream: name}
	}
	if err := s.changelog.Append(ctx, name, nil); err != nil {
		return &LogAppendError{Stream: name, Err: err}
	}
	s.logger.Info("stream deleted", "stream", name)
	return nil
}

// ApplyExternalUpdate appends a record produced by a trusted subsystem
// (e.g. one attaching a consumer) without validation, merge or provisioning.
// Append failures are logged and swallowed; this path is best-effort
// bookkeeping, unlike Upsert.
func (s *Service) ApplyExternalUpdate(ctx context.Context, def domain.StreamDefinition) {
	def = def.Clone()
	if err := s.changelog.Append(ctx, def.Name, &def); err != nil {
		s.logger.Error("apply external update", "stream", def.Name, "error", err)
	}
}

func (s *Service) provision(ctx context.Context, def domain.StreamDefinition) error {
	for _, placement := range def.Placements {
		if err := s.provisionPlacement(ctx, def, placement); err != nil {
			return err
		}
	}
	for _, placement := range def.ReplicatedPlacements {
		if err := s.provisionPlacement(ctx, def, placement); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) provisionPlacement(ctx context.Context, def domain.StreamDefinition, placement string) error {
	props, err := s.resolver.Resolve(ctx, placement, s.env, def.Tags.Hint, ProducerRole)
	if err != nil {
		return &ProvisioningError{Stream: def.Name, Placement: placement, Err: err}
	}
	cfg := make(map[string]string, len(def.TopicConfig)+len(props))
	for k, v := range def.TopicConfig {
		cfg[k] = v
	}
	// Connection properties win over caller overrides.
	for k, v := range props {
		cfg[k] = v
	}
	if err := s.provisioner.Ensure(ctx, def.Name, def.PartitionCount, def.ReplicationFactor, cfg); err != nil {
		return &ProvisioningError{Stream: def.Name, Placement: placement, Err: err}
	}
	return nil
}

func applyDefaults(def *domain.StreamDefinition) {
	hint := strings.TrimSpace(def.Tags.Hint)
	// A hint of "string" is a placeholder left by templated requests and
	// counts as unset.
	if hint == "" || strings.EqualFold(hint, "string") {
		hint = PrimaryHint
	}
	def.Tags.Hint = hint
	if def.PartitionCount <= 0 {
		def.PartitionCount = DefaultPartitionCount
	}
	if def.ReplicationFactor <= 0 {
		def.ReplicationFactor = DefaultReplicationFactor
	}
}
