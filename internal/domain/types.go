package domain

// OperationType tags a change event written to the compacted log.
type OperationType string

const OperationUpsert OperationType = "UPSERT"

// Tags carries routing and classification labels for a stream.
// Hint selects cluster connection parameters during provisioning.
type Tags struct {
	Hint        string `json:"hint,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
	PortfolioID string `json:"portfolio_id,omitempty"`
	Brand       string `json:"brand,omitempty"`
}

// Producer and Consumer are registered by other subsystems; the registry
// preserves them verbatim across caller-initiated upserts.
type Producer struct {
	Name    string   `json:"name"`
	Regions []string `json:"regions,omitempty"`
}

type Consumer struct {
	Name    string   `json:"name"`
	Regions []string `json:"regions,omitempty"`
}

// Replicator mirrors a stream's data from one placement to another.
type Replicator struct {
	Name            string `json:"name"`
	SourcePlacement string `json:"source_placement,omitempty"`
	TargetPlacement string `json:"target_placement,omitempty"`
}

// Connector ships a stream's data to a downstream sink.
type Connector struct {
	Type   string            `json:"type"`
	Target string            `json:"target,omitempty"`
	Config map[string]string `json:"config,omitempty"`
}

// StreamDefinition is one logical stream spanning one or more placements.
// Name, PartitionCount and ReplicationFactor are immutable after first
// successful creation.
type StreamDefinition struct {
	Name                 string            `json:"name"`
	PartitionCount       int32             `json:"partition_count"`
	ReplicationFactor    int32             `json:"replication_factor"`
	Placements           []string          `json:"placements"`
	ReplicatedPlacements []string          `json:"replicated_placements,omitempty"`
	Tags                 Tags              `json:"tags"`
	TopicConfig          map[string]string `json:"topic_config,omitempty"`
	CreatedAtMs          int64             `json:"created_at_ms,omitempty"`

	Producers   []Producer   `json:"producers,omitempty"`
	Consumers   []Consumer   `json:"consumers,omitempty"`
	Replicators []Replicator `json:"replicators,omitempty"`
	Connectors  []Connector  `json:"connectors,omitempty"`
}

// ChangeEvent is the unit written to the compacted log. A nil Stream is a
// deletion tombstone for Key.
type ChangeEvent struct {
	Key       string
	Operation OperationType
	Stream    *StreamDefinition
}

// Clone returns a deep copy. Merge and view code never hands out shared
// mutable slices or maps.
func (s StreamDefinition) Clone() StreamDefinition {
	out := s
	out.Placements = cloneStrings(s.Placements)
	out.ReplicatedPlacements = cloneStrings(s.ReplicatedPlacements)
	out.TopicConfig = cloneStringMap(s.TopicConfig)
	if s.Producers != nil {
		out.Producers = make([]Producer, len(s.Producers))
		for i, p := range s.Producers {
			p.Regions = cloneStrings(p.Regions)
			out.Producers[i] = p
		}
	}
	if s.Consumers != nil {
		out.Consumers = make([]Consumer, len(s.Consumers))
		for i, c := range s.Consumers {
			c.Regions = cloneStrings(c.Regions)
			out.Consumers[i] = c
		}
	}
	out.Replicators = append([]Replicator(nil), s.Replicators...)
	if s.Connectors != nil {
		out.Connectors = make([]Connector, len(s.Connectors))
		for i, c := range s.Connectors {
			c.Config = cloneStringMap(c.Config)
			out.Connectors[i] = c
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
