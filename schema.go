package batchz

import "encoding/json"

// FlowVariant names the shape of a node's children.
type FlowVariant string

// Flow variants for the nodes that have children.
const (
	FlowVariantPipeline   FlowVariant = "pipeline"
	FlowVariantChain      FlowVariant = "chain"
	FlowVariantDispatcher FlowVariant = "dispatcher"
)

// Node types.
const (
	NodeTypeProcessor  = "processor"
	NodeTypeStream     = "stream"
	NodeTypePipeline   = "pipeline"
	NodeTypeChain      = "chain"
	NodeTypeDispatcher = "dispatcher"
	NodeTypeOwner      = "owner"
	NodeTypeInput      = "input"
	NodeTypeTransform  = "transform"
	NodeTypeOutput     = "output"
)

// Flow represents how children are organized within a node.
// Leaf nodes (stages, processors, streams) have nil Flow.
type Flow interface {
	Variant() FlowVariant
}

// FlowKey provides type-safe extraction of a Flow from a Node.
//
//	if p, ok := batchz.PipelineKey.From(node); ok {
//	    for _, stage := range p.Stages {
//	        fmt.Println(stage.Identity.Name())
//	    }
//	}
type FlowKey[T Flow] struct {
	variant FlowVariant
}

// Variant reports which flow the key extracts.
func (k FlowKey[T]) Variant() FlowVariant { return k.variant }

// From returns the node's flow when it has this key's type.
func (FlowKey[T]) From(node Node) (T, bool) {
	var zero T
	if node.Flow == nil {
		return zero, false
	}
	if flow, ok := node.Flow.(T); ok {
		return flow, true
	}
	return zero, false
}

// Keys for the built-in flows.
var (
	PipelineKey   = FlowKey[PipelineFlow]{variant: FlowVariantPipeline}
	ChainKey      = FlowKey[ChainFlow]{variant: FlowVariantChain}
	DispatcherKey = FlowKey[DispatcherFlow]{variant: FlowVariantDispatcher}
)

// PipelineFlow lists a pipeline's stages in execution order.
type PipelineFlow struct {
	Stages []Node `json:"stages"`
}

// Variant implements Flow.
func (PipelineFlow) Variant() FlowVariant { return FlowVariantPipeline }

// ChainFlow lists a chain's links in execution order.
type ChainFlow struct {
	Links []Node `json:"links"`
}

// Variant implements Flow.
func (ChainFlow) Variant() FlowVariant { return FlowVariantChain }

// DispatcherFlow lists a dispatcher's owners in registration order.
type DispatcherFlow struct {
	Owners []Node `json:"owners"`
}

// Variant implements Flow.
func (DispatcherFlow) Variant() FlowVariant { return FlowVariantDispatcher }

// Node describes one component for display and tooling. It is built from a
// live component and never executes anything.
type Node struct {
	Identity Identity       `json:"-"`
	Type     string         `json:"type"`
	Flow     Flow           `json:"flow,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// nodeJSON flattens Identity into separate fields for serialization.
type nodeJSON struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type"`
	Flow        Flow           `json:"flow,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON flattens the identity into id, name and description.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeJSON{
		ID:          n.Identity.ID().String(),
		Name:        n.Identity.Name(),
		Description: n.Identity.Description(),
		Type:        n.Type,
		Flow:        n.Flow,
		Metadata:    n.Metadata,
	})
}

// Schema wraps a root Node and provides traversal.
type Schema struct {
	Root Node `json:"root"`
}

// NewSchema creates a Schema from a root node.
func NewSchema(root Node) Schema {
	return Schema{Root: root}
}

// Walk traverses the schema tree depth-first, pre-order.
func (s Schema) Walk(fn func(Node)) {
	walkNode(s.Root, fn)
}

func walkNode(node Node, fn func(Node)) {
	fn(node)

	switch f := node.Flow.(type) {
	case PipelineFlow:
		for _, stage := range f.Stages {
			walkNode(stage, fn)
		}
	case ChainFlow:
		for _, link := range f.Links {
			walkNode(link, fn)
		}
	case DispatcherFlow:
		for _, owner := range f.Owners {
			walkNode(owner, fn)
		}
	}
}

// Find returns the first node, in walk order, that satisfies predicate.
func (s Schema) Find(predicate func(Node) bool) *Node {
	var result *Node
	s.Walk(func(node Node) {
		if result == nil && predicate(node) {
			result = &node
		}
	})
	return result
}

// FindByName looks a component up by name. Nil when absent.
func (s Schema) FindByName(name Name) *Node {
	return s.Find(func(n Node) bool {
		return n.Identity.Name() == name
	})
}

// FindByType collects every node whose Type matches.
func (s Schema) FindByType(nodeType string) []Node {
	var results []Node
	s.Walk(func(node Node) {
		if node.Type == nodeType {
			results = append(results, node)
		}
	})
	return results
}

// Count returns the total number of nodes.
func (s Schema) Count() int {
	count := 0
	s.Walk(func(Node) { count++ })
	return count
}

func stageNode(stage Stage) Node {
	node := Node{Identity: stage.Identity()}
	switch s := stage.(type) {
	case InputStage:
		node.Type = NodeTypeInput
	case TransformStage:
		node.Type = NodeTypeTransform
		node.Metadata = map[string]any{"separator": s.separator(), "status": s.status()}
	case OutputStage:
		node.Type = NodeTypeOutput
	}
	return node
}

// Schema describes the processor.
func (p *Processor) Schema() Node {
	return Node{
		Identity: p.identity,
		Type:     NodeTypeProcessor,
		Metadata: map[string]any{"kind": p.kind.String()},
	}
}

// Schema describes the stream.
func (s *Stream) Schema() Node {
	return Node{
		Identity: s.identity,
		Type:     NodeTypeStream,
		Metadata: map[string]any{"kind": s.kind.String(), "type": s.kind.TypeLabel()},
	}
}

// Schema describes the pipeline and its stages.
func (p *Pipeline) Schema() Node {
	p.mu.RLock()
	stages := make([]Node, len(p.stages))
	for i, stage := range p.stages {
		stages[i] = stageNode(stage)
	}
	p.mu.RUnlock()

	return Node{
		Identity: p.identity,
		Type:     NodeTypePipeline,
		Flow:     PipelineFlow{Stages: stages},
		Metadata: map[string]any{"adapter": p.adapter.String()},
	}
}

// Schema describes the chain and its links.
func (c *Chain) Schema() Node {
	c.mu.RLock()
	links := make([]Node, len(c.links))
	for i, link := range c.links {
		links[i] = describeNode(link)
	}
	c.mu.RUnlock()

	return Node{
		Identity: c.identity,
		Type:     NodeTypeChain,
		Flow:     ChainFlow{Links: links},
	}
}

// Schema describes the dispatcher and its owners.
func (d *Dispatcher) Schema() Node {
	d.mu.RLock()
	owners := make([]Node, len(d.owners))
	for i, owner := range d.owners {
		owners[i] = describeNode(owner)
	}
	d.mu.RUnlock()

	return Node{
		Identity: d.identity,
		Type:     NodeTypeDispatcher,
		Flow:     DispatcherFlow{Owners: owners},
		Metadata: map[string]any{"capacity": d.capacity},
	}
}

// describeNode returns v's own schema when it has one, or a leaf owner node.
func describeNode(v any) Node {
	if s, ok := v.(interface{ Schema() Node }); ok {
		return s.Schema()
	}
	switch o := v.(type) {
	case Chainable:
		return Node{Identity: o.Identity(), Type: NodeTypeChain}
	case Owner:
		return Node{Identity: NewIdentity(o.ID(), o.Label()), Type: NodeTypeOwner}
	}
	return Node{Type: NodeTypeOwner}
}
