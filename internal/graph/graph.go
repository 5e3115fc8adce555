// Package graph maintains the node/edge set for one tenant's active pipeline
// and enforces the structural rules on every mutation.
//
// Every pipeline is built around a fixed backbone, always present and always
// chained in order:
//
//	Ingest -> State-Manager -> Router -> Egress
//
// Worker nodes are added dynamically and may only be wired to the Router, in
// either direction. A Worker counts as connected while at least one
// Router->Worker edge terminates at it; the flag is derived from the edge set
// and never settable directly.
package graph

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the closed set of node kinds.
type Kind string

const (
	KindIngest       Kind = "ingest"
	KindStateManager Kind = "state_manager"
	KindRouter       Kind = "router"
	KindWorker       Kind = "worker"
	KindEgress       Kind = "egress"
)

// Backbone reports whether the kind belongs to the fixed backbone. Backbone
// nodes exist exactly once and are never user-deletable.
func (k Kind) Backbone() bool {
	return k == KindIngest || k == KindStateManager || k == KindRouter || k == KindEgress
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k.Backbone() || k == KindWorker
}

// Metadata is display information attached to a node.
type Metadata struct {
	Label         string `json:"label"`
	Icon          string `json:"icon,omitempty"`
	Description   string `json:"description,omitempty"`
	IntegrationID string `json:"integration_id,omitempty"`
}

// Node is one vertex of the pipeline graph. Connected is meaningful for
// Worker nodes only and is maintained by the graph.
type Node struct {
	ID        string   `json:"id"`
	Kind      Kind     `json:"kind"`
	Meta      Metadata `json:"meta"`
	Connected bool     `json:"connected,omitempty"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the mutable node/edge set for one tenant. It is not safe for
// concurrent use; tenants are serialized by the caller.
type Graph struct {
	nodes     map[string]*Node
	nodeOrder []string
	edges     map[string]Edge
	edgeOrder []string
	backbone  map[Kind]string
}

// New returns a graph seeded with the four backbone nodes and the three edges
// chaining them in canonical order.
func New() *Graph {
	g := &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[string]Edge),
		backbone: make(map[Kind]string),
	}

	seeds := []struct {
		kind Kind
		meta Metadata
	}{
		{KindIngest, Metadata{Label: "CRM Webhook", Icon: "📥"}},
		{KindStateManager, Metadata{Label: "State Manager", Icon: "🗂️"}},
		{KindRouter, Metadata{Label: "Agent Router", Icon: "🧠"}},
		{KindEgress, Metadata{Label: "CRM Final Response", Icon: "📤"}},
	}

	ids := make([]string, len(seeds))
	for i, s := range seeds {
		id, _ := g.AddNode(s.kind, s.meta)
		ids[i] = id
	}
	for i := 0; i+1 < len(ids); i++ {
		g.mustConnect(ids[i], ids[i+1])
	}
	return g
}

func (g *Graph) mustConnect(source, target string) {
	if _, err := g.Connect(source, target); err != nil {
		panic(fmt.Sprintf("graph: seeding backbone edge %s->%s: %v", source, target, err))
	}
}

// AddNode creates a node of the given kind. Worker nodes may always be added;
// backbone kinds exist once and a second creation is rejected with
// CodeDuplicateBackboneNode.
func (g *Graph) AddNode(kind Kind, meta Metadata) (string, error) {
	if !kind.Valid() {
		return "", &ValidationError{Code: CodeUnknownNode, Msg: fmt.Sprintf("unknown node kind %q", kind)}
	}
	if kind.Backbone() {
		if existing, ok := g.backbone[kind]; ok {
			return "", &ValidationError{
				Code: CodeDuplicateBackboneNode,
				Msg:  fmt.Sprintf("backbone node %s already exists as %s", kind, existing),
			}
		}
	}

	id := uuid.New().String()
	g.nodes[id] = &Node{ID: id, Kind: kind, Meta: meta}
	g.nodeOrder = append(g.nodeOrder, id)
	if kind.Backbone() {
		g.backbone[kind] = id
	}
	return id, nil
}

// Connect creates a directed edge from source to target. Validation order:
// both endpoints must exist, the (source, target) pair must be new, and any
// edge touching a Worker must have the Router as its other endpoint. A
// rejected call leaves the graph unchanged. Accepting a Router->Worker edge
// marks that Worker connected.
func (g *Graph) Connect(source, target string) (string, error) {
	src, ok := g.nodes[source]
	if !ok {
		return "", &ValidationError{Code: CodeUnknownNode, Msg: fmt.Sprintf("source node %s does not exist", source)}
	}
	tgt, ok := g.nodes[target]
	if !ok {
		return "", &ValidationError{Code: CodeUnknownNode, Msg: fmt.Sprintf("target node %s does not exist", target)}
	}

	for _, id := range g.edgeOrder {
		e := g.edges[id]
		if e.Source == source && e.Target == target {
			return "", &ValidationError{
				Code: CodeDuplicateEdge,
				Msg:  fmt.Sprintf("edge %s -> %s already exists", source, target),
			}
		}
	}

	routerID := g.backbone[KindRouter]
	if src.Kind == KindWorker && tgt.ID != routerID {
		return "", &ValidationError{
			Code: CodeInvalidWorkerEdge,
			Msg:  "worker outbound edges must terminate at the router",
		}
	}
	if tgt.Kind == KindWorker && src.ID != routerID {
		return "", &ValidationError{
			Code: CodeInvalidWorkerEdge,
			Msg:  "worker inbound edges must originate at the router",
		}
	}

	id := uuid.New().String()
	g.edges[id] = Edge{ID: id, Source: source, Target: target}
	g.edgeOrder = append(g.edgeOrder, id)

	if src.ID == routerID && tgt.Kind == KindWorker {
		tgt.Connected = true
	}
	return id, nil
}

// RemoveEdge deletes the edge. Removing the last Router->Worker edge into a
// Worker clears its connected flag before the call returns.
func (g *Graph) RemoveEdge(edgeID string) error {
	edge, ok := g.edges[edgeID]
	if !ok {
		return fmt.Errorf("edge %s not found", edgeID)
	}

	delete(g.edges, edgeID)
	for i, id := range g.edgeOrder {
		if id == edgeID {
			g.edgeOrder = append(g.edgeOrder[:i], g.edgeOrder[i+1:]...)
			break
		}
	}

	target := g.nodes[edge.Target]
	if target != nil && target.Kind == KindWorker && edge.Source == g.backbone[KindRouter] {
		target.Connected = g.hasInboundRouterEdge(target.ID)
	}
	return nil
}

func (g *Graph) hasInboundRouterEdge(workerID string) bool {
	routerID := g.backbone[KindRouter]
	for _, id := range g.edgeOrder {
		e := g.edges[id]
		if e.Source == routerID && e.Target == workerID {
			return true
		}
	}
	return false
}

// ReachableWorkers returns the IDs of connected Worker nodes in insertion
// order. These are the workers a pipeline run may dispatch to.
func (g *Graph) ReachableWorkers() []string {
	var out []string
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		if n.Kind == KindWorker && n.Connected {
			out = append(out, id)
		}
	}
	return out
}

// Node returns a copy of the node, if it exists.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// BackboneNode returns the ID of the backbone node of the given kind.
func (g *Graph) BackboneNode(kind Kind) (string, bool) {
	id, ok := g.backbone[kind]
	return id, ok
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, *g.nodes[id])
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		out = append(out, g.edges[id])
	}
	return out
}
