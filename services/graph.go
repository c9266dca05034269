package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github/itish2003/healthagent/models"
	"github/itish2003/healthagent/store"
)

// END terminates a graph.
const END = "__end__"

// State is threaded through every node of a run. Nodes read what earlier
// nodes wrote and fill in their own fields.
type State struct {
	RunID    string `json:"run_id"`
	UserID   string `json:"user_id"`
	Day      string `json:"day"`
	Question string `json:"question"`
	Language string `json:"language"`

	DietInput     string `json:"diet_input"`
	ExerciseInput string `json:"exercise_input"`

	DietSummary     string           `json:"diet_summary"`
	ExerciseSummary string           `json:"exercise_summary"`
	RetrievalQuery  string           `json:"retrieval_query"`
	Snippets        []models.Snippet `json:"snippets"`
	RAGNotes        string           `json:"rag_notes"`
	Recommendations string           `json:"recommendations"`
	Plan            string           `json:"plan"`
	Answer          string           `json:"answer"`

	Trace []string `json:"trace"`
}

// NodeFunc is one step of a graph.
type NodeFunc func(ctx context.Context, s *State) error

// Checkpointer receives a snapshot after every node.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, cp store.Checkpoint) error
}

// Graph is a builder for a linear chain of named nodes ending in END.
type Graph struct {
	name  string
	nodes map[string]NodeFunc
	order []string
	edges map[string]string
	entry string
	errs  []error
}

func NewGraph(name string) *Graph {
	return &Graph{
		name:  name,
		nodes: make(map[string]NodeFunc),
		edges: make(map[string]string),
	}
}

func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	switch {
	case name == "" || name == END:
		g.errs = append(g.errs, fmt.Errorf("invalid node name %q", name))
	case fn == nil:
		g.errs = append(g.errs, fmt.Errorf("node %q has no function", name))
	default:
		if _, dup := g.nodes[name]; dup {
			g.errs = append(g.errs, fmt.Errorf("duplicate node %q", name))
			return g
		}
		g.nodes[name] = fn
		g.order = append(g.order, name)
	}
	return g
}

func (g *Graph) AddEdge(from, to string) *Graph {
	if prev, ok := g.edges[from]; ok {
		g.errs = append(g.errs, fmt.Errorf("node %q already has an edge to %q", from, prev))
		return g
	}
	g.edges[from] = to
	return g
}

func (g *Graph) SetEntry(name string) *Graph {
	g.entry = name
	return g
}

// Compile validates the graph: every edge joins known nodes and the entry
// reaches END through every node exactly once.
func (g *Graph) Compile(opts ...RunnerOption) (*Runner, error) {
	if len(g.errs) > 0 {
		return nil, fmt.Errorf("graph %s: %w", g.name, g.errs[0])
	}
	if g.entry == "" {
		return nil, fmt.Errorf("graph %s: no entry node", g.name)
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("graph %s: unknown entry node %q", g.name, g.entry)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph %s: edge from unknown node %q", g.name, from)
		}
		if _, ok := g.nodes[to]; !ok && to != END {
			return nil, fmt.Errorf("graph %s: edge to unknown node %q", g.name, to)
		}
	}

	path := make([]string, 0, len(g.nodes))
	seen := make(map[string]bool, len(g.nodes))
	for cur := g.entry; cur != END; {
		if seen[cur] {
			return nil, fmt.Errorf("graph %s: cycle at node %q", g.name, cur)
		}
		seen[cur] = true
		path = append(path, cur)
		next, ok := g.edges[cur]
		if !ok {
			return nil, fmt.Errorf("graph %s: node %q has no outgoing edge", g.name, cur)
		}
		cur = next
	}
	for _, name := range g.order {
		if !seen[name] {
			return nil, fmt.Errorf("graph %s: node %q is unreachable", g.name, name)
		}
	}

	steps := make([]step, len(path))
	for i, name := range path {
		steps[i] = step{name: name, fn: g.nodes[name]}
	}
	r := &Runner{name: g.name, steps: steps}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type step struct {
	name string
	fn   NodeFunc
}

// RunnerOption configures a compiled graph.
type RunnerOption func(*Runner)

// WithCheckpointer persists a snapshot after each node.
func WithCheckpointer(cp Checkpointer) RunnerOption {
	return func(r *Runner) { r.checkpointer = cp }
}

// Runner executes a compiled graph.
type Runner struct {
	name         string
	steps        []step
	checkpointer Checkpointer
}

// Name returns the graph name.
func (r *Runner) Name() string { return r.name }

// Nodes returns the execution order.
func (r *Runner) Nodes() []string {
	out := make([]string, len(r.steps))
	for i, s := range r.steps {
		out[i] = s.name
	}
	return out
}

// Run executes every node in order against s. It stops at the first node
// error or when ctx is done. Checkpoint failures are logged, not returned.
func (r *Runner) Run(ctx context.Context, s *State) error {
	for i, st := range r.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("graph %s cancelled before %s: %w", r.name, st.name, err)
		}

		log.Printf("GRAPH: [%s] run %s -> %s", r.name, s.RunID, st.name)
		start := time.Now()
		err := st.fn(ctx, s)
		graphNodeDuration.WithLabelValues(r.name, st.name).Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("graph %s node %s: %w", r.name, st.name, err)
		}
		s.Trace = append(s.Trace, st.name)

		if r.checkpointer != nil {
			r.checkpoint(ctx, i, st.name, s)
		}
	}
	return nil
}

func (r *Runner) checkpoint(ctx context.Context, seq int, node string, s *State) {
	snapshot, err := json.Marshal(s)
	if err != nil {
		log.Printf("GRAPH WARN: could not marshal state after %s: %v", node, err)
		return
	}
	err = r.checkpointer.SaveCheckpoint(ctx, store.Checkpoint{
		RunID:  s.RunID,
		Graph:  r.name,
		Node:   node,
		Seq:    seq,
		UserID: s.UserID,
		Day:    s.Day,
		State:  snapshot,
	})
	if err != nil {
		log.Printf("GRAPH WARN: checkpoint after %s failed: %v", node, err)
	}
}
