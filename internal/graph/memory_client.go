package graph

import (
	"context"
	"strings"
	"sync"
)

// Mode tells reads and writes apart in recorded calls.
type Mode string

const (
	ModeRead  Mode = "read"
	ModeWrite Mode = "write"
)

// Call is one statement executed against a MemoryClient.
type Call struct {
	Mode   Mode
	Query  string
	Params map[string]any
}

type scripted struct {
	match  string
	result Result
}

// MemoryClient is an in-process Client for tests. Results are scripted by
// query fragment and every call is recorded.
type MemoryClient struct {
	mu           sync.Mutex
	calls        []Call
	scripts      []scripted
	err          error
	connectivity error
	closed       bool
}

// NewMemoryClient returns an empty client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// Respond returns res, once, for the next statement containing match.
func (m *MemoryClient) Respond(match string, res Result) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, scripted{match: match, result: res})
	return m
}

// FailWith makes every statement return err until cleared with nil.
func (m *MemoryClient) FailWith(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithConnectivityError forces VerifyConnectivity to return err.
func (m *MemoryClient) WithConnectivityError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = err
	return m
}

func (m *MemoryClient) ExecuteWrite(_ context.Context, cypher string, params map[string]any) (Result, error) {
	return m.run(ModeWrite, cypher, params)
}

func (m *MemoryClient) ExecuteRead(_ context.Context, cypher string, params map[string]any) (Result, error) {
	return m.run(ModeRead, cypher, params)
}

func (m *MemoryClient) run(mode Mode, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Result{}, m.err
	}
	m.calls = append(m.calls, Call{Mode: mode, Query: cypher, Params: cloneParams(params)})

	for i, s := range m.scripts {
		if strings.Contains(cypher, s.match) {
			m.scripts = append(m.scripts[:i], m.scripts[i+1:]...)
			return s.result, nil
		}
	}
	return Result{}, nil
}

func (m *MemoryClient) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectivity
}

func (m *MemoryClient) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns every recorded statement in execution order.
func (m *MemoryClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Writes returns only the recorded write statements.
func (m *MemoryClient) Writes() []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Mode == ModeWrite {
			out = append(out, c)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (m *MemoryClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func cloneParams(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
