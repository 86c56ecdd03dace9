package editorbus

import (
	"context"
	"sync"
)

// Call is one request observed by a Recorder.
type Call struct {
	Namespace string
	Action    string
	Args      []any
	Send      bool
}

// Key returns "namespace/action".
func (c Call) Key() string {
	return c.Namespace + "/" + c.Action
}

// Reply is a canned response for a Recorder route.
type Reply struct {
	Result any
	Err    error
}

// Recorder is an in-memory Bus that records every call and answers from a
// route table keyed by "namespace/action". Unrouted requests get a nil result.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	routes  map[string]func(args []any) (any, error)
	unknown error
}

func NewRecorder() *Recorder {
	return &Recorder{routes: make(map[string]func(args []any) (any, error))}
}

// On answers namespace/action with a fixed reply.
func (r *Recorder) On(namespace, action string, reply Reply) *Recorder {
	return r.OnFunc(namespace, action, func([]any) (any, error) { return reply.Result, reply.Err })
}

// OnFunc answers namespace/action by calling fn with the request args.
func (r *Recorder) OnFunc(namespace, action string, fn func(args []any) (any, error)) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[namespace+"/"+action] = fn
	return r
}

// FailUnrouted makes requests without a route fail with err.
func (r *Recorder) FailUnrouted(err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unknown = err
	return r
}

func (r *Recorder) Request(ctx context.Context, namespace, action string, args ...any) (any, error) {
	return r.dispatch(Call{Namespace: namespace, Action: action, Args: args})
}

func (r *Recorder) Send(ctx context.Context, namespace, action string, args ...any) error {
	_, err := r.dispatch(Call{Namespace: namespace, Action: action, Args: args, Send: true})
	return err
}

func (r *Recorder) dispatch(call Call) (any, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	fn, ok := r.routes[call.Key()]
	unknown := r.unknown
	r.mu.Unlock()

	if !ok {
		return nil, unknown
	}
	return fn(call.Args)
}

// Calls returns a copy of every recorded call in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Keys returns the "namespace/action" of every recorded call in order.
func (r *Recorder) Keys() []string {
	calls := r.Calls()
	keys := make([]string, 0, len(calls))
	for _, call := range calls {
		keys = append(keys, call.Key())
	}
	return keys
}
