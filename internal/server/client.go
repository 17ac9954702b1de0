package server

import (
	"context"
	"fmt"

	"github.com/funvibe/loopviz/internal/engine"
	"github.com/funvibe/loopviz/internal/wire"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ScenarioInfo describes a scenario offered by the server.
type ScenarioInfo struct {
	ID          string
	Name        string
	Description string
	Code        string
}

// Snapshot is a session state as returned by the server.
type Snapshot struct {
	SessionID  string
	ScenarioID string
	State      engine.State
}

// Client calls EngineService.
type Client struct {
	conn  grpc.ClientConnInterface
	owned *grpc.ClientConn
}

// Dial connects to target. Without options the connection is insecure.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn, owned: conn}, nil
}

// NewClient uses an existing connection; Close leaves it open.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Close releases a connection opened by Dial.
func (c *Client) Close() error {
	if c.owned == nil {
		return nil
	}
	return c.owned.Close()
}

func (c *Client) invoke(ctx context.Context, name string, fields map[string]any) (*dynamic.Message, error) {
	md, err := method(name)
	if err != nil {
		return nil, err
	}
	in := dynamic.NewMessage(md.GetInputType())
	for k, v := range fields {
		if err := in.TrySetFieldByName(k, v); err != nil {
			return nil, err
		}
	}
	out := dynamic.NewMessage(md.GetOutputType())
	if err := c.conn.Invoke(ctx, fullMethod(name), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListScenarios returns the server catalog in order.
func (c *Client) ListScenarios(ctx context.Context) ([]ScenarioInfo, error) {
	out, err := c.invoke(ctx, "ListScenarios", nil)
	if err != nil {
		return nil, err
	}
	raw, err := out.TryGetFieldByName("scenarios")
	if err != nil {
		return nil, err
	}
	items, _ := raw.([]any)
	list := make([]ScenarioInfo, 0, len(items))
	for _, item := range items {
		m, ok := item.(*dynamic.Message)
		if !ok {
			return nil, fmt.Errorf("unexpected scenario entry %T", item)
		}
		list = append(list, ScenarioInfo{
			ID:          stringField(m, "id"),
			Name:        stringField(m, "name"),
			Description: stringField(m, "description"),
			Code:        stringField(m, "code"),
		})
	}
	return list, nil
}

// Open starts a session on the scenario with the given id.
func (c *Client) Open(ctx context.Context, scenarioID string) (Snapshot, error) {
	return c.snapshot(ctx, "Open", map[string]any{"scenario_id": scenarioID})
}

// Step executes one instruction of the session.
func (c *Client) Step(ctx context.Context, sessionID string) (Snapshot, error) {
	return c.snapshot(ctx, "Step", map[string]any{"session_id": sessionID})
}

// Reset rewinds the session.
func (c *Client) Reset(ctx context.Context, sessionID string) (Snapshot, error) {
	return c.snapshot(ctx, "Reset", map[string]any{"session_id": sessionID})
}

// State fetches the current snapshot without stepping.
func (c *Client) State(ctx context.Context, sessionID string) (Snapshot, error) {
	return c.snapshot(ctx, "State", map[string]any{"session_id": sessionID})
}

// CloseSession removes the session and reports whether it existed.
func (c *Client) CloseSession(ctx context.Context, sessionID string) (bool, error) {
	out, err := c.invoke(ctx, "Close", map[string]any{"session_id": sessionID})
	if err != nil {
		return false, err
	}
	v, err := out.TryGetFieldByName("closed")
	if err != nil {
		return false, err
	}
	closed, _ := v.(bool)
	return closed, nil
}

func (c *Client) snapshot(ctx context.Context, name string, fields map[string]any) (Snapshot, error) {
	out, err := c.invoke(ctx, name, fields)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		SessionID:  stringField(out, "session_id"),
		ScenarioID: stringField(out, "scenario_id"),
	}
	raw, err := out.TryGetFieldByName("state")
	if err != nil {
		return Snapshot{}, err
	}
	data, _ := raw.([]byte)
	if err := wire.Decode(wire.CBOR, data, &snap.State); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
