package control

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client is a JSON-RPC client over Unix Domain Socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

func NewClient(socketPath string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{socketPath: socketPath, timeout: timeout}
}

// Call sends method/params and waits for the paired Response.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("control: connect to %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	var paramsJSON json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("control: marshal params: %w", err)
		}
		paramsJSON = data
	}

	reqID := fmt.Sprintf("req-%d", time.Now().UnixNano())
	req := Request{Method: method, Params: paramsJSON, ID: reqID}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("control: send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("control: read response: %w", err)
		}
		return nil, fmt.Errorf("control: connection closed without response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("control: parse response: %w", err)
	}
	return &resp, nil
}

func (c *Client) Pause(ctx context.Context) (*Response, error)  { return c.Call(ctx, "pause", nil) }
func (c *Client) Resume(ctx context.Context) (*Response, error) { return c.Call(ctx, "resume", nil) }
func (c *Client) Abort(ctx context.Context) (*Response, error)  { return c.Call(ctx, "abort", nil) }
func (c *Client) Status(ctx context.Context) (*Response, error) { return c.Call(ctx, "status", nil) }
