// Package rpcclient talks JSON-RPC 2.0 to a powledgerd node.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Klingon-tech/powledger/internal/rpc"
)

// DefaultTimeout bounds a single call, including the node's response time.
const DefaultTimeout = 10 * time.Second

// maxResponseSize caps how much of a response body is read.
// A full chain dump is the largest reply a node sends.
const maxResponseSize = 64 << 20

// Client is a JSON-RPC client for one node endpoint. It is safe for
// concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Uint64
}

// New creates a client for endpoint, e.g. "http://127.0.0.1:8545".
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, DefaultTimeout)
}

// NewWithTimeout is New with a custom per-call timeout.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// reply mirrors rpc.Response but keeps the result raw until the caller
// says what it should decode into.
type reply struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *replyError     `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

// replyError is rpc.Error with the data member left undecoded.
type replyError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RPCError is returned when the node answers with a JSON-RPC error object.
// Data holds the raw data member, if any.
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
	Method  string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// Call invokes method and decodes the result into result (nil discards it).
func (c *Client) Call(method string, params, result interface{}) error {
	return c.CallContext(context.Background(), method, params, result)
}

// CallContext is Call bounded by ctx as well as the client timeout.
func (c *Client) CallContext(ctx context.Context, method string, params, result interface{}) error {
	id := c.nextID.Add(1)
	body, err := json.Marshal(rpc.Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	// The node rejects filtered IPs and bad verbs before speaking JSON-RPC.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if r.Error != nil {
		return &RPCError{Code: r.Error.Code, Message: r.Error.Message, Data: r.Error.Data, Method: method}
	}
	if r.ID != id {
		return fmt.Errorf("%s: response id %d, want %d", method, r.ID, id)
	}

	if result != nil && len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
