// Package nodeclient polls a running node's status and RPC endpoints.
package nodeclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	ErrStatusUnavailable = errors.New("nodeclient: status endpoint unavailable")
	ErrRPCFailure        = errors.New("nodeclient: rpc call failed")
)

const (
	// DefaultStatusPort is the node's REST status port.
	DefaultStatusPort = 8888
	// DefaultRPCPort is the node's JSON-RPC port.
	DefaultRPCPort = 7777
)

// BlockInfo is the subset of last_added_block_info the tool reports on.
type BlockInfo struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
	EraID  uint64 `json:"era_id"`
}

// NodeStatus is the subset of the node's /status response the tool uses.
type NodeStatus struct {
	ChainspecName       string            `json:"chainspec_name"`
	LastAddedBlockInfo  *BlockInfo        `json:"last_added_block_info"`
	Peers               []json.RawMessage `json:"peers"`
	Uptime              string            `json:"uptime"`
	BuildVersion        string            `json:"build_version"`
	OurPublicSigningKey string            `json:"our_public_signing_key"`
	NextUpgrade         json.RawMessage   `json:"next_upgrade"`
}

// Client talks to one or more nodes over their status and RPC ports.
type Client struct {
	client     *http.Client
	statusPort int
	rpcPort    int
}

func New() *Client {
	return &Client{
		client:     &http.Client{Timeout: 5 * time.Second},
		statusPort: DefaultStatusPort,
		rpcPort:    DefaultRPCPort,
	}
}

// NewWithPorts is used by tests to point at httptest servers.
func NewWithPorts(statusPort, rpcPort int) *Client {
	c := New()
	c.statusPort = statusPort
	c.rpcPort = rpcPort
	return c
}

// Status fetches http://{ip}:{statusPort}/status.
func (c *Client) Status(ip string) (NodeStatus, error) {
	url := fmt.Sprintf("http://%s:%d/status", ip, c.statusPort)
	resp, err := c.client.Get(url)
	if err != nil {
		return NodeStatus{}, fmt.Errorf("%w: %s: %v", ErrStatusUnavailable, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return NodeStatus{}, fmt.Errorf("%w: %s returned status %d", ErrStatusUnavailable, url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NodeStatus{}, fmt.Errorf("%w: reading %s: %v", ErrStatusUnavailable, url, err)
	}
	var status NodeStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return NodeStatus{}, fmt.Errorf("%w: decoding %s: %v", ErrStatusUnavailable, url, err)
	}
	return status, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Block is the block envelope returned by chain_get_block.
type Block struct {
	Block struct {
		Hash   string `json:"hash"`
		Header struct {
			Height uint64 `json:"height"`
			EraID  uint64 `json:"era_id"`
		} `json:"header"`
	} `json:"block"`
}

// GetBlock calls chain_get_block, at height when height >= 0, otherwise for
// the latest block.
func (c *Client) GetBlock(ip string, height int64) (Block, error) {
	var params []any
	if height >= 0 {
		params = append(params, map[string]any{"Height": height})
	}
	raw, err := c.rpcCall(ip, "chain_get_block", params)
	if err != nil {
		return Block{}, err
	}
	var block Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return Block{}, fmt.Errorf("%w: decoding chain_get_block result: %v", ErrRPCFailure, err)
	}
	return block, nil
}

func (c *Client) rpcCall(ip, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	url := fmt.Sprintf("http://%s:%d/rpc", ip, c.rpcPort)
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCFailure, err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRPCFailure, url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrRPCFailure, url, err)
	}
	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrRPCFailure, url, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%w: %s (%d)", ErrRPCFailure, decoded.Error.Message, decoded.Error.Code)
	}
	return decoded.Result, nil
}
