// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the public ord JSON-RPC endpoint.
const DefaultURL = "https://mainnet.sandshrew.io/v2/lasereyes"

const defaultSymbol = "⚡"

// Client queries an ord indexer with the ord_address JSON-RPC method.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, httpClient *http.Client) *Client {
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{url: url, httpClient: httpClient}
}

type rpcRequest struct {
	JSONRPC string   `json:"jsonrpc"`
	Method  string   `json:"method"`
	Params  []string `json:"params"`
	ID      int      `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result *struct {
		// Each entry is [name, balance, symbol]; symbol may be missing.
		RunesBalances [][]json.RawMessage `json:"runes_balances"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// FetchBalances implements Oracle.
func (c *Client) FetchBalances(ctx context.Context, address string) ([]RuneBalance, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "ord_address",
		Params:  []string{address},
		ID:      1,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ord_address request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ord_address: unexpected status %d: %s", resp.StatusCode, snippet)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ord_address response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("ord_address: rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	if out.Result == nil {
		return []RuneBalance{}, nil
	}

	balances := make([]RuneBalance, 0, len(out.Result.RunesBalances))
	for _, entry := range out.Result.RunesBalances {
		if len(entry) < 2 {
			continue
		}
		b := RuneBalance{
			Name:    rawString(entry[0]),
			Balance: rawString(entry[1]),
			Symbol:  defaultSymbol,
		}
		if len(entry) > 2 {
			if sym := rawString(entry[2]); sym != "" {
				b.Symbol = sym
			}
		}
		balances = append(balances, b)
	}
	return balances, nil
}

// rawString accepts both JSON strings and bare numbers.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
