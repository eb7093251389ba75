// Copyright 2025 The Chronoseal Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chronoseal/go-chronoseal/cryptoutil"
	"github.com/chronoseal/go-chronoseal/log"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultMinConfirmations is the confirmation depth at which a commitment is
// reported confirmed. Twelve blocks is the customary finality proxy on
// Ethereum mainnet.
const DefaultMinConfirmations = 12

// DefaultReceiptCacheTTL bounds how often a chatty poller can hit the node
// for the same transaction. Roughly one mainnet block time.
const DefaultReceiptCacheTTL = 12 * time.Second

// Client talks JSON-RPC to an Ethereum node. One Submit or Status call is one
// round of network exchanges; retry policy belongs to the caller.
type Client struct {
	url              string
	minConfirmations uint64
	client           *http.Client
	receiptCacheTTL  time.Duration
	receipts         *ttlcache.Cache[string, *transactionReceipt]
}

type Option func(*Client)

// WithMinConfirmations sets the confirmation depth required before a
// commitment is reported confirmed.
func WithMinConfirmations(depth uint64) Option {
	return func(c *Client) {
		if depth > 0 {
			c.minConfirmations = depth
		}
	}
}

// WithHTTPClient sets the http client used for node exchanges. The caller
// controls timeouts through it and through the context on each call.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithReceiptCacheTTL sets how long receipt lookups are cached. A
// non-positive ttl disables the cache and every Status call hits the node.
func WithReceiptCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.receiptCacheTTL = ttl
	}
}

func New(url string, opts ...Option) *Client {
	c := &Client{
		url:              url,
		minConfirmations: DefaultMinConfirmations,
		client:           http.DefaultClient,
		receiptCacheTTL:  DefaultReceiptCacheTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.receiptCacheTTL > 0 {
		c.receipts = ttlcache.New(ttlcache.WithTTL[string, *transactionReceipt](c.receiptCacheTTL))
	}

	return c
}

// Submit records the digest's commitment as calldata of a zero-value
// self-send from account. The returned commitment is pending.
func (c *Client) Submit(ctx context.Context, digest cryptoutil.Digest, account string) (Commitment, error) {
	if account == "" {
		return Commitment{}, ErrNoAccount{}
	}

	value := CommitmentValue(digest)
	tx := map[string]string{
		"from":  account,
		"to":    account,
		"value": "0x0",
		"data":  value,
	}

	var txid string
	if err := c.call(ctx, "eth_sendTransaction", []interface{}{tx}, &txid); err != nil {
		return Commitment{}, err
	}

	log.Debugf("(anchor) submitted commitment %v as transaction %v", value, txid)
	return Commitment{
		Value:       value,
		Account:     account,
		TxID:        txid,
		State:       StatePending,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// Status checks the commitment's transaction once and returns an updated
// copy. The transaction's calldata is read back from the node and must carry
// the commitment value; a commitment pointing at an unrelated transaction
// fails with ErrCommitmentMismatch. A commitment is confirmed only at the
// configured depth; a receipt with an execution failure marks it failed.
func (c *Client) Status(ctx context.Context, commitment Commitment) (Commitment, error) {
	updated := commitment
	receipt, err := c.receipt(ctx, commitment.TxID)
	if err != nil {
		return commitment, err
	}

	if receipt == nil {
		updated.State = StatePending
		updated.Confirmations = 0
		return updated, nil
	}

	if receipt.Status == "0x0" {
		updated.State = StateFailed
		return updated, nil
	}

	if err := c.checkTransactionData(ctx, commitment); err != nil {
		return commitment, err
	}

	blockNumber, err := parseHexUint(receipt.BlockNumber)
	if err != nil {
		return commitment, ErrProtocol{Err: err}
	}

	var headHex string
	if err := c.call(ctx, "eth_blockNumber", []interface{}{}, &headHex); err != nil {
		return commitment, err
	}

	head, err := parseHexUint(headHex)
	if err != nil {
		return commitment, ErrProtocol{Err: err}
	}

	updated.Confirmations = 0
	if head >= blockNumber {
		updated.Confirmations = head - blockNumber + 1
	}

	if updated.Confirmations < c.minConfirmations {
		updated.State = StatePending
		return updated, nil
	}

	blockTime, err := c.blockTime(ctx, receipt.BlockHash)
	if err != nil {
		return commitment, err
	}

	updated.State = StateConfirmed
	updated.BlockTime = blockTime
	log.Debugf("(anchor) commitment %v confirmed at depth %v, block time %v", commitment.Value, updated.Confirmations, blockTime)
	return updated, nil
}

type transactionReceipt struct {
	BlockNumber string `json:"blockNumber"`
	BlockHash   string `json:"blockHash"`
	Status      string `json:"status"`
}

func (c *Client) receipt(ctx context.Context, txid string) (*transactionReceipt, error) {
	if c.receipts != nil {
		if item := c.receipts.Get(txid); item != nil {
			return item.Value(), nil
		}
	}

	var receipt *transactionReceipt
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{txid}, &receipt); err != nil {
		return nil, err
	}

	if c.receipts != nil {
		c.receipts.Set(txid, receipt, ttlcache.DefaultTTL)
	}

	return receipt, nil
}

// checkTransactionData confirms the chain's copy of the transaction still
// carries the commitment value as its calldata. The stored commitment alone is
// never trusted.
func (c *Client) checkTransactionData(ctx context.Context, commitment Commitment) error {
	var tx *struct {
		Input string `json:"input"`
	}

	if err := c.call(ctx, "eth_getTransactionByHash", []interface{}{commitment.TxID}, &tx); err != nil {
		return err
	}

	if tx == nil {
		return ErrProtocol{Err: fmt.Errorf("transaction %v has a receipt but no transaction record", commitment.TxID)}
	}

	if !strings.EqualFold(tx.Input, commitment.Value) {
		return ErrCommitmentMismatch{TxID: commitment.TxID}
	}

	return nil
}

func (c *Client) blockTime(ctx context.Context, blockHash string) (time.Time, error) {
	var block struct {
		Timestamp string `json:"timestamp"`
	}

	if err := c.call(ctx, "eth_getBlockByHash", []interface{}{blockHash, false}, &block); err != nil {
		return time.Time{}, err
	}

	seconds, err := parseHexUint(block.Timestamp)
	if err != nil {
		return time.Time{}, ErrProtocol{Err: err}
	}

	return time.Unix(int64(seconds), 0).UTC(), nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return ErrNetwork{Err: err}
	}

	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrNetwork{Err: fmt.Errorf("request to node failed with status %v", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ErrNetwork{Err: err}
	}

	rpcResp := rpcResponse{}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return ErrProtocol{Err: err}
	}

	if rpcResp.Error != nil {
		return ErrRejected{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return ErrProtocol{Err: err}
		}
	}

	return nil
}

func parseHexUint(s string) (uint64, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" || trimmed == s {
		return 0, fmt.Errorf("invalid hex quantity %q", s)
	}

	return strconv.ParseUint(trimmed, 16, 64)
}
