/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/konsulko/sota-agent/internal/model"
)

// Client sends outbound JSON-RPC envelopes to backend-advertised
// endpoint URLs over HTTP.
type Client struct {
	httpClient *http.Client
	nextID     func() uint64
	log        *zap.SugaredLogger
}

// NewClient returns a Client with a bounded per-request timeout.
func NewClient(nextID func() uint64, log *zap.SugaredLogger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		nextID:     nextID,
		log:        log,
	}
}

// outboundEnvelope mirrors rpc.Request/rpc.MessageParams for outbound
// calls, holding the typed payload as interface{} where the inbound
// types keep raw JSON.
type outboundEnvelope struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      uint64         `json:"id"`
	Method  string         `json:"method"`
	Params  outboundParams `json:"params"`
}

type outboundParams struct {
	ServiceName string        `json:"service_name"`
	Parameters  []interface{} `json:"parameters"`
}

// Send POSTs a single-element "message" RPC carrying payload to url.
// Errors are returned for the caller to log and discard; this call never
// panics and never retries on its own.
func (c *Client) Send(ctx context.Context, url string, payload interface{}) error {
	if url == "" {
		return fmt.Errorf("bus: empty target url")
	}

	env := outboundEnvelope{
		JSONRPC: "2.0",
		ID:      c.nextID(),
		Method:  "message",
		Params: outboundParams{
			ServiceName: url,
			Parameters:  []interface{}{payload},
		},
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("bus: encoding outbound envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bus: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bus: sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("bus: backend responded with status %d", resp.StatusCode)
	}
	return nil
}

type chunkAck struct {
	Package model.PackageID `json:"package"`
	Chunk   int             `json:"chunk"`
}

// SendAck implements rpc.AckSender: it fires the chunk-received
// acknowledgement at ackURL and logs, rather than returns, any failure —
// per spec this is fire-and-forget.
func (c *Client) SendAck(ackURL string, pkg model.PackageID, index int) {
	if ackURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Send(ctx, ackURL, chunkAck{Package: pkg, Chunk: index}); err != nil && c.log != nil {
		c.log.Warnw("failed to send chunk ack", "package", pkg, "index", index, "error", err)
	}
}
