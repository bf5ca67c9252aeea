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

package rpc

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/konsulko/sota-agent/internal/backend"
	"github.com/konsulko/sota-agent/internal/model"
	"github.com/konsulko/sota-agent/internal/transfer"
)

// Context is the shared state every service handler operates on.
type Context struct {
	Services   *backend.Directory
	Transfers  *transfer.Table
	VIN        string
	StorageDir string
}

// Outcome distinguishes a typed-payload decode failure (invalid_params)
// from a handler logic failure (unspecified), per the dispatcher's error
// surfacing rules.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeInvalidParams
	OutcomeFailure
)

// Handler is a single state transition over Context. It decodes its own
// typed payload from params and reports which of OutcomeOK,
// OutcomeInvalidParams, or OutcomeFailure occurred. A non-nil
// notification is only enqueued when the outcome is OutcomeOK.
type Handler func(ctx *Context, params json.RawMessage) (notify *model.Notification, outcome Outcome)

// Dispatcher routes inbound JSON-RPC requests to registered service
// handlers, keyed by service path, mirroring the executor's
// type-to-handler routing table but over string service names and
// without a goroutine/timeout wrapper: handlers here run to completion
// synchronously, matching the reference protocol's per-request model.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	ctx    *Context
	notify func(model.Notification)
	log    *zap.SugaredLogger
}

// NewDispatcher creates a Dispatcher operating on ctx, pushing emitted
// notifications through notify.
func NewDispatcher(ctx *Context, notify func(model.Notification), log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		ctx:      ctx,
		notify:   notify,
		log:      log,
	}
}

// RegisterHandler registers handler for the given service path.
func (d *Dispatcher) RegisterHandler(servicePath string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[servicePath] = handler
}

// ServicePaths returns every registered service path, used to build the
// register handshake's service list.
func (d *Dispatcher) ServicePaths() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	paths := make([]string, 0, len(d.handlers))
	for p := range d.handlers {
		paths = append(paths, p)
	}
	return paths
}

// Dispatch parses body as a JSON-RPC request and returns the response to
// write back. It never panics and always returns a well-formed Response.
func (d *Dispatcher) Dispatch(body []byte) Response {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		if d.log != nil {
			d.log.Debugw("parse error", "error", err)
		}
		return ParseError()
	}

	if req.Method == "" {
		return InvalidRequest(req.ID)
	}

	if req.Method == "services_available" {
		return OK(req.ID, nil)
	}

	if req.Method != "message" {
		return MethodNotFound(req.ID)
	}

	var params MessageParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ServiceName == "" {
		return InvalidRequest(req.ID)
	}

	d.mu.RLock()
	handler, exists := d.handlers[params.ServiceName]
	d.mu.RUnlock()

	if !exists {
		return InvalidRequest(req.ID)
	}

	if len(params.Parameters) == 0 {
		return InvalidParams(req.ID)
	}

	notification, outcome := handler(d.ctx, params.Parameters[0])
	switch outcome {
	case OutcomeInvalidParams:
		return InvalidParams(req.ID)
	case OutcomeFailure:
		return Unspecified(req.ID)
	}

	if notification != nil && d.notify != nil {
		d.notify(*notification)
	}
	return OK(req.ID, nil)
}

// InvalidParams builds an invalid-params error response for id.
func InvalidParams(id uint64) Response {
	return Err(id, CodeInvalidParams, "invalid params")
}
