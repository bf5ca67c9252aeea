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

	"github.com/konsulko/sota-agent/internal/model"
)

// The six canonical service paths the agent registers on the bus.
const (
	ServiceNotify      = "/sota/notify"
	ServiceStart       = "/sota/start"
	ServiceChunk       = "/sota/chunk"
	ServiceFinish      = "/sota/finish"
	ServiceGetPackages = "/sota/getpackages"
	ServiceAbort       = "/sota/abort"
)

// RegisterHandlers wires the six message handlers onto d.
func RegisterHandlers(d *Dispatcher, ackClient AckSender) {
	d.RegisterHandler(ServiceNotify, HandleNotify)
	d.RegisterHandler(ServiceStart, HandleStart)
	d.RegisterHandler(ServiceChunk, newChunkHandler(ackClient))
	d.RegisterHandler(ServiceFinish, HandleFinish)
	d.RegisterHandler(ServiceGetPackages, HandleGetPackages)
	d.RegisterHandler(ServiceAbort, HandleAbort)
}

// AckSender sends the fire-and-forget chunk-received acknowledgement to
// the backend's ack endpoint. Errors are logged by the implementation
// and never propagated back to the dispatcher.
type AckSender interface {
	SendAck(ackURL string, pkg model.PackageID, index int)
}

type notifyParams struct {
	Services model.ServiceEndpoints `json:"services"`
	Packages []model.PackageID      `json:"packages"`
}

// HandleNotify replaces the backend directory with the advertised
// endpoints and emits a Notify notification. Never fails; absent fields
// decode as zero values.
func HandleNotify(ctx *Context, params json.RawMessage) (*model.Notification, Outcome) {
	var p notifyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, OutcomeInvalidParams
	}
	ctx.Services.Replace(p.Services)
	n := model.NewNotifyNotification(p.Services, p.Packages)
	return &n, OutcomeOK
}

type startParams struct {
	Package     model.PackageID `json:"package"`
	ChunksCount uint64          `json:"chunkscount"`
	Checksum    string          `json:"checksum"`
}

// HandleStart registers a new Transfer for package, replacing (and
// destroying) any prior in-flight Transfer for the same identity.
func HandleStart(ctx *Context, params json.RawMessage) (*model.Notification, Outcome) {
	var p startParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, OutcomeInvalidParams
	}
	if err := ctx.Transfers.Start(p.Package, p.Checksum); err != nil {
		return nil, OutcomeFailure
	}
	return nil, OutcomeOK
}

type chunkParams struct {
	Package model.PackageID `json:"package"`
	Index   int             `json:"index"`
	Msg     string          `json:"msg"`
}

// newChunkHandler builds the chunk handler, closing over the AckSender
// used to acknowledge accepted chunks back to the backend.
func newChunkHandler(ack AckSender) Handler {
	return func(ctx *Context, params json.RawMessage) (*model.Notification, Outcome) {
		var p chunkParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, OutcomeInvalidParams
		}
		if !ctx.Transfers.WriteChunk(p.Package, p.Index, p.Msg) {
			return nil, OutcomeFailure
		}
		if ack != nil {
			endpoints := ctx.Services.Snapshot()
			ack.SendAck(endpoints.Ack, p.Package, p.Index)
		}
		return nil, OutcomeOK
	}
}

type packageParams struct {
	Package model.PackageID `json:"package"`
}

// HandleFinish assembles and checksum-verifies the named transfer. On
// success the Transfer is removed from the table (cleaning its chunk
// files, leaving the assembled .spkg) and a Finish notification fires.
func HandleFinish(ctx *Context, params json.RawMessage) (*model.Notification, Outcome) {
	var p packageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, OutcomeInvalidParams
	}
	if _, err := ctx.Transfers.Finish(p.Package); err != nil {
		return nil, OutcomeFailure
	}
	n := model.NewFinishNotification(p.Package)
	return &n, OutcomeOK
}

// HandleGetPackages performs no state change and emits a Report
// notification so the coordinator asks the install IPC for the full
// installed-package list.
func HandleGetPackages(_ *Context, _ json.RawMessage) (*model.Notification, Outcome) {
	n := model.NewReportNotification()
	return &n, OutcomeOK
}

// HandleAbort removes and destroys the named transfer, if any. Succeeds
// regardless of whether a transfer was actually present.
func HandleAbort(ctx *Context, params json.RawMessage) (*model.Notification, Outcome) {
	var p packageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, OutcomeInvalidParams
	}
	_ = ctx.Transfers.Abort(p.Package)
	return nil, OutcomeOK
}
