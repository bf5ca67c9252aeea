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

// Package backend holds the mutable table of backend service endpoints
// the agent sends outbound RPCs to, refreshed on every notify.
package backend

import (
	"sync"

	"github.com/konsulko/sota-agent/internal/model"
)

// Directory holds the current backend endpoint URLs. Notify may replace
// it concurrently with a handler reading it to send an ack, so all access
// goes through a mutex; reads are point-in-time snapshots with no
// ordering guarantee relative to an in-flight notify.
type Directory struct {
	mu        sync.Mutex
	endpoints model.ServiceEndpoints
}

// NewDirectory returns an empty Directory (all endpoints are empty
// strings until the first Notify arrives).
func NewDirectory() *Directory {
	return &Directory{}
}

// Replace atomically swaps in a new set of endpoints.
func (d *Directory) Replace(endpoints model.ServiceEndpoints) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endpoints = endpoints
}

// Snapshot returns a copy of the current endpoints.
func (d *Directory) Snapshot() model.ServiceEndpoints {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.endpoints
}
