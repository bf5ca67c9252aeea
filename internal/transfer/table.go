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

package transfer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/konsulko/sota-agent/internal/model"
)

// Errors returned by Table operations.
var (
	ErrNotFound         = errors.New("transfer: no in-flight transfer for package")
	ErrChecksumMismatch = errors.New("transfer: assembled package checksum mismatch")
)

// Table is the single source of truth for in-flight transfers, keyed by
// package identifier. All mutation goes through a single mutex; callers
// never hold the lock across blocking network I/O, only across the small,
// local chunk writes performed inside WriteChunk.
type Table struct {
	mu         sync.Mutex
	transfers  map[model.PackageID]*Transfer
	storageDir string
	timeout    time.Duration
	log        *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTable creates an empty Table rooted at storageDir. timeout of zero
// disables the eviction sweeper entirely, matching the reference client's
// behavior when no timeout is configured.
func NewTable(storageDir string, timeout time.Duration, log *zap.SugaredLogger) *Table {
	return &Table{
		transfers:  make(map[model.PackageID]*Transfer),
		storageDir: storageDir,
		timeout:    timeout,
		log:        log,
	}
}

// StartSweeper begins evicting transfers whose last chunk is older than
// the configured timeout, on a 1-second tick. It is a no-op when timeout
// is zero.
func (t *Table) StartSweeper(ctx context.Context) {
	if t.timeout <= 0 {
		return
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.wg.Add(1)
	go t.sweepLoop(sweepCtx)
}

// StopSweeper halts the sweeper goroutine and waits for it to exit.
func (t *Table) StopSweeper() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
}

func (t *Table) sweepLoop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

// sweep collects timed-out transfers first, then removes them in a
// second pass, avoiding mutation of the map while it's being ranged over.
func (t *Table) sweep() {
	now := time.Now().Unix()

	t.mu.Lock()
	var timedOut []model.PackageID
	for id, tr := range t.transfers {
		if now-tr.LastChunkReceived() > int64(t.timeout.Seconds()) {
			timedOut = append(timedOut, id)
		}
	}
	for _, id := range timedOut {
		tr := t.transfers[id]
		delete(t.transfers, id)
		if err := tr.Destroy(); err != nil && t.log != nil {
			t.log.Warnw("failed cleaning up timed-out transfer", "package", id, "error", err)
		}
		if t.log != nil {
			t.log.Infow("transfer timed out", "package", id, "timeout", t.timeout)
		}
	}
	t.mu.Unlock()
}

// Start begins a new transfer for pkg, replacing and destroying any prior
// transfer already registered for the same package identifier.
func (t *Table) Start(pkg model.PackageID, checksum string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prior, exists := t.transfers[pkg]; exists {
		if err := prior.Destroy(); err != nil && t.log != nil {
			t.log.Warnw("failed destroying replaced transfer", "package", pkg, "error", err)
		}
	}
	t.transfers[pkg] = New(pkg, checksum, t.storageDir)
	return nil
}

// WriteChunk looks up the transfer for pkg and writes the given chunk to
// it, returning false if no such transfer is registered. The table lock
// is held across the write itself, since it is small and local, so a
// concurrent Abort or Finish can never race a chunk write against the
// transfer's own destruction.
func (t *Table) WriteChunk(pkg model.PackageID, index int, payload string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, exists := t.transfers[pkg]
	if !exists {
		return false
	}
	return tr.WriteChunk(index, payload)
}

// Finish assembles and checksum-verifies the transfer for pkg. On success
// it removes the transfer from the table and destroys it (cleaning the
// chunk directory, leaving only the assembled .spkg) and returns the
// assembled path. On failure the transfer is left registered so a caller
// can retry finish without restarting the whole start/chunk sequence.
func (t *Table) Finish(pkg model.PackageID) (string, error) {
	t.mu.Lock()
	tr, exists := t.transfers[pkg]
	t.mu.Unlock()

	if !exists {
		return "", ErrNotFound
	}

	path, err := tr.Assemble()
	if err != nil {
		return "", err
	}
	ok, err := tr.VerifyChecksum()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrChecksumMismatch
	}

	t.mu.Lock()
	delete(t.transfers, pkg)
	t.mu.Unlock()

	if err := tr.Destroy(); err != nil && t.log != nil {
		t.log.Warnw("failed cleaning up finished transfer", "package", pkg, "error", err)
	}

	return path, nil
}

// Abort removes and destroys the transfer for pkg, if any.
func (t *Table) Abort(pkg model.PackageID) error {
	t.mu.Lock()
	tr, exists := t.transfers[pkg]
	if exists {
		delete(t.transfers, pkg)
	}
	t.mu.Unlock()

	if !exists {
		return ErrNotFound
	}
	return tr.Destroy()
}

// Len returns the number of in-flight transfers, used by tests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.transfers)
}
