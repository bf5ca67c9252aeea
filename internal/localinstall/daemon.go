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

// Package localinstall models the local installation daemon the
// coordinator talks to over a synchronous, in-process interface. The
// wire transport to a real daemon is out of scope; this package supplies
// a reference in-memory implementation so the coordinator has a real
// collaborator to drive end to end.
package localinstall

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/konsulko/sota-agent/internal/model"
)

// Daemon exposes the three synchronous operations the reference protocol
// assumes the local installation IPC provides.
type Daemon interface {
	// NotifyPackages informs the daemon of packages the backend has
	// offered, ahead of any install being requested.
	NotifyPackages(ctx context.Context, packages []model.PackageID) error

	// Install performs the install of pkg from the assembled package file
	// at path and returns the outcome.
	Install(ctx context.Context, pkg model.PackageID, path string) (model.InstallReport, error)

	// ListInstalled returns every package the daemon currently has
	// installed.
	ListInstalled(ctx context.Context) ([]model.InstalledPackage, error)
}

// InProcess is a reference Daemon implementation that "installs" a
// package by verifying its assembled file is present and readable, and
// keeps the installed-package table in memory.
type InProcess struct {
	mu        sync.Mutex
	installed map[model.PackageID]time.Time
}

// NewInProcess returns an empty InProcess daemon.
func NewInProcess() *InProcess {
	return &InProcess{installed: make(map[model.PackageID]time.Time)}
}

// NotifyPackages is a hook point a real daemon would use to surface an
// "available updates" affordance; the reference implementation does
// nothing and always returns nil.
func (d *InProcess) NotifyPackages(_ context.Context, _ []model.PackageID) error {
	return nil
}

// Install verifies path exists and is readable, then records pkg as
// installed.
func (d *InProcess) Install(_ context.Context, pkg model.PackageID, path string) (model.InstallReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.InstallReport{
			Package: pkg,
			Success: false,
			Message: fmt.Sprintf("package file unreadable: %v", err),
		}, nil
	}
	f.Close()

	installedAt := time.Now()
	d.mu.Lock()
	d.installed[pkg] = installedAt
	d.mu.Unlock()

	return model.InstallReport{
		Package:     pkg,
		Success:     true,
		Message:     "installed",
		InstalledAt: installedAt,
	}, nil
}

// ListInstalled returns every package recorded by a prior Install call.
func (d *InProcess) ListInstalled(_ context.Context) ([]model.InstalledPackage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]model.InstalledPackage, 0, len(d.installed))
	for pkg, installedAt := range d.installed {
		out = append(out, model.InstalledPackage{Package: pkg, InstalledAt: installedAt})
	}
	return out, nil
}
