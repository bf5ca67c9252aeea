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

// Package coordinator implements the single-consumer notification loop
// that serializes events from the RPC dispatcher into outbound RPCs and
// local install-IPC calls.
package coordinator

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/konsulko/sota-agent/internal/backend"
	"github.com/konsulko/sota-agent/internal/localinstall"
	"github.com/konsulko/sota-agent/internal/model"
)

// channelCapacity bounds the notification channel. The reference client
// leaves this unbounded; we pick a bounded channel per the open design
// note and define the overflow policy below.
const channelCapacity = 256

// Sender issues outbound RPCs to backend-advertised endpoints. It is
// satisfied by *bus.Client; kept as an interface here to avoid
// coordinator depending on the bus package's HTTP transport details.
type Sender interface {
	Send(ctx context.Context, url string, payload interface{}) error
}

// Channel is the bounded, multi-producer single-consumer event channel.
// Send never blocks: when the channel is full the notification is
// dropped and logged, so a slow or stalled coordinator can never stall
// the RPC dispatcher that feeds it. The dispatcher is the only producer
// in the agent; the transfer sweeper does not send on the channel, and
// there is no install-IPC listener feeding it.
type Channel struct {
	ch  chan model.Notification
	log *zap.SugaredLogger
}

// NewChannel returns a bounded notification channel.
func NewChannel(log *zap.SugaredLogger) *Channel {
	return &Channel{ch: make(chan model.Notification, channelCapacity), log: log}
}

// Send enqueues n, dropping it (and logging a warning) if the channel is
// full.
func (c *Channel) Send(n model.Notification) {
	select {
	case c.ch <- n:
	default:
		if c.log != nil {
			c.log.Warnw("notification channel full, dropping notification", "kind", n.Kind)
		}
	}
}

// Coordinator is the sole consumer of a Channel. It forwards Notify
// events to the install daemon, sends Initiate requests to the backend,
// drives Finish installs, and answers Report queries — all serialized
// through a single goroutine so outbound-RPC ordering needs no further
// locking.
type Coordinator struct {
	channel    *Channel
	services   *backend.Directory
	daemon     localinstall.Daemon
	sender     Sender
	vin        string
	storageDir string
	log        *zap.SugaredLogger
}

// New builds a Coordinator reading from channel and issuing outbound
// RPCs via sender, using device identifier vin in every outbound
// payload. storageDir is the same root the transfer table assembles
// packages under, letting the coordinator resolve a Finish
// notification's package back to its .spkg file.
func New(channel *Channel, services *backend.Directory, daemon localinstall.Daemon, sender Sender, vin, storageDir string, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		channel:    channel,
		services:   services,
		daemon:     daemon,
		sender:     sender,
		vin:        vin,
		storageDir: storageDir,
		log:        log,
	}
}

// SetVIN updates the device identifier stamped on every outbound
// payload. Callers must only invoke this before Run starts consuming
// notifications, since vin is read without a lock from the single
// consumer goroutine.
func (c *Coordinator) SetVIN(vin string) {
	c.vin = vin
}

func (c *Coordinator) installedPackagePath(pkg model.PackageID) (string, error) {
	return filepath.Join(c.storageDir, "packages", pkg.String()+".spkg"), nil
}

// Run consumes notifications until ctx is done. It never returns an
// error: every per-notification failure is logged and the loop
// continues, matching the reference client's infallible main loop.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-c.channel.ch:
			c.handle(ctx, n)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, n model.Notification) {
	switch n.Kind {
	case model.NotificationNotify:
		c.services.Replace(n.Services)
		if err := c.daemon.NotifyPackages(ctx, n.Packages); err != nil && c.log != nil {
			c.log.Warnw("failed notifying install daemon of available packages", "error", err)
		}

	case model.NotificationInitiate:
		endpoints := c.services.Snapshot()
		payload := initiateParams{Packages: n.Packages, VIN: c.vin}
		if err := c.sender.Send(ctx, endpoints.Start, payload); err != nil && c.log != nil {
			c.log.Warnw("couldn't initiate download", "error", err)
		}

	case model.NotificationFinish:
		endpoints := c.services.Snapshot()
		path, err := c.installedPackagePath(n.Package)
		if err != nil {
			if c.log != nil {
				c.log.Warnw("couldn't resolve package path for install", "package", n.Package, "error", err)
			}
			return
		}
		report, err := c.daemon.Install(ctx, n.Package, path)
		if err != nil {
			if c.log != nil {
				c.log.Warnw("install daemon call failed", "package", n.Package, "error", err)
			}
			return
		}
		payload := serverPackageReport{Report: report, VIN: c.vin}
		if err := c.sender.Send(ctx, endpoints.Report, payload); err != nil && c.log != nil {
			c.log.Warnw("couldn't send install report", "error", err)
		}

	case model.NotificationReport:
		endpoints := c.services.Snapshot()
		packages, err := c.daemon.ListInstalled(ctx)
		if err != nil {
			if c.log != nil {
				c.log.Warnw("couldn't list installed packages", "error", err)
			}
			return
		}
		payload := serverReport{Packages: packages, VIN: c.vin}
		if err := c.sender.Send(ctx, endpoints.Packages, payload); err != nil && c.log != nil {
			c.log.Warnw("couldn't send installed-package report", "error", err)
		}
	}
}

type initiateParams struct {
	Packages []model.PackageID `json:"packages"`
	VIN      string            `json:"vin"`
}

type serverPackageReport struct {
	Report model.InstallReport `json:"report"`
	VIN    string              `json:"vin"`
}

type serverReport struct {
	Packages []model.InstalledPackage `json:"packages"`
	VIN      string                   `json:"vin"`
}
