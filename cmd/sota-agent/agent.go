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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/konsulko/sota-agent/internal/backend"
	"github.com/konsulko/sota-agent/internal/bus"
	"github.com/konsulko/sota-agent/internal/config"
	"github.com/konsulko/sota-agent/internal/coordinator"
	"github.com/konsulko/sota-agent/internal/localinstall"
	"github.com/konsulko/sota-agent/internal/logging"
	"github.com/konsulko/sota-agent/internal/rpc"
	"github.com/konsulko/sota-agent/internal/transfer"
)

// Agent wires every long-lived component together: the transfer table and
// its sweeper, the RPC dispatcher and inbound edge, the outbound bus
// client, and the install coordinator.
type Agent struct {
	cfg *config.Config
	log *zap.Logger

	services   *backend.Directory
	transfers  *transfer.Table
	rpcCtx     *rpc.Context
	dispatcher *rpc.Dispatcher
	edge       *bus.Edge
	busClient  *bus.Client
	registerer *http.Client
	coord      *coordinator.Coordinator
	channel    *coordinator.Channel

	wg sync.WaitGroup

	rpcID atomic.Uint64
}

// NewAgent wires an Agent from cfg. Caller must have already called
// cfg.Validate().
func NewAgent(cfg *config.Config) (*Agent, error) {
	rootLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	a := &Agent{
		cfg:      cfg,
		log:      rootLog,
		services: backend.NewDirectory(),
	}

	a.transfers = transfer.NewTable(cfg.StorageDir, cfg.Timeout(), logging.Named(rootLog, "transfer"))
	a.busClient = bus.NewClient(a.nextRPCID, logging.Named(rootLog, "bus"))
	a.channel = coordinator.NewChannel(logging.Named(rootLog, "coordinator"))

	a.rpcCtx = &rpc.Context{
		Services:   a.services,
		Transfers:  a.transfers,
		StorageDir: cfg.StorageDir,
	}
	a.dispatcher = rpc.NewDispatcher(a.rpcCtx, a.channel.Send, logging.Named(rootLog, "dispatcher"))
	rpc.RegisterHandlers(a.dispatcher, a.busClient)

	a.edge = bus.NewEdge(cfg.Bus.Edge, a.dispatcher, logging.Named(rootLog, "edge"))
	a.registerer = &http.Client{Timeout: 10 * time.Second}

	daemon := localinstall.NewInProcess()
	a.coord = coordinator.New(a.channel, a.services, daemon, a.busClient, "", cfg.StorageDir, logging.Named(rootLog, "coordinator"))

	return a, nil
}

func (a *Agent) nextRPCID() uint64 {
	return a.rpcID.Add(1)
}

// Run performs the register handshake, starts the transfer sweeper, the
// inbound edge, and the coordinator loop, and blocks until ctx is
// cancelled or a signal arrives.
func (a *Agent) Run(ctx context.Context) error {
	defer a.log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.log.Info("[1/4] registering with vehicle bus", zap.String("rvi", a.cfg.Bus.RVI))
	local, err := bus.Register(ctx, a.registerer, a.cfg.Bus.RVI, a.dispatcher.ServicePaths(), logging.Named(a.log, "register"))
	if err != nil {
		return fmt.Errorf("register handshake: %w", err)
	}
	vin := local.VIN(a.cfg.VINMatchRegexp())
	a.rpcCtx.VIN = vin
	a.coord.SetVIN(vin)
	a.log.Info("registered", zap.String("vin", vin), zap.Strings("services", local.Paths))

	a.log.Info("[2/4] starting transfer sweeper", zap.Duration("timeout", a.cfg.Timeout()))
	a.transfers.StartSweeper(ctx)
	defer a.transfers.StopSweeper()

	a.log.Info("[3/4] starting install coordinator")
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.coord.Run(ctx)
	}()

	a.log.Info("[4/4] starting inbound RPC edge", zap.String("addr", a.cfg.Bus.Edge))
	runErr := a.edge.Run(ctx)

	a.wg.Wait()
	return runErr
}
