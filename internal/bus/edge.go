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
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/konsulko/sota-agent/internal/rpc"
)

// Edge is the inbound HTTP front end: one POST route that reads a framed
// JSON-RPC request body, hands it to the dispatcher, and writes back the
// response the dispatcher produces.
type Edge struct {
	addr   string
	server *http.Server
	log    *zap.SugaredLogger
}

// NewEdge builds an Edge listening on addr that routes every request
// through dispatcher.
func NewEdge(addr string, dispatcher *rpc.Dispatcher, log *zap.SugaredLogger) *Edge {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, rpc.ParseError())
			return
		}
		if log != nil {
			log.Debugw("received message", "body", string(body))
		}
		resp := dispatcher.Dispatch(body)
		if log != nil {
			log.Debugw("sent response", "response", resp)
		}
		c.JSON(http.StatusOK, resp)
	})

	return &Edge{
		addr:   addr,
		server: &http.Server{Addr: addr, Handler: router},
		log:    log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (e *Edge) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return e.server.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
