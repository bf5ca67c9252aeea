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
)

// registerRequest is posted once at startup, naming every service path
// the agent exposes.
type registerRequest struct {
	Services []string `json:"services"`
}

// registerResponse carries back the full list of service names currently
// registered on the bus, from which the device identifier is derived.
type registerResponse struct {
	Services []string `json:"services"`
}

// Register posts the agent's service list to rviURL, retrying with exponential backoff until it succeeds or ctx is
// done. The bus may not be up yet when the agent starts, so failures here
// are expected and logged at warn rather than treated as fatal.
func Register(ctx context.Context, httpClient *http.Client, rviURL string, services []string, log *zap.SugaredLogger) (LocalServices, error) {
	backoff := NewExponentialBackoff()

	for {
		local, err := registerOnce(ctx, httpClient, rviURL, services)
		if err == nil {
			return local, nil
		}

		wait := backoff.NextBackoff()
		if log != nil {
			log.Warnw("register handshake failed, retrying", "error", err, "backoff", wait, "attempt", backoff.Attempt())
		}

		select {
		case <-ctx.Done():
			return LocalServices{}, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func registerOnce(ctx context.Context, httpClient *http.Client, rviURL string, services []string) (LocalServices, error) {
	body, err := json.Marshal(registerRequest{Services: services})
	if err != nil {
		return LocalServices{}, fmt.Errorf("bus: encoding register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rviURL, bytes.NewReader(body))
	if err != nil {
		return LocalServices{}, fmt.Errorf("bus: building register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return LocalServices{}, fmt.Errorf("bus: register request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return LocalServices{}, fmt.Errorf("bus: register responded with status %d", resp.StatusCode)
	}

	var out registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return LocalServices{}, fmt.Errorf("bus: decoding register response: %w", err)
	}
	return LocalServices{Paths: out.Services}, nil
}
