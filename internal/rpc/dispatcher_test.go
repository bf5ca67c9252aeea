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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konsulko/sota-agent/internal/backend"
	"github.com/konsulko/sota-agent/internal/model"
	"github.com/konsulko/sota-agent/internal/transfer"
)

type fakeAckSender struct {
	calls int
}

func (f *fakeAckSender) SendAck(string, model.PackageID, int) {
	f.calls++
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *[]model.Notification) {
	t.Helper()
	var notified []model.Notification
	ctx := &Context{
		Services:   backend.NewDirectory(),
		Transfers:  transfer.NewTable(t.TempDir(), 0, nil),
		StorageDir: t.TempDir(),
	}
	d := NewDispatcher(ctx, func(n model.Notification) { notified = append(notified, n) }, nil)
	RegisterHandlers(d, &fakeAckSender{})
	return d, &notified
}

func TestDispatchServicesAvailable(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch([]byte(`{"id":1,"method":"services_available"}`))
	assert.Nil(t, resp.Error)
	assert.EqualValues(t, 1, resp.ID)
}

func TestDispatchUnknownMethod(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch([]byte(`{"id":2,"method":"bogus"}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestDispatchUnregisteredService(t *testing.T) {
	d, _ := newTestDispatcher(t)
	body := `{"id":3,"method":"message","params":{"service_name":"/sota/nope","parameters":[{}]}}`
	resp := d.Dispatch([]byte(body))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestDispatchMalformedBody(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch([]byte(`not json`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}

func TestDispatchEmptyParametersIsInvalidParams(t *testing.T) {
	d, _ := newTestDispatcher(t)
	body := `{"id":4,"method":"message","params":{"service_name":"` + ServiceNotify + `","parameters":[]}}`
	resp := d.Dispatch([]byte(body))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestDispatchNotifyEmitsNotification(t *testing.T) {
	d, notified := newTestDispatcher(t)
	params, err := json.Marshal(map[string]any{
		"services": map[string]string{"start": "http://backend/start"},
		"packages": []model.PackageID{},
	})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"id":     5,
		"method": "message",
		"params": MessageParams{ServiceName: ServiceNotify, Parameters: []json.RawMessage{params}},
	})
	require.NoError(t, err)

	resp := d.Dispatch(body)
	assert.Nil(t, resp.Error)
	require.Len(t, *notified, 1)
	assert.Equal(t, model.NotificationNotify, (*notified)[0].Kind)
}

func TestDispatchStartThenChunkThenFinishOrdering(t *testing.T) {
	d, notified := newTestDispatcher(t)

	startParams, err := json.Marshal(map[string]any{
		"package":     model.PackageID{Name: "p", Version: "1"},
		"chunkscount": 1,
		"checksum":    "4e1243bd22c66e76c2ba9eddc1f91394e57f9f83",
	})
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"id": 1, "method": "message",
		"params": MessageParams{ServiceName: ServiceStart, Parameters: []json.RawMessage{startParams}},
	})
	require.NoError(t, err)
	resp := d.Dispatch(body)
	require.Nil(t, resp.Error)

	chunkParams, err := json.Marshal(map[string]any{
		"package": model.PackageID{Name: "p", Version: "1"},
		"index":   0,
		"msg":     "dGVzdAo=", // base64("test\n")
	})
	require.NoError(t, err)
	body, err = json.Marshal(map[string]any{
		"id": 2, "method": "message",
		"params": MessageParams{ServiceName: ServiceChunk, Parameters: []json.RawMessage{chunkParams}},
	})
	require.NoError(t, err)
	resp = d.Dispatch(body)
	require.Nil(t, resp.Error)

	finishParams, err := json.Marshal(map[string]any{
		"package": model.PackageID{Name: "p", Version: "1"},
	})
	require.NoError(t, err)
	body, err = json.Marshal(map[string]any{
		"id": 3, "method": "message",
		"params": MessageParams{ServiceName: ServiceFinish, Parameters: []json.RawMessage{finishParams}},
	})
	require.NoError(t, err)
	resp = d.Dispatch(body)
	require.Nil(t, resp.Error)

	require.Len(t, *notified, 1)
	assert.Equal(t, model.NotificationFinish, (*notified)[0].Kind)
}
