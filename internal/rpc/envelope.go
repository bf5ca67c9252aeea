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

// Package rpc defines the JSON-RPC envelope the agent speaks with the
// vehicle bus, and the ServiceDispatcher that routes inbound requests to
// the six sota service handlers.
package rpc

import "encoding/json"

// Error codes for ErrResponse, matching the JSON-RPC 2.0 reserved range
// plus one implementation-defined code for handler-level failures.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeUnspecified    = -32000
)

// Request is an inbound JSON-RPC call. Params is kept raw so each service
// handler can decode its own parameter shape.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// MessageParams is the params shape used when Method == "message": a
// service_name naming the target handler and the positional parameter
// list the handler decodes parameters[0] from.
type MessageParams struct {
	ServiceName string            `json:"service_name"`
	Parameters  []json.RawMessage `json:"parameters"`
}

// Response is the outbound JSON-RPC response. Error is set for failures.
// A success carries Result, which the dispatcher always leaves nil, so
// a success response encodes with neither result nor error.
type Response struct {
	ID     uint64    `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *RPCError `json:"error,omitempty"`
}

// RPCError carries a JSON-RPC error code and message.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OK builds a successful response carrying result (may be nil).
func OK(id uint64, result any) Response {
	return Response{ID: id, Result: result}
}

// Err builds an error response with the given code and message.
func Err(id uint64, code int, message string) Response {
	return Response{ID: id, Error: &RPCError{Code: code, Message: message}}
}

// ParseError builds a parse-error response. The id is unknown at this
// point in the reference protocol, so it's always reported as zero.
func ParseError() Response {
	return Err(0, CodeParseError, "parse error")
}

// InvalidRequest builds an invalid-request error response for id.
func InvalidRequest(id uint64) Response {
	return Err(id, CodeInvalidRequest, "invalid request")
}

// MethodNotFound builds a method-not-found error response for id.
func MethodNotFound(id uint64) Response {
	return Err(id, CodeMethodNotFound, "method not found")
}

// Unspecified builds a generic handler-failure error response for id.
func Unspecified(id uint64) Response {
	return Err(id, CodeUnspecified, "unspecified error")
}
