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

// Package bus implements the vehicle-interaction JSON-RPC transport: the
// inbound HTTP edge that feeds requests to the dispatcher, the register
// handshake that derives the device identifier, and the outbound client
// that posts RPCs to backend-advertised endpoints.
package bus

import "regexp"

// LocalServices is the list of service names the bus returned from the
// register handshake.
type LocalServices struct {
	Paths []string
}

// VIN extracts the device identifier from the registered service list by
// running match against each path and returning the first capture group
// of the first match. It returns an empty string when nothing matches.
func (s LocalServices) VIN(match *regexp.Regexp) string {
	for _, path := range s.Paths {
		if m := match.FindStringSubmatch(path); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
