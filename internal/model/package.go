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

// Package model holds the data types shared across the transfer engine,
// the RPC dispatcher, and the backend/install coordinator.
package model

import (
	"fmt"
	"time"
)

// PackageID identifies a single software package under transfer.
type PackageID struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// String renders the package identifier as "name-version", used to derive
// on-disk directory and file names.
func (p PackageID) String() string {
	return fmt.Sprintf("%s-%s", p.Name, p.Version)
}

// InstallReport is the outcome of a single local install attempt.
type InstallReport struct {
	Package     PackageID `json:"package"`
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	InstalledAt time.Time `json:"installed_at"`
}

// InstalledPackage is a row in the local daemon's installed-package table.
type InstalledPackage struct {
	Package     PackageID `json:"package"`
	InstalledAt time.Time `json:"installed_at"`
}
