/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package version exposes the application version for logging, crash
// reports and the CLI. Commit and Date are injected at build time via
// -ldflags.
package version

var (
	// Version is the semantic version of this build.
	Version = "0.3.0-dev"
	// Commit is the short VCS revision, if known.
	Commit = ""
	// Date is the build timestamp, if known.
	Date = ""
)

// String renders the version plus optional commit/date suffixes.
func String() string {
	s := Version
	if Commit != "" {
		s += "+" + Commit
	}
	if Date != "" {
		s += " (" + Date + ")"
	}
	return s
}
