// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package source

import (
	"fmt"
)

// Diagnostic is a structured error report produced anywhere in the
// compilation pipeline.  Every diagnostic carries a stable error code, a
// human-readable message, and (when the error is tied to a source position)
// the originating file, line and column.  Errors arising inside imported
// files additionally carry the chain of importing files.
type Diagnostic struct {
	// Stable error code, e.g. "unknown_key_name".
	Code string
	// Human readable message.
	Message string
	// Path of the file in which the error arose (empty when positionless).
	File string
	// Line number, counting from 1 (zero when positionless).
	Line int
	// Column number, counting from 1 (zero when positionless).
	Column int
	// Width of the offending token in runes (zero means "one column").
	Width int
	// Optional suggestion shown alongside the message.
	Suggestion string
	// Chain of files from the root source to the file in which the error
	// arose (importing first).  Empty unless the error crossed an import.
	Chain []string
}

// Error implements the error interface.
func (p *Diagnostic) Error() string {
	if p.File == "" {
		return fmt.Sprintf("%s: %s", p.Code, p.Message)
	}
	//
	return fmt.Sprintf("%s:%d:%d %s: %s", p.File, p.Line, p.Column, p.Code, p.Message)
}

// Errorf constructs a positionless diagnostic with a formatted message.
func Errorf(code string, format string, args ...any) *Diagnostic {
	return &Diagnostic{Code: code, Message: fmt.Sprintf(format, args...)}
}

// At returns a copy of this diagnostic carrying the given position.
func (p *Diagnostic) At(file string, line int, column int) *Diagnostic {
	q := *p
	q.File, q.Line, q.Column = file, line, column
	//
	return &q
}
