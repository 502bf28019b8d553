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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileLines(t *testing.T) {
	file := NewFile("test.krs", []byte("first\nsecond\nthird\n"))
	//
	assert.Equal(t, 3, file.NumLines())
	assert.Equal(t, "first", file.Line(1))
	assert.Equal(t, "second", file.Line(2))
	assert.Equal(t, "third", file.Line(3))
	assert.Equal(t, "", file.Line(0))
	assert.Equal(t, "", file.Line(4))
}

func TestFileNoTrailingNewline(t *testing.T) {
	file := NewFile("test.krs", []byte("only"))
	//
	assert.Equal(t, 1, file.NumLines())
	assert.Equal(t, "only", file.Line(1))
}

func TestFileNormalizesCRLF(t *testing.T) {
	file := NewFile("test.krs", []byte("a\r\nb\r\n"))
	//
	assert.Equal(t, 2, file.NumLines())
	assert.Equal(t, "a", file.Line(1))
	assert.Equal(t, "b", file.Line(2))
	assert.Equal(t, "a\nb\n", file.Contents())
}

func TestDiagnosticError(t *testing.T) {
	diag := Errorf("some_code", "something %s", "failed")
	assert.Equal(t, "some_code: something failed", diag.Error())
	//
	located := diag.At("main.krs", 3, 7)
	assert.Equal(t, "main.krs:3:7 some_code: something failed", located.Error())
	// At copies; the original stays positionless.
	assert.Equal(t, "", diag.File)
}
