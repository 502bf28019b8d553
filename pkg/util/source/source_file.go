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
	"strings"
)

// File represents a given source file (typically stored on disk), split into
// physical lines for diagnostic rendering.  Contents are always LF-normalized
// on construction, so line numbers agree with the hashing contract.
type File struct {
	// File name for this source file.
	filename string
	// Contents of this file, LF-normalized.
	contents string
	// Byte offset of the start of each line within contents.
	lineOffsets []int
}

// NewFile constructs a source file from raw bytes, normalizing CRLF line
// endings to LF.
func NewFile(filename string, bytes []byte) *File {
	contents := strings.ReplaceAll(string(bytes), "\r\n", "\n")
	offsets := []int{0}
	//
	for i := 0; i < len(contents); i++ {
		if contents[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	// A terminating newline does not open a phantom final line.
	if n := len(offsets); n > 1 && offsets[n-1] == len(contents) {
		offsets = offsets[:n-1]
	}
	//
	return &File{filename, contents, offsets}
}

// Filename returns the filename associated with this source file.
func (p *File) Filename() string {
	return p.filename
}

// Contents returns the (LF-normalized) contents of this source file.
func (p *File) Contents() string {
	return p.contents
}

// NumLines returns the number of physical lines in this file.
func (p *File) NumLines() int {
	return len(p.lineOffsets)
}

// Line returns the text of the given line (counting from 1) without its
// terminating newline.  Out-of-range line numbers yield the empty string.
func (p *File) Line(number int) string {
	if number < 1 || number > len(p.lineOffsets) {
		return ""
	}
	//
	start := p.lineOffsets[number-1]
	end := len(p.contents)
	//
	if number < len(p.lineOffsets) {
		end = p.lineOffsets[number] - 1
	} else if end > start && p.contents[end-1] == '\n' {
		end--
	}
	//
	return p.contents[start:end]
}
