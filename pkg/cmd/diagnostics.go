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
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/ryosukemondo/keyrx/pkg/krxfile"
	"github.com/ryosukemondo/keyrx/pkg/util/source"
	"golang.org/x/term"
)

// jsonDiagnostic is the machine-readable rendering of one diagnostic.
type jsonDiagnostic struct {
	ErrorCode  string   `json:"error_code"`
	Message    string   `json:"message"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
	Column     int      `json:"column,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Chain      []string `json:"chain,omitempty"`
}

// ioDiagnostic wraps a filesystem error as a positionless diagnostic.
func ioDiagnostic(err error) *source.Diagnostic {
	return source.Errorf("io_error", "%v", err)
}

// krxDiagnostic wraps an encoder/decoder error, preserving its stable code.
func krxDiagnostic(err error) *source.Diagnostic {
	var kerr *krxfile.Error
	//
	if errors.As(err, &kerr) {
		return source.Errorf(kerr.Code, "%s", kerr.Msg)
	}
	//
	return ioDiagnostic(err)
}

// printErrors renders diagnostics to stderr, as JSON when requested.  files
// provides line snippets for diagnostics carrying positions; it may be nil.
func printErrors(jsonMode bool, files map[string]*source.File, diags ...*source.Diagnostic) {
	if jsonMode {
		out := make([]jsonDiagnostic, len(diags))
		//
		for i, diag := range diags {
			out[i] = jsonDiagnostic{
				ErrorCode:  diag.Code,
				Message:    diag.Message,
				File:       diag.File,
				Line:       diag.Line,
				Column:     diag.Column,
				Suggestion: diag.Suggestion,
				Chain:      diag.Chain,
			}
		}
		//
		encoder := json.NewEncoder(os.Stderr)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(out)
		//
		return
	}
	//
	for _, diag := range diags {
		printError(files, diag)
	}
}

// printError renders a single diagnostic with an import chain, source
// snippet and caret highlighting where available.
func printError(files map[string]*source.File, diag *source.Diagnostic) {
	for i := 0; i+1 < len(diag.Chain); i++ {
		fmt.Fprintf(os.Stderr, "in file imported from %s:\n", diag.Chain[i])
	}
	//
	if diag.File == "" {
		fmt.Fprintf(os.Stderr, "error[%s]: %s\n", diag.Code, diag.Message)
	} else {
		fmt.Fprintf(os.Stderr, "%s:%d:%d error[%s]: %s\n",
			diag.File, diag.Line, diag.Column, diag.Code, diag.Message)
		printSnippet(files, diag)
	}
	//
	if diag.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "  hint: %s\n", diag.Suggestion)
	}
}

// printSnippet prints the offending line with a caret run underneath.
func printSnippet(files map[string]*source.File, diag *source.Diagnostic) {
	file, ok := files[diag.File]
	if !ok {
		return
	}
	//
	line := file.Line(diag.Line)
	if line == "" {
		return
	}
	// Clip very long lines to the terminal, keeping the caret visible.
	if width, ok := terminalWidth(); ok && runewidth.StringWidth(line) > width {
		line = runewidth.Truncate(line, width, "…")
	}
	//
	fmt.Fprintf(os.Stderr, "  %s\n", line)
	// The caret indent must account for wide runes before the column.
	runes := []rune(line)
	column := diag.Column
	//
	if column < 1 {
		column = 1
	} else if column > len(runes) {
		column = len(runes) + 1
	}
	//
	indent := runewidth.StringWidth(string(runes[:column-1]))
	length := diag.Width
	//
	if length < 1 {
		length = 1
	}
	//
	fmt.Fprintf(os.Stderr, "  %s%s\n", strings.Repeat(" ", indent), strings.Repeat("^", length))
}

func terminalWidth() (int, bool) {
	fd := int(os.Stderr.Fd())
	if !term.IsTerminal(fd) {
		return 0, false
	}
	//
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return 0, false
	}
	//
	return width, true
}
