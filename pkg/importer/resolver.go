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

// Package importer loads a root DSL source file together with its transitive
// import directives, producing a single flattened text stream plus a line
// map translating every flattened line back to its originating file and
// line.  All failures are fatal: the resolver never silently skips a file.
package importer

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ryosukemondo/keyrx/pkg/util/source"
)

// MaxFileSize is the per-file size cap, in bytes.
const MaxFileSize = 100 * 1024

// MaxDepth is the maximum import nesting depth below the root file.
const MaxDepth = 16

// Stable error codes emitted by this package.
const (
	CodeFileNotFound     = "file_not_found"
	CodeInvalidExtension = "invalid_import_extension"
	CodeImportTooLarge   = "import_too_large"
	CodeCircularImport   = "circular_import"
	CodeDepthExceeded    = "import_depth_exceeded"
	CodeOutsideRoot      = "import_outside_root"
	CodeIOError          = "io_error"
)

// allowedExtensions is the closed set of DSL file extensions.
var allowedExtensions = map[string]bool{
	".krs":  true,
	".rhai": true,
}

// importDirective matches a single import line: the keyword, a double-quoted
// relative path and a terminating semicolon, optionally followed by a line
// comment.  Directives are only recognized in the comment-and-blank prelude
// of a file.
var importDirective = regexp.MustCompile(`^\s*import\s+"([^"]*)"\s*;\s*(//.*)?$`)

// Origin identifies where a flattened line came from.
type Origin struct {
	// Display path of the originating file.
	File string
	// Line number within the originating file, counting from 1.
	Line int
}

// Flattened is the result of resolving all imports: a single LF-normalized
// text stream with per-line origin tracking.
type Flattened struct {
	// The flattened, LF-normalized source text.
	Text string
	// One origin per flattened line (index 0 is flattened line 1).
	LineMap []Origin
	// All files read during resolution, keyed by display path, for
	// diagnostic snippet rendering.
	Files map[string]*source.File
	// Import chain (root first) for every file, used to annotate errors that
	// arise inside imported files.
	Chains map[string][]string
}

// Origin translates a flattened line number (counting from 1) back to its
// source position.  Out-of-range lines map to the final line, which can
// happen when an engine error points just past the end of input.
func (p *Flattened) Origin(line int) Origin {
	if len(p.LineMap) == 0 {
		return Origin{}
	}
	//
	if line < 1 {
		line = 1
	} else if line > len(p.LineMap) {
		line = len(p.LineMap)
	}
	//
	return p.LineMap[line-1]
}

// Chain returns the import chain for a file, or nil when the file is the
// root (no import was crossed).
func (p *Flattened) Chain(file string) []string {
	chain := p.Chains[file]
	if len(chain) <= 1 {
		return nil
	}
	//
	return chain
}

// SourceHash computes the SHA-256 of the flattened source text.  This is the
// hash recorded in the compiled artifact's metadata.
func (p *Flattened) SourceHash() [32]byte {
	return sha256.Sum256([]byte(p.Text))
}

// Resolve reads the given root source file and all transitive imports,
// producing the flattened stream.  The first error encountered aborts
// resolution.
func Resolve(rootPath string) (*Flattened, *source.Diagnostic) {
	rootCanonical, diag := canonicalize(rootPath)
	if diag != nil {
		return nil, diag
	}
	//
	r := &resolver{
		rootDir: filepath.Dir(rootCanonical),
		result: &Flattened{
			Files:  make(map[string]*source.File),
			Chains: make(map[string][]string),
		},
		onStack: make(map[string]bool),
	}
	//
	if diag := r.resolve(rootPath, rootCanonical, 0, nil); diag != nil {
		return nil, diag
	}
	//
	r.result.Text = strings.Join(r.lines, "\n")
	if len(r.lines) > 0 {
		r.result.Text += "\n"
	}
	//
	return r.result, nil
}

type resolver struct {
	// Canonical directory containing the root file; imports must not escape.
	rootDir string
	// Display paths of the files currently being resolved, root first.
	chain []string
	// Canonical paths currently being resolved, for cycle detection.
	onStack map[string]bool
	// Flattened lines accumulated so far.
	lines []string
	//
	result *Flattened
}

// resolve reads one file and splices it (and its imports) into the flattened
// stream.  at is the directive position in the importing file, nil for the
// root.
func (r *resolver) resolve(display string, canonical string, depth int, at *Origin) *source.Diagnostic {
	if depth > MaxDepth {
		diag := source.Errorf(CodeDepthExceeded,
			"import nesting exceeds the maximum depth of %d", MaxDepth)
		//
		return r.annotate(diag, at)
	}
	//
	if ext := filepath.Ext(canonical); !allowedExtensions[ext] {
		diag := source.Errorf(CodeInvalidExtension,
			"%q does not have a recognized source extension (.krs or .rhai)", display)
		//
		return r.annotate(diag, at)
	}
	//
	if r.onStack[canonical] {
		cycle := append(append([]string{}, r.chain...), display)
		diag := source.Errorf(CodeCircularImport,
			"circular import: %s", strings.Join(cycle, " -> "))
		diag.Chain = cycle
		//
		return r.annotate(diag, at)
	}
	// Path traversal guard: the canonical path must stay below the root
	// file's directory.
	if !within(r.rootDir, canonical) {
		diag := source.Errorf(CodeOutsideRoot,
			"import %q escapes the source root directory", display)
		//
		return r.annotate(diag, at)
	}
	//
	bytes, err := os.ReadFile(canonical)
	if err != nil {
		diag := source.Errorf(CodeIOError, "cannot read %q: %v", display, err)
		//
		return r.annotate(diag, at)
	}
	//
	if len(bytes) > MaxFileSize {
		diag := source.Errorf(CodeImportTooLarge,
			"%q is %d bytes, exceeding the %d byte limit", display, len(bytes), MaxFileSize)
		//
		return r.annotate(diag, at)
	}
	//
	file := source.NewFile(display, bytes)
	r.result.Files[display] = file
	r.chain = append(r.chain, display)
	r.result.Chains[display] = append([]string{}, r.chain...)
	r.onStack[canonical] = true
	//
	diag := r.splice(file, canonical, depth)
	//
	r.onStack[canonical] = false
	r.chain = r.chain[:len(r.chain)-1]
	//
	return diag
}

// splice walks the lines of a file, recursing into import directives in the
// prelude and appending everything else to the flattened stream.
func (r *resolver) splice(file *source.File, canonical string, depth int) *source.Diagnostic {
	prelude := true
	//
	for number := 1; number <= file.NumLines(); number++ {
		line := file.Line(number)
		trimmed := strings.TrimSpace(line)
		//
		if prelude {
			if match := importDirective.FindStringSubmatch(line); match != nil {
				at := &Origin{file.Filename(), number}
				//
				target := match[1]
				display := filepath.Join(filepath.Dir(file.Filename()), target)
				//
				childCanonical, diag := canonicalize(filepath.Join(filepath.Dir(canonical), target))
				if diag != nil {
					return r.annotate(diag, at)
				}
				//
				if diag := r.resolve(display, childCanonical, depth+1, at); diag != nil {
					return diag
				}
				// The directive itself contributes no flattened line.
				continue
			}
			// The prelude ends at the first line which is neither blank, a
			// comment, nor an import directive.
			if trimmed != "" && !strings.HasPrefix(trimmed, "//") {
				prelude = false
			}
		}
		//
		r.lines = append(r.lines, line)
		r.result.LineMap = append(r.result.LineMap, Origin{file.Filename(), number})
	}
	//
	return nil
}

// annotate attaches the import-site position and the current chain to a
// diagnostic.
func (r *resolver) annotate(diag *source.Diagnostic, at *Origin) *source.Diagnostic {
	if at != nil {
		diag = diag.At(at.File, at.Line, 1)
	}
	//
	if len(diag.Chain) == 0 && len(r.chain) > 1 {
		diag.Chain = append([]string{}, r.chain...)
	}
	//
	return diag
}

// canonicalize resolves a path to its absolute, symlink-free form.  The
// canonical form is the dedup key for cycle detection, so that the same file
// reached through different textual paths is recognized.
func canonicalize(path string) (string, *source.Diagnostic) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", source.Errorf(CodeIOError, "cannot resolve %q: %v", path, err)
	}
	//
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			diag := source.Errorf(CodeFileNotFound, "file %q not found (searched %q)", path, filepath.Dir(abs))
			//
			return "", diag
		}
		//
		return "", source.Errorf(CodeIOError, "cannot resolve %q: %v", path, err)
	}
	//
	return resolved, nil
}

// within reports whether path is dir or lies below dir.
func within(dir string, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	//
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..")
}

// String renders an origin as file:line.
func (p Origin) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}
