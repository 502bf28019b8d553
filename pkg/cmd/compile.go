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
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ryosukemondo/keyrx/pkg/config"
	"github.com/ryosukemondo/keyrx/pkg/dsl"
	"github.com/ryosukemondo/keyrx/pkg/importer"
	"github.com/ryosukemondo/keyrx/pkg/krxfile"
	"github.com/ryosukemondo/keyrx/pkg/util"
	"github.com/ryosukemondo/keyrx/pkg/util/source"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] config_file",
	Short: "compile a configuration script into a binary .krx file.",
	Long: `Compile a configuration script (and its imports) into a single binary .krx
file which can subsequently be loaded by the remapping daemon without
re-evaluation.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		//
		jsonMode := GetFlag(cmd, "json")
		output := GetString(cmd, "output")
		//
		stop := startProgress("compiling")
		defer stop()
		//
		root, flat, diags := compileSource(args[0])
		if len(diags) > 0 {
			printErrors(jsonMode, sourceFiles(flat), diags...)
			os.Exit(1)
		}
		//
		stats := util.NewPerfStats()
		//
		data, err := krxfile.Encode(root)
		if err != nil {
			printErrors(jsonMode, nil, krxDiagnostic(err))
			os.Exit(1)
		}
		//
		stats.Log("Encoding binary file")
		//
		writeBinaryFile(jsonMode, output, data)
		//
		hash := krxfile.PayloadHash(data[krxfile.HeaderSize:])
		//
		if jsonMode {
			result := map[string]any{
				"output": output,
				"size":   len(data),
				"sha256": hex.EncodeToString(hash[:]),
			}
			//
			_ = json.NewEncoder(os.Stdout).Encode(result)
		} else {
			fmt.Printf("Compiled %s (%d bytes) sha256=%s\n",
				output, len(data), hex.EncodeToString(hash[:]))
		}
	},
}

// compileSource runs the front half of the pipeline: import resolution and
// evaluation.  The returned flattened source is non-nil whenever resolution
// succeeded, even if evaluation then failed.
func compileSource(input string) (config.ConfigRoot, *importer.Flattened, []*source.Diagnostic) {
	stats := util.NewPerfStats()
	//
	flat, diag := importer.Resolve(input)
	if diag != nil {
		return config.ConfigRoot{}, nil, []*source.Diagnostic{diag}
	}
	//
	stats.Log("Resolving imports")
	stats = util.NewPerfStats()
	//
	root, diags := dsl.Evaluate(flat, uint64(time.Now().UTC().Unix()), CompilerVersion())
	//
	stats.Log("Evaluating configuration")
	//
	return root, flat, diags
}

// sourceFiles extracts the snippet sources from a flattened stream, if any.
func sourceFiles(flat *importer.Flattened) map[string]*source.File {
	if flat == nil {
		return nil
	}
	//
	return flat.Files
}

//nolint:errcheck
func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringP("output", "o", "a.krx", "specify output file.")
	compileCmd.MarkFlagRequired("output")
}
