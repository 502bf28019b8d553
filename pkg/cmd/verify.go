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
	"errors"
	"fmt"
	"os"

	"github.com/ryosukemondo/keyrx/pkg/krxfile"
	"github.com/ryosukemondo/keyrx/pkg/util/source"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [flags] binary_file",
	Short: "verify the integrity of a binary .krx file.",
	Long: `Verify that a binary .krx file is well-formed: correct magic bytes, a
supported format version, a matching content hash, and a structurally valid
archive.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		//
		jsonMode := GetFlag(cmd, "json")
		data := readBinaryFile(jsonMode, args[0])
		//
		archive, err := krxfile.Decode(data)
		if err != nil {
			reportDecodeFailure(jsonMode, err)
			os.Exit(1)
		}
		//
		hash := archive.ContentHash()
		//
		mappings := 0
		for i := 0; i < archive.NumDevices(); i++ {
			mappings += archive.Device(i).NumMappings()
		}
		//
		if jsonMode {
			result := map[string]any{
				"status":   "PASS",
				"sha256":   hex.EncodeToString(hash[:]),
				"version":  archive.Version().String(),
				"devices":  archive.NumDevices(),
				"mappings": mappings,
			}
			//
			_ = json.NewEncoder(os.Stdout).Encode(result)
		} else {
			fmt.Printf("PASS %s\n", hex.EncodeToString(hash[:]))
			fmt.Printf("schema %s, %d device(s), %d mapping(s)\n",
				archive.Version(), archive.NumDevices(), mappings)
		}
	},
}

// reportDecodeFailure prints a decoder failure as a FAIL line on stdout (text
// mode only) plus a structured diagnostic on stderr.
func reportDecodeFailure(jsonMode bool, err error) {
	var kerr *krxfile.Error
	//
	code, message := "decoder_error", err.Error()
	if errors.As(err, &kerr) {
		code, message = kerr.Code, kerr.Msg
	}
	//
	if !jsonMode {
		fmt.Printf("FAIL %s\n", code)
	}
	//
	printErrors(jsonMode, nil, source.Errorf(code, "%s", message))
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
