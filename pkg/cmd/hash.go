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
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ryosukemondo/keyrx/pkg/krxfile"
	"github.com/ryosukemondo/keyrx/pkg/util/source"
	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash [flags] binary_file",
	Short: "print the content hash stored in a .krx file header.",
	Long: `Print the content hash stored in the header of a binary .krx file as
lowercase hex.  With --verify, the payload hash is also recomputed and
compared against the header.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		//
		jsonMode := GetFlag(cmd, "json")
		data := readBinaryFile(jsonMode, args[0])
		// Reading the stored hash only needs the fixed header.
		if len(data) < 4 || !bytes.Equal(data[0:4], krxfile.Magic[:]) {
			printErrors(jsonMode, nil, source.Errorf(krxfile.CodeInvalidMagic, "not a .krx file"))
			os.Exit(1)
		}
		//
		if len(data) < krxfile.HeaderSize {
			printErrors(jsonMode, nil, source.Errorf(krxfile.CodeTruncated,
				"file of %d bytes is shorter than the %d byte header", len(data), krxfile.HeaderSize))
			os.Exit(1)
		}
		//
		stored := data[0x08:0x28]
		//
		verified := false
		if GetFlag(cmd, "verify") {
			declared := binary.LittleEndian.Uint64(data[0x28:])
			//
			if uint64(len(data)-krxfile.HeaderSize) != declared {
				printErrors(jsonMode, nil, source.Errorf(krxfile.CodeTruncated,
					"declared payload of %d bytes, found %d", declared, len(data)-krxfile.HeaderSize))
				os.Exit(1)
			}
			//
			computed := krxfile.PayloadHash(data[krxfile.HeaderSize:])
			//
			if !bytes.Equal(computed[:], stored) {
				printErrors(jsonMode, nil, source.Errorf(krxfile.CodeIntegrity,
					"payload hash %s does not match header", hex.EncodeToString(computed[:])))
				os.Exit(1)
			}
			//
			verified = true
		}
		//
		if jsonMode {
			result := map[string]any{"sha256": hex.EncodeToString(stored)}
			if verified {
				result["verified"] = true
			}
			//
			_ = json.NewEncoder(os.Stdout).Encode(result)
		} else if verified {
			fmt.Printf("%s (verified)\n", hex.EncodeToString(stored))
		} else {
			fmt.Println(hex.EncodeToString(stored))
		}
	},
}

func init() {
	rootCmd.AddCommand(hashCmd)
	hashCmd.Flags().Bool("verify", false, "recompute the payload hash and compare")
}
