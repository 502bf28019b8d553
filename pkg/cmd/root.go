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
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is filled when building with make, but *not* when installing via
// "go install".
var Version string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "keyrx",
	Short: "A compiler for KeyRx keyboard configurations.",
	Long: `A compiler (and verification toolbox) for KeyRx keyboard configurations.
Scripts written in the configuration DSL are compiled into the binary .krx
format consumed by the remapping daemon.`,
	Run: func(cmd *cobra.Command, args []string) {
		if GetFlag(cmd, "version") {
			fmt.Printf("keyrx %s\n", CompilerVersion())
		} else {
			_ = cmd.Help()
		}
	},
}

// CompilerVersion determines the version of this binary, falling back on the
// embedded build information when not built via make.
func CompilerVersion() string {
	if Version != "" {
		// Built via "make"
		return Version
	}
	//
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		// Built via "go install"
		return info.Main.Version
	}
	// Unknown, perhaps "go run"
	return "(unknown version)"
}

// Execute adds all child commands to the root command and sets flags
// appropriately.  This is called by main.main() and only needs to happen
// once.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:errcheck
func init() {
	rootCmd.Flags().Bool("version", false, "print the version of this binary")
	rootCmd.PersistentFlags().Bool("json", false, "emit diagnostics and results as JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
}
