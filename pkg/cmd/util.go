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
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// progressAfter is how long a command may run before a progress notice
// appears on stderr.
const progressAfter = 2 * time.Second

// GetFlag gets an expected flag, or exit if an error arises.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// GetString gets an expected string flag, or exit if an error arises.
func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// configureLogging applies the persistent --verbose flag.
func configureLogging(cmd *cobra.Command) {
	if GetFlag(cmd, "verbose") {
		log.SetLevel(log.DebugLevel)
	}
}

// startProgress arranges for a progress notice on stderr if the surrounding
// work takes longer than progressAfter.  The returned function cancels it
// and must be called when the work completes.
func startProgress(what string) func() {
	timer := time.AfterFunc(progressAfter, func() {
		fmt.Fprintf(os.Stderr, "still %s...\n", what)
	})
	//
	return func() { timer.Stop() }
}

// readBinaryFile reads a .krx file from disk, exiting on I/O failure.
func readBinaryFile(jsonMode bool, filename string) []byte {
	data, err := os.ReadFile(filename)
	if err != nil {
		failIO(jsonMode, err)
	}
	//
	return data
}

// writeBinaryFile writes a compiled .krx artifact to disk.
func writeBinaryFile(jsonMode bool, filename string, data []byte) {
	if err := os.WriteFile(filename, data, 0644); err != nil {
		failIO(jsonMode, err)
	}
}

func failIO(jsonMode bool, err error) {
	printErrors(jsonMode, nil, ioDiagnostic(err))
	os.Exit(1)
}
