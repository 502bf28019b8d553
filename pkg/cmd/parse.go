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

	"github.com/ryosukemondo/keyrx/pkg/config"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [flags] config_file",
	Short: "parse a configuration script and dump the resulting model.",
	Long: `Parse a configuration script (and its imports) without producing a binary,
dumping the resulting configuration either as an indented summary or as a
machine-readable JSON tree.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		//
		jsonMode := GetFlag(cmd, "json")
		//
		stop := startProgress("parsing")
		defer stop()
		//
		root, flat, diags := compileSource(args[0])
		if len(diags) > 0 {
			printErrors(jsonMode, sourceFiles(flat), diags...)
			os.Exit(1)
		}
		//
		if jsonMode {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			_ = encoder.Encode(configTree(root))
		} else {
			printConfig(root)
		}
	},
}

// configTree converts a configuration into the stable JSON schema used by
// parse --json.  Key codes are emitted by name; modifier and lock ids as
// decimal integers.
func configTree(root config.ConfigRoot) map[string]any {
	devices := make([]any, len(root.Devices))
	//
	for i, device := range root.Devices {
		mappings := make([]any, len(device.Mappings))
		for j, mapping := range device.Mappings {
			mappings[j] = mappingTree(mapping)
		}
		//
		devices[i] = map[string]any{
			"pattern":  device.Pattern,
			"mappings": mappings,
		}
	}
	//
	return map[string]any{
		"version":     root.Version.String(),
		"source_hash": hex.EncodeToString(root.Metadata.SourceHash[:]),
		"devices":     devices,
	}
}

func mappingTree(m config.KeyMapping) map[string]any {
	tree := map[string]any{"kind": m.Kind.String()}
	//
	switch m.Kind {
	case config.KindSimple:
		tree["from"] = m.From.String()
		tree["to"] = m.To.String()
	case config.KindModifier:
		tree["from"] = m.From.String()
		tree["modifier_id"] = int(m.ModifierID)
	case config.KindLock:
		tree["from"] = m.From.String()
		tree["lock_id"] = int(m.LockID)
	case config.KindTapHold:
		tree["from"] = m.From.String()
		tree["tap"] = m.Tap.String()
		tree["hold_modifier"] = int(m.ModifierID)
		tree["threshold_ms"] = int(m.ThresholdMs)
	case config.KindModifiedOutput:
		tree["from"] = m.From.String()
		tree["to"] = m.To.String()
		tree["shift"] = m.Shift
		tree["ctrl"] = m.Ctrl
		tree["alt"] = m.Alt
		tree["win"] = m.Win
	case config.KindConditional:
		tree["condition"] = conditionTree(m.Condition)
		//
		children := make([]any, len(m.Mappings))
		for i, child := range m.Mappings {
			children[i] = mappingTree(child)
		}
		//
		tree["mappings"] = children
	}
	//
	return tree
}

func conditionTree(c config.Condition) map[string]any {
	switch c.Kind {
	case config.CondModifierActive:
		return map[string]any{"kind": "modifier_active", "id": int(c.ID)}
	case config.CondLockActive:
		return map[string]any{"kind": "lock_active", "id": int(c.ID)}
	default:
		kind := "all_active"
		if c.Kind == config.CondNotActive {
			kind = "not_active"
		}
		//
		items := make([]any, len(c.Items))
		for i, item := range c.Items {
			itemKind := "modifier_active"
			if item.Kind == config.CondLockActive {
				itemKind = "lock_active"
			}
			//
			items[i] = map[string]any{"kind": itemKind, "id": int(item.ID)}
		}
		//
		return map[string]any{"kind": kind, "items": items}
	}
}

// printConfig dumps an indented, human-readable summary of a configuration.
func printConfig(root config.ConfigRoot) {
	fmt.Printf("version %s\n", root.Version)
	fmt.Printf("source sha256=%s\n", hex.EncodeToString(root.Metadata.SourceHash[:]))
	//
	for _, device := range root.Devices {
		fmt.Printf("device %q\n", device.Pattern)
		//
		for _, mapping := range device.Mappings {
			printMapping(1, mapping)
		}
	}
}

func printMapping(indent int, m config.KeyMapping) {
	printIndent(indent)
	//
	switch m.Kind {
	case config.KindSimple:
		fmt.Printf("VK_%s -> VK_%s\n", m.From, m.To)
	case config.KindModifier:
		fmt.Printf("VK_%s -> MD_%02X\n", m.From, m.ModifierID)
	case config.KindLock:
		fmt.Printf("VK_%s -> LK_%02X\n", m.From, m.LockID)
	case config.KindTapHold:
		fmt.Printf("tap_hold VK_%s tap=VK_%s hold=MD_%02X threshold=%dms\n",
			m.From, m.Tap, m.ModifierID, m.ThresholdMs)
	case config.KindModifiedOutput:
		fmt.Printf("VK_%s -> %s\n", m.From, modifiedString(m))
	case config.KindConditional:
		fmt.Printf("when %s\n", m.Condition)
		//
		for _, child := range m.Mappings {
			printMapping(indent+1, child)
		}
	}
}

func modifiedString(m config.KeyMapping) string {
	out := ""
	//
	if m.Shift {
		out += "Shift+"
	}
	//
	if m.Ctrl {
		out += "Ctrl+"
	}
	//
	if m.Alt {
		out += "Alt+"
	}
	//
	if m.Win {
		out += "Win+"
	}
	//
	return out + "VK_" + m.To.String()
}

func printIndent(indent int) {
	for i := 0; i < indent; i++ {
		fmt.Print("  ")
	}
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
