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

// Package prefix implements the token grammar for DSL identifiers.  Every
// key-like argument in the DSL is one of:
//
//	VK_<Name>  a physical/virtual key from the catalog
//	MD_<XX>    a custom modifier id, two hex digits in [0x00, 0xFE]
//	LK_<XX>    a custom lock id, two hex digits in [0x00, 0xFE]
//
// Parsing failures are reported as structured diagnostics with stable error
// codes; positions are attached later by the evaluator, which knows the call
// site.
package prefix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ryosukemondo/keyrx/pkg/config"
	"github.com/ryosukemondo/keyrx/pkg/keys"
	"github.com/ryosukemondo/keyrx/pkg/util/source"
)

// Stable error codes emitted by this package.
const (
	CodeMissingPrefix   = "missing_prefix"
	CodeUnknownPrefix   = "unknown_prefix"
	CodeUnknownKeyName  = "unknown_key_name"
	CodePhysicalInMD    = "physical_modifier_in_custom_namespace"
	CodeInvalidHexID    = "invalid_hex_id"
	CodeIDOutOfRange    = "id_out_of_range"
	CodeWrongForContext = "wrong_prefix_for_context"
)

// Kind discriminates the three token namespaces.
type Kind uint8

// The closed set of token kinds.
const (
	KindKey Kind = iota + 1
	KindModifier
	KindLock
)

// String returns the prefix denoting this kind, including the underscore.
func (k Kind) String() string {
	switch k {
	case KindKey:
		return "VK_"
	case KindModifier:
		return "MD_"
	case KindLock:
		return "LK_"
	default:
		return "?_"
	}
}

// Token is the result of parsing a DSL identifier.  Key is meaningful only
// for KindKey; ID only for KindModifier and KindLock.
type Token struct {
	Kind Kind
	Key  keys.KeyCode
	ID   uint8
}

// Parse parses a token belonging to any of the three namespaces.
func Parse(token string) (Token, *source.Diagnostic) {
	kind, suffix, diag := splitPrefix(token)
	if diag != nil {
		return Token{}, diag
	}
	//
	switch kind {
	case KindKey:
		return parseKeySuffix(token, suffix)
	default:
		return parseIDSuffix(token, kind, suffix)
	}
}

// ParseKey parses a token which must be in the VK_ namespace, e.g. the "tap"
// argument of tap_hold.  The namespace is checked before the suffix, so a
// context violation is reported as such even when the suffix is also bad.
func ParseKey(token string) (keys.KeyCode, *source.Diagnostic) {
	kind, _, diag := splitPrefix(token)
	if diag != nil {
		return 0, diag
	}
	//
	if kind != KindKey {
		return 0, wrongForContext(token, KindKey, kind)
	}
	//
	parsed, diag := Parse(token)
	if diag != nil {
		return 0, diag
	}
	//
	return parsed.Key, nil
}

// ParseModifier parses a token which must be in the MD_ namespace, e.g. the
// "hold" argument of tap_hold.
func ParseModifier(token string) (uint8, *source.Diagnostic) {
	kind, _, diag := splitPrefix(token)
	if diag != nil {
		return 0, diag
	}
	//
	if kind != KindModifier {
		return 0, wrongForContext(token, KindModifier, kind)
	}
	//
	parsed, diag := Parse(token)
	if diag != nil {
		return 0, diag
	}
	//
	return parsed.ID, nil
}

// ParseConditionItem parses a token which must be MD_ or LK_, as required by
// the arguments of when(...) and when_not(...).
func ParseConditionItem(token string) (config.ConditionItem, *source.Diagnostic) {
	kind, _, diag := splitPrefix(token)
	if diag != nil {
		return config.ConditionItem{}, diag
	}
	//
	if kind == KindKey {
		diag := source.Errorf(CodeWrongForContext,
			"token %q must name a custom modifier (MD_) or lock (LK_), found VK_", token)
		diag.Suggestion = "conditions test custom modifiers and locks, not physical keys"
		//
		return config.ConditionItem{}, diag
	}
	//
	parsed, diag := Parse(token)
	if diag != nil {
		return config.ConditionItem{}, diag
	}
	//
	if parsed.Kind == KindModifier {
		return config.ConditionItem{Kind: config.CondModifierActive, ID: parsed.ID}, nil
	}
	//
	return config.ConditionItem{Kind: config.CondLockActive, ID: parsed.ID}, nil
}

// splitPrefix classifies the leading namespace of a token.
func splitPrefix(token string) (Kind, string, *source.Diagnostic) {
	switch {
	case strings.HasPrefix(token, "VK_"):
		return KindKey, token[3:], nil
	case strings.HasPrefix(token, "MD_"):
		return KindModifier, token[3:], nil
	case strings.HasPrefix(token, "LK_"):
		return KindLock, token[3:], nil
	}
	// Distinguish a foreign-looking prefix from no prefix at all.
	if i := strings.Index(token, "_"); i > 0 {
		found := token[:i+1]
		diag := source.Errorf(CodeUnknownPrefix,
			"token %q has unrecognized prefix %q", token, found)
		diag.Suggestion = "valid prefixes are VK_, MD_ and LK_"
		//
		return 0, "", diag
	}
	//
	diag := source.Errorf(CodeMissingPrefix, "token %q lacks a namespace prefix", token)
	diag.Suggestion = fmt.Sprintf("did you mean %q?", "VK_"+token)
	//
	return 0, "", diag
}

func parseKeySuffix(token string, name string) (Token, *source.Diagnostic) {
	code, ok := keys.Lookup(name)
	if !ok {
		diag := source.Errorf(CodeUnknownKeyName, "unknown key name %q", name)
		//
		if suggestions := Suggest(name, 3); len(suggestions) > 0 {
			diag.Suggestion = "did you mean " + quoteAll(suggestions) + "?"
		}
		//
		return Token{}, diag
	}
	//
	return Token{Kind: KindKey, Key: code}, nil
}

func parseIDSuffix(token string, kind Kind, suffix string) (Token, *source.Diagnostic) {
	// Reject physical modifier names in the custom namespaces outright, since
	// "MD_LShift" almost always means the user confused the two concepts.
	if kind == KindModifier && keys.IsModifierName(suffix) {
		diag := source.Errorf(CodePhysicalInMD,
			"%q names the physical modifier %s in the custom modifier namespace", token, suffix)
		diag.Suggestion = fmt.Sprintf("physical keys use the VK_ prefix; custom modifiers are numbered MD_00..MD_%02X", config.MaxCustomID)
		//
		return Token{}, diag
	}
	//
	if len(suffix) != 2 || !isHex(suffix) {
		diag := source.Errorf(CodeInvalidHexID,
			"token %q must end in exactly two hex digits", token)
		//
		return Token{}, diag
	}
	//
	value, err := strconv.ParseUint(suffix, 16, 8)
	if err != nil {
		diag := source.Errorf(CodeInvalidHexID,
			"token %q must end in exactly two hex digits", token)
		//
		return Token{}, diag
	}
	//
	if uint8(value) > config.MaxCustomID {
		diag := source.Errorf(CodeIDOutOfRange,
			"id 0x%02X in token %q out of range (max 0x%02X)", value, token, config.MaxCustomID)
		//
		return Token{}, diag
	}
	//
	return Token{Kind: kind, ID: uint8(value)}, nil
}

func wrongForContext(token string, expected Kind, found Kind) *source.Diagnostic {
	return source.Errorf(CodeWrongForContext,
		"token %q must use prefix %s here, found %s", token, expected, found)
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		//
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	//
	return true
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = strconv.Quote(n)
	}
	//
	return strings.Join(quoted, ", ")
}
