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
package prefix

import (
	"testing"

	"github.com/ryosukemondo/keyrx/pkg/config"
	"github.com/ryosukemondo/keyrx/pkg/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyToken(t *testing.T) {
	token, diag := Parse("VK_CapsLock")
	require.Nil(t, diag)
	assert.Equal(t, KindKey, token.Kind)
	assert.Equal(t, keys.KeyCapsLock, token.Key)
}

func TestParseModifierToken(t *testing.T) {
	tests := []struct {
		token string
		id    uint8
	}{
		{"MD_00", 0x00},
		{"MD_0a", 0x0A},
		{"MD_0A", 0x0A},
		{"MD_FE", 0xFE},
		{"MD_fe", 0xFE},
	}
	//
	for _, test := range tests {
		token, diag := Parse(test.token)
		require.Nil(t, diag, "token %s", test.token)
		assert.Equal(t, KindModifier, token.Kind)
		assert.Equal(t, test.id, token.ID)
	}
}

func TestParseLockToken(t *testing.T) {
	token, diag := Parse("LK_10")
	require.Nil(t, diag)
	assert.Equal(t, KindLock, token.Kind)
	assert.Equal(t, uint8(0x10), token.ID)
}

func TestMissingPrefix(t *testing.T) {
	_, diag := Parse("CapsLock")
	require.NotNil(t, diag)
	assert.Equal(t, CodeMissingPrefix, diag.Code)
	assert.Contains(t, diag.Suggestion, "VK_CapsLock")
}

func TestUnknownPrefix(t *testing.T) {
	_, diag := Parse("KB_CapsLock")
	require.NotNil(t, diag)
	assert.Equal(t, CodeUnknownPrefix, diag.Code)
}

func TestUnknownKeyNameWithSuggestions(t *testing.T) {
	_, diag := Parse("VK_CapsLok")
	require.NotNil(t, diag)
	assert.Equal(t, CodeUnknownKeyName, diag.Code)
	assert.Contains(t, diag.Suggestion, "CapsLock")
}

func TestUnknownKeyNameNoSuggestions(t *testing.T) {
	_, diag := Parse("VK_Zzzzzzzzzzz")
	require.NotNil(t, diag)
	assert.Equal(t, CodeUnknownKeyName, diag.Code)
	assert.Empty(t, diag.Suggestion)
}

func TestPhysicalModifierInCustomNamespace(t *testing.T) {
	_, diag := Parse("MD_LShift")
	require.NotNil(t, diag)
	assert.Equal(t, CodePhysicalInMD, diag.Code)
}

func TestInvalidHexID(t *testing.T) {
	for _, token := range []string{"MD_0", "MD_000", "MD_GG", "LK_", "LK_xy"} {
		_, diag := Parse(token)
		require.NotNil(t, diag, "token %s", token)
		assert.Equal(t, CodeInvalidHexID, diag.Code, "token %s", token)
	}
}

func TestIDOutOfRange(t *testing.T) {
	_, diag := Parse("MD_FF")
	require.NotNil(t, diag)
	assert.Equal(t, CodeIDOutOfRange, diag.Code)
	//
	_, diag = Parse("LK_ff")
	require.NotNil(t, diag)
	assert.Equal(t, CodeIDOutOfRange, diag.Code)
}

func TestParseKeyContext(t *testing.T) {
	code, diag := ParseKey("VK_Space")
	require.Nil(t, diag)
	assert.Equal(t, keys.KeySpace, code)
	// The tap argument of tap_hold must be a key, not a modifier.
	_, diag = ParseKey("MD_01")
	require.NotNil(t, diag)
	assert.Equal(t, CodeWrongForContext, diag.Code)
}

func TestParseModifierContext(t *testing.T) {
	id, diag := ParseModifier("MD_01")
	require.Nil(t, diag)
	assert.Equal(t, uint8(0x01), id)
	//
	_, diag = ParseModifier("VK_LCtrl")
	require.NotNil(t, diag)
	assert.Equal(t, CodeWrongForContext, diag.Code)
	// The context violation dominates even when the suffix is itself invalid.
	_, diag = ParseModifier("VK_Ctrl")
	require.NotNil(t, diag)
	assert.Equal(t, CodeWrongForContext, diag.Code)
}

func TestParseConditionItem(t *testing.T) {
	item, diag := ParseConditionItem("MD_00")
	require.Nil(t, diag)
	assert.Equal(t, config.CondModifierActive, item.Kind)
	//
	item, diag = ParseConditionItem("LK_05")
	require.Nil(t, diag)
	assert.Equal(t, config.CondLockActive, item.Kind)
	assert.Equal(t, uint8(0x05), item.ID)
	//
	_, diag = ParseConditionItem("VK_A")
	require.NotNil(t, diag)
	assert.Equal(t, CodeWrongForContext, diag.Code)
}

// Every accepted token begins with exactly one of the three prefixes; every
// rejected token carries a code from the closed set.
func TestPrefixClosure(t *testing.T) {
	closed := map[string]bool{
		CodeMissingPrefix:   true,
		CodeUnknownPrefix:   true,
		CodeUnknownKeyName:  true,
		CodePhysicalInMD:    true,
		CodeInvalidHexID:    true,
		CodeIDOutOfRange:    true,
		CodeWrongForContext: true,
	}
	//
	tokens := []string{
		"VK_A", "VK_Nope", "MD_00", "MD_FF", "MD_LShift", "LK_0", "LK_FE",
		"", "_", "X_Y", "vk_A", "CapsLock", "VK_", "MD_", "LK_zz",
	}
	//
	for _, token := range tokens {
		parsed, diag := Parse(token)
		if diag == nil {
			assert.Contains(t, []Kind{KindKey, KindModifier, KindLock}, parsed.Kind, "token %s", token)
		} else {
			assert.True(t, closed[diag.Code], "token %q produced unexpected code %q", token, diag.Code)
		}
	}
}

func TestSuggestDeterministic(t *testing.T) {
	first := Suggest("CapsLok", 3)
	second := Suggest("CapsLok", 3)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
	assert.LessOrEqual(t, len(first), 3)
}

func TestDamerauTransposition(t *testing.T) {
	// A single adjacent transposition counts as one edit, not two.
	assert.Equal(t, 1, damerauLevenshtein("Hoem", "Home"))
	assert.Equal(t, 0, damerauLevenshtein("End", "End"))
	assert.Equal(t, 2, damerauLevenshtein("Edn", "Ende"))
	assert.Equal(t, 3, damerauLevenshtein("", "abc"))
}
