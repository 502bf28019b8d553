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
package config

import (
	"testing"

	"github.com/ryosukemondo/keyrx/pkg/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimple(t *testing.T) {
	m, err := NewSimple(keys.KeyCapsLock, keys.KeyEscape)
	require.NoError(t, err)
	assert.Equal(t, KindSimple, m.Kind)
	assert.Equal(t, keys.KeyCapsLock, m.From)
	assert.Equal(t, keys.KeyEscape, m.To)
}

func TestNewSimpleRejectsUnknownKey(t *testing.T) {
	_, err := NewSimple(keys.KeyCode(0xFFFF), keys.KeyEscape)
	assert.Error(t, err)
	//
	_, err = NewSimple(keys.KeyA, keys.KeyCode(0xFFFF))
	assert.Error(t, err)
}

func TestNewModifierRange(t *testing.T) {
	m, err := NewModifier(keys.KeyCapsLock, 0xFE)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xFE), m.ModifierID)
	//
	_, err = NewModifier(keys.KeyCapsLock, 0xFF)
	assert.Error(t, err)
}

func TestNewLockRange(t *testing.T) {
	_, err := NewLock(keys.KeyCapsLock, 0xFE)
	assert.NoError(t, err)
	//
	_, err = NewLock(keys.KeyCapsLock, 0xFF)
	assert.Error(t, err)
}

func TestNewTapHold(t *testing.T) {
	m, err := NewTapHold(keys.KeySpace, keys.KeySpace, 0x01, 200)
	require.NoError(t, err)
	assert.Equal(t, KindTapHold, m.Kind)
	assert.Equal(t, uint16(200), m.ThresholdMs)
	// Threshold 1 is the minimum; 0 is rejected.
	_, err = NewTapHold(keys.KeySpace, keys.KeySpace, 0x01, 1)
	assert.NoError(t, err)
	//
	_, err = NewTapHold(keys.KeySpace, keys.KeySpace, 0x01, 0)
	assert.Error(t, err)
}

func TestModifiedOutputNormalizesToSimple(t *testing.T) {
	m, err := NewModifiedOutput(keys.KeyA, keys.KeyB, false, false, false, false)
	require.NoError(t, err)
	assert.Equal(t, KindSimple, m.Kind)
	//
	m, err = NewModifiedOutput(keys.KeyA, keys.KeyB, true, false, true, false)
	require.NoError(t, err)
	assert.Equal(t, KindModifiedOutput, m.Kind)
	assert.True(t, m.Shift)
	assert.True(t, m.Alt)
	assert.False(t, m.Ctrl)
}

func TestConditionalRejectsEmptyAndNested(t *testing.T) {
	cond, err := NewModifierActive(0x00)
	require.NoError(t, err)
	//
	_, err = NewConditional(cond, nil)
	assert.Error(t, err)
	//
	inner, err := NewConditional(cond, []KeyMapping{mustSimple(t, keys.KeyH, keys.KeyLeft)})
	require.NoError(t, err)
	//
	_, err = NewConditional(cond, []KeyMapping{inner})
	assert.Error(t, err)
}

func TestConditionConstructors(t *testing.T) {
	c, err := NewModifierActive(0x00)
	require.NoError(t, err)
	assert.Equal(t, CondModifierActive, c.Kind)
	assert.Equal(t, "MD_00", c.String())
	//
	c, err = NewLockActive(0x10)
	require.NoError(t, err)
	assert.Equal(t, CondLockActive, c.Kind)
	assert.Equal(t, "LK_10", c.String())
	//
	_, err = NewModifierActive(0xFF)
	assert.Error(t, err)
	//
	_, err = NewLockActive(0xFF)
	assert.Error(t, err)
}

func TestCompoundConditions(t *testing.T) {
	items := []ConditionItem{
		{CondModifierActive, 0x00},
		{CondLockActive, 0x01},
	}
	//
	c, err := NewAllActive(items)
	require.NoError(t, err)
	assert.Equal(t, "all(MD_00, LK_01)", c.String())
	//
	c, err = NewNotActive(items)
	require.NoError(t, err)
	assert.Equal(t, "none(MD_00, LK_01)", c.String())
	// Empty lists are rejected on both.
	_, err = NewAllActive(nil)
	assert.Error(t, err)
	//
	_, err = NewNotActive(nil)
	assert.Error(t, err)
	// Compound kinds cannot appear as items.
	_, err = NewAllActive([]ConditionItem{{CondAllActive, 0x00}})
	assert.Error(t, err)
}

func mustSimple(t *testing.T, from keys.KeyCode, to keys.KeyCode) KeyMapping {
	t.Helper()
	//
	m, err := NewSimple(from, to)
	require.NoError(t, err)
	//
	return m
}
