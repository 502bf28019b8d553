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
	"fmt"
	"strings"
)

// ConditionKind discriminates condition variants.  The numeric values are
// wire tags and must never change.
type ConditionKind uint8

// The closed set of condition variants.  AllActive is a conjunction;
// NotActive is a negated conjunction (none of the listed items may be
// active).  The item kinds reuse CondModifierActive / CondLockActive.
const (
	CondModifierActive ConditionKind = iota + 1
	CondLockActive
	CondAllActive
	CondNotActive
)

// ConditionItem is a single modifier-active or lock-active test inside a
// compound condition.
type ConditionItem struct {
	Kind ConditionKind
	ID   uint8
}

// Condition guards a group of mappings.  For the scalar variants
// (ModifierActive, LockActive) the ID field holds the custom id and Items is
// nil; for the compound variants Items is non-empty and ID is zero.
type Condition struct {
	Kind  ConditionKind
	ID    uint8
	Items []ConditionItem
}

// NewModifierActive constructs a condition satisfied whilst the given custom
// modifier is held.
func NewModifierActive(id uint8) (Condition, error) {
	if id > MaxCustomID {
		return Condition{}, fmt.Errorf("modifier id 0x%02X out of range (max 0x%02X)", id, MaxCustomID)
	}
	//
	return Condition{Kind: CondModifierActive, ID: id}, nil
}

// NewLockActive constructs a condition satisfied whilst the given custom
// lock is engaged.
func NewLockActive(id uint8) (Condition, error) {
	if id > MaxCustomID {
		return Condition{}, fmt.Errorf("lock id 0x%02X out of range (max 0x%02X)", id, MaxCustomID)
	}
	//
	return Condition{Kind: CondLockActive, ID: id}, nil
}

// NewAllActive constructs a conjunction over one or more items.
func NewAllActive(items []ConditionItem) (Condition, error) {
	if err := checkItems(items); err != nil {
		return Condition{}, err
	}
	//
	return Condition{Kind: CondAllActive, Items: items}, nil
}

// NewNotActive constructs a negated conjunction: the condition holds only
// when none of the items is active.
func NewNotActive(items []ConditionItem) (Condition, error) {
	if err := checkItems(items); err != nil {
		return Condition{}, err
	}
	//
	return Condition{Kind: CondNotActive, Items: items}, nil
}

func checkItems(items []ConditionItem) error {
	if len(items) == 0 {
		return fmt.Errorf("compound condition must contain at least one item")
	}
	//
	for _, item := range items {
		if item.Kind != CondModifierActive && item.Kind != CondLockActive {
			return fmt.Errorf("condition item has non-scalar kind %d", item.Kind)
		}
		//
		if item.ID > MaxCustomID {
			return fmt.Errorf("condition item id 0x%02X out of range (max 0x%02X)", item.ID, MaxCustomID)
		}
	}
	//
	return nil
}

// String renders this condition in the DSL's token syntax, for diagnostics
// and the parse summary.
func (p Condition) String() string {
	switch p.Kind {
	case CondModifierActive:
		return fmt.Sprintf("MD_%02X", p.ID)
	case CondLockActive:
		return fmt.Sprintf("LK_%02X", p.ID)
	case CondAllActive:
		return fmt.Sprintf("all(%s)", itemsString(p.Items))
	case CondNotActive:
		return fmt.Sprintf("none(%s)", itemsString(p.Items))
	default:
		return fmt.Sprintf("unknown(%d)", p.Kind)
	}
}

func itemsString(items []ConditionItem) string {
	var builder strings.Builder
	//
	for i, item := range items {
		if i != 0 {
			builder.WriteString(", ")
		}
		//
		if item.Kind == CondModifierActive {
			fmt.Fprintf(&builder, "MD_%02X", item.ID)
		} else {
			fmt.Fprintf(&builder, "LK_%02X", item.ID)
		}
	}
	//
	return builder.String()
}
