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

	"github.com/ryosukemondo/keyrx/pkg/keys"
)

// MaxCustomID is the largest legal custom modifier or lock identifier.  The
// value 0xFF is reserved and must never be emitted.
const MaxCustomID uint8 = 0xFE

// SchemaVersion is the version triple of the configuration schema produced
// by this compiler.  Key discriminants and wire tags are frozen within a
// major version.
var SchemaVersion = Version{1, 0, 0}

// Version is a semantic version triple identifying the configuration schema.
type Version struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// String returns the usual dotted rendering of this version.
func (p Version) String() string {
	return fmt.Sprintf("%d.%d.%d", p.Major, p.Minor, p.Patch)
}

// Metadata records provenance information about a compilation.
// CompilerVersion and SourceHash participate in the content hash of the
// binary artifact; CompiledAt is explicitly excluded so that identical
// sources compiled by the same compiler always produce identical hashes.
type Metadata struct {
	// Compilation timestamp, seconds since epoch in UTC.
	CompiledAt uint64
	// Version string of the compiler which produced this artifact.
	CompilerVersion string
	// SHA-256 of the concatenated, import-inlined, LF-normalized source.
	SourceHash [32]byte
}

// ConfigRoot is the top-level compiled artifact.  Device order is
// significant (first match wins at runtime) and is preserved bit-exactly by
// the encoder.
type ConfigRoot struct {
	Version  Version
	Devices  []DeviceConfig
	Metadata Metadata
}

// DeviceConfig scopes an ordered sequence of key mappings to the devices
// matching a glob-style pattern.  The compiler stores the pattern literally;
// match semantics belong to the runtime.
type DeviceConfig struct {
	Pattern  string
	Mappings []KeyMapping
}

// MappingKind discriminates the variants of KeyMapping.  The numeric values
// are wire tags and must never change.
type MappingKind uint8

// The closed set of mapping variants.
const (
	KindSimple MappingKind = iota + 1
	KindModifier
	KindLock
	KindTapHold
	KindModifiedOutput
	KindConditional
)

// String returns the JSON-facing name of this mapping kind.
func (k MappingKind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindModifier:
		return "modifier"
	case KindLock:
		return "lock"
	case KindTapHold:
		return "tap_hold"
	case KindModifiedOutput:
		return "modified_output"
	case KindConditional:
		return "conditional"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// KeyMapping is a tagged union over the six mapping variants.  Which fields
// are meaningful depends on Kind:
//
//	Simple         From, To
//	Modifier       From, ModifierID
//	Lock           From, LockID
//	TapHold        From, Tap, ModifierID (hold), ThresholdMs
//	ModifiedOutput From, To, Shift/Ctrl/Alt/Win
//	Conditional    Condition, Mappings (variants 1-5 only; depth exactly one)
//
// Instances are built through the checked constructors below; the zero value
// is not a valid mapping.
type KeyMapping struct {
	Kind        MappingKind
	From        keys.KeyCode
	To          keys.KeyCode
	ModifierID  uint8
	LockID      uint8
	Tap         keys.KeyCode
	ThresholdMs uint16
	Shift       bool
	Ctrl        bool
	Alt         bool
	Win         bool
	Condition   Condition
	Mappings    []KeyMapping
}

// NewSimple constructs a plain key-to-key remapping.
func NewSimple(from keys.KeyCode, to keys.KeyCode) (KeyMapping, error) {
	if err := checkKey("from", from); err != nil {
		return KeyMapping{}, err
	}
	//
	if err := checkKey("to", to); err != nil {
		return KeyMapping{}, err
	}
	//
	return KeyMapping{Kind: KindSimple, From: from, To: to}, nil
}

// NewModifier constructs a mapping which activates a custom modifier whilst
// the physical key is held.
func NewModifier(from keys.KeyCode, modifierID uint8) (KeyMapping, error) {
	if err := checkKey("from", from); err != nil {
		return KeyMapping{}, err
	}
	//
	if modifierID > MaxCustomID {
		return KeyMapping{}, fmt.Errorf("modifier id 0x%02X out of range (max 0x%02X)", modifierID, MaxCustomID)
	}
	//
	return KeyMapping{Kind: KindModifier, From: from, ModifierID: modifierID}, nil
}

// NewLock constructs a mapping which toggles a custom lock on each press.
func NewLock(from keys.KeyCode, lockID uint8) (KeyMapping, error) {
	if err := checkKey("from", from); err != nil {
		return KeyMapping{}, err
	}
	//
	if lockID > MaxCustomID {
		return KeyMapping{}, fmt.Errorf("lock id 0x%02X out of range (max 0x%02X)", lockID, MaxCustomID)
	}
	//
	return KeyMapping{Kind: KindLock, From: from, LockID: lockID}, nil
}

// NewTapHold constructs a dual-role mapping: a tap emits the given key, a
// hold past the threshold activates a custom modifier.
func NewTapHold(from keys.KeyCode, tap keys.KeyCode, holdModifier uint8, thresholdMs uint16) (KeyMapping, error) {
	if err := checkKey("from", from); err != nil {
		return KeyMapping{}, err
	}
	//
	if err := checkKey("tap", tap); err != nil {
		return KeyMapping{}, err
	}
	//
	if holdModifier > MaxCustomID {
		return KeyMapping{}, fmt.Errorf("hold modifier id 0x%02X out of range (max 0x%02X)", holdModifier, MaxCustomID)
	}
	//
	if thresholdMs == 0 {
		return KeyMapping{}, fmt.Errorf("tap-hold threshold must be at least 1ms")
	}
	//
	return KeyMapping{
		Kind:        KindTapHold,
		From:        from,
		Tap:         tap,
		ModifierID:  holdModifier,
		ThresholdMs: thresholdMs,
	}, nil
}

// NewModifiedOutput constructs a mapping which emits a key with a fixed
// combination of OS-level modifiers.  When all four flags are false, the
// result normalizes to a Simple mapping; this is the only place
// normalization happens, keeping the encoder a pure function of its input.
func NewModifiedOutput(from keys.KeyCode, to keys.KeyCode, shift, ctrl, alt, win bool) (KeyMapping, error) {
	if !shift && !ctrl && !alt && !win {
		return NewSimple(from, to)
	}
	//
	if err := checkKey("from", from); err != nil {
		return KeyMapping{}, err
	}
	//
	if err := checkKey("to", to); err != nil {
		return KeyMapping{}, err
	}
	//
	return KeyMapping{
		Kind:  KindModifiedOutput,
		From:  from,
		To:    to,
		Shift: shift,
		Ctrl:  ctrl,
		Alt:   alt,
		Win:   win,
	}, nil
}

// NewConditional constructs a group of mappings active only under the given
// condition.  The group must be non-empty and may not itself contain
// conditional mappings (nesting depth is exactly one).
func NewConditional(condition Condition, mappings []KeyMapping) (KeyMapping, error) {
	if len(mappings) == 0 {
		return KeyMapping{}, fmt.Errorf("conditional group must contain at least one mapping")
	}
	//
	for _, m := range mappings {
		if m.Kind == KindConditional {
			return KeyMapping{}, fmt.Errorf("conditional groups cannot be nested")
		}
	}
	//
	return KeyMapping{Kind: KindConditional, Condition: condition, Mappings: mappings}, nil
}

func checkKey(role string, code keys.KeyCode) error {
	if !code.Valid() {
		return fmt.Errorf("%s key %d is not in the catalog", role, uint16(code))
	}
	//
	return nil
}
