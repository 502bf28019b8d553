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
package keys

import (
	"fmt"
	"sort"
)

// KeyCode identifies a single physical (or virtual) key.  Every code has a
// stable numeric discriminant reserved for serialization; discriminants never
// change across schema patch versions.  Adding new codes is a minor-version
// change and must not disturb existing values.
type KeyCode uint16

// Letter keys occupy 0x0001-0x001A.
const (
	KeyA KeyCode = iota + 0x0001
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
)

// Digit keys (top row) occupy 0x0020-0x0029.
const (
	Key0 KeyCode = iota + 0x0020
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
)

// Function keys occupy 0x0030-0x0047.
const (
	KeyF1 KeyCode = iota + 0x0030
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyF13
	KeyF14
	KeyF15
	KeyF16
	KeyF17
	KeyF18
	KeyF19
	KeyF20
	KeyF21
	KeyF22
	KeyF23
	KeyF24
)

// Physical modifier keys occupy 0x0050-0x0057.  These are the names rejected
// when they appear in the custom modifier namespace (e.g. "MD_LShift").
const (
	KeyLShift KeyCode = iota + 0x0050
	KeyRShift
	KeyLCtrl
	KeyRCtrl
	KeyLAlt
	KeyRAlt
	KeyLWin
	KeyRWin
)

// Editing and whitespace keys occupy 0x0060-0x0067.
const (
	KeyEnter KeyCode = iota + 0x0060
	KeyEscape
	KeyBackspace
	KeyTab
	KeySpace
	KeyCapsLock
	KeyMenu
	KeyPause
)

// Navigation keys occupy 0x0070-0x0079.
const (
	KeyLeft KeyCode = iota + 0x0070
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyInsert
	KeyDelete
)

// Punctuation keys occupy 0x0080-0x008A.
const (
	KeyMinus KeyCode = iota + 0x0080
	KeyEquals
	KeyLBracket
	KeyRBracket
	KeyBackslash
	KeySemicolon
	KeyQuote
	KeyGrave
	KeyComma
	KeyPeriod
	KeySlash
)

// Numpad keys occupy 0x0090-0x00A0.
const (
	KeyNum0 KeyCode = iota + 0x0090
	KeyNum1
	KeyNum2
	KeyNum3
	KeyNum4
	KeyNum5
	KeyNum6
	KeyNum7
	KeyNum8
	KeyNum9
	KeyNumMultiply
	KeyNumPlus
	KeyNumMinus
	KeyNumDecimal
	KeyNumDivide
	KeyNumEnter
	KeyNumLock
)

// System keys occupy 0x00B0-0x00B2.
const (
	KeyPrintScreen KeyCode = iota + 0x00B0
	KeyScrollLock
	KeyApplication
)

// Media keys occupy 0x00C0-0x00C6.
const (
	KeyVolumeUp KeyCode = iota + 0x00C0
	KeyVolumeDown
	KeyMute
	KeyMediaPlayPause
	KeyMediaStop
	KeyMediaNext
	KeyMediaPrev
)

// Category classifies key codes into the groups used by documentation and
// tooling output.
type Category uint8

// The closed set of key categories.
const (
	CategoryLetter Category = iota
	CategoryDigit
	CategoryFunction
	CategoryModifier
	CategoryEditing
	CategoryNavigation
	CategoryPunctuation
	CategoryNumpad
	CategorySystem
	CategoryMedia
	CategoryUnknown
)

// keyNames is the canonical name table.  Names are case-sensitive and appear
// in DSL tokens with the "VK_" prefix (e.g. "VK_CapsLock").
var keyNames = map[KeyCode]string{
	KeyA: "A", KeyB: "B", KeyC: "C", KeyD: "D", KeyE: "E", KeyF: "F",
	KeyG: "G", KeyH: "H", KeyI: "I", KeyJ: "J", KeyK: "K", KeyL: "L",
	KeyM: "M", KeyN: "N", KeyO: "O", KeyP: "P", KeyQ: "Q", KeyR: "R",
	KeyS: "S", KeyT: "T", KeyU: "U", KeyV: "V", KeyW: "W", KeyX: "X",
	KeyY: "Y", KeyZ: "Z",
	//
	Key0: "0", Key1: "1", Key2: "2", Key3: "3", Key4: "4",
	Key5: "5", Key6: "6", Key7: "7", Key8: "8", Key9: "9",
	//
	KeyF1: "F1", KeyF2: "F2", KeyF3: "F3", KeyF4: "F4", KeyF5: "F5",
	KeyF6: "F6", KeyF7: "F7", KeyF8: "F8", KeyF9: "F9", KeyF10: "F10",
	KeyF11: "F11", KeyF12: "F12", KeyF13: "F13", KeyF14: "F14",
	KeyF15: "F15", KeyF16: "F16", KeyF17: "F17", KeyF18: "F18",
	KeyF19: "F19", KeyF20: "F20", KeyF21: "F21", KeyF22: "F22",
	KeyF23: "F23", KeyF24: "F24",
	//
	KeyLShift: "LShift", KeyRShift: "RShift",
	KeyLCtrl: "LCtrl", KeyRCtrl: "RCtrl",
	KeyLAlt: "LAlt", KeyRAlt: "RAlt",
	KeyLWin: "LWin", KeyRWin: "RWin",
	//
	KeyEnter: "Enter", KeyEscape: "Escape", KeyBackspace: "Backspace",
	KeyTab: "Tab", KeySpace: "Space", KeyCapsLock: "CapsLock",
	KeyMenu: "Menu", KeyPause: "Pause",
	//
	KeyLeft: "Left", KeyRight: "Right", KeyUp: "Up", KeyDown: "Down",
	KeyHome: "Home", KeyEnd: "End", KeyPageUp: "PageUp",
	KeyPageDown: "PageDown", KeyInsert: "Insert", KeyDelete: "Delete",
	//
	KeyMinus: "Minus", KeyEquals: "Equals", KeyLBracket: "LBracket",
	KeyRBracket: "RBracket", KeyBackslash: "Backslash",
	KeySemicolon: "Semicolon", KeyQuote: "Quote", KeyGrave: "Grave",
	KeyComma: "Comma", KeyPeriod: "Period", KeySlash: "Slash",
	//
	KeyNum0: "Num0", KeyNum1: "Num1", KeyNum2: "Num2", KeyNum3: "Num3",
	KeyNum4: "Num4", KeyNum5: "Num5", KeyNum6: "Num6", KeyNum7: "Num7",
	KeyNum8: "Num8", KeyNum9: "Num9",
	KeyNumMultiply: "NumMultiply", KeyNumPlus: "NumPlus",
	KeyNumMinus: "NumMinus", KeyNumDecimal: "NumDecimal",
	KeyNumDivide: "NumDivide", KeyNumEnter: "NumEnter",
	KeyNumLock: "NumLock",
	//
	KeyPrintScreen: "PrintScreen", KeyScrollLock: "ScrollLock",
	KeyApplication: "Application",
	//
	KeyVolumeUp: "VolumeUp", KeyVolumeDown: "VolumeDown", KeyMute: "Mute",
	KeyMediaPlayPause: "MediaPlayPause", KeyMediaStop: "MediaStop",
	KeyMediaNext: "MediaNext", KeyMediaPrev: "MediaPrev",
}

// keyCodes is the reverse of keyNames, built once at package init.
var keyCodes map[string]KeyCode

// sortedNames caches the catalog names in discriminant order, so that
// suggestion candidates and documentation listings are deterministic.
var sortedNames []string

func init() {
	keyCodes = make(map[string]KeyCode, len(keyNames))
	codes := make([]int, 0, len(keyNames))
	//
	for code, name := range keyNames {
		if _, ok := keyCodes[name]; ok {
			panic(fmt.Sprintf("duplicate key name %q", name))
		}
		//
		keyCodes[name] = code
		codes = append(codes, int(code))
	}
	//
	sort.Ints(codes)
	//
	sortedNames = make([]string, len(codes))
	for i, code := range codes {
		sortedNames[i] = keyNames[KeyCode(code)]
	}
}

// Lookup resolves a textual key name (without any prefix) to its key code.
// Matching is case-sensitive and there are no aliases beyond the names
// recorded in the catalog.
func Lookup(name string) (KeyCode, bool) {
	code, ok := keyCodes[name]
	return code, ok
}

// String returns the canonical name of this key code.  Discriminants outside
// the catalog render as "Unknown(N)" rather than failing, since this is used
// by error formatters.
func (k KeyCode) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	//
	return fmt.Sprintf("Unknown(%d)", uint16(k))
}

// Valid reports whether this discriminant is part of the catalog.
func (k KeyCode) Valid() bool {
	_, ok := keyNames[k]
	return ok
}

// Category returns the category of this key code.
func (k KeyCode) Category() Category {
	switch {
	case k >= KeyA && k <= KeyZ:
		return CategoryLetter
	case k >= Key0 && k <= Key9:
		return CategoryDigit
	case k >= KeyF1 && k <= KeyF24:
		return CategoryFunction
	case k >= KeyLShift && k <= KeyRWin:
		return CategoryModifier
	case k >= KeyEnter && k <= KeyPause:
		return CategoryEditing
	case k >= KeyLeft && k <= KeyDelete:
		return CategoryNavigation
	case k >= KeyMinus && k <= KeySlash:
		return CategoryPunctuation
	case k >= KeyNum0 && k <= KeyNumLock:
		return CategoryNumpad
	case k >= KeyPrintScreen && k <= KeyApplication:
		return CategorySystem
	case k >= KeyVolumeUp && k <= KeyMediaPrev:
		return CategoryMedia
	default:
		return CategoryUnknown
	}
}

// IsModifierName reports whether name denotes a physical modifier key.  The
// prefix validator uses this to reject tokens such as "MD_LShift", where a
// physical modifier name appears in the custom modifier namespace.
func IsModifierName(name string) bool {
	code, ok := keyCodes[name]
	return ok && code.Category() == CategoryModifier
}

// Names returns all catalog names in discriminant order.  The returned slice
// must not be mutated.
func Names() []string {
	return sortedNames
}

// Count returns the number of keys in the catalog.
func Count() int {
	return len(keyNames)
}
