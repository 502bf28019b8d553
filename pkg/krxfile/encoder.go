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
package krxfile

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/ryosukemondo/keyrx/pkg/config"
)

// Encode serializes a configuration into the complete .krx byte vector
// (header plus payload).  The encoding is a pure function of its input:
// equal configurations produce byte-identical output.
func Encode(root config.ConfigRoot) ([]byte, error) {
	e := &encoder{}
	//
	if err := e.payload(root); err != nil {
		return nil, err
	}
	//
	if len(e.buf) > MaxPayloadSize {
		return nil, errorf(CodePayloadTooLarge,
			"payload is %d bytes, exceeding the %d byte limit", len(e.buf), MaxPayloadSize)
	}
	// Hash the payload with the compiled_at bytes zeroed, so the hash
	// depends only on the configuration itself.
	hash := PayloadHash(e.buf)
	//
	out := make([]byte, HeaderSize, HeaderSize+len(e.buf))
	copy(out[0x00:], Magic[:])
	binary.LittleEndian.PutUint32(out[0x04:], FormatVersion)
	copy(out[0x08:], hash[:])
	binary.LittleEndian.PutUint64(out[0x28:], uint64(len(e.buf)))
	//
	return append(out, e.buf...), nil
}

// PayloadHash computes the content hash of an archived payload: the SHA-256
// of the payload bytes with the eight compiled_at bytes zeroed.
func PayloadHash(payload []byte) [32]byte {
	image := make([]byte, len(payload))
	copy(image, payload)
	//
	if len(image) >= compiledAtOffset+8 {
		for i := compiledAtOffset; i < compiledAtOffset+8; i++ {
			image[i] = 0
		}
	}
	//
	return sha256.Sum256(image)
}

type encoder struct {
	buf []byte
}

func (e *encoder) payload(root config.ConfigRoot) error {
	e.u16(root.Version.Major)
	e.u16(root.Version.Minor)
	e.u16(root.Version.Patch)
	e.u64(root.Metadata.CompiledAt)
	//
	if err := e.str(root.Metadata.CompilerVersion); err != nil {
		return err
	}
	//
	e.raw(root.Metadata.SourceHash[:])
	//
	if len(root.Devices) > math.MaxUint32 {
		return errorf(CodeEncoder, "too many devices (%d)", len(root.Devices))
	}
	//
	e.u32(uint32(len(root.Devices)))
	//
	for _, device := range root.Devices {
		if err := e.device(device); err != nil {
			return err
		}
	}
	//
	return nil
}

func (e *encoder) device(device config.DeviceConfig) error {
	if err := e.str(device.Pattern); err != nil {
		return err
	}
	//
	e.u32(uint32(len(device.Mappings)))
	//
	for _, mapping := range device.Mappings {
		if err := e.mapping(mapping, true); err != nil {
			return err
		}
	}
	//
	return nil
}

// mapping serializes one mapping; conditionals are only legal when
// allowConditional is set, capping nesting at exactly one level.
func (e *encoder) mapping(m config.KeyMapping, allowConditional bool) error {
	switch m.Kind {
	case config.KindSimple:
		e.u8(tagSimple)
		e.u16(uint16(m.From))
		e.u16(uint16(m.To))
	case config.KindModifier:
		e.u8(tagModifier)
		e.u16(uint16(m.From))
		e.u8(m.ModifierID)
	case config.KindLock:
		e.u8(tagLock)
		e.u16(uint16(m.From))
		e.u8(m.LockID)
	case config.KindTapHold:
		e.u8(tagTapHold)
		e.u16(uint16(m.From))
		e.u16(uint16(m.Tap))
		e.u8(m.ModifierID)
		e.u16(m.ThresholdMs)
	case config.KindModifiedOutput:
		e.u8(tagModifiedOutput)
		e.u16(uint16(m.From))
		e.u16(uint16(m.To))
		e.u8(outputFlags(m))
	case config.KindConditional:
		if !allowConditional {
			return errorf(CodeEncoder, "conditional mappings cannot nest")
		}
		//
		e.u8(tagConditional)
		//
		if err := e.condition(m.Condition); err != nil {
			return err
		}
		//
		if len(m.Mappings) == 0 {
			return errorf(CodeEncoder, "conditional group is empty")
		}
		//
		e.u32(uint32(len(m.Mappings)))
		//
		for _, child := range m.Mappings {
			if err := e.mapping(child, false); err != nil {
				return err
			}
		}
	default:
		return errorf(CodeEncoder, "mapping has unknown kind %d", m.Kind)
	}
	//
	return nil
}

func (e *encoder) condition(c config.Condition) error {
	switch c.Kind {
	case config.CondModifierActive:
		e.u8(tagCondModifier)
		e.u8(c.ID)
	case config.CondLockActive:
		e.u8(tagCondLock)
		e.u8(c.ID)
	case config.CondAllActive, config.CondNotActive:
		if c.Kind == config.CondAllActive {
			e.u8(tagCondAll)
		} else {
			e.u8(tagCondNot)
		}
		//
		if len(c.Items) == 0 {
			return errorf(CodeEncoder, "compound condition is empty")
		}
		//
		e.u16(uint16(len(c.Items)))
		//
		for _, item := range c.Items {
			switch item.Kind {
			case config.CondModifierActive:
				e.u8(tagCondModifier)
			case config.CondLockActive:
				e.u8(tagCondLock)
			default:
				return errorf(CodeEncoder, "condition item has unknown kind %d", item.Kind)
			}
			//
			e.u8(item.ID)
		}
	default:
		return errorf(CodeEncoder, "condition has unknown kind %d", c.Kind)
	}
	//
	return nil
}

func (e *encoder) u8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) raw(bytes []byte) {
	e.buf = append(e.buf, bytes...)
}

// str writes a length-prefixed UTF-8 string.
func (e *encoder) str(s string) error {
	if len(s) > math.MaxUint16 {
		return errorf(CodeEncoder, "string of %d bytes exceeds the length prefix", len(s))
	}
	//
	e.u16(uint16(len(s)))
	e.raw([]byte(s))
	//
	return nil
}

func outputFlags(m config.KeyMapping) uint8 {
	var flags uint8
	//
	if m.Shift {
		flags |= flagShift
	}
	//
	if m.Ctrl {
		flags |= flagCtrl
	}
	//
	if m.Alt {
		flags |= flagAlt
	}
	//
	if m.Win {
		flags |= flagWin
	}
	//
	return flags
}
