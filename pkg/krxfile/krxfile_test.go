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
	"errors"
	"math/rand"
	"testing"

	"github.com/ryosukemondo/keyrx/pkg/config"
	"github.com/ryosukemondo/keyrx/pkg/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleConfig builds a configuration exercising every mapping and
// condition variant.
func sampleConfig(t *testing.T) config.ConfigRoot {
	t.Helper()
	//
	simple, err := config.NewSimple(keys.KeyCapsLock, keys.KeyEscape)
	require.NoError(t, err)
	modifier, err := config.NewModifier(keys.KeyTab, 0x00)
	require.NoError(t, err)
	lock, err := config.NewLock(keys.KeyScrollLock, 0x10)
	require.NoError(t, err)
	tapHold, err := config.NewTapHold(keys.KeySpace, keys.KeySpace, 0x01, 200)
	require.NoError(t, err)
	modified, err := config.NewModifiedOutput(keys.KeyH, keys.KeyLeft, true, false, true, false)
	require.NoError(t, err)
	//
	condAll, err := config.NewAllActive([]config.ConditionItem{
		{Kind: config.CondModifierActive, ID: 0x00},
		{Kind: config.CondLockActive, ID: 0x10},
	})
	require.NoError(t, err)
	//
	inner, err := config.NewSimple(keys.KeyJ, keys.KeyDown)
	require.NoError(t, err)
	conditional, err := config.NewConditional(condAll, []config.KeyMapping{inner})
	require.NoError(t, err)
	//
	condNot, err := config.NewNotActive([]config.ConditionItem{
		{Kind: config.CondModifierActive, ID: 0x02},
	})
	require.NoError(t, err)
	//
	inner2, err := config.NewSimple(keys.KeyK, keys.KeyUp)
	require.NoError(t, err)
	negated, err := config.NewConditional(condNot, []config.KeyMapping{inner2})
	require.NoError(t, err)
	//
	return config.ConfigRoot{
		Version: config.SchemaVersion,
		Devices: []config.DeviceConfig{
			{
				Pattern:  "*",
				Mappings: []config.KeyMapping{simple, modifier, lock, tapHold, modified, conditional, negated},
			},
			{
				Pattern:  "USB\\VID_04D9*",
				Mappings: []config.KeyMapping{mustSimple(t, keys.KeyA, keys.KeyB)},
			},
		},
		Metadata: config.Metadata{
			CompiledAt:      1700000000,
			CompilerVersion: "1.0.0",
			SourceHash:      sha256.Sum256([]byte("source")),
		},
	}
}

func mustSimple(t *testing.T, from keys.KeyCode, to keys.KeyCode) config.KeyMapping {
	t.Helper()
	//
	m, err := config.NewSimple(from, to)
	require.NoError(t, err)
	//
	return m
}

func TestEncodeDeterministic(t *testing.T) {
	root := sampleConfig(t)
	//
	first, err := Encode(root)
	require.NoError(t, err)
	second, err := Encode(root)
	require.NoError(t, err)
	//
	assert.Equal(t, first, second)
}

func TestHeaderLayout(t *testing.T) {
	data, err := Encode(sampleConfig(t))
	require.NoError(t, err)
	//
	assert.Equal(t, []byte{'K', 'R', 'X', '\n'}, data[0:4])
	assert.Equal(t, FormatVersion, binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint64(len(data)-HeaderSize), binary.LittleEndian.Uint64(data[0x28:0x30]))
	// Header hash equals the recomputed payload hash.
	hash := PayloadHash(data[HeaderSize:])
	assert.Equal(t, hash[:], data[0x08:0x28])
}

func TestRoundTrip(t *testing.T) {
	root := sampleConfig(t)
	//
	data, err := Encode(root)
	require.NoError(t, err)
	//
	archive, err := Decode(data)
	require.NoError(t, err)
	//
	assert.Equal(t, root, archive.ToConfig())
}

func TestArchiveAccessors(t *testing.T) {
	root := sampleConfig(t)
	//
	data, err := Encode(root)
	require.NoError(t, err)
	archive, err := Decode(data)
	require.NoError(t, err)
	//
	assert.Equal(t, config.SchemaVersion, archive.Version())
	assert.Equal(t, root.Metadata, archive.Metadata())
	require.Equal(t, 2, archive.NumDevices())
	//
	device := archive.Device(0)
	assert.Equal(t, "*", device.Pattern())
	require.Equal(t, 7, device.NumMappings())
	//
	assert.Equal(t, config.KindSimple, device.Mapping(0).Kind())
	assert.Equal(t, keys.KeyCapsLock, device.Mapping(0).From())
	assert.Equal(t, keys.KeyEscape, device.Mapping(0).To())
	//
	tapHold := device.Mapping(3)
	assert.Equal(t, config.KindTapHold, tapHold.Kind())
	assert.Equal(t, keys.KeySpace, tapHold.Tap())
	assert.Equal(t, uint8(0x01), tapHold.ModifierID())
	assert.Equal(t, uint16(200), tapHold.ThresholdMs())
	//
	modified := device.Mapping(4)
	assert.True(t, modified.Shift())
	assert.True(t, modified.Alt())
	assert.False(t, modified.Ctrl())
	//
	conditional := device.Mapping(5)
	assert.Equal(t, config.KindConditional, conditional.Kind())
	assert.Equal(t, config.CondAllActive, conditional.Condition().Kind)
	//
	children := conditional.Children()
	require.Len(t, children, 1)
	assert.Equal(t, keys.KeyJ, children[0].From())
}

// The hash covers the configuration, not the compilation timestamp.
func TestHashExcludesCompiledAt(t *testing.T) {
	root := sampleConfig(t)
	//
	first, err := Encode(root)
	require.NoError(t, err)
	//
	root.Metadata.CompiledAt = 1800000000
	second, err := Encode(root)
	require.NoError(t, err)
	// The bytes differ (the timestamp is stored)...
	assert.NotEqual(t, first, second)
	// ...but the content hashes agree.
	assert.Equal(t, first[0x08:0x28], second[0x08:0x28])
	// And both decode with their stored timestamps intact.
	a1, err := Decode(first)
	require.NoError(t, err)
	a2, err := Decode(second)
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), a1.Metadata().CompiledAt)
	assert.Equal(t, uint64(1800000000), a2.Metadata().CompiledAt)
}

func decodeCode(t *testing.T, data []byte) string {
	t.Helper()
	//
	_, err := Decode(data)
	require.Error(t, err)
	//
	var kerr *Error
	require.True(t, errors.As(err, &kerr))
	//
	return kerr.Code
}

func TestDecodeInvalidMagic(t *testing.T) {
	data, err := Encode(sampleConfig(t))
	require.NoError(t, err)
	//
	data[0] = 'Z'
	assert.Equal(t, CodeInvalidMagic, decodeCode(t, data))
	//
	assert.Equal(t, CodeInvalidMagic, decodeCode(t, []byte{}))
	assert.Equal(t, CodeInvalidMagic, decodeCode(t, []byte{'K', 'R'}))
}

func TestDecodeVersionMismatch(t *testing.T) {
	data, err := Encode(sampleConfig(t))
	require.NoError(t, err)
	//
	binary.LittleEndian.PutUint32(data[4:], FormatVersion+1)
	assert.Equal(t, CodeVersionMismatch, decodeCode(t, data))
}

func TestDecodeTruncated(t *testing.T) {
	data, err := Encode(sampleConfig(t))
	require.NoError(t, err)
	//
	assert.Equal(t, CodeTruncated, decodeCode(t, data[:len(data)-1]))
	assert.Equal(t, CodeTruncated, decodeCode(t, data[:HeaderSize-1]))
	assert.Equal(t, CodeTruncated, decodeCode(t, append(data, 0)))
}

func TestDecodeIntegrityFailure(t *testing.T) {
	data, err := Encode(sampleConfig(t))
	require.NoError(t, err)
	// Flip one payload byte without updating the hash.
	data[len(data)-1] ^= 0xFF
	assert.Equal(t, CodeIntegrity, decodeCode(t, data))
}

func TestDecodePayloadTooLarge(t *testing.T) {
	data, err := Encode(sampleConfig(t))
	require.NoError(t, err)
	//
	binary.LittleEndian.PutUint64(data[0x28:], MaxPayloadSize+1)
	assert.Equal(t, CodePayloadTooLarge, decodeCode(t, data))
}

// rehash fixes up the header after payload surgery, so the structural
// validator (not the integrity check) sees the damage.
func rehash(data []byte) []byte {
	binary.LittleEndian.PutUint64(data[0x28:], uint64(len(data)-HeaderSize))
	hash := PayloadHash(data[HeaderSize:])
	copy(data[0x08:], hash[:])
	//
	return data
}

func TestDecodeMalformedTag(t *testing.T) {
	data, err := Encode(sampleConfig(t))
	require.NoError(t, err)
	// First mapping record of device "*" sits after version(6) + stamp(8) +
	// verstring(2+5) + hash(32) + devcount(4) + pattern(2+1) + count(4).
	offset := HeaderSize + 6 + 8 + 7 + 32 + 4 + 3 + 4
	data[offset] = 0xEE
	//
	assert.Equal(t, CodeMalformed, decodeCode(t, rehash(data)))
}

func TestDecodeTrailingBytes(t *testing.T) {
	data, err := Encode(sampleConfig(t))
	require.NoError(t, err)
	//
	data = append(data, 0x00)
	assert.Equal(t, CodeMalformed, decodeCode(t, rehash(data)))
}

func TestDecodeUnknownKeyDiscriminant(t *testing.T) {
	root := config.ConfigRoot{
		Version: config.SchemaVersion,
		Devices: []config.DeviceConfig{{
			Pattern:  "*",
			Mappings: []config.KeyMapping{mustSimple(t, keys.KeyA, keys.KeyB)},
		}},
	}
	//
	data, err := Encode(root)
	require.NoError(t, err)
	// Overwrite the "from" discriminant of the first mapping with a value
	// outside the catalog.
	offset := HeaderSize + 6 + 8 + 2 + 32 + 4 + 3 + 4 + 1
	binary.LittleEndian.PutUint16(data[offset:], 0xFFFF)
	//
	assert.Equal(t, CodeMalformed, decodeCode(t, rehash(data)))
}

// The decoder must never panic, whatever bytes it is fed.
func TestDecodeAdversarialInputs(t *testing.T) {
	data, err := Encode(sampleConfig(t))
	require.NoError(t, err)
	// Every truncation of a valid file.
	for i := 0; i < len(data); i++ {
		_, err := Decode(data[:i])
		assert.Error(t, err)
	}
	// Deterministic pseudo-random corruption.
	rng := rand.New(rand.NewSource(42))
	//
	for trial := 0; trial < 2000; trial++ {
		corrupt := append([]byte{}, data...)
		//
		for flips := 0; flips < 1+rng.Intn(8); flips++ {
			corrupt[rng.Intn(len(corrupt))] ^= byte(1 + rng.Intn(255))
		}
		// Either decodes cleanly or fails with a structured error.
		if _, err := Decode(corrupt); err != nil {
			var kerr *Error
			assert.True(t, errors.As(err, &kerr))
		}
	}
	// Random garbage of assorted sizes.
	for trial := 0; trial < 500; trial++ {
		garbage := make([]byte, rng.Intn(512))
		rng.Read(garbage)
		//
		_, _ = Decode(garbage)
	}
}

func TestEncoderRejectsOversizedPayload(t *testing.T) {
	root := config.ConfigRoot{
		Version: config.SchemaVersion,
		Devices: []config.DeviceConfig{{
			Pattern:  "*",
			Mappings: []config.KeyMapping{mustSimple(t, keys.KeyA, keys.KeyB)},
		}},
	}
	// A compiler version string cannot exceed the u16 length prefix.
	root.Metadata.CompilerVersion = string(make([]byte, 70000))
	//
	_, err := Encode(root)
	require.Error(t, err)
	//
	var kerr *Error
	require.True(t, errors.As(err, &kerr))
	assert.Equal(t, CodeEncoder, kerr.Code)
}
