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
	"bytes"
	"encoding/binary"

	"github.com/ryosukemondo/keyrx/pkg/config"
	"github.com/ryosukemondo/keyrx/pkg/keys"
)

// Decode verifies a .krx byte slice and returns a read-only archived view
// borrowing the input buffer.  Verification covers the magic bytes, format
// version, declared length, content hash, and a full structural validation
// of the payload; no method of the returned Archive can fail or read out of
// bounds afterwards.  The caller must not mutate data whilst the view is in
// use.
func Decode(data []byte) (*Archive, error) {
	if len(data) < 4 || !bytes.Equal(data[0:4], Magic[:]) {
		return nil, errorf(CodeInvalidMagic, "not a .krx file")
	}
	//
	if len(data) < HeaderSize {
		return nil, errorf(CodeTruncated, "file of %d bytes is shorter than the %d byte header", len(data), HeaderSize)
	}
	//
	version := binary.LittleEndian.Uint32(data[0x04:])
	if version != FormatVersion {
		return nil, errorf(CodeVersionMismatch, "format version %d, expected %d", version, FormatVersion)
	}
	//
	declared := binary.LittleEndian.Uint64(data[0x28:])
	if declared > MaxPayloadSize {
		return nil, errorf(CodePayloadTooLarge,
			"declared payload of %d bytes exceeds the %d byte limit", declared, MaxPayloadSize)
	}
	//
	if uint64(len(data)-HeaderSize) != declared {
		return nil, errorf(CodeTruncated,
			"declared payload of %d bytes, found %d", declared, len(data)-HeaderSize)
	}
	//
	payload := data[HeaderSize:]
	//
	hash := PayloadHash(payload)
	if !bytes.Equal(hash[:], data[0x08:0x28]) {
		return nil, errorf(CodeIntegrity, "payload hash does not match header")
	}
	//
	archive := &Archive{data: data, payload: payload}
	//
	if err := archive.index(); err != nil {
		return nil, err
	}
	//
	return archive, nil
}

// Archive is a verified, zero-copy view over a .krx byte buffer.  Its
// lifetime is bound to the buffer passed to Decode.
type Archive struct {
	data    []byte
	payload []byte
	// Compiler version string bounds within payload.
	verStart, verEnd int
	// Offset of the source hash.
	hashOff int
	// Offset of each device record.
	devices []archivedDevice
}

type archivedDevice struct {
	patternStart int
	patternEnd   int
	// Offset of each mapping record within the payload.
	mappings []int
}

// ContentHash returns the header's payload hash.
func (p *Archive) ContentHash() [32]byte {
	var hash [32]byte
	copy(hash[:], p.data[0x08:0x28])
	//
	return hash
}

// PayloadLen returns the payload size in bytes.
func (p *Archive) PayloadLen() int {
	return len(p.payload)
}

// Version returns the archived schema version.
func (p *Archive) Version() config.Version {
	return config.Version{
		Major: binary.LittleEndian.Uint16(p.payload[0:]),
		Minor: binary.LittleEndian.Uint16(p.payload[2:]),
		Patch: binary.LittleEndian.Uint16(p.payload[4:]),
	}
}

// Metadata returns the archived compilation metadata.
func (p *Archive) Metadata() config.Metadata {
	var meta config.Metadata
	//
	meta.CompiledAt = binary.LittleEndian.Uint64(p.payload[compiledAtOffset:])
	meta.CompilerVersion = string(p.payload[p.verStart:p.verEnd])
	copy(meta.SourceHash[:], p.payload[p.hashOff:p.hashOff+32])
	//
	return meta
}

// NumDevices returns the number of device records.
func (p *Archive) NumDevices() int {
	return len(p.devices)
}

// Device returns a view of the ith device record.
func (p *Archive) Device(i int) DeviceView {
	return DeviceView{p, &p.devices[i]}
}

// DeviceView is a zero-copy view of one archived device record.
type DeviceView struct {
	archive *Archive
	device  *archivedDevice
}

// Pattern returns the device's match pattern.
func (p DeviceView) Pattern() string {
	return string(p.archive.payload[p.device.patternStart:p.device.patternEnd])
}

// NumMappings returns the number of mappings scoped to this device.
func (p DeviceView) NumMappings() int {
	return len(p.device.mappings)
}

// Mapping returns a view of the jth mapping of this device.
func (p DeviceView) Mapping(j int) MappingView {
	return MappingView{p.archive, p.device.mappings[j]}
}

// MappingView is a zero-copy view of one archived mapping record.  Accessor
// results are only meaningful for the variant reported by Kind, mirroring
// the tagged-union layout.
type MappingView struct {
	archive *Archive
	offset  int
}

func (p MappingView) u8(off int) uint8 {
	return p.archive.payload[p.offset+off]
}

func (p MappingView) u16(off int) uint16 {
	return binary.LittleEndian.Uint16(p.archive.payload[p.offset+off:])
}

// Kind returns the mapping variant.
func (p MappingView) Kind() config.MappingKind {
	return config.MappingKind(p.u8(0))
}

// From returns the physical source key.
func (p MappingView) From() keys.KeyCode {
	return keys.KeyCode(p.u16(1))
}

// To returns the output key of a Simple or ModifiedOutput mapping.
func (p MappingView) To() keys.KeyCode {
	return keys.KeyCode(p.u16(3))
}

// ModifierID returns the custom modifier of a Modifier mapping, or the hold
// modifier of a TapHold mapping.
func (p MappingView) ModifierID() uint8 {
	if p.Kind() == config.KindTapHold {
		return p.u8(5)
	}
	//
	return p.u8(3)
}

// LockID returns the custom lock of a Lock mapping.
func (p MappingView) LockID() uint8 {
	return p.u8(3)
}

// Tap returns the tap key of a TapHold mapping.
func (p MappingView) Tap() keys.KeyCode {
	return keys.KeyCode(p.u16(3))
}

// ThresholdMs returns the hold threshold of a TapHold mapping.
func (p MappingView) ThresholdMs() uint16 {
	return p.u16(6)
}

// Shift reports the shift flag of a ModifiedOutput mapping.
func (p MappingView) Shift() bool { return p.u8(5)&flagShift != 0 }

// Ctrl reports the ctrl flag of a ModifiedOutput mapping.
func (p MappingView) Ctrl() bool { return p.u8(5)&flagCtrl != 0 }

// Alt reports the alt flag of a ModifiedOutput mapping.
func (p MappingView) Alt() bool { return p.u8(5)&flagAlt != 0 }

// Win reports the win flag of a ModifiedOutput mapping.
func (p MappingView) Win() bool { return p.u8(5)&flagWin != 0 }

// Condition decodes the condition of a Conditional mapping.
func (p MappingView) Condition() config.Condition {
	r := reader{p.archive.payload, p.offset + 1}
	//
	cond, _ := r.condition()
	//
	return cond
}

// Children returns views of the base mappings inside a Conditional mapping.
func (p MappingView) Children() []MappingView {
	r := reader{p.archive.payload, p.offset + 1}
	// Skip the condition.
	if _, err := r.condition(); err != nil {
		return nil
	}
	//
	count, _ := r.u32()
	views := make([]MappingView, 0, count)
	//
	for k := uint32(0); k < count; k++ {
		views = append(views, MappingView{p.archive, r.off})
		//
		if err := r.skipMapping(); err != nil {
			return nil
		}
	}
	//
	return views
}

// ToConfig materializes the archive into an owned ConfigRoot.  This is used
// by tooling (parse output, structural comparisons in tests); the runtime
// reads the view directly.
func (p *Archive) ToConfig() config.ConfigRoot {
	root := config.ConfigRoot{
		Version:  p.Version(),
		Metadata: p.Metadata(),
	}
	//
	for i := 0; i < p.NumDevices(); i++ {
		device := p.Device(i)
		//
		cfg := config.DeviceConfig{Pattern: device.Pattern()}
		for j := 0; j < device.NumMappings(); j++ {
			cfg.Mappings = append(cfg.Mappings, device.Mapping(j).toMapping())
		}
		//
		root.Devices = append(root.Devices, cfg)
	}
	//
	return root
}

func (p MappingView) toMapping() config.KeyMapping {
	m := config.KeyMapping{Kind: p.Kind()}
	//
	switch m.Kind {
	case config.KindSimple:
		m.From, m.To = p.From(), p.To()
	case config.KindModifier:
		m.From, m.ModifierID = p.From(), p.ModifierID()
	case config.KindLock:
		m.From, m.LockID = p.From(), p.LockID()
	case config.KindTapHold:
		m.From, m.Tap = p.From(), p.Tap()
		m.ModifierID, m.ThresholdMs = p.ModifierID(), p.ThresholdMs()
	case config.KindModifiedOutput:
		m.From, m.To = p.From(), p.To()
		m.Shift, m.Ctrl, m.Alt, m.Win = p.Shift(), p.Ctrl(), p.Alt(), p.Win()
	case config.KindConditional:
		m.Condition = p.Condition()
		//
		for _, child := range p.Children() {
			m.Mappings = append(m.Mappings, child.toMapping())
		}
	}
	//
	return m
}

// index walks the payload once, validating every record and recording the
// offsets which make the accessors above safe.
func (p *Archive) index() error {
	r := reader{p.payload, 0}
	// Schema version triple and timestamp.
	if err := r.need(6 + 8); err != nil {
		return err
	}
	//
	r.off = 6 + 8
	// Compiler version string.
	start, end, err := r.str()
	if err != nil {
		return err
	}
	//
	p.verStart, p.verEnd = start, end
	// Source hash.
	p.hashOff = r.off
	if err := r.need(32); err != nil {
		return err
	}
	//
	r.off += 32
	// Devices.
	deviceCount, err := r.u32()
	if err != nil {
		return err
	}
	//
	if deviceCount == 0 {
		return errorf(CodeMalformed, "archive contains no devices")
	}
	//
	for i := uint32(0); i < deviceCount; i++ {
		device := archivedDevice{}
		//
		device.patternStart, device.patternEnd, err = r.str()
		if err != nil {
			return err
		}
		//
		if device.patternStart == device.patternEnd {
			return errorf(CodeMalformed, "device %d has an empty pattern", i)
		}
		//
		mappingCount, err := r.u32()
		if err != nil {
			return err
		}
		//
		for j := uint32(0); j < mappingCount; j++ {
			device.mappings = append(device.mappings, r.off)
			//
			if err := r.validateMapping(true); err != nil {
				return err
			}
		}
		//
		p.devices = append(p.devices, device)
	}
	// Trailing bytes would silently change the hash without changing the
	// decoded structure; reject them.
	if r.off != len(p.payload) {
		return errorf(CodeMalformed, "%d trailing bytes after the archive", len(p.payload)-r.off)
	}
	//
	return nil
}

// reader is a bounds-checked cursor over the payload.
type reader struct {
	buf []byte
	off int
}

func (r *reader) need(n int) error {
	if r.off+n > len(r.buf) {
		return errorf(CodeMalformed, "record at offset %d overruns the payload", r.off)
	}
	//
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	//
	v := r.buf[r.off]
	r.off++
	//
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	//
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	//
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	//
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	//
	return v, nil
}

// str consumes a length-prefixed string, returning its byte bounds.
func (r *reader) str() (int, int, error) {
	length, err := r.u16()
	if err != nil {
		return 0, 0, err
	}
	//
	if err := r.need(int(length)); err != nil {
		return 0, 0, err
	}
	//
	start := r.off
	r.off += int(length)
	//
	return start, r.off, nil
}

func (r *reader) key(role string) (keys.KeyCode, error) {
	v, err := r.u16()
	if err != nil {
		return 0, err
	}
	//
	code := keys.KeyCode(v)
	if !code.Valid() {
		return 0, errorf(CodeMalformed, "%s key discriminant %d is not in the catalog", role, v)
	}
	//
	return code, nil
}

func (r *reader) customID(role string) (uint8, error) {
	v, err := r.u8()
	if err != nil {
		return 0, err
	}
	//
	if v > config.MaxCustomID {
		return 0, errorf(CodeMalformed, "%s id 0x%02X out of range", role, v)
	}
	//
	return v, nil
}

// validateMapping consumes and validates one mapping record.
func (r *reader) validateMapping(allowConditional bool) error {
	tag, err := r.u8()
	if err != nil {
		return err
	}
	//
	switch tag {
	case tagSimple:
		if _, err := r.key("from"); err != nil {
			return err
		}
		//
		_, err := r.key("to")
		//
		return err
	case tagModifier:
		if _, err := r.key("from"); err != nil {
			return err
		}
		//
		_, err := r.customID("modifier")
		//
		return err
	case tagLock:
		if _, err := r.key("from"); err != nil {
			return err
		}
		//
		_, err := r.customID("lock")
		//
		return err
	case tagTapHold:
		if _, err := r.key("from"); err != nil {
			return err
		}
		//
		if _, err := r.key("tap"); err != nil {
			return err
		}
		//
		if _, err := r.customID("hold modifier"); err != nil {
			return err
		}
		//
		threshold, err := r.u16()
		if err != nil {
			return err
		}
		//
		if threshold == 0 {
			return errorf(CodeMalformed, "tap-hold threshold is zero")
		}
		//
		return nil
	case tagModifiedOutput:
		if _, err := r.key("from"); err != nil {
			return err
		}
		//
		if _, err := r.key("to"); err != nil {
			return err
		}
		//
		flags, err := r.u8()
		if err != nil {
			return err
		}
		//
		if flags == 0 {
			return errorf(CodeMalformed, "modified output carries no flags")
		}
		//
		if flags&^(flagShift|flagCtrl|flagAlt|flagWin) != 0 {
			return errorf(CodeMalformed, "modified output has unknown flag bits 0x%02X", flags)
		}
		//
		return nil
	case tagConditional:
		if !allowConditional {
			return errorf(CodeMalformed, "conditional mapping nested inside a conditional")
		}
		//
		if _, err := r.condition(); err != nil {
			return err
		}
		//
		count, err := r.u32()
		if err != nil {
			return err
		}
		//
		if count == 0 {
			return errorf(CodeMalformed, "conditional group is empty")
		}
		//
		for k := uint32(0); k < count; k++ {
			if err := r.validateMapping(false); err != nil {
				return err
			}
		}
		//
		return nil
	default:
		return errorf(CodeMalformed, "unknown mapping tag %d at offset %d", tag, r.off-1)
	}
}

// condition consumes and validates one condition record.
func (r *reader) condition() (config.Condition, error) {
	tag, err := r.u8()
	if err != nil {
		return config.Condition{}, err
	}
	//
	switch tag {
	case tagCondModifier, tagCondLock:
		id, err := r.customID("condition")
		if err != nil {
			return config.Condition{}, err
		}
		//
		kind := config.CondModifierActive
		if tag == tagCondLock {
			kind = config.CondLockActive
		}
		//
		return config.Condition{Kind: kind, ID: id}, nil
	case tagCondAll, tagCondNot:
		count, err := r.u16()
		if err != nil {
			return config.Condition{}, err
		}
		//
		if count == 0 {
			return config.Condition{}, errorf(CodeMalformed, "compound condition is empty")
		}
		//
		kind := config.CondAllActive
		if tag == tagCondNot {
			kind = config.CondNotActive
		}
		//
		cond := config.Condition{Kind: kind}
		//
		for i := uint16(0); i < count; i++ {
			itemTag, err := r.u8()
			if err != nil {
				return config.Condition{}, err
			}
			//
			if itemTag != tagCondModifier && itemTag != tagCondLock {
				return config.Condition{}, errorf(CodeMalformed, "unknown condition item tag %d", itemTag)
			}
			//
			id, err := r.customID("condition item")
			if err != nil {
				return config.Condition{}, err
			}
			//
			itemKind := config.CondModifierActive
			if itemTag == tagCondLock {
				itemKind = config.CondLockActive
			}
			//
			cond.Items = append(cond.Items, config.ConditionItem{Kind: itemKind, ID: id})
		}
		//
		return cond, nil
	default:
		return config.Condition{}, errorf(CodeMalformed, "unknown condition tag %d", tag)
	}
}

// skipMapping consumes one mapping record by running the same validation
// again; only called on payloads which already passed index(), where it
// cannot fail.
func (r *reader) skipMapping() error {
	return r.validateMapping(false)
}
