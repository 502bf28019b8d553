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

// StructuralError reports an illegal use of the builder, such as opening a
// device scope inside another device, or emitting a mapping at the root
// scope.  Structural errors are fatal to a compilation.
type StructuralError struct {
	Msg string
}

// Error implements the error interface.
func (p *StructuralError) Error() string {
	return p.Msg
}

// DuplicateError reports a second mapping for the same physical key within
// one (device, condition) scope.  Last-wins semantics are deliberately not
// applied; users must resolve the conflict explicitly.
type DuplicateError struct {
	From keys.KeyCode
}

// Error implements the error interface.
func (p *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate mapping for key VK_%s in this scope", p.From)
}

// EmptyError reports a configuration which, after all imports resolved and
// every statement ran, contains no devices at all.
type EmptyError struct{}

// Error implements the error interface.
func (p *EmptyError) Error() string {
	return "configuration defines no devices"
}

// scope identifies a frame on the builder's scope stack.
type scope uint8

const (
	scopeRoot scope = iota
	scopeDevice
	scopeCondition
)

// Builder accumulates device scopes, conditional scopes and mappings in
// source order and finally produces an immutable ConfigRoot.  The DSL
// evaluator owns exactly one builder per compilation and threads it through
// every registered primitive.
type Builder struct {
	devices []DeviceConfig
	// Current scope stack; index 0 is always the root frame.
	stack []scope
	// Device currently being built (valid above root scope).
	device DeviceConfig
	// Condition and body of the conditional group currently being built.
	condition Condition
	body      []KeyMapping
	// Keys already mapped in the current device scope, outside conditions.
	deviceSeen map[keys.KeyCode]bool
	// Keys already mapped in the current conditional scope.
	conditionSeen map[keys.KeyCode]bool
}

// NewBuilder constructs an empty builder at root scope.
func NewBuilder() *Builder {
	return &Builder{stack: []scope{scopeRoot}}
}

func (p *Builder) top() scope {
	return p.stack[len(p.stack)-1]
}

// BeginDevice opens a device scope for the given pattern.  Only legal at
// root scope.
func (p *Builder) BeginDevice(pattern string) error {
	if p.top() != scopeRoot {
		return &StructuralError{"device(...) blocks cannot be nested"}
	}
	//
	if pattern == "" {
		return &StructuralError{"device pattern cannot be empty"}
	}
	//
	p.device = DeviceConfig{Pattern: pattern}
	p.deviceSeen = make(map[keys.KeyCode]bool)
	p.stack = append(p.stack, scopeDevice)
	//
	return nil
}

// EndDevice closes the current device scope, appending the accumulated
// device to the configuration.
func (p *Builder) EndDevice() error {
	if p.top() != scopeDevice {
		return &StructuralError{"no device scope to close"}
	}
	//
	p.devices = append(p.devices, p.device)
	p.device = DeviceConfig{}
	p.deviceSeen = nil
	p.stack = p.stack[:len(p.stack)-1]
	//
	return nil
}

// BeginCondition opens a conditional scope.  Only legal directly inside a
// device scope; conditional scopes do not nest.
func (p *Builder) BeginCondition(condition Condition) error {
	switch p.top() {
	case scopeDevice:
		// fine
	case scopeCondition:
		return &StructuralError{"when(...) blocks cannot be nested"}
	default:
		return &StructuralError{"when(...) is only legal inside a device(...) block"}
	}
	//
	p.condition = condition
	p.body = nil
	p.conditionSeen = make(map[keys.KeyCode]bool)
	p.stack = append(p.stack, scopeCondition)
	//
	return nil
}

// EndCondition closes the current conditional scope, wrapping its body into
// a single Conditional mapping on the enclosing device.
func (p *Builder) EndCondition() error {
	if p.top() != scopeCondition {
		return &StructuralError{"no conditional scope to close"}
	}
	//
	mapping, err := NewConditional(p.condition, p.body)
	if err != nil {
		return &StructuralError{err.Error()}
	}
	//
	p.device.Mappings = append(p.device.Mappings, mapping)
	p.condition = Condition{}
	p.body = nil
	p.conditionSeen = nil
	p.stack = p.stack[:len(p.stack)-1]
	//
	return nil
}

// Append adds a mapping to the innermost open scope.  Mappings are legal at
// device or condition scope; a Conditional mapping can only be appended via
// BeginCondition/EndCondition.
func (p *Builder) Append(mapping KeyMapping) error {
	switch p.top() {
	case scopeDevice:
		if mapping.Kind == KindConditional {
			return &StructuralError{"conditional groups must be built with when(...) blocks"}
		}
		//
		if p.deviceSeen[mapping.From] {
			return &DuplicateError{mapping.From}
		}
		//
		p.deviceSeen[mapping.From] = true
		p.device.Mappings = append(p.device.Mappings, mapping)
	case scopeCondition:
		if mapping.Kind == KindConditional {
			return &StructuralError{"when(...) blocks cannot be nested"}
		}
		//
		if p.conditionSeen[mapping.From] {
			return &DuplicateError{mapping.From}
		}
		//
		p.conditionSeen[mapping.From] = true
		p.body = append(p.body, mapping)
	default:
		return &StructuralError{"mappings are only legal inside a device(...) block"}
	}
	//
	return nil
}

// Depth returns the number of open scopes above root.
func (p *Builder) Depth() int {
	return len(p.stack) - 1
}

// Finish consumes the builder and produces the final ConfigRoot.  It fails
// with a StructuralError when a scope was left open, and with an EmptyError
// when no device was registered.
func (p *Builder) Finish(meta Metadata) (ConfigRoot, error) {
	if p.top() != scopeRoot {
		return ConfigRoot{}, &StructuralError{"unclosed scope at end of configuration"}
	}
	//
	if len(p.devices) == 0 {
		return ConfigRoot{}, &EmptyError{}
	}
	//
	root := ConfigRoot{
		Version:  SchemaVersion,
		Devices:  p.devices,
		Metadata: meta,
	}
	// Prevent accidental reuse.
	p.devices = nil
	//
	return root, nil
}
