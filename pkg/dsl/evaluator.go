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

// Package dsl hosts the configuration scripting language.  User scripts run
// under an embedded ECMAScript engine whose visible vocabulary is restricted
// to a closed set of primitives (device, map, tap_hold, when, when_not and
// the with_* modifier constructors); each primitive validates its arguments
// and mutates a single configuration builder.  Nondeterministic host
// facilities are removed before user code runs.
package dsl

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/dop251/goja"
	"github.com/ryosukemondo/keyrx/pkg/config"
	"github.com/ryosukemondo/keyrx/pkg/importer"
	"github.com/ryosukemondo/keyrx/pkg/keys"
	"github.com/ryosukemondo/keyrx/pkg/prefix"
	"github.com/ryosukemondo/keyrx/pkg/util/source"
)

// MaxOperations bounds the number of primitive invocations in a single
// evaluation.
const MaxOperations = 10000

// MaxCallDepth bounds closure/call recursion inside the engine.
const MaxCallDepth = 100

// Timeout bounds the wall-clock time of a single evaluation.
const Timeout = 10 * time.Second

// DefaultTapHoldThreshold is used when tap_hold is called without an
// explicit threshold argument.
const DefaultTapHoldThreshold uint16 = 200

// Stable error codes emitted by the evaluator (in addition to those from the
// prefix package).
const (
	CodeStructural         = "structural_error"
	CodeResourceExhausted  = "resource_exhausted"
	CodeScriptError        = "script_error"
	CodeSyntaxError        = "syntax_error"
	CodeDuplicateMapping   = "duplicate_mapping"
	CodeInvalidArgument    = "invalid_argument"
	CodeInvalidThreshold   = "invalid_threshold"
	CodeEmptyConfiguration = "empty_configuration"
)

// programName is the engine-visible filename of the flattened source; engine
// positions against it translate through the importer's line map.
const programName = "<config>"

// sentinel values passed through the engine interrupt mechanism.
type interruptKind uint8

const (
	interruptFatal interruptKind = iota
	interruptTimeout
	interruptOperations
)

// positionRE extracts "<config>:line:column" occurrences from engine error
// strings (exception stacks and syntax errors).
var positionRE = regexp.MustCompile(regexp.QuoteMeta(programName) + `:(\d+):(\d+)`)

// lineColRE is the fallback form "Line N:M" used by engine parser errors.
var lineColRE = regexp.MustCompile(`Line (\d+):(\d+)`)

// lockdown removes the engine's nondeterministic globals before user code
// runs.  The DSL has no legitimate use for wall-clock time or randomness.
const lockdown = `
Date = undefined;
Math.random = undefined;
`

// modifiedKey is the value returned by the with_* constructors and consumed
// by map(from, key).
type modifiedKey struct {
	key   keys.KeyCode
	shift bool
	ctrl  bool
	alt   bool
	win   bool
}

// Evaluate runs the flattened source under the hosted engine and produces
// the compiled configuration.  On failure it returns the ordered list of
// diagnostics collected during the run; the configuration is only valid when
// the diagnostic list is empty.
func Evaluate(flat *importer.Flattened, compiledAt uint64, compilerVersion string) (config.ConfigRoot, []*source.Diagnostic) {
	e := &evaluator{
		vm:      goja.New(),
		builder: config.NewBuilder(),
		flat:    flat,
	}
	//
	e.vm.SetMaxCallStackSize(MaxCallDepth)
	e.register()
	//
	if err := e.run(); err != nil {
		e.record(err)
	}
	//
	if len(e.diags) > 0 {
		return config.ConfigRoot{}, e.diags
	}
	//
	meta := config.Metadata{
		CompiledAt:      compiledAt,
		CompilerVersion: compilerVersion,
		SourceHash:      flat.SourceHash(),
	}
	//
	root, err := e.builder.Finish(meta)
	if err != nil {
		var empty *config.EmptyError
		//
		if errors.As(err, &empty) {
			e.record(source.Errorf(CodeEmptyConfiguration, "%s", err.Error()))
		} else {
			e.record(source.Errorf(CodeStructural, "%s", err.Error()))
		}
		//
		return config.ConfigRoot{}, e.diags
	}
	//
	return root, nil
}

type evaluator struct {
	vm      *goja.Runtime
	builder *config.Builder
	flat    *importer.Flattened
	// Accumulated diagnostics, in encounter order.
	diags []*source.Diagnostic
	// Fatal diagnostic which triggered an interrupt, if any.
	fatal *source.Diagnostic
	// Number of primitive invocations so far.
	ops int
}

// run compiles and executes the program with the lockdown prelude and the
// wall-clock watchdog in place.
func (e *evaluator) run() *source.Diagnostic {
	if _, err := e.vm.RunString(lockdown); err != nil {
		return source.Errorf(CodeScriptError, "engine lockdown failed: %v", err)
	}
	//
	program, err := goja.Compile(programName, e.flat.Text, true)
	if err != nil {
		return e.syntaxDiag(err)
	}
	//
	watchdog := time.AfterFunc(Timeout, func() {
		e.vm.Interrupt(interruptTimeout)
	})
	defer watchdog.Stop()
	//
	_, err = e.vm.RunProgram(program)
	//
	return e.runtimeDiag(err)
}

// runtimeDiag translates an engine execution error into a diagnostic, or nil
// when execution succeeded.
func (e *evaluator) runtimeDiag(err error) *source.Diagnostic {
	if err == nil {
		return nil
	}
	//
	switch err := err.(type) {
	case *goja.InterruptedError:
		switch err.Value() {
		case interruptTimeout:
			return source.Errorf(CodeResourceExhausted,
				"evaluation exceeded the %s time limit", Timeout)
		case interruptOperations:
			return source.Errorf(CodeResourceExhausted,
				"evaluation exceeded the limit of %d operations", MaxOperations)
		default:
			// A fatal diagnostic was already recorded before interrupting.
			if e.fatal != nil {
				return nil
			}
			//
			return source.Errorf(CodeScriptError, "evaluation interrupted")
		}
	case *goja.StackOverflowError:
		return source.Errorf(CodeResourceExhausted,
			"evaluation exceeded the recursion depth limit of %d", MaxCallDepth)
	case *goja.Exception:
		diag := source.Errorf(CodeScriptError, "%s", firstLine(err.Error()))
		//
		return e.locate(diag, err.String())
	default:
		return source.Errorf(CodeScriptError, "%v", err)
	}
}

// syntaxDiag translates an engine compile error into a diagnostic.
func (e *evaluator) syntaxDiag(err error) *source.Diagnostic {
	diag := source.Errorf(CodeSyntaxError, "%s", firstLine(err.Error()))
	//
	return e.locate(diag, err.Error())
}

// locate attaches the first engine-reported source position found in text,
// translated through the import line map.
func (e *evaluator) locate(diag *source.Diagnostic, text string) *source.Diagnostic {
	var line, column int
	//
	if m := positionRE.FindStringSubmatch(text); m != nil {
		line, _ = strconv.Atoi(m[1])
		column, _ = strconv.Atoi(m[2])
	} else if m := lineColRE.FindStringSubmatch(text); m != nil {
		line, _ = strconv.Atoi(m[1])
		column, _ = strconv.Atoi(m[2])
	} else {
		return diag
	}
	//
	origin := e.flat.Origin(line)
	diag = diag.At(origin.File, origin.Line, column)
	diag.Chain = e.flat.Chain(origin.File)
	//
	return diag
}

// callsite determines the source position of the innermost script frame,
// translated to the originating file.
func (e *evaluator) callsite() (string, int, int, []string) {
	frames := e.vm.CaptureCallStack(16, nil)
	//
	for _, frame := range frames {
		pos := frame.Position()
		//
		if frame.SrcName() == programName && pos.Line > 0 {
			origin := e.flat.Origin(pos.Line)
			//
			return origin.File, origin.Line, pos.Column, e.flat.Chain(origin.File)
		}
	}
	//
	return "", 0, 0, nil
}

// report records a recoverable diagnostic at the current call site and lets
// evaluation continue, so a single run can surface multiple problems.
func (e *evaluator) report(diag *source.Diagnostic) {
	file, line, column, chain := e.callsite()
	//
	if file != "" {
		diag = diag.At(file, line, column)
		diag.Chain = chain
	}
	//
	e.record(diag)
}

// abort records a fatal diagnostic and interrupts the engine.
func (e *evaluator) abort(diag *source.Diagnostic) {
	file, line, column, chain := e.callsite()
	//
	if file != "" {
		diag = diag.At(file, line, column)
		diag.Chain = chain
	}
	//
	e.fatal = diag
	e.record(diag)
	e.vm.Interrupt(interruptFatal)
}

func (e *evaluator) record(diag *source.Diagnostic) {
	e.diags = append(e.diags, diag)
}

// charge accounts one primitive invocation against the operation budget and
// reports whether evaluation may continue.  The diagnostic itself is
// produced when the interrupt surfaces from the engine.
func (e *evaluator) charge() bool {
	e.ops++
	//
	if e.ops > MaxOperations {
		e.vm.Interrupt(interruptOperations)
		return false
	}
	//
	return true
}

// register installs the closed primitive vocabulary into the engine.
func (e *evaluator) register() {
	must := func(name string, fn func(goja.FunctionCall) goja.Value) {
		if err := e.vm.Set(name, fn); err != nil {
			panic(fmt.Sprintf("registering %s: %v", name, err))
		}
	}
	//
	must("device", e.primDevice)
	must("map", e.primMap)
	must("tap_hold", e.primTapHold)
	must("when", e.primWhen(false))
	must("when_not", e.primWhen(true))
	must("with_shift", e.primWith(func(k *modifiedKey) { k.shift = true }))
	must("with_ctrl", e.primWith(func(k *modifiedKey) { k.ctrl = true }))
	must("with_alt", e.primWith(func(k *modifiedKey) { k.alt = true }))
	must("with_win", e.primWith(func(k *modifiedKey) { k.win = true }))
	must("with_mods", e.primWithMods)
}

// stringArg extracts a required string argument, reporting a recoverable
// diagnostic when it has the wrong type.
func (e *evaluator) stringArg(call goja.FunctionCall, index int, name string) (string, bool) {
	value, ok := call.Argument(index).Export().(string)
	if !ok {
		e.report(source.Errorf(CodeInvalidArgument,
			"argument %q must be a string", name))
		//
		return "", false
	}
	//
	return value, true
}

// closureArg extracts a required closure argument; a missing closure is a
// structural error since the surrounding scope cannot be balanced.
func (e *evaluator) closureArg(call goja.FunctionCall, index int, name string) (goja.Callable, bool) {
	fn, ok := goja.AssertFunction(call.Argument(index))
	if !ok {
		e.abort(source.Errorf(CodeStructural,
			"argument %q must be a closure", name))
		//
		return nil, false
	}
	//
	return fn, true
}

// primDevice implements device(pattern, body).
func (e *evaluator) primDevice(call goja.FunctionCall) goja.Value {
	if !e.charge() {
		return goja.Undefined()
	}
	//
	pattern, ok := e.stringArg(call, 0, "pattern")
	if !ok {
		return goja.Undefined()
	}
	//
	body, ok := e.closureArg(call, 1, "body")
	if !ok {
		return goja.Undefined()
	}
	//
	if err := e.builder.BeginDevice(pattern); err != nil {
		e.abort(source.Errorf(CodeStructural, "%s", err.Error()))
		return goja.Undefined()
	}
	//
	if _, err := body(goja.Undefined()); err != nil {
		e.propagate(err)
		return goja.Undefined()
	}
	//
	if err := e.builder.EndDevice(); err != nil {
		e.abort(source.Errorf(CodeStructural, "%s", err.Error()))
	}
	//
	return goja.Undefined()
}

// primMap implements both map(from, to) forms.
func (e *evaluator) primMap(call goja.FunctionCall) goja.Value {
	if !e.charge() {
		return goja.Undefined()
	}
	//
	from, ok := e.stringArg(call, 0, "from")
	if !ok {
		return goja.Undefined()
	}
	//
	fromKey, diag := prefix.ParseKey(from)
	if diag != nil {
		e.report(diag)
		return goja.Undefined()
	}
	// The target is either a ModifiedKey produced by with_*, or a token in
	// any of the three namespaces.
	if mk, ok := call.Argument(1).Export().(*modifiedKey); ok {
		mapping, err := config.NewModifiedOutput(fromKey, mk.key, mk.shift, mk.ctrl, mk.alt, mk.win)
		if err != nil {
			e.report(source.Errorf(CodeInvalidArgument, "%s", err.Error()))
			return goja.Undefined()
		}
		//
		e.append(mapping)
		//
		return goja.Undefined()
	}
	//
	to, ok := e.stringArg(call, 1, "to")
	if !ok {
		return goja.Undefined()
	}
	//
	token, diag := prefix.Parse(to)
	if diag != nil {
		e.report(diag)
		return goja.Undefined()
	}
	//
	var (
		mapping config.KeyMapping
		err     error
	)
	//
	switch token.Kind {
	case prefix.KindKey:
		mapping, err = config.NewSimple(fromKey, token.Key)
	case prefix.KindModifier:
		mapping, err = config.NewModifier(fromKey, token.ID)
	case prefix.KindLock:
		mapping, err = config.NewLock(fromKey, token.ID)
	}
	//
	if err != nil {
		e.report(source.Errorf(CodeInvalidArgument, "%s", err.Error()))
		return goja.Undefined()
	}
	//
	e.append(mapping)
	//
	return goja.Undefined()
}

// primTapHold implements tap_hold(from, tap, hold [, threshold_ms]).
func (e *evaluator) primTapHold(call goja.FunctionCall) goja.Value {
	if !e.charge() {
		return goja.Undefined()
	}
	//
	from, ok := e.stringArg(call, 0, "from")
	if !ok {
		return goja.Undefined()
	}
	//
	tap, ok := e.stringArg(call, 1, "tap")
	if !ok {
		return goja.Undefined()
	}
	//
	hold, ok := e.stringArg(call, 2, "hold")
	if !ok {
		return goja.Undefined()
	}
	//
	fromKey, diag := prefix.ParseKey(from)
	if diag != nil {
		e.report(diag)
		return goja.Undefined()
	}
	//
	tapKey, diag := prefix.ParseKey(tap)
	if diag != nil {
		e.report(diag)
		return goja.Undefined()
	}
	//
	holdID, diag := prefix.ParseModifier(hold)
	if diag != nil {
		e.report(diag)
		return goja.Undefined()
	}
	//
	threshold := DefaultTapHoldThreshold
	//
	if arg := call.Argument(3); !goja.IsUndefined(arg) {
		value := arg.ToInteger()
		//
		if value < 1 || value > 65535 {
			e.report(source.Errorf(CodeInvalidThreshold,
				"tap-hold threshold %d out of range [1, 65535]", value))
			//
			return goja.Undefined()
		}
		//
		threshold = uint16(value)
	}
	//
	mapping, err := config.NewTapHold(fromKey, tapKey, holdID, threshold)
	if err != nil {
		e.report(source.Errorf(CodeInvalidArgument, "%s", err.Error()))
		return goja.Undefined()
	}
	//
	e.append(mapping)
	//
	return goja.Undefined()
}

// primWhen implements when(cond, body) and when_not(cond, body).
func (e *evaluator) primWhen(negated bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !e.charge() {
			return goja.Undefined()
		}
		//
		condition, ok := e.condition(call.Argument(0), negated)
		if !ok {
			return goja.Undefined()
		}
		//
		body, ok := e.closureArg(call, 1, "body")
		if !ok {
			return goja.Undefined()
		}
		//
		if err := e.builder.BeginCondition(condition); err != nil {
			e.abort(source.Errorf(CodeStructural, "%s", err.Error()))
			return goja.Undefined()
		}
		//
		if _, err := body(goja.Undefined()); err != nil {
			e.propagate(err)
			return goja.Undefined()
		}
		//
		if err := e.builder.EndCondition(); err != nil {
			e.abort(source.Errorf(CodeStructural, "%s", err.Error()))
		}
		//
		return goja.Undefined()
	}
}

// condition parses the first argument of when/when_not: a single MD_/LK_
// token or a non-empty array of them.
func (e *evaluator) condition(arg goja.Value, negated bool) (config.Condition, bool) {
	var items []config.ConditionItem
	//
	switch value := arg.Export().(type) {
	case string:
		item, diag := prefix.ParseConditionItem(value)
		if diag != nil {
			e.report(diag)
			return config.Condition{}, false
		}
		//
		items = []config.ConditionItem{item}
		// A single positive token keeps its scalar form.
		if !negated {
			cond := config.Condition{Kind: item.Kind, ID: item.ID}
			return cond, true
		}
	case []any:
		if len(value) == 0 {
			e.abort(source.Errorf(CodeStructural,
				"condition list cannot be empty"))
			//
			return config.Condition{}, false
		}
		//
		for _, element := range value {
			token, ok := element.(string)
			if !ok {
				e.report(source.Errorf(CodeInvalidArgument,
					"condition list elements must be strings"))
				//
				return config.Condition{}, false
			}
			//
			item, diag := prefix.ParseConditionItem(token)
			if diag != nil {
				e.report(diag)
				return config.Condition{}, false
			}
			//
			items = append(items, item)
		}
	default:
		e.report(source.Errorf(CodeInvalidArgument,
			"condition must be a token or an array of tokens"))
		//
		return config.Condition{}, false
	}
	//
	var (
		cond config.Condition
		err  error
	)
	//
	if negated {
		cond, err = config.NewNotActive(items)
	} else {
		cond, err = config.NewAllActive(items)
	}
	//
	if err != nil {
		e.abort(source.Errorf(CodeStructural, "%s", err.Error()))
		return config.Condition{}, false
	}
	//
	return cond, true
}

// primWith builds the single-flag with_* constructors.
func (e *evaluator) primWith(set func(*modifiedKey)) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !e.charge() {
			return goja.Undefined()
		}
		//
		mk, ok := e.modifiedKeyArg(call)
		if !ok {
			return goja.Undefined()
		}
		//
		set(mk)
		//
		return e.vm.ToValue(mk)
	}
}

// primWithMods implements with_mods(key, shift, ctrl, alt, win).
func (e *evaluator) primWithMods(call goja.FunctionCall) goja.Value {
	if !e.charge() {
		return goja.Undefined()
	}
	//
	mk, ok := e.modifiedKeyArg(call)
	if !ok {
		return goja.Undefined()
	}
	//
	mk.shift = call.Argument(1).ToBoolean()
	mk.ctrl = call.Argument(2).ToBoolean()
	mk.alt = call.Argument(3).ToBoolean()
	mk.win = call.Argument(4).ToBoolean()
	//
	return e.vm.ToValue(mk)
}

// modifiedKeyArg parses the key argument of a with_* constructor.  Chained
// constructors (with_shift(with_ctrl("VK_A"))) accumulate flags on the same
// value.
func (e *evaluator) modifiedKeyArg(call goja.FunctionCall) (*modifiedKey, bool) {
	if mk, ok := call.Argument(0).Export().(*modifiedKey); ok {
		return mk, true
	}
	//
	token, ok := e.stringArg(call, 0, "key")
	if !ok {
		return nil, false
	}
	//
	code, diag := prefix.ParseKey(token)
	if diag != nil {
		e.report(diag)
		return nil, false
	}
	//
	return &modifiedKey{key: code}, true
}

// append routes a finished mapping into the builder, classifying failures.
func (e *evaluator) append(mapping config.KeyMapping) {
	err := e.builder.Append(mapping)
	if err == nil {
		return
	}
	//
	var duplicate *config.DuplicateError
	//
	if errors.As(err, &duplicate) {
		e.report(source.Errorf(CodeDuplicateMapping, "%s", err.Error()))
		return
	}
	//
	e.abort(source.Errorf(CodeStructural, "%s", err.Error()))
}

// propagate handles an error returned by a nested closure call.  Interrupts
// raised by this evaluator carry an already-recorded diagnostic; genuine
// script exceptions become fatal script errors.
func (e *evaluator) propagate(err error) {
	switch err := err.(type) {
	case *goja.InterruptedError:
		// Already recorded; the outer RunProgram observes the interrupt.
	case *goja.StackOverflowError:
		if e.fatal == nil {
			diag := source.Errorf(CodeResourceExhausted,
				"evaluation exceeded the recursion depth limit of %d", MaxCallDepth)
			e.fatal = diag
			e.record(diag)
		}
		//
		e.vm.Interrupt(interruptFatal)
	case *goja.Exception:
		if e.fatal == nil {
			diag := e.locate(source.Errorf(CodeScriptError, "%s", firstLine(err.Error())), err.String())
			e.fatal = diag
			e.record(diag)
		}
		//
		e.vm.Interrupt(interruptFatal)
	default:
		if e.fatal == nil {
			diag := source.Errorf(CodeScriptError, "%v", err)
			e.fatal = diag
			e.record(diag)
		}
		//
		e.vm.Interrupt(interruptFatal)
	}
}

// firstLine trims an error string to its first line, dropping engine stack
// traces from the message proper.
func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	//
	return s
}
