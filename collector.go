// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package analytics

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

const (
	idSuffix          = "Id"
	nameSuffix        = "Name"
	placeholderSuffix = "Placeholder"
	placeholderValue  = "0"
)

// Collector merges the request-scoped custom variables and the action
// arguments of a request into at most [MaxCustomVariables] slots.
//
// A Collector holds no state between calls and is safe for concurrent use.
type Collector struct {
	// IncludeActionArguments enables merging action arguments and the
	// placeholder entries inferred from them. When false, only request
	// properties are collected.
	IncludeActionArguments bool
}

// Collect returns the slot assignment for one request.
//
// Entries are built from requestProperties, then (when IncludeActionArguments
// is set) from actionArguments and from one "<X>NamePlaceholder" = "0" entry
// for every "<X>Id" argument that has no "<X>Name" request property. The
// combined list is stably sorted by name using byte order, numbered from 1
// and truncated to [MaxCustomVariables]. Duplicate names are kept.
//
// nil maps are treated as empty. Collect never fails.
func (col Collector) Collect(requestProperties map[string]string, actionArguments map[string]any) []Variable {
	vars, _ := col.collect(requestProperties, actionArguments)

	return vars
}

// Populate runs [Collector.Collect] and writes the result to sink. The sink is
// cleared first so that nothing from an earlier request survives.
func (col Collector) Populate(sink Sink, requestProperties map[string]string, actionArguments map[string]any) []Variable {
	vars, _ := col.populate(sink, requestProperties, actionArguments)

	return vars
}

func (col Collector) populate(sink Sink, requestProperties map[string]string, actionArguments map[string]any) ([]Variable, int) {
	vars, dropped := col.collect(requestProperties, actionArguments)

	sink.ClearCustomVariables()
	for _, v := range vars {
		sink.SetCustomVariable(v.Position, v.Name, v.Value)
	}

	return vars, dropped
}

// collect returns the retained slots and the number of entries dropped by
// truncation.
func (col Collector) collect(requestProperties map[string]string, actionArguments map[string]any) ([]Variable, int) {
	entries := make([]NamedValue, 0, len(requestProperties)+2*len(actionArguments))

	// Keys are enumerated in order so that ties keep a reproducible order
	// under the stable sort below.
	for _, name := range slices.Sorted(maps.Keys(requestProperties)) {
		entries = append(entries, NamedValue{Name: name, Value: requestProperties[name]})
	}

	if col.IncludeActionArguments {
		argNames := slices.Sorted(maps.Keys(actionArguments))
		for _, name := range argNames {
			entries = append(entries, NamedValue{Name: name, Value: stringify(actionArguments[name])})
		}
		entries = append(entries, placeholders(requestProperties, argNames)...)
	}

	slices.SortStableFunc(entries, func(a, b NamedValue) int {
		return strings.Compare(a.Name, b.Name)
	})

	kept := min(len(entries), MaxCustomVariables)
	vars := make([]Variable, kept)
	for i := range kept {
		vars[i] = Variable{Position: i + 1, Name: entries[i].Name, Value: entries[i].Value}
	}

	return vars, len(entries) - kept
}

// placeholders keeps a "<X>Name" slot populated when a cached response is
// replayed and the handler that records "<X>Name" did not run. Only argument
// keys are inspected; "Id" request properties never produce a placeholder.
func placeholders(requestProperties map[string]string, argNames []string) []NamedValue {
	var out []NamedValue
	for _, name := range argNames {
		base, ok := strings.CutSuffix(name, idSuffix)
		if !ok {
			continue
		}
		companion := base + nameSuffix
		if _, found := requestProperties[companion]; found {
			continue
		}
		out = append(out, NamedValue{Name: companion + placeholderSuffix, Value: placeholderValue})
	}

	return out
}

// stringify converts an action argument to its custom variable value. nil,
// including a typed nil such as a nil *time.Time, becomes "".
func stringify(v any) string {
	if isNil(v) {
		return ""
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}

	return fmt.Sprint(v)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}

	return false
}
