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

// MaxCustomVariables is the number of custom variable slots an analytics
// page view can carry. Positions are numbered 1 through MaxCustomVariables.
const MaxCustomVariables = 5

// NamedValue is a custom variable before it has been assigned a slot.
// Value holds the string form of the source value, or "" for nil.
type NamedValue struct {
	Name  string
	Value string
}

// Variable is a custom variable assigned to a slot.
type Variable struct {
	// Position is the slot number, 1 through [MaxCustomVariables].
	Position int
	Name     string
	Value    string
}

// Sink receives slot assignments produced by a [Collector].
//
// A Sink is the write side of a tracker's custom variable state. The collector
// calls ClearCustomVariables once and then SetCustomVariable once per retained
// entry, in position order.
type Sink interface {
	ClearCustomVariables()
	SetCustomVariable(position int, name, value string)
}

// CustomVariables is a fixed-capacity slot store. It implements [Sink] and is
// what the tracking middleware hands to the collector for every request.
//
// The zero value is empty and ready to use. CustomVariables is not safe for
// concurrent use.
type CustomVariables struct {
	slots [MaxCustomVariables]Variable
	set   [MaxCustomVariables]bool
}

var _ Sink = (*CustomVariables)(nil)

// ClearCustomVariables empties every slot.
func (v *CustomVariables) ClearCustomVariables() {
	v.slots = [MaxCustomVariables]Variable{}
	v.set = [MaxCustomVariables]bool{}
}

// SetCustomVariable assigns a slot. Positions outside 1..MaxCustomVariables
// are ignored.
func (v *CustomVariables) SetCustomVariable(position int, name, value string) {
	if position < 1 || position > MaxCustomVariables {
		return
	}
	v.slots[position-1] = Variable{Position: position, Name: name, Value: value}
	v.set[position-1] = true
}

// Get returns the variable in the given slot.
func (v *CustomVariables) Get(position int) (Variable, bool) {
	if position < 1 || position > MaxCustomVariables || !v.set[position-1] {
		return Variable{}, false
	}

	return v.slots[position-1], true
}

// Len returns the number of occupied slots.
func (v *CustomVariables) Len() int {
	n := 0
	for _, ok := range v.set {
		if ok {
			n++
		}
	}

	return n
}

// All returns the occupied slots in position order.
func (v *CustomVariables) All() []Variable {
	out := make([]Variable, 0, MaxCustomVariables)
	for i, ok := range v.set {
		if ok {
			out = append(out, v.slots[i])
		}
	}

	return out
}
