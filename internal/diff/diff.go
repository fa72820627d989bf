// Package diff computes path-addressed structural differences between two
// snapshot trees and classifies each difference by its shape.
package diff

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Type is the kind of change a Difference records.
type Type string

const (
	Create Type = "CREATE"
	Remove Type = "REMOVE"
	Change Type = "CHANGE"
)

// Difference is one leaf-level change. Value holds the new side (local),
// OldValue the old side (remote).
type Difference struct {
	Type     Type     `json:"type"`
	Path     []string `json:"path"`
	Value    any      `json:"value,omitempty"`
	OldValue any      `json:"oldValue,omitempty"`
}

func (d Difference) String() string {
	return fmt.Sprintf("%s %s", d.Type, strings.Join(d.Path, "."))
}

// Diff walks old and new recursively and returns their differences. Map
// keys are visited in sorted order and slices element by element, so equal
// inputs always give the same output in the same order.
func Diff(old, new map[string]any) []Difference {
	var out []Difference
	diffMaps(nil, old, new, &out)
	return out
}

func diffMaps(path []string, old, new map[string]any, out *[]Difference) {
	for _, key := range unionKeys(old, new) {
		oldVal, inOld := old[key]
		newVal, inNew := new[key]
		p := appendPath(path, key)
		switch {
		case !inOld:
			*out = append(*out, Difference{Type: Create, Path: p, Value: newVal})
		case !inNew:
			*out = append(*out, Difference{Type: Remove, Path: p, OldValue: oldVal})
		default:
			diffValues(p, oldVal, newVal, out)
		}
	}
}

func diffSlices(path []string, old, new []any, out *[]Difference) {
	n := len(old)
	if len(new) > n {
		n = len(new)
	}
	for i := 0; i < n; i++ {
		p := appendPath(path, strconv.Itoa(i))
		switch {
		case i >= len(old):
			*out = append(*out, Difference{Type: Create, Path: p, Value: new[i]})
		case i >= len(new):
			*out = append(*out, Difference{Type: Remove, Path: p, OldValue: old[i]})
		default:
			diffValues(p, old[i], new[i], out)
		}
	}
}

func diffValues(path []string, old, new any, out *[]Difference) {
	oldMap, oldIsMap := old.(map[string]any)
	newMap, newIsMap := new.(map[string]any)
	if oldIsMap && newIsMap {
		diffMaps(path, oldMap, newMap, out)
		return
	}
	oldSlice, oldIsSlice := old.([]any)
	newSlice, newIsSlice := new.([]any)
	if oldIsSlice && newIsSlice {
		diffSlices(path, oldSlice, newSlice, out)
		return
	}
	if !reflect.DeepEqual(old, new) {
		*out = append(*out, Difference{Type: Change, Path: path, Value: new, OldValue: old})
	}
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func appendPath(path []string, key string) []string {
	p := make([]string, len(path)+1)
	copy(p, path)
	p[len(path)] = key
	return p
}
