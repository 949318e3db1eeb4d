package vdom

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

var booleanAttrs = map[string]bool{
	"allowfullscreen": true,
	"async":           true,
	"autofocus":       true,
	"autoplay":        true,
	"checked":         true,
	"controls":        true,
	"default":         true,
	"defer":           true,
	"disabled":        true,
	"formnovalidate":  true,
	"hidden":          true,
	"inert":           true,
	"ismap":           true,
	"loop":            true,
	"multiple":        true,
	"muted":           true,
	"novalidate":      true,
	"open":            true,
	"playsinline":     true,
	"readonly":        true,
	"required":        true,
	"reversed":        true,
	"selected":        true,
}

// IsBooleanAttr reports whether the attribute is rendered by presence only.
func IsBooleanAttr(key string) bool {
	return booleanAttrs[strings.ToLower(key)]
}

// diffProps compares two attribute sets and returns the patches that turn
// prev into next for the node with the given HID. The result is sorted by
// key so that the same change always produces the same patches.
func diffProps(hid string, prev, next Props) []Patch {
	var patches []Patch

	// Check for removed/changed props
	for key, prevVal := range prev {
		if skipProp(key) {
			continue
		}
		nextVal, exists := next[key]
		if !exists {
			patches = append(patches, Patch{Op: PatchRemoveAttr, HID: hid, Key: key})
		} else if !propsEqual(prevVal, nextVal) {
			patches = append(patches, setPropPatch(hid, key, nextVal))
		}
	}

	// Check for added props
	for key, nextVal := range next {
		if skipProp(key) {
			continue
		}
		if _, exists := prev[key]; !exists {
			patches = append(patches, setPropPatch(hid, key, nextVal))
		}
	}

	sort.Slice(patches, func(i, j int) bool { return patches[i].Key < patches[j].Key })
	return patches
}

// setPropPatch maps form state props onto their dedicated operations.
func setPropPatch(hid, key string, value any) Patch {
	op := PatchSetAttr
	switch key {
	case "value":
		op = PatchSetValue
	case "checked":
		op = PatchSetChecked
	case "selected":
		op = PatchSetSelected
	}
	return Patch{Op: op, HID: hid, Key: key, Value: propToString(value)}
}

func skipProp(key string) bool {
	return key == "children" || key == "key" || isEventHandler(key)
}

// isEventHandler returns true if the key is an event handler (starts with "on").
// SECURITY: Case-insensitive to catch onclick, ONCLICK, onClick, OnLoad, etc.
func isEventHandler(key string) bool {
	return len(key) > 2 && strings.EqualFold(key[:2], "on")
}

// propsEqual compares two prop values for equality.
func propsEqual(a, b any) bool {
	// Fast path for common types
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	// Fallback to reflect for complex types
	return reflect.DeepEqual(a, b)
}

// propToString converts a prop value to a string for the patch.
func propToString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func attrValueToString(key string, value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		if IsBooleanAttr(key) {
			if v {
				return "", true
			}
			return "", false
		}
		if v {
			return "true", true
		}
		return "false", true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		// Avoid encoding complex structs/maps as attributes unintentionally.
		rv := reflect.ValueOf(value)
		if rv.IsValid() && rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes()), true
		}
		return "", false
	}
}
