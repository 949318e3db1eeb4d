package vdom

import "fmt"

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	PatchSetText     PatchOp = 0x01 // Update text content
	PatchSetAttr     PatchOp = 0x02 // Set/update attribute
	PatchRemoveAttr  PatchOp = 0x03 // Remove attribute
	PatchInsertNode  PatchOp = 0x04 // Insert new node
	PatchRemoveNode  PatchOp = 0x05 // Remove node
	PatchMoveNode    PatchOp = 0x06 // Move node to new position
	PatchSetValue    PatchOp = 0x08 // Set input value
	PatchSetChecked  PatchOp = 0x09 // Set checkbox checked
	PatchSetSelected PatchOp = 0x0A // Set select option selected
	PatchFocus       PatchOp = 0x0B // Focus element
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchSetText:
		return "SetText"
	case PatchSetAttr:
		return "SetAttr"
	case PatchRemoveAttr:
		return "RemoveAttr"
	case PatchInsertNode:
		return "InsertNode"
	case PatchRemoveNode:
		return "RemoveNode"
	case PatchMoveNode:
		return "MoveNode"
	case PatchSetValue:
		return "SetValue"
	case PatchSetChecked:
		return "SetChecked"
	case PatchSetSelected:
		return "SetSelected"
	case PatchFocus:
		return "Focus"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (op PatchOp) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *PatchOp) UnmarshalText(b []byte) error {
	for c := PatchSetText; c <= PatchFocus; c++ {
		if c.String() == string(b) && string(b) != "Unknown" {
			*op = c
			return nil
		}
	}
	return fmt.Errorf("vdom: unknown patch op %q", b)
}

// Patch represents a single host operation performed during a commit.
type Patch struct {
	Op       PatchOp `json:"op"`
	HID      string  `json:"hid"`              // Target node
	ParentID string  `json:"parent,omitempty"` // Parent for insert, move and remove
	Before   string  `json:"before,omitempty"` // Sibling to insert before; empty appends
	Key      string  `json:"key,omitempty"`    // Attribute key
	Value    string  `json:"value,omitempty"`  // New value
	Node     *VNode  `json:"node,omitempty"`   // Snapshot of an inserted subtree
}

// String formats the patch for logs and CLI output.
func (p Patch) String() string {
	switch p.Op {
	case PatchInsertNode, PatchMoveNode:
		s := p.Op.String() + " " + p.HID + " into " + p.ParentID
		if p.Before != "" {
			s += " before " + p.Before
		}
		return s
	case PatchRemoveNode:
		return "RemoveNode " + p.HID + " from " + p.ParentID
	case PatchSetAttr, PatchSetValue, PatchSetChecked, PatchSetSelected:
		return p.Op.String() + " " + p.HID + " " + p.Key + "=" + p.Value
	case PatchRemoveAttr:
		return "RemoveAttr " + p.HID + " " + p.Key
	case PatchSetText:
		return "SetText " + p.HID + " " + p.Value
	default:
		return p.Op.String() + " " + p.HID
	}
}
