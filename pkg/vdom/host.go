package vdom

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

// Timers runs the host timeouts the reconciler asks for.
// *scheduler.Scheduler implements it.
type Timers interface {
	ScheduleCallback(p scheduler.Priority, job scheduler.Job, opts ...scheduler.CallbackOption) *scheduler.Task
	CancelCallback(t *scheduler.Task)
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHIDGenerator shares an ID generator between hosts.
func WithHIDGenerator(g *HIDGenerator) HostOption {
	return func(h *Host) {
		if g != nil {
			h.hids = g
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) HostOption {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// Host is a reconciler.HostConfig over VNode trees. Every mutation it
// performs on an attached tree is recorded as a Patch; TakePatches hands
// the recorded batch out, typically once per commit.
//
// A Host belongs to the renderer's goroutine.
type Host struct {
	timers  Timers
	hids    *HIDGenerator
	logger  *slog.Logger
	patches []Patch
}

var _ reconciler.HostConfig = (*Host)(nil)

// NewHost creates a Host whose timeouts run on timers.
func NewHost(timers Timers, opts ...HostOption) *Host {
	h := &Host{
		timers: timers,
		hids:   NewHIDGenerator(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewContainer creates an empty root node to render into.
func (h *Host) NewContainer() *VNode {
	return &VNode{Kind: KindRoot, HID: h.hids.Next()}
}

// TakePatches returns the patches recorded since the last call.
func (h *Host) TakePatches() []Patch {
	p := h.patches
	h.patches = nil
	return p
}

func (h *Host) record(p Patch) {
	h.patches = append(h.patches, p)
}

// textContent reports whether the children are a single primitive that the
// element stores as its own text.
func textContent(props reconciler.Props) (string, bool) {
	switch c := props.Children().(type) {
	case string:
		return c, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(c), true
	}
	return "", false
}

// hostProps copies the attributes out of element props.
func hostProps(props reconciler.Props) Props {
	out := make(Props, len(props))
	for k, v := range props {
		if k == "children" {
			continue
		}
		out[k] = v
	}
	return out
}

func asNode(v any) *VNode {
	n, ok := v.(*VNode)
	if !ok {
		panic(fmt.Sprintf("vdom: expected *VNode, got %T", v))
	}
	return n
}

// CreateInstance implements reconciler.HostConfig.
func (h *Host) CreateInstance(typ string, props reconciler.Props, _ any) any {
	n := &VNode{Kind: KindElement, Tag: typ, Props: hostProps(props), HID: h.hids.Next()}
	n.Text, _ = textContent(props)
	return n
}

// CreateTextInstance implements reconciler.HostConfig.
func (h *Host) CreateTextInstance(text string, _ any) any {
	return &VNode{Kind: KindText, Text: text, HID: h.hids.Next()}
}

// AppendInitialChild implements reconciler.HostConfig. The parent is still
// detached, so nothing is recorded.
func (h *Host) AppendInitialChild(parent, child any) {
	asNode(parent).appendChild(asNode(child))
}

// FinalizeInitialChildren implements reconciler.HostConfig.
func (h *Host) FinalizeInitialChildren(_ any, _ string, props reconciler.Props) bool {
	return props.Get("autofocus") == true
}

// updatePayload is what PrepareUpdate hands to CommitUpdate.
type updatePayload struct {
	props   Props
	text    string
	hasText bool
	patches []Patch
}

// PrepareUpdate implements reconciler.HostConfig.
func (h *Host) PrepareUpdate(inst any, _ string, oldProps, newProps reconciler.Props) any {
	n := asNode(inst)
	next := hostProps(newProps)
	patches := diffProps(n.HID, hostProps(oldProps), next)

	oldText, oldHas := textContent(oldProps)
	newText, newHas := textContent(newProps)
	if newHas && (!oldHas || oldText != newText) {
		patches = append(patches, Patch{Op: PatchSetText, HID: n.HID, Value: newText})
	}

	// Handlers are never diffed but the node must hold the latest ones.
	if len(patches) == 0 && !hasHandlers(n.Props) && !hasHandlers(next) {
		return nil
	}
	return &updatePayload{props: next, text: newText, hasText: newHas, patches: patches}
}

// CommitUpdate implements reconciler.HostConfig.
func (h *Host) CommitUpdate(inst, payload any, _ string, _, _ reconciler.Props) {
	n := asNode(inst)
	p, ok := payload.(*updatePayload)
	if !ok {
		return
	}
	n.Props = p.props
	if p.hasText {
		n.Text = p.text
	}
	for _, patch := range p.patches {
		h.record(patch)
	}
}

// CommitTextUpdate implements reconciler.HostConfig.
func (h *Host) CommitTextUpdate(textInst any, _, newText string) {
	n := asNode(textInst)
	n.Text = newText
	h.record(Patch{Op: PatchSetText, HID: n.HID, Value: newText})
}

// CommitMount implements reconciler.HostConfig. Only autofocus needs it.
func (h *Host) CommitMount(inst any, _ string, _ reconciler.Props) {
	n := asNode(inst)
	n.Focused = true
	h.record(Patch{Op: PatchFocus, HID: n.HID})
}

// AppendChild implements reconciler.HostConfig.
func (h *Host) AppendChild(parent, child any) {
	h.place(asNode(parent), asNode(child), nil)
}

// AppendChildToContainer implements reconciler.HostConfig.
func (h *Host) AppendChildToContainer(container, child any) {
	h.place(asNode(container), asNode(child), nil)
}

// InsertBefore implements reconciler.HostConfig.
func (h *Host) InsertBefore(parent, child, before any) {
	h.place(asNode(parent), asNode(child), asNode(before))
}

// InsertInContainerBefore implements reconciler.HostConfig.
func (h *Host) InsertInContainerBefore(container, child, before any) {
	h.place(asNode(container), asNode(child), asNode(before))
}

// place attaches child to parent. A child that already has a parent is a
// move; anything else is an insertion and carries a snapshot of its subtree.
func (h *Host) place(parent, child, before *VNode) {
	p := Patch{Op: PatchInsertNode, HID: child.HID, ParentID: parent.HID}
	if child.Parent != nil {
		p.Op = PatchMoveNode
	}

	if before == nil {
		parent.appendChild(child)
	} else if parent.insertBefore(child, before) {
		p.Before = before.HID
	} else {
		h.logger.Warn("insert before a node that is not a child; appending",
			"parent", parent.HID, "child", child.HID, "before", before.HID)
		parent.appendChild(child)
	}

	if p.Op == PatchInsertNode {
		p.Node = child.Clone()
	}
	h.record(p)
}

// RemoveChild implements reconciler.HostConfig.
func (h *Host) RemoveChild(parent, child any) {
	p, c := asNode(parent), asNode(child)
	c.detach()
	h.record(Patch{Op: PatchRemoveNode, HID: c.HID, ParentID: p.HID})
}

// RemoveChildFromContainer implements reconciler.HostConfig.
func (h *Host) RemoveChildFromContainer(container, child any) {
	h.RemoveChild(container, child)
}

// ShouldSetTextContent implements reconciler.HostConfig.
func (h *Host) ShouldSetTextContent(_ string, props reconciler.Props) bool {
	_, ok := textContent(props)
	return ok
}

// ResetTextContent implements reconciler.HostConfig.
func (h *Host) ResetTextContent(inst any) {
	n := asNode(inst)
	if n.Text == "" {
		return
	}
	n.Text = ""
	h.record(Patch{Op: PatchSetText, HID: n.HID})
}

// PrepareForCommit implements reconciler.HostConfig.
func (h *Host) PrepareForCommit(any) {}

// ResetAfterCommit implements reconciler.HostConfig.
func (h *Host) ResetAfterCommit(container any) {
	h.logger.Debug("host mutations applied", "container", asNode(container).HID, "patches", len(h.patches))
}

// GetPublicInstance implements reconciler.HostConfig.
func (h *Host) GetPublicInstance(inst any) any {
	return inst
}

// ScheduleTimeout implements reconciler.HostConfig.
func (h *Host) ScheduleTimeout(fn func(), d time.Duration) any {
	return h.timers.ScheduleCallback(scheduler.NormalPriority, scheduler.Func(fn), scheduler.WithDelay(d))
}

// CancelTimeout implements reconciler.HostConfig.
func (h *Host) CancelTimeout(handle any) {
	if t, ok := handle.(*scheduler.Task); ok {
		h.timers.CancelCallback(t)
	}
}
