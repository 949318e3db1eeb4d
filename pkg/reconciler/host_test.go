package reconciler_test

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

// node is the host tree used by the tests.
type node struct {
	typ      string
	text     string
	props    reconciler.Props
	children []*node
	parent   *node
	focused  bool
}

func (n *node) label() string {
	if n.typ == "#text" {
		return "'" + n.text + "'"
	}
	if n.text != "" {
		return n.typ + ":" + n.text
	}
	return n.typ
}

func (n *node) String() string {
	if n.typ == "#text" {
		return n.text
	}
	var b strings.Builder
	b.WriteString("<" + n.typ + ">")
	b.WriteString(n.text)
	for _, c := range n.children {
		b.WriteString(c.String())
	}
	b.WriteString("</" + n.typ + ">")
	return b.String()
}

func (n *node) inner() string {
	var b strings.Builder
	for _, c := range n.children {
		b.WriteString(c.String())
	}
	return b.String()
}

func (n *node) detach(child *node) {
	if child.parent == nil {
		return
	}
	p := child.parent
	if i := slices.Index(p.children, child); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
	child.parent = nil
}

func (n *node) append(child *node) {
	n.detach(child)
	child.parent = n
	n.children = append(n.children, child)
}

func (n *node) insertBefore(child, before *node) {
	n.detach(child)
	i := slices.Index(n.children, before)
	if i < 0 {
		panic(fmt.Sprintf("insertBefore: %s is not a child of %s", before.label(), n.label()))
	}
	child.parent = n
	n.children = slices.Insert(n.children, i, child)
}

// testHost records every mutation it performs.
type testHost struct {
	sched *scheduler.Scheduler
	ops   []string
}

func (h *testHost) log(format string, args ...any) {
	h.ops = append(h.ops, fmt.Sprintf(format, args...))
}

func (h *testHost) reset() { h.ops = nil }

// mutations returns the logged operations with the given prefix.
func (h *testHost) mutations(prefix string) []string {
	var out []string
	for _, op := range h.ops {
		if strings.HasPrefix(op, prefix) {
			out = append(out, op)
		}
	}
	return out
}

func textContent(props reconciler.Props) (string, bool) {
	switch c := props.Children().(type) {
	case string:
		return c, true
	case int:
		return fmt.Sprint(c), true
	}
	return "", false
}

func withoutChildren(p reconciler.Props) reconciler.Props {
	out := maps.Clone(p)
	delete(out, "children")
	return out
}

func (h *testHost) CreateInstance(typ string, props reconciler.Props, _ any) any {
	n := &node{typ: typ, props: props}
	n.text, _ = textContent(props)
	h.log("create %s", n.label())
	return n
}

func (h *testHost) CreateTextInstance(text string, _ any) any {
	h.log("create '%s'", text)
	return &node{typ: "#text", text: text}
}

func (h *testHost) AppendInitialChild(parent, child any) {
	parent.(*node).append(child.(*node))
}

func (h *testHost) FinalizeInitialChildren(_ any, _ string, props reconciler.Props) bool {
	return props.Get("autoFocus") == true
}

func (h *testHost) PrepareUpdate(_ any, _ string, oldProps, newProps reconciler.Props) any {
	oldText, _ := textContent(oldProps)
	newText, _ := textContent(newProps)
	if oldText == newText && reflect.DeepEqual(withoutChildren(oldProps), withoutChildren(newProps)) {
		return nil
	}
	return newProps
}

func (h *testHost) CommitUpdate(inst, _ any, _ string, _, newProps reconciler.Props) {
	n := inst.(*node)
	n.props = newProps
	n.text, _ = textContent(newProps)
	h.log("update %s", n.label())
}

func (h *testHost) CommitTextUpdate(inst any, oldText, newText string) {
	inst.(*node).text = newText
	h.log("text '%s'->'%s'", oldText, newText)
}

func (h *testHost) CommitMount(inst any, _ string, _ reconciler.Props) {
	n := inst.(*node)
	n.focused = true
	h.log("focus %s", n.label())
}

func (h *testHost) AppendChild(parent, child any) {
	parent.(*node).append(child.(*node))
	h.log("place %s", child.(*node).label())
}

func (h *testHost) AppendChildToContainer(container, child any) {
	h.AppendChild(container, child)
}

func (h *testHost) InsertBefore(parent, child, before any) {
	parent.(*node).insertBefore(child.(*node), before.(*node))
	h.log("place %s before %s", child.(*node).label(), before.(*node).label())
}

func (h *testHost) InsertInContainerBefore(container, child, before any) {
	h.InsertBefore(container, child, before)
}

func (h *testHost) RemoveChild(parent, child any) {
	parent.(*node).detach(child.(*node))
	h.log("remove %s", child.(*node).label())
}

func (h *testHost) RemoveChildFromContainer(container, child any) {
	h.RemoveChild(container, child)
}

func (h *testHost) ShouldSetTextContent(_ string, props reconciler.Props) bool {
	_, ok := textContent(props)
	return ok
}

func (h *testHost) ResetTextContent(inst any) {
	inst.(*node).text = ""
}

func (h *testHost) PrepareForCommit(any)           {}
func (h *testHost) ResetAfterCommit(any)           {}
func (h *testHost) GetPublicInstance(inst any) any { return inst }

func (h *testHost) ScheduleTimeout(fn func(), d time.Duration) any {
	return h.sched.ScheduleCallback(scheduler.NormalPriority, scheduler.Func(fn), scheduler.WithDelay(d))
}

func (h *testHost) CancelTimeout(handle any) {
	h.sched.CancelCallback(handle.(*scheduler.Task))
}

var _ reconciler.HostConfig = (*testHost)(nil)

// recorder is an Observer that keeps the events tests care about.
type recorder struct {
	reconciler.NopObserver
	restarts int
	yields   int
	commits  int
}

func (o *recorder) Restarted(*reconciler.Root, expiration.Time)     { o.restarts++ }
func (o *recorder) RenderYielded(*reconciler.Root, expiration.Time) { o.yields++ }
func (o *recorder) CommitFinished(*reconciler.Root, expiration.Time, int, time.Duration) {
	o.commits++
}

type harness struct {
	t         *testing.T
	clock     *scheduler.ManualClock
	sched     *scheduler.Scheduler
	host      *testHost
	obs       *recorder
	r         *reconciler.Renderer
	root      *reconciler.Root
	container *node
}

func newHarness(t *testing.T, tag reconciler.RootTag, opts ...reconciler.Option) *harness {
	t.Helper()
	clock := scheduler.NewManualClock()
	sched := scheduler.New(scheduler.WithClock(clock), scheduler.WithFrameBudget(5*time.Millisecond))
	host := &testHost{sched: sched}
	obs := &recorder{}
	r := reconciler.New(host, sched, append([]reconciler.Option{reconciler.WithObserver(obs)}, opts...)...)
	container := &node{typ: "root"}
	return &harness{
		t:         t,
		clock:     clock,
		sched:     sched,
		host:      host,
		obs:       obs,
		r:         r,
		root:      r.CreateContainer(container, tag),
		container: container,
	}
}

// render schedules el and flushes all work.
func (h *harness) render(n reconciler.Node) {
	h.t.Helper()
	_, err := h.r.UpdateContainer(n, h.root, nil)
	require.NoError(h.t, err)
	h.flush()
}

func (h *harness) flush() {
	h.t.Helper()
	require.NoError(h.t, h.sched.FlushAll())
}

func (h *harness) html() string {
	return h.container.inner()
}

func el(typ any, props reconciler.Props, children ...reconciler.Node) *reconciler.Element {
	return reconciler.CreateElement(typ, props, children...)
}

func keyedList(keys ...string) *reconciler.Element {
	items := make([]reconciler.Node, len(keys))
	for i, k := range keys {
		items[i] = el("li", reconciler.Props{"key": k}, k)
	}
	return el("ul", nil, items)
}

func listHTML(keys ...string) string {
	var b strings.Builder
	b.WriteString("<ul>")
	for _, k := range keys {
		b.WriteString("<li>" + k + "</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}
