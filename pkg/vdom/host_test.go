package vdom_test

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vango-dev/fiber/pkg/h"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/scheduler"
	"github.com/vango-dev/fiber/pkg/vdom"
)

type fixture struct {
	t         *testing.T
	clock     *scheduler.ManualClock
	sched     *scheduler.Scheduler
	host      *vdom.Host
	r         *reconciler.Renderer
	root      *reconciler.Root
	container *vdom.VNode
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := scheduler.NewManualClock()
	sched := scheduler.New(scheduler.WithClock(clock))
	host := vdom.NewHost(sched)
	r := reconciler.New(host, sched)
	container := host.NewContainer()
	return &fixture{
		t:         t,
		clock:     clock,
		sched:     sched,
		host:      host,
		r:         r,
		root:      r.CreateContainer(container, reconciler.LegacyRoot),
		container: container,
	}
}

// commit renders n synchronously and returns the patches it produced.
func (f *fixture) commit(n reconciler.Node) []vdom.Patch {
	f.t.Helper()
	if _, err := f.r.UpdateContainer(n, f.root, nil); err != nil {
		f.t.Fatalf("UpdateContainer: %v", err)
	}
	if err := f.sched.FlushAll(); err != nil {
		f.t.Fatalf("FlushAll: %v", err)
	}
	return f.host.TakePatches()
}

func ops(patches []vdom.Patch) []string {
	out := make([]string, len(patches))
	for i, p := range patches {
		out[i] = p.Op.String()
	}
	return out
}

func equal(a, b []string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
}

func list(keys ...string) *reconciler.Element {
	return h.Ul(h.Range(keys, func(k string, _ int) reconciler.Node {
		return h.Li(h.Key(k), k)
	}))
}

func TestMountIsOneInsert(t *testing.T) {
	f := newFixture(t)

	patches := f.commit(h.Div(h.ID("app"), h.P("hello"), list("a", "b")))
	if len(patches) != 1 || patches[0].Op != vdom.PatchInsertNode {
		t.Fatalf("mount patches = %v, want one InsertNode", ops(patches))
	}
	p := patches[0]
	if p.ParentID != f.container.HID {
		t.Errorf("ParentID = %q, want container %q", p.ParentID, f.container.HID)
	}
	if p.Node == nil || p.Node.Tag != "div" || len(p.Node.Children) != 2 {
		t.Fatalf("insert snapshot = %+v", p.Node)
	}
	if p.Node == f.container.Children[0] {
		t.Error("snapshot must not alias the live node")
	}

	// Container, div, p, ul and two items, each with its own HID.
	if n := len(vdom.CollectHIDs(f.container)); n != 6 {
		t.Errorf("got %d distinct HIDs, want 6", n)
	}
}

func TestReorderProducesMoves(t *testing.T) {
	f := newFixture(t)
	f.commit(list("a", "b", "c"))
	ul := f.container.Children[0]
	before := map[string]*vdom.VNode{}
	for _, li := range ul.Children {
		before[li.Text] = li
	}

	patches := f.commit(list("c", "a", "b"))
	if want := []string{"MoveNode", "MoveNode"}; !equal(ops(patches), want) {
		t.Fatalf("reorder patches = %v, want %v", ops(patches), want)
	}
	if patches[0].HID != before["a"].HID || patches[1].HID != before["b"].HID {
		t.Errorf("moved %s and %s, want a and b", patches[0].HID, patches[1].HID)
	}
	if got := ul.TextContent(); got != "cab" {
		t.Errorf("order = %q, want cab", got)
	}
	for _, li := range ul.Children {
		if before[li.Text] != li {
			t.Errorf("node %s was recreated", li.Text)
		}
	}
}

func TestInsertInMiddleUsesBefore(t *testing.T) {
	f := newFixture(t)
	f.commit(list("a", "c"))
	c := f.container.Children[0].Children[1]

	patches := f.commit(list("a", "b", "c"))
	if len(patches) != 1 || patches[0].Op != vdom.PatchInsertNode {
		t.Fatalf("patches = %v", ops(patches))
	}
	if patches[0].Before != c.HID {
		t.Errorf("Before = %q, want %q", patches[0].Before, c.HID)
	}
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	f.commit(list("a", "b"))
	ul := f.container.Children[0]
	b := ul.Children[1]

	patches := f.commit(list("a"))
	if len(patches) != 1 || patches[0].Op != vdom.PatchRemoveNode {
		t.Fatalf("patches = %v", ops(patches))
	}
	if patches[0].HID != b.HID || patches[0].ParentID != ul.HID {
		t.Errorf("removed %s from %s", patches[0].HID, patches[0].ParentID)
	}
	if b.Parent != nil {
		t.Error("removed node is still attached")
	}
}

func TestAttributeDiff(t *testing.T) {
	f := newFixture(t)
	f.commit(h.Input(h.Value("a"), h.TitleAttr("old")))

	patches := f.commit(h.Input(h.Value("b"), h.Class("x"), h.Checked(true)))
	want := []string{"SetChecked", "SetAttr", "RemoveAttr", "SetValue"}
	if !equal(ops(patches), want) {
		t.Fatalf("patches = %v, want %v", ops(patches), want)
	}
	input := f.container.Children[0]
	if input.Props["value"] != "b" || input.Props["title"] != nil {
		t.Errorf("props not applied: %v", input.Props)
	}
}

func TestTextUpdates(t *testing.T) {
	f := newFixture(t)

	f.commit(h.P(1))
	p := f.container.Children[0]
	patches := f.commit(h.P(2))
	if len(patches) != 1 || patches[0].Op != vdom.PatchSetText || patches[0].HID != p.HID || patches[0].Value != "2" {
		t.Fatalf("text content patches = %v", patches)
	}

	f.commit(h.P("a", h.B("b")))
	text := f.container.Children[0].Children[0]
	patches = f.commit(h.P("z", h.B("b")))
	if len(patches) != 1 || patches[0].HID != text.HID || patches[0].Value != "z" {
		t.Errorf("text node patches = %v", patches)
	}
}

func TestAutofocus(t *testing.T) {
	f := newFixture(t)

	patches := f.commit(h.Form(h.Input(h.Autofocus())))
	if want := []string{"InsertNode", "Focus"}; !equal(ops(patches), want) {
		t.Fatalf("patches = %v, want %v", ops(patches), want)
	}
	if !f.container.Children[0].Children[0].Focused {
		t.Error("input is not focused")
	}
}

func TestHandlersAreRefreshed(t *testing.T) {
	f := newFixture(t)

	var clicked string
	button := func(label string) *reconciler.Element {
		return h.Button(h.OnClick(func() { clicked = label }), "go")
	}
	f.commit(button("first"))
	patches := f.commit(button("second"))
	if len(patches) != 0 {
		t.Errorf("handler changes must not produce patches, got %v", ops(patches))
	}

	node := f.container.Children[0]
	if !node.IsInteractive() || vdom.CountInteractive(f.container) != 1 {
		t.Fatal("button should be interactive")
	}
	node.Props["onclick"].(func())()
	if clicked != "second" {
		t.Errorf("clicked = %q, want the latest handler", clicked)
	}
}

func TestScheduleTimeout(t *testing.T) {
	f := newFixture(t)

	fired := 0
	f.host.ScheduleTimeout(func() { fired++ }, 50*time.Millisecond)
	cancelled := f.host.ScheduleTimeout(func() { fired += 10 }, 50*time.Millisecond)
	f.host.CancelTimeout(cancelled)

	if err := f.sched.FlushAll(); err != nil {
		t.Fatal(err)
	}
	if fired != 0 {
		t.Fatal("timeout fired early")
	}
	f.clock.Advance(50 * time.Millisecond)
	if err := f.sched.FlushAll(); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestVNodeJSON(t *testing.T) {
	f := newFixture(t)
	f.commit(h.Button(h.Class("primary"), h.Disabled(), h.OnClick(func() {}), "ok"))

	data, err := json.Marshal(f.container.Children[0])
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Kind   string            `json:"kind"`
		Tag    string            `json:"tag"`
		Attrs  map[string]string `json:"attrs"`
		Events []string          `json:"events"`
		Text   string            `json:"text"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != "Element" || got.Tag != "button" || got.Text != "ok" {
		t.Errorf("decoded %+v", got)
	}
	if got.Attrs["class"] != "primary" || got.Attrs["disabled"] != "" {
		t.Errorf("attrs = %v", got.Attrs)
	}
	if _, ok := got.Attrs["onclick"]; ok {
		t.Error("handlers must not be encoded as attributes")
	}
	if len(got.Events) != 1 || got.Events[0] != "click" {
		t.Errorf("events = %v", got.Events)
	}
}

func TestFindByHID(t *testing.T) {
	f := newFixture(t)
	f.commit(h.Div(h.Span("x")))
	span := f.container.Children[0].Children[0]

	if vdom.FindByHID(f.container, span.HID) != span {
		t.Error("FindByHID did not find the span")
	}
	if vdom.FindByHID(f.container, "missing") != nil {
		t.Error("FindByHID found a missing node")
	}
}
