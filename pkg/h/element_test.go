package h

import (
	"testing"

	"github.com/vango-dev/fiber/pkg/reconciler"
)

func TestElKeyAndRef(t *testing.T) {
	ref := &reconciler.Ref{}
	el := Li(Key(7), Ref(ref), Class("item"), "seven")

	if el.Type != "li" {
		t.Errorf("Type = %v, want li", el.Type)
	}
	if el.Key != "7" {
		t.Errorf("Key = %q, want 7", el.Key)
	}
	if el.Ref != ref {
		t.Error("Ref was not extracted")
	}
	if _, ok := el.Props["key"]; ok {
		t.Error("key must not stay in props")
	}
	if el.Props["class"] != "item" || el.Props["children"] != "seven" {
		t.Errorf("Props = %v", el.Props)
	}
}

func TestElSkipsNilAndEmpty(t *testing.T) {
	var missing *reconciler.Element
	el := Div(nil, ClassIf(false, "x"), AttrIf(false, ID("y")), missing, Span())

	if _, ok := el.Props["class"]; ok {
		t.Error("empty attr was applied")
	}
	if _, ok := el.Props["id"]; ok {
		t.Error("conditional attr was applied")
	}
	child, ok := el.Props["children"].(*reconciler.Element)
	if !ok || child.Type != "span" {
		t.Errorf("children = %#v, want the span only", el.Props["children"])
	}
}

func TestElManyChildren(t *testing.T) {
	el := Ul(Range([]string{"a", "b"}, func(s string, _ int) reconciler.Node {
		return Li(Key(s), s)
	}), Li("c"))

	children, ok := el.Props["children"].([]reconciler.Node)
	if !ok || len(children) != 2 {
		t.Fatalf("children = %#v", el.Props["children"])
	}
	if items, ok := children[0].([]reconciler.Node); !ok || len(items) != 2 {
		t.Errorf("first child = %#v, want the ranged items", children[0])
	}
}

func TestClasses(t *testing.T) {
	a := Classes("btn", []string{"", "large"}, map[string]bool{"active": true, "off": false})
	if a.Value != "btn large active" {
		t.Errorf("Classes() = %q", a.Value)
	}
}

func TestSwitch(t *testing.T) {
	got := Switch("b",
		Case_("a", Text("A")),
		Case_("b", Text("B")),
		Default[string](Text("?")),
	)
	if got != "B" {
		t.Errorf("Switch() = %v, want B", got)
	}
	if got := Switch("z", Case_("a", Text("A")), Default[string](Text("?"))); got != "?" {
		t.Errorf("Switch() default = %v", got)
	}
}

func TestEvents(t *testing.T) {
	a := OnInput(func(string) {})
	if a.Key != "oninput" {
		t.Errorf("Key = %q", a.Key)
	}
	if _, ok := a.Value.(func(string)); !ok {
		t.Errorf("Value = %T", a.Value)
	}
}

func TestSuspenseCarriesFallback(t *testing.T) {
	el := Suspense(Text("loading"), Div())
	if el.Type != reconciler.Suspense {
		t.Errorf("Type = %v", el.Type)
	}
	if el.Props["fallback"] != "loading" {
		t.Errorf("fallback = %v", el.Props["fallback"])
	}
}
