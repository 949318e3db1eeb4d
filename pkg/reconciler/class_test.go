package reconciler_test

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/fiber/pkg/reconciler"
)

// lifecycle logs every lifecycle method it receives.
type lifecycle struct {
	name    string
	log     *[]string
	updater *reconciler.Updater
	skip    bool
}

func (c *lifecycle) InitialState(reconciler.Props) any {
	return map[string]any{"n": 0}
}

func (c *lifecycle) Render(props reconciler.Props, state any) (reconciler.Node, error) {
	*c.log = append(*c.log, c.name+" render")
	n := state.(map[string]any)["n"]
	return el("p", nil, fmt.Sprintf("%v/%v", props.Get("label"), n)), nil
}

func (c *lifecycle) ShouldUpdate(_, _ reconciler.Props, _, _ any) bool {
	return !c.skip
}

func (c *lifecycle) SnapshotBeforeUpdate(prevProps reconciler.Props, _ any) (any, error) {
	return prevProps.Get("label"), nil
}

func (c *lifecycle) DidMount() error {
	*c.log = append(*c.log, c.name+" did mount")
	return nil
}

func (c *lifecycle) DidUpdate(_ reconciler.Props, _ any, snapshot any) error {
	*c.log = append(*c.log, fmt.Sprintf("%s did update (was %v)", c.name, snapshot))
	return nil
}

func (c *lifecycle) WillUnmount() error {
	*c.log = append(*c.log, c.name+" will unmount")
	return nil
}

func TestClassLifecycle(t *testing.T) {
	h := newHarness(t, reconciler.LegacyRoot)

	var log []string
	var inst *lifecycle
	comp := reconciler.Class("Lifecycle", func(_ reconciler.Props, u *reconciler.Updater) reconciler.Instance {
		inst = &lifecycle{name: "c", log: &log, updater: u}
		return inst
	})

	h.render(el(comp, reconciler.Props{"label": "a"}))
	assert.Equal(t, "<p>a/0</p>", h.html())
	assert.Equal(t, []string{"c render", "c did mount"}, log)

	log = nil
	h.render(el(comp, reconciler.Props{"label": "b"}))
	assert.Equal(t, "<p>b/0</p>", h.html())
	assert.Equal(t, []string{"c render", "c did update (was a)"}, log)

	log = nil
	committed := false
	inst.updater.SetState(map[string]any{"n": 1}, func() { committed = true })
	assert.Equal(t, "<p>b/1</p>", h.html())
	assert.True(t, committed)

	log = nil
	inst.skip = true
	inst.updater.SetState(map[string]any{"n": 2}, nil)
	assert.Equal(t, "<p>b/1</p>", h.html())
	assert.Empty(t, log)

	// ForceUpdate ignores ShouldUpdate and renders the skipped state.
	inst.updater.ForceUpdate(nil)
	assert.Equal(t, "<p>b/2</p>", h.html())

	log = nil
	h.render(nil)
	assert.Equal(t, []string{"c will unmount"}, log)
	assert.Empty(t, h.html())
}

func TestDerivedStateFromProps(t *testing.T) {
	h := newHarness(t, reconciler.LegacyRoot)

	var log []string
	comp := reconciler.Class("Derived", func(_ reconciler.Props, _ *reconciler.Updater) reconciler.Instance {
		return &lifecycle{name: "d", log: &log}
	})
	comp.DerivedStateFromProps = func(props reconciler.Props, _ any) any {
		return map[string]any{"n": props.Get("seed")}
	}

	h.render(el(comp, reconciler.Props{"label": "x", "seed": 7}))
	assert.Equal(t, "<p>x/7</p>", h.html())
	h.render(el(comp, reconciler.Props{"label": "x", "seed": 8}))
	assert.Equal(t, "<p>x/8</p>", h.html())
}

// boundary renders its children until it catches an error.
type boundary struct {
	updater *reconciler.Updater
	caught  []error
}

func (b *boundary) Render(props reconciler.Props, state any) (reconciler.Node, error) {
	if s, ok := state.(map[string]any); ok && s["error"] != nil {
		return el("p", nil, "caught: "+s["error"].(string)), nil
	}
	return props.Children(), nil
}

// catchingBoundary only implements DidCatch.
type catchingBoundary struct {
	boundary
}

func (b *catchingBoundary) DidCatch(err error, _ reconciler.ErrorInfo) error {
	b.caught = append(b.caught, err)
	b.updater.SetState(map[string]any{"error": err.Error()}, nil)
	return nil
}

func derivedBoundary() *reconciler.ClassType {
	c := reconciler.Class("Boundary", func(_ reconciler.Props, u *reconciler.Updater) reconciler.Instance {
		return &boundary{updater: u}
	})
	c.DerivedStateFromError = func(err error) any {
		return map[string]any{"error": err.Error()}
	}
	return c
}

var failing = reconciler.Func("Failing", func(_ *reconciler.Hooks, props reconciler.Props) (reconciler.Node, error) {
	if msg, _ := props.Get("fail").(string); msg != "" {
		return nil, errors.New(msg)
	}
	return el("span", nil, "fine"), nil
})

var panicking = reconciler.Func("Panicking", func(_ *reconciler.Hooks, _ reconciler.Props) (reconciler.Node, error) {
	panic("kaboom")
})

func TestDerivedStateFromErrorBoundary(t *testing.T) {
	h := newHarness(t, reconciler.LegacyRoot)
	b := derivedBoundary()

	h.render(el("div", nil, el(b, nil, el(failing, nil))))
	assert.Equal(t, "<div><span>fine</span></div>", h.html())

	h.render(el("div", nil, el(b, nil, el(failing, reconciler.Props{"fail": "boom"}))))
	assert.Equal(t, "<div><p>caught: boom</p></div>", h.html())
	assert.Equal(t, reconciler.StatusErrored, h.r.Status())
}

func TestBoundaryCatchesPanics(t *testing.T) {
	h := newHarness(t, reconciler.LegacyRoot)

	var got error
	b := reconciler.Class("Boundary", func(_ reconciler.Props, u *reconciler.Updater) reconciler.Instance {
		return &boundary{updater: u}
	})
	b.DerivedStateFromError = func(err error) any {
		got = err
		return map[string]any{"error": "panic"}
	}

	h.render(el(b, nil, el(panicking, nil)))
	assert.Equal(t, "<p>caught: panic</p>", h.html())
	var pe *reconciler.PanicError
	require.ErrorAs(t, got, &pe)
	assert.Equal(t, "kaboom", pe.Value)
}

func TestDidCatchBoundary(t *testing.T) {
	h := newHarness(t, reconciler.LegacyRoot)

	var inst *catchingBoundary
	b := reconciler.Class("Catcher", func(_ reconciler.Props, u *reconciler.Updater) reconciler.Instance {
		inst = &catchingBoundary{boundary: boundary{updater: u}}
		return inst
	})

	h.render(el("div", nil, el(b, nil, el(failing, reconciler.Props{"fail": "bad"}))))

	assert.Equal(t, "<div><p>caught: bad</p></div>", h.html())
	require.Len(t, inst.caught, 1)
	assert.EqualError(t, inst.caught[0], "bad")
	assert.NoError(t, h.r.PendingError())
}

func TestNestedBoundaryCatchesFirst(t *testing.T) {
	h := newHarness(t, reconciler.LegacyRoot)
	outer, inner := derivedBoundary(), derivedBoundary()

	h.render(el("div", nil,
		el(outer, nil, el("section", nil, el(inner, nil, el(failing, reconciler.Props{"fail": "deep"})))),
	))
	assert.Equal(t, "<div><section><p>caught: deep</p></section></div>", h.html())
}

func TestUncaughtErrorUnmountsRoot(t *testing.T) {
	var handled []error
	h := newHarness(t, reconciler.LegacyRoot, reconciler.WithUncaughtErrorHandler(func(err error) {
		handled = append(handled, err)
	}))

	h.render(el("div", nil, el(failing, nil)))
	require.Equal(t, "<div><span>fine</span></div>", h.html())

	_, err := h.r.UpdateContainer(el("div", nil, el(failing, reconciler.Props{"fail": "fatal"})), h.root, nil)
	require.Error(t, err)

	var uncaught *reconciler.UncaughtError
	require.ErrorAs(t, err, &uncaught)
	assert.ErrorIs(t, err, reconciler.ErrUncaught)
	assert.EqualError(t, uncaught.Err, "fatal")
	assert.Contains(t, uncaught.ComponentStack, "Failing")
	assert.Empty(t, h.html())
	assert.Len(t, handled, 1)

	// The root recovers on the next update.
	h.render(el("div", nil, el(failing, nil)))
	assert.Equal(t, "<div><span>fine</span></div>", h.html())
}

type failingMount struct{}

func (failingMount) Render(reconciler.Props, any) (reconciler.Node, error) {
	return el("i", nil, "mounted"), nil
}

func (failingMount) DidMount() error {
	return errors.New("mount failed")
}

func TestCommitPhaseErrorIsCaptured(t *testing.T) {
	h := newHarness(t, reconciler.LegacyRoot)
	b := derivedBoundary()
	comp := reconciler.Class("FailingMount", func(reconciler.Props, *reconciler.Updater) reconciler.Instance {
		return failingMount{}
	})

	h.render(el(b, nil, el(comp, nil)))
	assert.Equal(t, "<p>caught: mount failed</p>", h.html())
}

// cell renders one keyed row. A failing cell errors in DidUpdate.
type cell struct {
	fail bool
}

func (c cell) Render(props reconciler.Props, _ any) (reconciler.Node, error) {
	return el(props.Get("tag").(string), nil, props.Get("text")), nil
}

func (c cell) DidUpdate(reconciler.Props, any, any) error {
	if c.fail {
		return errors.New("layout boom")
	}
	return nil
}

func TestLayoutErrorKeepsSiblingMutations(t *testing.T) {
	const n = 5
	h := newHarness(t, reconciler.LegacyRoot)
	b := derivedBoundary()
	comp := reconciler.Class("Cell", func(props reconciler.Props, _ *reconciler.Updater) reconciler.Instance {
		return cell{fail: props.Get("tag") == "i"}
	})

	rows := func(prefix string) []reconciler.Node {
		out := make([]reconciler.Node, n)
		for i := range out {
			tag := "b"
			if i == n/2 {
				tag = "i"
			}
			out[i] = el(comp, reconciler.Props{
				"key":  fmt.Sprint(i),
				"tag":  tag,
				"text": fmt.Sprintf("%s%d", prefix, i),
			})
		}
		return out
	}

	h.render(el(b, nil, rows("y")))
	assert.Equal(t, "<b>y0</b><b>y1</b><i>y2</i><b>y3</b><b>y4</b>", h.html())

	h.host.reset()
	h.render(el(b, nil, rows("z")))
	assert.Equal(t, "<p>caught: layout boom</p>", h.html())

	fallback := slices.Index(h.host.ops, "place p:caught: layout boom")
	require.GreaterOrEqual(t, fallback, 0, "ops: %v", h.host.ops)
	for i := 0; i < n; i++ {
		tag := "b"
		if i == n/2 {
			tag = "i"
		}
		op := fmt.Sprintf("update %s:z%d", tag, i)
		idx := slices.Index(h.host.ops, op)
		require.GreaterOrEqual(t, idx, 0, "missing %q in %v", op, h.host.ops)
		assert.Less(t, idx, fallback, "%q ran after the fallback", op)
	}
}
