package scenario

import (
	"time"

	"github.com/vango-dev/fiber/pkg/h"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

// builder turns Nodes into elements. Costly nodes render through the work
// component, which advances the manual clock.
type builder struct {
	work *reconciler.FunctionType
}

func newBuilder(clock *scheduler.ManualClock) *builder {
	return &builder{
		work: reconciler.Func("Work", func(_ *reconciler.Hooks, props reconciler.Props) (reconciler.Node, error) {
			if ms, ok := props.Get("cost").(int); ok {
				clock.Advance(time.Duration(ms) * time.Millisecond)
			}
			return props.Get("children"), nil
		}),
	}
}

func (b *builder) build(n *Node) reconciler.Node {
	if n.Tag == "" {
		return n.Text
	}

	args := make([]any, 0, len(n.Attrs)+len(n.Children)+2)
	for k, v := range n.Attrs {
		args = append(args, h.Prop(k, v))
	}
	if n.Text != "" {
		args = append(args, n.Text)
	}
	for _, c := range n.Children {
		args = append(args, b.build(c))
	}

	if n.Cost == 0 {
		if n.Key != "" {
			args = append(args, h.Key(n.Key))
		}
		return h.El(n.Tag, args...)
	}
	return h.C(b.work, h.Key(n.Key), h.Prop("cost", n.Cost), h.El(n.Tag, args...))
}
