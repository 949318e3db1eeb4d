package reconciler

import (
	"iter"

	ferrors "github.com/vango-dev/fiber/internal/errors"
	"github.com/vango-dev/fiber/pkg/expiration"
)

// WorkTag identifies the kind of a fiber.
type WorkTag uint8

const (
	FunctionComponent WorkTag = iota
	ClassComponent
	HostRoot
	HostPortal
	HostComponent
	HostText
	FragmentNode
	SuspenseComponent
)

func (t WorkTag) String() string {
	switch t {
	case FunctionComponent:
		return "FunctionComponent"
	case ClassComponent:
		return "ClassComponent"
	case HostRoot:
		return "HostRoot"
	case HostPortal:
		return "HostPortal"
	case HostComponent:
		return "HostComponent"
	case HostText:
		return "HostText"
	case FragmentNode:
		return "Fragment"
	case SuspenseComponent:
		return "SuspenseComponent"
	}
	return "Unknown"
}

// Mode is inherited by every fiber from its root.
type Mode uint8

const (
	NoMode Mode = 0

	// ConcurrentMode enables prioritised, interruptible rendering.
	ConcurrentMode Mode = 1 << 0
)

// Fiber is the unit of work. Every tree position has at most two fibers,
// the committed one and the work-in-progress one, linked by Alternate.
type Fiber struct {
	Tag         WorkTag
	Key         string
	ElementType any
	Type        any

	// StateNode is the host instance, the class instance wrapper, the
	// *Root of a HostRoot or the portal container state.
	StateNode any

	Return  *Fiber
	Child   *Fiber
	Sibling *Fiber
	Index   int

	Ref *Ref

	PendingProps  any
	MemoizedProps any

	// UpdateQueue holds state updates for class components and roots.
	UpdateQueue *UpdateQueue

	// MemoizedState is the class state, the root state, the suspense
	// state, or the first hook of a function component.
	MemoizedState any

	Mode Mode

	EffectTag   EffectTag
	NextEffect  *Fiber
	FirstEffect *Fiber
	LastEffect  *Fiber

	ExpirationTime      expiration.Time
	ChildExpirationTime expiration.Time

	Alternate *Fiber

	// updatePayload is the host diff computed in completeWork.
	updatePayload any

	// hookEffects points at the last effect of a circular list.
	hookEffects *hookEffect
}

// Name returns a readable name for the fiber, used in component stacks.
func (f *Fiber) Name() string {
	switch f.Tag {
	case HostRoot:
		return "HostRoot"
	case HostText:
		return "#text"
	case HostPortal:
		return "Portal"
	case FragmentNode:
		return "Fragment"
	}
	return componentName(f.Type)
}

// componentStack lists the fiber and its ancestors, innermost first.
func componentStack(f *Fiber) []string {
	var stack []string
	for ; f != nil; f = f.Return {
		if f.Tag == HostText {
			continue
		}
		stack = append(stack, f.Name())
	}
	return stack
}

type portalState struct {
	container any
}

func newFiber(tag WorkTag, pendingProps any, key string, mode Mode) *Fiber {
	return &Fiber{
		Tag:          tag,
		Key:          key,
		PendingProps: pendingProps,
		Mode:         mode,
	}
}

// createWorkInProgress returns the alternate of current prepared for a new
// render. The alternate is reused when it exists.
func createWorkInProgress(current *Fiber, pendingProps any, t expiration.Time) *Fiber {
	wip := current.Alternate
	if wip == nil {
		wip = newFiber(current.Tag, pendingProps, current.Key, current.Mode)
		wip.ElementType = current.ElementType
		wip.Type = current.Type
		wip.StateNode = current.StateNode

		wip.Alternate = current
		current.Alternate = wip
	} else {
		wip.PendingProps = pendingProps

		// The effect list is no longer valid.
		wip.EffectTag = NoEffect
		wip.NextEffect = nil
		wip.FirstEffect = nil
		wip.LastEffect = nil
	}

	wip.ChildExpirationTime = current.ChildExpirationTime
	wip.ExpirationTime = current.ExpirationTime

	wip.Child = current.Child
	wip.MemoizedProps = current.MemoizedProps
	wip.MemoizedState = current.MemoizedState
	wip.UpdateQueue = current.UpdateQueue
	wip.hookEffects = current.hookEffects

	wip.Sibling = current.Sibling
	wip.Index = current.Index
	wip.Ref = current.Ref

	return wip
}

func createHostRootFiber(tag RootTag) *Fiber {
	mode := NoMode
	if tag == ConcurrentRoot {
		mode = ConcurrentMode
	}
	return newFiber(HostRoot, nil, "", mode)
}

// createFiberFromElement panics with F007 for unsupported element types.
func createFiberFromElement(el *Element, mode Mode, t expiration.Time) *Fiber {
	var tag WorkTag
	switch typ := el.Type.(type) {
	case string:
		tag = HostComponent
	case *FunctionType:
		if typ == nil || typ.Render == nil {
			panic(ferrors.Violation("F007", "nil function component"))
		}
		tag = FunctionComponent
	case *ClassType:
		if typ == nil || typ.New == nil {
			panic(ferrors.Violation("F007", "class component without constructor"))
		}
		tag = ClassComponent
	case FragmentType:
		return createFiberFromFragment(el.Props.Children(), mode, t, el.Key)
	case SuspenseType:
		tag = SuspenseComponent
	default:
		panic(ferrors.Violation("F007", "element type %T", el.Type))
	}
	f := newFiber(tag, el.Props, el.Key, mode)
	f.ElementType = el.Type
	f.Type = el.Type
	f.ExpirationTime = t
	return f
}

func createFiberFromFragment(children Node, mode Mode, t expiration.Time, key string) *Fiber {
	f := newFiber(FragmentNode, children, key, mode)
	f.ElementType = Fragment
	f.ExpirationTime = t
	return f
}

func createFiberFromText(text string, mode Mode, t expiration.Time) *Fiber {
	f := newFiber(HostText, text, "", mode)
	f.ExpirationTime = t
	return f
}

func createFiberFromPortal(p *Portal, mode Mode, t expiration.Time) *Fiber {
	f := newFiber(HostPortal, p.Children, p.Key, mode)
	f.ExpirationTime = t
	f.StateNode = &portalState{container: p.Container}
	return f
}

// Walk yields the committed tree below f in depth-first order.
func Walk(f *Fiber) iter.Seq[*Fiber] {
	return func(yield func(*Fiber) bool) {
		if f == nil {
			return
		}
		node := f
		for {
			if !yield(node) {
				return
			}
			if node.Child != nil {
				node.Child.Return = node
				node = node.Child
				continue
			}
			for node.Sibling == nil {
				if node.Return == nil || node == f || node.Return == f {
					return
				}
				node = node.Return
			}
			if node == f {
				return
			}
			node.Sibling.Return = node.Return
			node = node.Sibling
		}
	}
}
