package reconciler

import (
	"iter"
	"log/slog"
	"strconv"

	ferrors "github.com/vango-dev/fiber/internal/errors"
	"github.com/vango-dev/fiber/pkg/expiration"
)

// childReconciler diffs a new child description against the current child
// fibers of returnFiber. When track is false (initial mount) no
// placements or deletions are recorded: the parent's own placement covers
// the whole subtree.
type childReconciler struct {
	r     *Renderer
	track bool
	t     expiration.Time
}

// slotKey identifies a child in the remaining-children map: its explicit
// key, or its index when it has none.
type slotKey struct {
	key   string
	index int
}

func keyOf(key string, index int) slotKey {
	if key != "" {
		return slotKey{key: key, index: -1}
	}
	return slotKey{index: index}
}

// textOf reports whether n renders as a text node.
func textOf(n Node) (string, bool) {
	switch v := n.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	}
	return "", false
}

// isEmpty reports whether n renders nothing.
func isEmpty(n Node) bool {
	switch v := n.(type) {
	case nil, bool:
		return true
	case *Element:
		return v == nil
	case *Portal:
		return v == nil
	}
	return false
}

// asList returns the child list n describes, if any.
func asList(n Node) ([]Node, bool) {
	switch v := n.(type) {
	case []Node:
		return v, true
	case []*Element:
		out := make([]Node, len(v))
		for i, el := range v {
			out[i] = el
		}
		return out, true
	case []string:
		out := make([]Node, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func invalidChild(returnFiber *Fiber, n Node) {
	panic(ferrors.Violation("F001", "child of type %T", n).
		WithComponentStack(componentStack(returnFiber)))
}

func (c *childReconciler) deleteChild(returnFiber, child *Fiber) {
	if !c.track {
		return
	}
	// Deletions are added in reverse order so they must be appended to
	// the parent's effect list right away.
	if last := returnFiber.LastEffect; last != nil {
		last.NextEffect = child
		returnFiber.LastEffect = child
	} else {
		returnFiber.FirstEffect = child
		returnFiber.LastEffect = child
	}
	child.NextEffect = nil
	child.EffectTag = Deletion
}

func (c *childReconciler) deleteRemainingChildren(returnFiber, currentFirstChild *Fiber) *Fiber {
	if !c.track {
		return nil
	}
	for child := currentFirstChild; child != nil; child = child.Sibling {
		c.deleteChild(returnFiber, child)
	}
	return nil
}

func mapRemainingChildren(currentFirstChild *Fiber) map[slotKey]*Fiber {
	existing := make(map[slotKey]*Fiber)
	for child := currentFirstChild; child != nil; child = child.Sibling {
		existing[keyOf(child.Key, child.Index)] = child
	}
	return existing
}

func (c *childReconciler) useFiber(f *Fiber, pendingProps any) *Fiber {
	clone := createWorkInProgress(f, pendingProps, c.t)
	clone.Index = 0
	clone.Sibling = nil
	return clone
}

// placeChild records newFiber at newIndex and returns the new watermark.
// A reused fiber whose old index is below the watermark moved right and
// is placed; otherwise it stays and the watermark advances.
func (c *childReconciler) placeChild(newFiber *Fiber, lastPlacedIndex, newIndex int) int {
	newFiber.Index = newIndex
	if !c.track {
		return lastPlacedIndex
	}
	if current := newFiber.Alternate; current != nil {
		oldIndex := current.Index
		if oldIndex < lastPlacedIndex {
			newFiber.EffectTag = Placement
			return lastPlacedIndex
		}
		return oldIndex
	}
	// An insertion.
	newFiber.EffectTag = Placement
	return lastPlacedIndex
}

func (c *childReconciler) placeSingleChild(newFiber *Fiber) *Fiber {
	if c.track && newFiber.Alternate == nil {
		newFiber.EffectTag = Placement
	}
	return newFiber
}

func (c *childReconciler) updateTextNode(returnFiber, current *Fiber, text string) *Fiber {
	if current == nil || current.Tag != HostText {
		created := createFiberFromText(text, returnFiber.Mode, c.t)
		created.Return = returnFiber
		return created
	}
	existing := c.useFiber(current, text)
	existing.Return = returnFiber
	return existing
}

func (c *childReconciler) updateElement(returnFiber, current *Fiber, el *Element) *Fiber {
	if current != nil && current.ElementType == el.Type {
		existing := c.useFiber(current, el.Props)
		existing.Ref = el.Ref
		existing.Return = returnFiber
		return existing
	}
	created := createFiberFromElement(el, returnFiber.Mode, c.t)
	created.Ref = el.Ref
	created.Return = returnFiber
	return created
}

func (c *childReconciler) updatePortal(returnFiber, current *Fiber, p *Portal) *Fiber {
	if current == nil || current.Tag != HostPortal ||
		!objectIs(current.StateNode.(*portalState).container, p.Container) {
		created := createFiberFromPortal(p, returnFiber.Mode, c.t)
		created.Return = returnFiber
		return created
	}
	existing := c.useFiber(current, p.Children)
	existing.Return = returnFiber
	return existing
}

func (c *childReconciler) updateFragment(returnFiber, current *Fiber, children Node, key string) *Fiber {
	if current == nil || current.Tag != FragmentNode {
		created := createFiberFromFragment(children, returnFiber.Mode, c.t, key)
		created.Return = returnFiber
		return created
	}
	existing := c.useFiber(current, children)
	existing.Return = returnFiber
	return existing
}

// createChild creates a fiber for a child with no current counterpart.
func (c *childReconciler) createChild(returnFiber *Fiber, n Node) *Fiber {
	if text, ok := textOf(n); ok {
		// Text nodes have no keys.
		created := createFiberFromText(text, returnFiber.Mode, c.t)
		created.Return = returnFiber
		return created
	}
	if isEmpty(n) {
		return nil
	}
	switch v := n.(type) {
	case *Element:
		created := createFiberFromElement(v, returnFiber.Mode, c.t)
		created.Ref = v.Ref
		created.Return = returnFiber
		return created
	case *Portal:
		created := createFiberFromPortal(v, returnFiber.Mode, c.t)
		created.Return = returnFiber
		return created
	case iter.Seq[Node]:
		created := createFiberFromFragment(v, returnFiber.Mode, c.t, "")
		created.Return = returnFiber
		return created
	}
	if _, ok := asList(n); ok {
		created := createFiberFromFragment(n, returnFiber.Mode, c.t, "")
		created.Return = returnFiber
		return created
	}
	invalidChild(returnFiber, n)
	return nil
}

// updateSlot returns a fiber for n if it matches the key of oldFiber, or
// nil to end the fast-forward pass.
func (c *childReconciler) updateSlot(returnFiber, oldFiber *Fiber, n Node) *Fiber {
	key := ""
	if oldFiber != nil {
		key = oldFiber.Key
	}

	if text, ok := textOf(n); ok {
		// Text nodes have no keys. A keyed old fiber cannot match.
		if key != "" {
			return nil
		}
		return c.updateTextNode(returnFiber, oldFiber, text)
	}
	if isEmpty(n) {
		return nil
	}
	switch v := n.(type) {
	case *Element:
		if v.Key != key {
			return nil
		}
		if v.Type == Fragment {
			return c.updateFragment(returnFiber, oldFiber, v.Props.Children(), key)
		}
		return c.updateElement(returnFiber, oldFiber, v)
	case *Portal:
		if v.Key != key {
			return nil
		}
		return c.updatePortal(returnFiber, oldFiber, v)
	case iter.Seq[Node]:
		if key != "" {
			return nil
		}
		return c.updateFragment(returnFiber, oldFiber, v, "")
	}
	if _, ok := asList(n); ok {
		if key != "" {
			return nil
		}
		return c.updateFragment(returnFiber, oldFiber, n, "")
	}
	invalidChild(returnFiber, n)
	return nil
}

func (c *childReconciler) updateFromMap(existing map[slotKey]*Fiber, returnFiber *Fiber, newIdx int, n Node) *Fiber {
	if text, ok := textOf(n); ok {
		// Text nodes have no keys, so look them up by index.
		return c.updateTextNode(returnFiber, existing[keyOf("", newIdx)], text)
	}
	if isEmpty(n) {
		return nil
	}
	switch v := n.(type) {
	case *Element:
		matched := existing[keyOf(v.Key, newIdx)]
		if v.Type == Fragment {
			return c.updateFragment(returnFiber, matched, v.Props.Children(), v.Key)
		}
		return c.updateElement(returnFiber, matched, v)
	case *Portal:
		return c.updatePortal(returnFiber, existing[keyOf(v.Key, newIdx)], v)
	case iter.Seq[Node]:
		return c.updateFragment(returnFiber, existing[keyOf("", newIdx)], v, "")
	}
	if _, ok := asList(n); ok {
		return c.updateFragment(returnFiber, existing[keyOf("", newIdx)], n, "")
	}
	invalidChild(returnFiber, n)
	return nil
}

func (c *childReconciler) warnOnDuplicateKey(returnFiber *Fiber, n Node, known map[string]struct{}) map[string]struct{} {
	el, ok := n.(*Element)
	if !ok || el == nil || el.Key == "" {
		return known
	}
	if known == nil {
		known = make(map[string]struct{})
	}
	if _, dup := known[el.Key]; dup {
		c.r.logger.Warn("reconciler: encountered two children with the same key",
			slog.String("key", el.Key),
			slog.String("parent", returnFiber.Name()))
		return known
	}
	known[el.Key] = struct{}{}
	return known
}

// reconcileChildrenArray diffs a slice of children.
//
// There is no backpointer from fibers to siblings, so the algorithm cannot
// search from both ends. It first walks old and new in lockstep while keys
// match, then deletes or inserts the tail, and finally puts what is left
// of the old children in a map keyed by key (or index) and looks each new
// child up in it.
func (c *childReconciler) reconcileChildrenArray(returnFiber, currentFirstChild *Fiber, newChildren []Node) *Fiber {
	var known map[string]struct{}
	for _, n := range newChildren {
		known = c.warnOnDuplicateKey(returnFiber, n, known)
	}

	var resultingFirstChild, previousNewFiber *Fiber

	oldFiber := currentFirstChild
	lastPlacedIndex := 0
	newIdx := 0
	var nextOldFiber *Fiber

	for ; oldFiber != nil && newIdx < len(newChildren); newIdx++ {
		if oldFiber.Index > newIdx {
			nextOldFiber = oldFiber
			oldFiber = nil
		} else {
			nextOldFiber = oldFiber.Sibling
		}
		newFiber := c.updateSlot(returnFiber, oldFiber, newChildren[newIdx])
		if newFiber == nil {
			// Empty slots such as nil children also end up here.
			if oldFiber == nil {
				oldFiber = nextOldFiber
			}
			break
		}
		if c.track && oldFiber != nil && newFiber.Alternate == nil {
			// Matched the slot but the existing fiber was not reused.
			c.deleteChild(returnFiber, oldFiber)
		}
		lastPlacedIndex = c.placeChild(newFiber, lastPlacedIndex, newIdx)
		if previousNewFiber == nil {
			resultingFirstChild = newFiber
		} else {
			previousNewFiber.Sibling = newFiber
		}
		previousNewFiber = newFiber
		oldFiber = nextOldFiber
	}

	if newIdx == len(newChildren) {
		// Reached the end of the new children. Delete the rest.
		c.deleteRemainingChildren(returnFiber, oldFiber)
		return resultingFirstChild
	}

	if oldFiber == nil {
		// No more existing children; the rest are insertions.
		for ; newIdx < len(newChildren); newIdx++ {
			newFiber := c.createChild(returnFiber, newChildren[newIdx])
			if newFiber == nil {
				continue
			}
			lastPlacedIndex = c.placeChild(newFiber, lastPlacedIndex, newIdx)
			if previousNewFiber == nil {
				resultingFirstChild = newFiber
			} else {
				previousNewFiber.Sibling = newFiber
			}
			previousNewFiber = newFiber
		}
		return resultingFirstChild
	}

	existing := mapRemainingChildren(oldFiber)

	for ; newIdx < len(newChildren); newIdx++ {
		newFiber := c.updateFromMap(existing, returnFiber, newIdx, newChildren[newIdx])
		if newFiber == nil {
			continue
		}
		if c.track && newFiber.Alternate != nil {
			// The fiber was reused; keep it out of the deletion set.
			delete(existing, keyOf(newFiber.Key, newIdx))
		}
		lastPlacedIndex = c.placeChild(newFiber, lastPlacedIndex, newIdx)
		if previousNewFiber == nil {
			resultingFirstChild = newFiber
		} else {
			previousNewFiber.Sibling = newFiber
		}
		previousNewFiber = newFiber
	}

	if c.track {
		// Whatever was not consumed is deleted. Walk the old sibling list
		// so deletions are recorded in a stable order.
		for child := oldFiber; child != nil; child = child.Sibling {
			if existing[keyOf(child.Key, child.Index)] == child {
				c.deleteChild(returnFiber, child)
			}
		}
	}

	return resultingFirstChild
}

// reconcileChildrenIterator is reconcileChildrenArray over an iterator.
// The sequence is consumed exactly once.
func (c *childReconciler) reconcileChildrenIterator(returnFiber, currentFirstChild *Fiber, seq iter.Seq[Node]) *Fiber {
	next, stop := iter.Pull(seq)
	defer stop()

	var known map[string]struct{}
	step := func() (Node, bool) {
		n, ok := next()
		if ok {
			known = c.warnOnDuplicateKey(returnFiber, n, known)
		}
		return n, ok
	}

	var resultingFirstChild, previousNewFiber *Fiber

	oldFiber := currentFirstChild
	lastPlacedIndex := 0
	newIdx := 0
	var nextOldFiber *Fiber

	n, more := step()
	for ; oldFiber != nil && more; newIdx++ {
		if oldFiber.Index > newIdx {
			nextOldFiber = oldFiber
			oldFiber = nil
		} else {
			nextOldFiber = oldFiber.Sibling
		}
		newFiber := c.updateSlot(returnFiber, oldFiber, n)
		if newFiber == nil {
			if oldFiber == nil {
				oldFiber = nextOldFiber
			}
			break
		}
		if c.track && oldFiber != nil && newFiber.Alternate == nil {
			c.deleteChild(returnFiber, oldFiber)
		}
		lastPlacedIndex = c.placeChild(newFiber, lastPlacedIndex, newIdx)
		if previousNewFiber == nil {
			resultingFirstChild = newFiber
		} else {
			previousNewFiber.Sibling = newFiber
		}
		previousNewFiber = newFiber
		oldFiber = nextOldFiber
		n, more = step()
	}

	if !more {
		c.deleteRemainingChildren(returnFiber, oldFiber)
		return resultingFirstChild
	}

	if oldFiber == nil {
		for ; more; newIdx++ {
			newFiber := c.createChild(returnFiber, n)
			if newFiber != nil {
				lastPlacedIndex = c.placeChild(newFiber, lastPlacedIndex, newIdx)
				if previousNewFiber == nil {
					resultingFirstChild = newFiber
				} else {
					previousNewFiber.Sibling = newFiber
				}
				previousNewFiber = newFiber
			}
			n, more = step()
		}
		return resultingFirstChild
	}

	existing := mapRemainingChildren(oldFiber)

	for ; more; newIdx++ {
		newFiber := c.updateFromMap(existing, returnFiber, newIdx, n)
		if newFiber != nil {
			if c.track && newFiber.Alternate != nil {
				delete(existing, keyOf(newFiber.Key, newIdx))
			}
			lastPlacedIndex = c.placeChild(newFiber, lastPlacedIndex, newIdx)
			if previousNewFiber == nil {
				resultingFirstChild = newFiber
			} else {
				previousNewFiber.Sibling = newFiber
			}
			previousNewFiber = newFiber
		}
		n, more = step()
	}

	if c.track {
		for child := oldFiber; child != nil; child = child.Sibling {
			if existing[keyOf(child.Key, child.Index)] == child {
				c.deleteChild(returnFiber, child)
			}
		}
	}

	return resultingFirstChild
}

func (c *childReconciler) reconcileSingleTextNode(returnFiber, currentFirstChild *Fiber, text string) *Fiber {
	// No need to check keys: text nodes have none.
	if currentFirstChild != nil && currentFirstChild.Tag == HostText {
		c.deleteRemainingChildren(returnFiber, currentFirstChild.Sibling)
		existing := c.useFiber(currentFirstChild, text)
		existing.Return = returnFiber
		return existing
	}
	c.deleteRemainingChildren(returnFiber, currentFirstChild)
	created := createFiberFromText(text, returnFiber.Mode, c.t)
	created.Return = returnFiber
	return created
}

func (c *childReconciler) reconcileSingleElement(returnFiber, currentFirstChild *Fiber, el *Element) *Fiber {
	for child := currentFirstChild; child != nil; child = child.Sibling {
		if child.Key != el.Key {
			c.deleteChild(returnFiber, child)
			continue
		}
		if child.ElementType == el.Type {
			c.deleteRemainingChildren(returnFiber, child.Sibling)
			var props any = el.Props
			if el.Type == Fragment {
				props = el.Props.Children()
			}
			existing := c.useFiber(child, props)
			existing.Ref = el.Ref
			existing.Return = returnFiber
			return existing
		}
		// Same key, different type: nothing else can match.
		c.deleteRemainingChildren(returnFiber, child)
		break
	}

	var created *Fiber
	if el.Type == Fragment {
		created = createFiberFromFragment(el.Props.Children(), returnFiber.Mode, c.t, el.Key)
	} else {
		created = createFiberFromElement(el, returnFiber.Mode, c.t)
		created.Ref = el.Ref
	}
	created.Return = returnFiber
	return created
}

func (c *childReconciler) reconcileSinglePortal(returnFiber, currentFirstChild *Fiber, p *Portal) *Fiber {
	for child := currentFirstChild; child != nil; child = child.Sibling {
		if child.Key != p.Key {
			c.deleteChild(returnFiber, child)
			continue
		}
		if child.Tag == HostPortal && objectIs(child.StateNode.(*portalState).container, p.Container) {
			c.deleteRemainingChildren(returnFiber, child.Sibling)
			existing := c.useFiber(child, p.Children)
			existing.Return = returnFiber
			return existing
		}
		c.deleteRemainingChildren(returnFiber, child)
		break
	}
	created := createFiberFromPortal(p, returnFiber.Mode, c.t)
	created.Return = returnFiber
	return created
}

// reconcileChildFibers returns the new first child of returnFiber.
func (c *childReconciler) reconcileChildFibers(returnFiber, currentFirstChild *Fiber, newChild Node) *Fiber {
	// An unkeyed fragment at the top level is treated as its children, so
	// <>{[...]}</> and [...] reconcile the same way.
	if el, ok := newChild.(*Element); ok && el != nil && el.Type == Fragment && el.Key == "" {
		newChild = el.Props.Children()
	}

	if text, ok := textOf(newChild); ok {
		return c.placeSingleChild(c.reconcileSingleTextNode(returnFiber, currentFirstChild, text))
	}
	if isEmpty(newChild) {
		return c.deleteRemainingChildren(returnFiber, currentFirstChild)
	}
	switch v := newChild.(type) {
	case *Element:
		return c.placeSingleChild(c.reconcileSingleElement(returnFiber, currentFirstChild, v))
	case *Portal:
		return c.placeSingleChild(c.reconcileSinglePortal(returnFiber, currentFirstChild, v))
	case iter.Seq[Node]:
		return c.reconcileChildrenIterator(returnFiber, currentFirstChild, v)
	}
	if list, ok := asList(newChild); ok {
		return c.reconcileChildrenArray(returnFiber, currentFirstChild, list)
	}
	invalidChild(returnFiber, newChild)
	return nil
}

// cloneChildFibers gives wip fresh work-in-progress children that mirror
// the current ones. It is used when wip bails out but its subtree has
// pending work.
func cloneChildFibers(current, wip *Fiber) {
	if wip.Child == nil {
		return
	}
	if current != nil && wip.Child != current.Child {
		panic(ferrors.Violation("F006", "resuming work is not supported"))
	}
	currentChild := wip.Child
	newChild := createWorkInProgress(currentChild, currentChild.PendingProps, currentChild.ExpirationTime)
	wip.Child = newChild
	newChild.Return = wip
	for currentChild.Sibling != nil {
		currentChild = currentChild.Sibling
		newChild.Sibling = createWorkInProgress(currentChild, currentChild.PendingProps, currentChild.ExpirationTime)
		newChild = newChild.Sibling
		newChild.Return = wip
	}
	newChild.Sibling = nil
}
