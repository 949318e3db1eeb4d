package reconciler

import (
	"time"

	"github.com/vango-dev/fiber/pkg/scheduler"
)

// HostConfig performs the actual tree mutations on the host. The
// reconciler calls it only from the complete and commit phases; render
// work that is discarded never touches the host.
type HostConfig interface {
	// CreateInstance creates a detached host node for an element.
	CreateInstance(typ string, props Props, rootContainer any) any

	// CreateTextInstance creates a detached text node.
	CreateTextInstance(text string, rootContainer any) any

	// AppendInitialChild attaches child to a parent that is not yet
	// part of the committed tree.
	AppendInitialChild(parent, child any)

	// FinalizeInitialChildren applies the initial props. It returns true
	// if CommitMount must be called once the node is attached.
	FinalizeInitialChildren(inst any, typ string, props Props) bool

	// PrepareUpdate diffs props and returns an opaque payload, or nil if
	// nothing changed.
	PrepareUpdate(inst any, typ string, oldProps, newProps Props) any

	CommitUpdate(inst any, payload any, typ string, oldProps, newProps Props)
	CommitTextUpdate(textInst any, oldText, newText string)
	CommitMount(inst any, typ string, props Props)

	AppendChild(parent, child any)
	AppendChildToContainer(container, child any)
	InsertBefore(parent, child, before any)
	InsertInContainerBefore(container, child, before any)
	RemoveChild(parent, child any)
	RemoveChildFromContainer(container, child any)

	// ShouldSetTextContent reports whether the element manages its text
	// content itself instead of having a text child.
	ShouldSetTextContent(typ string, props Props) bool
	ResetTextContent(inst any)

	// PrepareForCommit and ResetAfterCommit bracket the mutation pass.
	PrepareForCommit(container any)
	ResetAfterCommit(container any)

	GetPublicInstance(inst any) any

	// ScheduleTimeout runs fn after d. It is used for the suspense
	// fallback throttle.
	ScheduleTimeout(fn func(), d time.Duration) any
	CancelTimeout(handle any)
}

// Scheduler is the cooperative task queue the reconciler runs on.
// *scheduler.Scheduler implements it.
type Scheduler interface {
	ScheduleCallback(p scheduler.Priority, job scheduler.Job, opts ...scheduler.CallbackOption) *scheduler.Task
	CancelCallback(t *scheduler.Task)
	ShouldYield() bool
	Now() time.Duration
	RequestPaint()
	CurrentPriority() scheduler.Priority
	RunWithPriority(p scheduler.Priority, fn func())
}

var _ Scheduler = (*scheduler.Scheduler)(nil)
