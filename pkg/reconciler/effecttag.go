package reconciler

import "strings"

// EffectTag records what the commit phase must do with a fiber.
type EffectTag uint16

const (
	NoEffect EffectTag = 0

	// PerformedWork is read by profilers only.
	PerformedWork EffectTag = 1 << 0

	Placement          EffectTag = 1 << 1
	UpdateEffect       EffectTag = 1 << 2
	PlacementAndUpdate           = Placement | UpdateEffect
	Deletion           EffectTag = 1 << 3
	ContentReset       EffectTag = 1 << 4
	Callback           EffectTag = 1 << 5
	DidCapture         EffectTag = 1 << 6
	RefEffect          EffectTag = 1 << 7
	Snapshot           EffectTag = 1 << 8
	Passive            EffectTag = 1 << 9

	// LifecycleEffectMask covers every tag that produces a commit-time
	// side effect.
	LifecycleEffectMask = UpdateEffect | Callback | RefEffect | Snapshot | Passive

	// HostEffectMask covers the tags that survive an unwind.
	HostEffectMask EffectTag = 1<<10 - 1

	Incomplete    EffectTag = 1 << 10
	ShouldCapture EffectTag = 1 << 11
)

var effectTagNames = []struct {
	tag  EffectTag
	name string
}{
	{PerformedWork, "PerformedWork"},
	{Placement, "Placement"},
	{UpdateEffect, "Update"},
	{Deletion, "Deletion"},
	{ContentReset, "ContentReset"},
	{Callback, "Callback"},
	{DidCapture, "DidCapture"},
	{RefEffect, "Ref"},
	{Snapshot, "Snapshot"},
	{Passive, "Passive"},
	{Incomplete, "Incomplete"},
	{ShouldCapture, "ShouldCapture"},
}

// Has reports whether all bits of other are set.
func (t EffectTag) Has(other EffectTag) bool {
	return t&other == other
}

func (t EffectTag) String() string {
	if t == NoEffect {
		return "NoEffect"
	}
	var parts []string
	for _, n := range effectTagNames {
		if t&n.tag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
