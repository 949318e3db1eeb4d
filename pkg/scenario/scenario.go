package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/fiber/internal/errors"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

// Flush modes for a step.
const (
	FlushAll   = "all"   // run frames until no due work remains
	FlushFrame = "frame" // run a single frame
	FlushNone  = "none"  // leave the work queued
)

// Scenario is a scripted sequence of renders against one root.
type Scenario struct {
	Name string `yaml:"name"`

	// Mode is "legacy" (default) or "concurrent".
	Mode string `yaml:"mode"`

	// FrameBudget is the scheduler frame length in milliseconds
	// (default: 5).
	FrameBudget int `yaml:"frameBudget"`

	Steps []Step `yaml:"steps"`

	// Path is the file the scenario was loaded from.
	Path string `yaml:"-"`
}

// Step is one action. A step renders, advances the clock, flushes, checks
// the host tree, or any combination of those in that order.
type Step struct {
	// Render is the tree to pass to UpdateContainer.
	Render *Node `yaml:"render,omitempty"`

	// Priority is the scheduler priority the update is issued at:
	// immediate, user-blocking, normal (default), low or idle.
	Priority string `yaml:"priority,omitempty"`

	// Unique renders in an async batch of its own that never merges with
	// another step's update. Concurrent mode only.
	Unique bool `yaml:"unique,omitempty"`

	// Advance moves the scheduler clock forward, in milliseconds.
	Advance int `yaml:"advance,omitempty"`

	// Flush is all (default), frame or none.
	Flush string `yaml:"flush,omitempty"`

	// Expect is the HTML the container must hold after the step.
	Expect *string `yaml:"expect,omitempty"`
}

// Node describes an element or a text child.
//
//	tag: li
//	key: a
//	attrs: {class: item}
//	text: first
//	cost: 2
//
// A node with only text is a text child. Cost is how many milliseconds of
// scheduler time rendering the node takes; it makes concurrent renders
// yield.
type Node struct {
	Tag      string            `yaml:"tag,omitempty"`
	Key      string            `yaml:"key,omitempty"`
	Attrs    map[string]string `yaml:"attrs,omitempty"`
	Text     string            `yaml:"text,omitempty"`
	Cost     int               `yaml:"cost,omitempty"`
	Children []*Node           `yaml:"children,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("F080").WithSubject("%s", path).Wrap(err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	sc.Path = path
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.New("F080").WithSubject("yaml").Wrap(err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks modes, priorities and flush values.
func (sc *Scenario) Validate() error {
	if _, err := sc.rootTag(); err != nil {
		return err
	}
	if sc.FrameBudget < 0 {
		return invalid("frameBudget must not be negative")
	}
	if len(sc.Steps) == 0 {
		return invalid("no steps")
	}
	for i, st := range sc.Steps {
		if st.Render == nil && st.Advance == 0 && st.Flush == "" && st.Expect == nil {
			return invalid("step %d does nothing", i+1)
		}
		if st.Advance < 0 {
			return invalid("step %d: advance must not be negative", i+1)
		}
		if _, err := st.priority(); err != nil {
			return invalid("step %d: %v", i+1, err)
		}
		if st.Unique {
			if st.Render == nil {
				return invalid("step %d: unique needs a render", i+1)
			}
			if tag, _ := sc.rootTag(); tag != reconciler.ConcurrentRoot {
				return invalid("step %d: unique needs concurrent mode", i+1)
			}
		}
		switch st.Flush {
		case "", FlushAll, FlushFrame, FlushNone:
		default:
			return invalid("step %d: unknown flush %q", i+1, st.Flush)
		}
		if st.Render != nil {
			if err := st.Render.validate(); err != nil {
				return invalid("step %d: %v", i+1, err)
			}
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.New("F082").WithSubject(format, args...)
}

func (sc *Scenario) rootTag() (reconciler.RootTag, error) {
	switch sc.Mode {
	case "", "legacy":
		return reconciler.LegacyRoot, nil
	case "concurrent":
		return reconciler.ConcurrentRoot, nil
	default:
		return 0, invalid("unknown mode %q", sc.Mode)
	}
}

func (sc *Scenario) frameBudget() time.Duration {
	if sc.FrameBudget == 0 {
		return 5 * time.Millisecond
	}
	return time.Duration(sc.FrameBudget) * time.Millisecond
}

func (st Step) priority() (scheduler.Priority, error) {
	if st.Priority == "" {
		return scheduler.NormalPriority, nil
	}
	p, ok := scheduler.ParsePriority(st.Priority)
	if !ok {
		return 0, fmt.Errorf("unknown priority %q", st.Priority)
	}
	return p, nil
}

func (n *Node) validate() error {
	if n == nil {
		return fmt.Errorf("empty node")
	}
	if n.Tag == "" {
		if n.Key != "" || len(n.Attrs) > 0 || len(n.Children) > 0 || n.Cost != 0 {
			return fmt.Errorf("text node %q can only have text", n.Text)
		}
		return nil
	}
	if n.Cost < 0 {
		return fmt.Errorf("<%s>: cost must not be negative", n.Tag)
	}
	seen := map[string]bool{}
	for _, c := range n.Children {
		if err := c.validate(); err != nil {
			return err
		}
		if c.Key != "" {
			if seen[c.Key] {
				return fmt.Errorf("<%s>: duplicate key %q", n.Tag, c.Key)
			}
			seen[c.Key] = true
		}
	}
	return nil
}
