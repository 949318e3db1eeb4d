package commitlog

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/vdom"
)

// Record is one commit: the host patches it applied and how long the three
// commit passes took.
type Record struct {
	// Seq numbers commits from 1 in the order they finished.
	Seq uint64 `json:"seq"`

	// Root is the root tag ("legacy" or "concurrent").
	Root string `json:"root"`

	// ExpirationTime is the level the commit rendered at.
	ExpirationTime expiration.Time `json:"expiration"`

	// Effects is the number of effects the commit applied. It can be
	// larger than len(Patches): effects on components touch no host node.
	Effects int `json:"effects"`

	Patches  []vdom.Patch  `json:"patches"`
	Duration time.Duration `json:"duration_ns"`
	At       time.Time     `json:"at"`
}

// Encode writes records as JSON lines.
func Encode(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("commitlog: encode record %d: %w", records[i].Seq, err)
		}
	}
	return nil
}

// Decode reads JSON lines written by Encode. Patch snapshots are decoded
// as plain nodes; handlers do not survive the round trip.
func Decode(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return out, fmt.Errorf("commitlog: line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
