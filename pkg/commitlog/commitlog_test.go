package commitlog_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/fiber/pkg/commitlog"
	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/h"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/scheduler"
	"github.com/vango-dev/fiber/pkg/vdom"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type rig struct {
	sched *scheduler.Scheduler
	r     *reconciler.Renderer
	root  *reconciler.Root
	log   *commitlog.Log
}

func newRig(t *testing.T, opts ...commitlog.Option) *rig {
	t.Helper()
	sched := scheduler.New(scheduler.WithClock(scheduler.NewManualClock()))
	host := vdom.NewHost(sched)
	log := commitlog.New(host, append([]commitlog.Option{commitlog.WithNow(func() time.Time { return epoch })}, opts...)...)
	r := reconciler.New(host, sched, reconciler.WithObserver(log))
	return &rig{sched: sched, r: r, root: r.CreateContainer(host.NewContainer(), reconciler.LegacyRoot), log: log}
}

func (g *rig) render(t *testing.T, n reconciler.Node) {
	t.Helper()
	_, err := g.r.UpdateContainer(n, g.root, nil)
	require.NoError(t, err)
	require.NoError(t, g.sched.FlushAll())
}

func list(keys ...string) reconciler.Node {
	return h.Ul(h.Range(keys, func(k string, _ int) reconciler.Node {
		return h.Li(h.Key(k), k)
	}))
}

func TestLogRecordsEachCommit(t *testing.T) {
	g := newRig(t)

	g.render(t, list("a", "b"))
	g.render(t, list("b", "a"))

	records := g.log.Records()
	require.Len(t, records, 2)

	first, second := records[0], records[1]
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, "legacy", first.Root)
	assert.Equal(t, expiration.Sync, first.ExpirationTime)
	assert.Equal(t, epoch, first.At)

	require.Len(t, first.Patches, 1)
	assert.Equal(t, vdom.PatchInsertNode, first.Patches[0].Op)
	require.Len(t, second.Patches, 1)
	assert.Equal(t, vdom.PatchMoveNode, second.Patches[0].Op)
	assert.GreaterOrEqual(t, second.Effects, 1)
}

func TestLogLimit(t *testing.T) {
	g := newRig(t, commitlog.WithLimit(2))
	for _, s := range []string{"a", "b", "c"} {
		g.render(t, h.P(s))
	}

	records := g.log.Records()
	require.Len(t, records, 2)
	assert.Equal(t, uint64(2), records[0].Seq)
	last, ok := g.log.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(3), last.Seq)
}

func TestSubscribe(t *testing.T) {
	g := newRig(t)

	var seen []uint64
	cancel := g.log.Subscribe(func(r commitlog.Record) { seen = append(seen, r.Seq) })
	g.render(t, h.P("a"))
	cancel()
	g.render(t, h.P("b"))

	assert.Equal(t, []uint64{1}, seen)
	assert.Equal(t, 2, g.log.Len())
}

func TestEncodeDecode(t *testing.T) {
	g := newRig(t)
	g.render(t, h.Div(h.Class("box"), h.Button(h.OnClick(func() {}), "go")))

	var buf bytes.Buffer
	require.NoError(t, commitlog.Encode(&buf, g.log.Records()))

	decoded, err := commitlog.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, decoded, 1)

	p := decoded[0].Patches[0]
	assert.Equal(t, vdom.PatchInsertNode, p.Op)
	require.NotNil(t, p.Node)
	assert.Equal(t, vdom.KindElement, p.Node.Kind)
	assert.Equal(t, "box", p.Node.Props["class"])
	require.Len(t, p.Node.Children, 1)
	button := p.Node.Children[0]
	assert.Same(t, p.Node, button.Parent)
	assert.True(t, button.IsInteractive())
	assert.Equal(t, "go", button.Text)
}

func TestDecodeReportsLine(t *testing.T) {
	_, err := commitlog.Decode(bytes.NewBufferString("{\"seq\":1}\n\n{\"patches\":[{\"op\":\"Bogus\"}]}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestFileSink(t *testing.T) {
	g := newRig(t)
	g.render(t, h.P("a"))
	g.render(t, h.P("b"))

	path := filepath.Join(t.TempDir(), "logs", "commits.jsonl")
	sink := commitlog.NewFileSink(path)
	require.NoError(t, g.log.Flush(context.Background(), sink))
	assert.Zero(t, g.log.Len())

	g.render(t, h.P("c"))
	require.NoError(t, g.log.Flush(context.Background(), sink))

	records, err := commitlog.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint64(3), records[2].Seq)
}

type failingSink struct{}

func (failingSink) Write(context.Context, []commitlog.Record) error { return errors.New("down") }

func TestFlushKeepsRecordsOnError(t *testing.T) {
	g := newRig(t)
	g.render(t, h.P("a"))

	require.Error(t, g.log.Flush(context.Background(), failingSink{}))
	assert.Equal(t, 1, g.log.Len())
}

type sinkFunc func(context.Context, []commitlog.Record) error

func (f sinkFunc) Write(ctx context.Context, records []commitlog.Record) error { return f(ctx, records) }

func TestFailedFlushRespectsLimit(t *testing.T) {
	g := newRig(t, commitlog.WithLimit(2))
	g.render(t, h.P("a"))
	g.render(t, h.P("b"))

	// Commits land while the sink is writing, then the write fails.
	sink := sinkFunc(func(_ context.Context, records []commitlog.Record) error {
		assert.Len(t, records, 2)
		g.render(t, h.P("c"))
		g.render(t, h.P("d"))
		return errors.New("down")
	})
	require.Error(t, g.log.Flush(context.Background(), sink))

	records := g.log.Records()
	require.Len(t, records, 2)
	assert.Equal(t, uint64(3), records[0].Seq)
	assert.Equal(t, uint64(4), records[1].Seq)
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink(t *testing.T) {
	g := newRig(t)
	g.render(t, list("a"))
	g.render(t, list("a", "b"))

	client := &fakeS3{}
	sink := commitlog.NewS3Sink(client, "bucket", "commits/")
	require.NoError(t, g.log.Flush(context.Background(), sink))

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "bucket", *in.Bucket)
	assert.Regexp(t, `^commits/\d{8}T\d{6}Z-00000001\.jsonl$`, *in.Key)
	assert.Equal(t, "2", in.Metadata["last-seq"])

	records, err := commitlog.Decode(bytes.NewReader(client.bodies[0]))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestS3SinkError(t *testing.T) {
	client := &fakeS3{err: errors.New("access denied")}
	sink := commitlog.NewS3Sink(client, "bucket", "")
	err := sink.Write(context.Background(), []commitlog.Record{{Seq: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestTee(t *testing.T) {
	var a, b bytes.Buffer
	sink := commitlog.Tee(commitlog.NewWriterSink(&a), failingSink{}, commitlog.NewWriterSink(&b))

	err := sink.Write(context.Background(), []commitlog.Record{{Seq: 7}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, a.String(), b.String())
	assert.Contains(t, a.String(), `"seq":7`)
}

func TestFlushEveryFlushesOnCancel(t *testing.T) {
	g := newRig(t)
	g.render(t, h.P("a"))
	g.render(t, h.P("b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	require.NoError(t, g.log.FlushEvery(ctx, time.Hour, commitlog.NewWriterSink(&buf)))
	assert.Zero(t, g.log.Len())

	records, err := commitlog.Decode(&buf)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
