package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/fiber/pkg/commitlog"
	"github.com/vango-dev/fiber/pkg/h"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/render"
	"github.com/vango-dev/fiber/pkg/scheduler"
	"github.com/vango-dev/fiber/pkg/telemetry"
	"github.com/vango-dev/fiber/pkg/vdom"
)

type rig struct {
	srv     *Server
	loop    *scheduler.Loop
	r       *reconciler.Renderer
	root    *reconciler.Root
	commits *commitlog.Log
	stop    func()
}

func newRig(t *testing.T) *rig {
	t.Helper()

	sched := scheduler.New()
	loop := scheduler.NewLoop(sched, scheduler.LoopConfig{})
	host := vdom.NewHost(sched)
	commits := commitlog.New(host)
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(telemetry.WithRegistry(reg))
	r := reconciler.New(host, sched, reconciler.WithObserver(telemetry.Multi(commits, metrics)))
	container := host.NewContainer()
	root := r.CreateContainer(container, reconciler.LegacyRoot)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)

	srv := New(&Config{Gatherer: reg, PingInterval: time.Second}, loop, container, commits, nil)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &rig{srv: srv, loop: loop, r: r, root: root, commits: commits, stop: stop}
}

func (rg *rig) render(t *testing.T, node reconciler.Node) {
	t.Helper()
	var err error
	require.NoError(t, rg.srv.onLoop(context.Background(), func() {
		_, err = rg.r.UpdateContainer(node, rg.root, nil)
	}))
	require.NoError(t, err)
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func list(items ...string) reconciler.Node {
	children := make([]any, 0, len(items))
	for _, it := range items {
		children = append(children, h.Li(h.Key(it), it))
	}
	return h.Ul(children...)
}

func TestHealthz(t *testing.T) {
	rg := newRig(t)
	rg.render(t, h.Section(list("a"), h.Button(h.OnClick(func() {}), "go")))

	rec := get(t, rg.srv, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Commits)
	// Container, section, ul, li and button.
	assert.Equal(t, 5, body.Nodes)
	assert.Equal(t, 1, body.Interactive)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestHealthzLoopStopped(t *testing.T) {
	rg := newRig(t)
	rg.stop()

	rec := get(t, rg.srv, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unavailable")

	rec = get(t, rg.srv, "/tree")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTree(t *testing.T) {
	rg := newRig(t)
	rg.render(t, list("a", "b"))

	rec := get(t, rg.srv, "/tree")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var tree vdom.VNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tree))
	assert.Equal(t, "<ul><li>a</li><li>b</li></ul>", render.ToHTML(&tree))
}

func TestTreeHTML(t *testing.T) {
	rg := newRig(t)
	rg.render(t, h.P("hello"))

	rec := get(t, rg.srv, "/tree?format=html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "<p>hello</p>")
}

func TestTreeSubtreeByHID(t *testing.T) {
	rg := newRig(t)
	rg.render(t, list("a", "b"))

	rec := get(t, rg.srv, "/tree")
	require.Equal(t, http.StatusOK, rec.Code)
	var tree vdom.VNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tree))
	require.Len(t, tree.Children, 1)
	require.Len(t, tree.Children[0].Children, 2)
	hid := tree.Children[0].Children[1].HID
	require.NotEmpty(t, hid)

	rec = get(t, rg.srv, "/tree?hid="+hid)
	require.Equal(t, http.StatusOK, rec.Code)
	var sub vdom.VNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, hid, sub.HID)
	assert.Equal(t, "<li>b</li>", render.ToHTML(&sub))

	rec = get(t, rg.srv, "/tree?hid=nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommits(t *testing.T) {
	rg := newRig(t)
	rg.render(t, list("a", "b"))
	rg.render(t, list("b", "a"))
	rg.render(t, list("b"))

	rec := get(t, rg.srv, "/commits")
	require.Equal(t, http.StatusOK, rec.Code)
	records, err := commitlog.Decode(rec.Body)
	require.NoError(t, err)
	require.Len(t, records, 3)

	rec = get(t, rg.srv, "/commits?since=2")
	records, err = commitlog.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(3), records[0].Seq)

	rec = get(t, rg.srv, "/commits?since=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics(t *testing.T) {
	rg := newRig(t)
	rg.render(t, list("a"))

	rec := get(t, rg.srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fiber_commits_total 1")
}

func TestMetricsRouteNeedsGatherer(t *testing.T) {
	sched := scheduler.New()
	host := vdom.NewHost(sched)
	srv := New(nil, scheduler.NewLoop(sched, scheduler.LoopConfig{}), host.NewContainer(), commitlog.New(host), nil)
	defer srv.Shutdown(context.Background())

	rec := get(t, srv, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocketStreamsCommits(t *testing.T) {
	rg := newRig(t)
	ts := httptest.NewServer(rg.srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return rg.srv.hub.len() == 1 }, 2*time.Second, 10*time.Millisecond)

	rg.render(t, list("a", "b"))
	rg.render(t, list("b", "a"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for seq := uint64(1); seq <= 2; seq++ {
		typ, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, typ)

		var rec commitlog.Record
		require.NoError(t, json.Unmarshal(data, &rec))
		assert.Equal(t, seq, rec.Seq)
		assert.NotEmpty(t, rec.Patches)
	}
}

func TestShutdownClosesClients(t *testing.T) {
	rg := newRig(t)
	ts := httptest.NewServer(rg.srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return rg.srv.hub.len() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, rg.srv.Shutdown(context.Background()))
	assert.Zero(t, rg.srv.hub.len())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	// Commits after shutdown are not broadcast.
	rg.render(t, list("a"))
	assert.Zero(t, rg.srv.hub.len())
}

func TestHubDropsSlowClient(t *testing.T) {
	hb := newHub(&Config{SendBuffer: 1}, discardLogger())
	c := hb.register(nil)

	hb.broadcast(commitlog.Record{Seq: 1})
	assert.Equal(t, 1, hb.len())
	hb.broadcast(commitlog.Record{Seq: 2})
	assert.Zero(t, hb.len())

	data, ok := <-c.send
	require.True(t, ok)
	assert.Contains(t, string(data), `"seq":1`)
	_, ok = <-c.send
	assert.False(t, ok)

	// Unregistering a dropped client is a no-op.
	hb.unregister(c)
}

func TestServeStopsOnCancel(t *testing.T) {
	rg := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- rg.srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
