package expiration

import (
	"testing"
	"time"

	"github.com/vango-dev/fiber/pkg/scheduler"
)

func TestMsRoundTrip(t *testing.T) {
	for _, ms := range []int64{0, 10, 250, 5000, 123450} {
		if got := ToMs(MsToTime(ms)); got != ms {
			t.Errorf("ToMs(MsToTime(%d)) = %d", ms, got)
		}
	}
	if got := MsToTime(19); got != MsToTime(10) {
		t.Errorf("MsToTime should truncate to 10ms units, got %v and %v", got, MsToTime(10))
	}
	if FromDuration(1500*time.Millisecond) != MsToTime(1500) {
		t.Error("FromDuration disagrees with MsToTime")
	}
}

func TestLaterTimesAreSmaller(t *testing.T) {
	if !(MsToTime(0) > MsToTime(100)) {
		t.Fatal("a later timestamp must be a smaller expiration time")
	}
	if !(Sync > Batched && Batched > MsToTime(0) && MsToTime(0) > Idle && Idle > Never && Never > NoWork) {
		t.Fatal("sentinel ordering is broken")
	}
}

func TestComputeAsyncBuckets(t *testing.T) {
	base := ComputeAsync(MsToTime(0))
	if got := ToMs(base); got != 5250 {
		t.Errorf("ToMs(ComputeAsync(0)) = %d, want 5250", got)
	}

	// Updates within one 250ms bucket coalesce.
	if got := ComputeAsync(MsToTime(100)); got != base {
		t.Errorf("ComputeAsync(100ms) = %v, want %v", got, base)
	}
	if got := ComputeAsync(MsToTime(260)); got >= base {
		t.Errorf("ComputeAsync(260ms) = %v, want < %v", got, base)
	}
}

func TestComputeInteractive(t *testing.T) {
	it := ComputeInteractive(MsToTime(0))
	if got := ToMs(it); got != 200 {
		t.Errorf("ToMs(ComputeInteractive(0)) = %d, want 200", got)
	}
	if it <= ComputeAsync(MsToTime(0)) {
		t.Error("interactive work must expire before async work")
	}
}

func TestComputeSuspense(t *testing.T) {
	short := ComputeSuspense(MsToTime(0), time.Second)
	long := ComputeSuspense(MsToTime(0), 3*time.Second)
	if short <= long {
		t.Errorf("shorter timeout must expire sooner: %v vs %v", short, long)
	}
}

func TestInferPriority(t *testing.T) {
	now := MsToTime(0)
	tests := []struct {
		name string
		t    Time
		want scheduler.Priority
	}{
		{"sync", Sync, scheduler.ImmediatePriority},
		{"never", Never, scheduler.IdlePriority},
		{"idle", Idle, scheduler.IdlePriority},
		{"interactive", ComputeInteractive(now), scheduler.UserBlockingPriority},
		{"async", ComputeAsync(now), scheduler.NormalPriority},
		{"expired", MsToTime(0), scheduler.ImmediatePriority},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := now
			if tt.name == "expired" {
				current = MsToTime(100)
			}
			if got := InferPriority(current, tt.t); got != tt.want {
				t.Errorf("InferPriority(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestComputeForFiber(t *testing.T) {
	now := MsToTime(0)
	async := ComputeAsync(now)

	tests := []struct {
		name string
		req  Request
		want Time
	}{
		{
			name: "legacy root is always sync",
			req:  Request{CurrentTime: now, Priority: scheduler.NormalPriority},
			want: Sync,
		},
		{
			name: "immediate",
			req:  Request{CurrentTime: now, Concurrent: true, Priority: scheduler.ImmediatePriority},
			want: Sync,
		},
		{
			name: "normal",
			req:  Request{CurrentTime: now, Concurrent: true, Priority: scheduler.NormalPriority},
			want: async,
		},
		{
			name: "idle",
			req:  Request{CurrentTime: now, Concurrent: true, Priority: scheduler.IdlePriority},
			want: Never,
		},
		{
			name: "inside render uses the render time",
			req: Request{CurrentTime: now, Concurrent: true, Priority: scheduler.UserBlockingPriority,
				Rendering: true, RenderTime: async},
			want: async,
		},
		{
			name: "never collides with the render in progress",
			req:  Request{CurrentTime: now, Concurrent: true, Priority: scheduler.NormalPriority, RenderTime: async},
			want: async - 1,
		},
		{
			name: "suspense config",
			req: Request{CurrentTime: now, Concurrent: true, Priority: scheduler.NormalPriority,
				Suspense: &SuspenseConfig{Timeout: time.Second}},
			want: ComputeSuspense(now, time.Second),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeForFiber(tt.req); got != tt.want {
				t.Errorf("ComputeForFiber() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeUniqueAsync(t *testing.T) {
	var c Clock
	now := MsToTime(0)

	first := c.ComputeUniqueAsync(now)
	second := c.ComputeUniqueAsync(now)
	third := c.ComputeUniqueAsync(now)
	if !(first > second && second > third) {
		t.Errorf("unique async times must strictly decrease: %v %v %v", first, second, third)
	}
	if first != ComputeAsync(now) {
		t.Errorf("first unique time = %v, want %v", first, ComputeAsync(now))
	}
}

func TestTimeString(t *testing.T) {
	if Sync.String() != "Sync" || NoWork.String() != "NoWork" {
		t.Error("sentinel names are wrong")
	}
	if got := Time(42).String(); got != "T42" {
		t.Errorf("Time(42).String() = %q", got)
	}
}
