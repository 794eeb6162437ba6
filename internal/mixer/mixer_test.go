package mixer_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"kinescope/internal/capture"
	"kinescope/internal/mixer"
	"kinescope/internal/services"
)

type fakeSource struct {
	id       string
	rate     int
	channels int
	ch       chan []int16
}

func newFakeSource(id string, rate, channels int) *fakeSource {
	return &fakeSource{id: id, rate: rate, channels: channels, ch: make(chan []int16, 16)}
}

func (f *fakeSource) ID() string                  { return f.id }
func (f *fakeSource) Kind() capture.Kind          { return capture.KindMicrophone }
func (f *fakeSource) Start(context.Context) error { return nil }
func (f *fakeSource) Stop()                       {}
func (f *fakeSource) Err() error                  { return nil }
func (f *fakeSource) Samples() <-chan []int16     { return f.ch }
func (f *fakeSource) SampleRate() int             { return f.rate }
func (f *fakeSource) Channels() int               { return f.channels }

func collect(t *testing.T, out <-chan []int16, n int) [][]int16 {
	t.Helper()
	got := make([][]int16, 0, n)
	for len(got) < n {
		select {
		case buf, ok := <-out:
			if !ok {
				t.Fatalf("output closed after %d buffers, want %d", len(got), n)
			}
			got = append(got, buf)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d buffers, want %d", len(got), n)
		}
	}
	return got
}

func expectClosed(t *testing.T, out <-chan []int16) {
	t.Helper()
	select {
	case buf, ok := <-out:
		if ok {
			t.Fatalf("expected closed output, got buffer %v", buf)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for output to close")
	}
}

func TestSum(t *testing.T) {
	tests := []struct {
		name string
		a    []int16
		b    []int16
		want []int16
	}{
		{
			name: "both contribute",
			a:    []int16{100, -200, 3},
			b:    []int16{10, 20, -30},
			want: []int16{110, -180, -27},
		},
		{
			name: "saturates high",
			a:    []int16{32000, 32767},
			b:    []int16{32000, 1},
			want: []int16{32767, 32767},
		},
		{
			name: "saturates low",
			a:    []int16{-32000, -32768},
			b:    []int16{-32000, -1},
			want: []int16{-32768, -32768},
		},
		{
			name: "longer tail carries through",
			a:    []int16{1, 2, 3, 4},
			b:    []int16{10, 10},
			want: []int16{11, 12, 3, 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mixer.Sum(tt.a, tt.b)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Sum(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSingleSourcePassesThroughUntouched(t *testing.T) {
	src := newFakeSource("mic:default", 48000, 2)
	m := mixer.New(nil)

	mode, err := m.Start(context.Background(), src)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if mode != mixer.ModePassthrough {
		t.Fatalf("mode = %q, want %q", mode, mixer.ModePassthrough)
	}

	sent := [][]int16{{1, 2, 3}, {-4, 5}, {32767, -32768}}
	for _, buf := range sent {
		src.ch <- buf
	}
	close(src.ch)

	got := collect(t, m.Output(), len(sent))
	for i := range sent {
		if !reflect.DeepEqual(got[i], sent[i]) {
			t.Fatalf("buffer %d = %v, want %v", i, got[i], sent[i])
		}
		if &got[i][0] != &sent[i][0] {
			t.Fatalf("buffer %d was copied, want identical backing array", i)
		}
	}
	expectClosed(t, m.Output())
}

func TestTwoSourcesMixBothContributions(t *testing.T) {
	mic := newFakeSource("mic:default", 48000, 2)
	sys := newFakeSource("system:default", 48000, 2)
	m := mixer.New(nil)

	mode, err := m.Start(context.Background(), mic, sys)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if mode != mixer.ModeMixed {
		t.Fatalf("mode = %q, want %q", mode, mixer.ModeMixed)
	}

	mic.ch <- []int16{100, -200}
	mic.ch <- []int16{3, 4}
	sys.ch <- []int16{10, 20}
	sys.ch <- []int16{5, -6}
	close(mic.ch)
	close(sys.ch)

	got := collect(t, m.Output(), 2)
	want := [][]int16{{110, -180}, {8, -2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mixed output = %v, want %v", got, want)
	}
	expectClosed(t, m.Output())
}

func TestMixDegradesWhenOneSourceEnds(t *testing.T) {
	mic := newFakeSource("mic:default", 48000, 2)
	sys := newFakeSource("system:default", 48000, 2)
	m := mixer.New(nil)

	if _, err := m.Start(context.Background(), mic, sys); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sys.ch <- []int16{10, 10}
	close(sys.ch)
	mic.ch <- []int16{1, 2}
	mic.ch <- []int16{3, 4}
	mic.ch <- []int16{5, 6}
	close(mic.ch)

	got := collect(t, m.Output(), 3)
	want := [][]int16{{11, 12}, {3, 4}, {5, 6}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("output = %v, want %v", got, want)
	}
	expectClosed(t, m.Output())
	if mode := m.Mode(); mode != mixer.ModePassthrough {
		t.Fatalf("mode after degrade = %q, want %q", mode, mixer.ModePassthrough)
	}
}

func TestFormatMismatchFallsBackToFirstSource(t *testing.T) {
	mic := newFakeSource("mic:default", 48000, 2)
	sys := newFakeSource("system:default", 44100, 2)
	m := mixer.New(nil)

	mode, err := m.Start(context.Background(), mic, sys)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if mode != mixer.ModeFirstOnly {
		t.Fatalf("mode = %q, want %q", mode, mixer.ModeFirstOnly)
	}

	mic.ch <- []int16{7, 8}
	close(mic.ch)
	sys.ch <- []int16{9999, 9999}

	got := collect(t, m.Output(), 1)
	if !reflect.DeepEqual(got[0], []int16{7, 8}) {
		t.Fatalf("output = %v, want first source only", got[0])
	}
	expectClosed(t, m.Output())
}

func TestNoSourcesClosesOutput(t *testing.T) {
	m := mixer.New(nil)
	mode, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if mode != mixer.ModeSilent {
		t.Fatalf("mode = %q, want %q", mode, mixer.ModeSilent)
	}
	expectClosed(t, m.Output())
}

func TestTooManySourcesRejected(t *testing.T) {
	m := mixer.New(nil)
	_, err := m.Start(context.Background(),
		newFakeSource("a", 48000, 2),
		newFakeSource("b", 48000, 2),
		newFakeSource("c", 48000, 2),
	)
	if !errors.Is(err, services.ErrMixing) {
		t.Fatalf("error = %v, want ErrMixing", err)
	}
}

func TestCancelClosesOutput(t *testing.T) {
	src := newFakeSource("mic:default", 48000, 2)
	ctx, cancel := context.WithCancel(context.Background())
	m := mixer.New(nil)
	if _, err := m.Start(ctx, src); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	expectClosed(t, m.Output())
}
