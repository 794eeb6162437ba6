package encoder

import (
	"net"
	"sync"
	"sync/atomic"
)

// audioQueueDepth bounds buffered audio between the mixer and ffmpeg. At the
// default 10ms mix cadence this is a few seconds of headroom.
const audioQueueDepth = 384

// audioRelay feeds mixed audio to ffmpeg over a loopback TCP connection.
// Pushes never block: when the child stalls, the oldest buffer is dropped to
// make room, keeping the capture path latency-bound. The relay writes only
// what it is given, so a suspended sink produces a gap rather than silence.
type audioRelay struct {
	listener net.Listener
	queue    chan []byte
	dropped  atomic.Uint64

	mu     sync.Mutex
	closed bool
}

func newAudioRelay() (*audioRelay, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return &audioRelay{
		listener: listener,
		queue:    make(chan []byte, audioQueueDepth),
	}, nil
}

// URL returns the tcp:// address ffmpeg should read samples from.
func (r *audioRelay) URL() string {
	return "tcp://" + r.listener.Addr().String()
}

// start accepts the single ffmpeg connection and pumps queued buffers into
// it until the queue closes or the child hangs up.
func (r *audioRelay) start() {
	go func() {
		conn, err := r.listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for buf := range r.queue {
			if len(buf) == 0 {
				continue
			}
			if _, err := conn.Write(buf); err != nil {
				return
			}
		}
	}()
}

// push queues one buffer, evicting the oldest entry when full.
func (r *audioRelay) push(buf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- buf:
		return
	default:
	}
	select {
	case <-r.queue:
		r.dropped.Add(1)
	default:
	}
	select {
	case r.queue <- buf:
	default:
		r.dropped.Add(1)
	}
}

// close stops accepting pushes and lets the pump drain what is already
// queued before the connection drops.
func (r *audioRelay) close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	_ = r.listener.Close()
}

// Dropped reports how many buffers were evicted under backpressure.
func (r *audioRelay) Dropped() uint64 {
	return r.dropped.Load()
}
