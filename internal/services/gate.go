package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Gate serializes every outbound request to one platform and spaces them by 1s / rate.
//
// Requests are dispatched strictly in enqueue order by a single drain loop. Each request is
// awaited (headers and body) before the loop sleeps for the interval and takes the next one.
// The loop starts on the first enqueue and exits when the queue is empty.
//
// Gate implements [http.RoundTripper], so adapters use it as the transport of an [http.Client].
type Gate struct {
	name     string
	interval time.Duration
	next     http.RoundTripper
	logger   *log.Logger
	sleep    func(time.Duration)

	mu       sync.Mutex
	queue    []*pending
	draining bool
	enqueued uint64
}

type pending struct {
	req  *http.Request
	done chan result
}

type result struct {
	resp *http.Response
	err  error
}

// NewGate creates a gate allowing rateLimit requests per second through next.
//
// next defaults to [http.DefaultTransport]. A rateLimit of zero or less disables spacing.
func NewGate(name string, rateLimit int, next http.RoundTripper, logger *log.Logger) *Gate {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = log.Default()
	}

	var interval time.Duration
	if rateLimit > 0 {
		interval = time.Second / time.Duration(rateLimit)
	}

	return &Gate{
		name:     name,
		interval: interval,
		next:     next,
		logger:   logger.With("component", "gate", "platform", name),
		sleep:    time.Sleep,
	}
}

// Interval returns the pause between two dispatches.
func (g *Gate) Interval() time.Duration {
	return g.interval
}

// Pending returns the number of requests waiting to be dispatched.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// RoundTrip implements [http.RoundTripper].
func (g *Gate) RoundTrip(req *http.Request) (*http.Response, error) {
	return g.Enqueue(req)
}

// Enqueue appends req to the queue and blocks until it has been dispatched or req's context is done.
//
// A caller that stops waiting does not remove its request: it is still sent in order and the
// response is discarded. The returned response body is fully buffered.
func (g *Gate) Enqueue(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	p := &pending{
		req:  req.WithContext(context.WithoutCancel(ctx)),
		done: make(chan result, 1),
	}

	g.mu.Lock()
	g.queue = append(g.queue, p)
	g.enqueued++
	start := !g.draining
	g.draining = true
	depth := len(g.queue)
	g.mu.Unlock()

	g.logger.Debug("request queued", "method", req.Method, "path", req.URL.Path, "depth", depth)

	if start {
		go g.drain()
	}

	select {
	case r := <-p.done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Gate) drain() {
	for {
		g.mu.Lock()
		if len(g.queue) == 0 {
			g.draining = false
			g.mu.Unlock()
			return
		}
		p := g.queue[0]
		g.queue[0] = nil
		g.queue = g.queue[1:]
		g.mu.Unlock()

		p.done <- g.dispatch(p.req)

		if g.interval > 0 {
			g.sleep(g.interval)
		}
	}
}

// dispatch sends one request and buffers its body. A panic in the inner transport becomes an error.
func (g *Gate) dispatch(req *http.Request) (r result) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("transport panicked", "path", req.URL.Path, "panic", rec)
			r = result{err: fmt.Errorf("%s request panicked: %v", g.name, rec)}
		}
	}()

	resp, err := g.next.RoundTrip(req)
	if err != nil {
		g.logger.Warn("request failed", "path", req.URL.Path, "error", err)
		return result{err: err}
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return result{err: fmt.Errorf("failed to read %s response: %w", g.name, err)}
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	g.logger.Debug("request done", "path", req.URL.Path, "status", resp.StatusCode, "bytes", len(body))
	return result{resp: resp}
}
