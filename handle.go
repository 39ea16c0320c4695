package ambient

import (
	"io"
	"sync/atomic"
)

// Handle is the ambient writer lent to an access callback. It stops
// forwarding writes, returning ErrReleased, once the callback returns or the
// owning scope exits, so a handle that escapes its callback cannot reach the
// sink.
type Handle struct {
	reg      *registration
	released atomic.Bool
}

var (
	_ io.Writer       = (*Handle)(nil)
	_ io.StringWriter = (*Handle)(nil)
)

// Write forwards p to the installed sink.
func (h *Handle) Write(p []byte) (int, error) {
	sink, err := h.target()
	if err != nil {
		return 0, err
	}
	n, err := sink.Write(p)
	h.reg.written.Add(int64(n))
	return n, err
}

// WriteString forwards s to the installed sink, using its WriteString when
// available.
func (h *Handle) WriteString(s string) (int, error) {
	sink, err := h.target()
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(sink, s)
	h.reg.written.Add(int64(n))
	return n, err
}

// Sink returns the installed writer, or nil once the handle is released.
// The returned writer must not be retained past the callback.
func (h *Handle) Sink() io.Writer {
	sink, _ := h.target()
	return sink
}

// Info describes the scope that installed the writer.
func (h *Handle) Info() ScopeInfo {
	if h == nil || h.reg == nil {
		return ScopeInfo{}
	}
	return h.reg.info.clone()
}

// Released reports whether the handle no longer forwards writes.
func (h *Handle) Released() bool {
	_, err := h.target()
	return err != nil
}

func (h *Handle) target() (io.Writer, error) {
	if h == nil || h.reg == nil || h.released.Load() || h.reg.closed.Load() {
		return nil, ErrReleased
	}
	return h.reg.sink, nil
}

func (h *Handle) release() {
	h.released.Store(true)
}
