// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
	"time"
)

// =============================================================================
// READ BUFFER POOL
// =============================================================================

// readBufPool reuses network read buffers across replies.
var readBufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 4096)
		return &b
	},
}

// =============================================================================
// READER
// =============================================================================

type readerOptions struct {
	idleTimeout time.Duration
	strict      bool
	started     time.Time
}

// Reader delivers the decoded reply as text chunks.
//
// A Reader is not safe for concurrent use, except that Close may be called
// from any goroutine. Chunk boundaries follow network reads and carry no
// meaning; only their concatenation does.
type Reader struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	body   io.ReadCloser
	dec    *Decoder
	buf    *[]byte

	watchdog *time.Timer
	idle     time.Duration

	started time.Time
	stats   Stats
	err     error // sticky terminal result, io.EOF on success

	closeOnce sync.Once
	bufMu     sync.Mutex
}

func newReader(ctx context.Context, cancel context.CancelCauseFunc, body io.ReadCloser, opts readerOptions) *Reader {
	r := &Reader{
		ctx:     ctx,
		cancel:  cancel,
		body:    body,
		dec:     NewDecoder(opts.strict),
		buf:     readBufPool.Get().(*[]byte),
		idle:    opts.idleTimeout,
		started: opts.started,
	}
	if r.idle > 0 {
		r.watchdog = time.AfterFunc(r.idle, func() {
			r.cancel(errStalled)
		})
	}
	return r
}

// Next returns the next non-empty chunk of text. It returns io.EOF once the
// server has closed a well-formed reply; any other error is a *ClientError
// and is terminal.
func (r *Reader) Next() (string, error) {
	for {
		if r.err != nil {
			return "", r.err
		}

		r.bufMu.Lock()
		if r.buf == nil {
			r.bufMu.Unlock()
			r.err = &ClientError{Type: ErrTypeCanceled, Message: "reader closed"}
			return "", r.err
		}
		n, readErr := r.body.Read(*r.buf)

		var text string
		if n > 0 {
			r.touch(n)
			var err error
			text, err = r.dec.Decode((*r.buf)[:n])
			if err != nil {
				r.bufMu.Unlock()
				r.err = err
				return "", err
			}
		}
		r.bufMu.Unlock()

		if readErr != nil {
			r.err = r.terminal(readErr)
			if r.err == io.EOF {
				tail, err := r.dec.Flush()
				if err != nil {
					r.err = err
				}
				text += tail
			}
		}

		if text != "" {
			r.stats.Chunks++
			return text, nil
		}
	}
}

// Chunks returns the reply as a sequence. Iteration ends after the final
// chunk, or after yielding a single non-nil error.
func (r *Reader) Chunks() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			text, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// Stats returns counters for the bytes received so far.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Close aborts the request if it is still running and releases the
// connection. It is safe to call more than once.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.watchdog != nil {
			r.watchdog.Stop()
		}
		r.cancel(nil)
		err = r.body.Close()

		r.bufMu.Lock()
		readBufPool.Put(r.buf)
		r.buf = nil
		r.bufMu.Unlock()
	})
	return err
}

func (r *Reader) touch(n int) {
	if r.watchdog != nil {
		r.watchdog.Reset(r.idle)
	}
	now := time.Since(r.started)
	if r.stats.Reads == 0 {
		r.stats.FirstByte = now
	}
	r.stats.Reads++
	r.stats.Bytes += int64(n)
	r.stats.Elapsed = now
}

// terminal classifies the error that ended the body read.
func (r *Reader) terminal(readErr error) error {
	if errors.Is(readErr, io.EOF) && r.ctx.Err() == nil {
		return io.EOF
	}

	switch cause := context.Cause(r.ctx); {
	case errors.Is(cause, errStalled):
		return &ClientError{Type: ErrTypeStalled, Message: "reply stream stalled", Cause: cause}
	case cause != nil:
		return &ClientError{Type: ErrTypeCanceled, Message: "request canceled", Cause: cause}
	}
	return &ClientError{Type: ErrTypeTransport, Message: "connection lost mid-reply", Cause: readErr}
}
