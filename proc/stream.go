package proc

import (
	"context"
	"io"
	"sync"
	"time"
)

const (
	frameBuffer  = 100
	silenceAfter = 100 * time.Millisecond
)

// StreamProvider feeds encoded opus frames to a voice connection.
// A nil frame marks the end of the stream.
type StreamProvider struct {
	ctx      context.Context
	frames   chan []byte
	OnFinish func()
	once     sync.Once
}

func NewStreamProvider(ctx context.Context) *StreamProvider {
	return &StreamProvider{ctx: ctx, frames: make(chan []byte, frameBuffer)}
}

// Close fires OnFinish. Only the first call has an effect.
func (p *StreamProvider) Close() {
	p.once.Do(func() {
		if p.OnFinish != nil {
			p.OnFinish()
		}
	})
}

func (p *StreamProvider) PushFrame(f []byte) {
	select {
	case p.frames <- f:
	case <-p.ctx.Done():
	}
}

func (p *StreamProvider) ProvideOpusFrame() ([]byte, error) {
	select {
	case f := <-p.frames:
		if f == nil {
			p.Close()
			return nil, io.EOF
		}
		return f, nil
	case <-p.ctx.Done():
		p.Close()
		return nil, io.EOF
	case <-time.After(silenceAfter):
		return nil, nil // Silence
	}
}
