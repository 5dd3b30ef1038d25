package audio

import (
	"context"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
)

type encoded struct {
	data  []byte
	mime  string
	epoch uint64
}

// Decoder decodes inbound payloads off the receive path, one at a time so
// that chunk order is kept.
type Decoder struct {
	in      chan encoded
	onChunk func(*model.AudioChunk)
	onError func(error)
}

// NewDecoder creates a decoder with a bounded backlog. onChunk runs on the
// decoder goroutine once a chunk is ready.
func NewDecoder(backlog int, onChunk func(*model.AudioChunk), onError func(error)) *Decoder {
	if backlog <= 0 {
		backlog = 64
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Decoder{
		in:      make(chan encoded, backlog),
		onChunk: onChunk,
		onError: onError,
	}
}

// Submit queues a payload tagged with the epoch it arrived under. It blocks
// when the backlog is full and gives up when ctx is done.
func (d *Decoder) Submit(ctx context.Context, data []byte, mime string, epoch uint64) bool {
	select {
	case d.in <- encoded{data: data, mime: mime, epoch: epoch}:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run decodes until ctx is cancelled.
func (d *Decoder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-d.in:
			chunk, err := DecodeChunk(e.data, e.mime, e.epoch)
			if err != nil {
				d.onError(err)
				continue
			}
			d.onChunk(chunk)
		}
	}
}
