// Package wire bridges the store's change feed across processes over
// zmq: a Publisher broadcasts applied write batches, a Mirror replays
// them into a local read-only store. PUB/SUB delivery is FIFO per
// connection, so ordering survives the hop, and each batch travels as a
// single multipart message so the mirror re-applies it atomically.
package wire

import (
	"context"
	"encoding/json"
	"fmt"

	"arichat/internal/nlog"
	"arichat/internal/store"

	zmq "github.com/pebbe/zmq4"
)

// Publisher drains the store's change feed and sends every applied
// batch as one multipart message of alternating [path, JSON value]
// frames. Batching at the message level is what keeps a multi-path
// update atomic for remote observers.
type Publisher struct {
	ctx    *zmq.Context
	socket *zmq.Socket
	feed   *store.Feed
	logger nlog.Logger
}

func NewPublisher(st *store.Store, port uint16, logger nlog.Logger) (*Publisher, error) {
	ctx, err := zmq.NewContext()
	if err != nil {
		return nil, err
	}
	socket, err := ctx.NewSocket(zmq.PUB)
	if err != nil {
		ctx.Term()
		return nil, fmt.Errorf("Could not create the feed PUB socket {%v}", err)
	}
	if err := socket.Bind(fmt.Sprintf("tcp://*:%d", port)); err != nil {
		socket.Close()
		ctx.Term()
		return nil, fmt.Errorf("Could not bind the feed socket on port %d {%v}", port, err)
	}
	return &Publisher{
		ctx:    ctx,
		socket: socket,
		feed:   st.Watch(),
		logger: logger,
	}, nil
}

func (p *Publisher) Run(ctx context.Context) {
	p.logger.Logf("Change feed publisher started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Logf("Publisher: Stop signal received")
			return
		case ev, ok := <-p.feed.C():
			if !ok {
				return
			}
			frames := make([]any, 0, 2*len(ev.Writes))
			for _, w := range ev.Writes {
				payload, err := json.Marshal(w.Value)
				if err != nil {
					p.logger.Logf("Unencodable value at %s dropped from the feed {%v}", w.Path, err)
					continue
				}
				frames = append(frames, w.Path, payload)
			}
			if len(frames) == 0 {
				continue
			}
			if _, err := p.socket.SendMessage(frames...); err != nil {
				p.logger.Logf("Feed send of batch %d failed {%v}", ev.Seq, err)
			}
		}
	}
}

// Destroy cancels the feed and closes the socket.
func (p *Publisher) Destroy() {
	p.feed.Cancel()
	p.socket.Close()
	p.ctx.Term()
}
