package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"

	"arichat/internal/nlog"
	"arichat/internal/store"

	zmq "github.com/pebbe/zmq4"
)

// Error used for when the poll and recv found no update; only a timeout,
// not a failure.
var ErrRecvNotReady = errors.New("No update is available to recv() on the socket")

// Mirror subscribes to a publisher's feed and replays every received
// batch into its own in-memory store as one atomic update, so observers
// of the replica see exactly the states the source store exposed, never
// a partial batch. Readers observe that store through the usual
// Subscribe surface; writing to it from outside defeats the point.
type Mirror struct {
	ctx      *zmq.Context
	socket   *zmq.Socket
	poller   *zmq.Poller
	st       *store.Store
	prefixes []string
	logger   nlog.Logger
}

// NewMirror connects to a publisher at addr (host:port), keeping only
// writes under the given path prefixes; no prefixes means the whole
// tree. A batch mixes paths, so the filter runs here rather than on the
// zmq subscription, which only ever matches a message's first frame.
func NewMirror(addr string, prefixes []string, logger nlog.Logger) (*Mirror, error) {
	ctx, err := zmq.NewContext()
	if err != nil {
		return nil, err
	}
	socket, err := ctx.NewSocket(zmq.SUB)
	if err != nil {
		ctx.Term()
		return nil, fmt.Errorf("Could not create the feed SUB socket {%v}", err)
	}
	if err := socket.Connect(fmt.Sprintf("tcp://%s", addr)); err != nil {
		socket.Close()
		ctx.Term()
		return nil, fmt.Errorf("Could not connect to the feed at %s {%v}", addr, err)
	}
	socket.SetSubscribe("")

	poller := zmq.NewPoller()
	poller.Add(socket, zmq.POLLIN)

	return &Mirror{
		ctx:      ctx,
		socket:   socket,
		poller:   poller,
		st:       store.New(),
		prefixes: prefixes,
		logger:   logger,
	}, nil
}

// keeps tells whether a write at path falls inside the mirrored subset.
func (m *Mirror) keeps(path string) bool {
	if len(m.prefixes) == 0 {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Store is the local replica the mirror fills.
func (m *Mirror) Store() *store.Store {
	return m.st
}

func (m *Mirror) Run(ctx context.Context) {
	m.logger.Logf("Mirror started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Logf("Mirror: Stop signal received")
			return
		default:
		}

		sockets, err := m.poller.Poll(500 * time.Millisecond)
		if err != nil {
			m.logger.Logf("Polling error {%v}", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if len(sockets) == 0 {
			continue
		}

		parts, err := m.socket.RecvMessageBytes(zmq.DONTWAIT)
		if err != nil {
			if isRecvNotReadyError(err) {
				continue
			}
			m.logger.Logf("Recv network error {%v}", err)
			continue
		}
		if len(parts) == 0 || len(parts)%2 != 0 {
			m.logger.Logf("Malformed feed message with %d frames dropped", len(parts))
			continue
		}

		updates := make(map[string]any, len(parts)/2)
		for i := 0; i < len(parts); i += 2 {
			path := string(parts[i])
			if !m.keeps(path) {
				continue
			}
			var value any
			if err := json.Unmarshal(parts[i+1], &value); err != nil {
				m.logger.Logf("Undecodable feed value at %s dropped {%v}", path, err)
				continue
			}
			updates[path] = value
		}
		if len(updates) == 0 {
			continue
		}
		// one atomic update per received batch
		if err := m.st.Update(updates); err != nil {
			m.logger.Logf("Replica update of %d paths failed {%v}", len(updates), err)
		}
	}
}

// Destroy closes the socket.
func (m *Mirror) Destroy() {
	m.socket.Close()
	m.ctx.Term()
}

// isRecvNotReadyError tells whether err is just EAGAIN on the socket.
func isRecvNotReadyError(err error) bool {
	var errno zmq.Errno
	if errors.As(err, &errno) {
		return errno == zmq.AsErrno(syscall.EAGAIN)
	}
	return false
}
