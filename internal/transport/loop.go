package transport

import (
	"github.com/sirupsen/logrus"

	"github.com/s-macke/raftkv/internal/clock"
	"github.com/s-macke/raftkv/internal/raft"
	"github.com/s-macke/raftkv/internal/wire"
)

// Loop is the thin message loop spec.md §1 leaves to the implementer: it
// sends one hello at startup, then repeatedly polls the socket for 10ms,
// decodes whatever arrived, hands it to node, and ticks node's timers —
// encoding and sending back everything either call produces. It runs until
// stop is closed.
func Loop(sock *Socket, node *raft.Node, clk clock.Clock, stop <-chan struct{}, log logrus.FieldLogger) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	hello := wire.Envelope{Src: node.ID(), Dst: wire.Broadcast, Type: wire.Hello}
	send(sock, log, hello)

	for {
		select {
		case <-stop:
			return
		default:
		}

		data, ok, err := sock.Poll()
		if err != nil {
			log.WithError(err).Warn("socket poll failed")
			continue
		}
		if ok {
			env, decodeErr := wire.Decode(data)
			if decodeErr != nil {
				log.WithError(decodeErr).Warn("dropping undecodable datagram")
			} else {
				for _, out := range node.HandleMessage(clk.Now(), env) {
					send(sock, log, out)
				}
			}
		}

		for _, out := range node.Tick(clk.Now()) {
			send(sock, log, out)
		}
	}
}

func send(sock *Socket, log logrus.FieldLogger, e wire.Envelope) {
	data, err := wire.Encode(e)
	if err != nil {
		log.WithError(err).WithField("type", e.Type).Warn("failed to encode outgoing envelope")
		return
	}
	if err := sock.Send(data); err != nil {
		log.WithError(err).Warn("failed to send datagram")
	}
}
