package main

import (
	"encoding/json"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"

	maelstrom "github.com/max-nicholson/gossip-glomers"
	"github.com/max-nicholson/gossip-glomers/internal/stats"
)

const statsInterval = 10 * time.Second

type broadcastNode struct {
	node *maelstrom.Node

	// seen holds every value this node has accepted. It only grows.
	seen mapset.Set[uint64]

	// neighbors is who new values are forwarded to. Starts as every peer
	// and is replaced wholesale by each "topology" message.
	neighbors []string

	metrics broadcastMetrics
}

type broadcastMetrics struct {
	received   stats.Counter
	duplicates stats.Counter
	forwards   stats.Counter
}

func (m *broadcastMetrics) snapshot() map[string]uint64 {
	return map[string]uint64{
		"received":   m.received.Value(),
		"duplicates": m.duplicates.Value(),
		"forwards":   m.forwards.Value(),
	}
}

type broadcastMsgBody struct {
	maelstrom.MessageBody
	Message uint64 `json:"message"`
}

type readOKMsgBody struct {
	maelstrom.MessageBody
	Messages []uint64 `json:"messages"`
}

type topologyMsgBody struct {
	maelstrom.MessageBody
	Topology map[string][]string `json:"topology"`
}

func newBroadcastNode() *broadcastNode {
	b := &broadcastNode{
		node: maelstrom.NewNode(),
		seen: mapset.NewThreadUnsafeSet[uint64](),
	}

	b.node.Handle("init", b.handleInit)
	b.node.Handle("broadcast", b.handleBroadcast)
	b.node.Handle("read", b.handleRead)
	b.node.Handle("topology", b.handleTopology)

	b.node.Every(statsInterval, func() error {
		b.node.Logger.Infow("broadcast stats", "counters", b.metrics.snapshot())
		return nil
	})

	return b
}

func (b *broadcastNode) handleInit(msg maelstrom.Message) error {
	// Flood to every other node until a topology arrives.
	b.neighbors = lo.Filter(b.node.NodeIDs(), func(id string, _ int) bool {
		return id != b.node.ID()
	})
	return nil
}

func (b *broadcastNode) handleBroadcast(msg maelstrom.Message) error {
	var body broadcastMsgBody
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		return err
	}
	b.metrics.received.Inc()

	if b.seen.Contains(body.Message) {
		b.metrics.duplicates.Inc()
		return b.ack(msg, body)
	}
	b.seen.Add(body.Message)

	// Forward to every neighbor, the sender included. Receivers drop
	// duplicates, so the echo back along an edge dies after one hop.
	for _, id := range b.neighbors {
		if err := b.node.Send(id, broadcastMsgBody{
			MessageBody: maelstrom.MessageBody{Type: "broadcast"},
			Message:     body.Message,
		}); err != nil {
			return err
		}
		b.metrics.forwards.Inc()
	}

	return b.ack(msg, body)
}

// ack confirms a broadcast to its sender. Peer forwards carry no msg_id
// and expect no confirmation.
func (b *broadcastNode) ack(msg maelstrom.Message, body broadcastMsgBody) error {
	if body.MsgID == 0 {
		return nil
	}
	return b.node.Reply(msg, maelstrom.MessageBody{Type: "broadcast_ok"})
}

func (b *broadcastNode) handleRead(msg maelstrom.Message) error {
	return b.node.Reply(msg, readOKMsgBody{
		MessageBody: maelstrom.MessageBody{Type: "read_ok"},
		Messages:    b.seen.ToSlice(),
	})
}

func (b *broadcastNode) handleTopology(msg maelstrom.Message) error {
	var body topologyMsgBody
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		return err
	}
	if neighbors, ok := body.Topology[b.node.ID()]; ok {
		b.neighbors = neighbors
	}
	return b.node.Reply(msg, maelstrom.MessageBody{Type: "topology_ok"})
}
