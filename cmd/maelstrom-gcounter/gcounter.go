package main

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	maelstrom "github.com/max-nicholson/gossip-glomers"
	"github.com/max-nicholson/gossip-glomers/internal/stats"
)

// EnvGossipInterval overrides the anti-entropy interval, in milliseconds.
const EnvGossipInterval = "GOSSIP_INTERVAL_MS"

const defaultGossipInterval = 500 * time.Millisecond

const statsInterval = 10 * time.Second

type gcounterNode struct {
	node    *maelstrom.Node
	counter *gCounter

	metrics gcounterMetrics
}

type gcounterMetrics struct {
	adds    stats.Counter
	merges  stats.Counter
	flushes stats.Counter
}

func (m *gcounterMetrics) snapshot() map[string]uint64 {
	return map[string]uint64{
		"adds":    m.adds.Value(),
		"merges":  m.merges.Value(),
		"flushes": m.flushes.Value(),
	}
}

type addMsgBody struct {
	maelstrom.MessageBody
	Delta uint64 `json:"delta"`
}

type readOKMsgBody struct {
	maelstrom.MessageBody
	Value uint64 `json:"value"`
}

type gossipMsgBody struct {
	maelstrom.MessageBody
	Counts map[string]uint64 `json:"counts"`
}

func newGCounterNode() *gcounterNode {
	g := &gcounterNode{
		node:    maelstrom.NewNode(),
		counter: newGCounter(),
	}

	g.node.Handle("add", g.handleAdd)
	g.node.Handle("read", g.handleRead)
	g.node.Handle("gossip", g.handleGossip)

	g.node.Every(gossipInterval(g.node.Logger), g.flush)
	g.node.Every(statsInterval, func() error {
		g.node.Logger.Infow("gcounter stats", "counters", g.metrics.snapshot())
		return nil
	})

	return g
}

// gossipInterval reads the anti-entropy interval from the environment.
func gossipInterval(logger *zap.SugaredLogger) time.Duration {
	s := os.Getenv(EnvGossipInterval)
	if s == "" {
		return defaultGossipInterval
	}
	ms, err := strconv.Atoi(s)
	if err != nil || ms < 0 {
		logger.Warnf("invalid %s %q, using %s", EnvGossipInterval, s, defaultGossipInterval)
		return defaultGossipInterval
	}
	return time.Duration(ms) * time.Millisecond
}

func (g *gcounterNode) handleAdd(msg maelstrom.Message) error {
	var body addMsgBody
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		return err
	}

	g.counter.add(g.node.ID(), body.Delta)
	g.metrics.adds.Inc()

	return g.node.Reply(msg, maelstrom.MessageBody{Type: "add_ok"})
}

func (g *gcounterNode) handleRead(msg maelstrom.Message) error {
	return g.node.Reply(msg, readOKMsgBody{
		MessageBody: maelstrom.MessageBody{Type: "read_ok"},
		Value:       g.counter.value(),
	})
}

// handleGossip folds a peer's whole vector in. Gossip is unsolicited and
// never acknowledged.
func (g *gcounterNode) handleGossip(msg maelstrom.Message) error {
	var body gossipMsgBody
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		return err
	}

	g.counter.merge(body.Counts)
	g.metrics.merges.Inc()

	return nil
}

// flush pushes a snapshot of the whole vector to every peer.
func (g *gcounterNode) flush() error {
	if g.counter.size() == 0 {
		return nil
	}
	g.metrics.flushes.Inc()

	return g.node.Broadcast(gossipMsgBody{
		MessageBody: maelstrom.MessageBody{Type: "gossip"},
		Counts:      g.counter.snapshot(),
	})
}
