package main

import (
	"encoding/json"
	"time"

	maelstrom "github.com/max-nicholson/gossip-glomers"
	"github.com/max-nicholson/gossip-glomers/internal/stats"
)

// counterKey is the single key the total lives under in seq-kv.
const counterKey = "counter"

const statsInterval = 10 * time.Second

type counterNode struct {
	node *maelstrom.Node
	kv   *maelstrom.KV

	// lastKnown is a lower bound on the stored total, fed by successful
	// swaps and by the values failed swaps reveal. It never goes down.
	lastKnown uint64

	metrics counterMetrics
}

type counterMetrics struct {
	attempts  stats.Counter
	conflicts stats.Counter
	missing   stats.Counter
}

func (m *counterMetrics) snapshot() map[string]uint64 {
	return map[string]uint64{
		"cas_attempts":  m.attempts.Value(),
		"cas_conflicts": m.conflicts.Value(),
		"key_missing":   m.missing.Value(),
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

func newCounterNode() *counterNode {
	c := &counterNode{node: maelstrom.NewNode()}
	c.kv = maelstrom.NewSeqKV(c.node)

	c.node.Handle("add", c.handleAdd)
	c.node.Handle("read", c.handleRead)

	c.node.Every(statsInterval, func() error {
		c.node.Logger.Infow("counter stats", "counters", c.metrics.snapshot())
		return nil
	})

	return c
}

// observe folds a value the store is known to have held into lastKnown.
func (c *counterNode) observe(v uint64) {
	if v > c.lastKnown {
		c.lastKnown = v
	}
}

func (c *counterNode) handleAdd(msg maelstrom.Message) error {
	var body addMsgBody
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		return err
	}

	// Nothing to move; the store does not need to hear about it.
	if body.Delta == 0 {
		return c.node.Reply(msg, maelstrom.MessageBody{Type: "add_ok"})
	}

	return c.tryAdd(msg, body.Delta, c.lastKnown)
}

// tryAdd proposes from -> from+delta on the store. Conflicts seed the
// next attempt with the revealed total; a missing key makes the next
// attempt create it. msg is the client request to acknowledge, carried
// through every attempt by the response handler.
func (c *counterNode) tryAdd(msg maelstrom.Message, delta, from uint64) error {
	to := from + delta
	c.metrics.attempts.Inc()

	return c.kv.CompareAndSwap(counterKey, from, to, from == 0, func(res maelstrom.Message) error {
		rpcErr := res.RPCError()
		if rpcErr == nil {
			c.observe(to)
			return c.node.Reply(msg, maelstrom.MessageBody{Type: "add_ok"})
		}

		switch rpcErr.Code {
		case maelstrom.PreconditionFailed:
			c.metrics.conflicts.Inc()
			if v, ok := maelstrom.ConflictCurrentValue(rpcErr.Text); ok {
				c.observe(v)
			}
			return c.tryAdd(msg, delta, c.lastKnown)
		case maelstrom.KeyDoesNotExist:
			c.metrics.missing.Inc()
			return c.tryAdd(msg, delta, 0)
		default:
			return c.node.Reply(msg, rpcErr)
		}
	})
}

func (c *counterNode) handleRead(msg maelstrom.Message) error {
	return c.tryRead(msg, c.lastKnown)
}

// tryRead proves v is current by asking the store to swap v for itself.
// A cas_ok at v pins the read to a real point in the store's order; the
// store's own read path may serve stale values.
func (c *counterNode) tryRead(msg maelstrom.Message, v uint64) error {
	c.metrics.attempts.Inc()

	return c.kv.CompareAndSwap(counterKey, v, v, false, func(res maelstrom.Message) error {
		rpcErr := res.RPCError()
		if rpcErr == nil {
			c.observe(v)
			return c.node.Reply(msg, readOKMsgBody{
				MessageBody: maelstrom.MessageBody{Type: "read_ok"},
				Value:       v,
			})
		}

		switch rpcErr.Code {
		case maelstrom.PreconditionFailed:
			c.metrics.conflicts.Inc()
			if cur, ok := maelstrom.ConflictCurrentValue(rpcErr.Text); ok {
				c.observe(cur)
			}
			return c.tryRead(msg, c.lastKnown)
		case maelstrom.KeyDoesNotExist:
			// No add has created the key yet.
			c.metrics.missing.Inc()
			return c.node.Reply(msg, readOKMsgBody{
				MessageBody: maelstrom.MessageBody{Type: "read_ok"},
				Value:       0,
			})
		default:
			return c.node.Reply(msg, rpcErr)
		}
	})
}
