package main

import (
	"encoding/json"

	maelstrom "github.com/max-nicholson/gossip-glomers"
)

// newEchoNode answers every "echo" request with the same body, retyped
// to "echo_ok".
func newEchoNode() *maelstrom.Node {
	n := maelstrom.NewNode()

	n.Handle("echo", func(msg maelstrom.Message) error {
		var body map[string]any
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return err
		}
		body["type"] = "echo_ok"

		return n.Reply(msg, body)
	})

	return n
}

func main() {
	n := newEchoNode()
	if err := n.Run(); err != nil {
		n.Logger.Fatalf("run: %s", err)
	}
}
