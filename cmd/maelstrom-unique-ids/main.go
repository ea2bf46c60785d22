package main

import (
	"github.com/google/uuid"

	maelstrom "github.com/max-nicholson/gossip-glomers"
)

type generateOKMsgBody struct {
	maelstrom.MessageBody
	ID uuid.UUID `json:"id"`
}

// newGenerateNode serves "generate" requests with version 7 UUIDs. Those
// embed a millisecond timestamp plus random bits, so every node mints
// globally unique, roughly time-ordered values without coordinating.
func newGenerateNode() *maelstrom.Node {
	n := maelstrom.NewNode()

	n.Handle("generate", func(msg maelstrom.Message) error {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		return n.Reply(msg, generateOKMsgBody{
			MessageBody: maelstrom.MessageBody{Type: "generate_ok"},
			ID:          id,
		})
	})

	return n
}

func main() {
	n := newGenerateNode()
	if err := n.Run(); err != nil {
		n.Logger.Fatalf("run: %s", err)
	}
}
