package main

func main() {
	b := newBroadcastNode()
	if err := b.node.Run(); err != nil {
		b.node.Logger.Fatalf("run: %s", err)
	}
}
