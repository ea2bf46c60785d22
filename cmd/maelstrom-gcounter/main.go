package main

func main() {
	g := newGCounterNode()
	if err := g.node.Run(); err != nil {
		g.node.Logger.Fatalf("run: %s", err)
	}
}
