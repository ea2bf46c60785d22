package main

func main() {
	c := newCounterNode()
	if err := c.node.Run(); err != nil {
		c.node.Logger.Fatalf("run: %s", err)
	}
}
