package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	maelstrom "github.com/max-nicholson/gossip-glomers"
)

func TestEcho(t *testing.T) {
	n := newEchoNode()
	stdin, stdout := runNode(t, n)
	initNode(t, "n1", []string{"n1"}, stdin, stdout)

	send(t, stdin, `{"src":"c1", "dest":"n1", "body":{"type":"echo", "msg_id":1, "echo":"hello"}}`)
	expectLine(t, stdout, `{"src":"n1","dest":"c1","body":{"echo":"hello","in_reply_to":1,"msg_id":1,"type":"echo_ok"}}`)

	send(t, stdin, `{"src":"c1", "dest":"n1", "body":{"type":"echo", "msg_id":2, "echo":42}}`)
	expectLine(t, stdout, `{"src":"n1","dest":"c1","body":{"echo":42,"in_reply_to":2,"msg_id":2,"type":"echo_ok"}}`)
}

// runNode starts n's read loop on pipes and returns streams to drive it.
func runNode(tb testing.TB, n *maelstrom.Node) (stdin io.Writer, stdout *bufio.Reader) {
	inr, inw := io.Pipe()
	outr, outw := io.Pipe()
	n.Stdin = inr
	n.Stdout = outw

	done := make(chan struct{})
	go func() {
		if err := n.Run(); err != nil {
			tb.Errorf("run error: %s", err)
		}
		close(done)
	}()

	tb.Cleanup(func() {
		if err := inw.Close(); err != nil {
			tb.Fatalf("closing stdin: %s", err)
		}
		select {
		case <-time.After(5 * time.Second):
			tb.Fatalf("timeout waiting for node to stop")
		case <-done:
		}
	})

	return inw, bufio.NewReader(outr)
}

func initNode(tb testing.TB, id string, nodeIDs []string, stdin io.Writer, stdout *bufio.Reader) {
	tb.Helper()

	nodeIDsStr := `"` + strings.Join(nodeIDs, `","`) + `"`
	send(tb, stdin, fmt.Sprintf(`{"body":{"type":"init", "msg_id":1, "node_id":"%s", "node_ids":[%s]}}`, id, nodeIDsStr))
	expectLine(tb, stdout, fmt.Sprintf(`{"src":"%s","body":{"in_reply_to":1,"type":"init_ok"}}`, id))
}

func send(tb testing.TB, stdin io.Writer, line string) {
	tb.Helper()
	if _, err := stdin.Write([]byte(line + "\n")); err != nil {
		tb.Fatal(err)
	}
}

func expectLine(tb testing.TB, stdout *bufio.Reader, want string) {
	tb.Helper()
	line, err := stdout.ReadString('\n')
	if err != nil {
		tb.Fatal(err)
	}
	if got := strings.TrimSuffix(line, "\n"); got != want {
		tb.Fatalf("line=%s, want %s", got, want)
	}
}
