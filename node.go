package maelstrom

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/max-nicholson/gossip-glomers/internal/logging"
)

// Limits for a single message line on stdin.
const (
	maxMessageSize     = 1 << 20
	initialScanBufSize = 64 << 10
)

type nodeState int

const (
	stateUninitialized nodeState = iota
	stateInitialized
)

// task is a recurring job run on the read loop between messages.
type task struct {
	interval time.Duration
	deadline time.Time
	fn       func() error
}

// Node represents a single node in the network.
//
// All message handling happens on the goroutine that called Run, one
// message at a time: handlers, RPC callbacks and scheduled tasks never
// overlap, and node state needs no locking. Reply, Send and RPC must be
// called from that goroutine, which in practice means from inside a
// handler or callback.
type Node struct {
	state nodeState

	id        string
	nodeIDs   []string
	nextMsgID uint64

	handlers  map[string]HandlerFunc
	callbacks map[uint64]HandlerFunc
	tasks     []*task

	// Stdin is for reading messages in from the Maelstrom network.
	Stdin io.Reader

	// Stdout is for writing messages out to the Maelstrom network.
	Stdout io.Writer

	// Logger writes to stderr so stdout stays a clean protocol stream.
	Logger *zap.SugaredLogger
}

// NewNode returns a new instance of Node connected to STDIN/STDOUT.
func NewNode() *Node {
	return &Node{
		handlers:  make(map[string]HandlerFunc),
		callbacks: make(map[uint64]HandlerFunc),

		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Logger: logging.New(),
	}
}

// ID returns the identifier for this node.
// Only valid after the "init" message has been received.
func (n *Node) ID() string {
	return n.id
}

// NodeIDs returns a list of all node IDs in the cluster. This list includes
// the local node ID and is the same order across all nodes. Only valid
// after the "init" message has been received.
func (n *Node) NodeIDs() []string {
	return n.nodeIDs
}

// Handle registers a message handler for a given message type. Will panic
// if registering multiple handlers for the same message type.
//
// A handler registered for "init" runs after the node identity is set and
// before the init_ok acknowledgment goes out.
func (n *Node) Handle(typ string, fn HandlerFunc) {
	if _, ok := n.handlers[typ]; ok {
		panic(fmt.Sprintf("duplicate message handler for %q message type", typ))
	}
	n.handlers[typ] = fn
}

// Every schedules fn to run at least interval apart. Tasks run on the read
// loop after a message has been fully handled; a node receiving no traffic
// does not fire them.
func (n *Node) Every(interval time.Duration, fn func() error) {
	n.tasks = append(n.tasks, &task{
		interval: interval,
		deadline: time.Now().Add(interval),
		fn:       fn,
	})
}

// Run executes the main event handling loop. It reads messages from STDIN
// one line at a time and dispatches each to the appropriate handler or
// RPC callback before reading the next. This should be the last function
// executed by main().
func (n *Node) Run() error {
	scanner := bufio.NewScanner(n.Stdin)
	scanner.Buffer(make([]byte, 0, initialScanBufSize), maxMessageSize)
	for scanner.Scan() {
		line := scanner.Bytes()

		// Parse next line from STDIN as a JSON-formatted message.
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return fmt.Errorf("unmarshal message: %w", err)
		}

		var body MessageBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return fmt.Errorf("unmarshal message body: %w", err)
		}
		n.Logger.Debugf("Received %s", line)

		if err := n.dispatch(msg, body, line); err != nil {
			return err
		}

		// Anything scheduled between messages runs now.
		if err := n.runTasks(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// dispatch routes one decoded message. The init handshake and replies to
// pending RPCs are resolved here; everything else goes through the
// handler registry.
func (n *Node) dispatch(msg Message, body MessageBody, line []byte) error {
	if n.state == stateUninitialized {
		if body.Type != "init" {
			return fmt.Errorf("%q message before init: %s", body.Type, line)
		}
		return n.handleInit(msg)
	}

	// The node identity is fixed for the life of the process.
	if body.Type == "init" {
		n.handle(func(Message) error {
			return NewRPCError(MalformedRequest, "node already initialized")
		}, msg)
		return nil
	}

	var h HandlerFunc
	if body.InReplyTo != 0 {
		// Resolve the callback registered when the request went out.
		// Each entry fires at most once.
		h = n.callbacks[body.InReplyTo]
		delete(n.callbacks, body.InReplyTo)

		// If no callback exists, just log a message and skip.
		if h == nil {
			n.Logger.Debugf("Ignoring reply to %d with no callback", body.InReplyTo)
			return nil
		}
	} else {
		// If this is not a callback, ensure that a handler is registered.
		h = n.handlers[body.Type]
		if h == nil {
			return fmt.Errorf("No handler for %s", line)
		}
	}

	n.handle(h, msg)
	return nil
}

// handle runs h and turns a returned error into an error reply.
func (n *Node) handle(h HandlerFunc, msg Message) {
	if err := h(msg); err != nil {
		switch err := err.(type) {
		case *RPCError:
			if err := n.Reply(msg, err); err != nil {
				n.Logger.Errorf("reply error: %s", err)
			}
		default:
			n.Logger.Errorf("Exception handling %#v:\n%s", msg, err)
			if err := n.Reply(msg, NewRPCError(Crash, err.Error())); err != nil {
				n.Logger.Errorf("reply error: %s", err)
			}
		}
	}
}

func (n *Node) handleInit(msg Message) error {
	var body InitMessageBody
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		return fmt.Errorf("unmarshal init message body: %w", err)
	}
	n.id = body.NodeID
	n.nodeIDs = body.NodeIDs
	n.state = stateInitialized

	// Delegate to application initialization handler, if specified.
	if h := n.handlers["init"]; h != nil {
		if err := h(msg); err != nil {
			return err
		}
	}

	// The handshake ack carries no msg_id and leaves the counter untouched.
	n.Logger.Infof("Node %s initialized", n.id)
	ack := map[string]any{"type": "init_ok"}
	if body.MsgID != 0 {
		ack["in_reply_to"] = body.MsgID
	}
	return n.Send(msg.Src, ack)
}

// runTasks fires every scheduled task whose deadline has passed and arms
// the next run.
func (n *Node) runTasks() error {
	now := time.Now()
	for _, t := range n.tasks {
		if now.Before(t.deadline) {
			continue
		}
		t.deadline = now.Add(t.interval)
		if err := t.fn(); err != nil {
			return err
		}
	}
	return nil
}

// nextID returns the next message ID. IDs start at 1 and are shared
// between replies and locally originated requests.
func (n *Node) nextID() uint64 {
	n.nextMsgID++
	return n.nextMsgID
}

// Reply replies to a request with a response body. The reply is stamped
// with a fresh msg_id and correlated to the request via in_reply_to.
func (n *Node) Reply(req Message, body any) error {
	// Extract the message ID from the original message.
	var reqBody MessageBody
	if err := json.Unmarshal(req.Body, &reqBody); err != nil {
		return err
	}

	// We have to marshal/unmarshal to inject our message IDs.
	b := make(map[string]any)
	if buf, err := json.Marshal(body); err != nil {
		return err
	} else if err := json.Unmarshal(buf, &b); err != nil {
		return err
	}
	b["msg_id"] = n.nextID()
	if reqBody.MsgID != 0 {
		b["in_reply_to"] = reqBody.MsgID
	}

	return n.Send(req.Src, b)
}

// Send sends a message body to a given destination node. No msg_id is
// attached; use RPC for requests that expect a response.
func (n *Node) Send(dest string, body any) error {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return err
	}

	buf, err := json.Marshal(Message{
		Src:  n.id,
		Dest: dest,
		Body: bodyJSON,
	})
	if err != nil {
		return err
	}

	n.Logger.Debugf("Sent %s", buf)

	if _, err = n.Stdout.Write(buf); err != nil {
		return err
	}
	_, err = n.Stdout.Write([]byte{'\n'})
	return err
}

// RPC sends an async RPC request. Handler is invoked once the response
// message is received, and fires at most once.
func (n *Node) RPC(dest string, body any, handler HandlerFunc) error {
	// We have to marshal/unmarshal to inject our message ID.
	b := make(map[string]any)
	if buf, err := json.Marshal(body); err != nil {
		return err
	} else if err := json.Unmarshal(buf, &b); err != nil {
		return err
	}

	msgID := n.nextID()
	n.callbacks[msgID] = handler
	b["msg_id"] = msgID

	return n.Send(dest, b)
}

// Broadcast sends a message to all other nodes.
func (n *Node) Broadcast(body any) error {
	for _, id := range n.nodeIDs {
		if id == n.id {
			continue
		}
		if err := n.Send(id, body); err != nil {
			return err
		}
	}

	return nil
}
