package maelstrom

import (
	"regexp"
	"strconv"
)

// Types of key/value stores.
const (
	LinKV = "lin-kv"
	SeqKV = "seq-kv"
	LWWKV = "lww-kv"
)

// KV represents a client to the key/value store service.
//
// Calls do not block. Each sends a single request to the store and
// registers a handler for the eventual response, which is either the
// matching *_ok body or an "error" body; use Message.RPCError to tell
// them apart.
type KV struct {
	typ  string
	node *Node
}

// NewKV returns a new instance of a KV client for a node.
func NewKV(typ string, node *Node) *KV {
	return &KV{
		typ:  typ,
		node: node,
	}
}

// NewLinKV returns a client to the linearizable key/value store.
func NewLinKV(node *Node) *KV { return NewKV(LinKV, node) }

// NewSeqKV returns a client to the sequentially consistent key/value store.
func NewSeqKV(node *Node) *KV { return NewKV(SeqKV, node) }

// NewLWWKV returns a client to the last-write-wins key/value store.
func NewLWWKV(node *Node) *KV { return NewKV(LWWKV, node) }

// Read requests the value for a given key. A key that does not exist
// produces a KeyDoesNotExist error response.
func (kv *KV) Read(key string, handler HandlerFunc) error {
	return kv.node.RPC(kv.typ, kvReadMessageBody{
		MessageBody: MessageBody{Type: "read"},
		Key:         key,
	}, handler)
}

// Write requests that the value for a given key be overwritten, creating
// the key if it does not exist.
func (kv *KV) Write(key string, value any, handler HandlerFunc) error {
	return kv.node.RPC(kv.typ, kvWriteMessageBody{
		MessageBody: MessageBody{Type: "write"},
		Key:         key,
		Value:       value,
	}, handler)
}

// CompareAndSwap requests that the value for a key move from `from` to
// `to`. The store answers cas_ok only if it held `from`; otherwise the
// response is a PreconditionFailed error, or KeyDoesNotExist when the key
// is missing and createIfNotExists is false.
func (kv *KV) CompareAndSwap(key string, from, to any, createIfNotExists bool, handler HandlerFunc) error {
	return kv.node.RPC(kv.typ, kvCASMessageBody{
		MessageBody:       MessageBody{Type: "cas"},
		Key:               key,
		From:              from,
		To:                to,
		CreateIfNotExists: createIfNotExists,
	}, handler)
}

// casConflictRe matches the text of a PreconditionFailed response, e.g.
// "current value 13 is not 5". The leading number is the value the store
// actually held.
var casConflictRe = regexp.MustCompile(`current value (\d+) is not \d+`)

// ConflictCurrentValue extracts the stored value a failed compare-and-swap
// revealed. ok is false if text does not follow the store's conflict
// format, in which case callers should retry from the state they already
// have.
func ConflictCurrentValue(text string) (value uint64, ok bool) {
	m := casConflictRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// kvReadMessageBody represents the body for the KV "read" message.
type kvReadMessageBody struct {
	MessageBody
	Key string `json:"key"`
}

// kvWriteMessageBody represents the body for the KV "write" message.
type kvWriteMessageBody struct {
	MessageBody
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// kvCASMessageBody represents the body for the KV "cas" message.
type kvCASMessageBody struct {
	MessageBody
	Key               string `json:"key"`
	From              any    `json:"from"`
	To                any    `json:"to"`
	CreateIfNotExists bool   `json:"create_if_not_exists,omitempty"`
}
