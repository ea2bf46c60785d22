package maelstrom

import "encoding/json"

// Message represents a message sent from Src node to Dest node.
// The body is stored as unparsed JSON so the handler can parse it itself.
type Message struct {
	Src  string          `json:"src,omitempty"`
	Dest string          `json:"dest,omitempty"`
	Body json.RawMessage `json:"body,omitempty"`
}

// Type returns the type of the message body, or a blank string if the
// body cannot be decoded.
func (m Message) Type() string {
	var body MessageBody
	if err := json.Unmarshal(m.Body, &body); err != nil {
		return ""
	}
	return body.Type
}

// RPCError returns the error carried by an "error" body. Returns nil if
// the message is not an error.
func (m Message) RPCError() *RPCError {
	var body struct {
		MessageBody
		Code int    `json:"code"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(m.Body, &body); err != nil {
		return nil
	}
	if body.Type != "error" {
		return nil
	}
	return NewRPCError(body.Code, body.Text)
}

// MessageBody represents the reserved keys for a message body.
//
// Message IDs are unsigned and never zero, so a zero means the field was
// absent from the wire.
type MessageBody struct {
	Type      string `json:"type,omitempty"`
	MsgID     uint64 `json:"msg_id,omitempty"`
	InReplyTo uint64 `json:"in_reply_to,omitempty"`
}

// InitMessageBody represents the message body for the "init" message.
type InitMessageBody struct {
	MessageBody
	NodeID  string   `json:"node_id,omitempty"`
	NodeIDs []string `json:"node_ids,omitempty"`
}

// HandlerFunc is the function signature for a message handler.
type HandlerFunc func(msg Message) error
