// Package protocol defines the JSON frames exchanged between whiteboard
// clients and the relay.
//
// Every frame is a JSON object carrying a "type" tag. Frames are modelled as a
// closed set of Go types implementing Frame; a payload that cannot be decoded
// into one of them becomes an Invalid frame instead of being dropped.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type is the value of the "type" tag carried by every frame.
type Type string

const (
	TypeRegister        Type = "register"
	TypeMessage         Type = "message"
	TypeClearHistory    Type = "clear-history"
	TypeRequestUserList Type = "request-user-list"
	TypeUserList        Type = "user-list"
	TypeError           Type = "error"
)

// Literal texts carried by error frames.
const (
	InvalidFormatText    = "Invalid message format."
	UsernameRejectedText = "Username is already taken or invalid."
)

// ErrInvalidFrame is reported for payloads that are not a well-formed frame.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is one discrete message on the socket. The set of implementations is
// closed; switch on the concrete type to dispatch.
type Frame interface {
	Type() Type
	sealed()
}

// Register claims a display name for the sending connection.
type Register struct {
	Username string `json:"username" validate:"required"`
}

// Message is a chat line. Clients may leave Username empty; the relay stamps
// the sender's registered name before rebroadcasting.
type Message struct {
	Username string `json:"username,omitempty"`
	Text     string `json:"text"`
}

// ClearHistory asks the relay to wipe its message history.
type ClearHistory struct{}

// RequestUserList asks the relay for the current roster.
type RequestUserList struct{}

// UserList is a full roster snapshot.
type UserList struct {
	Users []string `json:"users"`
}

// Error reports a rejected frame back to its sender.
type Error struct {
	Message string `json:"message"`
}

// Invalid is produced by Decode when a payload is not a recognised frame.
type Invalid struct {
	Reason error
}

func (Register) Type() Type        { return TypeRegister }
func (Message) Type() Type         { return TypeMessage }
func (ClearHistory) Type() Type    { return TypeClearHistory }
func (RequestUserList) Type() Type { return TypeRequestUserList }
func (UserList) Type() Type        { return TypeUserList }
func (Error) Type() Type           { return TypeError }
func (Invalid) Type() Type         { return "" }

func (Register) sealed()        {}
func (Message) sealed()         {}
func (ClearHistory) sealed()    {}
func (RequestUserList) sealed() {}
func (UserList) sealed()        {}
func (Error) sealed()           {}
func (Invalid) sealed()         {}

// Error implements error so an Invalid frame can be returned or wrapped directly.
func (i Invalid) Error() string {
	if i.Reason == nil {
		return ErrInvalidFrame.Error()
	}
	return i.Reason.Error()
}

// Unwrap exposes ErrInvalidFrame to errors.Is.
func (i Invalid) Unwrap() error {
	return ErrInvalidFrame
}

// header carries the type tag shared by every frame.
type header struct {
	Type Type `json:"type"`
}

// Decode parses a raw payload into a Frame. It never fails: malformed JSON,
// non-object payloads and missing or unknown types yield an Invalid frame.
// Fields that do not belong to the tagged frame type are ignored.
func Decode(raw []byte) Frame {
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return Invalid{Reason: fmt.Errorf("%w: %v", ErrInvalidFrame, err)}
	}

	switch h.Type {
	case TypeRegister:
		return decodeAs[Register](raw)
	case TypeMessage:
		return decodeAs[Message](raw)
	case TypeClearHistory:
		return ClearHistory{}
	case TypeRequestUserList:
		return RequestUserList{}
	case TypeUserList:
		return decodeAs[UserList](raw)
	case TypeError:
		return decodeAs[Error](raw)
	case "":
		return Invalid{Reason: fmt.Errorf("%w: missing type", ErrInvalidFrame)}
	default:
		return Invalid{Reason: fmt.Errorf("%w: unknown type %q", ErrInvalidFrame, h.Type)}
	}
}

func decodeAs[F Frame](raw []byte) Frame {
	var frame F
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Invalid{Reason: fmt.Errorf("%w: %s: %v", ErrInvalidFrame, frame.Type(), err)}
	}
	return frame
}

// Encode serialises a frame with its type tag.
func Encode(f Frame) ([]byte, error) {
	switch f := f.(type) {
	case Register:
		return json.Marshal(struct {
			Type     Type   `json:"type"`
			Username string `json:"username"`
		}{f.Type(), f.Username})
	case Message:
		return json.Marshal(struct {
			Type     Type   `json:"type"`
			Username string `json:"username,omitempty"`
			Text     string `json:"text"`
		}{f.Type(), f.Username, f.Text})
	case ClearHistory, RequestUserList:
		return json.Marshal(struct {
			Type Type `json:"type"`
		}{f.Type()})
	case UserList:
		users := f.Users
		if users == nil {
			users = []string{}
		}
		return json.Marshal(struct {
			Type  Type     `json:"type"`
			Users []string `json:"users"`
		}{f.Type(), users})
	case Error:
		return json.Marshal(struct {
			Type    Type   `json:"type"`
			Message string `json:"message"`
		}{f.Type(), f.Message})
	case Invalid:
		return nil, fmt.Errorf("%w: invalid frames cannot be encoded", ErrInvalidFrame)
	default:
		return nil, fmt.Errorf("%w: unsupported frame %T", ErrInvalidFrame, f)
	}
}

// MustEncode is Encode for frames known to be encodable.
func MustEncode(f Frame) []byte {
	data, err := Encode(f)
	if err != nil {
		panic(err)
	}
	return data
}
