// Package protocol implements the length-prefixed JSON wire format shared by
// the server and its clients.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"time"
)

// MessageType identifies a frame on the wire. The integer values are part of
// the wire contract.
type MessageType int

// Wire type codes.
const (
	TypeRegister       MessageType = 1
	TypeLogin          MessageType = 2
	TypeLogout         MessageType = 3
	TypeChangePassword MessageType = 4

	TypeMsgGlobal  MessageType = 10
	TypeMsgPrivate MessageType = 11

	TypeOnlineList MessageType = 20
	TypeUserStatus MessageType = 21
	TypeUserInfo   MessageType = 22

	TypeKickUser      MessageType = 30
	TypeBanUser       MessageType = 31
	TypeUnbanUser     MessageType = 32
	TypeMuteUser      MessageType = 33
	TypeUnmuteUser    MessageType = 34
	TypePromoteUser   MessageType = 35
	TypeDemoteUser    MessageType = 36
	TypeGetAllUsers   MessageType = 37
	TypeGetBannedList MessageType = 38
	TypeGetMutedList  MessageType = 39

	TypeKicked  MessageType = 40
	TypeBanned  MessageType = 41
	TypeMuted   MessageType = 42
	TypeUnmuted MessageType = 43

	TypeOK    MessageType = 100
	TypeError MessageType = 101

	TypePing MessageType = 200
	TypePong MessageType = 201
)

// String returns the protocol name of the type code.
func (t MessageType) String() string {
	switch t {
	case TypeRegister:
		return "REGISTER"
	case TypeLogin:
		return "LOGIN"
	case TypeLogout:
		return "LOGOUT"
	case TypeChangePassword:
		return "CHANGE_PASSWORD"
	case TypeMsgGlobal:
		return "MSG_GLOBAL"
	case TypeMsgPrivate:
		return "MSG_PRIVATE"
	case TypeOnlineList:
		return "ONLINE_LIST"
	case TypeUserStatus:
		return "USER_STATUS"
	case TypeUserInfo:
		return "USER_INFO"
	case TypeKickUser:
		return "KICK_USER"
	case TypeBanUser:
		return "BAN_USER"
	case TypeUnbanUser:
		return "UNBAN_USER"
	case TypeMuteUser:
		return "MUTE_USER"
	case TypeUnmuteUser:
		return "UNMUTE_USER"
	case TypePromoteUser:
		return "PROMOTE_USER"
	case TypeDemoteUser:
		return "DEMOTE_USER"
	case TypeGetAllUsers:
		return "GET_ALL_USERS"
	case TypeGetBannedList:
		return "GET_BANNED_LIST"
	case TypeGetMutedList:
		return "GET_MUTED_LIST"
	case TypeKicked:
		return "KICKED"
	case TypeBanned:
		return "BANNED"
	case TypeMuted:
		return "MUTED"
	case TypeUnmuted:
		return "UNMUTED"
	case TypeOK:
		return "OK"
	case TypeError:
		return "ERROR"
	case TypePing:
		return "PING"
	case TypePong:
		return "PONG"
	default:
		return "UNKNOWN"
	}
}

// Message is the JSON payload of one frame. All string fields default to
// empty on decode. Extra carries nested JSON for structured payloads
// (credentials, user lists, user-info records).
type Message struct {
	Type      MessageType `json:"type"`
	Sender    string      `json:"sender"`
	Receiver  string      `json:"receiver"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
	Extra     string      `json:"extra"`
}

// Now formats the server-local time the way the wire contract expects.
func Now() string {
	return time.Now().Format("15:04:05")
}

// Encode serializes the message into one frame: 4-byte big-endian payload
// length followed by the JSON payload. A message without a timestamp is
// stamped with the current time.
func Encode(msg Message) ([]byte, error) {
	if msg.Timestamp == "" {
		msg.Timestamp = Now()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)
	return frame, nil
}

// Decode parses one frame payload (without the length prefix).
func Decode(payload []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(payload, &msg)
	return msg, err
}

// NewOK builds an OK response.
func NewOK(content, extra string) Message {
	return Message{Type: TypeOK, Content: content, Extra: extra, Timestamp: Now()}
}

// NewError builds an ERROR response with a human-readable reason.
func NewError(content string) Message {
	return Message{Type: TypeError, Content: content, Timestamp: Now()}
}

// NewGlobalMessage builds a MSG_GLOBAL fan-out frame.
func NewGlobalMessage(sender, content string) Message {
	return Message{Type: TypeMsgGlobal, Sender: sender, Content: content, Timestamp: Now()}
}

// NewPrivateMessage builds a MSG_PRIVATE delivery frame.
func NewPrivateMessage(sender, receiver, content string) Message {
	return Message{Type: TypeMsgPrivate, Sender: sender, Receiver: receiver, Content: content, Timestamp: Now()}
}

// NewOnlineList builds an ONLINE_LIST frame whose extra field is a JSON
// array of usernames.
func NewOnlineList(usernames []string) (Message, error) {
	if usernames == nil {
		usernames = []string{}
	}
	extra, err := json.Marshal(usernames)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TypeOnlineList, Extra: string(extra), Timestamp: Now()}, nil
}

// NewUserStatus builds a USER_STATUS frame. online selects between the
// "online" and "offline" content values.
func NewUserStatus(username string, online bool) Message {
	content := "offline"
	if online {
		content = "online"
	}
	return Message{Type: TypeUserStatus, Sender: username, Content: content, Timestamp: Now()}
}
