package protocol

import (
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeCodes(t *testing.T) {
	// The integer values are a wire contract shared with existing clients.
	assert.EqualValues(t, 1, TypeRegister)
	assert.EqualValues(t, 2, TypeLogin)
	assert.EqualValues(t, 3, TypeLogout)
	assert.EqualValues(t, 4, TypeChangePassword)
	assert.EqualValues(t, 10, TypeMsgGlobal)
	assert.EqualValues(t, 11, TypeMsgPrivate)
	assert.EqualValues(t, 20, TypeOnlineList)
	assert.EqualValues(t, 21, TypeUserStatus)
	assert.EqualValues(t, 22, TypeUserInfo)
	assert.EqualValues(t, 30, TypeKickUser)
	assert.EqualValues(t, 39, TypeGetMutedList)
	assert.EqualValues(t, 40, TypeKicked)
	assert.EqualValues(t, 43, TypeUnmuted)
	assert.EqualValues(t, 100, TypeOK)
	assert.EqualValues(t, 101, TypeError)
	assert.EqualValues(t, 200, TypePing)
	assert.EqualValues(t, 201, TypePong)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := Message{
		Type:      TypeMsgPrivate,
		Sender:    "alice",
		Receiver:  "bob",
		Content:   "hello, world éè 世界",
		Timestamp: "12:34:56",
		Extra:     `{"k":"v"}`,
	}

	frame, err := Encode(original)
	require.NoError(t, err)

	n := binary.BigEndian.Uint32(frame[:4])
	require.Equal(t, int(n), len(frame)-4)

	decoded, err := Decode(frame[4:])
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestEncodeStampsMissingTimestamp(t *testing.T) {
	frame, err := Encode(Message{Type: TypeOK, Content: "x"})
	require.NoError(t, err)

	decoded, err := Decode(frame[4:])
	require.NoError(t, err)
	assert.NotEmpty(t, decoded.Timestamp)

	_, perr := time.Parse("15:04:05", decoded.Timestamp)
	assert.NoError(t, perr)
}

func TestEncodePreservesExplicitTimestamp(t *testing.T) {
	frame, err := Encode(Message{Type: TypeOK, Timestamp: "01:02:03"})
	require.NoError(t, err)

	decoded, err := Decode(frame[4:])
	require.NoError(t, err)
	assert.Equal(t, "01:02:03", decoded.Timestamp)
}

func TestDecodeDefaultsMissingFields(t *testing.T) {
	decoded, err := Decode([]byte(`{"type":200}`))
	require.NoError(t, err)
	assert.Equal(t, TypePing, decoded.Type)
	assert.Empty(t, decoded.Sender)
	assert.Empty(t, decoded.Receiver)
	assert.Empty(t, decoded.Content)
	assert.Empty(t, decoded.Timestamp)
	assert.Empty(t, decoded.Extra)
}

func TestPayloadIncludesAllFields(t *testing.T) {
	frame, err := Encode(Message{Type: TypePong})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(frame[4:], &raw))
	for _, key := range []string{"type", "sender", "receiver", "content", "timestamp", "extra"} {
		assert.Contains(t, raw, key)
	}
}

func TestNewOnlineList(t *testing.T) {
	msg, err := NewOnlineList([]string{"alice", "bob"})
	require.NoError(t, err)
	assert.Equal(t, TypeOnlineList, msg.Type)

	var names []string
	require.NoError(t, json.Unmarshal([]byte(msg.Extra), &names))
	assert.Equal(t, []string{"alice", "bob"}, names)
}

func TestNewOnlineListNilIsEmptyArray(t *testing.T) {
	msg, err := NewOnlineList(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", msg.Extra)
}

func TestNewUserStatus(t *testing.T) {
	on := NewUserStatus("alice", true)
	assert.Equal(t, TypeUserStatus, on.Type)
	assert.Equal(t, "alice", on.Sender)
	assert.Equal(t, "online", on.Content)

	off := NewUserStatus("alice", false)
	assert.Equal(t, "offline", off.Content)
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "REGISTER", TypeRegister.String())
	assert.Equal(t, "MSG_GLOBAL", TypeMsgGlobal.String())
	assert.Equal(t, "GET_BANNED_LIST", TypeGetBannedList.String())
	assert.Equal(t, "UNKNOWN", MessageType(999).String())
}
