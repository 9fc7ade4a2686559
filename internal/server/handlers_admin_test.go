package server

import (
	"context"
	"encoding/json"
	"testing"

	"parley/internal/models"
	"parley/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adminEnv returns a running server with an admin and a member account, the
// admin already logged in.
func adminEnv(t *testing.T) (*testEnv, *testClient) {
	t.Helper()
	env := newTestEnv(t, 10)
	env.seedUser(t, "boss", "secret", models.RoleAdmin)
	env.seedUser(t, "bob", "secret", models.RoleMember)

	admin := env.dial(t)
	admin.login(t, "boss", "secret")
	return env, admin
}

func TestAdminPrivilegesRequired(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedUser(t, "bob", "secret", models.RoleMember)

	c := env.dial(t)
	c.send(protocol.Message{Type: protocol.TypeKickUser, Receiver: "someone"})
	msg := c.expect(protocol.TypeError)
	assert.Equal(t, "Must be logged in", msg.Content)

	c.login(t, "bob", "secret")
	c.send(protocol.Message{Type: protocol.TypeKickUser, Receiver: "someone"})
	msg = c.expect(protocol.TypeError)
	assert.Equal(t, "Admin privileges required", msg.Content)
}

func TestAdminTargetRequired(t *testing.T) {
	_, admin := adminEnv(t)

	admin.send(protocol.Message{Type: protocol.TypeBanUser})
	msg := admin.expect(protocol.TypeError)
	assert.Equal(t, "Target user not specified", msg.Content)
}

func TestKickUser(t *testing.T) {
	env, admin := adminEnv(t)

	bob := env.dial(t)
	bob.login(t, "bob", "secret")
	admin.expect(protocol.TypeUserStatus) // bob online

	admin.send(protocol.Message{Type: protocol.TypeKickUser, Receiver: "bob"})

	kicked := bob.expect(protocol.TypeKicked)
	assert.Equal(t, "You have been kicked by boss", kicked.Content)
	bob.expectClosed()

	ok := admin.expect(protocol.TypeOK)
	assert.Equal(t, "User kicked: bob", ok.Content)
	status := admin.expect(protocol.TypeUserStatus)
	assert.Equal(t, "bob", status.Sender)
	assert.Equal(t, "offline", status.Content)

	assert.False(t, env.srv.Hub().IsUserOnline("bob"))
}

func TestKickValidation(t *testing.T) {
	_, admin := adminEnv(t)

	admin.send(protocol.Message{Type: protocol.TypeKickUser, Receiver: "boss"})
	msg := admin.expect(protocol.TypeError)
	assert.Equal(t, "Cannot kick yourself", msg.Content)

	admin.send(protocol.Message{Type: protocol.TypeKickUser, Receiver: "bob"})
	msg = admin.expect(protocol.TypeError)
	assert.Equal(t, "User not online: bob", msg.Content)
}

func TestBanOnlineUserAlsoKicks(t *testing.T) {
	env, admin := adminEnv(t)

	bob := env.dial(t)
	bob.login(t, "bob", "secret")
	admin.expect(protocol.TypeUserStatus)

	admin.send(protocol.Message{Type: protocol.TypeBanUser, Receiver: "bob"})

	banned := bob.expect(protocol.TypeBanned)
	assert.Equal(t, "You have been banned by boss", banned.Content)
	bob.expectClosed()

	status := admin.expect(protocol.TypeUserStatus)
	assert.Equal(t, "offline", status.Content)
	ok := admin.expect(protocol.TypeOK)
	assert.Equal(t, "User banned: bob", ok.Content)

	isBanned, err := env.accounts.IsBanned(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, isBanned)

	// The banned account cannot log back in.
	again := env.dial(t)
	again.send(protocol.Message{Type: protocol.TypeLogin, Content: credsContent(t, "bob", "secret")})
	msg := again.expect(protocol.TypeError)
	assert.Equal(t, "Your account has been banned", msg.Content)
}

func TestBanValidation(t *testing.T) {
	env, admin := adminEnv(t)
	env.seedUser(t, "boss2", "secret", models.RoleAdmin)

	admin.send(protocol.Message{Type: protocol.TypeBanUser, Receiver: "boss"})
	msg := admin.expect(protocol.TypeError)
	assert.Equal(t, "Cannot ban yourself", msg.Content)

	admin.send(protocol.Message{Type: protocol.TypeBanUser, Receiver: "boss2"})
	msg = admin.expect(protocol.TypeError)
	assert.Equal(t, "Cannot ban an admin", msg.Content)

	admin.send(protocol.Message{Type: protocol.TypeBanUser, Receiver: "ghost"})
	msg = admin.expect(protocol.TypeError)
	assert.Equal(t, "User not found: ghost", msg.Content)
}

func TestUnban(t *testing.T) {
	env, admin := adminEnv(t)
	require.NoError(t, env.accounts.Ban(context.Background(), "bob"))

	admin.send(protocol.Message{Type: protocol.TypeUnbanUser, Receiver: "bob"})
	ok := admin.expect(protocol.TypeOK)
	assert.Equal(t, "User unbanned: bob", ok.Content)

	banned, err := env.accounts.IsBanned(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestMuteAndUnmuteNotifyOnlineUser(t *testing.T) {
	env, admin := adminEnv(t)

	bob := env.dial(t)
	bob.login(t, "bob", "secret")
	admin.expect(protocol.TypeUserStatus)

	admin.send(protocol.Message{Type: protocol.TypeMuteUser, Receiver: "bob"})
	notice := bob.expect(protocol.TypeMuted)
	assert.Equal(t, "You have been muted by boss", notice.Content)
	ok := admin.expect(protocol.TypeOK)
	assert.Equal(t, "User muted: bob", ok.Content)

	bob.send(protocol.Message{Type: protocol.TypeMsgGlobal, Content: "still here?"})
	msg := bob.expect(protocol.TypeError)
	assert.Equal(t, "You are muted and cannot send messages", msg.Content)

	admin.send(protocol.Message{Type: protocol.TypeUnmuteUser, Receiver: "bob"})
	notice = bob.expect(protocol.TypeUnmuted)
	assert.Equal(t, "You have been unmuted by boss", notice.Content)
	ok = admin.expect(protocol.TypeOK)
	assert.Equal(t, "User unmuted: bob", ok.Content)

	bob.send(protocol.Message{Type: protocol.TypeMsgGlobal, Content: "free again"})
	got := bob.expect(protocol.TypeMsgGlobal)
	assert.Equal(t, "free again", got.Content)
}

func TestPromoteAndDemote(t *testing.T) {
	env, admin := adminEnv(t)

	admin.send(protocol.Message{Type: protocol.TypePromoteUser, Receiver: "bob"})
	ok := admin.expect(protocol.TypeOK)
	assert.Equal(t, "User promoted to admin: bob", ok.Content)

	isAdmin, err := env.accounts.IsAdmin(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	admin.send(protocol.Message{Type: protocol.TypePromoteUser, Receiver: "bob"})
	msg := admin.expect(protocol.TypeError)
	assert.Equal(t, "User is already an admin", msg.Content)

	admin.send(protocol.Message{Type: protocol.TypeDemoteUser, Receiver: "bob"})
	ok = admin.expect(protocol.TypeOK)
	assert.Equal(t, "User demoted from admin: bob", ok.Content)

	admin.send(protocol.Message{Type: protocol.TypeDemoteUser, Receiver: "bob"})
	msg = admin.expect(protocol.TypeError)
	assert.Equal(t, "User is not an admin", msg.Content)

	admin.send(protocol.Message{Type: protocol.TypeDemoteUser, Receiver: "boss"})
	msg = admin.expect(protocol.TypeError)
	assert.Equal(t, "Cannot demote yourself", msg.Content)
}

func TestGetAllUsers(t *testing.T) {
	_, admin := adminEnv(t)

	admin.send(protocol.Message{Type: protocol.TypeGetAllUsers})
	msg := admin.expect(protocol.TypeGetAllUsers)

	var infos []models.UserInfo
	require.NoError(t, json.Unmarshal([]byte(msg.Extra), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "bob", infos[0].Username)
	assert.False(t, infos[0].IsOnline)
	assert.Equal(t, "boss", infos[1].Username)
	assert.True(t, infos[1].IsOnline)
	assert.Equal(t, models.RoleAdmin, infos[1].Role)
}

func TestBannedAndMutedLists(t *testing.T) {
	env, admin := adminEnv(t)

	admin.send(protocol.Message{Type: protocol.TypeGetBannedList})
	msg := admin.expect(protocol.TypeGetBannedList)
	assert.Equal(t, "[]", msg.Extra, "empty lists stay JSON arrays")

	require.NoError(t, env.accounts.Ban(context.Background(), "bob"))
	require.NoError(t, env.accounts.Mute(context.Background(), "bob"))

	admin.send(protocol.Message{Type: protocol.TypeGetBannedList})
	msg = admin.expect(protocol.TypeGetBannedList)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(msg.Extra), &names))
	assert.Equal(t, []string{"bob"}, names)

	admin.send(protocol.Message{Type: protocol.TypeGetMutedList})
	msg = admin.expect(protocol.TypeGetMutedList)
	require.NoError(t, json.Unmarshal([]byte(msg.Extra), &names))
	assert.Equal(t, []string{"bob"}, names)
}
