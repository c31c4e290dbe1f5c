package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/client"
	"realtime_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPresigner struct{}

func (stubPresigner) PresignPutURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "http://minio.local/put/" + objectName, nil
}

func (stubPresigner) PresignGetURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "http://minio.local/get/" + objectName, nil
}

func doJSON(t *testing.T, s *testServer, method, path, tok string, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestHTTP_Unauthorized(t *testing.T) {
	s := newTestServer(nil)

	resp, _ := doJSON(t, s, http.MethodGet, "/api/chats", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodGet, "/api/chats", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTP_ConnectCheck(t *testing.T) {
	s := newTestServer(nil)
	resp, body := doJSON(t, s, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "chat service start")
}

func TestHTTP_WebsocketRequiresUpgrade(t *testing.T) {
	s := newTestServer(nil)
	resp, _ := doJSON(t, s, http.MethodGet, "/ws", mustToken(t, "alice"), "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestHTTP_HugeHistoryPageIsEmpty(t *testing.T) {
	s := newTestServer(nil)
	alice := mustToken(t, "alice")

	_, body := doJSON(t, s, http.MethodPost, "/api/chats/direct", alice, `{"otherUserId":"bob"}`)
	var view domain.ConversationView
	require.NoError(t, json.Unmarshal(body, &view))

	for _, page := range []string{"9223372036854775807", "4611686018427387905"} {
		resp, body := doJSON(t, s, http.MethodGet, "/api/chats/"+view.ID+"/messages?limit=3&page="+page, alice, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.JSONEq(t, "[]", string(body))
	}
}

func TestHTTP_ConversationLifecycle(t *testing.T) {
	s := newTestServer(nil)
	alice, bob, carol := mustToken(t, "alice"), mustToken(t, "bob"), mustToken(t, "carol")

	resp, body := doJSON(t, s, http.MethodPost, "/api/chats/direct", alice, `{"otherUserId":"bob"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var view domain.ConversationView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "bob", view.OtherParticipant("alice"))

	// 同一對使用者只會有一個對話
	_, body = doJSON(t, s, http.MethodPost, "/api/chats/direct", bob, `{"otherUserId":"alice"}`)
	var again domain.ConversationView
	require.NoError(t, json.Unmarshal(body, &again))
	assert.Equal(t, view.ID, again.ID)

	resp, body = doJSON(t, s, http.MethodGet, "/api/chats", alice, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var views []domain.ConversationView
	require.NoError(t, json.Unmarshal(body, &views))
	require.Len(t, views, 1)
	assert.Equal(t, view.ID, views[0].ID)

	resp, body = doJSON(t, s, http.MethodGet, "/api/chats/"+view.ID+"/messages", carol, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var eb app.ErrorBody
	require.NoError(t, json.Unmarshal(body, &eb))
	assert.Equal(t, domain.CodeForbidden, eb.Code)

	resp, _ = doJSON(t, s, http.MethodGet, "/api/chats/missing/messages", alice, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodDelete, "/api/chats/"+view.ID, carol, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodDelete, "/api/chats/"+view.ID, alice, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body = doJSON(t, s, http.MethodGet, "/api/chats", bob, "")
	require.NoError(t, json.Unmarshal(body, &views))
	assert.Empty(t, views)
}

func TestHTTP_CreateDirectValidation(t *testing.T) {
	s := newTestServer(nil)
	tok := mustToken(t, "alice")

	resp, _ := doJSON(t, s, http.MethodPost, "/api/chats/direct", tok, `{"otherUserId":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodPost, "/api/chats/direct", tok, `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTP_PresignAttachment(t *testing.T) {
	tok := mustToken(t, "alice")

	disabled := newTestServer(nil)
	resp, _ := doJSON(t, disabled, http.MethodPost, "/api/attachments/presign", tok, `{"fileName":"a.png","type":"image"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s := newTestServer(stubPresigner{})
	resp, body := doJSON(t, s, http.MethodPost, "/api/attachments/presign", tok, `{"fileName":"Cat.PNG","type":"image"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var ticket app.UploadTicket
	require.NoError(t, json.Unmarshal(body, &ticket))
	assert.True(t, strings.HasPrefix(ticket.ObjectName, "attachments/alice/"))
	assert.True(t, strings.HasSuffix(ticket.ObjectName, ".png"))
	assert.Equal(t, "http://minio.local/put/"+ticket.ObjectName, ticket.UploadURL)

	resp, _ = doJSON(t, s, http.MethodPost, "/api/attachments/presign", tok, `{"fileName":"a.exe","type":"binary"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// stateRecorder 記錄 store 每次變更後各訊息的送達狀態
type stateRecorder struct {
	mu     sync.Mutex
	states map[string][]domain.DeliveryState
}

func record(store *client.Store) *stateRecorder {
	r := &stateRecorder{states: make(map[string][]domain.DeliveryState)}
	store.OnChange(func() {
		entries := store.Entries()
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, e := range entries {
			if e.Provisional() {
				continue
			}
			seen := r.states[e.ServerID]
			st := e.Message.State()
			if len(seen) == 0 || seen[len(seen)-1] != st {
				r.states[e.ServerID] = append(seen, st)
			}
		}
	})
	return r
}

func (r *stateRecorder) history(id string) []domain.DeliveryState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.DeliveryState(nil), r.states[id]...)
}

func entryState(store *client.Store, serverID string) (domain.DeliveryState, bool) {
	for _, e := range store.Entries() {
		if e.ServerID == serverID {
			return e.Message.State(), true
		}
	}
	return 0, false
}

func TestRealtime_OfflineMessageDeliveredThenRead(t *testing.T) {
	s := newTestServer(nil)
	require.NoError(t, s.listen())
	defer s.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var rec *stateRecorder
	aliceTr, alice, err := s.connect(ctx, "alice", mustToken(t, "alice"), func(st *client.Store) { rec = record(st) })
	require.NoError(t, err)
	defer aliceTr.Close()

	view, err := alice.CreateDirect(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, alice.SelectConversation(ctx, *view))

	sent, err := alice.Send(ctx, "hi", nil)
	require.NoError(t, err)
	assert.Nil(t, sent.DeliveredAt)
	assert.Nil(t, sent.ReadAt)

	stored, err := s.msgRepo.FindByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.DeliveredAt)

	bobTr, bob, err := s.connect(ctx, "bob", mustToken(t, "bob"))
	require.NoError(t, err)
	defer bobTr.Close()

	require.NoError(t, bob.FetchChats(ctx))
	chats := bob.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, 1, chats[0].UnreadCount)
	assert.True(t, chats[0].IsOnline)

	require.NoError(t, bob.SelectConversation(ctx, chats[0]))
	assert.Equal(t, 0, bob.Chats()[0].UnreadCount)

	assert.Eventually(t, func() bool {
		st, ok := entryState(alice, sent.ID)
		return ok && st == domain.StateRead
	}, 3*time.Second, 20*time.Millisecond)

	// delivered 先於 read 且互不覆蓋
	assert.Equal(t, []domain.DeliveryState{domain.StateSent, domain.StateDelivered, domain.StateRead}, rec.history(sent.ID))

	conv, err := s.convRepo.FindByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadFor("bob"))
}

func TestRealtime_OnlineRecipientAndTyping(t *testing.T) {
	s := newTestServer(nil)
	require.NoError(t, s.listen())
	defer s.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aliceTr, alice, err := s.connect(ctx, "alice", mustToken(t, "alice"))
	require.NoError(t, err)
	defer aliceTr.Close()
	bobTr, bob, err := s.connect(ctx, "bob", mustToken(t, "bob"))
	require.NoError(t, err)
	defer bobTr.Close()

	view, err := alice.CreateDirect(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, alice.SelectConversation(ctx, *view))
	require.NoError(t, bob.FetchChats(ctx))
	require.NoError(t, bob.SelectConversation(ctx, bob.Chats()[0]))

	alice.Keystroke(ctx)
	assert.Eventually(t, func() bool { return bob.IsTyping(view.ID, "alice") }, 2*time.Second, 10*time.Millisecond)

	sent, err := alice.Send(ctx, "are you there?", nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok := entryState(bob, sent.ID)
		return ok && !bob.IsTyping(view.ID, "alice")
	}, 2*time.Second, 10*time.Millisecond)

	// bob 正在看這個對話, 推播後立即回 delivered
	assert.Eventually(t, func() bool {
		st, ok := entryState(alice, sent.ID)
		return ok && st >= domain.StateDelivered
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRealtime_PresenceChanges(t *testing.T) {
	s := newTestServer(nil)
	require.NoError(t, s.listen())
	defer s.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aliceTr, alice, err := s.connect(ctx, "alice", mustToken(t, "alice"))
	require.NoError(t, err)
	defer aliceTr.Close()

	_, err = alice.CreateDirect(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, alice.FetchChats(ctx))
	assert.False(t, alice.Chats()[0].IsOnline)

	bobTr, _, err := s.connect(ctx, "bob", mustToken(t, "bob"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return alice.Chats()[0].IsOnline }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, s.registry.IsOnline(ctx, "bob"))

	require.NoError(t, bobTr.Close())
	assert.Eventually(t, func() bool { return !alice.Chats()[0].IsOnline }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, s.registry.IsOnline(ctx, "bob"))
}

func TestRealtime_RejectsImpersonation(t *testing.T) {
	s := newTestServer(nil)
	require.NoError(t, s.listen())
	defer s.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, _, err := s.connect(ctx, "alice", mustToken(t, "alice"))
	require.NoError(t, err)
	defer tr.Close()

	err = tr.Request(ctx, domain.ActionUserOnline, domain.OnlinePayload{UserID: "bob"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = tr.Request(ctx, domain.Action("chat:unknown"), nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
