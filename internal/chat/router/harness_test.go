package router

import (
	"context"
	"net"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/client"
	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

// testServer 單節點, memory storage, local fan-out
type testServer struct {
	app      *fiber.App
	url      string
	convRepo *repository.MemoryConversationRepository
	msgRepo  *repository.MemoryMessageRepository
	users    *repository.MemoryUserRepository
	registry *app.Registry
}

func newTestServer(presigner app.Presigner) *testServer {
	logger.SetNewNop()

	cfg := config.Chat{Storage: config.StorageMemory, Realtime: config.RealtimeConfig{
		Fanout:                  config.FanoutLocal,
		ClearTypingOnDisconnect: true,
	}}
	cfg.SetDefaults()

	s := &testServer{
		convRepo: repository.NewMemoryConversationRepository(),
		msgRepo:  repository.NewMemoryMessageRepository(),
		users: repository.NewMemoryUserRepository(
			domain.User{ID: "alice", Username: "alice", DisplayName: "Alice"},
			domain.User{ID: "bob", Username: "bob", DisplayName: "Bob"},
		),
	}
	s.registry = app.NewRegistry(nil)

	messageUC := app.NewMessageUseCase(s.convRepo, s.msgRepo, s.registry, s.registry, nil)
	conversationUC := app.NewConversationUseCase(s.convRepo, s.msgRepo, s.users, s.registry)
	typing := app.NewTypingRelay(s.convRepo, s.registry, s.registry, cfg.Realtime.ClearTypingOnDisconnect)
	s.registry.AddListener(app.NewPresencePublisher(s.convRepo, s.registry, s.registry))
	s.registry.AddListener(typing)

	s.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	RegisterRoutes(s.app,
		app.NewChatWebsocketHandler(s.registry, messageUC, conversationUC, typing, nil, cfg.Realtime),
		app.NewChatHTTPHandler(messageUC, conversationUC, app.NewAttachmentUseCase(presigner, time.Minute)),
	)
	return s
}

// listen serve on a random port, returns the websocket url
func (s *testServer) listen() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.url = "ws://" + ln.Addr().String() + "/ws"
	go func() { _ = s.app.Listener(ln) }()
	return nil
}

func (s *testServer) close() {
	_ = s.app.ShutdownWithTimeout(2 * time.Second)
}

func tokenFor(userID string) (string, error) {
	return token.GenerateJWT(userID, string(token.RoleUser), "test")
}

func mustToken(t testing.TB, userID string) string {
	t.Helper()
	tok, err := tokenFor(userID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

// connect dial as userID, apply setup, then start the store loop
func (s *testServer) connect(ctx context.Context, userID, tok string, setup ...func(*client.Store)) (*client.WebsocketTransport, *client.Store, error) {
	cfg := config.Client{
		ServerURL:         s.url,
		Token:             tok,
		UserID:            userID,
		TypingIdle:        200 * time.Millisecond,
		ReconnectInterval: 100 * time.Millisecond,
	}
	tr, err := client.DialWebsocket(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store := client.NewStore(tr, userID, cfg, func(error) {})
	for _, fn := range setup {
		fn(store)
	}
	go store.Run(ctx)
	return tr, store, nil
}
