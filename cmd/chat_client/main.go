package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"realtime_chat_service/internal/chat/client"
	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

const help = `commands:
  /chats              list conversations
  /open <n|userId>    open conversation n from /chats, or start one with userId
  /more <page>        load an older history page
  /delete <n>         delete conversation n
  /typing             show the peer that you are typing
  /quit
anything else is sent to the open conversation`

func main() {
	debug := flag.Bool("debug", false, "debug log")
	flag.Parse()

	logger.Log = logger.Initialize(config.EnvConfig.ChatClient, config.EnvConfig.ChatClientLogPath)
	logger.Log.SetDebugMode(*debug)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.Client](config.EnvConfig.ChatClient, config.EnvConfig.ChatClientYAMLPath)
	cfg.SetDefaults()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := client.DialWebsocket(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("connect chat service", zap.String("url", cfg.ServerURL), zap.Error(err))
	}
	defer transport.Close()

	store := client.NewStore(transport, cfg.UserID, cfg, func(err error) {
		fmt.Printf("! %v\n", err)
	})
	redraw := make(chan struct{}, 1)
	store.OnChange(func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	})
	go store.Run(ctx)

	if err := store.FetchChats(ctx); err == nil {
		printChats(store)
	}
	fmt.Println(help)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var screen string
	for {
		select {
		case <-ctx.Done():
			return
		case <-redraw:
			// 只在畫面內容變動時重印
			if v := view(store, cfg.UserID); v != screen {
				fmt.Print(v)
				screen = v
			}
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !handle(ctx, store, strings.TrimSpace(line)) {
				return
			}
		}
	}
}

func handle(ctx context.Context, store *client.Store, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "":
		return true
	case "/quit":
		return false
	case "/chats":
		if store.FetchChats(ctx) == nil {
			printChats(store)
		}
	case "/open":
		conv, err := pick(ctx, store, arg)
		if err != nil {
			fmt.Printf("! %v\n", err)
			return true
		}
		_ = store.SelectConversation(ctx, *conv)
	case "/more":
		sel := store.Selected()
		page, err := strconv.Atoi(arg)
		if sel == nil || err != nil {
			fmt.Println("! usage: /more <page> with a conversation open")
			return true
		}
		_ = store.FetchMessages(ctx, sel.ID, page)
	case "/delete":
		chats := store.Chats()
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(chats) {
			fmt.Println("! usage: /delete <n>")
			return true
		}
		_ = store.DeleteConversation(ctx, chats[n-1].ID)
	case "/typing":
		store.Keystroke(ctx)
	default:
		if strings.HasPrefix(cmd, "/") {
			fmt.Println(help)
			return true
		}
		_, _ = store.Send(ctx, line, nil)
	}
	return true
}

func pick(ctx context.Context, store *client.Store, arg string) (*domain.ConversationView, error) {
	chats := store.Chats()
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(chats) {
		return &chats[n-1], nil
	}
	if arg == "" {
		return nil, fmt.Errorf("usage: /open <n|userId>")
	}
	return store.CreateDirect(ctx, arg)
}

func printChats(store *client.Store) {
	for i, c := range store.Chats() {
		online := " "
		if c.IsOnline {
			online = "*"
		}
		last := ""
		if c.LastMessage != nil {
			last = c.LastMessage.Content
		}
		fmt.Printf("%2d %s %-24s unread=%d  %s\n", i+1, online, c.ID, c.UnreadCount, last)
	}
}

// view open conversation with receipts, peer presence / typing and unread elsewhere
func view(store *client.Store, self string) string {
	var b strings.Builder
	for _, c := range store.Chats() {
		if sel := store.Selected(); c.UnreadCount > 0 && (sel == nil || sel.ID != c.ID) {
			fmt.Fprintf(&b, "  (%d unread from %s)\n", c.UnreadCount, c.OtherParticipant(self))
		}
	}

	sel := store.Selected()
	if sel == nil {
		return b.String()
	}
	peer := sel.OtherParticipant(self)
	presence := "offline"
	if sel.IsOnline {
		presence = "online"
	}
	fmt.Fprintf(&b, "-- %s (%s)", peer, presence)
	if store.IsTyping(sel.ID, peer) {
		b.WriteString(" typing...")
	}
	b.WriteString("\n")

	for _, e := range store.Entries() {
		who := e.Message.SenderID
		if who == self {
			who = "me"
		}
		mark := tick(&e.Message)
		if e.Provisional() {
			mark = "…"
		}
		fmt.Fprintf(&b, "  %-8s [%s] %s\n", who, mark, e.Message.Content)
	}
	return b.String()
}

// tick ✓ sent, ✓✓ delivered, ✓✓r read
func tick(m *domain.Message) string {
	switch m.State() {
	case domain.StateRead:
		return "✓✓r"
	case domain.StateDelivered:
		return "✓✓"
	default:
		return "✓"
	}
}
