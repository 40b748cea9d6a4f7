package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"chat-sync/internal/api"
	"chat-sync/internal/bridge"
	"chat-sync/internal/config"
	"chat-sync/internal/httpx"
	"chat-sync/internal/models"
	"chat-sync/internal/presence"
	"chat-sync/internal/store"
	"chat-sync/internal/transport"
)

func main() {
	_ = godotenv.Load()
	cfg := config.New()

	token := os.Getenv("CHAT_SESSION_TOKEN")
	if token == "" {
		log.Fatal("CHAT_SESSION_TOKEN is required")
	}
	chatID := os.Getenv("CHAT_ID")
	if chatID == "" {
		log.Fatal("CHAT_ID is required")
	}

	creds := httpx.NewMemoryCredentials(token)
	checker := httpx.NewDialChecker(cfg.API.BaseURL, 3*time.Second)
	notifier := httpx.NewNotifier(checker, 5*time.Second)
	client := httpx.NewClient(cfg.API.BaseURL, creds, checker, notifier, httpx.Options{
		MaxRetries:    cfg.Retry.MaxRetries,
		BaseDelay:     cfg.Retry.BaseDelay,
		MaxDelay:      cfg.Retry.MaxDelay,
		OfflinePause:  cfg.Retry.OfflinePause,
		Timeout:       cfg.API.Timeout,
		UploadTimeout: cfg.API.UploadTimeout,
	})
	chatAPI := api.NewRESTChatAPI(client)

	socket := transport.NewClient(transport.Options{
		URL:               cfg.Socket.URL,
		DialTimeout:       cfg.Socket.DialTimeout,
		ReconnectAttempts: cfg.Socket.ReconnectAttempts,
		ReconnectDelay:    cfg.Socket.ReconnectDelay,
	}, creds)

	st := store.New()
	br := bridge.New(chatAPI, socket, st, 50)
	coordinator := presence.NewCoordinator(socket, st, chatAPI, func() string {
		self, _ := br.Self()
		return self.ID
	}, cfg.Presence.TypingDecay, cfg.Presence.PollInterval)
	defer coordinator.Stop()

	notifier.Start()
	defer notifier.Stop()
	notifier.OnReconnect(func() {
		if err := socket.Connect(); err != nil {
			log.Printf("socket reconnect after outage failed: %v", err)
		}
		br.FlushPending()
	})

	if err := socket.Connect(); err != nil {
		log.Fatalf("socket connect failed: %v", err)
	}
	defer socket.Disconnect()

	session := br.OpenChat(chatID)
	defer session.Close()
	if err := session.Load(); err != nil {
		log.Fatalf("initial load failed: %v", err)
	}

	socket.Subscribe(models.EventNewMessage, func(data json.RawMessage) {
		// The bridge already merged it into the store; just repaint.
		render(st, chatID)
	})

	if chat, ok := st.Chat(chatID); ok {
		watchCtx, cancelWatch := context.WithCancel(context.Background())
		defer cancelWatch()
		go coordinator.Watch(watchCtx, chat.Participant.ID)
	}

	render(st, chatID)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		if err := br.SendText(chatID, text, ""); err != nil {
			log.Printf("send failed: %v", err)
		}
	}
}

func render(st *store.Store, chatID string) {
	for _, msg := range st.Messages(chatID) {
		fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Format("15:04"), msg.SenderID, msg.Preview())
	}
	fmt.Println("---")
}
