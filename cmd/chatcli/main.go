package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"chatsync/config"
	"chatsync/internal/chat"
	"chatsync/internal/domain"
	"chatsync/internal/identity"
	"chatsync/internal/restapi"
	"chatsync/internal/transport"
	"chatsync/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	logg := logger.New(cfg.AppMode)
	defer logg.Logger.Sync()

	userID, err := identity.UserIDFromToken(cfg.AccessToken)
	if err != nil {
		log.Fatalf("Failed to resolve user from access token: %v", err)
	}

	api := restapi.NewClient(cfg.APIBaseURL, cfg.AccessToken, cfg.RequestTimeout)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.AccessToken)
	broker := transport.NewSession(cfg.BrokerURL, header, cfg.HeartbeatInterval, cfg.ReconnectDelay, logg)

	notify := func(roomID string, err error) {
		fmt.Printf("! message to %s could not be delivered: %v\n", roomID, err)
	}

	user := domain.ChatUser{ID: userID}
	session := chat.New(user, api, broker, notify, logg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Start(ctx); err != nil {
		log.Fatalf("Failed to start chat session: %v", err)
	}
	defer session.Stop()

	printRooms(session, userID)
	repl(ctx, session, userID)
}

func printRooms(session *chat.Session, userID int64) {
	rooms := session.Directory().Rooms()
	if len(rooms) == 0 {
		fmt.Println("no rooms")
		return
	}
	for _, room := range rooms {
		display := room.Display(userID)
		last := room.LastMessage.Body
		if room.Degraded {
			last = "(unavailable)"
		}
		fmt.Printf("%s  %-20s  %s\n", room.ID, display.Name, last)
	}
}

func repl(ctx context.Context, session *chat.Session, userID int64) {
	var openRoom string

	fmt.Println("commands: rooms | open <room-id> | older | send <text> | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")

		switch cmd {
		case "rooms":
			printRooms(session, userID)
		case "open":
			tl, err := session.OpenRoom(ctx, arg)
			if err != nil {
				fmt.Printf("open failed: %v\n", err)
				continue
			}
			openRoom = arg
			for _, msg := range tl.Messages() {
				fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Format("15:04"), msg.SentBy.DisplayName(), msg.Body)
			}
		case "older":
			if openRoom == "" {
				fmt.Println("no open room")
				continue
			}
			tl, err := session.OpenRoom(ctx, openRoom)
			if err == nil {
				err = tl.LoadOlder(ctx)
			}
			if err != nil {
				fmt.Printf("load older: %v\n", err)
			}
		case "send":
			if openRoom == "" {
				fmt.Println("no open room")
				continue
			}
			go session.Send(ctx, openRoom, arg, domain.MessageKindText)
		case "quit":
			return
		case "":
		default:
			fmt.Println("unknown command")
		}
	}
}
