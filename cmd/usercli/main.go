// Package main provides the user CLI entry point for testing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/voicebox/internal/api/connect"
	"github.com/osa030/voicebox/internal/app/notification"
)

var (
	app    = kingpin.New("voicebox-usercli", "voicebox user client for testing")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()

	// play command
	playCmd       = app.Command("play", "Request a track")
	playSession   = playCmd.Arg("session-id", "Session (guild) ID").Required().String()
	playChannel   = playCmd.Arg("channel-id", "Voice channel ID").Required().String()
	playQuery     = playCmd.Arg("query", "Search text or URL").Required().String()
	playRequester = playCmd.Flag("requester", "Requester ID").Default("usercli").String()
	playName      = playCmd.Flag("name", "Requester display name").String()

	// queue command
	queueCmd     = app.Command("queue", "Show the session queue")
	queueSession = queueCmd.Arg("session-id", "Session (guild) ID").Required().String()

	// subscribe command
	subscribeCmd     = app.Command("subscribe", "Subscribe to notifications")
	subscribeSession = subscribeCmd.Arg("session-id", "Session (guild) ID; all sessions when omitted").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewListenerServiceClient(
		http.DefaultClient,
		*server,
	)

	ctx := context.Background()

	switch command {
	case playCmd.FullCommand():
		play(ctx, client)
	case queueCmd.FullCommand():
		queue(ctx, client, *queueSession)
	case subscribeCmd.FullCommand():
		subscribe(ctx, client, *subscribeSession)
	}
}

func play(ctx context.Context, client *apiconnect.ListenerServiceClient) {
	resp, err := client.Play(ctx, connect.NewRequest(&apiconnect.PlayRequest{
		SessionID:     *playSession,
		ChannelID:     *playChannel,
		Query:         *playQuery,
		RequesterID:   *playRequester,
		RequesterName: *playName,
	}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case !resp.Msg.Success:
		fmt.Printf("Rejected [%s]: %s\n", resp.Msg.Code, resp.Msg.Message)
	case resp.Msg.Started:
		fmt.Printf("Now playing: %s\n", resp.Msg.Message)
	default:
		fmt.Printf("Queued at #%d: %s\n", resp.Msg.Position, resp.Msg.Message)
	}
}

func queue(ctx context.Context, client *apiconnect.ListenerServiceClient, sessionID string) {
	resp, err := client.GetQueue(ctx, connect.NewRequest(&apiconnect.SessionRequest{SessionID: sessionID}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	q := resp.Msg
	if q.Current == nil && len(q.Upcoming) == 0 {
		fmt.Println("The queue is empty.")
		return
	}
	if q.Current != nil {
		fmt.Printf("Now: %s [%s]\n", q.Current.Title, q.Current.Duration)
	}
	for i, t := range q.Upcoming {
		fmt.Printf("%2d. %s [%s] (requested by %s)\n", i+1, t.Title, t.Duration, t.RequesterName)
	}
	if q.Remaining > 0 {
		fmt.Printf("... and %d more\n", q.Remaining)
	}
}

func subscribe(ctx context.Context, client *apiconnect.ListenerServiceClient, sessionID string) {
	stream, err := client.SubscribeNotifications(ctx, connect.NewRequest(&apiconnect.SubscribeNotificationsRequest{
		SessionID: sessionID,
	}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Subscribed to notifications. Press Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		os.Exit(0)
	}()

	for stream.Receive() {
		printNotification(stream.Msg())
	}

	if err := stream.Err(); err != nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func printNotification(n *apiconnect.Notification) {
	fmt.Printf("\n[Sequence: %d] ", n.SequenceNo)

	switch n.Type {
	case notification.TypeTrackStarted:
		fmt.Println("=== TRACK STARTED ===")
	case notification.TypeTrackFailed:
		fmt.Println("=== TRACK FAILED ===")
	case notification.TypeQueueEmpty:
		fmt.Println("=== QUEUE EMPTY ===")
	case notification.TypeSessionClosed:
		fmt.Println("=== SESSION CLOSED ===")
	default:
		fmt.Printf("=== UNKNOWN EVENT (%s) ===\n", n.Type)
	}

	fmt.Printf("  Session ID: %s\n", n.SessionID)
	fmt.Printf("  Time: %s\n", n.Timestamp.Format("15:04:05"))
	if n.Reason != "" {
		fmt.Printf("  Reason: %s\n", n.Reason)
	}
	if t := n.Track; t != nil {
		fmt.Printf("  Title: %s\n", t.Title)
		fmt.Printf("  URL: %s\n", t.URL)
		fmt.Printf("  Duration: %s\n", t.Duration)
		fmt.Printf("  Requested by: %s\n", t.RequesterName)
	}
	fmt.Println()
}
