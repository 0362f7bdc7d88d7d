// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/voicebox/internal/api/connect"
)

var (
	app    = kingpin.New("voicebox-admincli", "voicebox admin client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	// sessions command
	sessionsCmd = app.Command("sessions", "List active sessions").Alias("list")

	// status command
	statusCmd     = app.Command("status", "Get session status")
	statusSession = statusCmd.Arg("session-id", "Session (guild) ID").Required().String()

	// queue command
	queueCmd     = app.Command("queue", "Show the session queue")
	queueSession = queueCmd.Arg("session-id", "Session (guild) ID").Required().String()

	// skip command
	skipCmd     = app.Command("skip", "Skip the current track")
	skipSession = skipCmd.Arg("session-id", "Session (guild) ID").Required().String()

	// stop command
	stopCmd     = app.Command("stop", "Stop the session and leave voice")
	stopSession = stopCmd.Arg("session-id", "Session (guild) ID").Required().String()

	// pause command
	pauseCmd     = app.Command("pause", "Pause the session")
	pauseSession = pauseCmd.Arg("session-id", "Session (guild) ID").Required().String()

	// resume command
	resumeCmd     = app.Command("resume", "Resume the session")
	resumeSession = resumeCmd.Arg("session-id", "Session (guild) ID").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewAdminServiceClient(
		http.DefaultClient,
		*server,
		connect.WithInterceptors(apiconnect.NewAdminTokenInterceptor(*token)),
	)

	ctx := context.Background()

	switch command {
	case sessionsCmd.FullCommand():
		listSessions(ctx, client)
	case statusCmd.FullCommand():
		status(ctx, client, *statusSession)
	case queueCmd.FullCommand():
		queue(ctx, client, *queueSession)
	case skipCmd.FullCommand():
		printAction(client.Skip(ctx, connect.NewRequest(&apiconnect.SessionRequest{SessionID: *skipSession})))
	case stopCmd.FullCommand():
		printAction(client.Stop(ctx, connect.NewRequest(&apiconnect.SessionRequest{SessionID: *stopSession})))
	case pauseCmd.FullCommand():
		printAction(client.Pause(ctx, connect.NewRequest(&apiconnect.SessionRequest{SessionID: *pauseSession})))
	case resumeCmd.FullCommand():
		printAction(client.Resume(ctx, connect.NewRequest(&apiconnect.SessionRequest{SessionID: *resumeSession})))
	}
}

func listSessions(ctx context.Context, client *apiconnect.AdminServiceClient) {
	resp, err := client.ListSessions(ctx, connect.NewRequest(&apiconnect.ListSessionsRequest{}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if len(resp.Msg.Sessions) == 0 {
		fmt.Println("No active sessions.")
		return
	}

	fmt.Printf("Active sessions (%d):\n", len(resp.Msg.Sessions))
	for _, s := range resp.Msg.Sessions {
		now := "-"
		if s.Current != nil {
			now = s.Current.Title
		}
		fmt.Printf("  %s  %-8s queued=%-3d now=%s\n", s.SessionID, formatState(s), s.QueueLength, now)
	}
}

func status(ctx context.Context, client *apiconnect.AdminServiceClient, sessionID string) {
	resp, err := client.GetStatus(ctx, connect.NewRequest(&apiconnect.SessionRequest{SessionID: sessionID}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	s := resp.Msg.Status
	fmt.Println("Session Status:")
	fmt.Printf("  Session ID: %s\n", s.SessionID)
	fmt.Printf("  State: %s\n", formatState(s))
	fmt.Printf("  Connected: %v\n", s.Connected)
	if s.ChannelID != "" {
		fmt.Printf("  Voice Channel: %s\n", s.ChannelID)
	}
	fmt.Printf("  Queue Length: %d\n", s.QueueLength)
	fmt.Printf("  Listeners: %d\n", s.Listeners)
	fmt.Printf("  Inactivity Timer: %v\n", s.TimerArmed)
	fmt.Printf("  Created At: %s\n", s.CreatedAt)
	if s.Current != nil {
		fmt.Println("\nNow Playing:")
		printTrack(s.Current)
	}
}

func queue(ctx context.Context, client *apiconnect.AdminServiceClient, sessionID string) {
	resp, err := client.GetQueue(ctx, connect.NewRequest(&apiconnect.SessionRequest{SessionID: sessionID}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printQueue(resp.Msg)
}

func printAction(resp *connect.Response[apiconnect.ActionResponse], err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if resp.Msg.Success {
		fmt.Printf("Success: %s\n", resp.Msg.Message)
	} else {
		fmt.Printf("Failed [%s]: %s\n", resp.Msg.Code, resp.Msg.Message)
	}
}

func formatState(s *apiconnect.SessionStatus) string {
	if s.Paused {
		return "paused"
	}
	return s.State
}

func printQueue(q *apiconnect.GetQueueResponse) {
	if q.Current == nil && len(q.Upcoming) == 0 {
		fmt.Println("The queue is empty.")
		return
	}
	if q.Current != nil {
		fmt.Println("Now Playing:")
		printTrack(q.Current)
	}
	if len(q.Upcoming) > 0 {
		fmt.Println("\nUp Next:")
		for i, t := range q.Upcoming {
			fmt.Printf("  %2d. %s [%s] (requested by %s)\n", i+1, t.Title, t.Duration, t.RequesterName)
		}
	}
	if q.Remaining > 0 {
		fmt.Printf("  ... and %d more\n", q.Remaining)
	}
}

func printTrack(t *apiconnect.TrackInfo) {
	fmt.Printf("  Title: %s\n", t.Title)
	if t.Artist != "" {
		fmt.Printf("  Artist: %s\n", t.Artist)
	}
	fmt.Printf("  URL: %s\n", t.URL)
	fmt.Printf("  Duration: %s\n", t.Duration)
	fmt.Printf("  Requested by: %s\n", t.RequesterName)
}
