// sessionctl exercises the careers API auth lifecycle from the command line:
// log in, watch the session countdown, log out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"careers-api/internal/auth"
	"careers-api/internal/client"
)

func main() {
	baseURL := flag.String("url", envOrDefault("CAREERS_API_URL", "http://localhost:8080"), "API base URL")
	carrierName := flag.String("carrier", envOrDefault("TOKEN_CARRIER", "header"), "token carrier: header or cookie")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	carrier, err := auth.ParseCarrier(*carrierName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	sessionPath, err := client.DefaultSessionPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve session path: %v\n", err)
		os.Exit(1)
	}

	c := client.New(client.Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Carrier:     carrier,
		SessionPath: sessionPath,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "login":
		err = runLogin(ctx, c, args[1:])
	case "status":
		err = runStatus(ctx, c)
	case "watch":
		err = runWatch(ctx, c)
	case "logout":
		c.Logout()
		fmt.Println("logged out")
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runLogin(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	_ = fs.Parse(args)

	if *username == "" || *password == "" {
		return errors.New("login requires -u and -p")
	}

	if err := c.Login(ctx, *username, *password); err != nil {
		var throttled client.ThrottledError
		if errors.As(err, &throttled) {
			return fmt.Errorf("throttled: %v", err)
		}
		return err
	}

	session, _ := c.Sessions().Current()
	fmt.Printf("logged in as %s (admin: %v)\n", session.Identity.Username, session.Identity.IsAdmin)
	return nil
}

func runStatus(ctx context.Context, c *client.Client) error {
	status, err := c.SessionStatus(ctx)
	if err != nil {
		fmt.Println("Session expired. Please log in again.")
		return nil
	}

	fmt.Println(client.FormatRemaining(time.Duration(status.TimeRemaining) * time.Millisecond))
	return nil
}

func runWatch(ctx context.Context, c *client.Client) error {
	tracker := c.NewTracker()
	go tracker.Run(ctx)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-ticker.C:
			fmt.Printf("\r%-40s", tracker.Status())
		}
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: sessionctl [-url URL] [-carrier header|cookie] <login -u USER -p PASS | status | watch | logout>")
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}
