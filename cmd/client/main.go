package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"

	"github.com/Tyrowin/whiteboard/internal/client"
	"github.com/Tyrowin/whiteboard/pkg/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/api/v1/whiteboard", "whiteboard websocket endpoint")
	username := flag.String("username", "", "username to register")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if err := run(*url, *username, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(url, username, logLevel string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logs.GetLoggerFromString(logLevel)
	conn, err := client.Dial(ctx, url, client.HandlerFuncs{
		Open:  func() { color.Green.Println("Connected to whiteboard") },
		Frame: printFrame,
		Close: func(code int, reason string) {
			color.Gray.Printf("Connection closed (%d) %s\n", code, reason)
		},
		Error: func(err error) { color.Red.Println(err) },
	}, log)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	scanner := bufio.NewScanner(os.Stdin)
	if username == "" {
		fmt.Print("Username: ")
		if scanner.Scan() {
			username = strings.TrimSpace(scanner.Text())
		}
	}
	if err := conn.Register(username); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit, err := handleLine(conn, line); quit || err != nil {
				return err
			}
		}
	}
}

// handleLine sends one line of user input, interpreting slash commands.
func handleLine(conn *client.Client, line string) (bool, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false, nil
	case line == "/quit":
		return true, nil
	case line == "/users":
		return false, conn.RequestUserList()
	case line == "/clear":
		return false, conn.ClearHistory()
	case strings.HasPrefix(line, "/register "):
		return false, conn.Register(strings.TrimSpace(strings.TrimPrefix(line, "/register ")))
	default:
		return false, conn.SendText(line)
	}
}

func printFrame(frame protocol.Frame) {
	switch f := frame.(type) {
	case protocol.Message:
		fmt.Printf("%s: %s\n", color.Cyan.Sprint(f.Username), f.Text)
	case protocol.UserList:
		color.Yellow.Printf("Users: %s\n", strings.Join(f.Users, ", "))
	case protocol.Error:
		color.Red.Println(f.Message)
	default:
		color.Gray.Printf("Unexpected %s frame\n", f.Type())
	}
}
