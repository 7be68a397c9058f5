// pageroomctl is a small demonstration CLI exercising the full public API
// (join, insert, update, remove, patch, listenStream, deletePage) against
// a running pageroomd, in the same flag-based register
// teacher_server/main.go and teacher_agent/main.go use for their own
// configuration: no CLI framework, just flag and os.Getenv fallbacks.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/collabtext/pageroom/metadata"
	"github.com/collabtext/pageroom/metadata/httpclient"
	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/room"
	"github.com/collabtext/pageroom/stream"
	"github.com/collabtext/pageroom/transport"
	"github.com/collabtext/pageroom/transport/wsduplex"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	verb := os.Args[1]
	fs := flag.NewFlagSet(verb, flag.ExitOnError)

	httpAddr := fs.String("http", envOr("PAGEROOMD_HTTP", "http://localhost:8081"), "pageroomd metadata HTTP address")
	wsAddr := fs.String("ws", envOr("PAGEROOMD_WS", "ws://localhost:8081/ws"), "pageroomd websocket address")
	project := fs.String("project", "", "project name")
	title := fs.String("title", "", "page title")
	text := fs.String("text", "", "line text")
	lineId := fs.String("line", "", "target line id")
	before := fs.String("before", string(model.EndAnchor), "insert-before anchor line id")
	_ = fs.Parse(os.Args[2:])

	fetcher := httpclient.New(*httpAddr)
	connect := func(ctx context.Context) (transport.Duplex, error) {
		return wsduplex.Dial(ctx, *wsAddr, http.Header{})
	}

	ctx := context.Background()

	switch verb {
	case "join":
		runInteractiveSession(ctx, connect, fetcher, *project, *title)
	case "insert":
		mustProjectTitle(*project, *title)
		withRoom(ctx, connect, fetcher, *project, *title, func(r *room.Room) error {
			return r.Insert(ctx, *text, model.LineId(*before))
		})
	case "update":
		mustProjectTitle(*project, *title)
		withRoom(ctx, connect, fetcher, *project, *title, func(r *room.Room) error {
			return r.Update(ctx, *text, model.LineId(*lineId))
		})
	case "remove":
		mustProjectTitle(*project, *title)
		withRoom(ctx, connect, fetcher, *project, *title, func(r *room.Room) error {
			return r.Remove(ctx, model.LineId(*lineId))
		})
	case "patch":
		mustProjectTitle(*project, *title)
		err := room.Patch(ctx, connect, fetcher, *project, *title, func(lines []string) ([]string, error) {
			return editInteractively(lines)
		})
		if err != nil {
			log.Fatalf("pageroomctl: patch: %v", err)
		}
	case "stream":
		runStream(ctx, connect, fetcher, *project, fs.Args()...)
	case "rm":
		mustProjectTitle(*project, *title)
		if err := room.DeletePage(ctx, connect, fetcher, *project, *title); err != nil {
			log.Fatalf("pageroomctl: rm: %v", err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pageroomctl <join|insert|update|remove|patch|stream|rm> [flags]")
}

func mustProjectTitle(project, title string) {
	if project == "" || title == "" {
		log.Fatal("pageroomctl: -project and -title are required")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func withRoom(ctx context.Context, connect room.Connector, fetcher metadata.Fetcher, project, title string, f func(*room.Room) error) {
	conn, err := connect(ctx)
	if err != nil {
		log.Fatalf("pageroomctl: connect: %v", err)
	}
	r, err := room.Join(ctx, conn, fetcher, project, title)
	if err != nil {
		_ = conn.Disconnect()
		log.Fatalf("pageroomctl: join: %v", err)
	}
	defer r.Cleanup()

	if err := f(r); err != nil {
		log.Fatalf("pageroomctl: %v", err)
	}
}

func runInteractiveSession(ctx context.Context, connect room.Connector, fetcher metadata.Fetcher, project, title string) {
	mustProjectTitle(project, title)
	conn, err := connect(ctx)
	if err != nil {
		log.Fatalf("pageroomctl: connect: %v", err)
	}
	r, err := room.Join(ctx, conn, fetcher, project, title)
	if err != nil {
		_ = conn.Disconnect()
		log.Fatalf("pageroomctl: join: %v", err)
	}
	defer r.Cleanup()

	log.Printf("joined %s/%s, ctrl-D to exit", project, title)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := r.Insert(ctx, line, model.EndAnchor); err != nil {
			log.Printf("pageroomctl: insert: %v", err)
		}
	}
}

func runStream(ctx context.Context, connect room.Connector, fetcher metadata.Fetcher, project string, events ...string) {
	if project == "" {
		log.Fatal("pageroomctl: -project is required")
	}
	conn, err := connect(ctx)
	if err != nil {
		log.Fatalf("pageroomctl: connect: %v", err)
	}
	s, err := stream.Listen(ctx, conn, fetcher, project, events...)
	if err != nil {
		_ = conn.Disconnect()
		log.Fatalf("pageroomctl: stream: %v", err)
	}
	defer s.Close()

	for {
		payload, ok := s.Next(ctx)
		if !ok {
			return
		}
		fmt.Println(string(payload))
	}
}

// editInteractively reads replacement lines from stdin for patch, one
// per line, terminated by a blank line; it is deliberately minimal since
// pageroomctl's patch verb exists to exercise room.Patch, not to be an
// editor.
func editInteractively(lines []string) ([]string, error) {
	fmt.Fprintln(os.Stderr, strings.Join(lines, "\n"))
	fmt.Fprintln(os.Stderr, "--- enter replacement lines, blank line to finish ---")
	var out []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
