// Command watch follows the progress of an evidence analysis over the
// WebSocket stream and prints each event until the analysis ends. With
// -start it queues a new analysis first.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/JaimeStill/attest/internal/workflow"
)

func main() {
	var (
		server    = flag.String("server", "http://localhost:8080/api", "API base URL")
		job       = flag.String("job", "", "Analysis id to follow")
		start     = flag.Bool("start", false, "Start a new analysis before following it")
		org       = flag.String("org", "", "Organization id for -start")
		framework = flag.String("framework", "", "Framework id for -start")
		docs      = flag.String("docs", "", "Comma-separated document ids for -start")
	)
	flag.Parse()

	id := *job
	if *start {
		started, err := startAnalysis(*server, *org, *framework, *docs)
		if err != nil {
			color.Red("start failed: %v", err)
			os.Exit(1)
		}
		id = started
		color.Green("analysis queued: %s", id)
	}

	if _, err := uuid.Parse(id); err != nil {
		color.Red("a valid -job id or -start is required")
		flag.Usage()
		os.Exit(2)
	}

	final, err := follow(*server, id)
	if err != nil {
		color.Red("stream failed: %v", err)
		os.Exit(1)
	}
	if final != nil && final.Stage == workflow.StateFailed {
		os.Exit(1)
	}
}

func startAnalysis(server, org, framework, docs string) (string, error) {
	cmd := workflow.StartCommand{DocumentIDs: []uuid.UUID{}}

	var err error
	if cmd.OrganizationID, err = uuid.Parse(org); err != nil {
		return "", fmt.Errorf("invalid -org: %w", err)
	}
	if cmd.FrameworkID, err = uuid.Parse(framework); err != nil {
		return "", fmt.Errorf("invalid -framework: %w", err)
	}
	for part := range strings.SplitSeq(docs, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		docID, err := uuid.Parse(part)
		if err != nil {
			return "", fmt.Errorf("invalid document id %q: %w", part, err)
		}
		cmd.DocumentIDs = append(cmd.DocumentIDs, docID)
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(strings.TrimSuffix(server, "/")+"/analyses", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		JobID string `json:"job_id"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("%s: %s", resp.Status, result.Error)
	}
	return result.JobID, nil
}

func follow(server, id string) (*workflow.ProgressEvent, error) {
	wsURL, err := streamURL(server, id)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	type result struct {
		final *workflow.ProgressEvent
		err   error
	}
	done := make(chan result, 1)

	go func() {
		var last *workflow.ProgressEvent
		for {
			var ev workflow.ProgressEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					done <- result{final: last}
				} else {
					done <- result{final: last, err: err}
				}
				return
			}
			fmt.Println(formatEvent(ev))
			last = &ev
		}
	}()

	select {
	case r := <-done:
		return r.final, r.err
	case <-interrupt:
		color.Yellow("interrupted, closing stream")
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case r := <-done:
			return r.final, nil
		case <-time.After(time.Second):
			return nil, nil
		}
	}
}

// streamURL turns the API base URL into the WebSocket URL of a job stream.
func streamURL(server, id string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(server, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid -server: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path += "/analyses/" + id + "/stream"
	return u.String(), nil
}
