package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mtzanidakis/synedrio/internal/council"
	"github.com/mtzanidakis/synedrio/internal/ipc"
	"github.com/mtzanidakis/synedrio/internal/natsbus"
	"github.com/mtzanidakis/synedrio/internal/registry"
	"github.com/mtzanidakis/synedrio/internal/transcript"
	"github.com/nats-io/nats.go"
)

const (
	commandTimeout      = 10 * time.Second
	deliberationTimeout = 10 * time.Minute
)

type ipcRequest struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ipcResponse is the union of every reply shape the gateway sends.
type ipcResponse struct {
	OK       bool                   `json:"ok,omitempty"`
	Error    string                 `json:"error,omitempty"`
	ID       string                 `json:"id,omitempty"`
	Active   bool                   `json:"active,omitempty"`
	Phase    string                 `json:"phase,omitempty"`
	RunID    string                 `json:"run_id,omitempty"`
	Agents   []registry.AgentStatus `json:"agents,omitempty"`
	Outcome  *council.Outcome       `json:"outcome,omitempty"`
	Messages []transcript.Message   `json:"messages,omitempty"`
}

type event struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
	Data  struct {
		Phase   string              `json:"phase"`
		Message *transcript.Message `json:"message"`
	} `json:"data"`
}

func sendIPC(natsURL, reqType string, payload any, timeout time.Duration) (*ipcResponse, error) {
	client, err := natsbus.Connect(natsURL, "deliberate")
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var resp ipcResponse
	if err := client.RequestJSON(natsbus.TopicIPC(natsbus.IPCService), ipcRequest{Type: reqType, Payload: payload}, &resp, timeout); err != nil {
		return nil, fmt.Errorf("ipc request: %w", err)
	}
	return &resp, nil
}

// watchProgress prints phase changes and finished replies to stderr until
// the returned function is called.
func watchProgress(natsURL string) (func(), error) {
	client, err := natsbus.Connect(natsURL, "deliberate-progress")
	if err != nil {
		return nil, err
	}
	_, err = client.Subscribe(natsbus.TopicEventsDeliberations, func(msg *nats.Msg) {
		if line := describeEvent(msg.Data); line != "" {
			fmt.Fprintln(os.Stderr, line)
		}
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("subscribe events: %w", err)
	}
	return client.Close, nil
}

func describeEvent(data []byte) string {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		return ""
	}
	switch ev.Type {
	case "phase_changed":
		return "... " + ev.Data.Phase
	case "message_resolved":
		if ev.Data.Message != nil {
			return "... " + ev.Data.Message.AgentID + " replied"
		}
	}
	return ""
}

func loadImage(path string) (transcript.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return transcript.Attachment{}, fmt.Errorf("read image: %w", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return transcript.Attachment{}, fmt.Errorf("%s is not an image (%s)", path, mime)
	}
	return transcript.Attachment{Data: data, MIMEType: mime}, nil
}

func buildRequest(args map[string]string) (*ipc.DeliberateRequest, error) {
	req := &ipc.DeliberateRequest{Content: args["text"]}
	for _, key := range []string{"image-a", "image-b"} {
		if args[key] == "" {
			continue
		}
		att, err := loadImage(args[key])
		if err != nil {
			return nil, err
		}
		req.Attachments = append(req.Attachments, att)
	}
	if strings.TrimSpace(req.Content) == "" && len(req.Attachments) == 0 {
		return nil, fmt.Errorf("--text or an image is required")
	}
	for _, id := range strings.Split(args["agents"], ",") {
		if id = strings.TrimSpace(id); id != "" {
			req.Agents = append(req.Agents, id)
		}
	}
	return req, nil
}

func parseArgs(args []string) map[string]string {
	result := make(map[string]string)
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 2 && args[i][:2] == "--" && i+1 < len(args) {
			result[args[i][2:]] = args[i+1]
			i++
		}
	}
	return result
}

func printMessages(msgs []transcript.Message) {
	for _, m := range msgs {
		switch m.Role {
		case transcript.RoleUser:
			fmt.Printf("> %s\n", m.Content)
		case transcript.RoleAssistant:
			fmt.Printf("\n== %s ==\n%s\n", m.AgentID, m.Content)
		case transcript.RoleSystem:
			fmt.Printf("# %s\n", m.Content)
		}
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, `  deliberate ask --text "..." [--image-a path] [--image-b path] [--agents a,b]`)
	fmt.Fprintln(os.Stderr, "  deliberate agents")
	fmt.Fprintln(os.Stderr, `  deliberate toggle --id "..."`)
	fmt.Fprintln(os.Stderr, "  deliberate state")
	os.Exit(1)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	if len(os.Args) < 2 {
		usage()
	}

	command := os.Args[1]
	rest := os.Args[2:]

	switch command {
	case "ask":
		req, err := buildRequest(parseArgs(rest))
		if err != nil {
			fatal("%v", err)
		}
		if stop, err := watchProgress(natsURL); err == nil {
			defer stop()
		}
		resp, err := sendIPC(natsURL, "deliberate", req, deliberationTimeout)
		if err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		printMessages(resp.Messages)
		if resp.Outcome != nil {
			fmt.Printf("\nrun %s finished in %s (degraded replies: %d)\n",
				resp.Outcome.RunID, resp.Outcome.Duration.Round(time.Millisecond), resp.Outcome.Degraded)
		}

	case "agents":
		resp, err := sendIPC(natsURL, "list_agents", map[string]any{}, commandTimeout)
		if err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		for _, a := range resp.Agents {
			mark := " "
			if a.Active {
				mark = "*"
			}
			fmt.Printf("  %s %-12s %s (%s)\n", mark, a.ID, a.Name, a.Role)
		}

	case "toggle":
		args := parseArgs(rest)
		if args["id"] == "" {
			fatal("--id is required")
		}
		resp, err := sendIPC(natsURL, "toggle_agent", map[string]any{"id": args["id"]}, commandTimeout)
		if err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		fmt.Printf("%s active=%v\n", resp.ID, resp.Active)

	case "state":
		resp, err := sendIPC(natsURL, "state", map[string]any{}, commandTimeout)
		if err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		if resp.Active {
			fmt.Printf("deliberating: %s (%s)\n\n", resp.RunID, resp.Phase)
		}
		printMessages(resp.Messages)

	default:
		fatal("unknown command: %s", command)
	}
}
