package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mtzanidakis/synedrio/internal/council"
	"github.com/mtzanidakis/synedrio/internal/registry"
	"github.com/mtzanidakis/synedrio/internal/transcript"
)

func runAsk(args []string) error {
	flags := parseArgs(args)
	turn, err := buildTurn(flags)
	if err != nil {
		return err
	}

	cfg, db, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	reg, roster, log, inv, err := newCouncil(ctx, cfg, db)
	if err != nil {
		return err
	}

	active, content := roster.Select(turn.Content)
	if flags["agents"] != "" {
		active = splitList(flags["agents"])
	} else {
		turn.Content = content
	}

	orch := council.New(reg, log, inv, nil, db)
	out, err := orch.Run(ctx, turn, active)
	if err != nil {
		return fmt.Errorf("deliberate: %w", err)
	}

	printTranscript(os.Stdout, log.Run(out.RunID), reg)
	fmt.Printf("\nrun %s finished in %s (degraded replies: %d)\n", out.RunID, out.Duration.Round(time.Millisecond), out.Degraded)
	return nil
}

// buildTurn reads --text, --image-a and --image-b.
func buildTurn(flags map[string]string) (council.Turn, error) {
	turn := council.Turn{Content: flags["text"]}
	for _, key := range []string{"image-a", "image-b"} {
		path := flags[key]
		if path == "" {
			continue
		}
		att, err := loadImage(path)
		if err != nil {
			return council.Turn{}, err
		}
		turn.Attachments = append(turn.Attachments, att)
	}
	if strings.TrimSpace(turn.Content) == "" && len(turn.Attachments) == 0 {
		return council.Turn{}, fmt.Errorf("--text or an image is required")
	}
	return turn, nil
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

func printTranscript(w io.Writer, msgs []transcript.Message, reg *registry.Registry) {
	for _, m := range msgs {
		switch m.Role {
		case transcript.RoleUser:
			fmt.Fprintf(w, "> %s", m.Content)
			if n := len(m.Attachments); n > 0 {
				fmt.Fprintf(w, " [%d image(s)]", n)
			}
			fmt.Fprintln(w)
		case transcript.RoleAssistant:
			def, _ := reg.Get(m.AgentID)
			fmt.Fprintf(w, "\n== %s", reg.Name(m.AgentID))
			if def.Role != "" {
				fmt.Fprintf(w, " (%s)", def.Role)
			}
			fmt.Fprintf(w, " ==\n%s\n", m.Content)
		}
	}
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

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
