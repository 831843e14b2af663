package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/mtzanidakis/synedrio/internal/config"
	"github.com/mtzanidakis/synedrio/internal/council"
	"github.com/mtzanidakis/synedrio/internal/registry"
	"github.com/mtzanidakis/synedrio/internal/transcript"
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
)

const busyReply = "A deliberation is already in progress."

type Bot struct {
	bot     *telego.Bot
	handler *th.BotHandler
	orch    *council.Orchestrator
	roster  *registry.Roster
	reg     *registry.Registry
	log     *transcript.Log
	cfg     config.TelegramConfig
	photos  *photoBuffer
	cancel  context.CancelFunc
}

func NewBot(cfg config.TelegramConfig, orch *council.Orchestrator, reg *registry.Registry, roster *registry.Roster, log *transcript.Log) (*Bot, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Bot{
		bot:    bot,
		orch:   orch,
		roster: roster,
		reg:    reg,
		log:    log,
		cfg:    cfg,
		photos: newPhotoBuffer(),
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	updates, err := b.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.bot, updates)
	if err != nil {
		cancel()
		return fmt.Errorf("create handler: %w", err)
	}
	b.handler = handler

	handler.HandleMessage(func(hctx *th.Context, message telego.Message) error {
		b.handleMessage(ctx, message)
		return nil
	})

	go handler.Start()

	<-ctx.Done()
	_ = handler.Stop()
	return nil
}

func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.handler != nil {
		_ = b.handler.Stop()
	}
}

func (b *Bot) allowed(userID int64) bool {
	if len(b.cfg.AllowFrom) == 0 {
		return true
	}
	return slices.Contains(b.cfg.AllowFrom, userID)
}

func (b *Bot) handleMessage(ctx context.Context, msg telego.Message) {
	chatID := msg.Chat.ID
	if msg.From == nil || !b.allowed(msg.From.ID) {
		slog.Warn("unauthorized telegram user", "chat_id", chatID)
		return
	}

	if cmd, arg, ok := parseCommand(msg.Text); ok {
		b.handleCommand(ctx, chatID, cmd, arg)
		return
	}

	if len(msg.Photo) > 0 {
		att, err := b.downloadPhoto(ctx, msg.Photo)
		if err != nil {
			slog.Error("download telegram photo failed", "chat_id", chatID, "error", err)
			_ = b.SendMessage(ctx, chatID, "Sorry, I could not download that image.")
			return
		}
		n, ok := b.photos.add(chatID, att)
		if !ok {
			_ = b.SendMessage(ctx, chatID, "Two images are already queued. Send /clear to start over.")
			return
		}
		if msg.Caption == "" {
			_ = b.SendMessage(ctx, chatID, fmt.Sprintf("Image %s received.", imageLabel(n)))
			return
		}
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		return
	}

	go b.deliberate(ctx, chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, cmd, arg string) {
	switch cmd {
	case "council", "start":
		_ = b.SendMessage(ctx, chatID, formatRoster(b.roster.Statuses()))
	case "toggle":
		if arg == "" {
			_ = b.SendMessage(ctx, chatID, "Usage: /toggle <agent-id>")
			return
		}
		active, err := b.roster.Toggle(arg)
		if err != nil {
			_ = b.SendMessage(ctx, chatID, err.Error())
			return
		}
		state := "left"
		if active {
			state = "joined"
		}
		slog.Info("agent toggled via telegram", "agent", arg, "active", active)
		_ = b.SendMessage(ctx, chatID, fmt.Sprintf("%s %s the council.", b.reg.Name(arg), state))
	case "clear":
		b.photos.clear(chatID)
		_ = b.SendMessage(ctx, chatID, "Queued images cleared.")
	default:
		_ = b.SendMessage(ctx, chatID, "Unknown command. Try /council, /toggle <id> or /clear.")
	}
}

func (b *Bot) deliberate(ctx context.Context, chatID int64, text string) {
	active, content := b.roster.Select(text)
	turn := council.Turn{Content: content, Attachments: b.photos.peek(chatID)}

	h, err := b.orch.Start(ctx, turn, active)
	switch {
	case errors.Is(err, council.ErrBusy):
		_ = b.SendMessage(ctx, chatID, busyReply)
		return
	case err != nil:
		slog.Warn("telegram deliberation rejected", "chat_id", chatID, "error", err)
		_ = b.SendMessage(ctx, chatID, "Sorry, I could not start a deliberation: "+err.Error())
		return
	}
	b.photos.clear(chatID)

	_ = b.sendChatAction(ctx, chatID, telego.ChatActionTyping)
	out := h.Wait()

	for _, m := range b.log.Run(out.RunID) {
		if m.Role != transcript.RoleAssistant || m.Pending {
			continue
		}
		def, ok := b.reg.Get(m.AgentID)
		if !ok {
			def = config.AgentDefinition{ID: m.AgentID, Name: m.AgentID}
		}
		if err := b.SendMessage(ctx, chatID, formatReply(def, m.Content)); err != nil {
			slog.Error("failed to send telegram message", "chat", chatID, "error", err)
			return
		}
	}
}

func (b *Bot) downloadPhoto(ctx context.Context, sizes []telego.PhotoSize) (transcript.Attachment, error) {
	largest := sizes[0]
	for _, p := range sizes[1:] {
		if p.Width*p.Height > largest.Width*largest.Height {
			largest = p
		}
	}

	file, err := b.bot.GetFile(ctx, &telego.GetFileParams{FileID: largest.FileID})
	if err != nil {
		return transcript.Attachment{}, fmt.Errorf("get file: %w", err)
	}
	data, err := tu.DownloadFile(b.bot.FileDownloadURL(file.FilePath))
	if err != nil {
		return transcript.Attachment{}, fmt.Errorf("download file: %w", err)
	}
	return transcript.Attachment{Data: data, MIMEType: http.DetectContentType(data)}, nil
}

// SendMessage sends text as Markdown, falling back to plain text when
// Telegram rejects the markup.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range chunkMessage(text, 4096) {
		msg := tu.Message(tu.ID(chatID), chunk).WithParseMode(telego.ModeMarkdown)
		if _, err := b.bot.SendMessage(ctx, msg); err == nil {
			continue
		}
		if _, err := b.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk)); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (b *Bot) sendChatAction(ctx context.Context, chatID int64, action string) error {
	return b.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), action))
}
