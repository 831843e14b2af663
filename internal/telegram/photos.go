package telegram

import (
	"sync"

	"github.com/mtzanidakis/synedrio/internal/council"
	"github.com/mtzanidakis/synedrio/internal/transcript"
)

// photoBuffer holds the images a chat has sent ahead of its question. The
// first photo is Image A, the second Image B.
type photoBuffer struct {
	mu    sync.Mutex
	chats map[int64][]transcript.Attachment
}

func newPhotoBuffer() *photoBuffer {
	return &photoBuffer{chats: make(map[int64][]transcript.Attachment)}
}

// add queues a photo and returns the new count. It refuses a third photo.
func (p *photoBuffer) add(chatID int64, att transcript.Attachment) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	queued := p.chats[chatID]
	if len(queued) >= council.MaxAttachments {
		return len(queued), false
	}
	p.chats[chatID] = append(queued, att)
	return len(queued) + 1, true
}

func (p *photoBuffer) peek(chatID int64) []transcript.Attachment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]transcript.Attachment(nil), p.chats[chatID]...)
}

func (p *photoBuffer) clear(chatID int64) {
	p.mu.Lock()
	delete(p.chats, chatID)
	p.mu.Unlock()
}
