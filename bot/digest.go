package bot

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// maxDigestEntries bounds the buffer when admins cannot be reached
const maxDigestEntries = 200

type DigestEntry struct {
	Message   string
	Timestamp time.Time
}

// DigestBuffer collects log alerts and sends them to admins as one message per
// interval, so a burst of errors does not flood their chats.
type DigestBuffer struct {
	mu       sync.Mutex
	entries  []DigestEntry
	dropped  int
	interval time.Duration
	bot      *TgBot
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewDigestBuffer(bot *TgBot, interval time.Duration) *DigestBuffer {
	return &DigestBuffer{
		interval: interval,
		bot:      bot,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (d *DigestBuffer) Add(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.entries) >= maxDigestEntries {
		d.dropped++
		return
	}
	d.entries = append(d.entries, DigestEntry{
		Message:   msg,
		Timestamp: time.Now(),
	})
}

func (d *DigestBuffer) StartTicker() {
	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Flush()
			case <-d.stopCh:
				d.Flush() // final flush
				return
			}
		}
	}()
}

func (d *DigestBuffer) Flush() {
	d.mu.Lock()
	snapshot := d.entries
	dropped := d.dropped
	d.entries = nil
	d.dropped = 0
	d.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}
	for _, part := range splitMessage(formatDigest(snapshot, dropped), maxTelegramMessageLen) {
		d.bot.notifyAdmins(part)
	}
}

func (d *DigestBuffer) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
	<-d.done
}

func formatDigest(entries []DigestEntry, dropped int) string {
	var sb strings.Builder
	if len(entries) == 1 && dropped == 0 {
		sb.WriteString(fmt.Sprintf("`%s` %s\n", entries[0].Timestamp.Format("15:04"), Sanitize(entries[0].Message)))
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("*Alertas* \\(%d\\)\n\n", len(entries)+dropped))
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("`%s` %s\n\n", e.Timestamp.Format("15:04"), Sanitize(e.Message)))
	}
	if dropped > 0 {
		sb.WriteString(fmt.Sprintf("_\\+%d omitidos_\n", dropped))
	}
	return sb.String()
}
