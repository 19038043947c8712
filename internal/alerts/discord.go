package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"botrelay/internal/config"
)

var (
	mu                sync.Mutex
	categoryCooldowns = make(map[string]time.Time)
)

const (
	colorOrange = 0xFFA500
	colorRed    = 0xFF4444
	colorCrit   = 0xFF0000
	colorGreen  = 0x2ECC71
)

type embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Color       int     `json:"color"`
	Fields      []field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp"`
	Footer      *footer `json:"footer,omitempty"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type footer struct {
	Text string `json:"text"`
}

type payload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds"`
}

func send(category string, cooldown time.Duration, ping bool, color int, title, description string, fields map[string]string) {
	if !config.DiscordAlerts || config.DiscordWebhookURL == "" {
		return
	}

	mu.Lock()
	now := time.Now()
	if cooldown > 0 {
		if last, ok := categoryCooldowns[category]; ok && now.Sub(last) < cooldown {
			mu.Unlock()
			return
		}
	}
	categoryCooldowns[category] = now
	mu.Unlock()

	var embedFields []field
	for k, v := range fields {
		if v == "" {
			continue
		}
		if len(v) > 1024 {
			v = v[:1021] + "..."
		}
		embedFields = append(embedFields, field{Name: k, Value: v, Inline: true})
	}

	p := payload{
		Embeds: []embed{{
			Title:       title,
			Description: truncate(description, 2048),
			Color:       color,
			Fields:      embedFields,
			Timestamp:   now.UTC().Format(time.RFC3339),
			Footer:      &footer{Text: "botrelay"},
		}},
	}

	if ping && config.DiscordPingUserID != "" {
		p.Content = fmt.Sprintf("<@%s>", config.DiscordPingUserID)
	}

	body, _ := json.Marshal(p)
	go func() {
		resp, err := http.Post(config.DiscordWebhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("[Alerts] send failed: %v", err)
			return
		}
		resp.Body.Close()
	}()
}

func ServerStarted() {
	send("server-start", 0, false, colorGreen, "Server Started", fmt.Sprintf("botrelay %s listening on :%s", config.Version, config.Port), nil)
}

func ServerStopping() {
	send("server-stop", 0, false, colorOrange, "Server Stopping", "botrelay is shutting down", nil)
}

// SessionHalted pages the operator: the chat session hit the
// duplicate-session/auth-conflict error class and will not reconnect on
// its own.
func SessionHalted(details string) {
	send("session-halted", 0, true, colorCrit, "Chat Session Halted",
		"The chat session hit an unrecoverable auth conflict and reconnects are disabled. Check for a second process using the same token.",
		map[string]string{"Error": truncate(details, 500)})
}

func TransferFailed(requestID, filename string, err error) {
	send("transfer", 5*time.Second, true, colorRed, "Transfer Failed", err.Error(), map[string]string{
		"Request": requestID,
		"File":    truncate(filename, 200),
		"Error":   truncate(err.Error(), 500),
	})
}

func LowDiskSpace(availGB float64) {
	send("disk", 10*time.Minute, true, colorOrange, "Low Disk Space",
		fmt.Sprintf("Only %.1fGB free, below the %dGB threshold", availGB, config.DiskSpaceMinGB), nil)
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
