package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
)

// DefaultTelegramURL is the Telegram Bot API base URL.
const DefaultTelegramURL = "https://api.telegram.org"

// DeliveryError reports that the messaging endpoint rejected a message.
type DeliveryError struct {
	Status      int
	Description string
}

func (e *DeliveryError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("notification rejected with status %d", e.Status)
	}
	return fmt.Sprintf("notification rejected with status %d: %s", e.Status, e.Description)
}

// Telegram posts announcements to a chat through the Bot API.
type Telegram struct {
	BaseURL string
	Token   string
	ChatID  string
	Client  *http.Client
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends the borrowing message with sendMessage.
func (t *Telegram) Notify(ctx context.Context, b model.Borrowing) error {
	base := t.BaseURL
	if base == "" {
		base = DefaultTelegramURL
	}
	endpoint := strings.TrimRight(base, "/") + "/bot" + t.Token + "/sendMessage"

	form := url.Values{}
	form.Set("chat_id", t.ChatID)
	form.Set("text", Message(b))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("reading telegram response: %w", err)
	}

	var tr telegramResponse
	_ = json.Unmarshal(body, &tr)

	if resp.StatusCode != http.StatusOK || !tr.OK {
		desc := tr.Description
		if desc == "" && len(body) > 0 && !json.Valid(body) {
			desc = strconv.Quote(string(body))
		}
		return &DeliveryError{Status: resp.StatusCode, Description: desc}
	}
	return nil
}
