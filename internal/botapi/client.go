package botapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ovoronin/pairline/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client sends payloads through the messaging platform's bot HTTP API. It
// implements domain.Sender. Each payload kind maps to one API method, but
// the mapping lives only here — callers dispatch a single Payload value.
type Client struct {
	rest *resty.Client
}

// NewClient creates a Client for the given API base URL and bot token.
func NewClient(apiURL, token string) *Client {
	rest := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/") + "/bot" + token).
		SetTimeout(defaultTimeout)
	return &Client{rest: rest}
}

// apiResponse is the platform's standard method-call envelope.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send delivers the payload to the target chat and returns the delivered
// message id. Failures are reported as domain.ErrDeliveryFailed wraps; the
// client never retries.
func (c *Client) Send(ctx context.Context, targetID int64, payload domain.Payload) (int64, error) {
	method, body := requestFor(targetID, payload)
	if method == "" {
		return 0, fmt.Errorf("%w: unsupported payload kind %q", domain.ErrDeliveryFailed, payload.Kind)
	}

	var out apiResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/" + method)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %v", method, domain.ErrDeliveryFailed, err)
	}
	if resp.IsError() || !out.OK {
		return 0, fmt.Errorf("%s: %w: status %d: %s", method, domain.ErrDeliveryFailed, resp.StatusCode(), out.Description)
	}
	return out.Result.MessageID, nil
}

// requestFor maps a payload to its API method and request body. An empty
// method name means the kind cannot be sent.
func requestFor(targetID int64, p domain.Payload) (string, map[string]any) {
	body := map[string]any{"chat_id": targetID}

	if len(p.Buttons) > 0 {
		row := make([]map[string]string, len(p.Buttons))
		for i, b := range p.Buttons {
			row[i] = map[string]string{"text": b.Label, "callback_data": b.Data}
		}
		body["reply_markup"] = map[string]any{"inline_keyboard": [][]map[string]string{row}}
	}

	switch p.Kind {
	case domain.KindText:
		body["text"] = p.Text
		return "sendMessage", body
	case domain.KindImage:
		body["photo"] = p.FileID
		withCaption(body, p)
		return "sendPhoto", body
	case domain.KindAudio:
		body["audio"] = p.FileID
		withCaption(body, p)
		return "sendAudio", body
	case domain.KindVoice:
		body["voice"] = p.FileID
		return "sendVoice", body
	case domain.KindVideo:
		body["video"] = p.FileID
		withCaption(body, p)
		return "sendVideo", body
	case domain.KindVideoNote:
		body["video_note"] = p.FileID
		return "sendVideoNote", body
	case domain.KindDocument:
		body["document"] = p.FileID
		withCaption(body, p)
		return "sendDocument", body
	case domain.KindSticker:
		body["sticker"] = p.FileID
		return "sendSticker", body
	}
	return "", nil
}

func withCaption(body map[string]any, p domain.Payload) {
	if p.Caption != "" {
		body["caption"] = p.Caption
	}
}
