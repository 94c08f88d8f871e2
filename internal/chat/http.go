package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/noah-isme/schoolbot/pkg/errors"
)

// HTTPTransport talks to the chat platform's Bot HTTP API.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPTransport builds a Transport for the given bot token.
func NewHTTPTransport(baseURL, token string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTransport{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (t *HTTPTransport) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
}

func (t *HTTPTransport) call(ctx context.Context, method string, payload interface{}) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, method+" failed")
	}
	defer resp.Body.Close()

	return decodeResult(resp.Body, method)
}

func decodeResult(r io.Reader, method string) (int64, error) {
	var parsed apiResponse
	if err := json.NewDecoder(r).Decode(&parsed); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "decode response")
	}
	if !parsed.OK {
		err := fmt.Errorf("%s rejected: %s", method, parsed.Description)
		return 0, apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "delivery rejected")
	}
	return parsed.Result.MessageID, nil
}

// SendMessage delivers a plain text message.
func (t *HTTPTransport) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	return t.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
}

// SendDocument delivers a previously uploaded document by file id.
func (t *HTTPTransport) SendDocument(ctx context.Context, chatID int64, fileID, caption string) (int64, error) {
	return t.call(ctx, "sendDocument", map[string]interface{}{
		"chat_id":  chatID,
		"document": fileID,
		"caption":  caption,
	})
}

// SendPhoto delivers a previously uploaded photo by file id.
func (t *HTTPTransport) SendPhoto(ctx context.Context, chatID int64, fileID, caption string) (int64, error) {
	return t.call(ctx, "sendPhoto", map[string]interface{}{
		"chat_id": chatID,
		"photo":   fileID,
		"caption": caption,
	})
}

// SendFile uploads raw bytes as a document via multipart form data.
func (t *HTTPTransport) SendFile(ctx context.Context, chatID int64, filename string, data []byte, caption string) (int64, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "encode upload")
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return 0, apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "encode upload")
		}
	}
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "encode upload")
	}
	if _, err := part.Write(data); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "encode upload")
	}
	if err := w.Close(); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "encode upload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendDocument"), &buf)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "build request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "sendDocument failed")
	}
	defer resp.Body.Close()

	return decodeResult(resp.Body, "sendDocument")
}
