package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/noah-isme/schoolbot/pkg/errors"
)

func TestHTTPTransportSendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer srv.Close()

	transport := NewHTTPTransport(srv.URL, "secret-token", time.Second)

	msgID, err := transport.SendMessage(context.Background(), 100, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(42), msgID)
	assert.Equal(t, "/botsecret-token/sendMessage", gotPath)
	assert.Equal(t, float64(100), gotBody["chat_id"])
	assert.Equal(t, "hello", gotBody["text"])
}

func TestHTTPTransportRejectedDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	transport := NewHTTPTransport(srv.URL, "secret-token", time.Second)

	_, err := transport.SendDocument(context.Background(), 100, "file-1", "caption")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDelivery))
}

func TestHTTPTransportSendFileMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "7", r.FormValue("chat_id"))
		assert.Equal(t, "completed works", r.FormValue("caption"))

		file, header, err := r.FormFile("document")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "works.pdf", header.Filename)

		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer srv.Close()

	transport := NewHTTPTransport(srv.URL, "secret-token", time.Second)

	msgID, err := transport.SendFile(context.Background(), 7, "works.pdf", []byte("%PDF-1.4"), "completed works")
	require.NoError(t, err)
	assert.Equal(t, int64(7), msgID)
}

func TestLargestPhoto(t *testing.T) {
	assert.Equal(t, "", Largest(nil))
	assert.Equal(t, "big", Largest([]PhotoSize{{FileID: "small"}, {FileID: "big"}}))
}
