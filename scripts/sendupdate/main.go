package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Posts a synthetic chat update to a running bot instance so flows can be
// exercised without the chat platform. Example:
//
//	go run ./scripts/sendupdate -user mrsmith -chat 200 -text "/create_class"

func main() {
	var (
		base    string
		path    string
		user    string
		chatID  int64
		text    string
		fileID  string
		timeout time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "bot base URL")
	flag.StringVar(&path, "path", "/webhook", "webhook path")
	flag.StringVar(&user, "user", "", "sender username")
	flag.Int64Var(&chatID, "chat", 0, "sender chat id")
	flag.StringVar(&text, "text", "", "message text")
	flag.StringVar(&fileID, "file", "", "attach a document with this file id")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if user == "" || chatID == 0 {
		log.Fatal("both -user and -chat are required")
	}

	update := map[string]interface{}{
		"update_id": time.Now().UnixNano(),
		"message": map[string]interface{}{
			"message_id": 1,
			"from":       map[string]interface{}{"id": chatID, "username": user},
			"chat":       map[string]interface{}{"id": chatID},
			"text":       text,
		},
	}
	if fileID != "" {
		msg := update["message"].(map[string]interface{})
		msg["document"] = map[string]interface{}{"file_id": fileID, "file_name": "upload.bin"}
		delete(msg, "text")
		msg["caption"] = text
	}

	body, err := json.Marshal(update)
	if err != nil {
		log.Fatalf("marshal update: %v", err)
	}

	url := strings.TrimRight(base, "/") + path
	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("post update: %v", err)
	}
	defer resp.Body.Close()

	reply, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s %s -> %d %s\n", http.MethodPost, url, resp.StatusCode, strings.TrimSpace(string(reply)))
}
