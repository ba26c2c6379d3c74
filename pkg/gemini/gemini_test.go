package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(server *httptest.Server, timeout time.Duration) *Client {
	client := NewClient("test-key", "test-model", "test-vision-model", timeout)
	client.baseURL = server.URL
	return client
}

func candidateResponse(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + mustJSON(text) + `}]}}]}`
}

func mustJSON(text string) string {
	raw, err := json.Marshal(text)
	if err != nil {
		panic(err)
	}
	return string(raw)
}

func TestGenerateText(t *testing.T) {
	var captured requestBody

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("unexpected key %q", r.URL.Query().Get("key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(candidateResponse("  hello there  ")))
	}))
	defer server.Close()

	client := newTestClient(server, 5*time.Second)

	reply, err := client.GenerateText(context.Background(), "hi")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if reply != "hello there" {
		t.Errorf("reply = %q, want %q", reply, "hello there")
	}

	if len(captured.Contents) != 1 || len(captured.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected request shape: %+v", captured)
	}
	if captured.Contents[0].Parts[0].Text != "hi" {
		t.Errorf("prompt = %q, want %q", captured.Contents[0].Parts[0].Text, "hi")
	}
	if captured.GenerationConfig == nil || captured.GenerationConfig.MaxOutputTokens != 1024 {
		t.Errorf("generation config not sent: %+v", captured.GenerationConfig)
	}
	if len(captured.SafetySettings) != 4 {
		t.Errorf("safety settings = %d, want 4", len(captured.SafetySettings))
	}
}

func TestGenerateFromImage(t *testing.T) {
	var captured requestBody

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(candidateResponse("a picture")))
	}))
	defer server.Close()

	client := newTestClient(server, 5*time.Second)

	// Minimal PNG header so MIME sniffing resolves to image/png.
	image := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

	reply, err := client.GenerateFromImage(context.Background(), "Describe this image", image)
	if err != nil {
		t.Fatalf("GenerateFromImage: %v", err)
	}
	if reply != "a picture" {
		t.Errorf("reply = %q, want %q", reply, "a picture")
	}

	if len(captured.Contents) != 1 || len(captured.Contents[0].Parts) != 2 {
		t.Fatalf("unexpected request shape: %+v", captured)
	}
	data := captured.Contents[0].Parts[1].InlineData
	if data == nil {
		t.Fatal("inline data missing")
	}
	if data.MimeType != "image/png" {
		t.Errorf("mime type = %q, want image/png", data.MimeType)
	}
	if data.Data == "" {
		t.Error("inline data payload empty")
	}
}

func TestGenerateErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad prompt"}}`, ErrInvalidRequest},
		{"unauthorized", http.StatusUnauthorized, `{}`, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, `{}`, ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrRateLimited},
		{"server fault", http.StatusInternalServerError, `{}`, ErrServerFault},
		{"empty candidates", http.StatusOK, `{"candidates":[]}`, ErrMalformedResponse},
		{"whitespace only", http.StatusOK, candidateResponse("   "), ErrMalformedResponse},
		{"not json", http.StatusOK, `<html></html>`, ErrMalformedResponse},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := newTestClient(server, 5*time.Second)

			_, err := client.GenerateText(context.Background(), "hi")
			if err == nil {
				t.Fatal("expected error")
			}

			var genErr *GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("error type = %T, want *GenerationError", err)
			}
			if genErr.Kind != tc.kind {
				t.Errorf("kind = %s, want %s", genErr.Kind, tc.kind)
			}
		})
	}
}

func TestGenerateTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(candidateResponse("late")))
	}))
	defer server.Close()

	client := newTestClient(server, 20*time.Millisecond)

	_, err := client.GenerateText(context.Background(), "hi")

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type = %T, want *GenerationError", err)
	}
	if genErr.Kind != ErrTimeout {
		t.Errorf("kind = %s, want %s", genErr.Kind, ErrTimeout)
	}
}

func TestGenerateUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server, time.Second)

	_, err := client.GenerateText(context.Background(), "hi")

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type = %T, want *GenerationError", err)
	}
	if genErr.Kind != ErrUnreachable {
		t.Errorf("kind = %s, want %s", genErr.Kind, ErrUnreachable)
	}
}
