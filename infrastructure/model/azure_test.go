package model

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go/option"

	"github.com/felixgeelhaar/adcompliance/domain/model"
	"github.com/felixgeelhaar/adcompliance/infrastructure/resilience"
)

type fakeService struct {
	mu     sync.Mutex
	bodies []map[string]any
	status int
	reply  string
}

func (f *fakeService) handler(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(data, &body)
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	status := f.status
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status >= 400 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":{"message":"quota exceeded","type":"rate_limit","code":"429","param":null}}`)
		return
	}
	if strings.HasSuffix(r.URL.Path, "/embeddings") {
		_, _ = io.WriteString(w, `{"object":"list","model":"text-embedding-3-large",
			"data":[{"object":"embedding","index":1,"embedding":[0.5,0.5]},{"object":"embedding","index":0,"embedding":[1,0]}],
			"usage":{"prompt_tokens":6,"total_tokens":6}}`)
		return
	}
	_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":`+jsonString(f.reply)+`}}],
		"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
}

func jsonString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func newTestClient(t *testing.T, svc *fakeService, threshold int) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(svc.handler))
	t.Cleanup(server.Close)

	c, err := NewClient(Config{
		ChatDeployment:      "gpt4o",
		EmbeddingDeployment: "text-embedding-3-large",
		Temperature:         0.1,
		BreakerThreshold:    threshold,
	}, option.WithBaseURL(server.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestClient_ChatWithImage(t *testing.T) {
	t.Parallel()

	svc := &fakeService{reply: "CONTENU VISUEL : affiche"}
	c := newTestClient(t, svc, 0)

	resp, err := c.Chat(context.Background(), []model.Message{
		model.SystemMessage("Tu es un expert."),
		model.UserMessage(model.Text("Décris l'image"), model.Image([]byte("img"), "image/png")),
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Text != "CONTENU VISUEL : affiche" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 15 || resp.Usage.PromptTokens != 10 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	body := svc.bodies[0]
	if body["model"] != "gpt4o" {
		t.Errorf("model = %v, want deployment name", body["model"])
	}
	raw, _ := json.Marshal(body["messages"])
	if !strings.Contains(string(raw), "data:image/png;base64,aW1n") {
		t.Errorf("messages missing image data URL: %s", raw)
	}
}

func TestClient_Embed(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeService{}, 0)
	vecs, usage, err := c.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][0] != 0.5 {
		t.Errorf("vectors not placed by index: %v", vecs)
	}
	if usage.PromptTokens != 6 {
		t.Errorf("usage = %+v", usage)
	}

	vecs, _, err = c.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("Embed(nil) = %v, %v", vecs, err)
	}
}

func TestClient_APIErrorAndBreaker(t *testing.T) {
	t.Parallel()

	svc := &fakeService{status: http.StatusTooManyRequests}
	c := newTestClient(t, svc, 2)

	_, err := c.Complete(context.Background(), "hello")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Message != "quota exceeded" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if !errors.Is(err, model.ErrModelCall) {
		t.Error("APIError should match ErrModelCall")
	}

	_, _ = c.Complete(context.Background(), "hello")
	_, err = c.Complete(context.Background(), "hello")
	if !errors.Is(err, resilience.ErrCircuitOpen) || !errors.Is(err, model.ErrModelCall) {
		t.Errorf("third call err = %v, want open circuit", err)
	}
	if len(svc.bodies) != 2 {
		t.Errorf("service received %d calls, want 2", len(svc.bodies))
	}
}

func TestNewClient_RequiresDeployment(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}); err == nil {
		t.Error("NewClient() without deployment should fail")
	}
}
