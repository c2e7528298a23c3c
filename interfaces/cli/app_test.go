package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	domainconfig "github.com/felixgeelhaar/adcompliance/domain/config"
	"github.com/felixgeelhaar/adcompliance/domain/model"
	infraconfig "github.com/felixgeelhaar/adcompliance/infrastructure/config"
	modelinfra "github.com/felixgeelhaar/adcompliance/infrastructure/model"
	"github.com/felixgeelhaar/adcompliance/infrastructure/planner"
	"github.com/felixgeelhaar/adcompliance/infrastructure/storage/filesystem"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("AZURE_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_API_KEY", "test-key")
	t.Setenv("AZURE_API_VERSION", "2024-08-01-preview")
}

// scriptedBackend answers planner prompts with a two step plan and every
// tool prompt with a compliant verdict.
func scriptedBackend() *modelinfra.Scripted {
	var mu sync.Mutex
	plans := 0
	llm := modelinfra.NewScripted()
	llm.Usage = model.Usage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60}
	llm.Reply = func(messages []model.Message) (string, error) {
		if len(messages) > 0 && messages[0].Role == model.RoleSystem &&
			strings.Contains(messages[0].TextContent(), planner.ResponseFormat) {
			mu.Lock()
			defer mu.Unlock()
			plans++
			if plans == 1 {
				return `{"decision": "call_tool", "tool_name": "analyze_vision", "input": {}, "reason": "décrire"}`, nil
			}
			return `{"decision": "finish", "answer": "NIVEAU DE CONFORMITÉ : CONFORME", "reason": "fini"}`, nil
		}
		return "Une affiche pour un canapé à 499 €.", nil
	}
	return llm
}

func newTestApp(llm Backend) (*App, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	app := New().
		WithOutput(&stdout, &stderr).
		WithEnvFiles().
		WithConnect(func(*domainconfig.AppConfig, infraconfig.Credentials) (Backend, error) {
			return llm, nil
		})
	return app, &stdout
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	content := `
knowledge:
  backend: memory
output:
  dir: ` + filepath.Join(dir, "outputs") + `
  stats_dir: ` + filepath.Join(dir, "stats") + `
retrieval:
  pause: 0s
logging:
  level: error
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestApp_Version(t *testing.T) {
	app, stdout := newTestApp(nil)

	if err := app.ExecuteWithArgs(context.Background(), []string{"version"}); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "adcompliance version") {
		t.Errorf("version output missing 'adcompliance version', got: %s", stdout.String())
	}
}

func TestApp_Help(t *testing.T) {
	app, stdout := newTestApp(nil)

	if err := app.ExecuteWithArgs(context.Background(), []string{"--help"}); err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	for _, want := range []string{"analyze", "index", "stats"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("help output missing %q, got: %s", want, stdout.String())
		}
	}
}

func TestApp_AnalyzeFailsFastWithoutCredentials(t *testing.T) {
	setCredentials(t)
	t.Setenv("AZURE_API_VERSION", "")

	connected := false
	var stdout, stderr bytes.Buffer
	app := New().
		WithOutput(&stdout, &stderr).
		WithEnvFiles().
		WithConnect(func(*domainconfig.AppConfig, infraconfig.Credentials) (Backend, error) {
			connected = true
			return nil, nil
		})

	dir := t.TempDir()
	err := app.ExecuteWithArgs(context.Background(), []string{"analyze", "-c", writeConfig(t, dir), dir})
	if !errors.Is(err, domainconfig.ErrMissingCredential) {
		t.Fatalf("analyze error = %v, want %v", err, domainconfig.ErrMissingCredential)
	}
	if !strings.Contains(err.Error(), "AZURE_API_VERSION") {
		t.Errorf("error %q should name the missing variable", err)
	}
	if connected {
		t.Error("no client should be created without credentials")
	}
}

func TestApp_AnalyzeRejectsUnsupportedInput(t *testing.T) {
	setCredentials(t)

	dir := t.TempDir()
	doc := filepath.Join(dir, "notes.docx")
	if err := os.WriteFile(doc, []byte("x"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	app, _ := newTestApp(scriptedBackend())

	err := app.ExecuteWithArgs(context.Background(), []string{"analyze", "-c", writeConfig(t, dir), doc})
	if err == nil {
		t.Fatal("analyze of an unsupported file should fail")
	}
}

func TestApp_AnalyzeWritesReports(t *testing.T) {
	setCredentials(t)

	dir := t.TempDir()
	images := filepath.Join(dir, "ads")
	if err := os.MkdirAll(images, 0750); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(images, "canape.jpg"), []byte("jpeg"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	app, stdout := newTestApp(scriptedBackend())

	err := app.ExecuteWithArgs(context.Background(), []string{"analyze", "-c", writeConfig(t, dir), "--max-iterations", "5", images})
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "Completed: 1") {
		t.Errorf("output missing completion summary, got: %s", out)
	}
	reports, err := filepath.Glob(filepath.Join(dir, "outputs", "*", "canape", "analyse_canape_*.json"))
	if err != nil || len(reports) != 1 {
		t.Fatalf("reports = %v (err %v), want exactly one", reports, err)
	}
	report, err := filesystem.Load(reports[0])
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if report.Steps.VisionAnalysis == "" {
		t.Error("vision_analysis should be filled")
	}
	if report.FinalResponse != "NIVEAU DE CONFORMITÉ : CONFORME" {
		t.Errorf("FinalResponse = %q", report.FinalResponse)
	}

	stats, err := filepath.Glob(filepath.Join(dir, "stats", "token_stats_*.json"))
	if err != nil || len(stats) != 1 {
		t.Fatalf("stats files = %v (err %v), want exactly one", stats, err)
	}

	stdout.Reset()
	if err := app.ExecuteWithArgs(context.Background(), []string{"stats", filepath.Join(dir, "stats")}); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "Analyzed files: 1") {
		t.Errorf("stats output missing file count, got: %s", stdout.String())
	}
}

func TestApp_Index(t *testing.T) {
	setCredentials(t)

	dir := t.TempDir()
	legislation := filepath.Join(dir, "legislation")
	if err := os.MkdirAll(legislation, 0750); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	text := "Toute publicité doit comporter la mention du prix. Le crédit doit être signalé."
	if err := os.WriteFile(filepath.Join(legislation, "code.txt"), []byte(text), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	app, stdout := newTestApp(scriptedBackend())

	if err := app.ExecuteWithArgs(context.Background(), []string{"index", "-c", writeConfig(t, dir), legislation}); err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "Indexed 1 document(s) into 1 chunk(s)") {
		t.Errorf("index output = %q", stdout.String())
	}
}

func TestApp_StatsEmptyDir(t *testing.T) {
	app, stdout := newTestApp(nil)

	if err := app.ExecuteWithArgs(context.Background(), []string{"stats", t.TempDir()}); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "No statistics found") {
		t.Errorf("stats output = %q", stdout.String())
	}
}
