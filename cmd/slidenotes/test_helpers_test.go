package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
)

var snippetIDPattern = regexp.MustCompile(`Segment ID: (\d+)`)

type cliTestEnv struct {
	baseDir    string
	configPath string
	server     *httptest.Server
	requests   int
}

// setupCLITestEnv writes a config pointing at a fake chat-completions server
// that maps segment ids through table.
func setupCLITestEnv(t *testing.T, table map[int]int) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("SLIDENOTES_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(base)

	env := &cliTestEnv{baseDir: base}
	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.requests++
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		user := req.Messages[len(req.Messages)-1].Content
		content := `{"ok":true}`
		if matches := snippetIDPattern.FindAllStringSubmatch(user, -1); len(matches) > 0 {
			var b strings.Builder
			b.WriteString(`{"mappings":[`)
			for i, m := range matches {
				id, _ := strconv.Atoi(m[1])
				slide, ok := table[id]
				if !ok {
					slide = -1
				}
				if i > 0 {
					b.WriteString(",")
				}
				fmt.Fprintf(&b, `{"segment_id":%d,"slide_id":%d}`, id, slide)
			}
			b.WriteString(`]}`)
			content = b.String()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(env.server.Close)

	env.configPath = filepath.Join(base, "config.toml")
	config := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[llm]
api_key = "test"
base_url = %q
model = "test-model"
retry_attempts = 1

[logging]
level = "error"
`, filepath.Join(base, "data"), filepath.Join(base, "logs"), env.server.URL)
	if err := os.WriteFile(env.configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliTestEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
