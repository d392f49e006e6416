package agent

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// WebFetch fetches content from a URL named in the step parameters.
type WebFetch struct {
	client *http.Client
}

// NewWebFetch creates a web fetch tool.
func NewWebFetch() *WebFetch {
	return &WebFetch{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *WebFetch) Name() string { return "web_fetch" }

func (w *WebFetch) Description() string {
	return "Fetch content from a URL. Returns the page content as text."
}

func (w *WebFetch) Execute(ctx context.Context, input ToolInput) (*Result, error) {
	rawURL, _ := input.Parameters["url"].(string)
	if rawURL == "" {
		return &Result{Success: false, Error: "missing url parameter"}, nil
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid URL: %s", err)}, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", parsedURL.String(), nil)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("build request: %s", err)}, nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; crewd/1.0)")

	resp, err := w.client.Do(req)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("fetch: %s", err)}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Result{Success: false, Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status)}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("read response: %s", err)}, nil
	}

	content := string(body)
	if len(content) > 50000 {
		content = content[:50000] + "\n... (content truncated)"
	}

	return &Result{
		Success: true,
		Output:  content,
		Metadata: map[string]any{
			"host":   parsedURL.Host,
			"status": resp.StatusCode,
		},
	}, nil
}

// GlobFiles lists workspace files matching a doublestar pattern.
type GlobFiles struct {
	workDir string
}

// NewGlobFiles creates a glob tool rooted at workDir.
func NewGlobFiles(workDir string) *GlobFiles {
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	return &GlobFiles{workDir: workDir}
}

func (g *GlobFiles) Name() string { return "glob" }

func (g *GlobFiles) Description() string {
	return "List files matching a glob pattern (e.g. **/*.go) under the work directory."
}

func (g *GlobFiles) Execute(ctx context.Context, input ToolInput) (*Result, error) {
	pattern, _ := input.Parameters["pattern"].(string)
	if pattern == "" {
		return &Result{Success: false, Error: "missing pattern parameter"}, nil
	}

	fsys := os.DirFS(g.workDir)
	var matches []string
	err := doublestar.GlobWalk(fsys, pattern, func(path string, d fs.DirEntry) error {
		if !d.IsDir() {
			matches = append(matches, filepath.Join(g.workDir, path))
		}
		return nil
	})
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("glob: %s", err)}, nil
	}

	sort.Strings(matches)
	return &Result{
		Success: true,
		Output:  strings.Join(matches, "\n"),
		Data:    map[string]any{"count": len(matches)},
	}, nil
}

// Summarize condenses the task's retrieved context into a short digest.
type Summarize struct{}

// NewSummarize creates a summarize tool.
func NewSummarize() *Summarize { return &Summarize{} }

func (s *Summarize) Name() string { return "summarize" }

func (s *Summarize) Description() string {
	return "Condense retrieved context documents into a short digest."
}

func (s *Summarize) Execute(ctx context.Context, input ToolInput) (*Result, error) {
	if len(input.Context) == 0 {
		return &Result{
			Success: true,
			Output:  fmt.Sprintf("No context available for: %s", input.Task),
		}, nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Summary for %q (%d sources):\n", input.Task, len(input.Context)))
	for _, doc := range input.Context {
		line := doc.Content
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		if len(line) > 200 {
			line = line[:200] + "..."
		}
		b.WriteString("- " + line + "\n")
	}

	return &Result{
		Success: true,
		Output:  strings.TrimRight(b.String(), "\n"),
		Data:    map[string]any{"sources": len(input.Context)},
	}, nil
}
