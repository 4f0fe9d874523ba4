package mapping

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

const fetchTimeout = 30 * time.Second

// Load reads a mapping table from a local path or an http(s) URL. The format
// is chosen by extension: .yaml/.yml for a YAML catalog, anything else is
// TSV.
func Load(ctx context.Context, source string) (*Table, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return loadURL(ctx, source)
	}

	data, err := os.ReadFile(source) // #nosec G304 -- path from config/flag
	if err != nil {
		return nil, fmt.Errorf("reading mapping %s: %w", source, err)
	}
	return parse(data, source)
}

func loadURL(ctx context.Context, source string) (*Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	client := &http.Client{Timeout: fetchTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching mapping %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching mapping %s: status %d", source, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading mapping response: %w", err)
	}

	name := source
	if u, err := url.Parse(source); err == nil {
		name = u.Path
	}
	return parse(data, name)
}

func parse(data []byte, name string) (*Table, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseTSV(bytes.NewReader(data))
	}
}
