package roboflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	getter "github.com/hashicorp/go-getter"
)

// DatasetRef names one version of a hosted dataset.
type DatasetRef struct {
	Workspace string
	Project   string
	Version   int
	Format    string // export format, "coco" when empty
}

// ModelID returns the default hosted model ID, "project/version".
func (r DatasetRef) ModelID() string {
	return r.Project + "/" + strconv.Itoa(r.Version)
}

func (r DatasetRef) format() string {
	if r.Format == "" {
		return "coco"
	}
	return r.Format
}

type exportResponse struct {
	Export struct {
		Link string `json:"link"`
	} `json:"export"`
	Progress float64 `json:"progress"`
}

// ExportLink returns the download link of a dataset export, polling while
// the export is being generated.
func (c *Client) ExportLink(ctx context.Context, ref DatasetRef) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/%d/%s?%s", c.apiURL,
		url.PathEscape(ref.Workspace), url.PathEscape(ref.Project), ref.Version,
		url.PathEscape(ref.format()), url.Values{"api_key": {c.apiKey}}.Encode())

	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		body, err := c.do(ctx, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		})
		if err != nil {
			return "", fmt.Errorf("requesting export: %w", err)
		}

		var resp exportResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decoding export: %w", err)
		}
		if resp.Export.Link != "" {
			return resp.Export.Link, nil
		}

		if attempt == c.pollAttempts {
			break
		}
		c.logger.Info("waiting for dataset export", "progress", resp.Progress, "attempt", attempt)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return "", fmt.Errorf("%w: %s/%s/%d", ErrExportNotReady, ref.Workspace, ref.Project, ref.Version)
}

// DownloadDataset fetches the export archive of ref and unpacks it into dst.
// It returns dst.
func (c *Client) DownloadDataset(ctx context.Context, ref DatasetRef, dst string) (string, error) {
	link, err := c.ExportLink(ctx, ref)
	if err != nil {
		return "", err
	}

	src, err := archiveSource(link)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", fmt.Errorf("creating dataset dir: %w", err)
	}

	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		return "", fmt.Errorf("downloading dataset: %w", err)
	}

	c.logger.Info("dataset downloaded", "dir", dst)
	return dst, nil
}

// archiveSource marks link as a zip archive for go-getter, which strips the
// parameter before fetching.
func archiveSource(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parsing export link: %w", err)
	}
	q := u.Query()
	q.Set("archive", "zip")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
