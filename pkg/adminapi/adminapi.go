package adminapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/stackpilot/stackpilot/pkg/log"
	"github.com/stackpilot/stackpilot/pkg/types"
)

// Execer runs a command inside the object store's container
type Execer interface {
	Exec(ctx context.Context, service string, cmd ...string) (string, error)
}

// Bucket is one bucket listing entry
type Bucket struct {
	Name string
	Size int64
}

// lsEntry is one line of `mc ls --json`
type lsEntry struct {
	Status string `json:"status"`
	Type   string `json:"type"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
}

// infoReply is the subset of `mc admin info --json` the client reads
type infoReply struct {
	Status string `json:"status"`
	Info   struct {
		Mode string `json:"mode"`
	} `json:"info"`
}

// Client talks to the object store through its health endpoint and the
// mc binary bundled in its container. All command output is typed JSON;
// nothing is scraped from human-readable text.
type Client struct {
	exec      Execer
	http      *http.Client
	service   string
	alias     string
	healthURL string
	log       zerolog.Logger
}

// NewClient creates a client for the object store service. alias is the
// mc alias preconfigured inside the container.
func NewClient(exec Execer, service, alias, healthURL string) *Client {
	return &Client{
		exec:      exec,
		http:      &http.Client{Timeout: 10 * time.Second},
		service:   service,
		alias:     alias,
		healthURL: healthURL,
		log:       log.WithComponent("adminapi"),
	}
}

// WithHTTPClient overrides the HTTP client, for tests
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Health reports whether the object store answers its readiness endpoint
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.NewExternalCommandError("object store health", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.NewExternalCommandError("object store health",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

// Online reports whether the server considers itself online
func (c *Client) Online(ctx context.Context) (bool, error) {
	out, err := c.exec.Exec(ctx, c.service, "mc", "admin", "info", "--json", c.alias)
	if err != nil {
		return false, err
	}

	var reply infoReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &reply); err != nil {
		return false, types.NewExternalCommandError("decode admin info",
			fmt.Errorf("unexpected output: %w", err))
	}
	return reply.Status == "success" && reply.Info.Mode == "online", nil
}

// ListBuckets returns the buckets under the configured alias
func (c *Client) ListBuckets(ctx context.Context) ([]Bucket, error) {
	out, err := c.exec.Exec(ctx, c.service, "mc", "ls", "--json", c.alias)
	if err != nil {
		return nil, err
	}
	return decodeBuckets(out)
}

// EnsureBucket creates the bucket when absent. Creating an existing
// bucket is not an error.
func (c *Client) EnsureBucket(ctx context.Context, name string) error {
	buckets, err := c.ListBuckets(ctx)
	if err != nil {
		return err
	}
	for _, b := range buckets {
		if b.Name == name {
			c.log.Debug().Str("bucket", name).Msg("bucket already present")
			return nil
		}
	}

	target := fmt.Sprintf("%s/%s", c.alias, name)
	if _, err := c.exec.Exec(ctx, c.service, "mc", "mb", "--ignore-existing", target); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", name, err)
	}
	c.log.Info().Str("bucket", name).Msg("bucket created")
	return nil
}

// decodeBuckets parses the newline-delimited JSON stream mc emits
func decodeBuckets(out string) ([]Bucket, error) {
	var buckets []Bucket
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry lsEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, types.NewExternalCommandError("decode bucket listing",
				fmt.Errorf("unexpected output line: %w", err))
		}
		if entry.Status != "success" || entry.Type != "folder" {
			continue
		}
		buckets = append(buckets, Bucket{
			Name: strings.TrimSuffix(entry.Key, "/"),
			Size: entry.Size,
		})
	}
	return buckets, nil
}
