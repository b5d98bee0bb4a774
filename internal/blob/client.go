// Package blob wraps the object store holding pipeline artifacts. Each
// artifact class (landing, raw, datasets, models, final output) maps to its
// own bucket; names come from configuration, never from handler code.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/conveyor-etl/conveyor/internal/config"
)

type Client struct {
	mc         *minio.Client
	containers config.ContainerConfig
}

func NewClient(cfg config.MinIOConfig, containers config.ContainerConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Client{mc: mc, containers: containers}, nil
}

// EnsureContainers creates any missing artifact buckets.
func (c *Client) EnsureContainers(ctx context.Context) error {
	names := []string{
		c.containers.Landing,
		c.containers.Raw,
		c.containers.Datasets,
		c.containers.Models,
		c.containers.FinalOutput,
	}
	for _, name := range names {
		exists, err := c.mc.BucketExists(ctx, name)
		if err != nil {
			return fmt.Errorf("check container %s: %w", name, err)
		}
		if !exists {
			if err := c.mc.MakeBucket(ctx, name, minio.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create container %s: %w", name, err)
			}
		}
	}
	return nil
}

// Put writes an object in a single call; readers never observe a partial
// write. Re-running a stage overwrites the same name with the same content.
func (c *Client) Put(ctx context.Context, container, name string, r io.Reader, size int64, contentType string) error {
	_, err := c.mc.PutObject(ctx, container, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", container, name, err)
	}
	return nil
}

// Get opens an object for reading. The caller closes the reader.
func (c *Client) Get(ctx context.Context, container, name string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, container, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", container, name, err)
	}
	return obj, nil
}

// Exists reports whether an object is present and readable.
func (c *Client) Exists(ctx context.Context, container, name string) (bool, error) {
	_, err := c.mc.StatObject(ctx, container, name, minio.StatObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat %s/%s: %w", container, name, err)
	}
	return true, nil
}

// Copy performs a server-side copy with overwrite semantics.
func (c *Client) Copy(ctx context.Context, srcContainer, srcName, dstContainer, dstName string) error {
	_, err := c.mc.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstContainer, Object: dstName},
		minio.CopySrcOptions{Bucket: srcContainer, Object: srcName},
	)
	if err != nil {
		return fmt.Errorf("copy %s/%s to %s/%s: %w", srcContainer, srcName, dstContainer, dstName, err)
	}
	return nil
}

// Containers returns the configured container names.
func (c *Client) Containers() config.ContainerConfig {
	return c.containers
}

// Ping verifies store connectivity, used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.mc.BucketExists(ctx, c.containers.Raw); err != nil {
		return fmt.Errorf("ping object store: %w", err)
	}
	return nil
}
