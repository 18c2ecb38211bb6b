// Package objectstore lists and fetches backup snapshots from an
// S3-compatible object store.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/analogrithems/rustored/internal/config"
)

// connectTimeout bounds the reachability probe.
const connectTimeout = 5 * time.Second

// Snapshot describes one remote backup artifact. Immutable once listed.
type Snapshot struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// s3API is the slice of the S3 client the browser uses.
type s3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Client browses snapshots in one bucket.
type Client struct {
	cfg config.ObjectStore
	api s3API
	log zerolog.Logger
}

// New builds a Client from the given settings. Credentials, endpoint and
// addressing style all come from the settings; empty credentials fall back
// to the default AWS chain.
func New(ctx context.Context, cfg config.ObjectStore, log zerolog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &Client{cfg: cfg, api: api, log: log}, nil
}

// List returns the snapshots under the configured prefix, most recent
// first. Keys that only mark a directory (trailing slash) are skipped.
func (c *Client) List(ctx context.Context) ([]Snapshot, error) {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.cfg.Bucket),
		Prefix: aws.String(c.cfg.Prefix),
	}

	var snaps []Snapshot
	for {
		out, err := c.api.ListObjectsV2(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in %s: %w", c.cfg.Bucket, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			snap := Snapshot{Key: key, Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				snap.LastModified = *obj.LastModified
			}
			snaps = append(snaps, snap)
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		in.ContinuationToken = out.NextContinuationToken
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].LastModified.After(snaps[j].LastModified)
	})

	c.log.Debug().Int("count", len(snaps)).Str("bucket", c.cfg.Bucket).Msg("listed snapshots")
	return snaps, nil
}

// Fetch opens the object body for streaming. The returned size is -1 when
// the store did not report a content length.
func (c *Client) Fetch(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}

// TestConnection probes the bucket with a bounded timeout. It never
// mutates remote state.
func (c *Client) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.cfg.Bucket)})
	if err != nil {
		return fmt.Errorf("bucket %s not reachable: %w", c.cfg.Bucket, err)
	}
	return nil
}
