// Package storage holds the S3 client and the snapshot object store used
// for graph backup export and restore.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/peakfunnel/intentgraph/internal/util"
)

func NewS3Client(ctx context.Context) *s3.Client {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client
}

// SnapshotStore implements the resilience snapshot exporter against one
// S3 bucket. Snapshot keys embed their timestamp, so the newest object is
// the lexicographically greatest key under the prefix.
type SnapshotStore struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewSnapshotStore(client *s3.Client) *SnapshotStore {
	return &SnapshotStore{
		client: client,
		bucket: util.GetEnvString("AWS_BUCKET", "intentgraph"),
		prefix: "snapshots/",
	}
}

func (s *SnapshotStore) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot to S3: %w", err)
	}
	return nil
}

// GetLatest downloads the newest snapshot, or nil when none exists.
func (s *SnapshotStore) GetLatest(ctx context.Context) ([]byte, error) {
	var keys []string
	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}

	for {
		listOutput, err := s.client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", err)
		}

		for _, obj := range listOutput.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}

		if listOutput.IsTruncated != nil && *listOutput.IsTruncated {
			listInput.ContinuationToken = listOutput.NextContinuationToken
		} else {
			break
		}
	}

	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)
	latest := keys[len(keys)-1]

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(latest),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s from S3: %w", latest, err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, fmt.Errorf("failed to read snapshot contents: %w", err)
	}
	return buf.Bytes(), nil
}
