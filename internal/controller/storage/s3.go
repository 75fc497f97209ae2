// Package storage talks to the S3-compatible storage nodes. Each node has a
// permanent bucket holding the durable copy and an outbox bucket holding
// the staged, time-limited copy served to downloaders.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	cc "github.com/dmitrijs2005/ghgadelivery/internal/controller/config"
)

// ErrUnknownStorage is returned for a storage alias absent from config.
var ErrUnknownStorage = errors.New("unknown storage alias")

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type node struct {
	objects      objectAPI
	presigner    presignAPI
	outboxBucket string
}

// Outbox serves outbox operations for every configured storage node.
type Outbox struct {
	nodes   map[string]*node
	expires time.Duration
}

// NewOutbox builds an S3 client per configured node. Presigned URLs are
// valid for expires.
func NewOutbox(ctx context.Context, nodes map[string]cc.StorageNode, expires time.Duration) (*Outbox, error) {
	o := &Outbox{nodes: make(map[string]*node, len(nodes)), expires: expires}

	for alias, n := range nodes {
		cfg, err := loadDefaultAWSConfig(ctx,
			config.WithRegion(n.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				n.AccessKeyID,
				n.SecretAccessKey,
				"",
			)))
		if err != nil {
			return nil, fmt.Errorf("storage %q: %w", alias, err)
		}

		endpoint := n.Endpoint
		client := newS3ClientFromConfig(cfg, func(opts *s3.Options) {
			if endpoint != "" {
				opts.BaseEndpoint = aws.String(endpoint)
			}
			opts.UsePathStyle = true
		})

		o.nodes[alias] = &node{
			objects:      client,
			presigner:    s3.NewPresignClient(client),
			outboxBucket: n.OutboxBucket,
		}
	}

	return o, nil
}

func (o *Outbox) node(alias string) (*node, error) {
	n, ok := o.nodes[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStorage, alias)
	}
	return n, nil
}

// Exists reports whether objectID is present in the outbox of storage alias.
func (o *Outbox) Exists(ctx context.Context, alias, objectID string) (bool, error) {
	n, err := o.node(alias)
	if err != nil {
		return false, err
	}

	_, err = n.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(n.outboxBucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object: %w", err)
	}
	return true, nil
}

// PresignGet returns a time-limited GET URL for objectID in the outbox.
func (o *Outbox) PresignGet(ctx context.Context, alias, objectID string) (string, error) {
	n, err := o.node(alias)
	if err != nil {
		return "", err
	}

	req, err := n.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(n.outboxBucket),
		Key:    aws.String(objectID),
	}, s3.WithPresignExpires(o.expires))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// Delete removes objectID from the outbox. A missing object is not an error.
func (o *Outbox) Delete(ctx context.Context, alias, objectID string) error {
	n, err := o.node(alias)
	if err != nil {
		return err
	}

	_, err = n.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(n.outboxBucket),
		Key:    aws.String(objectID),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
