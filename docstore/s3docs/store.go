// Package s3docs keeps each document as a JSON object in an S3 bucket at
// <prefix>/<collection>/<id>.json.
package s3docs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/jrsteele09/go-portfolio-auth/docstore"
)

// ObjectAPI is the subset of the S3 client the store uses
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config locates the bucket. Endpoint and the static keys are optional and
// target S3-compatible servers such as MinIO.
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Store implements docstore.Store on S3
type Store struct {
	client ObjectAPI
	bucket string
	prefix string
}

var _ docstore.Store = (*Store)(nil)

// Open builds an S3 client from cfg and the default AWS credential chain
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("[s3docs.Open] Bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("[s3docs.Open] load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, cfg.Bucket, cfg.Prefix), nil
}

// New creates a Store over an existing client
func New(client ObjectAPI, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *Store) key(collection, id string) string {
	return path.Join(s.prefix, collection, id+".json")
}

func (s *Store) ReadDocument(ctx context.Context, collection, id string) (docstore.Document, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(collection, id)),
	})
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("[s3docs.ReadDocument] %s/%s: %w", collection, id, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("[s3docs.ReadDocument] read body: %w", err)
	}
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("[s3docs.ReadDocument] corrupt document %s/%s: %w", collection, id, err)
	}
	return doc, true, nil
}

// WriteDocument with merge does a read-modify-write; concurrent writers to
// the same document race and the last put wins.
func (s *Store) WriteDocument(ctx context.Context, collection, id string, doc docstore.Document, merge bool) error {
	if merge {
		existing, _, err := s.ReadDocument(ctx, collection, id)
		if err != nil {
			return err
		}
		doc = docstore.Merge(existing, doc)
	}
	if doc == nil {
		doc = docstore.Document{}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("[s3docs.WriteDocument] marshal: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(collection, id)),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("[s3docs.WriteDocument] %s/%s: %w", collection, id, err)
	}
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
