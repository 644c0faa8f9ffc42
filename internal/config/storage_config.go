package config

import (
	"github.com/jrsteele09/go-portfolio-auth/docstore/s3docs"
)

// DocstoreKind selects where the remote backend keeps its documents
type DocstoreKind string

const (
	DocstoreMemory   DocstoreKind = "memory"
	DocstoreSQLite   DocstoreKind = "sqlite"
	DocstorePostgres DocstoreKind = "postgres"
	DocstoreS3       DocstoreKind = "s3"
)

type StorageConfig interface {
	GetLocalDB() string
	GetDocstoreKind() DocstoreKind
	GetDocstoreDSN() string
	GetS3Config() s3docs.Config
}

type Storage struct {
	LocalDB     string `env:"LOCAL_DB" envDefault:"./data/portfolio.db"`
	Docstore    string `env:"DOCSTORE" envDefault:"memory"`
	DocstoreDSN string `env:"DOCSTORE_DSN"`

	S3Bucket    string `env:"S3_BUCKET"`
	S3Prefix    string `env:"S3_PREFIX"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
}

var _ StorageConfig = Storage{}

// GetLocalDB is the sqlite file holding the local persisted keys
func (s Storage) GetLocalDB() string {
	return s.LocalDB
}

func (s Storage) GetDocstoreKind() DocstoreKind {
	return DocstoreKind(s.Docstore)
}

func (s Storage) GetDocstoreDSN() string {
	return s.DocstoreDSN
}

func (s Storage) GetS3Config() s3docs.Config {
	return s3docs.Config{
		Bucket:    s.S3Bucket,
		Prefix:    s.S3Prefix,
		Region:    s.S3Region,
		Endpoint:  s.S3Endpoint,
		AccessKey: s.S3AccessKey,
		SecretKey: s.S3SecretKey,
	}
}
