// Package storage legt hochgeladene Inhalte in einem S3-kompatiblen
// Objektspeicher ab.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"ref-mill/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ErrNotFound markiert einen Content-Key ohne dahinterliegendes Objekt.
// Der Zustand ist dauerhaft, ein erneuter Abruf ändert nichts daran.
var ErrNotFound = errors.New("storage: object not found")

// ContentStore lädt und speichert die Rohdaten eines Jobs. Der Worker
// hängt nur von diesem Interface ab, Tests kommen so ohne Objektspeicher
// aus.
type ContentStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) (string, error)
}

// NewS3Client erstellt einen S3-Client für den konfigurierten Endpunkt.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3Endpoint,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// S3Store implementiert ContentStore über einem Bucket.
type S3Store struct {
	Client   *s3.Client
	Bucket   string
	Endpoint string
}

// NewS3Store erstellt den Store aus der Konfiguration.
func NewS3Store(cfg *config.Config) (*S3Store, error) {
	client, err := NewS3Client(cfg)
	if err != nil {
		return nil, err
	}
	return &S3Store{Client: client, Bucket: cfg.S3Bucket, Endpoint: cfg.S3Endpoint}, nil
}

// Fetch lädt das Objekt unter key herunter. Ein fehlendes Objekt wird auf
// ErrNotFound abgebildet.
func (s *S3Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.Bucket,
		Key:    &key,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Upload speichert data unter key und gibt den Link zurück.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", s.Endpoint, s.Bucket, key), nil
}
