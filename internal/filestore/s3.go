package filestore

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	commons3 "github.com/xxxsen/common/s3"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

type s3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

type s3Store struct {
	client *commons3.S3Client
	prefix string
}

func init() {
	Register("s3", createS3Store)
}

func createS3Store(args interface{}) (Store, error) {
	config := &s3Config{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	var missing []string
	for name, value := range map[string]string{
		"endpoint":   config.Endpoint,
		"bucket":     config.Bucket,
		"secret_id":  config.SecretID,
		"secret_key": config.SecretKey,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("s3 file store: %s required", strings.Join(missing, ", "))
	}
	if config.Region == "" {
		config.Region = "cn"
	}
	client, err := commons3.New(
		commons3.WithEndpoint(config.Endpoint),
		commons3.WithSecret(config.SecretID, config.SecretKey),
		commons3.WithBucket(config.Bucket),
		commons3.WithRegion(config.Region),
		commons3.WithSSL(config.UseSSL),
	)
	if err != nil {
		return nil, err
	}
	return &s3Store{client: client, prefix: strings.Trim(config.Prefix, "/")}, nil
}

func (s *s3Store) Type() string {
	return "s3"
}

func (s *s3Store) Save(ctx context.Context, key string, r ReadSeekCloser, size int64) error {
	if key == "" {
		return fmt.Errorf("file key is required: %w", appErr.ErrInvalid)
	}
	objectKey := s.objectKey(key)
	if _, err := s.client.Upload(ctx, objectKey, r, size); err != nil {
		return fmt.Errorf("upload %s: %w: %w", objectKey, appErr.ErrUnavailable, err)
	}
	return nil
}


// objectKey places uploads under the configured prefix. Keys are flat
// document-derived names, see ObjectKey.
func (s *s3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}
