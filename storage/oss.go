package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSConfig configures the Aliyun OSS provider.
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"` // oss-cn-hangzhou.aliyuncs.com
	AccessKeyID     string `mapstructure:"access_key_id" json:"access_key_id" yaml:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret" json:"access_key_secret" yaml:"access_key_secret"`
	Bucket          string `mapstructure:"bucket" json:"bucket" yaml:"bucket"`
	Domain          string `mapstructure:"domain" json:"domain" yaml:"domain"` // custom or CDN domain
}

// bucket is the subset of *oss.Bucket the provider uses.
type bucket interface {
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	IsObjectExist(objectKey string, options ...oss.Option) (bool, error)
	ListObjectsV2(options ...oss.Option) (oss.ListObjectsResultV2, error)
	DeleteObjects(objectKeys []string, options ...oss.Option) (oss.DeleteObjectsResult, error)
}

// OSSProvider implements Provider on Aliyun OSS.
type OSSProvider struct {
	bucket bucket
	domain string
}

// NewOSSProvider connects to cfg.Bucket.
func NewOSSProvider(cfg OSSConfig) (*OSSProvider, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("oss provider requires endpoint and bucket")
	}

	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	b, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}

	return newOSSProvider(b, cfg), nil
}

func newOSSProvider(b bucket, cfg OSSConfig) *OSSProvider {
	domain := cfg.Domain
	if domain == "" {
		domain = fmt.Sprintf("https://%s.%s", cfg.Bucket, cfg.Endpoint)
	} else if !strings.HasPrefix(domain, "http") {
		domain = "https://" + domain
	}
	return &OSSProvider{bucket: b, domain: strings.TrimSuffix(domain, "/")}
}

func (p *OSSProvider) Name() string { return string(TypeOSS) }

// Put uploads an object.
func (p *OSSProvider) Put(ctx context.Context, key string, r io.Reader) error {
	if err := p.bucket.PutObject(Join(key), r, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to upload to OSS: %w", err)
	}
	return nil
}

// DeletePrefix lists and batch-deletes every object under prefix.
func (p *OSSProvider) DeletePrefix(ctx context.Context, prefix string) error {
	prefix = Join(prefix)
	if prefix == "" || prefix == "." {
		return fmt.Errorf("refusing to delete whole bucket")
	}
	prefix += "/"

	token := ""
	for {
		opts := []oss.Option{oss.Prefix(prefix), oss.MaxKeys(1000), oss.WithContext(ctx)}
		if token != "" {
			opts = append(opts, oss.ContinuationToken(token))
		}

		res, err := p.bucket.ListObjectsV2(opts...)
		if err != nil {
			return fmt.Errorf("failed to list OSS objects: %w", err)
		}

		keys := make([]string, 0, len(res.Objects))
		for _, obj := range res.Objects {
			keys = append(keys, obj.Key)
		}
		if len(keys) > 0 {
			if _, err := p.bucket.DeleteObjects(keys, oss.DeleteObjectsQuiet(true), oss.WithContext(ctx)); err != nil {
				return fmt.Errorf("failed to delete from OSS: %w", err)
			}
		}

		if !res.IsTruncated {
			return nil
		}
		token = res.NextContinuationToken
	}
}

// Exists checks if an object exists.
func (p *OSSProvider) Exists(ctx context.Context, key string) (bool, error) {
	return p.bucket.IsObjectExist(Join(key), oss.WithContext(ctx))
}

func (p *OSSProvider) URL(key string) string {
	return p.domain + "/" + Join(key)
}
