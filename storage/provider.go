package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// Provider stores opaque objects under slash-separated keys.
type Provider interface {
	Name() string
	// Put writes r to key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader) error
	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	Exists(ctx context.Context, key string) (bool, error)
	// URL returns where key can be fetched from.
	URL(key string) string
}

// Type names a provider implementation.
type Type string

const (
	TypeLocal Type = "local"
	TypeOSS   Type = "oss"
)

// Config selects and configures a provider.
type Config struct {
	Type  Type        `mapstructure:"type" json:"type" yaml:"type" default:"local" validate:"oneof=local oss"`
	Local LocalConfig `mapstructure:"local" json:"local" yaml:"local"`
	OSS   OSSConfig   `mapstructure:"oss" json:"oss" yaml:"oss"`
}

// New creates the provider cfg selects.
func New(cfg Config) (Provider, error) {
	switch cfg.Type {
	case TypeLocal, "":
		return NewLocalProvider(cfg.Local.BasePath, cfg.Local.BaseURL)
	case TypeOSS:
		return NewOSSProvider(cfg.OSS)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// Join builds a key from parts, dropping empty and leading slashes.
func Join(parts ...string) string {
	return strings.TrimPrefix(path.Join(parts...), "/")
}
