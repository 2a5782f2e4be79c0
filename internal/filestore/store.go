package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Store is a flat blob store keyed by slash-separated keys. Keys are opaque to
// callers; backends decide how to map them onto their namespace.
type Store interface {
	Name() string
	Save(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

type StoreFactory func(args interface{}) (Store, error)

var registry = map[string]StoreFactory{}

func Register(name string, factory StoreFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewStore(name string, args interface{}) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("filestore.type is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported filestore type: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("filestore config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode filestore config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode filestore config: %w", err)
	}
	return nil
}
