package metadata

import (
	"context"
)

// Repository is a durable string key/value table. Put and Delete touch
// several keys as one unit: either every key changes or none does.
type Repository interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}
