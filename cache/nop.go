package cache

import (
	"context"
	"time"
)

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string, any) (bool, error) {
	recordLookup("none", false, nil)
	return false, nil
}

func (NopCache) Set(context.Context, string, any, time.Duration) error { return nil }

func (NopCache) Delete(context.Context, string) error { return nil }

func (NopCache) Clear(context.Context) error { return nil }
