package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/aerioncore/mailcore/core/domain"
)

// defaultTTL matches how briefly a cached page stays useful: long enough to
// absorb a burst of repeated list calls (a client re-rendering, a paging
// UI), short enough that a sync write a user doesn't wait on still shows up
// promptly once the entry expires.
const defaultTTL = 15 * time.Second

// MessageListCache is a read-through cache in front of the message list
// query, keyed by folder/offset/limit. Entries are invalidated by folder
// whenever a write (sync ingest, flag change, move, delete) touches it.
type MessageListCache struct {
	redis *RedisCache
}

func NewMessageListCache(redis *RedisCache) *MessageListCache {
	return &MessageListCache{redis: redis}
}

func listKey(folderID int64, limit, offset int) string {
	return fmt.Sprintf("mailcore:msglist:%d:%d:%d", folderID, limit, offset)
}

func folderPrefix(folderID int64) string {
	return fmt.Sprintf("mailcore:msglist:%d:", folderID)
}

// Get returns a cached page of messages for folderID, or ok=false on a miss.
func (c *MessageListCache) Get(ctx context.Context, folderID int64, limit, offset int) ([]*domain.Message, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	var msgs []*domain.Message
	ok, err := c.redis.GetJSON(ctx, listKey(folderID, limit, offset), &msgs)
	if err != nil || !ok {
		return nil, false
	}
	return msgs, true
}

// Set stores a page of messages for folderID.
func (c *MessageListCache) Set(ctx context.Context, folderID int64, limit, offset int, msgs []*domain.Message) {
	if c == nil || c.redis == nil {
		return
	}
	_ = c.redis.SetJSON(ctx, listKey(folderID, limit, offset), msgs, defaultTTL)
}

// InvalidateFolder drops every cached page for folderID.
func (c *MessageListCache) InvalidateFolder(ctx context.Context, folderID int64) {
	if c == nil || c.redis == nil {
		return
	}
	_ = c.redis.DeleteByPrefix(ctx, folderPrefix(folderID))
}
