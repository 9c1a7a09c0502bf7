package service

import (
	"context"
	"time"

	"github.com/theotor83/utf-rewritten-sub000/config"
	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

type ForumStats struct {
	AsOf             time.Time   `json:"asOf"`
	TotalMessages    int64       `json:"totalMessages"`
	TotalUsers       int64       `json:"totalUsers"`
	TotalTopics      int64       `json:"totalTopics"`
	LatestUser       *model.User `json:"latestUser"`
	OnlineRecord     int64       `json:"onlineRecord"`
	OnlineRecordDate time.Time   `json:"onlineRecordDate"`
}

// cachedCount serves a count from redis, computing and storing it on a miss.
// Cache failures fall through to the database.
func (service *Service) cachedCount(ctx context.Context, key string, compute func() (int64, error)) (int64, error) {
	if count, ok, err := dao.RedisInstance.GetCount(ctx, key); err == nil && ok {
		return count, nil
	}
	count, err := compute()
	if err != nil {
		return 0, err
	}
	_ = dao.RedisInstance.SetCount(ctx, key, count)
	return count, nil
}

// TotalMessagesAsOf counts the posts created at or before asOf (nil for now).
func (service *Service) TotalMessagesAsOf(ctx context.Context, asOf *time.Time) (int64, error) {
	at := service.instant(asOf)
	count, err := service.cachedCount(ctx, model.GetKeyForTotalMessages(asOf), func() (int64, error) {
		return dao.StoreInstance.CountPosts(ctx, at)
	})
	if err != nil {
		return 0, service.report("TotalMessagesAsOf dao.StoreInstance.CountPosts", err)
	}
	return count, nil
}

// UserMessageCountAsOf counts the posts userID wrote at or before asOf (nil for now).
func (service *Service) UserMessageCountAsOf(ctx context.Context, userID int64, asOf *time.Time) (int64, error) {
	at := service.instant(asOf)
	count, err := service.cachedCount(ctx, model.GetKeyForUserMessageCount(userID, asOf), func() (int64, error) {
		return dao.StoreInstance.CountUserPosts(ctx, userID, at)
	})
	if err != nil {
		return 0, service.report("UserMessageCountAsOf dao.StoreInstance.CountUserPosts", err)
	}
	return count, nil
}

func (service *Service) ForumStats(ctx context.Context, asOf *time.Time) (*ForumStats, error) {
	at := service.instant(asOf)
	stats := &ForumStats{AsOf: at}

	var err error
	if stats.TotalMessages, err = service.TotalMessagesAsOf(ctx, asOf); err != nil {
		return nil, err
	}
	if stats.TotalUsers, err = dao.StoreInstance.CountUsers(ctx, at); err != nil {
		return nil, service.report("ForumStats dao.StoreInstance.CountUsers", err)
	}
	if stats.TotalTopics, err = dao.StoreInstance.CountTopics(ctx, at); err != nil {
		return nil, service.report("ForumStats dao.StoreInstance.CountTopics", err)
	}
	if stats.LatestUser, err = dao.StoreInstance.LatestUser(ctx, at); err != nil {
		return nil, service.report("ForumStats dao.StoreInstance.LatestUser", err)
	}

	forum, err := dao.StoreInstance.GetForum(ctx, config.Cfg.ForumName)
	if err != nil {
		return nil, service.report("ForumStats dao.StoreInstance.GetForum", err)
	}
	if forum != nil && !forum.OnlineRecordDate.After(at) {
		stats.OnlineRecord = forum.OnlineRecord
		stats.OnlineRecordDate = forum.OnlineRecordDate
	}
	return stats, nil
}
