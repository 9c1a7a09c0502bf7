package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/config"
	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

// NewPost is the input of CreatePost. A zero CreatedTime means now.
type NewPost struct {
	TopicID     int64
	AuthorID    *int64
	Text        string
	CreatedTime time.Time
}

// CreatePost stores a message and updates the forum, profile and topic counters in one
// transaction, promoting the author when a messages group threshold is reached.
func (service *Service) CreatePost(ctx context.Context, req *NewPost) (*model.Post, *dao.PostOutcome, error) {
	if frozen() {
		return nil, nil, common.NotPermitted("the archive is read-only")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, nil, common.ValidationFailed("message is empty")
	}

	topic, err := dao.StoreInstance.GetTopic(ctx, req.TopicID)
	if err != nil {
		return nil, nil, service.report("CreatePost dao.StoreInstance.GetTopic", err)
	}
	if err := service.checkLocked(ctx, topic, req.AuthorID); err != nil {
		return nil, nil, err
	}

	createdTime := req.CreatedTime
	if createdTime.IsZero() {
		createdTime = service.now()
	}
	post := &model.Post{
		TopicID:     req.TopicID,
		AuthorID:    req.AuthorID,
		Text:        req.Text,
		CreatedTime: createdTime.UTC(),
	}

	var outcome *dao.PostOutcome
	err = service.retrySerializable(ctx, "CreatePost", func() (err error) {
		post.ID = 0
		outcome, err = dao.StoreInstance.CreatePost(ctx, post, config.Cfg.ForumName)
		return err
	})
	if err != nil {
		return nil, nil, service.report("CreatePost dao.StoreInstance.CreatePost", err)
	}

	service.invalidateCounts(ctx, post.AuthorID)

	if err := service.Pub.PubEvent(ctx, model.EventPostCreated, post.ID); err != nil {
		service.Log.Errorf("[service] CreatePost PubEvent err: %v", err)
	}

	service.logPromotion(post, outcome)
	return post, outcome, nil
}

func (service *Service) logPromotion(post *model.Post, outcome *dao.PostOutcome) {
	if outcome == nil || len(outcome.AddedGroups) == 0 {
		return
	}
	names := make([]string, 0, len(outcome.AddedGroups))
	for _, g := range outcome.AddedGroups {
		names = append(names, g.Name)
	}
	service.Log.Infof("[service] author %d promoted to %s", *post.AuthorID, strings.Join(names, ", "))
}

// checkLocked rejects a message in a locked topic unless its author is staff.
func (service *Service) checkLocked(ctx context.Context, topic *model.Topic, authorID *int64) error {
	if !topic.IsLocked {
		return nil
	}
	if authorID != nil {
		author, err := dao.StoreInstance.GetUser(ctx, *authorID)
		if err != nil {
			return service.report("checkLocked dao.StoreInstance.GetUser", err)
		}
		if author.IsStaff {
			return nil
		}
	}
	return common.NotPermitted("topic is locked")
}

// retrySerializable runs f again after serialization failures, up to Cfg.PostRetries times,
// then gives up with ConcurrentUpdateConflict.
func (service *Service) retrySerializable(ctx context.Context, op string, f func() error) error {
	for attempt := 0; ; attempt++ {
		err := f()
		if err == nil || !dao.IsSerializationFailure(err) {
			return err
		}
		if attempt >= config.Cfg.PostRetries {
			currErr := fmt.Errorf("[service] %s gave up after %d attempts: %v", op, attempt+1, err)
			service.Log.Error(currErr)
			sentry.CaptureException(currErr)
			return common.ConcurrentUpdateConflict()
		}
		service.Log.Warnf("[service] %s serialization failure, attempt %d: %v", op, attempt+1, err)
		backoff := time.Duration(10*(attempt+1)+rand.Intn(10)) * time.Millisecond
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// invalidateCounts drops the cached live counters a new post makes stale.
func (service *Service) invalidateCounts(ctx context.Context, authorID *int64) {
	keys := []string{model.GetKeyForTotalMessages(nil)}
	if authorID != nil {
		keys = append(keys, model.GetKeyForUserMessageCount(*authorID, nil))
	}
	_ = dao.RedisInstance.Del(ctx, keys)
}

// EditPost replaces the text of a post. Only its author or staff may edit it.
func (service *Service) EditPost(ctx context.Context, postID, editorID int64, text string) (*model.Post, error) {
	if frozen() {
		return nil, common.NotPermitted("the archive is read-only")
	}
	if strings.TrimSpace(text) == "" {
		return nil, common.ValidationFailed("message is empty")
	}

	post, err := dao.StoreInstance.GetPost(ctx, postID)
	if err != nil {
		return nil, service.report("EditPost dao.StoreInstance.GetPost", err)
	}
	if post.AuthorID == nil || *post.AuthorID != editorID {
		editor, err := dao.StoreInstance.GetUser(ctx, editorID)
		if err != nil {
			if common.HasCode(err, common.Code_NotFound) {
				return nil, common.NotPermitted("")
			}
			return nil, service.report("EditPost dao.StoreInstance.GetUser", err)
		}
		if !editor.IsStaff {
			return nil, common.NotPermitted("only the author or staff can edit a message")
		}
	}

	post, err = dao.StoreInstance.EditPost(ctx, postID, text, service.now())
	if err != nil {
		return nil, service.report("EditPost dao.StoreInstance.EditPost", err)
	}

	if err := service.Pub.PubEvent(ctx, model.EventPostUpdated, post.ID); err != nil {
		service.Log.Errorf("[service] EditPost PubEvent err: %v", err)
	}
	return post, nil
}
