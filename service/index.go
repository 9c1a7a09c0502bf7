package service

import (
	"context"
	"time"

	"github.com/theotor83/utf-rewritten-sub000/config"
	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

const recentPostsOnIndex = 6

// TopicSummary is a topic as listed at a given instant.
type TopicSummary struct {
	Topic         *model.Topic     `json:"topic"`
	URL           string           `json:"url"`
	Replies       int64            `json:"replies"`
	Children      int64            `json:"children"`
	Views         int64            `json:"views"`
	LatestMessage *model.Post      `json:"latestMessage"`
	MaxPage       int              `json:"maxPage"`
	PageNumbers   []model.PageLink `json:"pageNumbers"`
	Unread        bool             `json:"unread"`
}

type CategoryListing struct {
	Category *model.Category `json:"category"`
	Topics   []*TopicSummary `json:"topics"`
}

type IndexListing struct {
	AsOf        time.Time          `json:"asOf"`
	Categories  []*CategoryListing `json:"categories"`
	RecentPosts []*model.Post      `json:"recentPosts"`
	PollTopic   *model.Topic       `json:"pollTopic"`
	Stats       *ForumStats        `json:"stats"`
	Birthdays   *Birthdays         `json:"birthdays"`
}

// summarize computes the counters of topics as they were at asOf (nil for now). Every count
// comes from grouped queries stitched in memory, so the present and the past share one code
// path. The present of the archive shows the frozen display counters instead.
// viewerID 0 skips read tracking.
func (service *Service) summarize(ctx context.Context, topics []*model.Topic, asOf *time.Time, viewerID int64) ([]*TopicSummary, error) {
	summaries := make([]*TopicSummary, 0, len(topics))
	if len(topics) == 0 {
		return summaries, nil
	}
	at := service.instant(asOf)
	displayed := frozen() && asOf == nil

	subforumIDs := make([]int64, 0)
	regularIDs := make([]int64, 0)
	allIDs := make([]int64, 0, len(topics))
	for _, t := range topics {
		allIDs = append(allIDs, t.ID)
		if t.IsSubForum {
			subforumIDs = append(subforumIDs, t.ID)
		} else {
			regularIDs = append(regularIDs, t.ID)
		}
	}

	subReplies, err := dao.StoreInstance.SubforumReplyCounts(ctx, subforumIDs, at)
	if err != nil {
		return nil, service.report("summarize dao.StoreInstance.SubforumReplyCounts", err)
	}
	subLatest, err := dao.StoreInstance.SubforumLatestPostIDs(ctx, subforumIDs, at)
	if err != nil {
		return nil, service.report("summarize dao.StoreInstance.SubforumLatestPostIDs", err)
	}
	topicPosts, err := dao.StoreInstance.TopicPostCounts(ctx, regularIDs, at)
	if err != nil {
		return nil, service.report("summarize dao.StoreInstance.TopicPostCounts", err)
	}
	topicLatest, err := dao.StoreInstance.TopicLatestPostIDs(ctx, regularIDs, at)
	if err != nil {
		return nil, service.report("summarize dao.StoreInstance.TopicLatestPostIDs", err)
	}
	children, err := dao.StoreInstance.ChildCounts(ctx, allIDs, at)
	if err != nil {
		return nil, service.report("summarize dao.StoreInstance.ChildCounts", err)
	}

	postIDs := make([]int64, 0, len(topics))
	for _, id := range subLatest {
		postIDs = append(postIDs, id)
	}
	for _, id := range topicLatest {
		postIDs = append(postIDs, id)
	}
	posts, err := dao.StoreInstance.GetPostsByIds(ctx, postIDs)
	if err != nil {
		return nil, service.report("summarize dao.StoreInstance.GetPostsByIds", err)
	}

	for _, t := range topics {
		s := &TopicSummary{
			Topic:    t,
			URL:      t.URL(),
			Children: children[t.ID],
			Views:    t.ViewCount(frozen()),
		}
		if t.IsSubForum {
			s.Replies = subReplies[t.ID]
			s.LatestMessage = posts[subLatest[t.ID]]
		} else {
			s.Replies = model.RepliesFromPosts(topicPosts[t.ID])
			s.LatestMessage = posts[topicLatest[t.ID]]
		}
		if displayed {
			s.Replies = t.ReplyCount(true)
			s.Children = t.ChildCount(true)
		}
		s.MaxPage = model.MaxPage(s.Replies, config.Cfg.PostsPerPage)
		s.PageNumbers = model.PageNumbers(s.MaxPage)
		summaries = append(summaries, s)
	}

	if viewerID != 0 && !frozen() {
		if err := service.markUnread(ctx, summaries, viewerID); err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

// markUnread flags summaries whose latest message is newer than the viewer's last visit
// of the topic holding it.
func (service *Service) markUnread(ctx context.Context, summaries []*TopicSummary, viewerID int64) error {
	topicIDs := make([]int64, 0, len(summaries))
	for _, s := range summaries {
		if s.LatestMessage != nil {
			topicIDs = append(topicIDs, s.LatestMessage.TopicID)
		}
	}
	lastReads, err := dao.StoreInstance.ReadStatuses(ctx, viewerID, topicIDs)
	if err != nil {
		return service.report("markUnread dao.StoreInstance.ReadStatuses", err)
	}
	for _, s := range summaries {
		if s.LatestMessage == nil {
			continue
		}
		lastRead, ok := lastReads[s.LatestMessage.TopicID]
		s.Unread = !ok || s.LatestMessage.CreatedTime.After(lastRead)
	}
	return nil
}

// IndexListing builds the forum index as it looked at asOf (nil for now).
func (service *Service) IndexListing(ctx context.Context, asOf *time.Time, viewerID int64) (*IndexListing, error) {
	at := service.instant(asOf)

	// archive snapshots of past dates never change
	cacheable := frozen() && asOf != nil && viewerID == 0
	if cacheable {
		cached := &IndexListing{}
		if ok, _ := dao.RedisInstance.GetJSON(ctx, model.GetKeyForIndexSnapshot(asOf), cached); ok {
			return cached, nil
		}
	}

	categories, err := dao.StoreInstance.VisibleCategories(ctx)
	if err != nil {
		return nil, service.report("IndexListing dao.StoreInstance.VisibleCategories", err)
	}
	categoryIDs := make([]int64, 0, len(categories))
	for _, c := range categories {
		categoryIDs = append(categoryIDs, c.ID)
	}
	topics, err := dao.StoreInstance.IndexTopics(ctx, categoryIDs, at)
	if err != nil {
		return nil, service.report("IndexListing dao.StoreInstance.IndexTopics", err)
	}
	summaries, err := service.summarize(ctx, topics, asOf, viewerID)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[int64][]*TopicSummary, len(categories))
	for _, s := range summaries {
		if s.Topic.CategoryID != nil {
			byCategory[*s.Topic.CategoryID] = append(byCategory[*s.Topic.CategoryID], s)
		}
	}
	listing := &IndexListing{AsOf: at, Categories: make([]*CategoryListing, 0, len(categories))}
	for _, c := range categories {
		topics := byCategory[c.ID]
		if topics == nil {
			topics = []*TopicSummary{}
		}
		listing.Categories = append(listing.Categories, &CategoryListing{Category: c, Topics: topics})
	}

	if listing.RecentPosts, err = dao.StoreInstance.RecentPosts(ctx, at, recentPostsOnIndex); err != nil {
		return nil, service.report("IndexListing dao.StoreInstance.RecentPosts", err)
	}
	if listing.PollTopic, err = dao.StoreInstance.LatestPollTopic(ctx, at); err != nil {
		return nil, service.report("IndexListing dao.StoreInstance.LatestPollTopic", err)
	}
	if listing.Stats, err = service.ForumStats(ctx, asOf); err != nil {
		return nil, err
	}
	if listing.Birthdays, err = service.Birthdays(ctx, asOf); err != nil {
		return nil, err
	}

	if cacheable {
		_ = dao.RedisInstance.SetJSON(ctx, model.GetKeyForIndexSnapshot(asOf), listing)
	}
	return listing, nil
}
