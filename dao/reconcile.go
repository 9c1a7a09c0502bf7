package dao

import (
	"context"
	"time"

	"github.com/theotor83/utf-rewritten-sub000/model"
)

// ReconcileReport counts the rows whose denormalized counters were rewritten.
type ReconcileReport struct {
	Topics   int `json:"topics"`
	Profiles int `json:"profiles"`
	Forum    int `json:"forum"`
}

// ReconcileCounters recomputes every denormalized counter from the source rows and
// rewrites only the rows that drifted.
func (dao *Store) ReconcileCounters(ctx context.Context, forumName string, now time.Time) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	topics := make([]*model.Topic, 0)
	if err := dao.db(ctx).Find(&topics).Error; err != nil {
		dao.Log.Errorf("[dao] ReconcileCounters Find(topics) err: %v", err)
		return report, err
	}
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

	subReplies, err := dao.SubforumReplyCounts(ctx, subforumIDs, now)
	if err != nil {
		return report, err
	}
	subLatest, err := dao.SubforumLatestPostIDs(ctx, subforumIDs, now)
	if err != nil {
		return report, err
	}
	topicPosts, err := dao.TopicPostCounts(ctx, regularIDs, now)
	if err != nil {
		return report, err
	}
	topicLatest, err := dao.TopicLatestPostIDs(ctx, regularIDs, now)
	if err != nil {
		return report, err
	}
	children, err := dao.ChildCounts(ctx, allIDs, now)
	if err != nil {
		return report, err
	}

	for _, t := range topics {
		var replies int64
		var latest int64
		if t.IsSubForum {
			replies = subReplies[t.ID]
			latest = subLatest[t.ID]
		} else {
			replies = topicPosts[t.ID] - 1
			latest = topicLatest[t.ID]
		}

		updates := map[string]interface{}{}
		if t.TotalReplies != replies {
			updates["total_replies"] = replies
		}
		if t.TotalChildren != children[t.ID] {
			updates["total_children"] = children[t.ID]
		}
		if latest != 0 && (t.LatestMessageID == nil || *t.LatestMessageID != latest) {
			updates["latest_message_id"] = latest
		}
		if len(updates) == 0 {
			continue
		}
		if err := dao.db(ctx).Model(&model.Topic{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
			dao.Log.Errorf("[dao] ReconcileCounters update topic %d err: %v", t.ID, err)
			return report, err
		}
		report.Topics++
	}

	type authorCount struct {
		AuthorID int64
		Total    int64
	}
	counts := make([]*authorCount, 0)
	if err := dao.db(ctx).Model(&model.Post{}).Select("author_id, COUNT(*) AS total").
		Where("author_id IS NOT NULL").Group("author_id").Scan(&counts).Error; err != nil {
		dao.Log.Errorf("[dao] ReconcileCounters author counts err: %v", err)
		return report, err
	}
	countMap := make(map[int64]int64, len(counts))
	for _, c := range counts {
		countMap[c.AuthorID] = c.Total
	}
	profiles := make([]*model.Profile, 0)
	if err := dao.db(ctx).Select("id", "user_id", "messages_count").Find(&profiles).Error; err != nil {
		dao.Log.Errorf("[dao] ReconcileCounters Find(profiles) err: %v", err)
		return report, err
	}
	for _, p := range profiles {
		if p.MessagesCount == countMap[p.UserID] {
			continue
		}
		if err := dao.db(ctx).Model(&model.Profile{}).Where("id = ?", p.ID).
			UpdateColumn("messages_count", countMap[p.UserID]).Error; err != nil {
			return report, err
		}
		report.Profiles++
	}

	var totalPosts, totalProfiles int64
	if err := dao.db(ctx).Model(&model.Post{}).Count(&totalPosts).Error; err != nil {
		return report, err
	}
	if err := dao.db(ctx).Model(&model.Profile{}).Count(&totalProfiles).Error; err != nil {
		return report, err
	}
	db := dao.db(ctx).Model(&model.Forum{}).
		Where("name = ? AND (total_messages <> ? OR total_users <> ?)", forumName, totalPosts, totalProfiles).
		Updates(map[string]interface{}{"total_messages": totalPosts, "total_users": totalProfiles})
	if db.Error != nil {
		dao.Log.Errorf("[dao] ReconcileCounters update forum err: %v", db.Error)
		return report, db.Error
	}
	report.Forum = int(db.RowsAffected)

	return report, nil
}
