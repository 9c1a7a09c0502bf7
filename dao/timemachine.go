package dao

import (
	"context"
	"time"

	"github.com/theotor83/utf-rewritten-sub000/model"
)

// descendantsCTE binds each subforum root to itself and to every topic below it.
// UNION drops duplicate pairs, which also stops the recursion on cycles.
const descendantsCTE = `
WITH RECURSIVE topic_descendants (root_id, topic_id) AS (
	SELECT id, id FROM topics WHERE is_sub_forum = ? AND id IN ?
	UNION
	SELECT td.root_id, t.id FROM topics t JOIN topic_descendants td ON t.parent_id = td.topic_id
)`

type rootCount struct {
	RootID int64
	Total  int64
}

type rootPost struct {
	RootID int64
	PostID int64
}

// SubforumReplyCounts counts, for each subforum, the posts created at or before asOf
// anywhere below it.
func (dao *Store) SubforumReplyCounts(ctx context.Context, subforumIDs []int64, asOf time.Time) (map[int64]int64, error) {
	res := make(map[int64]int64, len(subforumIDs))
	if len(subforumIDs) == 0 {
		return res, nil
	}

	rows := make([]*rootCount, 0)
	query := descendantsCTE + `
SELECT td.root_id AS root_id, COUNT(p.id) AS total
FROM topic_descendants td
JOIN posts p ON p.topic_id = td.topic_id
WHERE p.created_time <= ?
GROUP BY td.root_id`
	if err := dao.db(ctx).Raw(query, true, subforumIDs, asOf.UTC()).Scan(&rows).Error; err != nil {
		dao.Log.Errorf("[dao] SubforumReplyCounts err: %v", err)
		return res, err
	}
	for _, r := range rows {
		res[r.RootID] = r.Total
	}
	return res, nil
}

// SubforumLatestPostIDs finds, for each subforum, the newest post below it at or before asOf.
func (dao *Store) SubforumLatestPostIDs(ctx context.Context, subforumIDs []int64, asOf time.Time) (map[int64]int64, error) {
	res := make(map[int64]int64, len(subforumIDs))
	if len(subforumIDs) == 0 {
		return res, nil
	}

	rows := make([]*rootPost, 0)
	query := descendantsCTE + `,
ranked AS (
	SELECT td.root_id AS root_id, p.id AS post_id,
		ROW_NUMBER() OVER (PARTITION BY td.root_id ORDER BY p.created_time DESC, p.id DESC) AS rn
	FROM topic_descendants td
	JOIN posts p ON p.topic_id = td.topic_id
	WHERE p.created_time <= ?
)
SELECT root_id, post_id FROM ranked WHERE rn = 1`
	if err := dao.db(ctx).Raw(query, true, subforumIDs, asOf.UTC()).Scan(&rows).Error; err != nil {
		dao.Log.Errorf("[dao] SubforumLatestPostIDs err: %v", err)
		return res, err
	}
	for _, r := range rows {
		res[r.RootID] = r.PostID
	}
	return res, nil
}

// TopicPostCounts counts the posts of each topic created at or before asOf.
func (dao *Store) TopicPostCounts(ctx context.Context, topicIDs []int64, asOf time.Time) (map[int64]int64, error) {
	res := make(map[int64]int64, len(topicIDs))
	if len(topicIDs) == 0 {
		return res, nil
	}
	rows := make([]*rootCount, 0)
	err := dao.db(ctx).Model(&model.Post{}).
		Select("topic_id AS root_id, COUNT(*) AS total").
		Where("topic_id IN ? AND created_time <= ?", topicIDs, asOf.UTC()).
		Group("topic_id").Scan(&rows).Error
	if err != nil {
		dao.Log.Errorf("[dao] TopicPostCounts err: %v", err)
		return res, err
	}
	for _, r := range rows {
		res[r.RootID] = r.Total
	}
	return res, nil
}

// TopicLatestPostIDs finds the newest post of each topic at or before asOf.
func (dao *Store) TopicLatestPostIDs(ctx context.Context, topicIDs []int64, asOf time.Time) (map[int64]int64, error) {
	res := make(map[int64]int64, len(topicIDs))
	if len(topicIDs) == 0 {
		return res, nil
	}
	rows := make([]*rootPost, 0)
	query := `
WITH ranked AS (
	SELECT topic_id AS root_id, id AS post_id,
		ROW_NUMBER() OVER (PARTITION BY topic_id ORDER BY created_time DESC, id DESC) AS rn
	FROM posts
	WHERE topic_id IN ? AND created_time <= ?
)
SELECT root_id, post_id FROM ranked WHERE rn = 1`
	if err := dao.db(ctx).Raw(query, topicIDs, asOf.UTC()).Scan(&rows).Error; err != nil {
		dao.Log.Errorf("[dao] TopicLatestPostIDs err: %v", err)
		return res, err
	}
	for _, r := range rows {
		res[r.RootID] = r.PostID
	}
	return res, nil
}

// ChildCounts counts the direct children of each parent created at or before asOf.
func (dao *Store) ChildCounts(ctx context.Context, parentIDs []int64, asOf time.Time) (map[int64]int64, error) {
	res := make(map[int64]int64, len(parentIDs))
	if len(parentIDs) == 0 {
		return res, nil
	}
	rows := make([]*rootCount, 0)
	err := dao.db(ctx).Model(&model.Topic{}).
		Select("parent_id AS root_id, COUNT(*) AS total").
		Where("parent_id IN ? AND created_time <= ?", parentIDs, asOf.UTC()).
		Group("parent_id").Scan(&rows).Error
	if err != nil {
		dao.Log.Errorf("[dao] ChildCounts err: %v", err)
		return res, err
	}
	for _, r := range rows {
		res[r.RootID] = r.Total
	}
	return res, nil
}
