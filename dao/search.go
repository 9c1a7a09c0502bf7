package dao

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/theotor83/utf-rewritten-sub000/model"
)

// PostSearch filters posts. Zero values disable a criterion.
type PostSearch struct {
	// Keywords match case-insensitively, any one of them is enough.
	Keywords []string
	// WithTitles also matches keywords against the title of the post's topic.
	WithTitles bool
	Author     string
	SubforumID int64
	CategoryID int64
	Since      *time.Time
	AsOf       time.Time
	// Unanswered keeps posts of topics holding a single message at AsOf.
	Unanswered bool
	SortBy     string
	Desc       bool
}

// PostSearchSort maps the sort keys of a post search to columns.
var PostSearchSort = map[string]string{
	"time":    "posts.id",
	"subject": "posts.topic_id",
	"title":   "topics.title",
	"author":  "users.username",
	"forum":   "topics.parent_id",
}

// TopicSearchSort is the same choice when topics are listed instead of posts.
var TopicSearchSort = map[string]string{
	"time":    "topics.id",
	"subject": "topics.id",
	"title":   "topics.title",
	"author":  "users.username",
	"forum":   "topics.parent_id",
}

// likeEscaper makes user input literal inside LIKE patterns, with ! as the escape character
// since backslash means different things across dialects.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func likePattern(word string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(word)) + "%"
}

func (q *PostSearch) keywordClause(db *gorm.DB, word string) *gorm.DB {
	pattern := likePattern(word)
	if q.WithTitles {
		return db.Where("LOWER(posts.text) LIKE ? ESCAPE '!'", pattern).
			Or("LOWER(topics.title) LIKE ? ESCAPE '!'", pattern)
	}
	return db.Where("LOWER(posts.text) LIKE ? ESCAPE '!'", pattern)
}

// matching selects the posts of q, joined to their topic and author.
func (dao *Store) matching(ctx context.Context, q *PostSearch) *gorm.DB {
	db := dao.db(ctx).Model(&model.Post{}).
		Joins("JOIN topics ON topics.id = posts.topic_id").
		Joins("LEFT JOIN users ON users.id = posts.author_id").
		Where("posts.created_time <= ?", q.AsOf.UTC())

	if len(q.Keywords) > 0 {
		session := dao.db(ctx).Session(&gorm.Session{NewDB: true})
		var group *gorm.DB
		for _, word := range q.Keywords {
			cond := q.keywordClause(session, word)
			if group == nil {
				group = cond
			} else {
				group = group.Or(cond)
			}
		}
		db = db.Where(group)
	}
	if q.Author != "" {
		db = db.Where("LOWER(users.username) = ?", strings.ToLower(q.Author))
	}
	if q.SubforumID != 0 {
		db = db.Where("topics.parent_id = ?", q.SubforumID)
	}
	if q.CategoryID != 0 {
		db = db.Where("topics.category_id = ?", q.CategoryID)
	}
	if q.Since != nil {
		db = db.Where("posts.created_time >= ?", q.Since.UTC())
	}
	if q.Unanswered {
		db = db.Where("posts.topic_id IN (?)", dao.db(ctx).Model(&model.Post{}).
			Select("topic_id").Where("created_time <= ?", q.AsOf.UTC()).
			Group("topic_id").Having("COUNT(*) = 1"))
	}
	return db
}

func direction(desc bool) string {
	if desc {
		return " DESC"
	}
	return " ASC"
}

// SearchPosts pages through the posts matching q.
func (dao *Store) SearchPosts(ctx context.Context, q *PostSearch, offset, limit int) ([]*model.Post, int64, error) {
	var total int64
	posts := make([]*model.Post, 0)
	if err := dao.matching(ctx, q).Count(&total).Error; err != nil {
		dao.Log.Errorf("[dao] SearchPosts Count err: %v", err)
		return posts, total, err
	}
	if total == 0 || limit <= 0 {
		return posts, total, nil
	}

	orderBy, ok := PostSearchSort[q.SortBy]
	if !ok {
		orderBy = PostSearchSort["time"]
	}
	err := dao.matching(ctx, q).Select("posts.*").Preload("Author").
		Order(orderBy + direction(q.Desc) + ", posts.id" + direction(q.Desc)).
		Offset(offset).Limit(limit).Find(&posts).Error
	if err != nil {
		dao.Log.Errorf("[dao] SearchPosts Find err: %v", err)
	}
	return posts, total, err
}

// SearchTopics pages through the topics holding at least one post matching q.
func (dao *Store) SearchTopics(ctx context.Context, q *PostSearch, offset, limit int) ([]*model.Topic, int64, error) {
	var total int64
	topics := make([]*model.Topic, 0)
	base := func() *gorm.DB {
		return dao.db(ctx).Model(&model.Topic{}).
			Joins("LEFT JOIN users ON users.id = topics.author_id").
			Where("topics.id IN (?)", dao.matching(ctx, q).Select("posts.topic_id"))
	}
	if err := base().Count(&total).Error; err != nil {
		dao.Log.Errorf("[dao] SearchTopics Count err: %v", err)
		return topics, total, err
	}
	if total == 0 || limit <= 0 {
		return topics, total, nil
	}

	orderBy, ok := TopicSearchSort[q.SortBy]
	if !ok {
		orderBy = TopicSearchSort["time"]
	}
	err := base().Select("topics.*").Preload("Author").
		Order(orderBy + direction(q.Desc) + ", topics.id" + direction(q.Desc)).
		Offset(offset).Limit(limit).Find(&topics).Error
	if err != nil {
		dao.Log.Errorf("[dao] SearchTopics Find err: %v", err)
	}
	return topics, total, err
}
