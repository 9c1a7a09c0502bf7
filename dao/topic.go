package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

func (dao *Store) GetTopic(ctx context.Context, id int64) (*model.Topic, error) {
	if id == 0 {
		return nil, PrimaryKeyUnspecifiedErr
	}
	topic := &model.Topic{}
	if err := dao.db(ctx).Preload("Author").Where("id = ?", id).First(topic).Error; err != nil {
		return nil, notFoundOr(err, "topic")
	}
	return topic, nil
}

func (dao *Store) GetTopicsByIds(ctx context.Context, ids []int64) (map[int64]*model.Topic, error) {
	topicMap := make(map[int64]*model.Topic, len(ids))
	if len(ids) == 0 {
		return topicMap, nil
	}
	topics := make([]*model.Topic, 0, len(ids))
	if err := dao.db(ctx).Preload("Author").Where("id IN ?", ids).Find(&topics).Error; err != nil {
		dao.Log.Errorf("[dao] db.Find(Topic.id) err: %v", err)
		return topicMap, err
	}
	for _, t := range topics {
		topicMap[t.ID] = t
	}
	return topicMap, nil
}

// ancestorsOf walks parent links upwards, nearest parent first.
func ancestorsOf(db *gorm.DB, topic *model.Topic) ([]*model.Topic, error) {
	ancestors := make([]*model.Topic, 0)
	visited := map[int64]bool{topic.ID: true}
	parentID := topic.ParentID
	for depth := 0; parentID != nil && depth < model.MaxTreeDepth; depth++ {
		if visited[*parentID] {
			break
		}
		visited[*parentID] = true

		parent := &model.Topic{}
		if err := db.Where("id = ?", *parentID).First(parent).Error; err != nil {
			if IsNotFound(err) {
				break
			}
			return nil, err
		}
		ancestors = append(ancestors, parent)
		parentID = parent.ParentID
	}
	return ancestors, nil
}

// Ancestors returns the chain of parents of topic, nearest first, stopping on cycles.
func (dao *Store) Ancestors(ctx context.Context, topic *model.Topic) ([]*model.Topic, error) {
	ancestors, err := ancestorsOf(dao.db(ctx), topic)
	if err != nil {
		dao.Log.Errorf("[dao] ancestorsOf(%d) err: %v", topic.ID, err)
	}
	return ancestors, err
}

// DescendantIDs lists every topic below rootID, one query per tree level.
func (dao *Store) DescendantIDs(ctx context.Context, rootID int64) ([]int64, error) {
	descendants := make([]int64, 0)
	visited := map[int64]bool{rootID: true}
	frontier := []int64{rootID}
	for depth := 0; len(frontier) > 0 && depth < model.MaxTreeDepth; depth++ {
		children := make([]int64, 0)
		if err := dao.db(ctx).Model(&model.Topic{}).Where("parent_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
			dao.Log.Errorf("[dao] DescendantIDs Pluck(id) err: %v", err)
			return nil, err
		}
		frontier = frontier[:0]
		for _, id := range children {
			if visited[id] {
				continue
			}
			visited[id] = true
			descendants = append(descendants, id)
			frontier = append(frontier, id)
		}
	}
	return descendants, nil
}

// CategoryTopicIDs lists every topic of a category, subforums included.
func (dao *Store) CategoryTopicIDs(ctx context.Context, categoryID int64) ([]int64, error) {
	ids := make([]int64, 0)
	if err := dao.db(ctx).Model(&model.Topic{}).Where("category_id = ?", categoryID).Order("id").Pluck("id", &ids).Error; err != nil {
		dao.Log.Errorf("[dao] CategoryTopicIDs(%d) err: %v", categoryID, err)
		return nil, err
	}
	return ids, nil
}

// LatestPostIn returns the newest post of the given topics, ties broken by highest id.
// A nil before means no upper bound. No post yields nil, nil.
func (dao *Store) LatestPostIn(ctx context.Context, topicIDs []int64, before *time.Time) (*model.Post, error) {
	if len(topicIDs) == 0 {
		return nil, nil
	}
	posts := make([]*model.Post, 0, 1)
	db := dao.db(ctx).Preload("Author").Where("topic_id IN ?", topicIDs)
	if before != nil {
		db = db.Where("created_time <= ?", before.UTC())
	}
	if err := db.Order("created_time DESC, id DESC").Limit(1).Find(&posts).Error; err != nil {
		dao.Log.Errorf("[dao] LatestPostIn Find(Post) err: %v", err)
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return posts[0], nil
}

// SetLatestMessage persists the latest message pointer of a topic.
func (dao *Store) SetLatestMessage(ctx context.Context, topicID int64, post *model.Post) error {
	updates := map[string]interface{}{"latest_message_id": nil}
	if post != nil {
		updates["latest_message_id"] = post.ID
		updates["last_message_time"] = post.CreatedTime.UTC()
	}
	if err := dao.db(ctx).Model(&model.Topic{}).Where("id = ?", topicID).Updates(updates).Error; err != nil {
		dao.Log.Errorf("[dao] SetLatestMessage(%d) err: %v", topicID, err)
		return err
	}
	return nil
}

// CreateTopic inserts topic and keeps the parent, category and forum sets in sync. When opening
// is set it becomes the first post of the topic in the same transaction, so a rejected post
// leaves nothing behind. The outcome is nil without an opening post.
func (dao *Store) CreateTopic(ctx context.Context, topic *model.Topic, opening *model.Post, forumName string) (*PostOutcome, error) {
	var outcome *PostOutcome
	err := dao.db(ctx).Transaction(func(tx *gorm.DB) error {
		// same lock order as createPost: forum row, then topics
		forum := &model.Forum{}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", forumName).First(forum).Error; err != nil {
			return notFoundOr(err, "forum")
		}

		if err := tx.Create(topic).Error; err != nil {
			dao.Log.Errorf("[dao] Create(topic) err: %v", err)
			return err
		}

		if topic.ParentID != nil {
			if err := tx.Model(&model.Topic{}).Where("id = ?", *topic.ParentID).
				UpdateColumn("total_children", gorm.Expr("total_children + ?", 1)).Error; err != nil {
				dao.Log.Errorf("[dao] increment parent total_children err: %v", err)
				return err
			}
		}

		if topic.IsIndexTopic && topic.CategoryID != nil {
			if err := tx.Model(&model.Category{ID: *topic.CategoryID}).Association("IndexTopics").Append(topic); err != nil {
				dao.Log.Errorf("[dao] category index_topics sync err: %v", err)
				return err
			}
		}

		if topic.IsAnnouncement {
			if err := tx.Model(forum).Association("AnnouncementTopics").Append(topic); err != nil {
				dao.Log.Errorf("[dao] forum announcement_topics sync err: %v", err)
				return err
			}
		}

		if opening != nil {
			opening.TopicID = topic.ID
			var err error
			if outcome, err = dao.createPost(tx, opening, forumName); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		topic.ID = 0
		if opening != nil {
			opening.ID = 0
		}
		return nil, err
	}
	return outcome, nil
}

func (dao *Store) IncrementViews(ctx context.Context, topicID int64) error {
	db := dao.db(ctx).Model(&model.Topic{}).Where("id = ?", topicID).
		UpdateColumn("total_views", gorm.Expr("total_views + ?", 1))
	if db.Error != nil {
		dao.Log.Errorf("[dao] IncrementViews(%d) err: %v", topicID, db.Error)
		return db.Error
	}
	if db.RowsAffected == 0 {
		return common.NotFound("topic")
	}
	return nil
}

// ChildTopics lists the regular topics directly under parentID created at or before asOf.
func (dao *Store) ChildTopics(ctx context.Context, parentID int64, asOf time.Time, offset, limit int) ([]*model.Topic, int64, error) {
	var total int64
	topics := make([]*model.Topic, 0)

	base := func() *gorm.DB {
		return dao.db(ctx).Model(&model.Topic{}).
			Where("parent_id = ? AND is_sub_forum = ? AND created_time <= ?", parentID, false, asOf.UTC())
	}
	if err := base().Count(&total).Error; err != nil {
		dao.Log.Errorf("[dao] ChildTopics Count err: %v", err)
		return topics, total, err
	}
	if limit <= 0 {
		return topics, total, nil
	}
	if err := base().Preload("Author").Order("is_pinned DESC, last_message_time DESC, id DESC").
		Offset(offset).Limit(limit).Find(&topics).Error; err != nil {
		dao.Log.Errorf("[dao] ChildTopics Find err: %v", err)
		return topics, total, err
	}
	return topics, total, nil
}

// ChildSubforums lists subforums directly under parentID, ordered by id.
func (dao *Store) ChildSubforums(ctx context.Context, parentID int64, asOf time.Time) ([]*model.Topic, error) {
	topics := make([]*model.Topic, 0)
	err := dao.db(ctx).Where("parent_id = ? AND is_sub_forum = ? AND created_time <= ?", parentID, true, asOf.UTC()).
		Order("id").Find(&topics).Error
	if err != nil {
		dao.Log.Errorf("[dao] ChildSubforums Find err: %v", err)
	}
	return topics, err
}

// Siblings returns the topics of the same parent just before and after topic in last-message
// order, among those created at or before asOf.
func (dao *Store) Siblings(ctx context.Context, topic *model.Topic, asOf time.Time) (prev, next *model.Topic, err error) {
	if topic.ParentID == nil {
		return nil, nil, nil
	}
	base := func() *gorm.DB {
		return dao.db(ctx).Where("parent_id = ? AND is_sub_forum = ? AND id <> ? AND created_time <= ?",
			*topic.ParentID, false, topic.ID, asOf.UTC())
	}

	prevs := make([]*model.Topic, 0, 1)
	if err = base().Where("last_message_time < ?", topic.LastMessageTime).
		Order("last_message_time DESC, id DESC").Limit(1).Find(&prevs).Error; err != nil {
		dao.Log.Errorf("[dao] Siblings prev err: %v", err)
		return
	}
	nexts := make([]*model.Topic, 0, 1)
	if err = base().Where("last_message_time > ?", topic.LastMessageTime).
		Order("last_message_time ASC, id ASC").Limit(1).Find(&nexts).Error; err != nil {
		dao.Log.Errorf("[dao] Siblings next err: %v", err)
		return
	}
	if len(prevs) > 0 {
		prev = prevs[0]
	}
	if len(nexts) > 0 {
		next = nexts[0]
	}
	return
}

// Announcements lists announcement topics created at or before asOf, newest first.
func (dao *Store) Announcements(ctx context.Context, asOf time.Time) ([]*model.Topic, error) {
	topics := make([]*model.Topic, 0)
	err := dao.db(ctx).Preload("Author").
		Where("is_announcement = ? AND created_time <= ?", true, asOf.UTC()).
		Order("created_time DESC, id DESC").Find(&topics).Error
	if err != nil {
		dao.Log.Errorf("[dao] Announcements Find err: %v", err)
	}
	return topics, err
}

func (dao *Store) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	category := &model.Category{}
	if err := dao.db(ctx).Where("id = ?", id).First(category).Error; err != nil {
		return nil, notFoundOr(err, "category")
	}
	return category, nil
}

func (dao *Store) VisibleCategories(ctx context.Context) ([]*model.Category, error) {
	categories := make([]*model.Category, 0)
	err := dao.db(ctx).Where("is_hidden = ?", false).Order("id").Find(&categories).Error
	if err != nil {
		dao.Log.Errorf("[dao] VisibleCategories Find err: %v", err)
	}
	return categories, err
}

// IndexTopics lists the index topics of the given categories created at or before asOf,
// ordered by category then newest first.
func (dao *Store) IndexTopics(ctx context.Context, categoryIDs []int64, asOf time.Time) ([]*model.Topic, error) {
	topics := make([]*model.Topic, 0)
	if len(categoryIDs) == 0 {
		return topics, nil
	}
	err := dao.db(ctx).Preload("Author").
		Where("is_index_topic = ? AND category_id IN ? AND created_time <= ?", true, categoryIDs, asOf.UTC()).
		Order("category_id, id DESC").Find(&topics).Error
	if err != nil {
		dao.Log.Errorf("[dao] IndexTopics Find err: %v", err)
	}
	return topics, err
}

// CategoryRootTopics lists parentless topics of a category that are not index topics.
func (dao *Store) CategoryRootTopics(ctx context.Context, categoryID int64, asOf time.Time) ([]*model.Topic, error) {
	topics := make([]*model.Topic, 0)
	err := dao.db(ctx).Preload("Author").
		Where("category_id = ? AND parent_id IS NULL AND is_index_topic = ? AND created_time <= ?", categoryID, false, asOf.UTC()).
		Order("is_pinned DESC, last_message_time DESC, id DESC").Find(&topics).Error
	if err != nil {
		dao.Log.Errorf("[dao] CategoryRootTopics Find err: %v", err)
	}
	return topics, err
}

func (dao *Store) CountTopics(ctx context.Context, asOf time.Time) (int64, error) {
	var total int64
	err := dao.db(ctx).Model(&model.Topic{}).
		Where("is_sub_forum = ? AND created_time <= ?", false, asOf.UTC()).Count(&total).Error
	if err != nil {
		dao.Log.Errorf("[dao] CountTopics err: %v", err)
	}
	return total, err
}

// LatestPollTopic is the newest topic carrying a poll, created at or before asOf.
func (dao *Store) LatestPollTopic(ctx context.Context, asOf time.Time) (*model.Topic, error) {
	topics := make([]*model.Topic, 0, 1)
	err := dao.db(ctx).Joins("JOIN polls ON polls.topic_id = topics.id").
		Where("topics.created_time <= ?", asOf.UTC()).
		Order("topics.created_time DESC, topics.id DESC").Limit(1).Find(&topics).Error
	if err != nil {
		dao.Log.Errorf("[dao] LatestPollTopic err: %v", err)
		return nil, err
	}
	if len(topics) == 0 {
		return nil, nil
	}
	return topics[0], nil
}
