package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

// PostOutcome reports what a post creation changed besides the post row.
type PostOutcome struct {
	MessagesCount int64
	AddedGroups   []*model.Group
	TopGroup      *model.Group
	// TouchedTopics is the topic followed by its ancestors, nearest first.
	TouchedTopics []int64
}

// CreatePost inserts post and updates every denormalized counter it affects, in one transaction.
// The forum row is locked first so concurrent posts queue up instead of deadlocking.
func (dao *Store) CreatePost(ctx context.Context, post *model.Post, forumName string) (*PostOutcome, error) {
	var outcome *PostOutcome
	err := dao.db(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		outcome, err = dao.createPost(tx, post, forumName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// createPost runs the post counter sequence inside tx: forum total, author count, replies of
// the topic and its ancestors, promotion, then the latest message pointers.
func (dao *Store) createPost(tx *gorm.DB, post *model.Post, forumName string) (*PostOutcome, error) {
	outcome := &PostOutcome{}

	forum := &model.Forum{}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", forumName).First(forum).Error; err != nil {
		return nil, notFoundOr(err, "forum")
	}
	if err := tx.Model(&model.Forum{}).Where("id = ?", forum.ID).
		UpdateColumn("total_messages", gorm.Expr("total_messages + ?", 1)).Error; err != nil {
		dao.Log.Errorf("[dao] increment forum total_messages err: %v", err)
		return nil, err
	}

	topic := &model.Topic{}
	if err := tx.Where("id = ?", post.TopicID).First(topic).Error; err != nil {
		return nil, notFoundOr(err, "topic")
	}
	if topic.IsSubForum {
		return nil, common.ValidationFailed("posts cannot be added to a subforum")
	}

	var profile *model.Profile
	if post.AuthorID != nil {
		found := &model.Profile{}
		err := tx.Where("user_id = ?", *post.AuthorID).First(found).Error
		switch {
		case err == nil:
			if err := tx.Model(&model.Profile{}).Where("id = ?", found.ID).
				UpdateColumn("messages_count", gorm.Expr("messages_count + ?", 1)).Error; err != nil {
				dao.Log.Errorf("[dao] increment profile messages_count err: %v", err)
				return nil, err
			}
			if err := tx.Model(&model.Profile{}).Select("messages_count").Where("id = ?", found.ID).
				Scan(&found.MessagesCount).Error; err != nil {
				return nil, err
			}
			outcome.MessagesCount = found.MessagesCount
			profile = found
		case !IsNotFound(err):
			return nil, err
		}
	}

	ancestors, err := ancestorsOf(tx, topic)
	if err != nil {
		return nil, err
	}
	touched := []int64{topic.ID}
	for _, a := range ancestors {
		touched = append(touched, a.ID)
	}
	for _, id := range touched {
		if err := tx.Model(&model.Topic{}).Where("id = ?", id).
			UpdateColumn("total_replies", gorm.Expr("total_replies + ?", 1)).Error; err != nil {
			dao.Log.Errorf("[dao] increment total_replies of %d err: %v", id, err)
			return nil, err
		}
	}

	if profile != nil {
		added, top, err := promote(tx, profile)
		if err != nil {
			dao.Log.Errorf("[dao] promote profile %d err: %v", profile.ID, err)
			return nil, err
		}
		outcome.AddedGroups = added
		outcome.TopGroup = top
	}

	if err := tx.Create(post).Error; err != nil {
		dao.Log.Errorf("[dao] Create(post) err: %v", err)
		return nil, err
	}

	if err := tx.Model(&model.Topic{}).Where("id IN ?", touched).Updates(map[string]interface{}{
		"latest_message_id": post.ID,
		"last_message_time": post.CreatedTime,
	}).Error; err != nil {
		dao.Log.Errorf("[dao] set latest message err: %v", err)
		return nil, err
	}
	outcome.TouchedTopics = touched

	return outcome, nil
}

// promote adds every messages group the profile now qualifies for and refreshes its top group.
func promote(tx *gorm.DB, profile *model.Profile) ([]*model.Group, *model.Group, error) {
	held, err := heldGroups(tx, profile.ID)
	if err != nil {
		return nil, nil, err
	}
	heldMap := make(map[int64]bool, len(held))
	for _, g := range held {
		heldMap[g.ID] = true
	}

	messagesGroups := make([]*model.Group, 0)
	if err := tx.Where("is_messages_group = ?", true).Find(&messagesGroups).Error; err != nil {
		return nil, nil, err
	}
	qualifying := model.QualifyingGroups(messagesGroups, heldMap, profile.MessagesCount)
	if len(qualifying) == 0 {
		return nil, nil, nil
	}

	links := make([]*model.ProfileGroup, 0, len(qualifying))
	for _, g := range qualifying {
		links = append(links, &model.ProfileGroup{ProfileID: profile.ID, GroupID: g.ID})
	}
	if err := tx.Create(&links).Error; err != nil {
		return nil, nil, err
	}

	// the color of the last group added wins, lowest priority among the new ones
	nameColor := qualifying[len(qualifying)-1].Color
	if nameColor == "" {
		nameColor = model.DefaultGroupColor
	}
	top := model.PickTopGroup(append(held, qualifying...), nil)
	if err := tx.Model(&model.Profile{}).Where("id = ?", profile.ID).Updates(map[string]interface{}{
		"name_color":   nameColor,
		"top_group_id": top.ID,
	}).Error; err != nil {
		return nil, nil, err
	}
	return qualifying, top, nil
}

func heldGroups(db *gorm.DB, profileID int64) ([]*model.Group, error) {
	held := make([]*model.Group, 0)
	err := db.Joins("JOIN profile_groups pg ON pg.group_id = forum_groups.id").
		Where("pg.profile_id = ?", profileID).
		Order("forum_groups.priority DESC").Find(&held).Error
	return held, err
}

// EditPost replaces the text of a post and bumps its edit counters.
func (dao *Store) EditPost(ctx context.Context, postID int64, text string, at time.Time) (*model.Post, error) {
	db := dao.db(ctx).Model(&model.Post{}).Where("id = ?", postID).Updates(map[string]interface{}{
		"text":         text,
		"updated_time": at.UTC(),
		"update_count": gorm.Expr("update_count + ?", 1),
	})
	if db.Error != nil {
		dao.Log.Errorf("[dao] EditPost(%d) err: %v", postID, db.Error)
		return nil, db.Error
	}
	if db.RowsAffected == 0 {
		return nil, common.NotFound("post")
	}
	return dao.GetPost(ctx, postID)
}

func (dao *Store) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	if id == 0 {
		return nil, PrimaryKeyUnspecifiedErr
	}
	post := &model.Post{}
	if err := dao.db(ctx).Preload("Author").Where("id = ?", id).First(post).Error; err != nil {
		return nil, notFoundOr(err, "post")
	}
	return post, nil
}

func (dao *Store) GetPostsByIds(ctx context.Context, ids []int64) (map[int64]*model.Post, error) {
	postMap := make(map[int64]*model.Post, len(ids))
	if len(ids) == 0 {
		return postMap, nil
	}
	posts := make([]*model.Post, 0, len(ids))
	if err := dao.db(ctx).Preload("Author").Where("id IN ?", ids).Find(&posts).Error; err != nil {
		dao.Log.Errorf("[dao] db.Find(Post.id) err: %v", err)
		return postMap, err
	}
	for _, p := range posts {
		postMap[p.ID] = p
	}
	return postMap, nil
}

// TopicPosts pages through the posts of a topic created at or before asOf, oldest first.
func (dao *Store) TopicPosts(ctx context.Context, topicID int64, asOf time.Time, offset, limit int) ([]*model.Post, int64, error) {
	var total int64
	posts := make([]*model.Post, 0)
	base := func() *gorm.DB {
		return dao.db(ctx).Model(&model.Post{}).Where("topic_id = ? AND created_time <= ?", topicID, asOf.UTC())
	}
	if err := base().Count(&total).Error; err != nil {
		dao.Log.Errorf("[dao] TopicPosts Count err: %v", err)
		return posts, total, err
	}
	if limit <= 0 {
		return posts, total, nil
	}
	if err := base().Preload("Author").Order("created_time, id").Offset(offset).Limit(limit).Find(&posts).Error; err != nil {
		dao.Log.Errorf("[dao] TopicPosts Find err: %v", err)
		return posts, total, err
	}
	return posts, total, nil
}

// FirstPost is the opening message of a topic, nil when it has none.
func (dao *Store) FirstPost(ctx context.Context, topicID int64) (*model.Post, error) {
	posts := make([]*model.Post, 0, 1)
	if err := dao.db(ctx).Preload("Author").Where("topic_id = ?", topicID).
		Order("created_time, id").Limit(1).Find(&posts).Error; err != nil {
		dao.Log.Errorf("[dao] FirstPost err: %v", err)
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return posts[0], nil
}

// PostPosition is the 1-based rank of post inside its topic.
func (dao *Store) PostPosition(ctx context.Context, post *model.Post) (int64, error) {
	var position int64
	err := dao.db(ctx).Model(&model.Post{}).
		Where("topic_id = ? AND (created_time < ? OR (created_time = ? AND id <= ?))",
			post.TopicID, post.CreatedTime.UTC(), post.CreatedTime.UTC(), post.ID).
		Count(&position).Error
	if err != nil {
		dao.Log.Errorf("[dao] PostPosition err: %v", err)
	}
	return position, err
}

// RecentPosts lists the newest posts at or before asOf.
func (dao *Store) RecentPosts(ctx context.Context, asOf time.Time, limit int) ([]*model.Post, error) {
	posts := make([]*model.Post, 0, limit)
	err := dao.db(ctx).Preload("Author").Where("created_time <= ?", asOf.UTC()).
		Order("created_time DESC, id DESC").Limit(limit).Find(&posts).Error
	if err != nil {
		dao.Log.Errorf("[dao] RecentPosts err: %v", err)
	}
	return posts, err
}

func (dao *Store) CountPosts(ctx context.Context, asOf time.Time) (int64, error) {
	var total int64
	err := dao.db(ctx).Model(&model.Post{}).Where("created_time <= ?", asOf.UTC()).Count(&total).Error
	if err != nil {
		dao.Log.Errorf("[dao] CountPosts err: %v", err)
	}
	return total, err
}

func (dao *Store) CountUserPosts(ctx context.Context, userID int64, asOf time.Time) (int64, error) {
	var total int64
	err := dao.db(ctx).Model(&model.Post{}).
		Where("author_id = ? AND created_time <= ?", userID, asOf.UTC()).Count(&total).Error
	if err != nil {
		dao.Log.Errorf("[dao] CountUserPosts err: %v", err)
	}
	return total, err
}
