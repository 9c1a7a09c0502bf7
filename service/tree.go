package service

import (
	"context"
	"time"

	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

// GetTree maps every ancestor of a topic to its child on the path towards the topic, root first.
// A subforum also gets its own childless entry.
func (service *Service) GetTree(ctx context.Context, topicID int64) ([]*model.TreeNode, error) {
	topic, err := dao.StoreInstance.GetTopic(ctx, topicID)
	if err != nil {
		return nil, service.report("GetTree dao.StoreInstance.GetTopic", err)
	}
	return service.treeOf(ctx, topic)
}

func (service *Service) treeOf(ctx context.Context, topic *model.Topic) ([]*model.TreeNode, error) {
	ancestors, err := dao.StoreInstance.Ancestors(ctx, topic)
	if err != nil {
		return nil, service.report("treeOf dao.StoreInstance.Ancestors", err)
	}

	// ancestors come nearest first
	tree := make([]*model.TreeNode, 0, len(ancestors)+1)
	child := topic
	for _, ancestor := range ancestors {
		tree = append(tree, &model.TreeNode{Node: ancestor, Children: []*model.Topic{child}})
		child = ancestor
	}
	for i, j := 0, len(tree)-1; i < j; i, j = i+1, j-1 {
		tree[i], tree[j] = tree[j], tree[i]
	}
	if topic.IsSubForum {
		tree = append(tree, &model.TreeNode{Node: topic, Children: []*model.Topic{}})
	}
	return tree, nil
}

// Depth is the number of ancestors above a topic.
func (service *Service) Depth(ctx context.Context, topicID int64) (int, error) {
	topic, err := dao.StoreInstance.GetTopic(ctx, topicID)
	if err != nil {
		return 0, service.report("Depth dao.StoreInstance.GetTopic", err)
	}
	ancestors, err := dao.StoreInstance.Ancestors(ctx, topic)
	if err != nil {
		return 0, service.report("Depth dao.StoreInstance.Ancestors", err)
	}
	return len(ancestors), nil
}

// SubForums lists the subforums directly under topicID.
func (service *Service) SubForums(ctx context.Context, topicID int64) ([]*model.Topic, error) {
	topics, err := dao.StoreInstance.ChildSubforums(ctx, topicID, service.now())
	if err != nil {
		return nil, service.report("SubForums dao.StoreInstance.ChildSubforums", err)
	}
	return topics, nil
}

func (service *Service) FirstPost(ctx context.Context, topicID int64) (*model.Post, error) {
	post, err := dao.StoreInstance.FirstPost(ctx, topicID)
	if err != nil {
		return nil, service.report("FirstPost dao.StoreInstance.FirstPost", err)
	}
	return post, nil
}

// GetLatestMessage finds the newest post in a topic, or anywhere below a subforum,
// and writes the pointer back to the topic row.
func (service *Service) GetLatestMessage(ctx context.Context, topicID int64) (*model.Post, error) {
	topic, post, err := service.latestMessage(ctx, topicID, nil)
	if err != nil {
		return nil, err
	}

	// write-through: the stored pointer follows what was just computed
	if !frozen() && post != nil && (topic.LatestMessageID == nil || *topic.LatestMessageID != post.ID) {
		if err := dao.StoreInstance.SetLatestMessage(ctx, topic.ID, post); err != nil {
			return nil, service.report("GetLatestMessage dao.StoreInstance.SetLatestMessage", err)
		}
	}
	return post, nil
}

// GetLatestMessageBefore is GetLatestMessage restricted to posts created at or before instant.
// It never writes.
func (service *Service) GetLatestMessageBefore(ctx context.Context, topicID int64, instant time.Time) (*model.Post, error) {
	_, post, err := service.latestMessage(ctx, topicID, &instant)
	return post, err
}

func (service *Service) latestMessage(ctx context.Context, topicID int64, before *time.Time) (*model.Topic, *model.Post, error) {
	topic, err := dao.StoreInstance.GetTopic(ctx, topicID)
	if err != nil {
		return nil, nil, service.report("latestMessage dao.StoreInstance.GetTopic", err)
	}

	ids := []int64{topic.ID}
	if topic.IsSubForum {
		ids, err = dao.StoreInstance.DescendantIDs(ctx, topic.ID)
		if err != nil {
			return nil, nil, service.report("latestMessage dao.StoreInstance.DescendantIDs", err)
		}
	}

	post, err := dao.StoreInstance.LatestPostIn(ctx, ids, before)
	if err != nil {
		return nil, nil, service.report("latestMessage dao.StoreInstance.LatestPostIn", err)
	}
	return topic, post, nil
}
