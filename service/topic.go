package service

import (
	"context"
	"strings"
	"time"

	"github.com/theotor83/utf-rewritten-sub000/bbcode"
	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/config"
	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

type SubforumDetails struct {
	Subforum      *TopicSummary     `json:"subforum"`
	Tree          []*model.TreeNode `json:"tree"`
	Subforums     []*TopicSummary   `json:"subforums"`
	Topics        []*TopicSummary   `json:"topics"`
	Announcements []*TopicSummary   `json:"announcements"`
	TotalTopics   int64             `json:"totalTopics"`
	Page          int               `json:"page"`
	MaxPage       int               `json:"maxPage"`
	Pagination    []model.PageLink  `json:"pagination"`
	AsOf          time.Time         `json:"asOf"`
}

type TopicDetails struct {
	Topic      *TopicSummary     `json:"topic"`
	Tree       []*model.TreeNode `json:"tree"`
	Posts      []*model.Post     `json:"posts"`
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	MaxPage    int               `json:"maxPage"`
	Pagination []model.PageLink  `json:"pagination"`
	Previous   *model.Topic      `json:"previous"`
	Next       *model.Topic      `json:"next"`
	Poll       *PollResults      `json:"poll"`
	AsOf       time.Time         `json:"asOf"`
}

type CategoryDetails struct {
	Category      *model.Category `json:"category"`
	IndexTopics   []*TopicSummary `json:"indexTopics"`
	Topics        []*TopicSummary `json:"topics"`
	Announcements []*TopicSummary `json:"announcements"`
	AsOf          time.Time       `json:"asOf"`
}

type PostDetails struct {
	Post     *model.Post  `json:"post"`
	Topic    *model.Topic `json:"topic"`
	Preview  string       `json:"preview"`
	Position int64        `json:"position"`
	Page     int          `json:"page"`
}

// NewTopic is the input of CreateTopic. Text, when set, becomes the opening post.
type NewTopic struct {
	Title          string
	Desc           string
	Icon           string
	AuthorID       *int64
	ParentID       *int64
	CategoryID     *int64
	IsSubForum     bool
	IsIndexTopic   bool
	IsAnnouncement bool
	IsPinned       bool
	IsLocked       bool
	Text           string
}

func clampPage(page, maxPage int) int {
	if page < 1 {
		return 1
	}
	if page > maxPage {
		return maxPage
	}
	return page
}

func pageCount(total int64, perPage int) int {
	if total <= 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// visibleAt loads a topic and hides it when it did not exist yet at asOf.
func (service *Service) visibleAt(ctx context.Context, topicID int64, at time.Time, what string) (*model.Topic, error) {
	topic, err := dao.StoreInstance.GetTopic(ctx, topicID)
	if err != nil {
		if common.HasCode(err, common.Code_NotFound) {
			return nil, common.NotFound(what)
		}
		return nil, service.report("visibleAt dao.StoreInstance.GetTopic", err)
	}
	if topic.CreatedTime.After(at) {
		return nil, common.NotFound(what)
	}
	return topic, nil
}

func (service *Service) SubforumDetails(ctx context.Context, topicID int64, page int, asOf *time.Time, viewerID int64) (*SubforumDetails, error) {
	at := service.instant(asOf)
	topic, err := service.visibleAt(ctx, topicID, at, "subforum")
	if err != nil {
		return nil, err
	}
	if !topic.IsSubForum {
		return nil, common.NotFound("subforum")
	}

	perPage := config.Cfg.TopicsPerPage
	_, total, err := dao.StoreInstance.ChildTopics(ctx, topic.ID, at, 0, 0)
	if err != nil {
		return nil, service.report("SubforumDetails dao.StoreInstance.ChildTopics count", err)
	}
	maxPage := pageCount(total, perPage)
	page = clampPage(page, maxPage)

	children, _, err := dao.StoreInstance.ChildTopics(ctx, topic.ID, at, (page-1)*perPage, perPage)
	if err != nil {
		return nil, service.report("SubforumDetails dao.StoreInstance.ChildTopics", err)
	}
	subforums, err := dao.StoreInstance.ChildSubforums(ctx, topic.ID, at)
	if err != nil {
		return nil, service.report("SubforumDetails dao.StoreInstance.ChildSubforums", err)
	}
	announcements, err := dao.StoreInstance.Announcements(ctx, at)
	if err != nil {
		return nil, service.report("SubforumDetails dao.StoreInstance.Announcements", err)
	}

	all := make([]*model.Topic, 0, 1+len(children)+len(subforums)+len(announcements))
	all = append(all, topic)
	all = append(all, subforums...)
	all = append(all, children...)
	all = append(all, announcements...)
	summaries, err := service.summarize(ctx, all, asOf, viewerID)
	if err != nil {
		return nil, err
	}

	tree, err := service.treeOf(ctx, topic)
	if err != nil {
		return nil, err
	}

	i := 1
	details := &SubforumDetails{
		Subforum:      summaries[0],
		Tree:          tree,
		Subforums:     summaries[i : i+len(subforums)],
		Topics:        summaries[i+len(subforums) : i+len(subforums)+len(children)],
		Announcements: summaries[i+len(subforums)+len(children):],
		TotalTopics:   total,
		Page:          page,
		MaxPage:       maxPage,
		Pagination:    model.GeneratePagination(page, maxPage),
		AsOf:          at,
	}
	return details, nil
}

func (service *Service) TopicDetails(ctx context.Context, topicID int64, page, perPage int, asOf *time.Time, viewerID int64) (*TopicDetails, error) {
	at := service.instant(asOf)
	topic, err := service.visibleAt(ctx, topicID, at, "topic")
	if err != nil {
		return nil, err
	}
	if topic.IsSubForum {
		return nil, common.NotFound("topic")
	}

	if perPage <= 0 {
		perPage = config.Cfg.PostsPerPage
	}
	if perPage > config.Cfg.MaxPostsPerPage {
		perPage = config.Cfg.MaxPostsPerPage
	}

	_, total, err := dao.StoreInstance.TopicPosts(ctx, topic.ID, at, 0, 0)
	if err != nil {
		return nil, service.report("TopicDetails dao.StoreInstance.TopicPosts count", err)
	}
	maxPage := pageCount(total, perPage)
	page = clampPage(page, maxPage)
	posts, _, err := dao.StoreInstance.TopicPosts(ctx, topic.ID, at, (page-1)*perPage, perPage)
	if err != nil {
		return nil, service.report("TopicDetails dao.StoreInstance.TopicPosts", err)
	}

	summaries, err := service.summarize(ctx, []*model.Topic{topic}, asOf, viewerID)
	if err != nil {
		return nil, err
	}
	tree, err := service.treeOf(ctx, topic)
	if err != nil {
		return nil, err
	}
	prev, next, err := dao.StoreInstance.Siblings(ctx, topic, at)
	if err != nil {
		return nil, service.report("TopicDetails dao.StoreInstance.Siblings", err)
	}

	poll, err := service.PollResults(ctx, topic.ID, viewerID)
	if err != nil {
		if !common.HasCode(err, common.Code_NotFound) {
			return nil, err
		}
		poll = nil
	}

	return &TopicDetails{
		Topic:      summaries[0],
		Tree:       tree,
		Posts:      posts,
		Page:       page,
		PerPage:    perPage,
		MaxPage:    maxPage,
		Pagination: model.GeneratePagination(page, maxPage),
		Previous:   prev,
		Next:       next,
		Poll:       poll,
		AsOf:       at,
	}, nil
}

func (service *Service) CategoryDetails(ctx context.Context, categoryID int64, asOf *time.Time, viewerID int64) (*CategoryDetails, error) {
	at := service.instant(asOf)
	category, err := dao.StoreInstance.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, service.report("CategoryDetails dao.StoreInstance.GetCategory", err)
	}
	if category.IsHidden {
		return nil, common.NotFound("category")
	}

	indexTopics, err := dao.StoreInstance.IndexTopics(ctx, []int64{category.ID}, at)
	if err != nil {
		return nil, service.report("CategoryDetails dao.StoreInstance.IndexTopics", err)
	}
	roots, err := dao.StoreInstance.CategoryRootTopics(ctx, category.ID, at)
	if err != nil {
		return nil, service.report("CategoryDetails dao.StoreInstance.CategoryRootTopics", err)
	}
	announcements, err := dao.StoreInstance.Announcements(ctx, at)
	if err != nil {
		return nil, service.report("CategoryDetails dao.StoreInstance.Announcements", err)
	}

	all := make([]*model.Topic, 0, len(indexTopics)+len(roots)+len(announcements))
	all = append(all, indexTopics...)
	all = append(all, roots...)
	all = append(all, announcements...)
	summaries, err := service.summarize(ctx, all, asOf, viewerID)
	if err != nil {
		return nil, err
	}

	n, m := len(indexTopics), len(roots)
	return &CategoryDetails{
		Category:      category,
		IndexTopics:   summaries[:n],
		Topics:        summaries[n : n+m],
		Announcements: summaries[n+m:],
		AsOf:          at,
	}, nil
}

// ValidateTopic checks the structural rules of the topic tree before anything is written.
func (service *Service) ValidateTopic(ctx context.Context, topic *model.Topic) error {
	if strings.TrimSpace(topic.Title) == "" {
		return common.ValidationFailed("title is required")
	}
	if topic.IsIndexTopic && topic.ParentID != nil {
		return common.ValidationFailed("an index topic cannot have a parent")
	}

	if topic.ParentID != nil {
		parent, err := dao.StoreInstance.GetTopic(ctx, *topic.ParentID)
		if err != nil {
			if common.HasCode(err, common.Code_NotFound) {
				return common.ValidationFailed("parent topic does not exist")
			}
			return service.report("ValidateTopic dao.StoreInstance.GetTopic", err)
		}
		if !parent.IsSubForum {
			return common.ValidationFailed("the parent of a topic must be a subforum")
		}
		if parent.CategoryID == nil {
			return common.ValidationFailed("the parent subforum has no category")
		}
		if topic.CategoryID == nil {
			categoryID := *parent.CategoryID
			topic.CategoryID = &categoryID
		} else if *topic.CategoryID != *parent.CategoryID {
			return common.ValidationFailed("category must match the parent's category")
		}
	}

	if topic.CategoryID == nil {
		return common.ValidationFailed("a topic without parent needs a category")
	}
	if _, err := dao.StoreInstance.GetCategory(ctx, *topic.CategoryID); err != nil {
		if common.HasCode(err, common.Code_NotFound) {
			return common.ValidationFailed("category does not exist")
		}
		return service.report("ValidateTopic dao.StoreInstance.GetCategory", err)
	}
	return nil
}

func (service *Service) CreateTopic(ctx context.Context, req *NewTopic) (*model.Topic, error) {
	if frozen() {
		return nil, common.NotPermitted("the archive is read-only")
	}

	topic := model.NewTopic(strings.TrimSpace(req.Title), req.IsSubForum, service.now())
	topic.Desc = req.Desc
	topic.Icon = req.Icon
	topic.AuthorID = req.AuthorID
	topic.ParentID = req.ParentID
	topic.CategoryID = req.CategoryID
	topic.IsIndexTopic = req.IsIndexTopic
	topic.IsAnnouncement = req.IsAnnouncement
	topic.IsPinned = req.IsPinned
	topic.IsLocked = req.IsLocked
	topic.Slug = bbcode.Slugify(topic.Title, "topic")

	if err := service.ValidateTopic(ctx, topic); err != nil {
		return nil, err
	}
	var opening *model.Post
	if !topic.IsSubForum {
		if strings.TrimSpace(req.Text) == "" {
			return nil, common.ValidationFailed("a topic needs an opening message")
		}
		if err := service.checkLocked(ctx, topic, req.AuthorID); err != nil {
			return nil, err
		}
		opening = &model.Post{
			AuthorID:    req.AuthorID,
			Text:        req.Text,
			CreatedTime: topic.CreatedTime,
		}
	}

	var outcome *dao.PostOutcome
	err := service.retrySerializable(ctx, "CreateTopic", func() (err error) {
		topic.ID = 0
		outcome, err = dao.StoreInstance.CreateTopic(ctx, topic, opening, config.Cfg.ForumName)
		return err
	})
	if err != nil {
		return nil, service.report("CreateTopic dao.StoreInstance.CreateTopic", err)
	}

	if err := service.Pub.PubEvent(ctx, model.EventTopicCreated, topic.ID); err != nil {
		service.Log.Errorf("[service] CreateTopic PubEvent err: %v", err)
	}
	if opening != nil {
		service.invalidateCounts(ctx, opening.AuthorID)
		if err := service.Pub.PubEvent(ctx, model.EventPostCreated, opening.ID); err != nil {
			service.Log.Errorf("[service] CreateTopic PubEvent err: %v", err)
		}
		service.logPromotion(opening, outcome)
	}

	return dao.StoreInstance.GetTopic(ctx, topic.ID)
}

func (service *Service) IncrementViews(ctx context.Context, topicID int64) error {
	if frozen() {
		return nil
	}
	if err := dao.StoreInstance.IncrementViews(ctx, topicID); err != nil {
		return service.report("IncrementViews dao.StoreInstance.IncrementViews", err)
	}
	return nil
}

// MarkRead records that userID saw topicID now. The archive keeps no read state.
func (service *Service) MarkRead(ctx context.Context, userID, topicID int64) error {
	if frozen() {
		return nil
	}
	if _, err := dao.StoreInstance.GetTopic(ctx, topicID); err != nil {
		return service.report("MarkRead dao.StoreInstance.GetTopic", err)
	}
	if _, err := dao.StoreInstance.GetUser(ctx, userID); err != nil {
		return service.report("MarkRead dao.StoreInstance.GetUser", err)
	}
	if err := dao.StoreInstance.MarkRead(ctx, userID, topicID, service.now()); err != nil {
		return service.report("MarkRead dao.StoreInstance.MarkRead", err)
	}
	return nil
}

// MarkReadIn marks as read, for userID, every topic below a subforum at any depth or every
// topic of a category. The subforum wins when both are given.
func (service *Service) MarkReadIn(ctx context.Context, userID, subforumID, categoryID int64) (int, error) {
	if subforumID == 0 && categoryID == 0 {
		return 0, common.ValidationFailed("a subforum or a category is required")
	}
	if frozen() {
		return 0, nil
	}
	if _, err := dao.StoreInstance.GetUser(ctx, userID); err != nil {
		return 0, service.report("MarkReadIn dao.StoreInstance.GetUser", err)
	}

	var topicIDs []int64
	if subforumID != 0 {
		subforum, err := dao.StoreInstance.GetTopic(ctx, subforumID)
		if err != nil {
			return 0, service.report("MarkReadIn dao.StoreInstance.GetTopic", err)
		}
		if !subforum.IsSubForum {
			return 0, common.NotFound("subforum")
		}
		if topicIDs, err = dao.StoreInstance.DescendantIDs(ctx, subforum.ID); err != nil {
			return 0, service.report("MarkReadIn dao.StoreInstance.DescendantIDs", err)
		}
		topicIDs = append(topicIDs, subforum.ID)
	} else {
		if _, err := dao.StoreInstance.GetCategory(ctx, categoryID); err != nil {
			return 0, service.report("MarkReadIn dao.StoreInstance.GetCategory", err)
		}
		var err error
		if topicIDs, err = dao.StoreInstance.CategoryTopicIDs(ctx, categoryID); err != nil {
			return 0, service.report("MarkReadIn dao.StoreInstance.CategoryTopicIDs", err)
		}
	}
	if len(topicIDs) == 0 {
		return 0, common.NotFound("topics")
	}
	if err := dao.StoreInstance.MarkReadMany(ctx, userID, topicIDs, service.now()); err != nil {
		return 0, service.report("MarkReadIn dao.StoreInstance.MarkReadMany", err)
	}
	return len(topicIDs), nil
}

// IsUnread is true when the user never opened the topic or a message arrived since.
func (service *Service) IsUnread(ctx context.Context, userID int64, topic *model.Topic) (bool, error) {
	if frozen() {
		return false, nil
	}
	lastReads, err := dao.StoreInstance.ReadStatuses(ctx, userID, []int64{topic.ID})
	if err != nil {
		return false, service.report("IsUnread dao.StoreInstance.ReadStatuses", err)
	}
	lastRead, ok := lastReads[topic.ID]
	return !ok || topic.LastMessageTime.After(lastRead), nil
}

func (service *Service) PostDetails(ctx context.Context, postID int64) (*PostDetails, error) {
	post, err := dao.StoreInstance.GetPost(ctx, postID)
	if err != nil {
		return nil, service.report("PostDetails dao.StoreInstance.GetPost", err)
	}
	topic, err := dao.StoreInstance.GetTopic(ctx, post.TopicID)
	if err != nil {
		return nil, service.report("PostDetails dao.StoreInstance.GetTopic", err)
	}
	position, err := dao.StoreInstance.PostPosition(ctx, post)
	if err != nil {
		return nil, service.report("PostDetails dao.StoreInstance.PostPosition", err)
	}
	return &PostDetails{
		Post:     post,
		Topic:    topic,
		Preview:  bbcode.StripBBCode(post.Text),
		Position: position,
		Page:     model.PageOf(position, config.Cfg.PostsPerPage),
	}, nil
}
