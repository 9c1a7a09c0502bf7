package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theotor83/utf-rewritten-sub000/service"
)

type CreateTopicReq struct {
	Title          string `json:"title" validate:"required,max=255"`
	Description    string `json:"description" validate:"max=1000"`
	Icon           string `json:"icon" validate:"max=255"`
	ParentID       *int64 `json:"parentId" validate:"omitempty,gt=0"`
	CategoryID     *int64 `json:"categoryId" validate:"omitempty,gt=0"`
	IsSubForum     bool   `json:"isSubForum"`
	IsIndexTopic   bool   `json:"isIndexTopic"`
	IsAnnouncement bool   `json:"isAnnouncement"`
	IsPinned       bool   `json:"isPinned"`
	IsLocked       bool   `json:"isLocked"`
	Text           string `json:"text"`
}

func (handler *Handler) GetIndex(c *fiber.Ctx) error {
	listing, err := service.Instance.IndexListing(c.UserContext(), asOf(c), viewer(c))
	if err != nil {
		return err
	}
	return ok(c, listing)
}

func (handler *Handler) GetForumStats(c *fiber.Ctx) error {
	stats, err := service.Instance.ForumStats(c.UserContext(), asOf(c))
	if err != nil {
		return err
	}
	return ok(c, stats)
}

func (handler *Handler) GetCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	details, err := service.Instance.CategoryDetails(c.UserContext(), id, asOf(c), viewer(c))
	if err != nil {
		return err
	}
	return ok(c, details)
}

func (handler *Handler) GetSubforum(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	details, err := service.Instance.SubforumDetails(c.UserContext(), id, c.QueryInt("page", 1), asOf(c), viewer(c))
	if err != nil {
		return err
	}
	return ok(c, details)
}

// GetTopic serves a page of posts and counts a view, except for time machine visits.
func (handler *Handler) GetTopic(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	date := asOf(c)
	details, err := service.Instance.TopicDetails(ctx, id, c.QueryInt("page", 1), c.QueryInt("perPage", 0), date, viewer(c))
	if err != nil {
		return err
	}
	if date == nil {
		if err := service.Instance.IncrementViews(ctx, id); err != nil {
			handler.Log.Errorf("[handler] GetTopic IncrementViews(%d) err: %v", id, err)
		}
		if v := viewer(c); v > 0 {
			if err := service.Instance.MarkRead(ctx, v, id); err != nil {
				handler.Log.Errorf("[handler] GetTopic MarkRead(%d, %d) err: %v", v, id, err)
			}
		}
	}
	return ok(c, details)
}

func (handler *Handler) GetTree(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	tree, err := service.Instance.GetTree(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, tree)
}

// GetLatestMessage answers with a null post when nothing was written yet.
func (handler *Handler) GetLatestMessage(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	if date := asOf(c); date != nil {
		post, err := service.Instance.GetLatestMessageBefore(ctx, id, *date)
		if err != nil {
			return err
		}
		return ok(c, post)
	}
	post, err := service.Instance.GetLatestMessage(ctx, id)
	if err != nil {
		return err
	}
	return ok(c, post)
}

func (handler *Handler) CreateTopic(c *fiber.Ctx) error {
	req := &CreateTopicReq{}
	if err := handler.bind(c, req); err != nil {
		return err
	}
	var authorID *int64
	if v := viewer(c); v > 0 {
		authorID = &v
	}
	topic, err := service.Instance.CreateTopic(c.UserContext(), &service.NewTopic{
		Title:          req.Title,
		Desc:           req.Description,
		Icon:           req.Icon,
		AuthorID:       authorID,
		ParentID:       req.ParentID,
		CategoryID:     req.CategoryID,
		IsSubForum:     req.IsSubForum,
		IsIndexTopic:   req.IsIndexTopic,
		IsAnnouncement: req.IsAnnouncement,
		IsPinned:       req.IsPinned,
		IsLocked:       req.IsLocked,
		Text:           req.Text,
	})
	if err != nil {
		return err
	}
	return created(c, topic)
}

func (handler *Handler) MarkRead(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID, err := requireViewer(c)
	if err != nil {
		return err
	}
	if err := service.Instance.MarkRead(c.UserContext(), userID, id); err != nil {
		return err
	}
	return ok(c, nil)
}

// MarkReadIn marks the topics of ?subforum= (at any depth) or ?category= as read.
func (handler *Handler) MarkReadIn(c *fiber.Ctx) error {
	userID, err := requireViewer(c)
	if err != nil {
		return err
	}
	n, err := service.Instance.MarkReadIn(c.UserContext(), userID, int64(c.QueryInt("subforum", 0)), int64(c.QueryInt("category", 0)))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"marked": n})
}
