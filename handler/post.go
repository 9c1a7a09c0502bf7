package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theotor83/utf-rewritten-sub000/bbcode"
	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
	"github.com/theotor83/utf-rewritten-sub000/service"
)

type CreatePostReq struct {
	TopicID int64  `json:"topicId" validate:"required,gt=0"`
	Text    string `json:"text" validate:"required,max=65535"`
}

type CreatePostResp struct {
	Post    *model.Post      `json:"post"`
	Outcome *dao.PostOutcome `json:"outcome"`
}

type EditPostReq struct {
	Text string `json:"text" validate:"required,max=65535"`
}

type StripBBCodeReq struct {
	Text string `json:"text"`
}

type StripBBCodeResp struct {
	Text string `json:"text"`
}

// CreatePost writes a message as the calling member, or anonymously without the user header.
func (handler *Handler) CreatePost(c *fiber.Ctx) error {
	req := &CreatePostReq{}
	if err := handler.bind(c, req); err != nil {
		return err
	}
	var authorID *int64
	if v := viewer(c); v > 0 {
		authorID = &v
	}
	post, outcome, err := service.Instance.CreatePost(c.UserContext(), &service.NewPost{
		TopicID:  req.TopicID,
		AuthorID: authorID,
		Text:     req.Text,
	})
	if err != nil {
		return err
	}
	return created(c, &CreatePostResp{Post: post, Outcome: outcome})
}

func (handler *Handler) GetPost(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	details, err := service.Instance.PostDetails(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, details)
}

func (handler *Handler) EditPost(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID, err := requireViewer(c)
	if err != nil {
		return err
	}
	req := &EditPostReq{}
	if err := handler.bind(c, req); err != nil {
		return err
	}
	post, err := service.Instance.EditPost(c.UserContext(), id, userID, req.Text)
	if err != nil {
		return err
	}
	return ok(c, post)
}

func (handler *Handler) StripBBCode(c *fiber.Ctx) error {
	req := &StripBBCodeReq{}
	if err := handler.bind(c, req); err != nil {
		return err
	}
	return ok(c, &StripBBCodeResp{Text: bbcode.StripBBCode(req.Text)})
}
