package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theotor83/utf-rewritten-sub000/service"
)

type VoteReq struct {
	OptionIDs []int64 `json:"optionIds" validate:"required,min=1,dive,gt=0"`
}

func (handler *Handler) GetPoll(c *fiber.Ctx) error {
	topicID, err := paramID(c, "topicId")
	if err != nil {
		return err
	}
	results, err := service.Instance.PollResults(c.UserContext(), topicID, viewer(c))
	if err != nil {
		return err
	}
	return ok(c, results)
}

func (handler *Handler) Vote(c *fiber.Ctx) error {
	topicID, err := paramID(c, "topicId")
	if err != nil {
		return err
	}
	userID, err := requireViewer(c)
	if err != nil {
		return err
	}
	req := &VoteReq{}
	if err := handler.bind(c, req); err != nil {
		return err
	}
	results, err := service.Instance.Vote(c.UserContext(), topicID, userID, req.OptionIDs)
	if err != nil {
		return err
	}
	return ok(c, results)
}

func (handler *Handler) RemoveVotes(c *fiber.Ctx) error {
	topicID, err := paramID(c, "topicId")
	if err != nil {
		return err
	}
	userID, err := requireViewer(c)
	if err != nil {
		return err
	}
	results, err := service.Instance.RemoveVotes(c.UserContext(), topicID, userID)
	if err != nil {
		return err
	}
	return ok(c, results)
}
