package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theotor83/utf-rewritten-sub000/service"
)

type SetGroupsReq struct {
	GroupIDs []int64 `json:"groupIds" validate:"dive,gt=0"`
}

func (handler *Handler) GetProfile(c *fiber.Ctx) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	details, err := service.Instance.ProfileDetails(c.UserContext(), userID, asOf(c))
	if err != nil {
		return err
	}
	return ok(c, details)
}

// SetGroups is restricted to staff members.
func (handler *Handler) SetGroups(c *fiber.Ctx) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	callerID, err := requireViewer(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	if err := service.Instance.RequireStaff(ctx, callerID); err != nil {
		return err
	}
	req := &SetGroupsReq{}
	if err := handler.bind(c, req); err != nil {
		return err
	}
	profile, err := service.Instance.SetGroups(ctx, userID, req.GroupIDs)
	if err != nil {
		return err
	}
	return ok(c, profile)
}

func (handler *Handler) GetMembers(c *fiber.Ctx) error {
	list, err := service.Instance.MemberList(c.UserContext(), asOf(c),
		c.Query("mode", "joined"), c.Query("order", "ASC"), c.QueryInt("page", 1))
	if err != nil {
		return err
	}
	return ok(c, list)
}

func (handler *Handler) GetGroups(c *fiber.Ctx) error {
	groups, err := service.Instance.GroupsWithMembers(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, groups)
}

func (handler *Handler) GetGroup(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	details, err := service.Instance.GroupDetails(c.UserContext(), id, asOf(c), c.QueryInt("page", 1), c.QueryInt("perPage", 0))
	if err != nil {
		return err
	}
	return ok(c, details)
}
