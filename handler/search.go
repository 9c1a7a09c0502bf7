package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/service"
)

type SearchReq struct {
	Keywords    string `query:"keywords" validate:"max=255"`
	Terms       string `query:"terms" validate:"omitempty,oneof=any all"`
	Fields      string `query:"fields" validate:"omitempty,oneof=all msgonly"`
	Author      string `query:"author" validate:"max=150"`
	SubforumID  int64  `query:"subforum" validate:"gte=0"`
	CategoryID  int64  `query:"category" validate:"gte=0"`
	Days        int    `query:"days" validate:"gte=0"`
	SortBy      string `query:"sortBy" validate:"omitempty,oneof=time subject title author forum"`
	Order       string `query:"order" validate:"omitempty,oneof=ASC DESC asc desc"`
	ShowResults string `query:"showResults" validate:"omitempty,oneof=posts topics"`
	SearchID    string `query:"searchId" validate:"omitempty,oneof=unanswered"`
	Page        int    `query:"page" validate:"gte=0"`
	PerPage     int    `query:"perPage" validate:"gte=0"`
	CharLimit   int    `query:"charLimit" validate:"gte=0"`
}

func (handler *Handler) Search(c *fiber.Ctx) error {
	req := &SearchReq{}
	if err := c.QueryParser(req); err != nil {
		return common.ValidationFailed("malformed query")
	}
	if err := handler.Validate.Struct(req); err != nil {
		return common.ValidationFailed("invalid query")
	}
	res, err := service.Instance.Search(c.UserContext(), &service.SearchQuery{
		Keywords:    req.Keywords,
		Terms:       req.Terms,
		Fields:      req.Fields,
		Author:      req.Author,
		SubforumID:  req.SubforumID,
		CategoryID:  req.CategoryID,
		Days:        req.Days,
		SortBy:      req.SortBy,
		Order:       req.Order,
		ShowResults: req.ShowResults,
		Unanswered:  req.SearchID == "unanswered",
		Page:        req.Page,
		PerPage:     req.PerPage,
		CharLimit:   req.CharLimit,
		AsOf:        asOf(c),
		ViewerID:    viewer(c),
	})
	if err != nil {
		return err
	}
	return ok(c, res)
}
