package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/service"
)

// HeaderUserID carries the authenticated member id set by the gateway in front of the service.
const HeaderUserID = "X-User-Id"

const requestTimeout = 10 * time.Second

type Handler struct {
	Log      *logrus.Entry
	Validate *validator.Validate
}

var Instance *Handler

// Resp is the envelope of every response.
type Resp struct {
	ErrCode int32       `json:"errCode"`
	ErrMsg  string      `json:"errMsg,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func New(log *logrus.Entry) *Handler {
	return &Handler{
		Log:      log,
		Validate: validator.New(),
	}
}

// NewApp builds the fiber application serving the forum API.
func (handler *Handler) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
		ErrorHandler:          handler.errorHandler,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New())
	app.Use(handler.withTimeout)

	api := app.Group("/api")
	api.Get("/index", handler.GetIndex)
	api.Get("/forum", handler.GetForumStats)
	api.Get("/categories/:id", handler.GetCategory)
	api.Get("/subforums/:id", handler.GetSubforum)

	api.Post("/topics", handler.CreateTopic)
	api.Get("/topics/:id", handler.GetTopic)
	api.Get("/topics/:id/tree", handler.GetTree)
	api.Get("/topics/:id/latest", handler.GetLatestMessage)
	api.Post("/topics/:id/read", handler.MarkRead)
	api.Post("/read", handler.MarkReadIn)
	api.Get("/search", handler.Search)

	api.Post("/posts", handler.CreatePost)
	api.Get("/posts/:id", handler.GetPost)
	api.Put("/posts/:id", handler.EditPost)

	api.Get("/polls/:topicId", handler.GetPoll)
	api.Post("/polls/:topicId/vote", handler.Vote)
	api.Delete("/polls/:topicId/vote", handler.RemoveVotes)

	api.Get("/profiles/:userId", handler.GetProfile)
	api.Put("/profiles/:userId/groups", handler.SetGroups)
	api.Get("/members", handler.GetMembers)
	api.Get("/groups", handler.GetGroups)
	api.Get("/groups/:id", handler.GetGroup)

	api.Post("/bbcode/strip", handler.StripBBCode)
	return app
}

func (handler *Handler) withTimeout(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	c.SetUserContext(ctx)
	return c.Next()
}

// errorHandler turns what handlers return into the response envelope.
func (handler *Handler) errorHandler(c *fiber.Ctx, err error) error {
	var internalErr *common.InternalError
	if errors.As(err, &internalErr) {
		return c.Status(int(internalErr.ErrCode)).JSON(&Resp{ErrCode: internalErr.ErrCode, ErrMsg: internalErr.ErrMsg})
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(&Resp{ErrCode: int32(fiberErr.Code), ErrMsg: fiberErr.Message})
	}

	currErr := fmt.Errorf("[handler] %s %s err: %v", c.Method(), c.Path(), err)
	handler.Log.Error(currErr)
	sentry.CaptureException(currErr)
	return c.Status(fiber.StatusInternalServerError).JSON(&Resp{
		ErrCode: common.Code_SvcInternalError,
		ErrMsg:  common.Msg_SvcInternalError,
	})
}

func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(&Resp{ErrCode: common.Code_None, Data: data})
}

func created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(&Resp{ErrCode: common.Code_None, Data: data})
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ValidationFailed("invalid " + name)
	}
	return id, nil
}

// viewer is the calling member, 0 for anonymous visitors.
func viewer(c *fiber.Ctx) int64 {
	id, err := strconv.ParseInt(c.Get(HeaderUserID), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func requireViewer(c *fiber.Ctx) (int64, error) {
	if id := viewer(c); id > 0 {
		return id, nil
	}
	return 0, common.NotPermitted("authentication required")
}

func asOf(c *fiber.Ctx) *time.Time {
	return service.ParseAsOf(c.Query("date"))
}

// bind decodes the JSON body into req and validates its tags.
func (handler *Handler) bind(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return common.ValidationFailed("malformed body")
	}
	if err := handler.Validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return common.ValidationFailed(fmt.Sprintf("%s: %s", ve[0].Field(), ve[0].Tag()))
		}
		return common.ValidationFailed("invalid body")
	}
	return nil
}
