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

// SearchQuery is the input of Search. Zero values fall back to the defaults of the form.
type SearchQuery struct {
	Keywords string
	// Terms is "all" to match the whole phrase, "any" to match any of its words.
	Terms string
	// Fields is "all" to also match topic titles, "msgonly" for message bodies only.
	Fields      string
	Author      string
	SubforumID  int64
	CategoryID  int64
	Days        int
	SortBy      string
	Order       string
	ShowResults string
	Unanswered  bool
	Page        int
	PerPage     int
	CharLimit   int
	AsOf        *time.Time
	ViewerID    int64
}

type SearchHit struct {
	Post    *model.Post  `json:"post"`
	Topic   *model.Topic `json:"topic"`
	Snippet string       `json:"snippet"`
}

type SearchResults struct {
	ShowResults string           `json:"showResults"`
	Posts       []*SearchHit     `json:"posts"`
	Topics      []*TopicSummary  `json:"topics"`
	Total       int64            `json:"total"`
	Page        int              `json:"page"`
	PerPage     int              `json:"perPage"`
	MaxPage     int              `json:"maxPage"`
	Pagination  []model.PageLink `json:"pagination"`
	AsOf        time.Time        `json:"asOf"`
}

func keywordsOf(phrase, terms string) []string {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil
	}
	if terms == "all" {
		return []string{phrase}
	}
	return strings.Fields(phrase)
}

// snippet is the plain text of a message cut to limit characters.
func snippet(text string, limit int) string {
	plain := []rune(bbcode.StripBBCode(text))
	if limit <= 0 || len(plain) <= limit {
		return string(plain)
	}
	return strings.TrimSpace(string(plain[:limit])) + "..."
}

func searchPerPage(perPage int) int {
	if perPage <= 0 {
		return config.Cfg.SearchPerPage
	}
	if perPage > config.Cfg.MaxSearchPerPage {
		return config.Cfg.MaxSearchPerPage
	}
	return perPage
}

// Search lists the posts, or the topics holding them, that match q at the requested instant.
// An empty result is reported as NotFound.
func (service *Service) Search(ctx context.Context, q *SearchQuery) (*SearchResults, error) {
	at := service.instant(q.AsOf)
	if q.SubforumID != 0 {
		topic, err := dao.StoreInstance.GetTopic(ctx, q.SubforumID)
		if err != nil {
			return nil, service.report("Search dao.StoreInstance.GetTopic", err)
		}
		if !topic.IsSubForum {
			return nil, common.NotFound("subforum")
		}
	}
	if q.CategoryID != 0 {
		if _, err := dao.StoreInstance.GetCategory(ctx, q.CategoryID); err != nil {
			return nil, service.report("Search dao.StoreInstance.GetCategory", err)
		}
	}

	filter := &dao.PostSearch{
		Keywords:   keywordsOf(q.Keywords, q.Terms),
		WithTitles: q.Fields != "msgonly",
		Author:     strings.TrimSpace(q.Author),
		SubforumID: q.SubforumID,
		CategoryID: q.CategoryID,
		AsOf:       at,
		Unanswered: q.Unanswered,
		SortBy:     q.SortBy,
		Desc:       strings.EqualFold(q.Order, "DESC"),
	}
	if q.Days > 0 {
		since := at.AddDate(0, 0, -q.Days)
		filter.Since = &since
	}

	res := &SearchResults{ShowResults: "posts", PerPage: searchPerPage(q.PerPage), AsOf: at}
	if q.ShowResults == "topics" {
		res.ShowResults = "topics"
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * res.PerPage

	if res.ShowResults == "topics" {
		topics, total, err := dao.StoreInstance.SearchTopics(ctx, filter, offset, res.PerPage)
		if err != nil {
			return nil, service.report("Search dao.StoreInstance.SearchTopics", err)
		}
		if res.Topics, err = service.summarize(ctx, topics, q.AsOf, q.ViewerID); err != nil {
			return nil, err
		}
		res.Total = total
	} else {
		posts, total, err := dao.StoreInstance.SearchPosts(ctx, filter, offset, res.PerPage)
		if err != nil {
			return nil, service.report("Search dao.StoreInstance.SearchPosts", err)
		}
		ids := make([]int64, 0, len(posts))
		for _, p := range posts {
			ids = append(ids, p.TopicID)
		}
		topics, err := dao.StoreInstance.GetTopicsByIds(ctx, ids)
		if err != nil {
			return nil, service.report("Search dao.StoreInstance.GetTopicsByIds", err)
		}
		charLimit := q.CharLimit
		if charLimit <= 0 {
			charLimit = config.Cfg.SearchCharLimit
		}
		res.Posts = make([]*SearchHit, 0, len(posts))
		for _, p := range posts {
			res.Posts = append(res.Posts, &SearchHit{Post: p, Topic: topics[p.TopicID], Snippet: snippet(p.Text, charLimit)})
		}
		res.Total = total
	}
	if res.Total == 0 {
		return nil, common.NotFound("search results")
	}

	res.MaxPage = pageCount(res.Total, res.PerPage)
	res.Page = clampPage(page, res.MaxPage)
	res.Pagination = model.GeneratePagination(res.Page, res.MaxPage)
	return res, nil
}
