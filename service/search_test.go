package service

import (
	"context"
	"testing"

	"github.com/theotor83/utf-rewritten-sub000/common"
)

func hitIDs(hits []*SearchHit) []int64 {
	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.Post.ID)
	}
	return ids
}

func Test_Search(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	tests := []struct {
		name  string
		query SearchQuery
		want  []int64
	}{
		{name: "one word", query: SearchQuery{Keywords: "bonjour", Fields: "msgonly"}, want: []int64{1}},
		{name: "any word", query: SearchQuery{Keywords: "bonne salut", Terms: "any"}, want: []int64{2, 3}},
		{name: "whole phrase", query: SearchQuery{Keywords: "tout le monde", Terms: "all"}, want: []int64{1}},
		{name: "accented", query: SearchQuery{Keywords: "règles", Fields: "msgonly"}, want: []int64{6}},
		{name: "topic titles", query: SearchQuery{Keywords: "hello"}, want: []int64{1, 2, 3}},
		{name: "author ignores case", query: SearchQuery{Author: "BOB"}, want: []int64{2, 5}},
		{name: "subforum is not recursive", query: SearchQuery{SubforumID: 1}, want: []int64{4, 5}},
		{name: "category", query: SearchQuery{Keywords: "r", Terms: "any", Fields: "msgonly", CategoryID: 1}, want: []int64{1, 5, 6}},
		{name: "last days", query: SearchQuery{Days: 700}, want: []int64{4, 5}},
		{name: "unanswered", query: SearchQuery{Unanswered: true}, want: []int64{6}},
		{name: "in the past", query: SearchQuery{AsOf: date("2019-03-01 00:00:00")}, want: []int64{1, 2}},
		{name: "newest first", query: SearchQuery{Author: "alice", Order: "DESC"}, want: []int64{4, 3, 1}},
		{name: "by author", query: SearchQuery{SortBy: "author", Days: 700}, want: []int64{4, 5}},
		{name: "by topic title", query: SearchQuery{SortBy: "title", Author: "bob", Order: "DESC"}, want: []int64{5, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Instance.Search(ctx, &tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if got := hitIDs(res.Posts); !sameIDs(got, tt.want) {
				t.Errorf("posts = %v, want %v", got, tt.want)
			}
			if res.Total != int64(len(tt.want)) {
				t.Errorf("total = %d, want %d", res.Total, len(tt.want))
			}
		})
	}
}

func Test_Search_NotFound(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	tests := []struct {
		name  string
		query SearchQuery
	}{
		{name: "phrase absent", query: SearchQuery{Keywords: "bonne salut", Terms: "all"}},
		{name: "title only match", query: SearchQuery{Keywords: "hello", Fields: "msgonly"}},
		{name: "wildcards are literal", query: SearchQuery{Keywords: "100%"}},
		{name: "unknown author", query: SearchQuery{Author: "mallory"}},
		{name: "regular topic as subforum", query: SearchQuery{SubforumID: 3}},
		{name: "missing subforum", query: SearchQuery{SubforumID: 99}},
		{name: "missing category", query: SearchQuery{CategoryID: 9}},
		{name: "before the first post", query: SearchQuery{AsOf: date("2019-01-01 00:00:00")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Instance.Search(ctx, &tt.query)
			wantCode(t, err, common.Code_NotFound)
		})
	}
}

func Test_Search_Pages(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	res, err := Instance.Search(ctx, &SearchQuery{Author: "alice", PerPage: 1, Page: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := hitIDs(res.Posts); !sameIDs(got, []int64{3}) {
		t.Errorf("page 2 = %v, want [3]", got)
	}
	if res.Total != 3 || res.Page != 2 || res.MaxPage != 3 || len(res.Pagination) == 0 {
		t.Errorf("total %d page %d/%d pagination %v", res.Total, res.Page, res.MaxPage, res.Pagination)
	}
	if res.Posts[0].Topic == nil || res.Posts[0].Topic.ID != 3 {
		t.Errorf("topic = %v, want 3", res.Posts[0].Topic)
	}

	res, err = Instance.Search(ctx, &SearchQuery{Author: "alice", PerPage: 500})
	if err != nil {
		t.Fatal(err)
	}
	if res.PerPage != 75 {
		t.Errorf("per page = %d, want the maximum of 75", res.PerPage)
	}
}

func Test_Search_Topics(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	res, err := Instance.Search(ctx, &SearchQuery{Author: "bob", ShowResults: "topics"})
	if err != nil {
		t.Fatal(err)
	}
	if got := topicIDs(res.Topics); !sameIDs(got, []int64{3, 4}) {
		t.Errorf("topics = %v, want [3 4]", got)
	}
	if res.Topics[0].Replies != 2 || res.Posts != nil {
		t.Errorf("replies %d posts %v", res.Topics[0].Replies, res.Posts)
	}
}

func Test_Search_Snippet(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	res, err := Instance.Search(ctx, &SearchQuery{Keywords: "bonjour", CharLimit: 7})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Posts[0].Snippet; got != "Bonjour..." {
		t.Errorf("snippet = %q", got)
	}

	tests := []struct {
		text  string
		limit int
		want  string
	}{
		{text: "Bonjour [b]tout le monde[/b]", limit: 200, want: "Bonjour tout le monde"},
		{text: "Deuxième sujet", limit: 8, want: "Deuxième..."},
		{text: "Salut !", limit: 7, want: "Salut !"},
		{text: "Salut !", limit: 0, want: "Salut !"},
	}
	for _, tt := range tests {
		if got := snippet(tt.text, tt.limit); got != tt.want {
			t.Errorf("snippet(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
		}
	}
}
