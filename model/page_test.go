package model

import (
	"reflect"
	"testing"

	"github.com/goccy/go-json"
)

func Test_MaxPage(t *testing.T) {
	tests := []struct {
		name    string
		replies int64
		want    int
	}{
		{name: "new topic", replies: -1, want: 1},
		{name: "no reply", replies: 0, want: 1},
		{name: "one reply", replies: 1, want: 1},
		{name: "full first page", replies: 14, want: 1},
		{name: "sixteen posts", replies: 15, want: 2},
		{name: "many", replies: 100, want: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxPage(tt.replies, PostsPerPage); got != tt.want {
				t.Errorf("MaxPage(%d) = %d, want %d", tt.replies, got, tt.want)
			}
		})
	}
}

func Test_PageNumbers(t *testing.T) {
	tests := []struct {
		name    string
		maxPage int
		want    string
	}{
		{name: "one", maxPage: 1, want: `[1]`},
		{name: "four", maxPage: 4, want: `[1,2,3,4]`},
		{name: "seven", maxPage: 7, want: `[1,"...",5,6,7]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(PageNumbers(tt.maxPage))
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.want {
				t.Errorf("PageNumbers(%d) = %s, want %s", tt.maxPage, b, tt.want)
			}
		})
	}
}

func Test_GeneratePagination(t *testing.T) {
	tests := []struct {
		name    string
		current int
		maxPage int
		want    []PageLink
	}{
		{name: "single", current: 1, maxPage: 1, want: []PageLink{Page(1)}},
		{name: "two", current: 1, maxPage: 2, want: []PageLink{Page(1), Page(2)}},
		{
			name: "middle", current: 10, maxPage: 20,
			want: []PageLink{Page(1), Page(2), Page(3), PageGap, Page(9), Page(10), Page(11), PageGap, Page(18), Page(19), Page(20)},
		},
		{
			name: "start", current: 1, maxPage: 10,
			want: []PageLink{Page(1), Page(2), Page(3), PageGap, Page(8), Page(9), Page(10)},
		},
		{
			name: "adjacent", current: 4, maxPage: 7,
			want: []PageLink{Page(1), Page(2), Page(3), Page(4), Page(5), Page(6), Page(7)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GeneratePagination(tt.current, tt.maxPage); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GeneratePagination(%d, %d) = %v, want %v", tt.current, tt.maxPage, got, tt.want)
			}
		})
	}
}

func Test_PageLinkJSON(t *testing.T) {
	var links []PageLink
	if err := json.Unmarshal([]byte(`[1,"...",9]`), &links); err != nil {
		t.Fatal(err)
	}
	want := []PageLink{Page(1), PageGap, Page(9)}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("got %v, want %v", links, want)
	}
}

func Test_PageOf(t *testing.T) {
	if got := PageOf(1, 15); got != 1 {
		t.Errorf("PageOf(1) = %d", got)
	}
	if got := PageOf(15, 15); got != 1 {
		t.Errorf("PageOf(15) = %d", got)
	}
	if got := PageOf(16, 15); got != 2 {
		t.Errorf("PageOf(16) = %d", got)
	}
}
