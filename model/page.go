package model

import (
	"sort"
	"strconv"
)

const (
	PostsPerPage   = 15
	TopicsPerPage  = 50
	MembersPerPage = 50
)

// PageLink is one entry of a page selector: a page number or the "..." gap.
type PageLink struct {
	Page int
	Gap  bool
}

var PageGap = PageLink{Gap: true}

func Page(n int) PageLink {
	return PageLink{Page: n}
}

func (p PageLink) String() string {
	if p.Gap {
		return "..."
	}
	return strconv.Itoa(p.Page)
}

func (p PageLink) MarshalJSON() ([]byte, error) {
	if p.Gap {
		return []byte(`"..."`), nil
	}
	return []byte(strconv.Itoa(p.Page)), nil
}

func (p *PageLink) UnmarshalJSON(b []byte) error {
	if string(b) == `"..."` {
		*p = PageGap
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	*p = Page(n)
	return nil
}

// MaxPage is the number of pages needed for a topic with totalReplies replies.
func MaxPage(totalReplies int64, perPage int) int {
	if perPage <= 0 {
		perPage = PostsPerPage
	}
	if totalReplies <= 0 {
		return 1
	}
	return int(totalReplies/int64(perPage)) + 1
}

// PageNumbers is the short selector shown next to a topic in listings.
func PageNumbers(maxPage int) []PageLink {
	if maxPage <= 4 {
		links := make([]PageLink, 0, maxPage)
		for i := 1; i <= maxPage; i++ {
			links = append(links, Page(i))
		}
		return links
	}
	return []PageLink{Page(1), PageGap, Page(maxPage - 2), Page(maxPage - 1), Page(maxPage)}
}

// GeneratePagination keeps the first three, the last three and the neighbours of current.
func GeneratePagination(current, maxPage int) []PageLink {
	if maxPage <= 1 {
		return []PageLink{Page(1)}
	}

	set := make(map[int]struct{})
	if maxPage >= 3 {
		for _, p := range []int{1, 2, 3, maxPage - 2, maxPage - 1, maxPage} {
			set[p] = struct{}{}
		}
	}
	for _, p := range []int{current - 1, current, current + 1} {
		if p >= 1 && p <= maxPage {
			set[p] = struct{}{}
		}
	}

	pages := make([]int, 0, len(set))
	for p := range set {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	links := make([]PageLink, 0, len(pages)+2)
	for i, p := range pages {
		if i > 0 && p > pages[i-1]+1 {
			links = append(links, PageGap)
		}
		links = append(links, Page(p))
	}
	return links
}

// PageOf returns the page holding the position-th (1-based) item.
func PageOf(position int64, perPage int) int {
	if perPage <= 0 {
		perPage = PostsPerPage
	}
	if position <= 0 {
		return 1
	}
	return int((position-1)/int64(perPage)) + 1
}
