package service

import (
	"context"
	"testing"
	"time"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

func Test_GetTree(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	type node struct {
		id       int64
		children []int64
	}
	tests := []struct {
		name    string
		topicID int64
		want    []node
		wantErr int32
	}{
		{name: "leaf topic", topicID: 3, want: []node{{1, []int64{2}}, {2, []int64{3}}}},
		{name: "nested subforum", topicID: 2, want: []node{{1, []int64{2}}, {2, []int64{}}}},
		{name: "root subforum", topicID: 1, want: []node{{1, []int64{}}}},
		{name: "root topic", topicID: 5, want: []node{}},
		{name: "missing", topicID: 404, wantErr: common.Code_NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Instance.GetTree(ctx, tt.topicID)
			if tt.wantErr != 0 {
				wantCode(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(tree) != len(tt.want) {
				t.Fatalf("len(tree) = %d, want %d", len(tree), len(tt.want))
			}
			for i, n := range tree {
				if n.Node.ID != tt.want[i].id {
					t.Errorf("tree[%d].Node = %d, want %d", i, n.Node.ID, tt.want[i].id)
				}
				if len(n.Children) != len(tt.want[i].children) {
					t.Fatalf("tree[%d] has %d children, want %d", i, len(n.Children), len(tt.want[i].children))
				}
				for j, c := range n.Children {
					if c.ID != tt.want[i].children[j] {
						t.Errorf("tree[%d].Children[%d] = %d, want %d", i, j, c.ID, tt.want[i].children[j])
					}
				}
			}
		})
	}
}

func Test_GetTree_Cycle(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	// A -> B -> A
	if err := dao.StoreInstance.DB.Model(&model.Topic{}).Where("id = ?", 1).Update("parent_id", 2).Error; err != nil {
		t.Fatal(err)
	}
	tree, err := Instance.GetTree(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree) > model.MaxTreeDepth+1 {
		t.Errorf("cycle not stopped, len(tree) = %d", len(tree))
	}
}

func Test_Depth(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	for id, want := range map[int64]int{1: 0, 2: 1, 3: 2, 4: 1, 5: 0} {
		got, err := Instance.Depth(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Depth(%d) = %d, want %d", id, got, want)
		}
	}
}

func Test_SubForumsAndFirstPost(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	subforums, err := Instance.SubForums(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(subforums) != 1 || subforums[0].ID != 2 {
		t.Errorf("SubForums(1) = %v, want [2]", subforums)
	}

	first, err := Instance.FirstPost(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if first == nil || first.ID != 1 {
		t.Errorf("FirstPost(3) = %v, want post 1", first)
	}
	if first, _ = Instance.FirstPost(ctx, 1); first != nil {
		t.Errorf("FirstPost(subforum) = %v, want nil", first)
	}
}

func Test_GetLatestMessage(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	tests := []struct {
		name    string
		topicID int64
		before  *time.Time
		want    int64
	}{
		{name: "root subforum", topicID: 1, want: 5},
		{name: "nested subforum", topicID: 2, want: 3},
		{name: "regular topic", topicID: 4, want: 5},
		{name: "root subforum in the past", topicID: 1, before: date("2020-01-01 00:00:00"), want: 2},
		{name: "bound is inclusive", topicID: 1, before: date("2020-01-01 10:00:00"), want: 3},
		{name: "before any post", topicID: 1, before: date("2019-01-01 00:00:00"), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var post *model.Post
			var err error
			if tt.before == nil {
				post, err = Instance.GetLatestMessage(ctx, tt.topicID)
			} else {
				post, err = Instance.GetLatestMessageBefore(ctx, tt.topicID, *tt.before)
			}
			if err != nil {
				t.Fatal(err)
			}
			if tt.want == 0 {
				if post != nil {
					t.Errorf("got post %d, want none", post.ID)
				}
				return
			}
			if post == nil || post.ID != tt.want {
				t.Errorf("got %v, want post %d", post, tt.want)
			}
		})
	}
}

func Test_GetLatestMessage_WriteThrough(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	if err := dao.StoreInstance.DB.Model(&model.Topic{}).Where("id = ?", 2).Update("latest_message_id", 1).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := Instance.GetLatestMessageBefore(ctx, 2, testNow); err != nil {
		t.Fatal(err)
	}
	if got := reloadTopic(t, 2).LatestMessageID; got == nil || *got != 1 {
		t.Fatalf("GetLatestMessageBefore wrote latest_message_id = %v", got)
	}

	if _, err := Instance.GetLatestMessage(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if got := reloadTopic(t, 2).LatestMessageID; got == nil || *got != 3 {
		t.Errorf("latest_message_id = %v, want 3", got)
	}
}

func Test_GetLatestMessage_Tie(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	at := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	var last int64
	for i := 0; i < 2; i++ {
		post := &model.Post{TopicID: 3, AuthorID: ptr(2), Text: "tie", CreatedTime: at}
		if err := dao.StoreInstance.DB.Create(post).Error; err != nil {
			t.Fatal(err)
		}
		last = post.ID
	}
	post, err := Instance.GetLatestMessage(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if post == nil || post.ID != last {
		t.Errorf("tie broken on %v, want the highest id %d", post, last)
	}
}
