package handler

import (
	"net/http"
	"testing"

	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

func Test_GetProfile(t *testing.T) {
	prepareTestDatabase()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantMsgs   int64
	}{
		{name: "present", path: "/api/profiles/1", wantStatus: http.StatusOK, wantMsgs: 3},
		{name: "past", path: "/api/profiles/1?date=2019-12-31", wantStatus: http.StatusOK, wantMsgs: 1},
		{name: "before joining", path: "/api/profiles/3?date=2020-06-01", wantStatus: http.StatusNotFound},
		{name: "bad id", path: "/api/profiles/-1", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := call(t, http.MethodGet, tt.path, 0, nil)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%+v)", status, tt.wantStatus, resp)
			}
			if status == http.StatusOK {
				details := &struct {
					Messages int64 `json:"messages"`
				}{}
				decode(t, resp, details)
				if details.Messages != tt.wantMsgs {
					t.Errorf("messages = %d, want %d", details.Messages, tt.wantMsgs)
				}
			}
		})
	}
}

func Test_SetGroups(t *testing.T) {
	prepareTestDatabase()

	tests := []struct {
		name       string
		callerID   int64
		body       *SetGroupsReq
		wantStatus int
	}{
		{name: "anonymous", callerID: 0, body: &SetGroupsReq{GroupIDs: []int64{5}}, wantStatus: http.StatusForbidden},
		{name: "member", callerID: 1, body: &SetGroupsReq{GroupIDs: []int64{5}}, wantStatus: http.StatusForbidden},
		{name: "unknown group", callerID: 4, body: &SetGroupsReq{GroupIDs: []int64{2, 99}}, wantStatus: http.StatusNotFound},
		{name: "invalid group id", callerID: 4, body: &SetGroupsReq{GroupIDs: []int64{0}}, wantStatus: http.StatusBadRequest},
		{name: "staff", callerID: 4, body: &SetGroupsReq{GroupIDs: []int64{2, 5}}, wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := call(t, http.MethodPut, "/api/profiles/2/groups", tt.callerID, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%+v)", status, tt.wantStatus, resp)
			}
		})
	}

	profile := &model.Profile{}
	dao.StoreInstance.DB.Where("user_id = ?", 2).First(profile)
	if profile.TopGroupID == nil || *profile.TopGroupID != 5 {
		t.Errorf("top group = %v, want 5", profile.TopGroupID)
	}
}

func Test_GetMembers(t *testing.T) {
	prepareTestDatabase()

	tests := []struct {
		path      string
		wantMode  string
		wantNames []string
	}{
		{path: "/api/members?mode=topten", wantMode: "topten", wantNames: []string{"alice", "bob", "dave", "carol"}},
		{path: "/api/members?mode=username&order=DESC", wantMode: "username", wantNames: []string{"dave", "carol", "bob", "alice"}},
		{path: "/api/members?date=2020-01-01", wantMode: "joined", wantNames: []string{"alice", "bob", "dave"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, resp := call(t, http.MethodGet, tt.path, 0, nil)
			if status != http.StatusOK {
				t.Fatalf("status %d resp %+v", status, resp)
			}
			list := &struct {
				Mode    string `json:"mode"`
				Members []struct {
					Username string `json:"username"`
				} `json:"members"`
			}{}
			decode(t, resp, list)
			if list.Mode != tt.wantMode || len(list.Members) != len(tt.wantNames) {
				t.Fatalf("mode %s members %s", list.Mode, resp.Data)
			}
			for i, name := range tt.wantNames {
				if list.Members[i].Username != name {
					t.Errorf("members[%d] = %s, want %s", i, list.Members[i].Username, name)
				}
			}
		})
	}
}

func Test_GetGroups(t *testing.T) {
	prepareTestDatabase()

	status, resp := call(t, http.MethodGet, "/api/groups", 0, nil)
	if status != http.StatusOK {
		t.Fatalf("status %d resp %+v", status, resp)
	}
	var groups []*dao.GroupWithMembers
	decode(t, resp, &groups)
	if len(groups) != 5 || groups[0].Name != "Modérateur" || groups[0].Members != 1 {
		t.Errorf("groups = %s", resp.Data)
	}
}

func Test_GetGroup(t *testing.T) {
	prepareTestDatabase()

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantMembers int
	}{
		{name: "present", path: "/api/groups/2", wantStatus: http.StatusOK, wantMembers: 2},
		{name: "paged", path: "/api/groups/2?page=2&perPage=1", wantStatus: http.StatusOK, wantMembers: 1},
		{name: "past posters", path: "/api/groups/3?date=2019-12-31", wantStatus: http.StatusOK, wantMembers: 0},
		{name: "missing", path: "/api/groups/99", wantStatus: http.StatusNotFound},
		{name: "bad id", path: "/api/groups/x", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := call(t, http.MethodGet, tt.path, 0, nil)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%+v)", status, tt.wantStatus, resp)
			}
			if status == http.StatusOK {
				details := &struct {
					Mods    []*dao.MemberRow `json:"mods"`
					Members []*dao.MemberRow `json:"members"`
				}{}
				decode(t, resp, details)
				if len(details.Members) != tt.wantMembers || len(details.Mods) != 1 {
					t.Errorf("members %d mods %d", len(details.Members), len(details.Mods))
				}
			}
		})
	}
}
