package service

import (
	"context"
	"strings"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

type PollResults struct {
	Poll       *model.Poll           `json:"poll"`
	Options    []*model.OptionResult `json:"options"`
	TotalVotes int64                 `json:"totalVotes"`
	IsActive   bool                  `json:"isActive"`
	UserVotes  []int64               `json:"userVotes"`
	CanVote    bool                  `json:"canVote"`
}

// NewPoll is the input of CreatePoll.
type NewPoll struct {
	TopicID           int64
	Question          string
	Options           []string
	MaxChoicesPerUser int64
	DaysToVote        int64
	CanChangeVote     bool
}

func optionIDs(poll *model.Poll) []int64 {
	ids := make([]int64, 0, len(poll.Options))
	for _, o := range poll.Options {
		ids = append(ids, o.ID)
	}
	return ids
}

// PollResults tallies the poll of a topic. viewerID 0 is an anonymous visitor.
func (service *Service) PollResults(ctx context.Context, topicID int64, viewerID int64) (*PollResults, error) {
	poll, err := dao.StoreInstance.GetPollByTopic(ctx, topicID)
	if err != nil {
		return nil, service.report("PollResults dao.StoreInstance.GetPollByTopic", err)
	}
	votes, err := dao.StoreInstance.VoteCounts(ctx, optionIDs(poll))
	if err != nil {
		return nil, service.report("PollResults dao.StoreInstance.VoteCounts", err)
	}

	options, total := model.Tally(poll.Options, votes)
	results := &PollResults{
		Poll:       poll,
		Options:    options,
		TotalVotes: total,
		IsActive:   poll.IsActive(service.now()),
		UserVotes:  []int64{},
	}
	if viewerID != 0 {
		if results.UserVotes, err = service.userVotes(ctx, poll, viewerID); err != nil {
			return nil, err
		}
		if results.CanVote, err = service.CanUserCastNewVote(ctx, poll, viewerID); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (service *Service) userVotes(ctx context.Context, poll *model.Poll, userID int64) ([]int64, error) {
	if frozen() || userID == 0 {
		return []int64{}, nil
	}
	voted, err := dao.StoreInstance.UserVotes(ctx, optionIDs(poll), userID)
	if err != nil {
		return nil, service.report("userVotes dao.StoreInstance.UserVotes", err)
	}
	return voted, nil
}

// GetUserVoteCount is the number of distinct options userID voted for.
func (service *Service) GetUserVoteCount(ctx context.Context, poll *model.Poll, userID int64) (int64, error) {
	voted, err := service.userVotes(ctx, poll, userID)
	return int64(len(voted)), err
}

func (service *Service) HasUserVoted(ctx context.Context, poll *model.Poll, userID int64) (bool, error) {
	n, err := service.GetUserVoteCount(ctx, poll, userID)
	return n > 0, err
}

// CanUserCastNewVote reports whether one more choice would be accepted.
func (service *Service) CanUserCastNewVote(ctx context.Context, poll *model.Poll, userID int64) (bool, error) {
	if frozen() || userID == 0 || !poll.IsActive(service.now()) {
		return false, nil
	}
	if poll.MaxChoicesPerUser == -1 {
		return true, nil
	}
	n, err := service.GetUserVoteCount(ctx, poll, userID)
	if err != nil {
		return false, err
	}
	return n < poll.MaxChoicesPerUser, nil
}

// Vote records the choices of userID. Single choice polls replace the previous vote;
// the others add choices up to the per-user limit.
func (service *Service) Vote(ctx context.Context, topicID, userID int64, choices []int64) (*PollResults, error) {
	if frozen() {
		return nil, common.NotPermitted("the archive is read-only")
	}
	if len(choices) == 0 {
		return nil, common.ValidationFailed("no option selected")
	}

	poll, err := dao.StoreInstance.GetPollByTopic(ctx, topicID)
	if err != nil {
		return nil, service.report("Vote dao.StoreInstance.GetPollByTopic", err)
	}
	if !poll.IsActive(service.now()) {
		return nil, common.NotPermitted("the poll is closed")
	}

	known := make(map[int64]bool, len(poll.Options))
	for _, o := range poll.Options {
		known[o.ID] = true
	}
	wanted := make([]int64, 0, len(choices))
	seen := make(map[int64]bool, len(choices))
	for _, id := range choices {
		if !known[id] {
			return nil, common.NotFound("poll option")
		}
		if !seen[id] {
			seen[id] = true
			wanted = append(wanted, id)
		}
	}

	replace := !poll.AllowsMultipleChoices()
	if replace {
		if len(wanted) > 1 {
			return nil, common.NotPermitted("this poll accepts a single choice")
		}
	} else {
		voted, err := service.userVotes(ctx, poll, userID)
		if err != nil {
			return nil, err
		}
		already := make(map[int64]bool, len(voted))
		for _, id := range voted {
			already[id] = true
		}
		fresh := make([]int64, 0, len(wanted))
		for _, id := range wanted {
			if !already[id] {
				fresh = append(fresh, id)
			}
		}
		if poll.MaxChoicesPerUser != -1 && int64(len(voted)+len(fresh)) > poll.MaxChoicesPerUser {
			return nil, common.NotPermitted("too many choices")
		}
		wanted = fresh
	}

	if err := dao.StoreInstance.Vote(ctx, poll, userID, wanted, replace); err != nil {
		return nil, service.report("Vote dao.StoreInstance.Vote", err)
	}
	return service.PollResults(ctx, topicID, userID)
}

// RemoveVotes withdraws every choice of userID, when the poll allows changing votes.
func (service *Service) RemoveVotes(ctx context.Context, topicID, userID int64) (*PollResults, error) {
	if frozen() {
		return nil, common.NotPermitted("the archive is read-only")
	}
	poll, err := dao.StoreInstance.GetPollByTopic(ctx, topicID)
	if err != nil {
		return nil, service.report("RemoveVotes dao.StoreInstance.GetPollByTopic", err)
	}
	if !poll.IsActive(service.now()) {
		return nil, common.NotPermitted("the poll is closed")
	}
	if !poll.CanChangeVote {
		return nil, common.NotPermitted("votes cannot be changed on this poll")
	}
	if err := dao.StoreInstance.Vote(ctx, poll, userID, nil, true); err != nil {
		return nil, service.report("RemoveVotes dao.StoreInstance.Vote", err)
	}
	return service.PollResults(ctx, topicID, userID)
}

// CreatePoll attaches a poll to a topic. Archive population always opens one day polls.
func (service *Service) CreatePoll(ctx context.Context, req *NewPoll) (*model.Poll, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, common.ValidationFailed("question is required")
	}
	if len(req.Options) < 2 {
		return nil, common.ValidationFailed("a poll needs at least two options")
	}
	if req.MaxChoicesPerUser == 0 || req.MaxChoicesPerUser < -1 {
		return nil, common.ValidationFailed("max choices must be -1 or positive")
	}
	topic, err := dao.StoreInstance.GetTopic(ctx, req.TopicID)
	if err != nil {
		return nil, service.report("CreatePoll dao.StoreInstance.GetTopic", err)
	}
	if topic.IsSubForum {
		return nil, common.ValidationFailed("a subforum cannot hold a poll")
	}

	poll := &model.Poll{
		TopicID:           topic.ID,
		Question:          strings.TrimSpace(req.Question),
		CreatedAt:         service.now(),
		MaxChoicesPerUser: req.MaxChoicesPerUser,
		DaysToVote:        req.DaysToVote,
		CanChangeVote:     req.CanChangeVote,
	}
	if frozen() {
		poll.DaysToVote = 1
	}
	for _, text := range req.Options {
		poll.Options = append(poll.Options, &model.PollOption{Text: strings.TrimSpace(text)})
	}

	if err := dao.StoreInstance.CreatePoll(ctx, poll); err != nil {
		if dao.IsDuplicated(err) {
			return nil, common.ValidationFailed("topic already has a poll")
		}
		return nil, service.report("CreatePoll dao.StoreInstance.CreatePoll", err)
	}
	return poll, nil
}
