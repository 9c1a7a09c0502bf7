package dao

import (
	"context"

	"gorm.io/gorm"

	"github.com/theotor83/utf-rewritten-sub000/model"
)

func (dao *Store) GetPollByTopic(ctx context.Context, topicID int64) (*model.Poll, error) {
	poll := &model.Poll{}
	err := dao.db(ctx).Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("topic_id = ?", topicID).First(poll).Error
	if err != nil {
		return nil, notFoundOr(err, "poll")
	}
	return poll, nil
}

func (dao *Store) CreatePoll(ctx context.Context, poll *model.Poll) error {
	if err := dao.db(ctx).Create(poll).Error; err != nil {
		dao.Log.Errorf("[dao] Create(poll) err: %v", err)
		return err
	}
	return nil
}

// VoteCounts counts distinct voters per option.
func (dao *Store) VoteCounts(ctx context.Context, optionIDs []int64) (map[int64]int64, error) {
	res := make(map[int64]int64, len(optionIDs))
	if len(optionIDs) == 0 {
		return res, nil
	}
	rows := make([]*rootCount, 0)
	err := dao.db(ctx).Model(&model.PollOptionVoter{}).
		Select("poll_option_id AS root_id, COUNT(DISTINCT user_id) AS total").
		Where("poll_option_id IN ?", optionIDs).
		Group("poll_option_id").Scan(&rows).Error
	if err != nil {
		dao.Log.Errorf("[dao] VoteCounts err: %v", err)
		return res, err
	}
	for _, r := range rows {
		res[r.RootID] = r.Total
	}
	return res, nil
}

// UserVotes lists the options of the poll a user voted for.
func (dao *Store) UserVotes(ctx context.Context, optionIDs []int64, userID int64) ([]int64, error) {
	voted := make([]int64, 0)
	if len(optionIDs) == 0 {
		return voted, nil
	}
	err := dao.db(ctx).Model(&model.PollOptionVoter{}).
		Where("poll_option_id IN ? AND user_id = ?", optionIDs, userID).
		Order("poll_option_id").Pluck("poll_option_id", &voted).Error
	if err != nil {
		dao.Log.Errorf("[dao] UserVotes err: %v", err)
	}
	return voted, err
}

// Vote records the user's choices. With replace set, the previous choices in the poll are dropped first.
func (dao *Store) Vote(ctx context.Context, poll *model.Poll, userID int64, optionIDs []int64, replace bool) error {
	allOptions := make([]int64, 0, len(poll.Options))
	for _, o := range poll.Options {
		allOptions = append(allOptions, o.ID)
	}

	return dao.db(ctx).Transaction(func(tx *gorm.DB) error {
		if replace && len(allOptions) > 0 {
			if err := tx.Where("poll_option_id IN ? AND user_id = ?", allOptions, userID).
				Delete(&model.PollOptionVoter{}).Error; err != nil {
				dao.Log.Errorf("[dao] Vote delete previous err: %v", err)
				return err
			}
		}
		voters := make([]*model.PollOptionVoter, 0, len(optionIDs))
		for _, id := range optionIDs {
			voters = append(voters, &model.PollOptionVoter{PollOptionID: id, UserID: userID})
		}
		if len(voters) == 0 {
			return nil
		}
		if err := tx.Create(&voters).Error; err != nil {
			dao.Log.Errorf("[dao] Vote Create(voters) err: %v", err)
			return err
		}
		return nil
	})
}
