package cron

import (
	"context"
	"errors"

	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
	"github.com/theotor83/utf-rewritten-sub000/service"
)

// ReconcileCounters runs on a single replica at a time.
func (c *Cron) ReconcileCounters() {
	ctx := context.Background()

	f := func() error {
		_, err := service.Instance.ReconcileCounters(ctx)
		return err
	}

	// with redis lock
	err := dao.RedisInstance.LockWrap(ctx, model.KeyLockReconcile(), f)
	if errors.Is(err, dao.ErrLockHeld) {
		log.Infof("[cron] ReconcileCounters skipped, running elsewhere")
		return
	}
	if err != nil {
		log.Errorf("[cron] ReconcileCounters dao.RedisInstance.LockWrap err: %v", err)
	}
}
