package service

import (
	"context"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/config"
	"github.com/theotor83/utf-rewritten-sub000/dao"
)

// ReconcileCounters rewrites the denormalized counters that drifted from the source rows,
// then drops the live count cache.
func (service *Service) ReconcileCounters(ctx context.Context) (*dao.ReconcileReport, error) {
	if frozen() {
		return nil, common.NotPermitted("the archive is read-only")
	}
	report, err := dao.StoreInstance.ReconcileCounters(ctx, config.Cfg.ForumName, service.now())
	if err != nil {
		return nil, service.report("ReconcileCounters dao.StoreInstance.ReconcileCounters", err)
	}
	if report.Topics+report.Profiles+report.Forum > 0 {
		service.Log.Warnf("[service] ReconcileCounters fixed %d topics, %d profiles, %d forum rows",
			report.Topics, report.Profiles, report.Forum)
		service.invalidateCounts(ctx, nil)
	}
	return report, nil
}
