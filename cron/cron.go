package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/theotor83/utf-rewritten-sub000/common"
)

var log = common.GetLogger()

// Cron schedules the maintenance jobs of the forum. Schedules take a seconds field.
type Cron struct {
	cron *cron.Cron
	jobs map[string]cron.EntryID
}

func NewCron() *Cron {
	cronLog := cron.VerbosePrintfLogger(log)
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog)),
	)
	return &Cron{
		cron: c,
		jobs: map[string]cron.EntryID{},
	}
}

// AddJob registers cmd under name. A name can only be registered once.
func (c *Cron) AddJob(name, spec string, cmd func()) error {
	if _, ok := c.jobs[name]; ok {
		return fmt.Errorf("[cron] job %s already registered", name)
	}
	id, err := c.cron.AddFunc(spec, func() {
		start := time.Now()
		cmd()
		log.Debugf("[cron] %s done in %v", name, time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("[cron] add job %s (%q) err: %v", name, spec, err)
	}
	c.jobs[name] = id
	return nil
}

// Next is the next scheduled run of the named job, zero when unknown or not started.
func (c *Cron) Next(name string) time.Time {
	id, ok := c.jobs[name]
	if !ok {
		return time.Time{}
	}
	return c.cron.Entry(id).Next
}

func (c *Cron) Start() {
	c.cron.Start()
}

// Stop waits for running jobs to return.
func (c *Cron) Stop() {
	<-c.cron.Stop().Done()
}
