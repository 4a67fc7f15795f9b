package app

import (
	"context"
	"strings"

	"lexibot/internal/config"
	logx "lexibot/pkg/logx"
)

// reloadLoop applies hot-reloadable config sections as the manager
// publishes them.
func (a *App) reloadLoop(c context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.apply(last, newCfg)
			last = newCfg
		}
	}
}

func (a *App) apply(oldCfg, newCfg *config.Config) {
	ch := config.SummarizeChange(oldCfg, newCfg)
	if len(ch.Sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if r := ch.RestartOnly(); len(r) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.String("sections", strings.Join(r, ",")))
	}
	if ch.Has("content") && oldCfg != nil && oldCfg.Content.Dir != newCfg.Content.Dir {
		a.log.Warn("content.dir changed; restart required for changes to take effect")
	}

	if ch.Has("logging") {
		a.logs.Apply(logConfig(newCfg))
	}
	if ch.Has("delivery") {
		if pol, err := deliveryPolicy(newCfg); err != nil {
			a.log.Warn("invalid delivery config; keeping previous", logx.Err(err))
		} else {
			a.pipeline.SetPolicy(pol)
		}
	}
	if ch.Has("telegram") {
		if d, err := handlerTimeout(newCfg); err == nil {
			a.router.SetTimeout(d)
		}
	}
	if ch.Has("content") {
		a.lessons.SetSettings(lessonSettings(newCfg))
	}
	if ch.Has("schedules") {
		if err := a.sched.Apply(newCfg.Timezone, scheduleDefs(newCfg)); err != nil {
			a.log.Warn("invalid schedules; keeping previous", logx.Err(err))
		} else {
			a.logSchedules()
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Attrs...)
	a.log.Info("config reloaded", fields...)
}
