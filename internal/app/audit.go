package app

import (
	"context"
	"time"

	"lexibot/internal/delivery"
	"lexibot/internal/eventbus"
	"lexibot/internal/storage"
	logx "lexibot/pkg/logx"
)

// startAudit records delivery steps into storage and logs batch
// summaries. Without storage only the summaries are logged.
func (a *App) startAudit() {
	events, unsub := a.bus.Subscribe(256, "delivery.")
	a.sup.Go0("delivery.audit", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				// flush what the last batch already published
				for {
					select {
					case e := <-events:
						a.audit(e)
					default:
						return
					}
				}
			case e, ok := <-events:
				if !ok {
					return
				}
				a.audit(e)
			}
		}
	})
}

func (a *App) audit(e eventbus.Event) {
	switch ev := e.Data.(type) {
	case delivery.ItemEvent:
		if a.store == nil {
			return
		}
		rec := storage.DeliveryRecord{
			At:        e.Time,
			BatchID:   ev.BatchID,
			Kind:      string(ev.Kind),
			Source:    ev.Source,
			ChatID:    ev.Target.ChatID,
			ThreadID:  ev.Target.ThreadID,
			Seq:       ev.Seq,
			MessageID: ev.MessageID,
			Status:    ev.Status,
			Error:     ev.Err,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.store.AppendDelivery(ctx, rec); err != nil {
			a.log.Warn("delivery audit write failed", logx.String("batch", ev.BatchID), logx.Err(err))
		}
	case delivery.Report:
		if e.Type != delivery.EventDone {
			return
		}
		a.log.Debug("batch report",
			logx.String("batch", ev.BatchID),
			logx.String("kind", string(ev.Kind)),
			logx.Int("sent", ev.Sent),
			logx.Int("total", ev.Total),
			logx.Bool("complete", ev.Complete()),
		)
	}
}
