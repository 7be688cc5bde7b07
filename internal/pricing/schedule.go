package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// StartCron запускает проходы poller'а по cron-расписанию вместо
// фиксированного интервала (PRICE_SYNC_CRON).
func (p *Poller) StartCron(ctx context.Context, expr string) error {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("parse cron expression %q: %w", expr, err)
	}

	ctx, p.cancel = context.WithCancel(ctx)

	c := cron.New(cron.WithParser(cronParser), cron.WithLogger(cron.DiscardLogger))
	c.Schedule(schedule, cron.FuncJob(func() {
		p.SyncOnce(ctx)
	}))
	c.Start()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		<-ctx.Done()
		<-c.Stop().Done()
	}()

	p.logger.Info("price poller started", slog.String("cron", expr))
	return nil
}
