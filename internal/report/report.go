// Package report renders the end-of-day operator report as a PDF.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/boothworks/prizebooth/internal/config"
	"github.com/boothworks/prizebooth/internal/prize/domain"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	mconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Generator builds the daily PDF from the admin stats surface.
type Generator struct {
	service  domain.Service
	settings *config.SettingsHolder
	log      *zap.Logger
}

func NewGenerator(service domain.Service, settings *config.SettingsHolder, log *zap.Logger) *Generator {
	return &Generator{
		service:  service,
		settings: settings,
		log:      log.Named("report"),
	}
}

// DailyReport renders the per-prize award summary and voucher stock for
// one date.
func (g *Generator) DailyReport(ctx context.Context, date string) (io.Reader, error) {
	stats, err := g.service.Stats(ctx, date)
	if err != nil {
		return nil, err
	}

	cfg := mconfig.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)
	machine := g.settings.Get().MachineName

	m.AddRow(25,
		text.NewCol(8, "Daily Prize Report", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, machine, props.Text{
			Size:  10,
			Align: align.Right,
			Top:   4,
		}),
	)

	m.AddRow(18,
		col.New(6).Add(
			text.New("Date: "+stats.Date, props.Text{Top: 0}),
			text.New("Active plan: "+stats.ActivePlan, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New(fmt.Sprintf("Total plays: %d", stats.PlayStats.TotalPlays), props.Text{Top: 0, Align: align.Right}),
			text.New(fmt.Sprintf("Prizes awarded: %d", stats.TotalAwarded), props.Text{Top: 5, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(4, "Prize", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Awarded", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Remaining", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Vouchers", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, prize := range stats.Prizes {
		m.AddRow(8,
			text.NewCol(4, prize.Name, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", prize.Awarded), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, fmt.Sprintf("%d", prize.Total), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, fmt.Sprintf("%d", prize.Remaining), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, fmt.Sprintf("%d", prize.VouchersRemaining), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(14,
		col.New(4),
		text.NewCol(4, "Consolations", props.Text{Size: 9, Top: 4}),
		text.NewCol(4, fmt.Sprintf("%d", stats.PlayStats.ConsolationPrizes), props.Text{Size: 9, Top: 4, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(4),
		text.NewCol(4, "Scheduled awards", props.Text{Size: 9}),
		text.NewCol(4, fmt.Sprintf("%d", stats.PlayStats.ScheduledPrizes), props.Text{Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	g.log.Info("daily report generated", zap.String("date", date))
	return bytes.NewReader(doc.GetBytes()), nil
}

var Module = fx.Module("report",
	fx.Provide(NewGenerator),
)
