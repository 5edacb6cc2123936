package stats

import (
	"context"
	"io"

	"github.com/verte-zerg/codetype/internal/model"
	"github.com/verte-zerg/codetype/internal/store"
)

const (
	recentRunsShown = 10
	charRowsShown   = 15
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Runs           []model.RunAggregate
	WindowRunIDs   []int64
	CharAggsAll    []model.CharAggregate
	CharAggsWindow []model.CharAggregate
	CurveWindow    int
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig) (Report, error) {
	runs, err := st.ListRuns(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(runs) > cfg.Last {
		runs = runs[len(runs)-cfg.Last:]
	}

	allIDs := runIDs(runs)
	windowIDs := lastRunIDs(runs, cfg.CurveWindow)
	charAggsAll, err := st.ListCharAggregatesForRuns(ctx, allIDs)
	if err != nil {
		return Report{}, err
	}
	charAggsWindow, err := st.ListCharAggregatesForRuns(ctx, windowIDs)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Runs:           runs,
		WindowRunIDs:   windowIDs,
		CharAggsAll:    charAggsAll,
		CharAggsWindow: charAggsWindow,
		CurveWindow:    cfg.CurveWindow,
	}, nil
}

// Render writes the whole report. Width sizes the trend lines; 0 leaves them unsized.
func (r Report) Render(w io.Writer, width int) error {
	if err := RenderSummary(w, r.Runs); err != nil {
		return err
	}
	if len(r.Runs) == 0 {
		return nil
	}
	if err := RenderCurves(w, r.Runs, r.CurveWindow, width); err != nil {
		return err
	}
	if err := RenderRunTable(w, r.Runs, recentRunsShown); err != nil {
		return err
	}
	return RenderCharTable(w, r.CharAggsWindow, charRowsShown)
}

func runIDs(runs []model.RunAggregate) []int64 {
	ids := make([]int64, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}

func lastRunIDs(runs []model.RunAggregate, window int) []int64 {
	if window <= 0 || len(runs) <= window {
		return runIDs(runs)
	}
	return runIDs(runs[len(runs)-window:])
}
