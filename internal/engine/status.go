package engine

import (
	"context"

	"autoclock/internal/model"
	"autoclock/internal/settings"
)

type BoundaryStatus struct {
	Action model.Action `json:"action"`
	Time   string       `json:"time"`
	Phase  model.Phase  `json:"phase"`
}

// Status is what every control surface shows.
type Status struct {
	Summary     string                `json:"summary"`
	Today       string                `json:"today"`
	ActiveToday bool                  `json:"active_today"`
	Schedule    settings.ScheduleView `json:"schedule"`
	History     settings.HistoryView  `json:"history"`
	Boundaries  []BoundaryStatus      `json:"boundaries"`
	Running     bool                  `json:"running"`
	Scheduled   bool                  `json:"scheduled"`
	LastCycle   *Report               `json:"last_cycle,omitempty"`
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	sched, err := e.repo.LoadSchedule(ctx)
	if err != nil {
		return Status{}, err
	}
	hist, err := e.repo.LoadHistory(ctx)
	if err != nil {
		return Status{}, err
	}

	now := e.now().In(e.loc)
	today := now.Format(model.DateLayout)
	tod := model.TimeOfDayOf(now)

	in, out := Boundaries(sched)
	var bs []BoundaryStatus
	for _, b := range []Boundary{in, out} {
		bs = append(bs, BoundaryStatus{
			Action: b.Action,
			Time:   b.At.String(),
			Phase:  b.Phase(tod, hist.RecordedOn(b.Action, today)),
		})
	}

	return Status{
		Summary:     sched.Summary(),
		Today:       today,
		ActiveToday: sched.Enabled && sched.ActiveOn(now.Weekday()),
		Schedule:    settings.ViewOf(sched),
		History:     settings.HistoryViewOf(hist),
		Boundaries:  bs,
		Running:     e.Running(),
		LastCycle:   e.LastReport(),
	}, nil
}
