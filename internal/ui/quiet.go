package ui

// quietPresenter consumes events but produces no output.
type quietPresenter struct {
	tally tally
}

func (p *quietPresenter) Run(events <-chan Event) error {
	for ev := range events {
		p.tally.observe(ev)
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}
