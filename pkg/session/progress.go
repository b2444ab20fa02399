package session

// Progress is the cosmetic upload indicator. It creeps towards Ceiling while
// the request is outstanding and snaps to 100 when it ends; it does not
// reflect transferred bytes.
type Progress struct {
	Step    float64
	Ceiling float64

	value  float64
	active bool
	shown  bool
}

// NewProgress creates an idle bar that advances by step percent per tick.
func NewProgress(step float64) *Progress {
	if step <= 0 {
		step = 5
	}
	return &Progress{Step: step, Ceiling: 95}
}

func (p *Progress) Start() {
	p.value = 0
	p.active = true
	p.shown = true
}

// Tick advances the value and reports whether another tick should be
// scheduled.
func (p *Progress) Tick() bool {
	if !p.active {
		return false
	}
	p.value += p.Step
	if p.value > p.Ceiling {
		p.value = p.Ceiling
	}
	return true
}

func (p *Progress) Complete() {
	p.value = 100
	p.active = false
}

func (p *Progress) Clear() {
	if p.active {
		return
	}
	p.value = 0
	p.shown = false
}

func (p *Progress) Value() float64 { return p.value }
func (p *Progress) Active() bool   { return p.active }
func (p *Progress) Visible() bool  { return p.shown }

// Fraction is Value scaled to [0, 1] for progress bar widgets.
func (p *Progress) Fraction() float64 {
	return p.value / 100
}
