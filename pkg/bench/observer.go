package bench

// Observer receives trial events as they happen. Sample may be called from
// several goroutines at once.
type Observer interface {
	TrialStarted(strategy string, op Op)
	SetupDone(strategy string, op Op, encodedSize int)
	Sample(s Sample)
	TrialFailed(strategy string, op Op, err error)
	TrialDone(res *TrialResult)
}

// NopObserver ignores every event. Embed it to implement only some methods.
type NopObserver struct{}

func (NopObserver) TrialStarted(string, Op)       {}
func (NopObserver) SetupDone(string, Op, int)     {}
func (NopObserver) Sample(Sample)                 {}
func (NopObserver) TrialFailed(string, Op, error) {}
func (NopObserver) TrialDone(*TrialResult)        {}

type multiObserver []Observer

func (m multiObserver) TrialStarted(strategy string, op Op) {
	for _, o := range m {
		o.TrialStarted(strategy, op)
	}
}

func (m multiObserver) SetupDone(strategy string, op Op, encodedSize int) {
	for _, o := range m {
		o.SetupDone(strategy, op, encodedSize)
	}
}

func (m multiObserver) Sample(s Sample) {
	for _, o := range m {
		o.Sample(s)
	}
}

func (m multiObserver) TrialFailed(strategy string, op Op, err error) {
	for _, o := range m {
		o.TrialFailed(strategy, op, err)
	}
}

func (m multiObserver) TrialDone(res *TrialResult) {
	for _, o := range m {
		o.TrialDone(res)
	}
}
