package stats

type MockStatsUpdater struct{}

func (m *MockStatsUpdater) Incr(name string)           {}
func (m *MockStatsUpdater) Decr(name string)           {}
func (m *MockStatsUpdater) RegisterMetric(name string) {}
func (m *MockStatsUpdater) Run()                       {}
