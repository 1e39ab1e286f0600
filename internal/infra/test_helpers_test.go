package infra

// fakeProcesses answers liveness from a fixed set of pids.
type fakeProcesses struct {
	self  int
	alive map[int]struct{}
}

func newFakeProcesses(self int) *fakeProcesses {
	return &fakeProcesses{self: self, alive: map[int]struct{}{}}
}

func (f *fakeProcesses) IsRunning(pid int) bool {
	_, ok := f.alive[pid]
	return ok
}

func (f *fakeProcesses) GetCurrentPID() int { return f.self }

func (f *fakeProcesses) spawn(pid int) { f.alive[pid] = struct{}{} }
