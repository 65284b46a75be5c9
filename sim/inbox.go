package sim

// Inbox is the FIFO message pipe of one consumer process.
type Inbox struct {
	name    string
	items   []Delivery
	waiters []*Process
}

// NewInbox creates an empty inbox.
func NewInbox(name string) *Inbox {
	return &Inbox{name: name}
}

// Len returns the number of queued deliveries.
func (in *Inbox) Len() int { return len(in.items) }

// Put queues d. The first live waiting process is resumed with it at the current time.
func (in *Inbox) Put(s *Simulator, d Delivery) {
	for len(in.waiters) > 0 {
		p := in.waiters[0]
		in.waiters = in.waiters[1:]
		if p.Stopped() {
			continue
		}
		s.Schedule(0, p, Wake{Reason: WakeReceived, Delivery: &d})
		return
	}
	in.items = append(in.items, d)
}

func (in *Inbox) take() (Delivery, bool) {
	if len(in.items) == 0 {
		return Delivery{}, false
	}
	d := in.items[0]
	in.items = in.items[1:]
	return d, true
}

func (in *Inbox) wait(p *Process) {
	in.waiters = append(in.waiters, p)
}
