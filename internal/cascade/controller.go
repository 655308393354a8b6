package cascade

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/booking-cascade/internal/availability"
	"github.com/wolfman30/booking-cascade/internal/clock"
	"github.com/wolfman30/booking-cascade/internal/schedule"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

// StaleObserver is told about every fetch result discarded as stale.
type StaleObserver interface {
	ObserveStaleDrop(field string)
}

// Options configures a Controller.
type Options struct {
	// ID tags log lines; the form host passes the session id.
	ID       string
	Gateway  availability.Gateway
	Clock    clock.Clock
	Logger   *logging.Logger
	Metrics  StaleObserver
	Messages Messages
	// FetchTimeout bounds each gateway call. Zero means no bound.
	FetchTimeout time.Duration
	// EventBuffer is the default channel size for Subscribe.
	EventBuffer int
}

type command struct {
	apply func() error
	reply chan error
}

type result struct {
	field Field
	gen   uint64
	key   string
	apply func()
}

// Controller runs the field state machine of one booking form on its own
// goroutine. All exported methods are safe for concurrent use.
type Controller struct {
	id       string
	gateway  availability.Gateway
	clock    clock.Clock
	logger   *logging.Logger
	metrics  StaleObserver
	messages Messages
	timeout  time.Duration
	buffer   int

	cmds      chan command
	results   chan result
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	fetchCtx    context.Context
	cancelFetch context.CancelFunc

	// Owned by the loop goroutine.
	state       FormState
	gens        map[Field]uint64
	cancels     map[Field]context.CancelFunc
	slots       []schedule.Slot
	inflight    int
	idleWaiters []chan struct{}
	subs        map[int]chan Event
	nextSub     int
}

// New starts a controller and begins loading the specialty catalog.
func New(opts Options) (*Controller, error) {
	if opts.Gateway == nil {
		return nil, ErrNoGateway
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 32
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:          opts.ID,
		gateway:     opts.Gateway,
		clock:       opts.Clock,
		logger:      opts.Logger.Component("cascade").With("form_id", opts.ID),
		metrics:     opts.Metrics,
		messages:    opts.Messages.withDefaults(),
		timeout:     opts.FetchTimeout,
		buffer:      opts.EventBuffer,
		cmds:        make(chan command),
		results:     make(chan result),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		fetchCtx:    ctx,
		cancelFetch: cancel,
		gens:        make(map[Field]uint64),
		cancels:     make(map[Field]context.CancelFunc),
		subs:        make(map[int]chan Event),
	}
	c.state = c.initialState()
	c.loadSpecialties()

	go c.run()
	return c, nil
}

func (c *Controller) initialState() FormState {
	return FormState{
		Specialty: FieldState{Status: StatusLoading, Placeholder: c.messages.Loading},
		Provider:  FieldState{Status: StatusDisabled, Placeholder: c.messages.ProviderPlaceholder},
		Date:      FieldState{Status: StatusDisabled},
		Time:      FieldState{Status: StatusDisabled, Placeholder: c.messages.TimePlaceholder},
	}
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case cmd := <-c.cmds:
			cmd.reply <- cmd.apply()
		case res := <-c.results:
			c.inflight--
			c.deliver(res)
			c.notifyIdle()
		case <-c.quit:
			c.shutdown()
			return
		}
	}
}

func (c *Controller) shutdown() {
	c.cancelFetch()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.idleWaiters = nil
}

// do runs fn on the loop goroutine and returns its error.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	cmd := command{apply: fn, reply: make(chan error, 1)}
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SpecialtyChanged selects a specialty. An empty id clears the selection.
func (c *Controller) SpecialtyChanged(ctx context.Context, specialtyID string) error {
	return c.do(ctx, func() error { return c.onSpecialtyChanged(specialtyID) })
}

// ProviderChanged selects a provider. An empty id clears the selection.
func (c *Controller) ProviderChanged(ctx context.Context, providerID string) error {
	return c.do(ctx, func() error { return c.onProviderChanged(providerID) })
}

// DateChanged selects a YYYY-MM-DD date. An empty value clears the selection.
func (c *Controller) DateChanged(ctx context.Context, date string) error {
	return c.do(ctx, func() error { return c.onDateChanged(date) })
}

// TimeChanged selects one of the offered HH:MM times. An empty value clears the selection.
func (c *Controller) TimeChanged(ctx context.Context, t string) error {
	return c.do(ctx, func() error { return c.onTimeChanged(t) })
}

// ReloadSpecialties clears the form and fetches the specialty catalog again.
func (c *Controller) ReloadSpecialties(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.resetBelowSpecialty()
		c.state.Specialty.Value = ""
		c.loadSpecialties()
		return nil
	})
}

// Notify publishes a notice raised outside the controller, such as a
// confirmation problem, on the form's event stream.
func (c *Controller) Notify(ctx context.Context, n Notice) error {
	return c.do(ctx, func() error {
		c.notice(n.Level, n.Field, n.Message)
		return nil
	})
}

// Snapshot returns a copy of the current form state.
func (c *Controller) Snapshot(ctx context.Context) (FormState, error) {
	var out FormState
	err := c.do(ctx, func() error {
		out = c.state.clone()
		return nil
	})
	return out, err
}

// WaitIdle blocks until no fetch is in flight.
func (c *Controller) WaitIdle(ctx context.Context) error {
	var ch chan struct{}
	err := c.do(ctx, func() error {
		ch = make(chan struct{})
		if c.inflight == 0 {
			close(ch)
			return nil
		}
		c.idleWaiters = append(c.idleWaiters, ch)
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel of field and notice events. The channel is
// closed when the controller stops or cancel is called. Events are dropped
// for a subscriber whose buffer is full.
func (c *Controller) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	var (
		id int
		ch chan Event
	)
	err := c.do(ctx, func() error {
		id = c.nextSub
		c.nextSub++
		ch = make(chan Event, c.buffer)
		c.subs[id] = ch
		return nil
	})
	if err != nil {
		return nil, func() {}, err
	}
	cancel := func() {
		_ = c.do(context.Background(), func() error {
			if sub, ok := c.subs[id]; ok {
				close(sub)
				delete(c.subs, id)
			}
			return nil
		})
	}
	return ch, cancel, nil
}

// Close stops the loop and abandons in-flight fetches.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() { close(c.quit) })
	<-c.done
	return nil
}

// Done is closed once the controller has stopped.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) notifyIdle() {
	if c.inflight > 0 {
		return
	}
	for _, w := range c.idleWaiters {
		close(w)
	}
	c.idleWaiters = nil
}

func (c *Controller) publish(ev Event) {
	for id, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.logger.Warn("dropping form event for slow subscriber", "subscriber", id, "kind", ev.Kind, "field", ev.Field)
		}
	}
}

func (c *Controller) setField(f Field, fs FieldState) {
	*c.state.ptr(f) = fs
	snapshot := fs.clone()
	c.publish(Event{Kind: EventField, Field: f, State: &snapshot})
}

func (c *Controller) notice(level NoticeLevel, f Field, msg string) {
	n := Notice{Level: level, Field: f, Message: msg}
	c.state.Notice = &n
	cp := n
	c.publish(Event{Kind: EventNotice, Field: f, Notice: &cp})
}

// invalidate bumps the generation of field f so that any outstanding fetch
// feeding it is recognised as stale, and cancels that fetch.
func (c *Controller) invalidate(f Field) uint64 {
	if cancel, ok := c.cancels[f]; ok {
		cancel()
		delete(c.cancels, f)
	}
	c.gens[f]++
	return c.gens[f]
}

// fetch runs call on its own goroutine and hands its outcome back to the
// loop. The outcome is applied only if field f still has generation gen
// and key still describes the current selection.
func (c *Controller) fetch(f Field, key string, call func(ctx context.Context) func()) {
	gen := c.invalidate(f)
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(c.fetchCtx, c.timeout)
	} else {
		ctx, cancel = context.WithCancel(c.fetchCtx)
	}
	c.cancels[f] = cancel
	c.inflight++

	go func() {
		defer cancel()
		apply := call(ctx)
		select {
		case c.results <- result{field: f, gen: gen, key: key, apply: apply}:
		case <-c.done:
		}
	}()
}

func (c *Controller) deliver(res result) {
	if res.gen != c.gens[res.field] || res.key != c.selectionKey(res.field) {
		c.logger.Debug("discarding stale fetch result", "field", res.field, "key", res.key)
		if c.metrics != nil {
			c.metrics.ObserveStaleDrop(string(res.field))
		}
		return
	}
	delete(c.cancels, res.field)
	res.apply()
}

// selectionKey describes the upstream selection a field's options depend on.
func (c *Controller) selectionKey(f Field) string {
	switch f {
	case FieldProvider:
		return c.state.Specialty.Value
	case FieldTime:
		return c.state.Provider.Value + "|" + c.state.Date.Value
	default:
		return ""
	}
}
