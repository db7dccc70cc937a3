package records

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"calcweb/internal/domain"
	"calcweb/internal/integrations/calcapi"
)

const DefaultDebounce = 500 * time.Millisecond

const (
	fetchFailed  = "Failed to fetch records"
	deleteFailed = "Failed to delete record"
)

type API interface {
	Records(ctx context.Context, q domain.RecordsQuery) (domain.RecordsPage, error)
	DeleteRecord(ctx context.Context, id string) error
}

type State struct {
	Records      []domain.OperationRecord
	Page         int
	PageSize     int
	Search       string
	TotalPages   int
	TotalRecords int64
	Loading      bool
	Error        string
}

// Controller owns the records view state. Parameter changes schedule a single
// debounced fetch; only the response of the most recently issued fetch is
// applied.
type Controller struct {
	api      API
	log      logrus.FieldLogger
	debounce time.Duration

	base context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	state    State
	timer    *time.Timer
	gen      uint64
	pending  bool
	seq      uint64
	inflight int
	cancel   context.CancelFunc
	changed  chan struct{}
}

func NewController(api API, debounce time.Duration, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if debounce < 0 {
		debounce = 0
	}
	base, stop := context.WithCancel(context.Background())
	return &Controller{
		api:      api,
		log:      log.WithField("component", "records"),
		debounce: debounce,
		base:     base,
		stop:     stop,
		state:    State{PageSize: domain.DefaultPageSize},
		changed:  make(chan struct{}),
	}
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.state
	out.Records = append([]domain.OperationRecord(nil), c.state.Records...)
	return out
}

func (c *Controller) SetPage(page int) {
	if page < 0 {
		page = 0
	}
	c.mu.Lock()
	c.state.Page = page
	c.scheduleLocked()
	c.mu.Unlock()
}

// SetPageSize ignores sizes outside domain.PageSizes and resets the page.
func (c *Controller) SetPageSize(size int) {
	if !domain.ValidPageSize(size) {
		return
	}
	c.mu.Lock()
	c.state.PageSize = size
	c.state.Page = 0
	c.scheduleLocked()
	c.mu.Unlock()
}

func (c *Controller) SetSearch(search string) {
	c.mu.Lock()
	c.state.Search = search
	c.state.Page = 0
	c.scheduleLocked()
	c.mu.Unlock()
}

// Apply replaces all three parameters at once, e.g. from a request URL.
func (c *Controller) Apply(q domain.RecordsQuery) {
	if q.Page < 0 {
		q.Page = 0
	}
	if !domain.ValidPageSize(q.Size) {
		q.Size = domain.DefaultPageSize
	}
	c.mu.Lock()
	c.state.Page = q.Page
	c.state.PageSize = q.Size
	c.state.Search = q.Search
	c.scheduleLocked()
	c.mu.Unlock()
}

func (c *Controller) Refresh() {
	c.mu.Lock()
	c.scheduleLocked()
	c.mu.Unlock()
}

// Wait blocks until no fetch is scheduled or in flight.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.pending && c.inflight == 0 {
			c.mu.Unlock()
			return nil
		}
		ch := c.changed
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Delete removes a record and refetches the current page once. When the page
// comes back empty past the end, it steps back to the last page.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.api.DeleteRecord(ctx, id); err != nil {
		c.log.WithError(err).WithField("record_id", id).Warn("delete record failed")
		c.mu.Lock()
		c.state.Error = calcapi.UserMessage(err, deleteFailed)
		c.notifyLocked()
		c.mu.Unlock()
		return err
	}

	if !c.fetch(ctx) {
		return nil
	}

	c.mu.Lock()
	stepBack := len(c.state.Records) == 0 && c.state.TotalPages > 0 && c.state.Page >= c.state.TotalPages
	if stepBack {
		c.state.Page = c.state.TotalPages - 1
	}
	c.mu.Unlock()
	if stepBack {
		c.fetch(ctx)
	}
	return nil
}

// Close stops any scheduled fetch and cancels the one in flight.
func (c *Controller) Close() {
	c.mu.Lock()
	c.cancelScheduledLocked()
	c.mu.Unlock()
	c.stop()
}

func (c *Controller) scheduleLocked() {
	c.cancelScheduledLocked()
	c.gen++
	gen := c.gen
	c.pending = true
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen) })
	c.notifyLocked()
}

func (c *Controller) cancelScheduledLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.pending {
		c.pending = false
		c.gen++
		c.notifyLocked()
	}
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.pending = false
	req := c.beginLocked(c.base)
	c.mu.Unlock()
	c.complete(req)
}

type request struct {
	seq    uint64
	ctx    context.Context
	cancel context.CancelFunc
	query  domain.RecordsQuery
}

// fetch issues one request for the current parameters and reports whether
// its response was applied.
func (c *Controller) fetch(parent context.Context) bool {
	c.mu.Lock()
	c.cancelScheduledLocked()
	req := c.beginLocked(parent)
	c.mu.Unlock()
	return c.complete(req)
}

func (c *Controller) beginLocked(parent context.Context) request {
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.inflight++
	c.state.Loading = true
	c.state.Error = ""
	c.notifyLocked()
	return request{
		seq:    c.seq,
		ctx:    ctx,
		cancel: cancel,
		query:  domain.RecordsQuery{Page: c.state.Page, Size: c.state.PageSize, Search: c.state.Search},
	}
}

func (c *Controller) complete(req request) bool {
	page, err := c.api.Records(req.ctx, req.query)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.notifyLocked()
	req.cancel()
	c.inflight--
	if req.seq != c.seq {
		c.log.WithFields(logrus.Fields{"seq": req.seq, "latest": c.seq}).Debug("discarding stale records response")
		return false
	}
	c.cancel = nil
	c.state.Loading = false
	if err != nil {
		c.log.WithError(err).Warn("fetch records failed")
		c.state.Error = calcapi.UserMessage(err, fetchFailed)
		return false
	}
	c.state.Records = page.Content
	c.state.TotalPages = page.TotalPages
	c.state.TotalRecords = page.TotalElements
	return true
}

func (c *Controller) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}
