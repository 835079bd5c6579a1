package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/mailer"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/sla"
)

type fakeTickets struct {
	mu     sync.Mutex
	seq    int
	rows   map[string]domain.Ticket
	writes int
	// beforeWrite runs inside conditional writes, before the condition is checked.
	beforeWrite func(rows map[string]domain.Ticket)
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{rows: map[string]domain.Ticket{}}
}

func (f *fakeTickets) seed(ticket domain.Ticket) *domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ticket.ID == "" {
		f.seq++
		ticket.ID = fmt.Sprintf("ticket-%d", f.seq)
	}
	f.rows[ticket.ID] = ticket
	return &ticket
}

func (f *fakeTickets) get(id string) (domain.Ticket, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	return t, ok
}

func (f *fakeTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", f.seq)
	f.rows[ticket.ID] = *ticket
	f.writes++
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (f *fakeTickets) Update(_ context.Context, ticket *domain.Ticket, expectedAssignee *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beforeWrite != nil {
		f.beforeWrite(f.rows)
	}
	current, ok := f.rows[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if !sameAssignee(current.AssignedToID, expectedAssignee) {
		return repository.ErrConflict
	}
	current.Title = ticket.Title
	current.Description = ticket.Description
	current.Priority = ticket.Priority
	current.AssignedToID = ticket.AssignedToID
	current.DeadlineForecast = ticket.DeadlineForecast
	current.SLAHours = ticket.SLAHours
	current.UpdatedAt = ticket.UpdatedAt
	f.rows[ticket.ID] = current
	f.writes++
	return nil
}

func (f *fakeTickets) TransitionStatus(_ context.Context, ticket *domain.Ticket, from domain.TicketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beforeWrite != nil {
		f.beforeWrite(f.rows)
	}
	current, ok := f.rows[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if current.Status != from {
		return repository.ErrConflict
	}
	current.Status = ticket.Status
	current.DeliveryDate = ticket.DeliveryDate
	current.ClosedAt = ticket.ClosedAt
	current.ExecutionTime = ticket.ExecutionTime
	current.UpdatedAt = ticket.UpdatedAt
	f.rows[ticket.ID] = current
	f.writes++
	return nil
}

func (f *fakeTickets) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.rows, id)
	f.writes++
	return nil
}

func (f *fakeTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Ticket
	for _, t := range f.rows {
		if filter.CustomerID != nil && t.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.AssigneeID != nil && !t.IsAssignedTo(*filter.AssigneeID) && !(filter.IncludeUnassigned && t.Unassigned()) {
			continue
		}
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeTickets) ListDeadlineCandidates(_ context.Context, now, horizon time.Time, _ int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Ticket
	for _, t := range f.rows {
		if t.AssignedToID == nil || t.DeadlineForecast == nil || t.Status.Terminal() || t.Status == domain.TicketStatusDone {
			continue
		}
		if t.DeadlineForecast.After(now) && !t.DeadlineForecast.After(horizon) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeTickets) CountByStatus(context.Context) (map[domain.TicketStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[domain.TicketStatus]int{}
	for _, t := range f.rows {
		counts[t.Status]++
	}
	return counts, nil
}

func (f *fakeTickets) CountByAssignee(context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, t := range f.rows {
		if t.AssignedToID != nil && !t.Status.Terminal() {
			counts[*t.AssignedToID]++
		}
	}
	return counts, nil
}

func (f *fakeTickets) CountSLABreaches(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.rows {
		t := t
		if sla.Breached(&t) {
			n++
		}
	}
	return n, nil
}

type fakeHistory struct {
	mu   sync.Mutex
	rows []domain.TicketHistory
	err  error
}

func (f *fakeHistory) Create(_ context.Context, h *domain.TicketHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	h.ID = fmt.Sprintf("history-%d", len(f.rows)+1)
	f.rows = append(f.rows, *h)
	return nil
}

func (f *fakeHistory) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.TicketHistory
	for _, h := range f.rows {
		if h.TicketID == ticketID {
			result = append(result, h)
		}
	}
	return result, nil
}

func (f *fakeHistory) byAction(ticketID string, action domain.HistoryAction) []domain.TicketHistory {
	rows, _ := f.ListByTicket(context.Background(), ticketID)
	var result []domain.TicketHistory
	for _, h := range rows {
		if h.ActionType == action {
			result = append(result, h)
		}
	}
	return result
}

type fakeMessages struct {
	mu      sync.Mutex
	rows    []domain.TicketMessage
	tickets *fakeTickets
}

func (f *fakeMessages) Create(_ context.Context, msg *domain.TicketMessage) error {
	if _, ok := f.tickets.get(msg.TicketID); !ok {
		return pgx.ErrNoRows
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = fmt.Sprintf("msg-%d", len(f.rows)+1)
	f.rows = append(f.rows, *msg)
	return nil
}

func (f *fakeMessages) CreateBatch(ctx context.Context, msgs []*domain.TicketMessage) error {
	for _, msg := range msgs {
		if err := f.Create(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeMessages) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.TicketMessage
	for _, m := range f.rows {
		if m.TicketID == ticketID {
			result = append(result, m)
		}
	}
	return result, nil
}

type fakeUsers struct {
	mu   sync.Mutex
	rows map[string]domain.User
}

func newFakeUsers(users ...domain.User) *fakeUsers {
	f := &fakeUsers{rows: map[string]domain.User{}}
	for _, u := range users {
		f.rows[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.Email == user.Email {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	user.ID = fmt.Sprintf("user-%d", len(f.rows)+1)
	f.rows[user.ID] = *user
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type notifyCall struct {
	kind     string
	ticketID string
	target   string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (r *recordingNotifier) TicketAssigned(_ context.Context, ticket *domain.Ticket, assigneeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, notifyCall{kind: "assigned", ticketID: ticket.ID, target: assigneeID})
}

func (r *recordingNotifier) TicketStatusChanged(_ context.Context, ticket *domain.Ticket, status domain.TicketStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, notifyCall{kind: "status", ticketID: ticket.ID, target: string(status)})
}

func (r *recordingNotifier) snapshot() []notifyCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifyCall(nil), r.calls...)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Email
	err  error
}

func (r *recordingSender) Send(_ context.Context, email mailer.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, email)
	return nil
}

func (r *recordingSender) emails() []mailer.Email {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mailer.Email(nil), r.sent...)
}

// drain returns every event currently buffered on sub.
func drain(sub *events.Subscription) []events.Event {
	var out []events.Event
	for {
		select {
		case evt := <-sub.Events():
			out = append(out, evt)
		default:
			return out
		}
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
