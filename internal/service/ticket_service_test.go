package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/policy"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

var (
	adminP    = domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
	techP     = domain.Principal{UserID: "tech-1", Role: domain.RoleTech}
	otherTech = domain.Principal{UserID: "tech-2", Role: domain.RoleTech}
	customerP = domain.Principal{UserID: "cust-1", Role: domain.RoleUser}
	strangerP = domain.Principal{UserID: "cust-2", Role: domain.RoleUser}
)

type harness struct {
	svc      *TicketService
	tickets  *fakeTickets
	history  *fakeHistory
	messages *fakeMessages
	notifier *recordingNotifier
	metrics  *observability.Metrics
	sub      *events.Subscription
	clock    *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tickets := newFakeTickets()
	h := &harness{
		tickets:  tickets,
		history:  &fakeHistory{},
		messages: &fakeMessages{tickets: tickets},
		notifier: &recordingNotifier{},
		metrics:  observability.NewMetrics(),
		clock:    &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	users := newFakeUsers(
		domain.User{ID: adminP.UserID, Email: "admin@desk.test", Role: domain.RoleAdmin},
		domain.User{ID: techP.UserID, Email: "tech1@desk.test", Role: domain.RoleTech},
		domain.User{ID: otherTech.UserID, Email: "tech2@desk.test", Role: domain.RoleTech},
		domain.User{ID: customerP.UserID, Email: "cust1@desk.test", Role: domain.RoleUser},
		domain.User{ID: strangerP.UserID, Email: "cust2@desk.test", Role: domain.RoleUser},
	)
	bus := events.NewMemoryBus(events.Options{})
	t.Cleanup(bus.Close)
	h.sub = bus.Subscribe(128)

	h.svc = NewTicketService(TicketDependencies{
		TicketRepo:  tickets,
		MessageRepo: h.messages,
		HistoryRepo: h.history,
		UserRepo:    users,
		Bus:         bus,
		Notifier:    h.notifier,
		Metrics:     h.metrics,
		Now:         h.clock.Now,
	})
	return h
}

func (h *harness) seed(status domain.TicketStatus, customer string, assignee *string) *domain.Ticket {
	now := h.clock.Now()
	return h.tickets.seed(domain.Ticket{
		Title:        "VPN drops",
		Description:  "disconnects every hour",
		Status:       status,
		Priority:     domain.TicketPriorityMedium,
		CustomerID:   customer,
		AssignedToID: assignee,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (h *harness) eventTypes() []events.EventType {
	var types []events.EventType
	for _, evt := range drain(h.sub) {
		types = append(types, evt.Type)
	}
	return types
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func TestTicketLifecycleFromOpenToClosed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ticket, err := h.svc.Create(ctx, customerP, CreateTicketInput{
		Title:       "Printer jammed",
		Description: "Paper stuck in tray 2",
		Priority:    domain.TicketPriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, customerP.UserID, ticket.CustomerID)
	assert.Nil(t, ticket.AssignedToID)

	created := h.history.byAction(ticket.ID, domain.HistoryActionStatusChange)
	require.Len(t, created, 1)
	assert.Nil(t, created[0].OldValue)
	assert.Equal(t, "OPEN", *created[0].NewValue)

	_, err = h.svc.AssignToMe(ctx, techP, ticket.ID)
	require.NoError(t, err)

	_, err = h.svc.UpdateStatus(ctx, techP, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)

	_, err = h.svc.UpdateStatus(ctx, techP, ticket.ID, domain.TicketStatusClosed)
	requireCode(t, err, apperrors.CodeInvalidTransition)
	stored, _ := h.tickets.get(ticket.ID)
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)

	h.clock.Advance(3 * time.Hour)
	done, err := h.svc.UpdateStatus(ctx, techP, ticket.ID, domain.TicketStatusDone)
	require.NoError(t, err)
	require.NotNil(t, done.DeliveryDate)
	assert.Equal(t, h.clock.Now(), *done.DeliveryDate)

	h.clock.Advance(90 * time.Minute)
	closed, err := h.svc.UpdateStatus(ctx, techP, ticket.ID, domain.TicketStatusClosed)
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
	require.NotNil(t, closed.ExecutionTime)
	assert.Equal(t, 90, *closed.ExecutionTime)

	_, err = h.svc.UpdateStatus(ctx, adminP, ticket.ID, domain.TicketStatusClosed)
	requireCode(t, err, apperrors.CodeInvalidTransition)

	statusRows := h.history.byAction(ticket.ID, domain.HistoryActionStatusChange)
	require.Len(t, statusRows, 4)
	assert.Equal(t, "DONE", *statusRows[3].OldValue)
	assert.Equal(t, "CLOSED", *statusRows[3].NewValue)
	assert.Len(t, h.history.byAction(ticket.ID, domain.HistoryActionAssignment), 1)

	assert.Equal(t, []notifyCall{{kind: "status", ticketID: ticket.ID, target: "CLOSED"}}, h.notifier.snapshot())
	assert.Equal(t, []events.EventType{
		events.EventTicketCreated,
		events.EventTicketAssigned,
		events.EventTicketStatus,
		events.EventTicketStatus,
		events.EventTicketStatus,
	}, h.eventTypes())
}

func TestIllegalTransitionsLeaveTicketUnchanged(t *testing.T) {
	statuses := []domain.TicketStatus{
		domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusWaiting,
		domain.TicketStatusDone, domain.TicketStatusClosed, domain.TicketStatusCancelled,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			if policy.CanTransition(from, to) {
				continue
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				h := newHarness(t)
				seeded := h.seed(from, customerP.UserID, nil)

				_, err := h.svc.UpdateStatus(context.Background(), adminP, seeded.ID, to)
				requireCode(t, err, apperrors.CodeInvalidTransition)

				stored, ok := h.tickets.get(seeded.ID)
				require.True(t, ok)
				assert.Equal(t, *seeded, stored)
				assert.Zero(t, h.tickets.writes)
				assert.Empty(t, h.history.rows)
				assert.Empty(t, h.eventTypes())
			})
		}
	}
}

func TestUnknownStatusIsValidationError(t *testing.T) {
	h := newHarness(t)
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, nil)

	_, err := h.svc.UpdateStatus(context.Background(), adminP, seeded.ID, "ARCHIVED")
	requireCode(t, err, apperrors.CodeValidation)
}

func TestForeignCustomerIsForbiddenEverywhere(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, strPtr(techP.UserID))
	title := "Hijacked"

	_, err := h.svc.Get(ctx, strangerP, seeded.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.svc.AddComment(ctx, strangerP, seeded.ID, "hello")
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.svc.AddAttachments(ctx, strangerP, seeded.ID, []string{"https://cdn.test/a.png"})
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.svc.UpdateStatus(ctx, strangerP, seeded.ID, domain.TicketStatusCancelled)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.svc.UpdateTicket(ctx, strangerP, seeded.ID, UpdateTicketInput{Title: &title})
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.svc.AssignToMe(ctx, strangerP, seeded.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	requireCode(t, h.svc.Delete(ctx, strangerP, seeded.ID), apperrors.CodeForbidden)

	stored, _ := h.tickets.get(seeded.ID)
	assert.Equal(t, *seeded, stored)
	assert.Zero(t, h.tickets.writes)
	assert.Empty(t, h.messages.rows)
	assert.Empty(t, h.history.rows)
	assert.Empty(t, h.eventTypes())
}

func TestUnauthenticatedCallerIsRejected(t *testing.T) {
	h := newHarness(t)
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, nil)

	_, err := h.svc.Get(context.Background(), domain.Principal{}, seeded.ID)
	requireCode(t, err, apperrors.CodeUnauthorized)
	_, err = h.svc.Create(context.Background(), domain.Principal{UserID: "x", Role: "GUEST"}, CreateTicketInput{})
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestOwnerEditDropsAdvancedFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, nil)

	_, err := h.svc.UpdateStatus(ctx, customerP, seeded.ID, domain.TicketStatusCancelled)
	requireCode(t, err, apperrors.CodeForbidden)

	title := "VPN drops on Wi-Fi"
	critical := domain.TicketPriorityCritical
	updated, err := h.svc.UpdateTicket(ctx, customerP, seeded.ID, UpdateTicketInput{
		Title:        &title,
		Priority:     &critical,
		AssignedToID: strPtr(techP.UserID),
	})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, domain.TicketPriorityMedium, updated.Priority)
	assert.Nil(t, updated.AssignedToID)
	assert.Empty(t, h.history.rows)

	evts := drain(h.sub)
	require.Len(t, evts, 1)
	assert.Equal(t, events.EventTicketUpdated, evts[0].Type)
	assert.Equal(t, events.TicketUpdatedPayload{Fields: []string{"title"}}, evts[0].Payload)
}

func TestUpdateWithoutChangesWritesNothing(t *testing.T) {
	h := newHarness(t)
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, nil)
	same := seeded.Title

	got, err := h.svc.UpdateTicket(context.Background(), adminP, seeded.ID, UpdateTicketInput{Title: &same})
	require.NoError(t, err)
	assert.Equal(t, seeded.Title, got.Title)
	assert.Zero(t, h.tickets.writes)
	assert.Empty(t, h.eventTypes())
}

func TestAdminReassignmentRecordsHistoryAndNotifies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, nil)
	critical := domain.TicketPriorityCritical

	updated, err := h.svc.UpdateTicket(ctx, adminP, seeded.ID, UpdateTicketInput{
		AssignedToID: strPtr(techP.UserID),
		Priority:     &critical,
	})
	require.NoError(t, err)
	assert.True(t, updated.IsAssignedTo(techP.UserID))
	assert.Equal(t, domain.TicketPriorityCritical, updated.Priority)

	assignments := h.history.byAction(seeded.ID, domain.HistoryActionAssignment)
	require.Len(t, assignments, 1)
	assert.Nil(t, assignments[0].OldValue)
	assert.Equal(t, techP.UserID, *assignments[0].NewValue)
	priority := h.history.byAction(seeded.ID, domain.HistoryActionPriorityChange)
	require.Len(t, priority, 1)
	assert.Equal(t, "MEDIUM", *priority[0].OldValue)
	assert.Equal(t, "CRITICAL", *priority[0].NewValue)

	assert.Equal(t, []notifyCall{{kind: "assigned", ticketID: seeded.ID, target: techP.UserID}}, h.notifier.snapshot())
	assert.Equal(t, []events.EventType{events.EventTicketAssigned, events.EventTicketUpdated}, h.eventTypes())

	unassigned, err := h.svc.UpdateTicket(ctx, adminP, seeded.ID, UpdateTicketInput{AssignedToID: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, unassigned.AssignedToID)
	assignments = h.history.byAction(seeded.ID, domain.HistoryActionAssignment)
	require.Len(t, assignments, 2)
	assert.Nil(t, assignments[1].NewValue)
	assert.Len(t, h.notifier.snapshot(), 1)
}

func TestAssigningCustomerIsRejected(t *testing.T) {
	h := newHarness(t)
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, nil)

	_, err := h.svc.UpdateTicket(context.Background(), adminP, seeded.ID, UpdateTicketInput{AssignedToID: strPtr(strangerP.UserID)})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.svc.UpdateTicket(context.Background(), adminP, seeded.ID, UpdateTicketInput{AssignedToID: strPtr("ghost")})
	requireCode(t, err, apperrors.CodeNotFound)
	assert.Zero(t, h.tickets.writes)
}

func TestAssignToMeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, nil)

	first, err := h.svc.AssignToMe(ctx, techP, seeded.ID)
	require.NoError(t, err)
	second, err := h.svc.AssignToMe(ctx, techP, seeded.ID)
	require.NoError(t, err)

	assert.True(t, first.IsAssignedTo(techP.UserID))
	assert.True(t, second.IsAssignedTo(techP.UserID))
	assert.Equal(t, 1, h.tickets.writes)
	assert.Len(t, h.history.byAction(seeded.ID, domain.HistoryActionAssignment), 1)
	assert.Equal(t, []events.EventType{events.EventTicketAssigned}, h.eventTypes())
	assert.Empty(t, h.notifier.snapshot())
}

func TestAssignToMeRejectsCustomersAndTakenTickets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, strPtr(techP.UserID))

	_, err := h.svc.AssignToMe(ctx, customerP, seeded.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.svc.AssignToMe(ctx, otherTech, seeded.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.svc.AssignToMe(ctx, adminP, seeded.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	assert.Zero(t, h.tickets.writes)
}

func TestConcurrentSelfAssignmentResolvesToSuccess(t *testing.T) {
	h := newHarness(t)
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, nil)
	h.tickets.beforeWrite = func(rows map[string]domain.Ticket) {
		row := rows[seeded.ID]
		row.AssignedToID = strPtr(techP.UserID)
		rows[seeded.ID] = row
	}

	got, err := h.svc.AssignToMe(context.Background(), techP, seeded.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAssignedTo(techP.UserID))
	assert.Empty(t, h.history.rows)
	assert.Empty(t, h.eventTypes())
}

func TestConcurrentClaimByAnotherTechIsConflict(t *testing.T) {
	h := newHarness(t)
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, nil)
	h.tickets.beforeWrite = func(rows map[string]domain.Ticket) {
		row := rows[seeded.ID]
		row.AssignedToID = strPtr(otherTech.UserID)
		rows[seeded.ID] = row
	}

	_, err := h.svc.AssignToMe(context.Background(), techP, seeded.ID)
	requireCode(t, err, apperrors.CodeConflict)
	stored, _ := h.tickets.get(seeded.ID)
	assert.True(t, stored.IsAssignedTo(otherTech.UserID))
}

func TestStatusRaceIsConflict(t *testing.T) {
	h := newHarness(t)
	seeded := h.seed(domain.TicketStatusInProgress, customerP.UserID, strPtr(techP.UserID))
	h.tickets.beforeWrite = func(rows map[string]domain.Ticket) {
		row := rows[seeded.ID]
		row.Status = domain.TicketStatusWaiting
		rows[seeded.ID] = row
	}

	_, err := h.svc.UpdateStatus(context.Background(), techP, seeded.ID, domain.TicketStatusDone)
	requireCode(t, err, apperrors.CodeConflict)

	stored, _ := h.tickets.get(seeded.ID)
	assert.Equal(t, domain.TicketStatusWaiting, stored.Status)
	assert.Nil(t, stored.DeliveryDate)
	assert.Empty(t, h.history.rows)
	assert.Empty(t, h.eventTypes())
}

func TestTicketDeletedMidUpdateIsNotFound(t *testing.T) {
	h := newHarness(t)
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, strPtr(techP.UserID))
	h.tickets.beforeWrite = func(rows map[string]domain.Ticket) {
		delete(rows, seeded.ID)
	}

	_, err := h.svc.UpdateStatus(context.Background(), techP, seeded.ID, domain.TicketStatusInProgress)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestHistoryFailureDoesNotFailStatusChange(t *testing.T) {
	h := newHarness(t)
	h.history.err = errors.New("connection reset")
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, strPtr(techP.UserID))

	got, err := h.svc.UpdateStatus(context.Background(), techP, seeded.ID, domain.TicketStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCancelled, got.Status)

	stored, _ := h.tickets.get(seeded.ID)
	assert.Equal(t, domain.TicketStatusCancelled, stored.Status)
	assert.Equal(t, int64(1), h.metrics.Snapshot().BestEffortFailed)
	assert.Equal(t, []notifyCall{{kind: "status", ticketID: seeded.ID, target: "CANCELLED"}}, h.notifier.snapshot())
	assert.Equal(t, []events.EventType{events.EventTicketStatus}, h.eventTypes())
}

func TestCreateValidatesInput(t *testing.T) {
	h := newHarness(t)
	zero := 0

	_, err := h.svc.Create(context.Background(), customerP, CreateTicketInput{
		Title:          "ab",
		Description:    " ",
		Priority:       "URGENT",
		SLAHours:       &zero,
		AttachmentURLs: []string{"ftp://files.test/x"},
	})
	requireCode(t, err, apperrors.CodeValidation)

	details := apperrors.ToDomainError(err).Details
	for _, field := range []string{"title", "description", "priority", "slaHours", "attachments"} {
		assert.Contains(t, details, field)
	}
	assert.Zero(t, h.tickets.writes)
}

func TestCustomerCannotPreassignOrSetSLA(t *testing.T) {
	h := newHarness(t)
	hours := 8
	deadline := h.clock.Now().Add(48 * time.Hour)

	ticket, err := h.svc.Create(context.Background(), customerP, CreateTicketInput{
		Title:            "Laptop won't boot",
		Description:      "Black screen",
		AssigneeID:       strPtr(techP.UserID),
		SLAHours:         &hours,
		DeadlineForecast: &deadline,
	})
	require.NoError(t, err)
	assert.Nil(t, ticket.AssignedToID)
	assert.Nil(t, ticket.SLAHours)
	assert.Nil(t, ticket.DeadlineForecast)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Empty(t, h.notifier.snapshot())
}

func TestStaffCreateWithAssigneeAndAttachments(t *testing.T) {
	h := newHarness(t)
	hours := 4

	ticket, err := h.svc.Create(context.Background(), adminP, CreateTicketInput{
		Title:          "Server room alarm",
		Description:    "Temperature warning",
		Priority:       domain.TicketPriorityCritical,
		AssigneeID:     strPtr(techP.UserID),
		SLAHours:       &hours,
		AttachmentURLs: []string{"https://cdn.test/1.png", "https://cdn.test/2.png"},
	})
	require.NoError(t, err)
	assert.True(t, ticket.IsAssignedTo(techP.UserID))
	require.NotNil(t, ticket.SLAHours)
	assert.Equal(t, 4, *ticket.SLAHours)

	msgs, _ := h.messages.ListByTicket(context.Background(), ticket.ID)
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		assert.Equal(t, domain.MessageTypeImage, msg.Type)
		assert.NotNil(t, msg.FileURL)
	}
	assert.Equal(t, []notifyCall{{kind: "assigned", ticketID: ticket.ID, target: techP.UserID}}, h.notifier.snapshot())
}

func TestCommentsAndAttachments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, strPtr(techP.UserID))

	msg, err := h.svc.AddComment(ctx, techP, seeded.ID, "  Rebooted the router  ")
	require.NoError(t, err)
	assert.Equal(t, "Rebooted the router", msg.Content)
	assert.Equal(t, domain.MessageTypeText, msg.Type)

	_, err = h.svc.AddComment(ctx, customerP, seeded.ID, "   ")
	requireCode(t, err, apperrors.CodeValidation)

	none, err := h.svc.AddAttachments(ctx, customerP, seeded.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	added, err := h.svc.AddAttachments(ctx, customerP, seeded.ID, []string{"https://cdn.test/screen.png"})
	require.NoError(t, err)
	require.Len(t, added, 1)

	_, err = h.svc.AddComment(ctx, customerP, "missing", "hello")
	requireCode(t, err, apperrors.CodeNotFound)

	evts := drain(h.sub)
	require.Len(t, evts, 2)
	assert.Equal(t, events.EventTicketCommented, evts[0].Type)
	assert.Equal(t, events.TicketCommentedPayload{MessageID: msg.ID, Preview: "Rebooted the router"}, evts[0].Payload)
	assert.Equal(t, events.TicketAttachmentsPayload{Count: 1}, evts[1].Payload)
}

func TestListScopesByRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pool := h.seed(domain.TicketStatusOpen, customerP.UserID, nil)
	mineOther := h.seed(domain.TicketStatusOpen, customerP.UserID, strPtr(otherTech.UserID))
	assigned := h.seed(domain.TicketStatusOpen, strangerP.UserID, strPtr(techP.UserID))

	ids := func(tickets []domain.Ticket) []string {
		var out []string
		for _, t := range tickets {
			out = append(out, t.ID)
		}
		return out
	}

	got, err := h.svc.List(ctx, customerP, ListTicketsInput{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{pool.ID, mineOther.ID}, ids(got))

	got, err = h.svc.List(ctx, techP, ListTicketsInput{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{pool.ID, assigned.ID}, ids(got))

	got, err = h.svc.List(ctx, adminP, ListTicketsInput{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestGetIncludesNextStatusesOnlyForActors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, strPtr(techP.UserID))

	details, err := h.svc.Get(ctx, techP, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, policy.NextStatuses(domain.TicketStatusOpen), details.NextStatuses)
	assert.True(t, details.SLA.Applicable)

	details, err = h.svc.Get(ctx, customerP, seeded.ID)
	require.NoError(t, err)
	assert.Empty(t, details.NextStatuses)

	pool := h.seed(domain.TicketStatusOpen, strangerP.UserID, nil)
	_, err = h.svc.Get(ctx, otherTech, pool.ID)
	require.NoError(t, err)
}

func TestDeleteIsAdminOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := h.seed(domain.TicketStatusOpen, customerP.UserID, strPtr(techP.UserID))

	requireCode(t, h.svc.Delete(ctx, techP, seeded.ID), apperrors.CodeForbidden)
	require.NoError(t, h.svc.Delete(ctx, adminP, seeded.ID))

	_, ok := h.tickets.get(seeded.ID)
	assert.False(t, ok)
	assert.Equal(t, []events.EventType{events.EventTicketDeleted}, h.eventTypes())

	_, err := h.svc.Get(ctx, adminP, seeded.ID)
	requireCode(t, err, apperrors.CodeNotFound)
}
