package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/sla"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	minTitleLength = 3
	previewLength  = 140
)

// Notifier sends best-effort notifications. Implementations must not block
// the caller on delivery.
type Notifier interface {
	TicketAssigned(ctx context.Context, ticket *domain.Ticket, assigneeID string)
	TicketStatusChanged(ctx context.Context, ticket *domain.Ticket, status domain.TicketStatus)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets  repository.TicketRepository
	messages repository.TicketMessageRepository
	history  repository.TicketHistoryRepository
	users    repository.UserRepository
	bus      events.Bus
	notifier Notifier
	logger   *zap.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	HistoryRepo repository.TicketHistoryRepository
	UserRepo    repository.UserRepository
	Bus         events.Bus
	Notifier    Notifier
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Now         func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:  deps.TicketRepo,
		messages: deps.MessageRepo,
		history:  deps.HistoryRepo,
		users:    deps.UserRepo,
		bus:      deps.Bus,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		tracer:   observability.Tracer(),
		now:      deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Title            string
	Description      string
	Priority         domain.TicketPriority
	AssigneeID       *string
	DeadlineForecast *time.Time
	SLAHours         *int
	AttachmentURLs   []string
}

// ListTicketsInput describes list filters.
type ListTicketsInput struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Search     *string
	Limit      int
	Offset     int
}

// TicketDetails is a ticket with its thread, audit trail and live SLA.
type TicketDetails struct {
	Ticket       *domain.Ticket
	Messages     []domain.TicketMessage
	History      []domain.TicketHistory
	SLA          sla.Status
	NextStatuses []domain.TicketStatus
}

// Create opens a ticket owned by the principal.
func (s *TicketService) Create(ctx context.Context, principal domain.Principal, input CreateTicketInput) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.Create")
	defer span.End()

	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	title := strings.TrimSpace(input.Title)
	if utf8.RuneCountInString(title) < minTitleLength {
		fields["title"] = "must be at least 3 characters"
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		fields["description"] = "is required"
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		fields["priority"] = "must be one of LOW, MEDIUM, HIGH, CRITICAL"
	}
	if input.SLAHours != nil && *input.SLAHours <= 0 {
		fields["slaHours"] = "must be positive"
	}
	validateURLs(input.AttachmentURLs, "attachments", fields)
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", fields)
	}

	now := s.now()
	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      policy.InitialStatus,
		Priority:    priority,
		CustomerID:  principal.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// customers cannot pre-assign or set SLA terms on their own tickets
	if principal.Role.Staff() {
		if input.AssigneeID != nil && *input.AssigneeID != "" {
			if err := s.ensureAssignable(ctx, *input.AssigneeID); err != nil {
				return nil, err
			}
			assignee := *input.AssigneeID
			ticket.AssignedToID = &assignee
		}
		ticket.DeadlineForecast = input.DeadlineForecast
		ticket.SLAHours = input.SLAHours
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	span.SetAttributes(attribute.String("ticket.id", ticket.ID))

	if len(input.AttachmentURLs) > 0 {
		if _, err := s.storeAttachments(ctx, principal, ticket.ID, input.AttachmentURLs); err != nil {
			s.bestEffortFailed("store creation attachments", ticket.ID, err)
		}
	}

	s.recordHistory(ctx, ticket.ID, principal.UserID, domain.HistoryActionStatusChange, nil, strPtr(string(ticket.Status)))

	if ticket.AssignedToID != nil && s.notifier != nil {
		s.notifier.TicketAssigned(ctx, ticket, *ticket.AssignedToID)
	}

	s.publish(ctx, events.NewTicketEvent(events.EventTicketCreated, ticket, principal.UserID, events.TicketCreatedPayload{
		Title:    ticket.Title,
		Priority: ticket.Priority,
		Status:   ticket.Status,
	}, now))
	return ticket, nil
}

// AddComment posts a TEXT message on the ticket thread.
func (s *TicketService) AddComment(ctx context.Context, principal domain.Principal, ticketID, message string) (*domain.TicketMessage, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.AddComment", trace.WithAttributes(attribute.String("ticket.id", ticketID)))
	defer span.End()

	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	body := strings.TrimSpace(message)
	if body == "" {
		return nil, apperrors.NewValidationError("invalid comment", map[string]any{"message": "is required"})
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(principal, policy.ActionComment, ticket); err != nil {
		return nil, err
	}

	msg := &domain.TicketMessage{
		TicketID: ticket.ID,
		UserID:   principal.UserID,
		Type:     domain.MessageTypeText,
		Content:  body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, mapWriteError(err, ticket.ID)
	}

	s.publish(ctx, events.NewTicketEvent(events.EventTicketCommented, ticket, principal.UserID, events.TicketCommentedPayload{
		MessageID: msg.ID,
		Preview:   stringPreview(body, previewLength),
	}, s.now()))
	return msg, nil
}

// AddAttachments records one IMAGE message per URL. An empty list is a no-op.
func (s *TicketService) AddAttachments(ctx context.Context, principal domain.Principal, ticketID string, urls []string) ([]domain.TicketMessage, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.AddAttachments", trace.WithAttributes(attribute.String("ticket.id", ticketID)))
	defer span.End()

	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, nil
	}
	fields := map[string]any{}
	validateURLs(urls, "urls", fields)
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid attachments", fields)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(principal, policy.ActionAttach, ticket); err != nil {
		return nil, err
	}

	msgs, err := s.storeAttachments(ctx, principal, ticket.ID, urls)
	if err != nil {
		return nil, mapWriteError(err, ticket.ID)
	}

	s.publish(ctx, events.NewTicketEvent(events.EventTicketAttachments, ticket, principal.UserID, events.TicketAttachmentsPayload{
		Count: len(msgs),
	}, s.now()))
	return msgs, nil
}

func (s *TicketService) storeAttachments(ctx context.Context, principal domain.Principal, ticketID string, urls []string) ([]domain.TicketMessage, error) {
	batch := make([]*domain.TicketMessage, 0, len(urls))
	for _, raw := range urls {
		link := strings.TrimSpace(raw)
		batch = append(batch, &domain.TicketMessage{
			TicketID: ticketID,
			UserID:   principal.UserID,
			Type:     domain.MessageTypeImage,
			FileURL:  &link,
		})
	}
	if err := s.messages.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	result := make([]domain.TicketMessage, 0, len(batch))
	for _, msg := range batch {
		result = append(result, *msg)
	}
	return result, nil
}

// Delete hard-deletes a ticket together with its thread and history.
func (s *TicketService) Delete(ctx context.Context, principal domain.Principal, ticketID string) error {
	ctx, span := s.tracer.Start(ctx, "TicketService.Delete", trace.WithAttributes(attribute.String("ticket.id", ticketID)))
	defer span.End()

	if err := requirePrincipal(principal); err != nil {
		return err
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := authorize(principal, policy.ActionDelete, ticket); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		return mapWriteError(err, ticket.ID)
	}

	s.logger.Info("ticket deleted", zap.String("ticket_id", ticket.ID), zap.String("actor_id", principal.UserID))
	s.publish(ctx, events.NewTicketEvent(events.EventTicketDeleted, ticket, principal.UserID, events.TicketDeletedPayload{
		Title: ticket.Title,
	}, s.now()))
	return nil
}

// Get returns the ticket with its thread, history and live SLA status.
func (s *TicketService) Get(ctx context.Context, principal domain.Principal, ticketID string) (*TicketDetails, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(principal, policy.ActionView, ticket); err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	history, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	details := &TicketDetails{
		Ticket:   ticket,
		Messages: msgs,
		History:  history,
		SLA:      sla.ForTicket(ticket, s.now()),
	}
	if policy.CanAct(principal, policy.ActionChangeStatus, ticket) {
		details.NextStatuses = policy.NextStatuses(ticket.Status)
	}
	return details, nil
}

// List returns the tickets visible to the principal: customers see their
// own, technicians their assignments plus the unassigned pool, admins all.
func (s *TicketService) List(ctx context.Context, principal domain.Principal, input ListTicketsInput) ([]domain.Ticket, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	filter := repository.TicketFilter{
		Statuses:   input.Statuses,
		Priorities: input.Priorities,
		SearchTerm: input.Search,
		Limit:      input.Limit,
		Offset:     input.Offset,
	}
	userID := principal.UserID
	switch principal.Role {
	case domain.RoleAdmin:
	case domain.RoleTech:
		filter.AssigneeID = &userID
		filter.IncludeUnassigned = true
	default:
		filter.CustomerID = &userID
	}

	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if isMissing(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) ensureAssignable(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isMissing(err) {
			return apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return apperrors.MapError(err)
	}
	if !user.Role.Staff() {
		return apperrors.NewValidationError("invalid assignee", map[string]any{"assignedToId": "must be an ADMIN or TECH user"})
	}
	return nil
}

// recordHistory appends an audit row. The ticket write already succeeded,
// so a failure here is logged and counted, not returned.
func (s *TicketService) recordHistory(ctx context.Context, ticketID, userID string, action domain.HistoryAction, oldValue, newValue *string) {
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ActionType: action,
		OldValue:   oldValue,
		NewValue:   newValue,
		UserID:     userID,
		CreatedAt:  s.now(),
	}
	if err := s.history.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.bestEffortFailed("record history", ticketID, err)
	}
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	// a cancelled request must not cut delivery short for other subscribers
	if err := s.bus.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.bestEffortFailed("publish "+string(event.Type), event.TicketID, err)
		return
	}
	s.metrics.EventPublished()
}

func (s *TicketService) bestEffortFailed(what, ticketID string, err error) {
	s.metrics.BestEffortFailure()
	s.logger.Warn("best-effort step failed",
		zap.String("step", what),
		zap.String("ticket_id", ticketID),
		zap.Error(err))
}

func requirePrincipal(principal domain.Principal) error {
	if !principal.Authenticated() {
		return apperrors.NewUnauthorized("authentication required")
	}
	return nil
}

func authorize(principal domain.Principal, action policy.Action, ticket *domain.Ticket) error {
	if !policy.CanAct(principal, action, ticket) {
		return apperrors.NewForbidden(policy.Denial(action))
	}
	return nil
}

// isMissing reports errors meaning the referenced row does not exist: no
// rows, a foreign-key violation (deleted after it was read) or an id that
// is not a valid uuid.
func isMissing(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" || pgErr.Code == "22P02"
	}
	return false
}

// mapWriteError translates repository write failures.
func mapWriteError(err error, ticketID string) error {
	switch {
	case isMissing(err):
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict("ticket was modified concurrently; reload and retry", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.MapError(err)
}

func validateURLs(urls []string, field string, fields map[string]any) {
	for _, raw := range urls {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			fields[field] = "must be absolute http(s) URLs"
			return
		}
	}
}

func stringPreview(body string, max int) string {
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	return string(runes[:max]) + "…"
}

func strPtr(s string) *string { return &s }
