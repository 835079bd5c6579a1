package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/mailer"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/sla"
	"github.com/spec-kit/support-desk/internal/worker"
)

// NotificationService turns ticket changes into emails. Lifecycle
// notifications run as detached tasks on the worker pool; failures surface
// on the pool's error channel only.
type NotificationService struct {
	users   repository.UserRepository
	sender  mailer.Sender
	pool    *worker.Pool
	baseURL string
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	UserRepo repository.UserRepository
	Sender   mailer.Sender
	Pool     *worker.Pool
	BaseURL  string
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		users:   deps.UserRepo,
		sender:  deps.Sender,
		pool:    deps.Pool,
		baseURL: strings.TrimRight(deps.BaseURL, "/"),
		logger:  logger,
		metrics: deps.Metrics,
	}
}

// TicketAssigned emails the new assignee.
func (n *NotificationService) TicketAssigned(_ context.Context, ticket *domain.Ticket, assigneeID string) {
	ref := n.ref(ticket)
	n.dispatch("notify_assigned", ref.ID, func(ctx context.Context) error {
		user, err := n.users.GetByID(ctx, assigneeID)
		if err != nil {
			return fmt.Errorf("load assignee %s: %w", assigneeID, err)
		}
		return n.send(ctx, mailer.AssignedEmail(user.Email, ref))
	})
}

// TicketStatusChanged emails the customer about a final status.
func (n *NotificationService) TicketStatusChanged(_ context.Context, ticket *domain.Ticket, status domain.TicketStatus) {
	ref := n.ref(ticket)
	customerID := ticket.CustomerID
	n.dispatch("notify_status", ref.ID, func(ctx context.Context) error {
		user, err := n.users.GetByID(ctx, customerID)
		if err != nil {
			return fmt.Errorf("load customer %s: %w", customerID, err)
		}
		return n.send(ctx, mailer.StatusEmail(user.Email, ref, string(status)))
	})
}

// SendDeadlineReminder emails the assignee synchronously so the sweep can
// tell whether the reminder went out.
func (n *NotificationService) SendDeadlineReminder(ctx context.Context, ticket *domain.Ticket, level sla.ReminderLevel) error {
	if ticket.AssignedToID == nil {
		return fmt.Errorf("ticket %s has no assignee", ticket.ID)
	}
	user, err := n.users.GetByID(ctx, *ticket.AssignedToID)
	if err != nil {
		return fmt.Errorf("load assignee %s: %w", *ticket.AssignedToID, err)
	}
	return n.send(ctx, mailer.ReminderEmail(user.Email, n.ref(ticket), level.Label()))
}

func (n *NotificationService) dispatch(name, ticketID string, run func(ctx context.Context) error) {
	if n.pool == nil {
		n.logger.Warn("no worker pool; notification skipped", zap.String("task", name), zap.String("ticket_id", ticketID))
		return
	}
	if !n.pool.Submit(worker.Task{Name: name, TicketID: ticketID, Run: run}) {
		n.metrics.BestEffortFailure()
	}
}

func (n *NotificationService) send(ctx context.Context, email mailer.Email) error {
	err := n.sender.Send(ctx, email)
	n.metrics.NotificationResult(err)
	return err
}

func (n *NotificationService) ref(ticket *domain.Ticket) mailer.TicketRef {
	return mailer.TicketRef{
		ID:    ticket.ID,
		Title: ticket.Title,
		URL:   n.baseURL + "/tickets/" + ticket.ID,
	}
}
