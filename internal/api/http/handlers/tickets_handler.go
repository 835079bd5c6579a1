package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/sla"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const maxPageSize = 100

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Create(c.UserContext(), principal, service.CreateTicketInput{
		Title:            req.Title,
		Description:      req.Description,
		Priority:         req.Priority,
		AssigneeID:       req.AssignedToID,
		DeadlineForecast: req.DeadlineForecast,
		SLAHours:         req.SLAHours,
		AttachmentURLs:   req.Attachments,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	query := parseTicketQuery(c)
	tickets, err := h.service.List(c.UserContext(), principal, service.ListTicketsInput{
		Statuses:   query.Statuses,
		Priorities: query.Priorities,
		Search:     query.Search,
		Limit:      query.PageSize,
		Offset:     (query.Page - 1) * query.PageSize,
	})
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{"page": query.Page, "pageSize": query.PageSize},
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	details, err := h.service.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(details)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), principal, c.Params("id"), service.UpdateTicketInput{
		Title:            req.Title,
		Description:      req.Description,
		Priority:         req.Priority,
		AssignedToID:     req.AssignedToID,
		DeadlineForecast: req.DeadlineForecast,
		ClearDeadline:    req.ClearDeadline,
		SLAHours:         req.SLAHours,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ChangeStatus POST /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.StatusChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), principal, c.Params("id"), domain.TicketStatus(strings.ToUpper(string(req.Status))))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AssignToMe POST /tickets/:id/assign-me.
func (h *TicketsHandler) AssignToMe(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.AssignToMe(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.service.AddComment(c.UserContext(), principal, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// AddAttachments POST /tickets/:id/attachments.
func (h *TicketsHandler) AddAttachments(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.AttachmentsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msgs, err := h.service.AddAttachments(c.UserContext(), principal, c.Params("id"), req.URLs)
	if err != nil {
		return err
	}
	items := make([]dto.TicketMessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, messageResponse(&msgs[i]))
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": items})
}

func principalFrom(c *fiber.Ctx) (domain.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Principal{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseTicketQuery(c *fiber.Ctx) dto.TicketListQuery {
	query := dto.TicketListQuery{
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), 20),
	}
	if query.PageSize > maxPageSize {
		query.PageSize = maxPageSize
	}
	for _, part := range splitList(c.Query("status")) {
		query.Statuses = append(query.Statuses, domain.TicketStatus(strings.ToUpper(part)))
	}
	for _, part := range splitList(c.Query("priority")) {
		query.Priorities = append(query.Priorities, domain.TicketPriority(strings.ToUpper(part)))
	}
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		query.Search = &search
	}
	return query
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:               ticket.ID,
		Title:            ticket.Title,
		Status:           ticket.Status,
		Priority:         ticket.Priority,
		CustomerID:       ticket.CustomerID,
		AssignedToID:     ticket.AssignedToID,
		DeadlineForecast: ticket.DeadlineForecast,
		CreatedAt:        ticket.CreatedAt,
		UpdatedAt:        ticket.UpdatedAt,
	}
}

func ticketDetail(details *service.TicketDetails) dto.TicketDetailResponse {
	ticket := details.Ticket
	msgs := make([]dto.TicketMessageResponse, 0, len(details.Messages))
	for i := range details.Messages {
		msgs = append(msgs, messageResponse(&details.Messages[i]))
	}
	next := details.NextStatuses
	if next == nil {
		next = []domain.TicketStatus{}
	}
	return dto.TicketDetailResponse{
		TicketSummary: ticketSummary(ticket),
		Description:   ticket.Description,
		DeliveryDate:  ticket.DeliveryDate,
		ClosedAt:      ticket.ClosedAt,
		ExecutionTime: ticket.ExecutionTime,
		SLAHours:      ticket.SLAHours,
		SLA:           slaResponse(details.SLA),
		NextStatuses:  next,
		Messages:      msgs,
		History:       historyResponses(details.History),
	}
}

func slaResponse(status sla.Status) dto.SLAResponse {
	resp := dto.SLAResponse{
		Applicable: status.Applicable,
		Overdue:    status.Overdue,
		Label:      status.Label(),
	}
	if status.Applicable {
		deadline := status.Deadline
		resp.Deadline = &deadline
	}
	return resp
}

func messageResponse(msg *domain.TicketMessage) dto.TicketMessageResponse {
	return dto.TicketMessageResponse{
		ID:        msg.ID,
		UserID:    msg.UserID,
		Type:      msg.Type,
		Content:   msg.Content,
		FileURL:   msg.FileURL,
		CreatedAt: msg.CreatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:         entry.ID,
			ActionType: entry.ActionType,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			UserID:     entry.UserID,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return resp
}
