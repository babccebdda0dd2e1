// ABOUTME: Support ticket desk: unclaimed queue, active ticket lookup by telegram id,
// ABOUTME: claiming, closing and replying as an agent

package webadmin

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/cache"
	"github.com/2389/guday-portal/internal/render"
	"github.com/2389/guday-portal/internal/store"
	"github.com/2389/guday-portal/internal/validate"
)

func (a *Admin) unclaimedTickets(r *http.Request) ([]backend.Ticket, error) {
	return cache.Fetch(r.Context(), a.cache, cache.Key{cache.AdminUnclaimedTickets, scope(r)}, func(ctx context.Context) ([]backend.Ticket, error) {
		return a.api.ListUnclaimedTickets(ctx, authHeader(r))
	})
}

func (a *Admin) activeTicket(r *http.Request, telegramID string, isAgent bool) (*backend.Ticket, error) {
	key := cache.Key{cache.AdminActiveTicket, scope(r), telegramID, strconv.FormatBool(isAgent)}
	return cache.Fetch(r.Context(), a.cache, key, func(ctx context.Context) (*backend.Ticket, error) {
		return a.api.ActiveTicket(ctx, authHeader(r), telegramID, isAgent)
	})
}

// ticketsPath returns to the ticket desk with its lookup and selection intact.
func ticketsPath(selected, telegramID string, isAgent bool) string {
	agent := ""
	if isAgent {
		agent = "true"
	}
	return render.WithQuery("/admin/tickets", nil, "selected", selected, "telegram_id", telegramID, "is_agent", agent)
}

type ticketsData struct {
	page
	Tickets    []backend.Ticket
	Selected   string
	TelegramID string
	IsAgent    bool
	Looked     bool
	Active     *backend.Ticket
	LookupErr  string
}

// handleTickets renders the unclaimed queue and, when a telegram id is
// given, that user's or agent's open ticket.
func (a *Admin) handleTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := ticketsData{
		Selected:   strings.TrimSpace(q.Get("selected")),
		TelegramID: strings.TrimSpace(q.Get("telegram_id")),
	}
	data.IsAgent, _ = strconv.ParseBool(q.Get("is_agent"))

	tickets, err := a.unclaimedTickets(r)
	if err != nil {
		a.fail(w, r, err, "tickets", "/admin/")
		return
	}
	data.Tickets = tickets

	if data.TelegramID != "" {
		data.Looked = true
		active, err := a.activeTicket(r, data.TelegramID, data.IsAgent)
		switch {
		case err != nil && sessionRejected(err):
			a.expireSession(w, r)
			return
		case err != nil:
			a.logger.Warn("active ticket lookup failed", "telegram_id", data.TelegramID, "error", err)
			data.LookupErr = err.Error()
		default:
			data.Active = active
			if active != nil && data.Selected == "" {
				data.Selected = active.ID.String()
			}
		}
	}

	data.page = a.base(w, r, "Tickets", "tickets")
	a.pages.Page(w, http.StatusOK, "templates/tickets.html", data)
}

func ticketReturn(r *http.Request, id string) string {
	isAgent, _ := strconv.ParseBool(r.FormValue("is_agent"))
	return ticketsPath(id, strings.TrimSpace(r.FormValue("telegram_id")), isAgent)
}

// handleTicketClaim assigns a ticket to the signed-in agent.
func (a *Admin) handleTicketClaim(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := a.api.ClaimTicket(r.Context(), authHeader(r), id)
	a.finish(w, r, change{
		action:     store.AuditClaimTicket,
		mutation:   cache.ClaimTicket,
		targetType: "ticket",
		targetID:   id,
		success:    "Ticket claimed.",
		redirect:   ticketReturn(r, id),
	}, err)
}

// handleTicketClose closes a ticket.
func (a *Admin) handleTicketClose(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := a.api.CloseTicket(r.Context(), authHeader(r), id)
	a.finish(w, r, change{
		action:     store.AuditCloseTicket,
		mutation:   cache.CloseTicket,
		targetType: "ticket",
		targetID:   id,
		success:    "Ticket closed.",
		redirect:   ticketReturn(r, ""),
	}, err)
}

// handleTicketMessage posts an agent reply to a ticket.
func (a *Admin) handleTicketMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	back := ticketReturn(r, id)
	msg, err := validate.TicketMessage(r.PostForm)
	if err != nil {
		invalid(w, r, err, back)
		return
	}

	err = a.api.SendTicketMessage(r.Context(), authHeader(r), id, msg)
	a.finish(w, r, change{
		action:     store.AuditSendTicketReply,
		mutation:   cache.SendTicketReply,
		targetType: "ticket",
		targetID:   id,
		detail:     map[string]any{"length": len(msg.MessageText)},
		success:    "Message sent.",
		redirect:   back,
	}, err)
}
