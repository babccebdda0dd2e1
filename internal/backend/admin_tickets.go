// ABOUTME: Support ticket operations for agents: unclaimed queue, claim, close, messages.
// ABOUTME: The active-ticket lookup returns nil when the telegram user has no open ticket.

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListUnclaimedTickets returns tickets no agent has claimed yet.
func (c *Client) ListUnclaimedTickets(ctx context.Context, auth string) ([]Ticket, error) {
	return adminList[Ticket](ctx, c, call{
		method: http.MethodGet, path: "/tickets/unclaimed", auth: auth,
		failure: "failed to get tickets",
	}, "tickets")
}

// ClaimTicket assigns a ticket to the calling agent.
func (c *Client) ClaimTicket(ctx context.Context, auth, id string) error {
	return c.adminExec(ctx, call{
		method: http.MethodPost, path: "/tickets/" + escape(id) + "/claim", auth: auth,
		failure: "failed to claim ticket",
	})
}

// CloseTicket closes a ticket.
func (c *Client) CloseTicket(ctx context.Context, auth, id string) error {
	return c.adminExec(ctx, call{
		method: http.MethodPost, path: "/tickets/" + escape(id) + "/close", auth: auth,
		failure: "failed to close ticket",
	})
}

// SendTicketMessage posts a message to a ticket.
func (c *Client) SendTicketMessage(ctx context.Context, auth, id string, msg TicketMessage) error {
	return c.adminExec(ctx, call{
		method: http.MethodPost, path: "/tickets/" + escape(id) + "/messages", body: msg, auth: auth,
		failure: "failed to send message",
	})
}

// ActiveTicket returns the open ticket of a telegram user or agent, or nil.
func (c *Client) ActiveTicket(ctx context.Context, auth, telegramID string, isAgent bool) (*Ticket, error) {
	if err := requireAuth(auth); err != nil {
		return nil, err
	}
	payload, err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/tickets/active/" + escape(telegramID),
		query:   url.Values{"is_agent": []string{strconv.FormatBool(isAgent)}},
		auth:    auth,
		failure: "failed to get active ticket",
	})
	if err != nil {
		return nil, err
	}
	obj := Object(payload)
	if !obj.Exists() {
		return nil, nil
	}
	var t Ticket
	if err := json.Unmarshal([]byte(obj.Raw), &t); err != nil {
		return nil, fmt.Errorf("decoding active ticket: %w", err)
	}
	if t.ID == "" {
		return nil, nil
	}
	return &t, nil
}
