// ABOUTME: Tests for the API client against httptest fake backends.
// ABOUTME: Covers error extraction, auth headers, query building and admin fallbacks.

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient starts a fake backend with the given mux and returns a client for it.
func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL + "/api/v1/"})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	c, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail string", 400, `{"detail":"Slug already exists"}`, "Slug already exists"},
		{"validation detail", 422, `{"detail":[{"loc":["body","name"],"msg":"field required"}]}`, "field required"},
		{"error field", 500, `{"error":"boom"}`, "boom"},
		{"message field", 409, `{"message":"conflict"}`, "conflict"},
		{"detail beats message", 400, `{"detail":"first","message":"second"}`, "first"},
		{"not json", 502, `<html>bad gateway</html>`, "failed to get categories: 502 Bad Gateway"},
		{"empty", 503, ``, "failed to get categories: 503 Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /api/v1/categories", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			c := newTestClient(t, mux)

			_, err := c.ListCategories(context.Background())
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Message)
		})
	}
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsNotFound(&APIError{Status: 404}))
	assert.False(t, IsNotFound(&APIError{Status: 500}))
	assert.True(t, IsUnauthorized(&APIError{Status: 401}))
	assert.True(t, IsUnauthorized(&APIError{Status: 403}))
	assert.True(t, IsUnauthorized(ErrNoSession))
	assert.False(t, IsUnauthorized(errors.New("other")))
	assert.Equal(t, 0, StatusOf(errors.New("plain")))
}

func TestListServicesQuery(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/services", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, 200, `{"data":{"services":[{"id":1,"title":"Passport","slug":"passport","is_online_available":"true"}]},"meta":{"total_count":31,"pagination":{"page":2,"limit":1}}}`)
	})
	c := newTestClient(t, mux)

	page, err := c.ListServices(context.Background(), ServiceQuery{
		Page:              2,
		PageSize:          1,
		CategoryID:        "cat-1",
		IsOnlineAvailable: true,
		Search:            "pass port",
	})
	require.NoError(t, err)

	assert.Equal(t, "category_id=cat-1&is_online_available=true&page=2&page_size=1&search=pass+port", gotQuery)
	require.Len(t, page.Items, 1)
	assert.Equal(t, FlexString("1"), page.Items[0].ID)
	assert.True(t, bool(page.Items[0].IsOnlineAvailable))
	assert.Equal(t, Pagination{Total: 31, Page: 2, PageSize: 1}, page.Pagination)
}

func TestListServicesOmitsUnsetParams(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/services", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(w, 200, `[]`)
	})
	c := newTestClient(t, mux)

	page, err := c.ListServices(context.Background(), ServiceQuery{})
	require.NoError(t, err)
	assert.Empty(t, gotQuery)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.Page)
}

func TestCitizenAuthorizationFromContext(t *testing.T) {
	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/categories", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		writeJSON(w, 200, `{"data":[]}`)
	})
	c := newTestClient(t, mux)

	ctx := WithAuthorization(context.Background(), "Bearer citizen")
	_, err := c.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer citizen", got)
}

func TestServiceDetailFanOutEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/services/birth-cert", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"success":true,"data":{"id":"s1","title":"Birth certificate","slug":"birth-cert","targetAudience":"individuals","category":{"id":"c1","name":"Civil"}}}`)
	})
	mux.HandleFunc("GET /api/v1/services/birth-cert/steps", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":{"steps":[{"id":"st1","step_number":1,"instruction":"Apply"}]}}`)
	})
	mux.HandleFunc("GET /api/v1/services/birth-cert/documents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":[{"id":"d1","name":"ID card","quantity":"2"}]}`)
	})
	mux.HandleFunc("GET /api/v1/services/birth-cert/faqs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `[{"id":"f1","question":"Cost?","answer":"Free"}]`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	detail, err := c.GetService(ctx, "birth-cert")
	require.NoError(t, err)
	assert.Equal(t, "Birth certificate", detail.Title)
	assert.Equal(t, "individuals", detail.TargetAudience)
	require.NotNil(t, detail.Category)
	assert.Equal(t, "Civil", detail.Category.Name)

	steps, err := c.ServiceSteps(ctx, "birth-cert")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "Apply", steps[0].Instruction)

	docs, err := c.ServiceDocuments(ctx, "birth-cert")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, FlexInt(2), docs[0].Quantity)

	faqs, err := c.ServiceFAQs(ctx, "birth-cert")
	require.NoError(t, err)
	if diff := cmp.Diff([]FAQ{{ID: "f1", Question: "Cost?", Answer: "Free"}}, faqs); diff != "" {
		t.Errorf("faqs mismatch (-want +got):\n%s", diff)
	}
}

func TestSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tax", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeJSON(w, 200, `{"data":[{"id":"1","title":"Tax ID"}],"total":12,"query":"tax"}`)
	})
	c := newTestClient(t, mux)

	res, err := c.Search(context.Background(), SearchQuery{Q: "tax", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, res.Total)
	assert.Equal(t, "tax", res.Query)
	require.Len(t, res.Items, 1)
}

func TestCitizenLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/login", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		switch creds.Password {
		case "good":
			writeJSON(w, 200, `{"access_token":"tok","token_type":"bearer"}`)
		case "empty":
			writeJSON(w, 200, `{}`)
		default:
			writeJSON(w, 401, `{"detail":"Incorrect username or password"}`)
		}
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	res, err := c.Login(ctx, Credentials{Username: "amina", Password: "good"})
	require.NoError(t, err)
	assert.Equal(t, LoginResult{Token: "tok", TokenType: "bearer", Username: "amina"}, res)

	_, err = c.Login(ctx, Credentials{Username: "amina", Password: "empty"})
	assert.ErrorIs(t, err, ErrInvalidLogin)

	_, err = c.Login(ctx, Credentials{Username: "amina", Password: "bad"})
	require.Error(t, err)
	assert.Equal(t, "Incorrect username or password", err.Error())
}

func TestAdminLoginShapes(t *testing.T) {
	bodies := map[string]string{
		"plain":   `{"access_token":"a1","token_type":"Bearer"}`,
		"wrapped": `{"data":{"token":"a2"}}`,
		"missing": `{"data":{}}`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/admin/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		writeJSON(w, 200, bodies[creds.Username])
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	res, err := c.AdminLogin(ctx, Credentials{Username: "plain"})
	require.NoError(t, err)
	assert.Equal(t, "a1", res.Token)
	assert.Equal(t, "Bearer", res.TokenType)

	res, err = c.AdminLogin(ctx, Credentials{Username: "wrapped"})
	require.NoError(t, err)
	assert.Equal(t, "a2", res.Token)
	assert.Equal(t, "bearer", res.TokenType)

	_, err = c.AdminLogin(ctx, Credentials{Username: "missing"})
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

func TestAdminCallsRequireSession(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, 200, `{}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	_, err := c.ListAgents(ctx, "", AgentQuery{})
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = c.ListAdminCategories(ctx, "  ")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, c.ClaimTicket(ctx, "", "1"), ErrNoSession)
	_, err = c.GenerateUserOTP(ctx, "", "1")
	assert.ErrorIs(t, err, ErrNoSession)

	assert.Equal(t, int32(0), hits.Load())
}

func TestGetAdminServiceFallsBackToPublic(t *testing.T) {
	var adminStatus atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/admin/services/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer adm", r.Header.Get("Authorization"))
		status := int(adminStatus.Load())
		if status == 200 {
			writeJSON(w, 200, `{"data":{"id":"7","title":"From admin","status":"draft"}}`)
			return
		}
		writeJSON(w, status, `{"detail":"nope"}`)
	})
	mux.HandleFunc("GET /api/v1/services/{slug}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":{"id":"7","title":"From public"}}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	adminStatus.Store(200)
	svc, err := c.GetAdminService(ctx, "Bearer adm", "7", "passport")
	require.NoError(t, err)
	assert.Equal(t, "From admin", svc.Title)

	for _, status := range []int{401, 403, 404, 405} {
		adminStatus.Store(int32(status))
		svc, err = c.GetAdminService(ctx, "Bearer adm", "7", "passport")
		require.NoError(t, err, "status %d", status)
		assert.Equal(t, "From public", svc.Title)
	}

	adminStatus.Store(404)
	_, err = c.GetAdminService(ctx, "Bearer adm", "7", "")
	assert.ErrorIs(t, err, ErrNoFallbackSlug)

	adminStatus.Store(500)
	_, err = c.GetAdminService(ctx, "Bearer adm", "7", "passport")
	require.Error(t, err)
	assert.Equal(t, 500, StatusOf(err))
}

func TestAdminServiceStepsFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/admin/services/{id}/steps", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 405, ``)
	})
	mux.HandleFunc("GET /api/v1/services/ok/steps", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":[{"id":"s1","step_number":1}]}`)
	})
	mux.HandleFunc("GET /api/v1/services/broken/steps", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 500, ``)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	steps, err := c.AdminServiceSteps(ctx, "Bearer adm", "7", "ok")
	require.NoError(t, err)
	assert.Len(t, steps, 1)

	steps, err = c.AdminServiceSteps(ctx, "Bearer adm", "7", "broken")
	require.NoError(t, err)
	assert.Empty(t, steps)

	steps, err = c.AdminServiceSteps(ctx, "Bearer adm", "7", "")
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestCategoryRequestSendsNullParent(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/admin/categories", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, 201, `{"data":{"id":"c9","name":"Health","slug":"health"}}`)
	})
	c := newTestClient(t, mux)

	cat, err := c.CreateAdminCategory(context.Background(), "Bearer adm", CategoryRequest{Name: "Health", Slug: "health"})
	require.NoError(t, err)
	assert.Equal(t, FlexString("c9"), cat.ID)

	parent, ok := body["parent_id"]
	assert.True(t, ok, "parent_id must be sent")
	assert.Nil(t, parent)
	_, hasDesc := body["description"]
	assert.False(t, hasDesc)
	assert.EqualValues(t, 0, body["display_order"])
}

func TestListAdminCategoriesPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/admin/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":{"categories":[{"id":"1","name":"A","children":[{"id":"2","name":"B","parent_id":"1"}]}]},"total":2}`)
	})
	c := newTestClient(t, mux)

	page, err := c.ListAdminCategories(context.Background(), "Bearer adm")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Len(t, page.Items[0].Children, 1)
	assert.Equal(t, FlexString("1"), page.Items[0].Children[0].ParentID)
	assert.Equal(t, 2, page.Total)
}

func TestOTPParsing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/admin/agents/{id}/otp", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":{"otp_code":123456,"expires_at":"2026-01-01T00:00:00Z"}}`)
	})
	mux.HandleFunc("POST /api/v1/users/{id}/otp", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"code":"9911"}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	otp, err := c.GenerateAgentOTP(ctx, "Bearer adm", "5")
	require.NoError(t, err)
	assert.Equal(t, "123456", otp.Code)
	assert.Equal(t, "2026-01-01T00:00:00Z", otp.ExpiresAt)

	otp, err = c.GenerateUserOTP(ctx, "Bearer adm", "5")
	require.NoError(t, err)
	assert.Equal(t, "9911", otp.Code)
}

func TestUserEndpointsUseTrailingSlash(t *testing.T) {
	var created map[string]any
	var roles map[string][]string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":{"users":[{"id":1,"username":"sam","roles":[{"id":1,"name":"editor"}]}]}}`)
	})
	mux.HandleFunc("POST /api/v1/users/", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		writeJSON(w, 201, `{"id":44,"username":"kim"}`)
	})
	mux.HandleFunc("POST /api/v1/users/44/roles", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&roles))
		writeJSON(w, 200, `{}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	users, err := c.ListUsers(ctx, "Bearer adm")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, Roles{"editor"}, users[0].Roles)

	u, err := c.CreateUser(ctx, "Bearer adm", UserRequest{Username: "kim", Email: "k@example.gov", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, FlexString("44"), u.ID)
	assert.Equal(t, "kim", created["username"])

	require.NoError(t, c.AssignUserRoles(ctx, "Bearer adm", "44", []string{"1", "2"}))
	assert.Equal(t, []string{"1", "2"}, roles["role_ids"])
}

func TestActiveTicket(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/tickets/active/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("is_agent"))
		if r.PathValue("id") == "none" {
			writeJSON(w, 200, `null`)
			return
		}
		assert.Equal(t, "/api/v1/tickets/active/a%2Fb", r.URL.EscapedPath())
		writeJSON(w, 200, `{"data":{"id":12,"status":"open","user_telegram_id":998}}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	ticket, err := c.ActiveTicket(ctx, "Bearer adm", "a/b", true)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, FlexString("12"), ticket.ID)
	assert.Equal(t, FlexString("998"), ticket.UserTelegramID)

	ticket, err = c.ActiveTicket(ctx, "Bearer adm", "none", true)
	require.NoError(t, err)
	assert.Nil(t, ticket)
}

func TestSendTicketMessageBody(t *testing.T) {
	var got TicketMessage
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/tickets/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux)

	err := c.SendTicketMessage(context.Background(), "Bearer adm", "3", TicketMessage{SenderType: SenderAgent, MessageText: "hello"})
	require.NoError(t, err)
	assert.Equal(t, TicketMessage{SenderType: "agent", MessageText: "hello"}, got)
}

func TestBulkImport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/admin/services/import/bulk", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Items []ServiceRequest `json:"items"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Items, 2)
		writeJSON(w, 200, `{"imported":1,"failed":1,"errors":["item 1: duplicate slug"]}`)
	})
	c := newTestClient(t, mux)

	res, err := c.BulkImportServices(context.Background(), "Bearer adm", []ServiceRequest{{Title: "A"}, {Title: "B"}})
	require.NoError(t, err)
	assert.Equal(t, BulkImportResult{Imported: 1, Failed: 1, Errors: []string{"item 1: duplicate slug"}}, res)
}
