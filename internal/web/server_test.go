package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"pizzachallenge/internal/gateway"
	"pizzachallenge/internal/models"
	"pizzachallenge/internal/notify"
	"pizzachallenge/internal/repository"
	"pizzachallenge/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *service.PizzaService) {
	t.Helper()

	repo := repository.NewMemoryRepository()
	broker := notify.NewBroker()
	svc := service.NewPizzaService(repo, broker, service.Options{
		StartingCoins:          10,
		LeaderboardExcludeZero: true,
	})
	require.NoError(t, svc.SeedCatalog(context.Background(), []models.PizzaSlice{
		{Name: "Margherita", Price: 4, Description: "Tomato and mozzarella"},
	}))

	srv, err := New(Options{
		Gateway:      gateway.NewLocal(svc, broker),
		PollInterval: time.Hour,
		ExcludeZero:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv, svc
}

// browser replays the session cookie across requests
type browser struct {
	t       *testing.T
	srv     *Server
	cookies []*http.Cookie
}

func (b *browser) do(req *http.Request) (*http.Response, string) {
	b.t.Helper()
	for _, cookie := range b.cookies {
		req.AddCookie(cookie)
	}
	resp, err := b.srv.App().Test(req, -1)
	require.NoError(b.t, err)
	if cookies := resp.Cookies(); len(cookies) > 0 {
		b.cookies = cookies
	}
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp, string(body)
}

func (b *browser) get(path string) (*http.Response, string) {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, _ := b.do(req)
	return resp
}

func TestServer_HomeShowsLandingCards(t *testing.T) {
	srv, _ := newTestServer(t)
	b := &browser{t: t, srv: srv}

	resp, body := b.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Join the pizza eating challenge")
	assert.Contains(t, body, `href="/leaderboard"`)
	assert.Contains(t, body, `<a href="/" class="active">Home</a>`)
}

func TestServer_RegistrationPostRedirectGet(t *testing.T) {
	srv, svc := newTestServer(t)
	b := &browser{t: t, srv: srv}

	resp := b.post("/new-user", url.Values{"name": {"  Alice "}, "age": {"20"}, "gender": {"Female"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/new-user", resp.Header.Get("Location"))

	_, body := b.get("/new-user")
	assert.Contains(t, body, "User added successfully")

	// The notice shows once
	_, body = b.get("/new-user")
	assert.NotContains(t, body, "User added successfully")

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Alice", users[0].Name)
	assert.Equal(t, "female", users[0].Gender)
}

func TestServer_RegistrationRejectsInvalidForm(t *testing.T) {
	srv, svc := newTestServer(t)
	b := &browser{t: t, srv: srv}

	b.post("/new-user", url.Values{"name": {"Bob"}, "age": {"abc"}, "gender": {"male"}})

	_, body := b.get("/new-user")
	assert.Contains(t, body, "Please fill in all fields correctly")
	assert.Contains(t, body, `value="Bob"`)

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestServer_ManagePlayersPurchaseFlow(t *testing.T) {
	srv, svc := newTestServer(t)
	b := &browser{t: t, srv: srv}

	user, err := svc.CreateUser(context.Background(), models.CreateUserRequest{Name: "Alice", Age: 20, Gender: models.GenderFemale})
	require.NoError(t, err)
	catalog, err := svc.ListSlices(context.Background())
	require.NoError(t, err)
	slice := catalog[0]

	resp, body := b.get("/manage-players")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Alice")

	resp = b.post("/manage-players/users/"+uintString(user.ID)+"/purchase", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/manage-players", resp.Header.Get("Location"))

	b.post("/manage-players/cart/"+uintString(slice.ID)+"/add", nil)
	b.post("/manage-players/cart/"+uintString(slice.ID)+"/add", nil)
	// A third slice would exceed the 10 coin balance
	b.post("/manage-players/cart/"+uintString(slice.ID)+"/add", nil)

	_, body = b.get("/manage-players")
	assert.Contains(t, body, "Buy pizza for Alice")
	assert.Contains(t, body, "Cart total: 8. Remaining: 2.")

	b.post("/manage-players/purchase/complete", nil)

	_, body = b.get("/manage-players")
	assert.Contains(t, body, "Purchase completed successfully.")
	assert.NotContains(t, body, "Buy pizza for Alice")

	history, err := svc.History(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	b.post("/manage-players/users/"+uintString(user.ID)+"/history", nil)
	b.post("/manage-players/history/"+uintString(history[0].ID)+"/eaten", nil)

	_, body = b.get("/manage-players")
	assert.Contains(t, body, "Pizza slice logged as eaten!")

	_, body = b.get("/leaderboard")
	assert.Contains(t, body, "Alice")
	assert.Contains(t, body, `class="gold"`)
}

func TestServer_DeleteNeedsConfirmation(t *testing.T) {
	srv, svc := newTestServer(t)
	b := &browser{t: t, srv: srv}

	user, err := svc.CreateUser(context.Background(), models.CreateUserRequest{Name: "Carol", Age: 30, Gender: models.GenderFemale})
	require.NoError(t, err)

	b.get("/manage-players")
	b.post("/manage-players/users/"+uintString(user.ID)+"/delete", nil)

	_, body := b.get("/manage-players")
	assert.Contains(t, body, "Delete Carol?")

	b.post("/manage-players/delete/cancel", nil)
	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)

	b.post("/manage-players/users/"+uintString(user.ID)+"/delete", nil)
	b.post("/manage-players/delete/confirm", nil)

	_, body = b.get("/manage-players")
	assert.Contains(t, body, "User deleted successfully.")
	assert.Contains(t, body, "No players yet")
}

func TestServer_SessionsGetSeparateWorkspaces(t *testing.T) {
	srv, _ := newTestServer(t)
	first := &browser{t: t, srv: srv}
	second := &browser{t: t, srv: srv}

	first.post("/new-user", url.Values{"name": {"Dan"}, "age": {"40"}, "gender": {"male"}})

	_, body := second.get("/new-user")
	assert.NotContains(t, body, "User added successfully")
	_, body = first.get("/new-user")
	assert.Contains(t, body, "User added successfully")

	assert.Equal(t, 2, srv.Workspaces().Len())
}

func TestServer_LeaderboardEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	b := &browser{t: t, srv: srv}

	resp, body := b.get("/leaderboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "No rankings available yet. Start eating some pizza!")
}

func TestServer_InvalidPathIDAndPlainLiveRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	b := &browser{t: t, srv: srv}

	resp := b.post("/manage-players/users/abc/purchase", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = b.get("/live/leaderboard")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
