package supabase

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Config{
		ProjectURL: "https://proj.supabase.co",
		APIKey:     "anon-key",
		ServiceKey: "service-key",
	})
	require.NoError(t, err)
	httpmock.ActivateNonDefault(c.http)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)

	_, err = New(Config{ProjectURL: "https://proj.supabase.co"})
	assert.Error(t, err)
}

func TestQueryBuilderURL(t *testing.T) {
	c, err := New(Config{ProjectURL: "https://proj.supabase.co", APIKey: "k"})
	require.NoError(t, err)

	q := c.From("checklists").Select("id,species").
		Eq("user_id", "u-1").
		Order("created_at", OrderDesc).
		Limit(5)
	assert.Equal(t,
		"https://proj.supabase.co/rest/v1/checklists?select=id%2Cspecies&user_id=eq.u-1&order=created_at.desc&limit=5",
		q.buildURL())

	q = c.From("checklists").Select("id").
		Eq("grid_cell_id", "cell-7").
		Gte("created_at", "2024-06-01T00:00:00Z")
	assert.Equal(t,
		"https://proj.supabase.co/rest/v1/checklists?select=id&grid_cell_id=eq.cell-7&created_at=gte.2024-06-01T00:00:00Z",
		q.buildURL())
}

func TestPing(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, "https://proj.supabase.co/auth/v1/health",
		httpmock.NewStringResponder(200, `{"name":"GoTrue"}`))
	assert.NoError(t, c.Ping(context.Background()))

	httpmock.Reset()
	httpmock.RegisterResponder(http.MethodGet, "https://proj.supabase.co/auth/v1/health",
		httpmock.NewStringResponder(503, `{"msg":"unhealthy"}`))
	assert.Error(t, c.Ping(context.Background()))
}

func TestSelectSendsAnonKey(t *testing.T) {
	c := newTestClient(t)

	var gotAPIKey, gotAuth string
	httpmock.RegisterResponder(http.MethodGet, `=~^https://proj\.supabase\.co/rest/v1/news`,
		func(req *http.Request) (*http.Response, error) {
			gotAPIKey = req.Header.Get("apikey")
			gotAuth = req.Header.Get("Authorization")
			return httpmock.NewStringResponse(200, `[{"id":"1","title":"hello"}]`), nil
		})

	var rows []map[string]interface{}
	err := c.From("news").Select("*").ExecuteInto(context.Background(), &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "anon-key", gotAPIKey)
	assert.Equal(t, "Bearer anon-key", gotAuth)
}

func TestInsertUsesServiceKey(t *testing.T) {
	c := newTestClient(t)

	var gotAPIKey, gotPrefer string
	httpmock.RegisterResponder(http.MethodPost, `=~^https://proj\.supabase\.co/rest/v1/checklists`,
		func(req *http.Request) (*http.Response, error) {
			gotAPIKey = req.Header.Get("apikey")
			gotPrefer = req.Header.Get("Prefer")
			return httpmock.NewStringResponse(201, `[{"id":7}]`), nil
		})

	var created []struct {
		ID int64 `json:"id"`
	}
	err := c.From("checklists").Insert(map[string]interface{}{"grid_cell_id": "cell-7"}).
		ExecuteInto(context.Background(), &created)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, int64(7), created[0].ID)
	assert.Equal(t, "service-key", gotAPIKey)
	assert.Equal(t, "return=representation", gotPrefer)
}

func TestErrorParsing(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, `=~^https://proj\.supabase\.co/rest/v1/missing`,
		httpmock.NewStringResponder(404, `{"code":"42P01","message":"relation \"missing\" does not exist"}`))

	_, err := c.From("missing").Select("*").Execute(context.Background())
	require.Error(t, err)

	se, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, "42P01", se.Code)
	assert.Equal(t, 404, se.StatusCode)
	assert.True(t, IsNotFound(err))
}

func TestAuthGetUser(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, "https://proj.supabase.co/auth/v1/user",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") != "Bearer user-token" {
				return httpmock.NewStringResponse(401, `{"msg":"invalid token"}`), nil
			}
			return httpmock.NewStringResponse(200, `{"id":"u-1","email":"a@example.com"}`), nil
		})

	user, err := c.Auth().GetUser(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "a@example.com", user.Email)

	_, err = c.Auth().GetUser(context.Background(), "wrong")
	require.Error(t, err)
	se, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, 401, se.StatusCode)
	assert.Equal(t, "invalid token", se.Message)
}

func TestAuthSignInWithPassword(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, `=~^https://proj\.supabase\.co/auth/v1/token`,
		httpmock.NewStringResponder(200, `{"access_token":"tok","user":{"id":"u-1","email":"a@example.com"}}`))

	session, err := c.Auth().SignInWithPassword(context.Background(), "a@example.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "tok", session.AccessToken)
	require.NotNil(t, session.User)
	assert.Equal(t, "u-1", session.User.ID)
}
