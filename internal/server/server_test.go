package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/notepid/twilight_messenger/internal/api"
	"github.com/notepid/twilight_messenger/internal/db"
	"github.com/notepid/twilight_messenger/internal/logging"
	"github.com/notepid/twilight_messenger/internal/message"
	"github.com/notepid/twilight_messenger/internal/user"
)

type testServer struct {
	url   string
	clock *clock.Mock
}

func startServer(t *testing.T, usernames ...string) *testServer {
	t.Helper()
	logging.Discard()

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	users := user.NewRepo(database.DB)
	for _, name := range usernames {
		if _, err := users.Create(name, name+"-pw"); err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
	}

	mock := clock.NewMock()
	mock.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	srv := httptest.NewServer(New(users, message.NewRepo(database.DB, mock), false).Routes())
	t.Cleanup(srv.Close)
	return &testServer{url: srv.URL, clock: mock}
}

func (ts *testServer) login(t *testing.T, username string) *api.Client {
	t.Helper()
	c, err := api.New(ts.url, 5*time.Second)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	if err := c.Login(context.Background(), username, username+"-pw"); err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return c
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ts := startServer(t, "alice")
	c, err := api.New(ts.url, 5*time.Second)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}

	err = c.Login(context.Background(), "alice", "nope")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 api error, got %v", err)
	}
	if apiErr.Message != "Username and/or Password are not valid." {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestAPIRequiresLogin(t *testing.T) {
	ts := startServer(t)
	resp, err := http.Get(ts.url + "/api/conversations/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPostWithoutCSRFHeaderIsRejected(t *testing.T) {
	ts := startServer(t, "alice")
	c := ts.login(t, "alice")
	if c.CSRFToken() == "" {
		t.Fatalf("expected csrftoken cookie after login")
	}

	// A bare client has neither the cookie nor the header.
	resp, err := http.Post(ts.url+"/api/conversations/", "application/json", strings.NewReader(`{"members":[]}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestConversationLifecycle(t *testing.T) {
	ts := startServer(t, "alice", "bob", "carol")
	ctx := context.Background()
	alice := ts.login(t, "alice")
	bob := ts.login(t, "bob")
	carol := ts.login(t, "carol")

	conv, err := alice.CreateConversation(ctx, []string{"bob"})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.Title != "bob, alice" {
		t.Fatalf("unexpected title %q", conv.Title)
	}
	if conv.AutodestructAt != nil {
		t.Fatalf("new conversation should have no deadline")
	}

	if _, err := alice.SendMessage(ctx, conv.ID, "hello bob"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, err := bob.SendMessage(ctx, conv.ID, "hi alice"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	msgs, err := bob.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Sender != "alice" || msgs[1].Text != "hi alice" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	// Carol is not a member.
	_, err = carol.ListMessages(ctx, conv.ID)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %v", err)
	}

	convs, err := carol.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("carol should see no conversations, got %d", len(convs))
	}

	_, err = alice.ListMessages(ctx, uuid.New())
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown conversation, got %v", err)
	}
}

func TestCreateConversationInvalidUsernames(t *testing.T) {
	ts := startServer(t, "alice")
	c := ts.login(t, "alice")

	_, err := c.CreateConversation(context.Background(), []string{"ghost", "phantom"})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if apiErr.Code != "invalid_usernames" {
		t.Fatalf("unexpected error code %q", apiErr.Code)
	}
	if apiErr.Message != "The following usernames do not exist: ghost, phantom" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestBlankMessageRejected(t *testing.T) {
	ts := startServer(t, "alice")
	c := ts.login(t, "alice")
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, nil)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	_, err = c.SendMessage(ctx, conv.ID, "  ")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest || apiErr.Error() != "Blank text." {
		t.Fatalf("expected 400 Blank text., got %v", err)
	}
}

func TestAutodestructScheduleAndPurge(t *testing.T) {
	ts := startServer(t, "alice")
	c := ts.login(t, "alice")
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, nil)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if _, err := c.SendMessage(ctx, conv.ID, "self destructing"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	_, err = c.SetAutodestruct(ctx, conv.ID, 2)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Error() != "Invalid delay value." {
		t.Fatalf("expected invalid delay error, got %v", err)
	}

	res, err := c.SetAutodestruct(ctx, conv.ID, 1)
	if err != nil {
		t.Fatalf("SetAutodestruct: %v", err)
	}
	want := ts.clock.Now().Add(time.Minute)
	if res.Status != "set" || res.AutodestructAt == nil || !res.AutodestructAt.Equal(want) {
		t.Fatalf("unexpected autodestruct response: %+v", res)
	}

	convs, err := c.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 || convs[0].AutodestructAt == nil || !convs[0].AutodestructAt.Equal(want) {
		t.Fatalf("deadline not listed: %+v", convs)
	}

	ts.clock.Add(time.Minute)

	msgs, err := c.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected messages purged, got %d", len(msgs))
	}

	convs, err = c.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if convs[0].AutodestructAt != nil {
		t.Fatalf("expected deadline cleared after purge")
	}
}

func newClient(t *testing.T, ts *testServer) *api.Client {
	t.Helper()
	c, err := api.New(ts.url, 5*time.Second)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return c
}

func TestRegisterOpensSession(t *testing.T) {
	ts := startServer(t, "alice")
	ctx := context.Background()

	c := newClient(t, ts)
	if err := c.Register(ctx, "carol", "carol-pw", "carol-pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	convs, err := c.ListConversations(ctx)
	if err != nil {
		t.Fatalf("registered client should be logged in: %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("expected no conversations, got %d", len(convs))
	}

	// The new account can start a conversation with an existing one.
	conv, err := c.CreateConversation(ctx, []string{"alice"})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.Title != "alice, carol" {
		t.Fatalf("unexpected title %q", conv.Title)
	}

	if err := newClient(t, ts).Login(ctx, "carol", "carol-pw"); err != nil {
		t.Fatalf("Login with registered password: %v", err)
	}
}

func TestRegisterRejectsMismatchedConfirmation(t *testing.T) {
	ts := startServer(t)
	ctx := context.Background()

	c := newClient(t, ts)
	err := c.Register(ctx, "carol", "carol-pw", "carol-typo")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 api error, got %v", err)
	}
	if apiErr.Code != "password_mismatch" || apiErr.Message != "'Password' and 'Confirm Password' must match." {
		t.Fatalf("unexpected error %+v", apiErr)
	}

	if err := newClient(t, ts).Login(ctx, "carol", "carol-pw"); err == nil {
		t.Fatalf("rejected registration must not create the account")
	}
	if _, err := c.ListConversations(ctx); err == nil {
		t.Fatalf("rejected registration must not open a session")
	}
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	ts := startServer(t, "alice")

	err := newClient(t, ts).Register(context.Background(), "alice", "other-pw", "other-pw")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 api error, got %v", err)
	}
	if apiErr.Code != "username_taken" || apiErr.Message != "Username already exists." {
		t.Fatalf("unexpected error %+v", apiErr)
	}

	// The original password still works.
	ts.login(t, "alice")
}

func TestParseDelay(t *testing.T) {
	if d, err := parseDelay(float64(3)); err != nil || d != 3 {
		t.Fatalf("number: got %d, %v", d, err)
	}
	if d, err := parseDelay(" 5 "); err != nil || d != 5 {
		t.Fatalf("string: got %d, %v", d, err)
	}
	if _, err := parseDelay(1.5); err == nil {
		t.Fatalf("expected fractional delay to fail")
	}
	if _, err := parseDelay("soon"); err == nil {
		t.Fatalf("expected non-numeric delay to fail")
	}
}
