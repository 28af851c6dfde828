package router

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryconnect.chat/internal/config"
	"libraryconnect.chat/internal/handler"
	"libraryconnect.chat/internal/health"
	"libraryconnect.chat/internal/repository/memory"
	"libraryconnect.chat/internal/service"
	appErrors "libraryconnect.chat/pkg/errors"
	"libraryconnect.chat/pkg/jwt"
	"libraryconnect.chat/pkg/snowflake"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	users  *memory.UserStore
}

type account struct {
	ID    string
	Token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	users := memory.NewUserStore()
	messages := memory.NewMessageStore()

	authSvc := service.NewAuthService(users, memory.NewSessionStore(), jwt.NewService("router-test", time.Hour, 24*time.Hour), node)
	chatSvc := service.NewChatService(users, messages, node, nil, logger)

	cfg := &config.Config{
		App:  config.AppConfig{Mode: gin.TestMode},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST", "PUT"}},
	}
	engine := SetupRouter(cfg, Deps{
		Auth:        authSvc,
		Health:      health.NewChecker(time.Second),
		AuthHandler: handler.NewAuthHandler(authSvc),
		UserHandler: handler.NewUserHandler(service.NewUserService(users)),
		ChatHandler: handler.NewChatHandler(chatSvc),
	}, logger)

	return &testServer{t: t, engine: engine, users: users}
}

func (s *testServer) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w.Code, env
}

func (s *testServer) signup(name, email string) account {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/api/users/register", "", gin.H{"name": name, "email": email, "password": "secret123"})
	require.Equal(s.t, http.StatusCreated, status, env.Message)

	status, env = s.do(http.MethodPost, "/api/users/login", "", gin.H{"email": email, "password": "secret123"})
	require.Equal(s.t, http.StatusOK, status, env.Message)

	var login struct {
		User  struct{ ID string } `json:"user"`
		Token struct {
			AccessToken string `json:"accessToken"`
		} `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &login))
	return account{ID: login.User.ID, Token: login.Token.AccessToken}
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type wireMessage struct {
	ID          string `json:"id"`
	ClientMsgID string `json:"clientMsgId"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
	Read        bool   `json:"read"`
	Sender      struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"sender"`
}

type wireConversation struct {
	User struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
	LastMessage  string `json:"lastMessage"`
	LastSenderID string `json:"lastSenderId"`
	UnreadCount  int    `json:"unreadCount"`
}

func TestSendMessage(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("Alice", "alice@example.com")
	bob := s.signup("Bob", "bob@example.com")

	status, env := s.do(http.MethodPost, "/api/chat", alice.Token, gin.H{"recipient": bob.ID, "content": "hello", "clientMsgId": "c-1"})
	require.Equal(t, http.StatusCreated, status)
	msg := decodeData[wireMessage](t, env)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "c-1", msg.ClientMsgID)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, bob.ID, msg.RecipientID)
	assert.Equal(t, "Alice", msg.Sender.Name)
	assert.False(t, msg.Read)

	tests := []struct {
		name   string
		body   any
		status int
		code   int
	}{
		{"empty content", gin.H{"recipient": bob.ID, "content": "   "}, http.StatusBadRequest, appErrors.CodeContentRequired},
		{"missing recipient", gin.H{"content": "hi"}, http.StatusBadRequest, appErrors.CodeRecipientRequired},
		{"unknown recipient", gin.H{"recipient": "12345", "content": "hi"}, http.StatusNotFound, appErrors.CodeRecipientNotFound},
		{"malformed recipient", gin.H{"recipient": "bob", "content": "hi"}, http.StatusBadRequest, appErrors.CodeInvalidParams},
		{"self", gin.H{"recipient": alice.ID, "content": "hi"}, http.StatusBadRequest, appErrors.CodeCannotMessageSelf},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(http.MethodPost, "/api/chat", alice.Token, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestRequiresToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/chat/conversations", "/api/chat/notifications/unread-count", "/api/users/profile"} {
		status, env := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.Equal(t, appErrors.CodeTokenInvalid, env.Code, path)
	}

	status, _ := s.do(http.MethodPost, "/api/chat", "garbage", gin.H{"recipient": "1", "content": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHistoryMarksRead(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("Alice", "alice@example.com")
	bob := s.signup("Bob", "bob@example.com")

	for _, text := range []string{"one", "two"} {
		status, _ := s.do(http.MethodPost, "/api/chat", alice.Token, gin.H{"recipient": bob.ID, "content": text})
		require.Equal(t, http.StatusCreated, status)
	}

	_, env := s.do(http.MethodGet, "/api/chat/notifications/unread-count", bob.Token, nil)
	assert.Equal(t, 2, decodeData[struct{ UnreadCount int }](t, env).UnreadCount)

	status, env := s.do(http.MethodGet, "/api/chat/"+alice.ID, bob.Token, nil)
	require.Equal(t, http.StatusOK, status)
	history := decodeData[struct {
		Recipient struct {
			ID    string  `json:"id"`
			Name  string  `json:"name"`
			Email *string `json:"email"`
		} `json:"recipient"`
		Messages []wireMessage `json:"messages"`
	}](t, env)
	assert.Equal(t, alice.ID, history.Recipient.ID)
	assert.Nil(t, history.Recipient.Email)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "one", history.Messages[0].Content)
	assert.Equal(t, "two", history.Messages[1].Content)
	assert.True(t, history.Messages[0].Read)
	assert.True(t, history.Messages[1].Read)

	_, env = s.do(http.MethodGet, "/api/chat/notifications/unread-count", bob.Token, nil)
	assert.Equal(t, 0, decodeData[struct{ UnreadCount int }](t, env).UnreadCount)

	// the sender viewing the thread does not read their own messages
	status, _ = s.do(http.MethodPost, "/api/chat", bob.Token, gin.H{"recipient": alice.ID, "content": "reply"})
	require.Equal(t, http.StatusCreated, status)
	_, env = s.do(http.MethodGet, "/api/chat/"+alice.ID, bob.Token, nil)
	history = decodeData[struct {
		Recipient struct {
			ID    string  `json:"id"`
			Name  string  `json:"name"`
			Email *string `json:"email"`
		} `json:"recipient"`
		Messages []wireMessage `json:"messages"`
	}](t, env)
	require.Len(t, history.Messages, 3)
	assert.False(t, history.Messages[2].Read)
}

func TestHistoryErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("Alice", "alice@example.com")
	bob := s.signup("Bob", "bob@example.com")

	tests := []struct {
		name   string
		path   string
		status int
		code   int
	}{
		{"unknown partner", "/api/chat/999", http.StatusNotFound, appErrors.CodePartnerNotFound},
		{"malformed id", "/api/chat/not-a-number", http.StatusBadRequest, appErrors.CodeInvalidParams},
		{"bad since", "/api/chat/" + bob.ID + "?since=yesterday", http.StatusBadRequest, appErrors.CodeInvalidCursor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(http.MethodGet, tt.path, alice.Token, nil)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestHistorySince(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("Alice", "alice@example.com")
	bob := s.signup("Bob", "bob@example.com")

	_, env := s.do(http.MethodPost, "/api/chat", alice.Token, gin.H{"recipient": bob.ID, "content": "first"})
	var first struct {
		CreatedAt time.Time `json:"createdAt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &first))

	time.Sleep(2 * time.Millisecond)
	s.do(http.MethodPost, "/api/chat", alice.Token, gin.H{"recipient": bob.ID, "content": "second"})

	status, env := s.do(http.MethodGet, "/api/chat/"+alice.ID+"?since="+first.CreatedAt.Format(time.RFC3339Nano), bob.Token, nil)
	require.Equal(t, http.StatusOK, status)
	history := decodeData[struct {
		Messages []wireMessage `json:"messages"`
	}](t, env)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "second", history.Messages[0].Content)
}

func TestConversations(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("Alice", "alice@example.com")
	bob := s.signup("Bob", "bob@example.com")
	carol := s.signup("Carol", "carol@example.com")

	s.do(http.MethodPost, "/api/chat", alice.Token, gin.H{"recipient": bob.ID, "content": "hi bob"})
	time.Sleep(2 * time.Millisecond)
	s.do(http.MethodPost, "/api/chat", bob.Token, gin.H{"recipient": alice.ID, "content": "hi alice"})
	time.Sleep(2 * time.Millisecond)
	s.do(http.MethodPost, "/api/chat", carol.Token, gin.H{"recipient": alice.ID, "content": "hey"})

	status, env := s.do(http.MethodGet, "/api/chat/conversations", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	convs := decodeData[struct {
		Conversations []wireConversation `json:"conversations"`
	}](t, env).Conversations

	require.Len(t, convs, 2)
	assert.Equal(t, carol.ID, convs[0].User.ID)
	assert.Equal(t, "hey", convs[0].LastMessage)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.Equal(t, bob.ID, convs[1].User.ID)
	assert.Equal(t, "hi alice", convs[1].LastMessage)
	assert.Equal(t, bob.ID, convs[1].LastSenderID)

	// a user with no messages gets an empty list, not null
	dave := s.signup("Dave", "dave@example.com")
	_, env = s.do(http.MethodGet, "/api/chat/conversations", dave.Token, nil)
	assert.JSONEq(t, `{"conversations":[]}`, string(env.Data))
}

func TestMarkAsRead(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("Alice", "alice@example.com")
	bob := s.signup("Bob", "bob@example.com")

	s.do(http.MethodPost, "/api/chat", alice.Token, gin.H{"recipient": bob.ID, "content": "a"})
	s.do(http.MethodPost, "/api/chat", alice.Token, gin.H{"recipient": bob.ID, "content": "b"})

	status, env := s.do(http.MethodPut, "/api/chat/mark-as-read/"+alice.ID, bob.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"Messages marked as read","updated":2}`, string(env.Data))

	status, env = s.do(http.MethodPut, "/api/chat/mark-as-read/"+alice.ID, bob.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"Messages marked as read","updated":0}`, string(env.Data))

	status, _ = s.do(http.MethodPut, "/api/chat/mark-as-read/x", bob.Token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUsersRoutes(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("Alice", "alice@example.com")
	bob := s.signup("Bob", "bob@example.com")

	status, env := s.do(http.MethodPost, "/api/users/register", "", gin.H{"name": "Alice", "email": "ALICE@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, appErrors.CodeEmailExists, env.Code)

	status, env = s.do(http.MethodGet, "/api/users/profile", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice@example.com", decodeData[struct{ Email string }](t, env).Email)

	status, env = s.do(http.MethodGet, "/api/users/"+bob.ID, alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(env.Data), "email")
	assert.NotContains(t, string(env.Data), "password")

	status, _ = s.do(http.MethodPost, "/api/users/logout", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodGet, "/api/users/profile", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
