package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store/storetest"
	"github.com/raids-lab/cobrew/internal/handler"
	"github.com/raids-lab/cobrew/internal/resputil"
	"github.com/raids-lab/cobrew/internal/service"
	"github.com/raids-lab/cobrew/internal/sideeffect"
	"github.com/raids-lab/cobrew/internal/util"
	"github.com/raids-lab/cobrew/pkg/changefeed"
	"github.com/raids-lab/cobrew/pkg/config"
	"github.com/raids-lab/cobrew/pkg/mailer"
	"github.com/raids-lab/cobrew/pkg/outbox"
)

type envelope struct {
	Code resputil.ErrorCode `json:"code"`
	Data json.RawMessage    `json:"data"`
	Msg  string             `json:"msg"`
}

type server struct {
	engine  *gin.Engine
	mem     *storetest.Memory
	sender  *mailer.LogSender
	links   *util.RespondLinks
	tokens  *util.TokenManager
	alice   *model.User
	bob     *model.User
	carol   *model.User
	admin   *model.User
	project *model.Project
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	conf := config.NewDefaultConfig()
	conf.FrontendURL = "https://cobrew.app"
	conf.BaseURL = "https://api.cobrew.app"

	mem := storetest.NewMemory()
	sender := mailer.NewLogSender()
	worker, err := outbox.NewWorker(mem, outbox.Options{
		Schedule:    "@every 1h",
		BatchSize:   10,
		PoolSize:    2,
		MaxAttempts: 3,
		Lease:       time.Minute,
		BaseBackoff: time.Second,
		MaxBackoff:  time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(worker.Stop)

	links := &util.RespondLinks{BaseURL: conf.BaseURL, Signer: util.NewRespondSigner("respond-secret", time.Hour)}
	sideeffect.NewHandlers(mem, sender, links, conf.FrontendURL).Register(worker)
	feed := changefeed.NewBroker()
	t.Cleanup(func() { _ = feed.Close() })

	s := &server{
		mem:    mem,
		sender: sender,
		links:  links,
		tokens: util.NewTokenManager("access-secret", "refresh-secret", 1, 24),
		alice:  &model.User{Email: "alice@example.com", FirstName: ptr.To("Alice"), LastName: ptr.To("Smith"), Role: model.RoleUser},
		bob:    &model.User{Email: "bob@example.com", FirstName: ptr.To("Bob"), LastName: ptr.To("Jones"), Role: model.RoleUser},
		carol:  &model.User{Email: "carol@example.com", Role: model.RoleUser},
		admin:  &model.User{Email: "root@example.com", Role: model.RoleAdmin},
	}
	for _, u := range []*model.User{s.alice, s.bob, s.carol, s.admin} {
		require.NoError(t, mem.CreateUser(ctx, u))
	}
	s.project = &model.Project{Title: "EcoTrack", Description: "Track carbon", Stage: model.ProjectStageIdea, CreatorID: s.alice.ID}
	require.NoError(t, mem.CreateProject(ctx, s.project))

	s.engine = Register(&handler.RegisterConfig{
		Config:       conf,
		Store:        mem,
		Applications: service.NewApplicationService(mem, feed, worker),
		Feed:         feed,
		Mailer:       sender,
		Links:        links,
		TokenMgr:     s.tokens,
		Dispatcher:   worker,
	})
	return s
}

func (s *server) token(t *testing.T, u *model.User) string {
	t.Helper()
	access, _, err := s.tokens.CreateTokens(&util.JWTMessage{UserID: u.ID, Email: u.Email, RolePlatform: u.Role})
	require.NoError(t, err)
	return access
}

func (s *server) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) (T, envelope) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	var data T
	if len(env.Data) > 0 && string(env.Data) != "null" {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return data, env
}

func (s *server) mailsTo(addr string) []mailer.Message {
	var out []mailer.Message
	for _, m := range s.sender.Sent() {
		if len(m.To) == 1 && m.To[0] == addr {
			out = append(out, m)
		}
	}
	return out
}

func (s *server) apply(t *testing.T) model.Application {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/projects/"+s.project.ID.String()+"/applications",
		gin.H{"why": "I love this", "experience": "5 years React"}, s.token(t, s.bob))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	app, _ := decode[model.Application](t, w)
	return app
}

func TestHealthz(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/v1/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/v1/notifications/applications", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/v1/notifications/applications", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFunctionsAnswerPreflight(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/functions/notify-applicant", nil)
	req.Header.Set("Origin", "https://cobrew.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization, x-client-info, apikey, content-type")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "x-client-info")
}

func TestApplyAndAcceptFromDashboard(t *testing.T) {
	s := newServer(t)
	app := s.apply(t)
	assert.Equal(t, model.ApplicationStatusPending, app.Status)
	assert.Equal(t, "Why: I love this\nExperience: 5 years React", app.Message)

	ownerMails := s.mailsTo("alice@example.com")
	require.Len(t, ownerMails, 1)
	assert.Equal(t, `New application for your project "EcoTrack"`, ownerMails[0].Subject)

	w := s.do(t, http.MethodGet, "/v1/notifications/applications", nil, s.token(t, s.alice))
	require.Equal(t, http.StatusOK, w.Code)
	views, _ := decode[[]service.ApplicationView](t, w)
	require.Len(t, views, 1)
	assert.Equal(t, "EcoTrack", views[0].ProjectTitle)
	assert.Equal(t, "Bob Jones", views[0].Applicant.DisplayName)

	w = s.do(t, http.MethodPost, "/v1/applications/"+app.ID.String()+"/accept", nil, s.token(t, s.alice))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decision, _ := decode[handler.DecisionResp](t, w)
	assert.Equal(t, model.ApplicationStatusAccepted, decision.Application.Status)
	assert.True(t, decision.ChatInitialized)

	chats := s.mem.ChatMessages()
	require.Len(t, chats, 1)
	assert.Equal(t, s.alice.ID, chats[0].SenderID)
	assert.Equal(t, model.WelcomeMessage, chats[0].Content)
	bobMails := s.mailsTo("bob@example.com")
	require.Len(t, bobMails, 1)
	assert.Equal(t, `Your application for "EcoTrack" has been accepted`, bobMails[0].Subject)

	w = s.do(t, http.MethodPost, "/v1/applications/"+app.ID.String()+"/reject", nil, s.token(t, s.alice))
	assert.Equal(t, http.StatusConflict, w.Code)
	_, env := decode[any](t, w)
	assert.Equal(t, resputil.ApplicationAlreadyResponded, env.Code)
	assert.Equal(t, "This application has already been accepted.", env.Msg)
	assert.Len(t, s.mem.ChatMessages(), 1)
	assert.Len(t, s.mailsTo("bob@example.com"), 1)

	w = s.do(t, http.MethodGet, "/v1/notifications/applications", nil, s.token(t, s.alice))
	views, _ = decode[[]service.ApplicationView](t, w)
	assert.Empty(t, views)
}

func TestRejectFromProjectPanel(t *testing.T) {
	s := newServer(t)
	app := s.apply(t)

	path := "/v1/projects/" + s.project.ID.String() + "/applications/" + app.ID.String()
	w := s.do(t, http.MethodPut, path, gin.H{"status": "rejected"}, s.token(t, s.alice))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Empty(t, s.mem.ChatMessages())
	bobMails := s.mailsTo("bob@example.com")
	require.Len(t, bobMails, 1)
	assert.Contains(t, bobMails[0].Subject, "rejected")

	w = s.do(t, http.MethodPut, path, gin.H{"status": "pending"}, s.token(t, s.alice))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	other := "/v1/projects/" + uuid.NewString() + "/applications/" + app.ID.String()
	w = s.do(t, http.MethodPut, other, gin.H{"status": "accepted"}, s.token(t, s.alice))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApplyRules(t *testing.T) {
	s := newServer(t)
	path := "/v1/projects/" + s.project.ID.String() + "/applications"

	w := s.do(t, http.MethodPost, path, gin.H{"why": "me", "experience": "lots"}, s.token(t, s.alice))
	assert.Equal(t, http.StatusForbidden, w.Code)
	_, env := decode[any](t, w)
	assert.Equal(t, resputil.SelfApplication, env.Code)

	w = s.do(t, http.MethodPost, path, gin.H{"why": "  ", "experience": "lots"}, s.token(t, s.bob))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/projects/"+uuid.NewString()+"/applications",
		gin.H{"why": "x", "experience": "y"}, s.token(t, s.bob))
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.apply(t)
	w = s.do(t, http.MethodPost, path, gin.H{"why": "again", "experience": "y"}, s.token(t, s.bob))
	assert.Equal(t, http.StatusConflict, w.Code)
	_, env = decode[any](t, w)
	assert.Equal(t, resputil.DuplicateApplication, env.Code)
}

func TestNonOwnerCannotDecideOrList(t *testing.T) {
	s := newServer(t)
	app := s.apply(t)

	w := s.do(t, http.MethodPost, "/v1/applications/"+app.ID.String()+"/accept", nil, s.token(t, s.carol))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/v1/projects/"+s.project.ID.String()+"/applications", nil, s.token(t, s.carol))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/v1/notifications/applications", nil, s.token(t, s.carol))
	views, _ := decode[[]service.ApplicationView](t, w)
	assert.Empty(t, views)

	stored, err := s.mem.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusPending, stored.Status)
}

func TestRespondLink(t *testing.T) {
	s := newServer(t)
	app := s.apply(t)

	link, err := s.links.Link(app.ID, util.RespondAccept, s.alice.ID)
	require.NoError(t, err)
	path := strings.TrimPrefix(link, "https://api.cobrew.app")

	w := s.do(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "You have accepted the application.")
	assert.Contains(t, w.Body.String(), "EcoTrack")
	assert.Contains(t, w.Body.String(), "https://cobrew.app/dashboard")
	assert.Len(t, s.mem.ChatMessages(), 1)

	w = s.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "This application has already been accepted.")

	reject, err := s.links.Link(app.ID, util.RespondReject, s.alice.ID)
	require.NoError(t, err)
	w = s.do(t, http.MethodGet, strings.TrimPrefix(reject, "https://api.cobrew.app"), nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Len(t, s.mem.ChatMessages(), 1)
	assert.Len(t, s.mailsTo("bob@example.com"), 1)
}

func TestRespondLinkRejectsBadInput(t *testing.T) {
	s := newServer(t)
	app := s.apply(t)

	w := s.do(t, http.MethodGet, "/applications/respond?action=accept", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid parameters provided. Please check your link and try again.")

	w = s.do(t, http.MethodGet, "/applications/respond?action=maybe&applicationId="+app.ID.String(), nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// unsigned links are refused while tokens are required
	w = s.do(t, http.MethodGet, "/applications/respond?action=accept&applicationId="+app.ID.String(), nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a reject token does not open the accept action
	reject, err := s.links.Link(app.ID, util.RespondReject, s.alice.ID)
	require.NoError(t, err)
	tampered := strings.Replace(strings.TrimPrefix(reject, "https://api.cobrew.app"), "action=reject", "action=accept", 1)
	w = s.do(t, http.MethodGet, tampered, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// a token issued to someone else than the owner
	forged, err := s.links.Link(app.ID, util.RespondAccept, s.carol.ID)
	require.NoError(t, err)
	w = s.do(t, http.MethodGet, strings.TrimPrefix(forged, "https://api.cobrew.app"), nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	stranger, err := s.links.Link(uuid.New(), util.RespondAccept, s.alice.ID)
	require.NoError(t, err)
	w = s.do(t, http.MethodGet, strings.TrimPrefix(stranger, "https://api.cobrew.app"), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	stored, err := s.mem.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusPending, stored.Status)
}

func TestProjectChatInitFunction(t *testing.T) {
	s := newServer(t)
	app := s.apply(t)

	w := s.do(t, http.MethodPost, "/v1/functions/project-chat-init",
		gin.H{"applicationId": app.ID, "applicantId": s.carol.ID}, s.token(t, s.alice))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)

	w = s.do(t, http.MethodPost, "/v1/functions/project-chat-init",
		gin.H{"applicationId": uuid.New(), "applicantId": s.bob.ID}, s.token(t, s.alice))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/v1/functions/project-chat-init",
		gin.H{"applicationId": app.ID, "applicantId": s.bob.ID, "projectOwnerId": s.alice.ID}, s.token(t, s.alice))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp handler.ProjectChatInitResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.ChatInitialized)
	require.NotNil(t, resp.Message)
	assert.Equal(t, s.alice.ID, resp.Message.SenderID)
	assert.Equal(t, s.project.ID, resp.Message.ProjectID)

	w = s.do(t, http.MethodPost, "/v1/functions/project-chat-init",
		gin.H{"applicationId": app.ID, "applicantId": s.bob.ID}, s.token(t, s.alice))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, s.mem.ChatMessages(), 1)
}

func TestNotifyApplicantFunction(t *testing.T) {
	s := newServer(t)
	app := s.apply(t)

	w := s.do(t, http.MethodPost, "/v1/functions/notify-applicant", gin.H{"status": "accepted"}, s.token(t, s.alice))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/functions/notify-applicant",
		gin.H{"applicationId": app.ID, "status": "accepted"}, s.token(t, s.alice))
	assert.Equal(t, http.StatusConflict, w.Code)
	var fe handler.FunctionError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fe))
	assert.NotEmpty(t, fe.Error)

	w = s.do(t, http.MethodPost, "/v1/applications/"+app.ID.String()+"/reject", nil, s.token(t, s.alice))
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, "/v1/functions/notify-applicant",
		gin.H{"applicationId": app.ID, "status": "rejected"}, s.token(t, s.alice))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Len(t, s.mailsTo("bob@example.com"), 2)
}

func TestSendProjectApplicationEmailFunction(t *testing.T) {
	s := newServer(t)
	app := s.apply(t)
	before := len(s.mailsTo("alice@example.com"))

	body := gin.H{
		"applicantName":  "Bob Jones",
		"applicantEmail": "bob@example.com",
		"projectId":      s.project.ID,
		"projectTitle":   "EcoTrack",
		"applicationId":  app.ID,
		"ownerEmail":     "someone@else.com",
		"ownerName":      "Alice",
		"baseUrl":        "https://evil.example",
	}
	w := s.do(t, http.MethodPost, "/v1/functions/send-project-application-email", body, s.token(t, s.carol))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/v1/functions/send-project-application-email", body, s.token(t, s.bob))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	mails := s.mailsTo("alice@example.com")
	require.Len(t, mails, before+1)
	last := mails[len(mails)-1]
	assert.Contains(t, last.HTML, "https://api.cobrew.app/applications/respond")
	assert.NotContains(t, last.HTML, "evil.example")
	assert.Empty(t, s.mailsTo("someone@else.com"))
}

func TestProjectChatAccess(t *testing.T) {
	s := newServer(t)
	app := s.apply(t)
	chat := "/v1/projects/" + s.project.ID.String() + "/chat"

	w := s.do(t, http.MethodGet, chat, nil, s.token(t, s.bob))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/v1/applications/"+app.ID.String()+"/accept", nil, s.token(t, s.alice))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, chat, nil, s.token(t, s.bob))
	require.Equal(t, http.StatusOK, w.Code)
	msgs, _ := decode[[]model.ChatMessage](t, w)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.WelcomeMessage, msgs[0].Content)

	w = s.do(t, http.MethodPost, chat, gin.H{"content": "Hi, is this still open?"}, s.token(t, s.carol))
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, chat, nil, s.token(t, s.alice))
	msgs, _ = decode[[]model.ChatMessage](t, w)
	assert.Len(t, msgs, 2)

	// a member sees only project-wide messages and their own direct ones
	w = s.do(t, http.MethodPost, chat, gin.H{"content": "Thanks for having me"}, s.token(t, s.bob))
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, chat, nil, s.token(t, s.bob))
	require.Equal(t, http.StatusOK, w.Code)
	msgs, _ = decode[[]model.ChatMessage](t, w)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.WelcomeMessage, msgs[0].Content)
	assert.Equal(t, "Thanks for having me", msgs[1].Content)
	for _, m := range msgs {
		assert.NotEqual(t, s.carol.ID, m.SenderID)
	}
}

func TestChatHistoryKeepsNewestMessages(t *testing.T) {
	s := newServer(t)
	chat := "/v1/projects/" + s.project.ID.String() + "/chat"
	token := s.token(t, s.alice)
	for i := 0; i <= 200; i++ {
		w := s.do(t, http.MethodPost, chat, gin.H{"content": fmt.Sprintf("msg %d", i)}, token)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := s.do(t, http.MethodGet, chat, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	msgs, _ := decode[[]model.ChatMessage](t, w)
	require.Len(t, msgs, 200)
	assert.Equal(t, "msg 1", msgs[0].Content)
	assert.Equal(t, "msg 200", msgs[199].Content)
}

func TestProjectEndpoints(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/v1/projects", gin.H{
		"title":       "SolarMap",
		"description": "Map rooftops",
		"stage":       "mvp",
		"tags":        []string{"energy", " energy ", ""},
	}, s.token(t, s.bob))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created, _ := decode[handler.ProjectResp](t, w)
	assert.Equal(t, []string{"energy"}, created.Tags)

	w = s.do(t, http.MethodPost, "/v1/projects", gin.H{"title": "X", "description": "Y", "stage": "series-b"}, s.token(t, s.bob))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/v1/projects/"+s.project.ID.String(), nil, s.token(t, s.bob))
	require.Equal(t, http.StatusOK, w.Code)
	detail, _ := decode[handler.ProjectDetailResp](t, w)
	assert.Equal(t, "Alice Smith", detail.Owner.DisplayName)
	assert.False(t, detail.IsOwner)

	w = s.do(t, http.MethodGet, "/v1/projects/"+uuid.NewString(), nil, s.token(t, s.bob))
	assert.Equal(t, http.StatusNotFound, w.Code)
	_, env := decode[any](t, w)
	assert.Equal(t, resputil.ProjectNotFound, env.Code)

	w = s.do(t, http.MethodGet, "/v1/projects/mine", nil, s.token(t, s.bob))
	mine, _ := decode[[]handler.ProjectResp](t, w)
	require.Len(t, mine, 1)
	assert.Equal(t, "SolarMap", mine[0].Title)
}

func TestSignupLoginProfile(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/v1/auth/signup", gin.H{
		"email": "Dana@Example.com", "password": "correct horse", "firstName": "Dana",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/auth/signup", gin.H{"email": "dana@example.com", "password": "another one"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/signup", gin.H{
		"email": "long@example.com", "password": strings.Repeat("x", 73),
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/login", gin.H{"email": "dana@example.com", "password": "wrong password"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/login", gin.H{"email": "dana@example.com", "password": "correct horse"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	login, _ := decode[handler.LoginResp](t, w)
	require.NotEmpty(t, login.AccessToken)

	w = s.do(t, http.MethodGet, "/v1/profile", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	profile, _ := decode[handler.ProfileResp](t, w)
	assert.Equal(t, 11, profile.Completion)

	w = s.do(t, http.MethodPut, "/v1/profile", gin.H{"firstName": "Dana", "lastName": "Scully"}, login.AccessToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/v1/profile", danaProfile(gin.H{"bio": "Too short"}), login.AccessToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, env := decode[any](t, w)
	assert.Equal(t, "Bio must be at least 20 characters", env.Msg)

	w = s.do(t, http.MethodPut, "/v1/profile", danaProfile(gin.H{"githubUrl": "not a url"}), login.AccessToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/v1/profile", danaProfile(nil), login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodGet, "/v1/profile", nil, login.AccessToken)
	profile, _ = decode[handler.ProfileResp](t, w)
	assert.Equal(t, "Dana Scully", profile.DisplayName)
	assert.Equal(t, "Special Agent", profile.Title)
	assert.Equal(t, "github.com/dscully", profile.GithubURL)
	assert.Equal(t, []string{"Forensics", "Go"}, []string(profile.Skills))
	assert.Equal(t, 78, profile.Completion)

	// refresh tokens are not accepted as access tokens
	w = s.do(t, http.MethodGet, "/v1/profile", nil, login.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// danaProfile is a valid profile update with seven of nine fields filled.
// Entries in override replace or add fields.
func danaProfile(override gin.H) gin.H {
	body := gin.H{
		"firstName": " Dana ",
		"lastName":  "Scully",
		"title":     "Special Agent",
		"location":  "Washington",
		"industry":  "Healthtech",
		"githubUrl": "github.com/dscully",
		"bio":       "Forensic pathologist who writes analysis tooling.",
		"skills":    []string{"Forensics", " Forensics", "Go", ""},
	}
	for k, v := range override {
		body[k] = v
	}
	return body
}

func TestDiscoverUsers(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPut, "/v1/profile", danaProfile(gin.H{"firstName": "Bob", "lastName": "Jones"}), s.token(t, s.bob))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	discover := func(q string) []handler.DiscoverUserResp {
		t.Helper()
		w := s.do(t, http.MethodGet, "/v1/users/discover?q="+q, nil, s.token(t, s.carol))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		users, _ := decode[[]handler.DiscoverUserResp](t, w)
		return users
	}

	// alice has only names, so she stays below the threshold
	users := discover("")
	require.Len(t, users, 1)
	assert.Equal(t, s.bob.ID, users[0].ID)
	assert.Equal(t, 78, users[0].Completion)
	assert.Equal(t, "Washington", users[0].Location)

	for _, q := range []string{"bob%20jo", "FORENS", "washing"} {
		assert.Len(t, discover(q), 1, q)
	}
	assert.Empty(t, discover("alice"))
	assert.Empty(t, discover("react"))

	w = s.do(t, http.MethodGet, "/v1/users/discover", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWatchPendingApplications(t *testing.T) {
	s := newServer(t)
	srv := httptest.NewServer(s.engine)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/v1/notifications/applications/watch?access_token=" + s.token(t, s.alice)
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	t.Cleanup(func() { _ = ws.Close() })

	next := func() handler.WatchMessage {
		t.Helper()
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg handler.WatchMessage
		require.NoError(t, ws.ReadJSON(&msg))
		return msg
	}

	msg := next()
	assert.Equal(t, "snapshot", msg.Type)
	assert.Empty(t, msg.Applications)

	app := s.apply(t)
	msg = next()
	assert.Equal(t, "change", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, changefeed.EventInsert, msg.Event.Type)
	require.Len(t, msg.Applications, 1)
	assert.Equal(t, app.ID, msg.Applications[0].ID)

	// an application to carol's project must not reach alice's watch
	other := &model.Project{Title: "SolarMap", Description: "Map rooftops", Stage: model.ProjectStageIdea, CreatorID: s.carol.ID}
	require.NoError(t, s.mem.CreateProject(context.Background(), other))
	w := s.do(t, http.MethodPost, "/v1/projects/"+other.ID.String()+"/applications",
		gin.H{"why": "Solar is neat", "experience": "GIS"}, s.token(t, s.bob))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/applications/"+app.ID.String()+"/accept", nil, s.token(t, s.alice))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	msg = next()
	assert.Equal(t, "change", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, changefeed.EventUpdate, msg.Event.Type)
	assert.Equal(t, app.ID, msg.Event.ApplicationID)
	assert.Empty(t, msg.Applications)

	assert.Positive(t, s.mem.PrimaryReads())
}

func TestOutboxAdmin(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/v1/admin/outbox?status=done", nil, s.token(t, s.alice))
	assert.Equal(t, http.StatusForbidden, w.Code)

	s.apply(t)
	w = s.do(t, http.MethodGet, "/v1/admin/outbox?status=done", nil, s.token(t, s.admin))
	require.Equal(t, http.StatusOK, w.Code)
	items, _ := decode[[]model.OutboxItem](t, w)
	require.Len(t, items, 1)
	assert.Equal(t, model.OutboxKindOwnerNewApplication, items[0].Kind)

	w = s.do(t, http.MethodPost, "/v1/admin/outbox/"+items[0].ID.String()+"/requeue", nil, s.token(t, s.admin))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	s.apply(t)
	w := s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cobrew_applications_submitted_total")
	assert.Contains(t, w.Body.String(), "cobrew_outbox_items")
}
