package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raids-lab/cobrew/pkg/config"
)

func TestDecisionEmailAccepted(t *testing.T) {
	msg, err := DecisionEmail(&DecisionData{
		To:           "bob@example.com",
		OwnerName:    "Alice Smith",
		ProjectTitle: "EcoTrack",
		ProjectID:    "p1",
		Accepted:     true,
		FrontendURL:  "https://cobrew.app/",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"bob@example.com"}, msg.To)
	assert.Equal(t, `Your application for "EcoTrack" has been accepted`, msg.Subject)
	assert.Contains(t, msg.HTML, "Alice Smith has accepted your application")
	assert.Contains(t, msg.HTML, `href="https://cobrew.app/projects/p1"`)
}

func TestDecisionEmailRejectedFallsBackToOwnerPlaceholder(t *testing.T) {
	msg, err := DecisionEmail(&DecisionData{
		To:           "bob@example.com",
		ProjectTitle: "EcoTrack",
		ProjectID:    "p1",
		FrontendURL:  "https://cobrew.app",
	})
	require.NoError(t, err)

	assert.Equal(t, `Your application for "EcoTrack" has been rejected`, msg.Subject)
	assert.Contains(t, msg.HTML, "The project owner has rejected")
	assert.Contains(t, msg.HTML, `href="https://cobrew.app/projects"`)
	assert.NotContains(t, msg.HTML, "/projects/p1")
}

func TestDecisionEmailEscapesTitle(t *testing.T) {
	msg, err := DecisionEmail(&DecisionData{
		To:           "bob@example.com",
		ProjectTitle: "<script>x</script>",
		Accepted:     true,
	})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestNewApplicationEmail(t *testing.T) {
	msg, err := NewApplicationEmail(&NewApplicationData{
		To:            "alice@example.com",
		ApplicantName: "Bob Jones",
		ProjectTitle:  "EcoTrack",
		AcceptLink:    "https://api.cobrew.app/applications/respond?applicationId=a1&action=accept&token=t",
		RejectLink:    "https://api.cobrew.app/applications/respond?applicationId=a1&action=reject&token=t",
	})
	require.NoError(t, err)

	assert.Equal(t, `New application for your project "EcoTrack"`, msg.Subject)
	assert.Contains(t, msg.HTML, "Hi there,")
	assert.Contains(t, msg.HTML, "Bob Jones has applied")
	assert.Contains(t, msg.HTML, "action=accept&amp;token=t")
	assert.Contains(t, msg.HTML, "action=reject&amp;token=t")
}

func TestLogSender(t *testing.T) {
	s := NewLogSender()
	require.NoError(t, s.Send(context.Background(), &Message{To: []string{"a@b.c"}, Subject: "hi"}))
	assert.ErrorIs(t, s.Send(context.Background(), &Message{}), ErrNoRecipient)
	assert.Len(t, s.Sent(), 1)
}

func TestResendSender(t *testing.T) {
	var got resendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"mail-1"}`))
	}))
	defer srv.Close()

	s := NewResendSender(srv.URL, "key", "CO-brew <n@cobrew.app>")
	err := s.Send(context.Background(), &Message{To: []string{"bob@example.com"}, Subject: "s", HTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.Equal(t, "CO-brew <n@cobrew.app>", got.From)
	assert.Equal(t, []string{"bob@example.com"}, got.To)
	assert.Equal(t, "<p>x</p>", got.HTML)
}

func TestResendSenderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"bad from"}`))
	}))
	defer srv.Close()

	s := NewResendSender(srv.URL, "key", "bad")
	err := s.Send(context.Background(), &Message{To: []string{"bob@example.com"}})
	var re *resendError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 422, re.StatusCode)
}

func TestNewPicksDriver(t *testing.T) {
	conf := config.NewDefaultConfig()
	s, err := New(conf)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, s)

	conf.Mail.Driver = "smtp"
	s, err = New(conf)
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)

	conf.Mail.Driver = "resend"
	_, err = New(conf)
	assert.Error(t, err)

	conf.Mail.Driver = "pigeon"
	_, err = New(conf)
	assert.Error(t, err)
}
