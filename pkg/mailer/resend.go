package mailer

import (
	"context"
	"fmt"

	imrocreq "github.com/imroc/req/v3"
	"k8s.io/klog/v2"
)

// ResendSender posts messages to a Resend compatible HTTP API.
type ResendSender struct {
	endpoint string
	from     string
	client   *imrocreq.Client
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (e *resendError) Error() string {
	return fmt.Sprintf("resend: %d %s: %s", e.StatusCode, e.Name, e.Message)
}

func NewResendSender(endpoint, apiKey, from string) *ResendSender {
	return &ResendSender{
		endpoint: endpoint,
		from:     from,
		client:   imrocreq.C().SetCommonBearerAuthToken(apiKey),
	}
}

func (s *ResendSender) Send(ctx context.Context, msg *Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	var ok resendResponse
	var failed resendError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&resendRequest{From: s.from, To: msg.To, Subject: msg.Subject, HTML: msg.HTML}).
		SetSuccessResult(&ok).
		SetErrorResult(&failed).
		Post(s.endpoint)
	if err != nil {
		return err
	}
	if resp.IsErrorState() {
		if failed.StatusCode == 0 {
			failed.StatusCode = resp.StatusCode
		}
		return &failed
	}
	klog.Infof("Sent email %s to %v", ok.ID, msg.To)
	return nil
}
