package util

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RespondAction is the decision carried by a one click email link.
type RespondAction string

const (
	RespondAccept RespondAction = "accept"
	RespondReject RespondAction = "reject"
)

func ParseRespondAction(s string) (RespondAction, bool) {
	switch RespondAction(s) {
	case RespondAccept, RespondReject:
		return RespondAction(s), true
	default:
		return "", false
	}
}

var ErrRespondTokenMismatch = errors.New("respond token does not match the link")

type respondClaims struct {
	ApplicationID uuid.UUID     `json:"app"`
	Action        RespondAction `json:"act"`
	OwnerID       uuid.UUID     `json:"own"`
	jwt.RegisteredClaims
}

// RespondSigner signs the tokens of the accept and reject links mailed to
// project owners. A token is bound to one application, one action and the
// owner it was sent to.
type RespondSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewRespondSigner(secret string, ttl time.Duration) *RespondSigner {
	return &RespondSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *RespondSigner) Sign(applicationID uuid.UUID, action RespondAction, ownerID uuid.UUID) (string, error) {
	now := s.now()
	claims := &respondClaims{
		ApplicationID: applicationID,
		Action:        action,
		OwnerID:       ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the token against the link parameters and returns the owner
// it was issued to.
func (s *RespondSigner) Verify(token string, applicationID uuid.UUID, action RespondAction) (uuid.UUID, error) {
	claims := respondClaims{}
	_, err := jwt.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return uuid.Nil, err
	}
	if claims.ApplicationID != applicationID || claims.Action != action {
		return uuid.Nil, ErrRespondTokenMismatch
	}
	return claims.OwnerID, nil
}

// RespondLinks builds the signed accept and reject links of one application.
type RespondLinks struct {
	BaseURL string
	Signer  *RespondSigner
}

func (l *RespondLinks) Link(applicationID uuid.UUID, action RespondAction, ownerID uuid.UUID) (string, error) {
	token, err := l.Signer.Sign(applicationID, action, ownerID)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("applicationId", applicationID.String())
	q.Set("action", string(action))
	q.Set("token", token)
	return fmt.Sprintf("%s/applications/respond?%s", strings.TrimRight(l.BaseURL, "/"), q.Encode()), nil
}

func (l *RespondLinks) Pair(applicationID, ownerID uuid.UUID) (accept, reject string, err error) {
	if accept, err = l.Link(applicationID, RespondAccept, ownerID); err != nil {
		return "", "", err
	}
	if reject, err = l.Link(applicationID, RespondReject, ownerID); err != nil {
		return "", "", err
	}
	return accept, reject, nil
}
