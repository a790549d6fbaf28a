package util

import (
	"errors"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/pkg/config"
)

type (
	JWTClaims struct {
		UserID       uuid.UUID  `json:"ui"`
		Email        string     `json:"em"`
		RolePlatform model.Role `json:"rp"`
		Refresh      bool       `json:"rf,omitempty"`
		jwt.RegisteredClaims
	}
	JWTMessage struct {
		UserID       uuid.UUID  `json:"userID"`       // User ID
		Email        string     `json:"email"`        // Login email
		RolePlatform model.Role `json:"rolePlatform"` // Role in platform (e.g. user, admin)
	}
)

var ErrRefreshTokenExpected = errors.New("refresh token expected")

type TokenManager struct {
	accessSecret    string
	refreshSecret   string
	accessTokenTTL  int
	refreshTokenTTL int
}

var (
	once     sync.Once
	tokenMgr *TokenManager
)

func GetTokenMgr() *TokenManager {
	once.Do(func() {
		tokenConfig := config.NewTokenConf()
		tokenMgr = NewTokenManager(tokenConfig.AccessTokenSecret,
			tokenConfig.RefreshTokenSecret,
			tokenConfig.AccessTokenExpiryHour,
			tokenConfig.RefreshTokenExpiryHour,
		)
	})
	return tokenMgr
}

func NewTokenManager(accessSecret, refreshSecret string, accessTokenTTL, refreshTokenTTL int) *TokenManager {
	if refreshSecret == "" {
		refreshSecret = accessSecret
	}
	return &TokenManager{
		accessSecret:    accessSecret,
		refreshSecret:   refreshSecret,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

func (tm *TokenManager) createToken(msg *JWTMessage, ttl int, secret string, refresh bool) (string, error) {
	expiresAt := time.Now().Add(time.Hour * time.Duration(ttl))

	claims := &JWTClaims{
		UserID:       msg.UserID,
		Email:        msg.Email,
		RolePlatform: msg.RolePlatform,
		Refresh:      refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// CreateTokens creates a new access token and a new refresh token
func (tm *TokenManager) CreateTokens(msg *JWTMessage) (
	accessToken string, refreshToken string, err error) {
	accessToken, err = tm.createToken(msg, tm.accessTokenTTL, tm.accessSecret, false)
	if err != nil {
		klog.Error(err)
		return "", "", err
	}
	refreshToken, err = tm.createToken(msg, tm.refreshTokenTTL, tm.refreshSecret, true)
	if err != nil {
		klog.Error(err)
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func parse(requestToken, secret string) (JWTClaims, error) {
	claims := JWTClaims{}
	_, err := jwt.ParseWithClaims(requestToken, &claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return claims, err
}

// CheckToken validates an access token.
func (tm *TokenManager) CheckToken(requestToken string) (JWTMessage, error) {
	claims, err := parse(requestToken, tm.accessSecret)
	if err == nil && claims.Refresh {
		err = errors.New("access token expected")
	}
	return JWTMessage{
		UserID:       claims.UserID,
		Email:        claims.Email,
		RolePlatform: claims.RolePlatform,
	}, err
}

// CheckRefreshToken validates a refresh token.
func (tm *TokenManager) CheckRefreshToken(requestToken string) (JWTMessage, error) {
	claims, err := parse(requestToken, tm.refreshSecret)
	if err == nil && !claims.Refresh {
		err = ErrRefreshTokenExpected
	}
	return JWTMessage{
		UserID:       claims.UserID,
		Email:        claims.Email,
		RolePlatform: claims.RolePlatform,
	}, err
}
