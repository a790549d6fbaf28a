package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/internal/resputil"
	"github.com/raids-lab/cobrew/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAuthMgr)
}

type AuthMgr struct {
	name     string
	store    store.UserStore
	tokenMgr *util.TokenManager
}

func NewAuthMgr(conf *RegisterConfig) Manager {
	return &AuthMgr{
		name:     "auth",
		store:    conf.Store,
		tokenMgr: conf.TokenMgr,
	}
}

func (mgr *AuthMgr) GetName() string { return mgr.name }

func (mgr *AuthMgr) RegisterPublic(g *gin.RouterGroup) {
	g.POST("signup", mgr.Signup)
	g.POST("login", mgr.Login)
	g.POST("refresh", mgr.RefreshToken)
}

func (mgr *AuthMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *AuthMgr) RegisterAdmin(_ *gin.RouterGroup) {}

const (
	minPasswordLength = 8
	// bcrypt only hashes the first 72 bytes and refuses longer input.
	maxPasswordBytes = 72
)

type (
	SignupReq struct {
		Email     string  `json:"email" binding:"required,email"`
		Password  string  `json:"password" binding:"required"`
		FirstName *string `json:"firstName"`
		LastName  *string `json:"lastName"`
	}

	LoginReq struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	RefreshReq struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	LoginResp struct {
		AccessToken  string         `json:"accessToken"`
		RefreshToken string         `json:"refreshToken"`
		User         model.UserInfo `json:"user"`
		Email        string         `json:"email"`
		RolePlatform model.Role     `json:"rolePlatform"`
	}
)

func (mgr *AuthMgr) issue(c *gin.Context, user *model.User) {
	access, refresh, err := mgr.tokenMgr.CreateTokens(&util.JWTMessage{
		UserID:       user.ID,
		Email:        user.Email,
		RolePlatform: user.Role,
	})
	if err != nil {
		resputil.Error(c, "Failed to create token", resputil.NotSpecified)
		return
	}
	resputil.Success(c, LoginResp{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user.Info(),
		Email:        user.Email,
		RolePlatform: user.Role,
	})
}

// Signup godoc
// @Summary Create an account
// @Description Register with email and password, returns a token pair
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body SignupReq true "account"
// @Success 200 {object} resputil.Response[LoginResp] "Account created"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 409 {object} resputil.Response[any] "Email already registered"
// @Router /v1/auth/signup [post]
func (mgr *AuthMgr) Signup(c *gin.Context) {
	var req SignupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if len(req.Password) < minPasswordLength {
		resputil.BadRequestError(c, "Password must be at least 8 characters")
		return
	}
	if len(req.Password) > maxPasswordBytes {
		resputil.BadRequestError(c, "Password must be at most 72 bytes")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		resputil.Error(c, "Failed to hash password", resputil.NotSpecified)
		return
	}
	user := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FirstName:    trimmedOrNil(req.FirstName),
		LastName:     trimmedOrNil(req.LastName),
		Role:         model.RoleUser,
	}
	if err := mgr.store.CreateUser(c, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			resputil.HTTPError(c, http.StatusConflict, "Email already registered", resputil.EmailAlreadyUsed)
			return
		}
		klog.Errorf("create user %s: %v", user.Email, err)
		resputil.Error(c, "Create user failed", resputil.NotSpecified)
		return
	}
	klog.Infof("user %s signed up", user.ID)
	mgr.issue(c, user)
}

// Login godoc
// @Summary Sign in
// @Description Check email and password, returns a token pair
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body LoginReq true "credentials"
// @Success 200 {object} resputil.Response[LoginResp] "Signed in"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 401 {object} resputil.Response[any] "Invalid credentials"
// @Router /v1/auth/login [post]
func (mgr *AuthMgr) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	user, err := mgr.store.GetUserByEmail(c, req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		klog.Error(err)
		resputil.Error(c, "Login failed", resputil.NotSpecified)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "Invalid credentials", resputil.InvalidCredentials)
		return
	}
	mgr.issue(c, user)
}

// RefreshToken godoc
// @Summary Refresh the token pair
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body RefreshReq true "refresh token"
// @Success 200 {object} resputil.Response[LoginResp] "New token pair"
// @Failure 401 {object} resputil.Response[any] "Invalid refresh token"
// @Router /v1/auth/refresh [post]
func (mgr *AuthMgr) RefreshToken(c *gin.Context) {
	var req RefreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	msg, err := mgr.tokenMgr.CheckRefreshToken(req.RefreshToken)
	if err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "Invalid refresh token", resputil.TokenInvalid)
		return
	}
	user, err := mgr.store.GetUser(c, msg.UserID)
	if err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "User not found", resputil.TokenInvalid)
		return
	}
	mgr.issue(c, user)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
