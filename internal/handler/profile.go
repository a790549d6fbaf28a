package handler

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/internal/resputil"
	"github.com/raids-lab/cobrew/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewProfileMgr)
}

type ProfileMgr struct {
	name  string
	store store.UserStore
}

func NewProfileMgr(conf *RegisterConfig) Manager {
	return &ProfileMgr{
		name:  "profile",
		store: conf.Store,
	}
}

func (mgr *ProfileMgr) GetName() string { return mgr.name }

func (mgr *ProfileMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ProfileMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("", mgr.GetProfile)
	g.PUT("", mgr.UpdateProfile)
}

func (mgr *ProfileMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	ProfileResp struct {
		model.UserInfo
		model.Profile
		Email string `json:"email"`
		// Completion is the profile completion in percent.
		Completion int `json:"completion"`
	}

	UpdateProfileReq struct {
		FirstName   string   `json:"firstName" binding:"required"`
		LastName    string   `json:"lastName" binding:"required"`
		Title       string   `json:"title" binding:"required"`
		Location    string   `json:"location"`
		Experience  string   `json:"experience"`
		Industry    string   `json:"industry"`
		Education   string   `json:"education"`
		GithubURL   string   `json:"githubUrl"`
		LinkedinURL string   `json:"linkedinUrl"`
		Bio         string   `json:"bio" binding:"required"`
		Skills      []string `json:"skills"`
	}
)

const (
	minNameLength  = 2
	minTitleLength = 3
	minBioLength   = 20
)

// profileURLPattern accepts a host with an optional scheme and path, such as
// github.com/alice or https://www.linkedin.com/in/alice.
var profileURLPattern = regexp.MustCompile(
	`^(https?://)?(www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_+.~#?&/=]*)$`)

func toProfileResp(user *model.User) ProfileResp {
	return ProfileResp{
		UserInfo:   user.Info(),
		Profile:    user.Profile,
		Email:      user.Email,
		Completion: user.ProfileCompletion(),
	}
}

// validate trims every field and checks the lengths and link formats. It
// returns the first problem found, or an empty string.
func (req *UpdateProfileReq) validate() string {
	for _, f := range []*string{
		&req.FirstName, &req.LastName, &req.Title, &req.Location, &req.Experience,
		&req.Industry, &req.Education, &req.GithubURL, &req.LinkedinURL, &req.Bio,
	} {
		*f = strings.TrimSpace(*f)
	}
	switch {
	case utf8.RuneCountInString(req.FirstName) < minNameLength:
		return "First name must be at least 2 characters"
	case utf8.RuneCountInString(req.LastName) < minNameLength:
		return "Last name must be at least 2 characters"
	case utf8.RuneCountInString(req.Title) < minTitleLength:
		return "Professional title must be at least 3 characters"
	case utf8.RuneCountInString(req.Bio) < minBioLength:
		return "Bio must be at least 20 characters"
	case req.GithubURL != "" && !profileURLPattern.MatchString(req.GithubURL):
		return "Please enter a valid GitHub URL"
	case req.LinkedinURL != "" && !profileURLPattern.MatchString(req.LinkedinURL):
		return "Please enter a valid LinkedIn URL"
	}
	req.Skills = cleanSet(req.Skills)
	return ""
}

// GetProfile godoc
// @Summary Get the current user's profile
// @Description Includes the profile completion percentage
// @Tags Profile
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[ProfileResp] "Profile"
// @Failure 404 {object} resputil.Response[any] "User not found"
// @Router /v1/profile [get]
func (mgr *ProfileMgr) GetProfile(c *gin.Context) {
	token := util.GetToken(c)
	user, err := mgr.store.GetUser(c, token.UserID)
	if err != nil {
		resputil.Error(c, "User not found", resputil.NotSpecified)
		return
	}
	resputil.Success(c, toProfileResp(user))
}

// UpdateProfile godoc
// @Summary Update the profile
// @Description Names need 2 characters, the title 3 and the bio 20. Links may omit the scheme. Skills are deduplicated.
// @Tags Profile
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body UpdateProfileReq true "profile"
// @Success 200 {object} resputil.Response[ProfileResp] "Updated profile"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Router /v1/profile [put]
func (mgr *ProfileMgr) UpdateProfile(c *gin.Context) {
	token := util.GetToken(c)
	var req UpdateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if problem := req.validate(); problem != "" {
		resputil.BadRequestError(c, problem)
		return
	}
	user, err := mgr.store.UpdateUserProfile(c, token.UserID, &req.FirstName, &req.LastName, model.Profile{
		Title:       req.Title,
		Location:    req.Location,
		Experience:  req.Experience,
		Industry:    req.Industry,
		Education:   req.Education,
		GithubURL:   req.GithubURL,
		LinkedinURL: req.LinkedinURL,
		Bio:         req.Bio,
		Skills:      req.Skills,
	})
	if err != nil {
		klog.Errorf("update profile of %s: %v", token.UserID, err)
		resputil.Error(c, "Failed to update profile", resputil.NotSpecified)
		return
	}
	resputil.Success(c, toProfileResp(user))
}
