package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/weamind-linebot-go/internal/ctxutil"
	domerrors "github.com/garyellow/weamind-linebot-go/internal/errors"
	"github.com/garyellow/weamind-linebot-go/internal/lineauth"
	"github.com/garyellow/weamind-linebot-go/internal/location"
	"github.com/garyellow/weamind-linebot-go/internal/logger"
	"github.com/garyellow/weamind-linebot-go/internal/sentry"
	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

// idTokenHeader optionally carries the LIFF ID token next to the access token.
const idTokenHeader = "X-Line-Id-Token"

// Error details returned by the users API.
const (
	detailMissingToken      = "Missing bearer token"
	detailInvalidToken      = "Invalid LINE Access Token"
	detailInvalidIDToken    = "Invalid LINE ID Token"
	detailTokenMismatch     = "Access token and ID token belong to different users"
	detailVerifyUnavailable = "Unable to verify token due to network error"
	detailInvalidBody       = "Invalid request body"
	detailInvalidType       = "無效的地點類型"
	detailUnknownLocation   = "地點不存在"
	detailInternal          = "Internal server error"
)

// tokenVerifier checks LIFF tokens.
type tokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*lineauth.Profile, error)
	VerifyIDToken(ctx context.Context, token string) (*lineauth.Profile, error)
}

// divisionLookup validates county and district pairs against the catalog.
type divisionLookup interface {
	IsValidDivisionName(fullName string) bool
	LookupDivision(ctx context.Context, county, district string) (*storage.Location, error)
}

// userLocationStore persists preset locations.
type userLocationStore interface {
	SetUserLocation(ctx context.Context, lineUserID string, locationType storage.UserLocationType, locationID int64) error
}

var (
	_ tokenVerifier     = (*lineauth.Verifier)(nil)
	_ divisionLookup    = (*location.Resolver)(nil)
	_ userLocationStore = (*storage.DB)(nil)
)

// locationRequest is the body posted by the LIFF location page.
type locationRequest struct {
	LocationType string `json:"location_type"`
	County       string `json:"county"`
	District     string `json:"district"`
}

// locationResponse confirms a saved preset location.
type locationResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	LocationType string `json:"location_type"`
	Location     string `json:"location"`
}

// usersHandler serves the LIFF user API.
type usersHandler struct {
	verifier  tokenVerifier
	divisions divisionLookup
	store     userLocationStore
	logger    *logger.Logger
}

func newUsersHandler(verifier tokenVerifier, divisions divisionLookup, store userLocationStore, log *logger.Logger) *usersHandler {
	return &usersHandler{
		verifier:  verifier,
		divisions: divisions,
		store:     store,
		logger:    log.WithModule("users"),
	}
}

// setLocation handles POST /users/locations.
func (h *usersHandler) setLocation(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := h.authenticate(c)
	if !ok {
		return
	}
	ctx = ctxutil.WithUserID(ctx, userID)

	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortDetail(c, http.StatusBadRequest, detailInvalidBody)
		return
	}

	if err := h.validate(&req); err != nil {
		var ve *domerrors.ValidationError
		if errors.As(err, &ve) {
			abortDetail(c, http.StatusBadRequest, ve.Detail)
			return
		}
		abortDetail(c, http.StatusBadRequest, detailInvalidBody)
		return
	}
	locationType := storage.UserLocationType(req.LocationType)

	loc, err := h.divisions.LookupDivision(ctx, req.County, req.District)
	if err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Division lookup failed")
		sentry.CaptureException(ctx, err)
		abortDetail(c, http.StatusInternalServerError, detailInternal)
		return
	}
	if loc == nil {
		abortDetail(c, http.StatusBadRequest, detailUnknownLocation)
		return
	}

	if err := h.store.SetUserLocation(ctx, userID, locationType, loc.ID); err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Saving user location failed")
		sentry.CaptureException(ctx, err)
		abortDetail(c, http.StatusInternalServerError, detailInternal)
		return
	}

	label := locationTypeLabel(locationType)
	h.logger.WithField("location_type", string(locationType)).
		WithField("location_id", loc.ID).
		InfoContext(ctx, "User location saved")

	c.JSON(http.StatusOK, locationResponse{
		Success:      true,
		Message:      label + "地點設定成功",
		LocationType: label,
		Location:     loc.County + loc.District,
	})
}

// validate trims req in place and checks it against the division registry.
func (h *usersHandler) validate(req *locationRequest) error {
	if !storage.UserLocationType(req.LocationType).Valid() {
		return domerrors.NewValidationError("location_type", detailInvalidType)
	}
	req.County = strings.TrimSpace(req.County)
	req.District = strings.TrimSpace(req.District)
	if req.County == "" || req.District == "" || !h.divisions.IsValidDivisionName(req.County+req.District) {
		return domerrors.NewValidationError("district", detailUnknownLocation)
	}
	return nil
}

// authenticate verifies the bearer access token and, when sent, the ID token.
// It writes the error response itself and reports whether the request may proceed.
func (h *usersHandler) authenticate(c *gin.Context) (string, bool) {
	ctx := c.Request.Context()

	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.Header("WWW-Authenticate", "Bearer")
		abortDetail(c, http.StatusUnauthorized, detailMissingToken)
		return "", false
	}

	profile, err := h.verifier.VerifyAccessToken(ctx, token)
	if err != nil {
		h.abortAuth(c, err, detailInvalidToken)
		return "", false
	}

	if idToken := strings.TrimSpace(c.GetHeader(idTokenHeader)); idToken != "" {
		idProfile, err := h.verifier.VerifyIDToken(ctx, idToken)
		if err != nil {
			h.abortAuth(c, err, detailInvalidIDToken)
			return "", false
		}
		if idProfile.UserID != profile.UserID {
			h.logger.WarnContext(ctx, "LIFF token owners differ")
			abortDetail(c, http.StatusUnauthorized, detailTokenMismatch)
			return "", false
		}
	}

	return profile.UserID, true
}

func (h *usersHandler) abortAuth(c *gin.Context, err error, unauthorizedDetail string) {
	if errors.Is(err, domerrors.ErrUpstreamUnavailable) {
		h.logger.WithError(err).WarnContext(c.Request.Context(), "LINE token verification unavailable")
		abortDetail(c, http.StatusServiceUnavailable, detailVerifyUnavailable)
		return
	}
	h.logger.WithError(err).DebugContext(c.Request.Context(), "LIFF token rejected")
	abortDetail(c, http.StatusUnauthorized, unauthorizedDetail)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func locationTypeLabel(t storage.UserLocationType) string {
	if t == storage.UserLocationHome {
		return "住家"
	}
	return "公司"
}

func abortDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
