package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/onetarget777/kachra-site/internal/models"
	"github.com/onetarget777/kachra-site/internal/otp"
	"github.com/onetarget777/kachra-site/internal/services"
	"github.com/onetarget777/kachra-site/internal/session"
)

type AuthHandlerTestSuite struct {
	suite.Suite
	db       *gorm.DB
	sessions *session.Manager
	handler  *AuthHandler
}

func (s *AuthHandlerTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.sessions = session.NewManager("test-secret")

	auth := services.NewAuthService(s.db,
		otp.NewEngine(otp.NewMemoryStore()),
		otp.NewEngine(otp.NewMemoryStore()))
	s.handler = NewAuthHandler(auth, s.sessions, true)
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func (s *AuthHandlerTestSuite) TestSignupVerifyLifecycle() {
	// Signup issues an OTP; dev mode echoes it.
	rec := postJSON(s.T(), s.handler.Signup, "/auth/signup", map[string]string{
		"fullName": "Ada L",
		"username": "ada",
		"email":    "a@x.com",
		"password": "hunter2secret",
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	code, ok := decodeBody(s.T(), rec)["otp"].(string)
	s.Require().True(ok)
	s.Len(code, 6)

	// Wrong code is rejected without revealing why.
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	rec = postJSON(s.T(), s.handler.VerifySignupOTP, "/auth/verify-signup-otp", map[string]string{
		"email": "a@x.com", "otp": wrong,
	})
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Invalid or expired OTP", decodeBody(s.T(), rec)["error"])

	// Correct code creates the account and sets the session cookie.
	rec = postJSON(s.T(), s.handler.VerifySignupOTP, "/auth/verify-signup-otp", map[string]string{
		"email": "a@x.com", "otp": code,
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	body := decodeBody(s.T(), rec)
	userID := body["userId"].(string)
	s.NotEmpty(userID)

	cookie := sessionCookie(rec)
	s.Require().NotNil(cookie)
	claims, err := s.sessions.Parse(cookie.Value)
	s.Require().NoError(err)
	s.Equal(userID, claims.UserID)
	s.False(claims.IsAdmin)

	// The same correct code cannot be redeemed twice.
	rec = postJSON(s.T(), s.handler.VerifySignupOTP, "/auth/verify-signup-otp", map[string]string{
		"email": "a@x.com", "otp": code,
	})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *AuthHandlerTestSuite) TestSignupDuplicateEmail() {
	s.signupAndVerify("a@x.com", "ada")

	rec := postJSON(s.T(), s.handler.Signup, "/auth/signup", map[string]string{
		"fullName": "Eve", "username": "eve", "email": "a@x.com", "password": "password123",
	})
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Email is already registered", decodeBody(s.T(), rec)["error"])
}

func (s *AuthHandlerTestSuite) TestSignupMissingFields() {
	rec := postJSON(s.T(), s.handler.Signup, "/auth/signup", map[string]string{
		"email": "a@x.com",
	})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *AuthHandlerTestSuite) signupAndVerify(email, username string) string {
	rec := postJSON(s.T(), s.handler.Signup, "/auth/signup", map[string]string{
		"fullName": "User", "username": username, "email": email, "password": "hunter2secret",
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	code := decodeBody(s.T(), rec)["otp"].(string)

	rec = postJSON(s.T(), s.handler.VerifySignupOTP, "/auth/verify-signup-otp", map[string]string{
		"email": email, "otp": code,
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	return decodeBody(s.T(), rec)["userId"].(string)
}

func (s *AuthHandlerTestSuite) TestLoginCookieLifetimes() {
	s.signupAndVerify("a@x.com", "ada")

	rec := postJSON(s.T(), s.handler.Login, "/auth/login", map[string]interface{}{
		"email": "a@x.com", "password": "hunter2secret",
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	cookie := sessionCookie(rec)
	s.Require().NotNil(cookie)
	s.Equal(int(session.DefaultTTL.Seconds()), cookie.MaxAge)

	rec = postJSON(s.T(), s.handler.Login, "/auth/login", map[string]interface{}{
		"email": "a@x.com", "password": "hunter2secret", "rememberMe": true,
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	cookie = sessionCookie(rec)
	s.Require().NotNil(cookie)
	s.Equal(int(session.RememberMeTTL.Seconds()), cookie.MaxAge)
}

func (s *AuthHandlerTestSuite) TestLoginGenericFailureMessage() {
	s.signupAndVerify("a@x.com", "ada")

	recUnknown := postJSON(s.T(), s.handler.Login, "/auth/login", map[string]interface{}{
		"email": "nobody@x.com", "password": "whatever123",
	})
	recWrong := postJSON(s.T(), s.handler.Login, "/auth/login", map[string]interface{}{
		"email": "a@x.com", "password": "wrongpassword",
	})

	s.Equal(http.StatusUnauthorized, recUnknown.Code)
	s.Equal(http.StatusUnauthorized, recWrong.Code)
	s.Equal(decodeBody(s.T(), recUnknown)["error"], decodeBody(s.T(), recWrong)["error"])
}

func (s *AuthHandlerTestSuite) TestPasswordResetFlow() {
	s.signupAndVerify("a@x.com", "ada")

	rec := postJSON(s.T(), s.handler.ForgotPassword, "/auth/forgot-password", map[string]string{
		"email": "a@x.com",
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	code := decodeBody(s.T(), rec)["otp"].(string)

	rec = postJSON(s.T(), s.handler.VerifyOTP, "/auth/verify-otp", map[string]string{
		"email": "a@x.com", "otp": code,
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	newPassword := decodeBody(s.T(), rec)["newPassword"].(string)

	rec = postJSON(s.T(), s.handler.Login, "/auth/login", map[string]interface{}{
		"email": "a@x.com", "password": newPassword,
	})
	s.Equal(http.StatusOK, rec.Code)
}

func (s *AuthHandlerTestSuite) TestForgotPasswordUnknownEmail() {
	rec := postJSON(s.T(), s.handler.ForgotPassword, "/auth/forgot-password", map[string]string{
		"email": "nobody@x.com",
	})
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *AuthHandlerTestSuite) TestCheckUsername() {
	req := httptest.NewRequest(http.MethodGet, "/auth/check-username?username=ada", nil)
	rec := httptest.NewRecorder()
	s.handler.CheckUsername(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(true, decodeBody(s.T(), rec)["available"])

	s.signupAndVerify("a@x.com", "ada")

	rec = httptest.NewRecorder()
	s.handler.CheckUsername(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(false, decodeBody(s.T(), rec)["available"])
}

func TestAuthHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerTestSuite))
}

type AdminHandlerTestSuite struct {
	suite.Suite
	db      *gorm.DB
	handler *AdminHandler
}

func (s *AdminHandlerTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.handler = NewAdminHandler(services.NewAdminService(s.db))
}

func (s *AdminHandlerTestSuite) bootstrapAdmin() string {
	rec := postJSON(s.T(), s.handler.Login, "/admin/login", map[string]string{
		"email":    services.DefaultAdminEmail,
		"password": services.DefaultAdminPassword,
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	user := decodeBody(s.T(), rec)["user"].(map[string]interface{})
	return user["id"].(string)
}

func (s *AdminHandlerTestSuite) TestBootstrapFlagsDefaultCredential() {
	rec := postJSON(s.T(), s.handler.Login, "/admin/login", map[string]string{
		"email":    services.DefaultAdminEmail,
		"password": services.DefaultAdminPassword,
	})
	s.Require().Equal(http.StatusOK, rec.Code)

	user := decodeBody(s.T(), rec)["user"].(map[string]interface{})
	s.Equal(true, user["mustChangePassword"])

	// Rotate and confirm the default credential is dead.
	rec = postJSON(s.T(), s.handler.ChangePassword, "/admin/change-password", map[string]string{
		"userId":      user["id"].(string),
		"newPassword": "rotated-secret",
	})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = postJSON(s.T(), s.handler.Login, "/admin/login", map[string]string{
		"email":    services.DefaultAdminEmail,
		"password": services.DefaultAdminPassword,
	})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *AdminHandlerTestSuite) TestChangePasswordTooShort() {
	adminID := s.bootstrapAdmin()

	rec := postJSON(s.T(), s.handler.ChangePassword, "/admin/change-password", map[string]string{
		"userId":      adminID,
		"newPassword": "short",
	})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *AdminHandlerTestSuite) TestMetricsGating() {
	adminID := s.bootstrapAdmin()

	// Missing identity.
	req := httptest.NewRequest(http.MethodGet, "/admin/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.Metrics(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)

	// Valid identity without the admin flag.
	username := "mortal"
	mortal := &models.Account{Email: "mortal@x.com", Username: &username, PasswordHash: "x"}
	s.Require().NoError(s.db.Create(mortal).Error)

	req = httptest.NewRequest(http.MethodGet, "/admin/metrics?userId="+mortal.ID, nil)
	rec = httptest.NewRecorder()
	s.handler.Metrics(rec, req)
	s.Equal(http.StatusForbidden, rec.Code)

	// Administrator.
	req = httptest.NewRequest(http.MethodGet, "/admin/metrics?userId="+adminID, nil)
	rec = httptest.NewRecorder()
	s.handler.Metrics(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(decodeBody(s.T(), rec), "data")
}

func (s *AdminHandlerTestSuite) TestSettingsReadAndPatch() {
	adminID := s.bootstrapAdmin()

	req := httptest.NewRequest(http.MethodGet, "/admin/settings?userId="+adminID, nil)
	rec := httptest.NewRecorder()
	s.handler.GetSettings(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	data := decodeBody(s.T(), rec)["data"].(map[string]interface{})
	s.Equal(float64(100), data["guestUploadLimit"])
	s.Equal(float64(500), data["userUploadLimit"])

	rec = postJSON(s.T(), s.handler.UpdateSettings,
		"/admin/settings?userId="+adminID, map[string]interface{}{
			"guestUploadLimit": 250,
		})
	s.Require().Equal(http.StatusOK, rec.Code)

	data = decodeBody(s.T(), rec)["data"].(map[string]interface{})
	s.Equal(float64(250), data["guestUploadLimit"])
	s.Equal(float64(500), data["userUploadLimit"])
}

func TestAdminHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AdminHandlerTestSuite))
}
