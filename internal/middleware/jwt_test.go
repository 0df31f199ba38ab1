package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/study-planner-api/internal/models"
	appErrors "github.com/noah-isme/study-planner-api/pkg/errors"
)

type tokenValidatorStub struct{}

func (tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	switch token {
	case "learner":
		return &models.JWTClaims{UserID: "learner-1", Role: models.RoleLearner}, nil
	case "admin":
		return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func echoUser(c *gin.Context) {
	claims := CurrentClaims(c)
	if claims == nil {
		c.String(http.StatusOK, "anonymous")
		return
	}
	c.String(http.StatusOK, claims.UserID)
}

func TestJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", JWT(tokenValidatorStub{}), echoUser)

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer nope").Code)

	rec := serve(r, "bearer learner")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "learner-1", rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", OptionalJWT(tokenValidatorStub{}), echoUser)

	assert.Equal(t, "anonymous", serve(r, "").Body.String())
	assert.Equal(t, "anonymous", serve(r, "Bearer nope").Body.String())
	assert.Equal(t, "learner-1", serve(r, "Bearer learner").Body.String())
}

func TestCurrentClaimsIgnoresForeignValues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(ContextUserKey, errors.New("not claims"))
	assert.Nil(t, CurrentClaims(c))
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", JWT(tokenValidatorStub{}), RequireRoles(models.RoleAdmin, models.RoleTutor), echoUser)

	assert.Equal(t, http.StatusForbidden, serve(r, "Bearer learner").Code)
	rec := serve(r, "Bearer admin")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-1", rec.Body.String())

	bare := gin.New()
	bare.GET("/", RequireRoles(models.RoleAdmin), echoUser)
	assert.Equal(t, http.StatusUnauthorized, serve(bare, "").Code)
}
