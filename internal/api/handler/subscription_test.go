package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/internal/api/middleware"
	"github.com/qs3c/driveunity_server/internal/testutil"
)

func subscriptionRouter(env *testEnv) *gin.Engine {
	h := NewSubscriptionHandler(env.subscriptions, env.quota, zap.NewNop())
	router := gin.New()
	router.GET("/plans", h.Plans)
	router.GET("/subscription", middleware.Session(env.sessions), h.Get)
	return router
}

func TestSubscriptionHandler_Get_CreatesFreePlan(t *testing.T) {
	env := setupEnv(t, nil)
	user := testutil.TestUser(t, env.db)
	testutil.TestDriveAccount(t, env.db, user.ID, "google")

	w := performRequest(subscriptionRouter(env), "GET", "/subscription", nil, sessionCookieFor(user))

	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, parseResponse(t, w))
	plan := data["plan"].(map[string]interface{})
	assert.Equal(t, "Free", plan["package_name"])
	assert.Equal(t, "FREE", plan["tier"])

	usage := data["usage"].(map[string]interface{})
	assert.Equal(t, float64(1), usage["connected"])
	assert.Equal(t, float64(1), usage["remaining_slots"])
}

func TestSubscriptionHandler_Get_RequiresSession(t *testing.T) {
	env := setupEnv(t, nil)

	w := performRequest(subscriptionRouter(env), "GET", "/subscription", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubscriptionHandler_Plans(t *testing.T) {
	env := setupEnv(t, nil)
	require.NoError(t, env.subscriptions.EnsurePlans())

	w := performRequest(subscriptionRouter(env), "GET", "/plans", nil)

	require.Equal(t, http.StatusOK, w.Code)
	plans, ok := parseResponse(t, w).Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, plans, 3)
}
