package server

import (
	"fmt"
	"net/http"
	"testing"

	"podshare/internal/models"
	"podshare/internal/repository/storetest"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRequestLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	leader := storetest.SeedUser(t, e.store, "lee")
	ana := storetest.SeedUser(t, e.store, "ana")
	bo := storetest.SeedUser(t, e.store, "bo")
	pod := storetest.SeedPod(t, e.store, leader.ID, "Swim", 1)

	submitPath := fmt.Sprintf("/api/pods/%d/join-requests", pod.ID)
	status, body := e.do(t, http.MethodPost, submitPath, e.token(t, ana), fiber.Map{
		"message": "weekday mornings",
		"contact": fiber.Map{"name": "Ana A", "email": "ana.alt@example.com"},
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	req := decode[models.JoinRequest](t, body)
	assert.Equal(t, models.JoinRequestPending, req.Status)
	assert.Equal(t, "ana.alt@example.com", req.Contact.Email)

	status, body = e.do(t, http.MethodPost, submitPath, e.token(t, ana), nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeDuplicateRequest, errorCode(t, body))

	status, body = e.do(t, http.MethodPost, submitPath, e.token(t, bo), nil)
	require.Equal(t, http.StatusCreated, status, string(body))
	boReq := decode[models.JoinRequest](t, body)

	// only the leader sees the pod's queue
	status, _ = e.do(t, http.MethodGet, submitPath, e.token(t, ana), nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, body = e.do(t, http.MethodGet, submitPath+"?status=pending", e.token(t, leader), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.JoinRequest](t, body), 2)

	status, body = e.do(t, http.MethodGet, "/api/join-requests/leader", e.token(t, leader), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.JoinRequest](t, body), 2)

	acceptPath := fmt.Sprintf("/api/join-requests/%d/accept", req.ID)
	status, body = e.do(t, http.MethodPost, acceptPath, e.token(t, ana), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, errorCode(t, body))

	status, body = e.do(t, http.MethodPost, acceptPath, e.token(t, leader), nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, models.JoinRequestAccepted, decode[models.JoinRequest](t, body).Status)

	// terminal states do not move
	status, body = e.do(t, http.MethodPost, fmt.Sprintf("/api/join-requests/%d/reject", req.ID), e.token(t, leader), nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeInvalidState, errorCode(t, body))

	// the pod is full now, so bo's request stays pending
	status, body = e.do(t, http.MethodPost, fmt.Sprintf("/api/join-requests/%d/accept", boReq.ID), e.token(t, leader), nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodePodFull, errorCode(t, body))

	status, body = e.do(t, http.MethodGet, "/api/join-requests/me?status=pending", e.token(t, bo), nil)
	require.Equal(t, http.StatusOK, status)
	pending := decode[[]models.JoinRequest](t, body)
	require.Len(t, pending, 1)
	assert.Equal(t, boReq.ID, pending[0].ID)

	status, body = e.do(t, http.MethodGet, fmt.Sprintf("/api/pods/%d", pod.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, decode[models.Pod](t, body).AvailableSpots)

	status, body = e.do(t, http.MethodGet, fmt.Sprintf("/api/pods/%d/roster", pod.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	roster := decode[[]models.RosterEntry](t, body)
	require.Len(t, roster, 2)
	assert.Equal(t, leader.ID, roster[0].UserID)
	assert.Equal(t, models.RosterRoleLeader, roster[0].Role)
	assert.Equal(t, ana.ID, roster[1].UserID)
}

func TestJoinRequest_RejectAndBadStatusFilter(t *testing.T) {
	e := newTestEnv(t)
	leader := storetest.SeedUser(t, e.store, "lee")
	ana := storetest.SeedUser(t, e.store, "ana")
	pod := storetest.SeedPod(t, e.store, leader.ID, "Swim", 2)

	status, body := e.do(t, http.MethodPost, fmt.Sprintf("/api/pods/%d/join-requests", pod.ID), e.token(t, ana), nil)
	require.Equal(t, http.StatusCreated, status, string(body))
	req := decode[models.JoinRequest](t, body)

	status, body = e.do(t, http.MethodPost, fmt.Sprintf("/api/join-requests/%d/reject", req.ID), e.token(t, leader), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.JoinRequestRejected, decode[models.JoinRequest](t, body).Status)

	// a rejected applicant may apply again
	status, _ = e.do(t, http.MethodPost, fmt.Sprintf("/api/pods/%d/join-requests", pod.ID), e.token(t, ana), nil)
	assert.Equal(t, http.StatusCreated, status)

	status, body = e.do(t, http.MethodGet, "/api/join-requests/me?status=maybe", e.token(t, ana), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errorCode(t, body))

	status, _ = e.do(t, http.MethodPost, "/api/join-requests/999/accept", e.token(t, leader), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSubmitJoinRequest_LeaderCannotJoinOwnPod(t *testing.T) {
	e := newTestEnv(t)
	leader := storetest.SeedUser(t, e.store, "lee")
	pod := storetest.SeedPod(t, e.store, leader.ID, "Swim", 2)

	status, body := e.do(t, http.MethodPost, fmt.Sprintf("/api/pods/%d/join-requests", pod.ID), e.token(t, leader), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errorCode(t, body))
}

func TestMembershipRemovalAndDashboards(t *testing.T) {
	e := newTestEnv(t)
	leader := storetest.SeedUser(t, e.store, "lee")
	ana := storetest.SeedUser(t, e.store, "ana")
	bo := storetest.SeedUser(t, e.store, "bo")
	pod := storetest.SeedPod(t, e.store, leader.ID, "Swim", 3)

	for _, u := range []*models.User{ana, bo} {
		status, body := e.do(t, http.MethodPost, fmt.Sprintf("/api/pods/%d/join-requests", pod.ID), e.token(t, u), nil)
		require.Equal(t, http.StatusCreated, status, string(body))
		req := decode[models.JoinRequest](t, body)
		status, body = e.do(t, http.MethodPost, fmt.Sprintf("/api/join-requests/%d/accept", req.ID), e.token(t, leader), nil)
		require.Equal(t, http.StatusOK, status, string(body))
	}

	status, body := e.do(t, http.MethodGet, "/api/dashboard/leader", e.token(t, leader), nil)
	require.Equal(t, http.StatusOK, status)
	dash := decode[struct {
		Summary models.LeaderDashboard `json:"summary"`
		Pods    []models.Pod           `json:"pods"`
	}](t, body)
	assert.Equal(t, models.LeaderDashboard{ActivePods: 1, TotalMembers: 2, MonthlyRevenueCents: 10000}, dash.Summary)
	assert.Len(t, dash.Pods, 1)

	status, body = e.do(t, http.MethodGet, "/api/dashboard/member", e.token(t, ana), nil)
	require.Equal(t, http.StatusOK, status)
	member := decode[struct {
		Pods     []models.Pod         `json:"pods"`
		Requests []models.JoinRequest `json:"requests"`
	}](t, body)
	require.Len(t, member.Pods, 1)
	assert.Equal(t, pod.ID, member.Pods[0].ID)
	assert.Len(t, member.Requests, 1)

	// members cannot remove each other
	status, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/api/pods/%d/members/%d", pod.ID, bo.ID), e.token(t, ana), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/api/pods/%d/members/%d", pod.ID, bo.ID), e.token(t, leader), nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = e.do(t, http.MethodPost, fmt.Sprintf("/api/pods/%d/leave", pod.ID), e.token(t, ana), nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = e.do(t, http.MethodPost, fmt.Sprintf("/api/pods/%d/leave", pod.ID), e.token(t, ana), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, errorCode(t, body))

	status, body = e.do(t, http.MethodGet, fmt.Sprintf("/api/pods/%d", pod.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, decode[models.Pod](t, body).AvailableSpots)

	status, body = e.do(t, http.MethodGet, fmt.Sprintf("/api/pods/%d/roster", pod.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.RosterEntry](t, body), 1)
}
