package server

import (
	"github.com/gofiber/fiber/v2"
)

// RemoveMember handles DELETE /api/pods/:id/members/:userId
// @Summary Remove a pod member
// @Description The leader removes a member, or a member removes themselves.
// @Tags pods
// @Param id path int true "Pod ID"
// @Param userId path int true "User ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /pods/{id}/members/{userId} [delete]
func (s *Server) RemoveMember(c *fiber.Ctx) error {
	podID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.roster.RemoveMember(c.UserContext(), podID, userID, currentUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LeavePod handles POST /api/pods/:id/leave
func (s *Server) LeavePod(c *fiber.Ctx) error {
	podID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.roster.Leave(c.UserContext(), podID, currentUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetLeaderDashboard handles GET /api/dashboard/leader
func (s *Server) GetLeaderDashboard(c *fiber.Ctx) error {
	userID := currentUserID(c)
	summary, err := s.roster.LeaderDashboard(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	pods, err := s.podService.ListLeaderPods(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"summary": summary,
		"pods":    pods,
	})
}

// GetMemberDashboard handles GET /api/dashboard/member
func (s *Server) GetMemberDashboard(c *fiber.Ctx) error {
	userID := currentUserID(c)
	pods, err := s.roster.MemberPods(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	requests, err := s.lifecycle.ListForUser(c.UserContext(), userID, "")
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"pods":     pods,
		"requests": requests,
	})
}
