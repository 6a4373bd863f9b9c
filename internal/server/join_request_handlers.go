package server

import (
	"podshare/internal/models"
	"podshare/internal/service"

	"github.com/gofiber/fiber/v2"
)

type submitJoinRequestBody struct {
	Message string `json:"message"`
	Contact *struct {
		Name  string  `json:"name"`
		Email string  `json:"email"`
		Phone *string `json:"phone"`
	} `json:"contact"`
}

// SubmitJoinRequest handles POST /api/pods/:id/join-requests
// @Summary Request to join a pod
// @Tags join-requests
// @Accept json
// @Produce json
// @Param id path int true "Pod ID"
// @Success 201 {object} models.JoinRequest
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /pods/{id}/join-requests [post]
func (s *Server) SubmitJoinRequest(c *fiber.Ctx) error {
	podID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var body submitJoinRequestBody
	if len(c.Body()) > 0 {
		if err := parseBody(c, &body); err != nil {
			return nil
		}
	}

	in := service.SubmitInput{
		PodID:   podID,
		UserID:  currentUserID(c),
		Message: body.Message,
	}
	if body.Contact != nil {
		in.Contact = &models.ContactSnapshot{
			Name:  body.Contact.Name,
			Email: body.Contact.Email,
			Phone: body.Contact.Phone,
		}
	}

	req, err := s.lifecycle.Submit(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// GetPodJoinRequests handles GET /api/pods/:id/join-requests for the pod's
// leader. An optional status query narrows the list.
func (s *Server) GetPodJoinRequests(c *fiber.Ctx) error {
	podID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	pod, err := s.podService.GetPod(c.UserContext(), podID)
	if err != nil {
		return respondError(c, err)
	}
	if pod.LeaderID != currentUserID(c) {
		return respondError(c, models.NewForbiddenError("only the pod leader can view its join requests"))
	}

	reqs, err := s.lifecycle.ListForPod(c.UserContext(), podID, models.JoinRequestStatus(c.Query("status")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reqs)
}

// AcceptJoinRequest handles POST /api/join-requests/:id/accept
func (s *Server) AcceptJoinRequest(c *fiber.Ctx) error {
	return s.decide(c, models.JoinRequestAccepted)
}

// RejectJoinRequest handles POST /api/join-requests/:id/reject
func (s *Server) RejectJoinRequest(c *fiber.Ctx) error {
	return s.decide(c, models.JoinRequestRejected)
}

func (s *Server) decide(c *fiber.Ctx, decision models.JoinRequestStatus) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	req, err := s.lifecycle.Decide(c.UserContext(), id, decision, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

// GetMyJoinRequests handles GET /api/join-requests/me
func (s *Server) GetMyJoinRequests(c *fiber.Ctx) error {
	reqs, err := s.lifecycle.ListForUser(c.UserContext(), currentUserID(c), models.JoinRequestStatus(c.Query("status")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reqs)
}

// GetLeaderJoinRequests handles GET /api/join-requests/leader: requests
// across every pod the caller leads.
func (s *Server) GetLeaderJoinRequests(c *fiber.Ctx) error {
	reqs, err := s.lifecycle.ListForLeader(c.UserContext(), currentUserID(c), models.JoinRequestStatus(c.Query("status")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reqs)
}
