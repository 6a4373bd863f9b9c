package server

import (
	"strings"

	"podshare/internal/models"
	"podshare/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListPods handles GET /api/pods
// @Summary Browse pods
// @Description Search active pods by text, filter by region, membership type and amenities.
// @Tags pods
// @Produce json
// @Param q query string false "Search text"
// @Param region query string false "Region"
// @Param membership_type query string false "Membership type"
// @Param amenities query string false "Comma separated amenities, all required"
// @Param sort query string false "cost_asc, cost_desc, newest or spots_desc"
// @Success 200 {array} models.Pod
// @Router /pods [get]
func (s *Server) ListPods(c *fiber.Ctx) error {
	pods, err := s.podService.Browse(c.UserContext(), service.BrowseInput{
		Query: c.Query("q"),
		Filter: models.PodFilter{
			Region:         c.Query("region"),
			MembershipType: models.MembershipType(c.Query("membership_type")),
			Amenities:      splitList(c.Query("amenities")),
		},
		Sort: models.PodSort(c.Query("sort")),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pods)
}

// GetPod handles GET /api/pods/:id
func (s *Server) GetPod(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	pod, err := s.podService.GetPod(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pod)
}

// GetPodBySlug handles GET /api/pods/slug/:slug
func (s *Server) GetPodBySlug(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))
	if slug == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("slug is required"))
	}
	pod, err := s.podService.GetPodBySlug(c.UserContext(), slug)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pod)
}

// CreatePod handles POST /api/pods
// @Summary Create pod
// @Tags pods
// @Accept json
// @Produce json
// @Success 201 {object} models.Pod
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /pods [post]
func (s *Server) CreatePod(c *fiber.Ctx) error {
	var req service.CreatePodInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	pod, err := s.podService.CreatePod(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pod)
}

// UpdatePod handles PUT /api/pods/:id. Only the leader may edit.
func (s *Server) UpdatePod(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdatePodInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	pod, err := s.podService.UpdatePod(c.UserContext(), id, currentUserID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pod)
}

// DeletePod handles DELETE /api/pods/:id. Pods are deactivated, never
// removed, so memberships and request history survive.
func (s *Server) DeletePod(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	pod, err := s.podService.DeactivatePod(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pod)
}

// GetRoster handles GET /api/pods/:id/roster
func (s *Server) GetRoster(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	roster, err := s.roster.GetRoster(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(roster)
}
