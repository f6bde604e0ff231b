package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jammr/backend/internal/auth"
	"jammr/backend/internal/geo"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/models"
	"jammr/backend/internal/service"
)

// DiscoverQuery holds the discovery filters. Unknown vocabulary values simply match nothing.
type DiscoverQuery struct {
	Instrument string   `form:"instrument"`
	Genres     []string `form:"genres"`
	SkillLevel string   `form:"skill"`
	Radius     float64  `form:"radius" binding:"omitempty,gt=0"`
	Search     string   `form:"q" binding:"max=200"`
	Sort       string   `form:"sort"`
	Lat        *float64 `form:"lat" binding:"omitempty,min=-90,max=90"`
	Lng        *float64 `form:"lng" binding:"omitempty,min=-180,max=180"`
}

// CandidateResponse is one discovery result.
type CandidateResponse struct {
	Profile       models.Profile `json:"profile"`
	DistanceMiles float64        `json:"distance_miles" example:"0.9"`
	GenreOverlap  int            `json:"genre_overlap"`
	Requested     bool           `json:"requested"`
}

type DiscoveryHandler struct {
	log       *logger.Logger
	discovery *service.DiscoveryService
}

func NewDiscoveryHandler(log *logger.Logger, discovery *service.DiscoveryService) *DiscoveryHandler {
	return &DiscoveryHandler{log: log.With("handler", "DiscoveryHandler"), discovery: discovery}
}

// splitList accepts both repeated parameters and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Discover godoc
// @Summary      Discover musicians
// @Description  Lists visible profiles near the caller, filtered and sorted. radius=999999 removes the distance limit.
// @Description  A 503 with retryable=true means discovery failed, which is different from an empty result.
// @Tags         discovery
// @Produce      json
// @Security     BearerAuth
// @Param        instrument query  string   false  "Instrument"
// @Param        genres     query  string   false  "Comma separated genres"
// @Param        skill      query  string   false  "Skill level"
// @Param        radius     query  number   false  "Radius in miles"
// @Param        q          query  string   false  "Free text search"
// @Param        sort       query  string   false  "distance, recent or best_match"
// @Param        lat        query  number   false  "Reference latitude"
// @Param        lng        query  number   false  "Reference longitude"
// @Param        page       query  int      false  "Page number" default(1)
// @Param        limit      query  int      false  "Items per page" default(50)
// @Success      200  {object}  PaginatedResponse[CandidateResponse]
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /discover [get]
func (h *DiscoveryHandler) Discover(c *gin.Context) {
	var q DiscoverQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}

	f := service.DiscoveryFilter{
		Instrument:  strings.TrimSpace(q.Instrument),
		Genres:      splitList(q.Genres),
		SkillLevel:  strings.TrimSpace(q.SkillLevel),
		RadiusMiles: q.Radius,
		Search:      q.Search,
		Sort:        service.ParseSortMode(q.Sort),
	}
	if q.Lat != nil && q.Lng != nil {
		f.Reference = &geo.Coordinates{Lat: *q.Lat, Lng: *q.Lng}
	}

	candidates, err := h.discovery.Discover(c.Request.Context(), auth.UserID(c), f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	out := make([]CandidateResponse, len(candidates))
	for i, cand := range candidates {
		out[i] = CandidateResponse{
			Profile:       cand.Profile,
			DistanceMiles: cand.DistanceMiles,
			GenreOverlap:  cand.GenreOverlap,
			Requested:     cand.Requested,
		}
	}
	page, limit := pageParams(c, service.CandidateLimit)
	c.JSON(http.StatusOK, PaginateSlice(out, page, limit))
}
