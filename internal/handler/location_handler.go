package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/auth"
	"jammr/backend/internal/geo"
	"jammr/backend/internal/geocoding"
	"jammr/backend/internal/logger"
)

// region --- DTOs ---

// SuggestResponse lists place suggestions. Superseded is true when a newer
// query from the same user replaced this one; its suggestions are always empty.
type SuggestResponse struct {
	Suggestions []geocoding.Suggestion `json:"suggestions"`
	Superseded  bool                   `json:"superseded"`
}

// ReverseQuery holds coordinates to name.
type ReverseQuery struct {
	Lat *float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng *float64 `form:"lng" binding:"required,min=-180,max=180"`
}

// ReverseResponse is a display name for a coordinate.
type ReverseResponse struct {
	DisplayName string          `json:"display_name" example:"Brooklyn, New York, United States"`
	Location    geo.Location    `json:"location" swaggertype:"object"`
	Coords      geo.Coordinates `json:"coords"`
}

// GeocodeResponse is the forward lookup of a place name.
type GeocodeResponse struct {
	Coords geo.Coordinates `json:"coords"`
	Found  bool            `json:"found"`
}

// endregion

type LocationHandler struct {
	log    *logger.Logger
	places *geocoding.Client
}

func NewLocationHandler(log *logger.Logger, places *geocoding.Client) *LocationHandler {
	return &LocationHandler{log: log.With("handler", "LocationHandler"), places: places}
}

// Suggest godoc
// @Summary      Suggest places
// @Description  Up to five suggestions. Fewer than two characters returns nothing. Calls are debounced per user.
// @Tags         locations
// @Produce      json
// @Security     BearerAuth
// @Param        q    query     string  true  "Partial place name"
// @Success      200  {object}  SuggestResponse
// @Router       /locations/suggest [get]
func (h *LocationHandler) Suggest(c *gin.Context) {
	suggestions, superseded := h.places.SuggestDebounced(c.Request.Context(), auth.UserID(c), c.Query("q"))
	if suggestions == nil {
		suggestions = []geocoding.Suggestion{}
	}
	c.JSON(http.StatusOK, SuggestResponse{Suggestions: suggestions, Superseded: superseded})
}

// Resolve godoc
// @Summary      Resolve a suggested place
// @Description  Returns the address and coordinates of a place id from Suggest.
// @Tags         locations
// @Produce      json
// @Security     BearerAuth
// @Param        place_id  query     string  true  "Place ID"
// @Success      200       {object}  geocoding.LocationData
// @Failure      400       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse "Place could not be resolved"
// @Router       /locations/resolve [get]
func (h *LocationHandler) Resolve(c *gin.Context) {
	placeID := strings.TrimSpace(c.Query("place_id"))
	if placeID == "" {
		respondError(c, h.log, apperr.New(apperr.KindValidation, "place_id_required", "place_id is required"))
		return
	}
	data, ok := h.places.Resolve(c.Request.Context(), placeID)
	if !ok {
		respondError(c, h.log, apperr.New(apperr.KindNotFound, "place_not_found", "place could not be resolved"))
		return
	}
	c.JSON(http.StatusOK, data)
}

// Reverse godoc
// @Summary      Name a coordinate
// @Description  Never fails on lookup errors; falls back to "lat, lng" with two decimals.
// @Tags         locations
// @Produce      json
// @Security     BearerAuth
// @Param        lat  query     number  true  "Latitude"
// @Param        lng  query     number  true  "Longitude"
// @Success      200  {object}  ReverseResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /locations/reverse [get]
func (h *LocationHandler) Reverse(c *gin.Context) {
	var q ReverseQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}
	coords := geo.Coordinates{Lat: *q.Lat, Lng: *q.Lng}
	name := h.places.ReverseGeocode(c.Request.Context(), coords.Lat, coords.Lng)
	c.JSON(http.StatusOK, ReverseResponse{
		DisplayName: name,
		Location:    geo.RawCoordinate(coords.Lat, coords.Lng),
		Coords:      coords,
	})
}

// Geocode godoc
// @Summary      Locate a place name
// @Description  Falls back to the default city center with found=false.
// @Tags         locations
// @Produce      json
// @Security     BearerAuth
// @Param        q    query     string  true  "Place name"
// @Success      200  {object}  GeocodeResponse
// @Router       /locations/geocode [get]
func (h *LocationHandler) Geocode(c *gin.Context) {
	coords, ok := h.places.Geocode(c.Request.Context(), c.Query("q"))
	c.JSON(http.StatusOK, GeocodeResponse{Coords: coords, Found: ok})
}
