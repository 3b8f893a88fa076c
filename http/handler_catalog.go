package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"tours/entity"
)

func (s Server) GetGuides(c echo.Context) error {
	guides, err := s.catalog.ListGuides(c.Request().Context())
	if err != nil {
		return catalogError(err)
	}

	return c.JSON(http.StatusOK, guides)
}

func (s Server) GetGuide(c echo.Context) error {
	guideID, err := idParam(c)
	if err != nil {
		return err
	}

	guide, err := s.catalog.GetGuide(c.Request().Context(), guideID)
	if err != nil {
		return catalogError(err)
	}

	return c.JSON(http.StatusOK, guide)
}

func (s Server) GetGuideReviews(c echo.Context) error {
	guideID, err := idParam(c)
	if err != nil {
		return err
	}

	reviews, err := s.catalog.GetGuideReviews(c.Request().Context(), guideID)
	if err != nil {
		return catalogError(err)
	}

	return c.JSON(http.StatusOK, reviews)
}

func (s Server) GetSites(c echo.Context) error {
	sites, err := s.catalog.ListSites(c.Request().Context())
	if err != nil {
		return catalogError(err)
	}

	return c.JSON(http.StatusOK, sites)
}

func (s Server) GetSite(c echo.Context) error {
	siteID, err := idParam(c)
	if err != nil {
		return err
	}

	site, err := s.catalog.GetSite(c.Request().Context(), siteID)
	if err != nil {
		return catalogError(err)
	}

	return c.JSON(http.StatusOK, site)
}

func (s Server) SearchSites(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing q")
	}

	lang := c.QueryParam("lang")
	if lang == "" {
		lang = "en"
	}

	sites, err := s.catalog.SearchSites(c.Request().Context(), query, lang)
	if err != nil {
		return catalogError(err)
	}

	return c.JSON(http.StatusOK, sites)
}

func (s Server) GetSiteGuides(c echo.Context) error {
	siteID, err := idParam(c)
	if err != nil {
		return err
	}

	guides, err := s.catalog.ListSiteGuides(c.Request().Context(), siteID)
	if err != nil {
		return catalogError(err)
	}

	return c.JSON(http.StatusOK, guides)
}

func (s Server) GetMapMarkers(c echo.Context) error {
	markers, err := s.catalog.ListMapMarkers(c.Request().Context())
	if err != nil {
		return catalogError(err)
	}

	return c.JSON(http.StatusOK, markers)
}

func (s Server) GetCategories(c echo.Context) error {
	categories, err := s.catalog.ListCategories(c.Request().Context())
	if err != nil {
		return catalogError(err)
	}

	return c.JSON(http.StatusOK, categories)
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func catalogError(err error) error {
	if errors.Is(err, entity.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return echo.NewHTTPError(http.StatusBadGateway, "content service unavailable").SetInternal(err)
}
