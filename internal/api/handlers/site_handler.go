package handlers

import (
	"net/http"
	"strconv"

	"github.com/andgrowhq/chatwidget/internal/services"
	"github.com/andgrowhq/chatwidget/internal/utils"
	"github.com/gin-gonic/gin"
)

type SiteHandler struct {
	sites services.SiteService
}

func NewSiteHandler(sites services.SiteService) *SiteHandler {
	return &SiteHandler{sites: sites}
}

type CreateSiteRequest struct {
	Name string `json:"name" binding:"required"`
	URL  string `json:"url" binding:"required"`
}

func (h *SiteHandler) Create(c *gin.Context) {
	var req CreateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SiteHandler.Create", "name and url are required", err))
		return
	}

	site, err := h.sites.Create(c.Request.Context(), req.Name, req.URL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, site)
}

func (h *SiteHandler) List(c *gin.Context) {
	sites, err := h.sites.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sites": sites})
}

func (h *SiteHandler) SetActive(c *gin.Context) {
	active, err := strconv.ParseBool(c.Query("active"))
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SiteHandler.SetActive", "active must be true or false", err))
		return
	}

	site, err := h.sites.SetActive(c.Request.Context(), c.Param("id"), active)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

func (h *SiteHandler) Delete(c *gin.Context) {
	if err := h.sites.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
