package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtorrez/rentora-api/internal/middleware"
	"github.com/dtorrez/rentora-api/internal/services"
)

type AnalyticsHandler struct {
	analyticsSvc *services.AnalyticsService
	exportSvc    *services.ExportService
}

func NewAnalyticsHandler(analyticsSvc *services.AnalyticsService, exportSvc *services.ExportService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsSvc: analyticsSvc,
		exportSvc:    exportSvc,
	}
}

// @Summary Get Billing Overview
// @Description Returns invoiced and collected totals, overdue stats and monthly trend data
// @Tags Analytics
// @Produce json
// @Param start_date query string false "Start Date (ISO 8601)"
// @Param end_date query string false "End Date (ISO 8601)"
// @Param timeframe query string false "Trend timeframe (6M or 12M)"
// @Param refresh query bool false "Drop the cached numbers and recompute"
// @Security BearerAuth
// @Router /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	filters := h.parseFilters(c)
	if c.Query("refresh") == "true" {
		h.analyticsSvc.InvalidateOrg(c.Request.Context(), *filters.OrgID)
	}
	overview, err := h.analyticsSvc.GetOverview(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, overview)
}

// @Summary Get Invoice Status Distribution
// @Description Returns counts and amounts of invoices grouped by status
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Router /analytics/distribution [get]
func (h *AnalyticsHandler) Distribution(c *gin.Context) {
	orgID := middleware.GetOrgID(c)

	dist, err := h.analyticsSvc.GetDistribution(c.Request.Context(), &orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dist)
}

// @Summary Get Property Revenue
// @Description Returns collected revenue per property for a year
// @Tags Analytics
// @Produce json
// @Param year query int false "Year, defaults to current"
// @Security BearerAuth
// @Router /analytics/property_revenue [get]
func (h *AnalyticsHandler) PropertyRevenue(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	year, _ := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(time.Now().Year())))

	revenue, err := h.analyticsSvc.GetPropertyRevenue(c.Request.Context(), &orgID, year)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"property_revenue": revenue, "year": year})
}

// @Summary Export Analytics Data
// @Description Generates and downloads billing reports in various formats
// @Tags Analytics
// @Produce application/octet-stream
// @Param format query string true "Report format (csv, xlsx, pdf)"
// @Param start_date query string false "Start Date (ISO 8601)"
// @Param end_date query string false "End Date (ISO 8601)"
// @Security BearerAuth
// @Router /analytics/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	format := c.Query("format")
	filters := h.parseFilters(c)

	overview, err := h.analyticsSvc.GetOverview(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get overview data"})
		return
	}

	dist, err := h.analyticsSvc.GetDistribution(c.Request.Context(), filters.OrgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get distribution data"})
		return
	}

	var data []byte
	var filename string

	switch format {
	case "csv":
		data, filename, err = h.exportSvc.ExportCSV(c.Request.Context(), overview, dist)
	case "xlsx":
		data, filename, err = h.exportSvc.ExportXLSX(c.Request.Context(), overview, dist)
	case "pdf":
		data, filename, err = h.exportSvc.ExportPDF(c.Request.Context(), overview, dist)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format (csv, xlsx, pdf)"})
		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to generate %s: %v", format, err)})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (h *AnalyticsHandler) parseFilters(c *gin.Context) services.AnalyticsFilters {
	var filters services.AnalyticsFilters

	orgID := middleware.GetOrgID(c)
	filters.OrgID = &orgID

	if startStr := c.Query("start_date"); startStr != "" {
		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			filters.StartDate = &t
		}
	}

	if endStr := c.Query("end_date"); endStr != "" {
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			filters.EndDate = &t
		}
	}

	if yearStr := c.Query("year"); yearStr != "" {
		if y, err := strconv.Atoi(yearStr); err == nil {
			filters.Year = &y
		}
	}

	timeframe := c.Query("timeframe")
	if timeframe == "" {
		timeframe = c.DefaultQuery("revenue_timeframe", "12M")
	}
	filters.TrendMonths = 12
	if timeframe == "6M" {
		filters.TrendMonths = 6
	}

	return filters
}
