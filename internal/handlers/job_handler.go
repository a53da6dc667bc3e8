package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtorrez/rentora-api/internal/services"
)

type JobHandler struct {
	jobService *services.JobService
}

func NewJobHandler(jobSvc *services.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobSvc,
	}
}

// Status returns the current worker status
// @Summary Get background job status
// @Description Get worker statistics and the last outcome of each scheduled job
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /jobs/status [get]
func (h *JobHandler) Status(c *gin.Context) {
	status := h.jobService.GetStatus()
	c.JSON(http.StatusOK, status)
}

// @Summary Trigger Billing Cycle
// @Description Enqueue an immediate billing cycle run
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 202 {object} map[string]string
// @Router /jobs/billing_cycle [post]
func (h *JobHandler) TriggerBillingCycle(c *gin.Context) {
	h.jobService.TriggerBillingCycle()
	c.JSON(http.StatusAccepted, gin.H{"message": "Ciclo de facturación encolado"})
}

// @Summary Trigger Reminders
// @Description Enqueue an immediate overdue and upcoming reminder run
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 202 {object} map[string]string
// @Router /jobs/reminders [post]
func (h *JobHandler) TriggerReminders(c *gin.Context) {
	h.jobService.TriggerReminders()
	c.JSON(http.StatusAccepted, gin.H{"message": "Recordatorios encolados"})
}

// @Summary Trigger Lease Expiry
// @Description Enqueue an immediate lease expiry sweep
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 202 {object} map[string]string
// @Router /jobs/lease_expiry [post]
func (h *JobHandler) TriggerLeaseExpiry(c *gin.Context) {
	h.jobService.TriggerLeaseExpiry()
	c.JSON(http.StatusAccepted, gin.H{"message": "Expiración de contratos encolada"})
}

// @Summary Trigger Score Refresh
// @Description Enqueue an immediate payment score recalculation
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 202 {object} map[string]string
// @Router /jobs/score_refresh [post]
func (h *JobHandler) TriggerScoreRefresh(c *gin.Context) {
	h.jobService.TriggerScoreRefresh()
	c.JSON(http.StatusAccepted, gin.H{"message": "Recálculo de puntajes encolado"})
}

// @Summary Trigger Analytics Refresh
// @Description Enqueue an immediate analytics cache refresh
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 202 {object} map[string]string
// @Router /jobs/analytics_refresh [post]
func (h *JobHandler) TriggerAnalyticsRefresh(c *gin.Context) {
	h.jobService.TriggerAnalyticsRefresh()
	c.JSON(http.StatusAccepted, gin.H{"message": "Actualización de analíticas encolada"})
}
