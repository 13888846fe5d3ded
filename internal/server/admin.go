package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/boothworks/prizebooth/internal/prize/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) PauseBooth(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "paused by operator"
	}

	s.pause.Pause(req.Reason)
	c.JSON(http.StatusOK, gin.H{"paused": true, "reason": s.pause.Reason()})
}

func (s *Server) ResumeBooth(c *gin.Context) {
	s.pause.Resume()
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

// OverrideCloseTime sets or clears the runtime closing time. The
// override feeds straight into the probability window, so closing early
// drives urgency up immediately.
func (s *Server) OverrideCloseTime(c *gin.Context) {
	var req struct {
		CloseTime string `json:"close_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err := s.settings.OverrideCloseTime(req.CloseTime); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"close_time": s.settings.CloseTime()})
}

func (s *Server) ListPrizes(c *gin.Context) {
	prizes, err := s.prizeSvc.ListPrizes(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prizes": prizes})
}

func (s *Server) CreatePrize(c *gin.Context) {
	var req domain.CreatePrizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	prize, err := s.prizeSvc.CreatePrize(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, prize)
}

func (s *Server) AdjustInventory(c *gin.Context) {
	var req domain.AdjustInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	inventory, err := s.prizeSvc.AdjustInventory(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inventory)
}

func (s *Server) ResetDay(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = s.game.Today()
	}
	if err := s.game.ResetDay(c.Request.Context(), date); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": date})
}

func (s *Server) ListPlans(c *gin.Context) {
	settings := s.settings.Get()
	c.JSON(http.StatusOK, gin.H{
		"plans":       settings.Plans,
		"active_plan": s.game.ActivePlan(),
	})
}

func (s *Server) SetActivePlan(c *gin.Context) {
	var req struct {
		Plan string `json:"plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err := s.game.SetActivePlan(c.Request.Context(), req.Plan); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active_plan": req.Plan})
}

func (s *Server) VoucherCounts(c *gin.Context) {
	counts, err := s.prizeSvc.VoucherCounts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vouchers": counts})
}

func (s *Server) ImportVouchers(c *gin.Context) {
	var req domain.ImportVouchersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	resp, err := s.prizeSvc.ImportVouchers(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeleteUnusedVouchers(c *gin.Context) {
	deleted, err := s.prizeSvc.DeleteUnusedVouchers(c.Request.Context(), c.Param("textureKey"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) ListScheduledPrizes(c *gin.Context) {
	scheduled, err := s.prizeSvc.ListScheduledPrizes(c.Request.Context(), c.Query("date"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduled": scheduled})
}

func (s *Server) CreateScheduledPrize(c *gin.Context) {
	var req domain.ScheduledPrizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	scheduled, err := s.prizeSvc.CreateScheduledPrize(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, scheduled)
}

func (s *Server) DeleteScheduledPrize(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err := s.prizeSvc.DeleteScheduledPrize(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) AwardDueScheduledPrize(c *gin.Context) {
	entry, err := s.prizeSvc.AwardDueScheduledPrize(c.Request.Context(), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, gin.H{"awarded": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"awarded": true, "entry": entry})
}

func (s *Server) Stats(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = s.game.Today()
	}
	stats, err := s.prizeSvc.Stats(c.Request.Context(), date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if last := s.dist.LastAward(); last != nil {
		c.JSON(http.StatusOK, gin.H{"stats": stats, "last_award": last.Format(time.RFC3339)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (s *Server) DailyReport(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = s.game.Today()
	}
	pdf, err := s.reports.DailyReport(c.Request.Context(), date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	data, err := io.ReadAll(pdf)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="report-%s.pdf"`, date))
	c.Data(http.StatusOK, "application/pdf", data)
}

func (s *Server) MarkPrinted(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err := s.prizeSvc.MarkPrinted(c.Request.Context(), id, req.Status); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
