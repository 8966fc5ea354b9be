package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zulandar/fleetyard/internal/analytics"
	"github.com/zulandar/fleetyard/internal/cycle"
	"github.com/zulandar/fleetyard/internal/models"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/", authenticate(opts.JWTSecret))

	writes := api.Group("/", requireCap(CapCyclesWrite), requireOperator())
	writes.POST("/vehicles/:id/pickup", handlePickup(opts.Engine))
	writes.POST("/vehicles/:id/takeover", handleTakeover(opts.Engine))
	writes.POST("/cycles/:id/return", handleReturn(opts.Engine))

	reads := api.Group("/", requireCap(CapAnalyticsRead))
	reads.GET("/cycles/:id", handleCycle(opts.Engine, opts.Analytics))
	reads.GET("/vehicles", handleFleet(opts.Analytics))
	reads.GET("/vehicles/:id/history", handleVehicleHistory(opts.Analytics))
	reads.GET("/dashboard", handleDashboard(opts.Analytics))
	reads.GET("/history", handleHistory(opts.Analytics))
	reads.GET("/operators/stats", handleOperatorStats(opts.Analytics))
	reads.GET("/events", handleEvents(opts.Analytics, opts.StreamInterval))
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type pickupBody struct {
	BatteryPct  *int   `json:"battery_pct" binding:"required"`
	EarlyReason string `json:"early_reason"`
}

type takeoverBody struct {
	BatteryPct *int `json:"battery_pct" binding:"required"`
}

type returnBody struct {
	BatteryPct *int   `json:"battery_pct" binding:"required"`
	ReturnType string `json:"return_type" binding:"required"`
	LocationID *uint  `json:"location_id"`
}

func handlePickup(engine *cycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID, ok := pathID(c)
		if !ok {
			return
		}
		var body pickupBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, _ := principalFrom(c)

		res, err := engine.Pickup(c.Request.Context(), cycle.PickupRequest{
			VehicleID:   vehicleID,
			OperatorID:  p.OperatorID,
			BatteryPct:  *body.BatteryPct,
			EarlyReason: body.EarlyReason,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		resp := gin.H{"cycle_id": res.Cycle.ID, "early_pickup": res.Cycle.EarlyPickup}
		if res.Closed != nil {
			resp["closed_cycle_id"] = res.Closed.ID
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleTakeover(engine *cycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID, ok := pathID(c)
		if !ok {
			return
		}
		var body takeoverBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, _ := principalFrom(c)

		res, err := engine.Takeover(c.Request.Context(), cycle.TakeoverRequest{
			VehicleID:  vehicleID,
			OperatorID: p.OperatorID,
			BatteryPct: *body.BatteryPct,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cycle_id": res.Cycle.ID, "closed_cycle_id": res.Closed.ID})
	}
}

func handleReturn(engine *cycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		cycleID, ok := pathID(c)
		if !ok {
			return
		}
		var body returnBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, _ := principalFrom(c)

		res, err := engine.Return(c.Request.Context(), cycle.ReturnRequest{
			CycleID:    cycleID,
			BatteryPct: *body.BatteryPct,
			ReturnType: models.ReturnType(body.ReturnType),
			LocationID: body.LocationID,
			OperatorID: p.OperatorID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		warnings := make([]string, 0, len(res.Warnings))
		for _, w := range res.Warnings {
			warnings = append(warnings, string(w))
		}
		c.JSON(http.StatusOK, gin.H{
			"cycle_id": res.Cycle.ID,
			"status":   res.Cycle.Status,
			"warnings": warnings,
		})
	}
}

func handleCycle(engine *cycle.Engine, svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		cyc, err := engine.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		views, err := svc.Views(c.Request.Context(), []models.ChargeCycle{*cyc})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, views[0])
	}
}

func handleFleet(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		fleet, err := svc.Fleet(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"vehicles": fleet})
	}
}

func handleVehicleHistory(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		w, ok := window(c)
		if !ok {
			return
		}
		h, err := svc.VehicleHistory(c.Request.Context(), id, w)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, h)
	}
}

func handleDashboard(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, ok := window(c)
		if !ok {
			return
		}
		d, err := svc.Dashboard(c.Request.Context(), w)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func handleHistory(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, ok := window(c)
		if !ok {
			return
		}
		q := analytics.HistoryQuery{Window: w}
		for name, dst := range map[string]*int{"page": &q.Page, "limit": &q.Limit} {
			v, ok := queryInt(c, name)
			if !ok {
				return
			}
			*dst = v
		}
		for name, dst := range map[string]*uint{"vehicle_id": &q.Filter.VehicleID, "operator_id": &q.Filter.OperatorID} {
			v, ok := queryInt(c, name)
			if !ok {
				return
			}
			if v < 0 {
				badRequest(c, name+" must not be negative")
				return
			}
			*dst = uint(v)
		}
		if s := c.Query("status"); s != "" {
			status := models.CycleStatus(s)
			if !status.Valid() {
				badRequest(c, "unknown status "+strconv.Quote(s))
				return
			}
			q.Filter.Status = status
		}

		page, err := svc.History(c.Request.Context(), q)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func handleOperatorStats(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, ok := window(c)
		if !ok {
			return
		}
		stats, err := svc.OperatorStats(c.Request.Context(), w)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"operators": stats})
	}
}

// pathID parses the :id path parameter, answering 400 when it is not a
// positive integer.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func window(c *gin.Context) (analytics.Window, bool) {
	days, ok := queryInt(c, "days")
	if !ok {
		return analytics.Window{}, false
	}
	if days < 0 {
		badRequest(c, "days must not be negative")
		return analytics.Window{}, false
	}
	return analytics.Window{Days: days}, true
}
