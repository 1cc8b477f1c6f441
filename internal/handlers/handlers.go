package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"funnelboard/internal/analytics"
	"funnelboard/internal/chatwoot"
	"funnelboard/internal/config"
	"funnelboard/internal/realtime"
	"funnelboard/internal/refresher"
	"funnelboard/internal/store"
)

// Handler serves the dashboard HTTP API.
type Handler struct {
	cfg       *config.Config
	logger    *zap.Logger
	refresher *refresher.Refresher
	client    *chatwoot.Client
	archive   *store.Archive
	hub       *realtime.Hub
}

// NewHandler creates the HTTP handler.
func NewHandler(
	cfg *config.Config,
	logger *zap.Logger,
	r *refresher.Refresher,
	client *chatwoot.Client,
	archive *store.Archive,
	hub *realtime.Hub,
) *Handler {
	return &Handler{
		cfg:       cfg,
		logger:    logger,
		refresher: r,
		client:    client,
		archive:   archive,
		hub:       hub,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.HealthCheck)
	if h.cfg.Metrics.Enabled {
		router.GET(h.cfg.Metrics.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1")
	if h.cfg.Security.APIAuth.Enabled {
		api.Use(JWTAuthMiddleware(h.cfg.Security.APIAuth.JWTSecret))
	}
	{
		dashboard := api.Group("/dashboard")
		{
			dashboard.GET("", h.GetDashboard)
			dashboard.PUT("/filters", h.UpdateFilters)
			dashboard.POST("/refresh", h.TriggerRefresh)
			dashboard.GET("/history", h.GetHistory)
		}

		api.GET("/conversations", h.ListConversations)
		api.GET("/labels", h.ListLabels)
		api.GET("/inboxes", h.ListInboxes)

		api.GET("/realtime/ws", h.hub.HandleWebSocket)
		api.GET("/realtime/stats", h.GetRealtimeStats)
	}
}

// DashboardResponse wraps the snapshot with its loading/error indicator.
type DashboardResponse struct {
	Loading bool                       `json:"loading"`
	Error   string                     `json:"error,omitempty"`
	Filters FiltersResponse            `json:"filters"`
	Data    *analytics.MetricsSnapshot `json:"data"`
}

// FiltersResponse echoes the active month/week selection.
type FiltersResponse struct {
	AllTime bool `json:"allTime"`
	Year    int  `json:"year,omitempty"`
	Month   int  `json:"month,omitempty"`
	Week    int  `json:"week"`
}

// GetDashboard returns the current metrics snapshot.
func (h *Handler) GetDashboard(c *gin.Context) {
	snapshot, loading, errMsg := h.refresher.State()
	params := h.refresher.Params()

	resp := DashboardResponse{
		Loading: loading,
		Error:   errMsg,
		Filters: FiltersResponse{
			AllTime: params.Month == nil,
			Week:    params.Week,
		},
		Data: snapshot,
	}
	if params.Month != nil {
		resp.Filters.Year = params.Month.Year
		resp.Filters.Month = int(params.Month.Month)
	}

	c.JSON(http.StatusOK, resp)
}

// FilterRequest selects the dashboard window. AllTime clears the month
// selection; otherwise Year and Month pick a concrete calendar month.
type FilterRequest struct {
	AllTime bool `json:"allTime"`
	Year    int  `json:"year"`
	Month   int  `json:"month"`
	Week    int  `json:"week"`
}

// UpdateFilters applies a new month/week selection and schedules a recompute.
func (h *Handler) UpdateFilters(c *gin.Context) {
	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter payload"})
		return
	}

	if req.Week < 1 || req.Week > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "week must be between 1 and 5"})
		return
	}

	params := refresher.Params{Week: req.Week}
	if !req.AllTime {
		if req.Month < 1 || req.Month > 12 || req.Year < 2000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month selection"})
			return
		}
		params.Month = &analytics.MonthSelection{
			Year:  req.Year,
			Month: time.Month(req.Month),
		}
	}

	h.refresher.SetParams(c.Request.Context(), params)
	c.JSON(http.StatusAccepted, gin.H{"status": "recompute scheduled"})
}

// TriggerRefresh forces an immediate recompute with the current filters.
func (h *Handler) TriggerRefresh(c *gin.Context) {
	h.refresher.Refresh(c.Request.Context())
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh scheduled"})
}

// GetHistory returns recently archived snapshots.
func (h *Handler) GetHistory(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot archive is disabled"})
		return
	}

	limit := h.cfg.Archive.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	records, err := h.archive.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to load snapshot history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payload": records})
}

// ListConversations exposes the conversation browser: a single page of
// conversations, optionally restricted by free-text query and label.
func (h *Handler) ListConversations(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		page = parsed
	}

	var labels []string
	if label := c.Query("label"); label != "" {
		labels = []string{label}
	}

	var (
		result *chatwoot.ConversationPage
		err    error
	)
	if q := c.Query("q"); q != "" {
		result, err = h.client.SearchConversations(c.Request.Context(), q, labels)
	} else {
		result, err = h.client.ListConversations(c.Request.Context(), page, labels)
	}
	if err != nil {
		h.logger.Error("Failed to list conversations", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch conversations"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListLabels exposes the account's label titles.
func (h *Handler) ListLabels(c *gin.Context) {
	labels, err := h.client.ListLabels(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list labels", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch labels"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payload": labels})
}

// ListInboxes exposes the account's inboxes.
func (h *Handler) ListInboxes(c *gin.Context) {
	inboxes, err := h.client.ListInboxes(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list inboxes", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch inboxes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payload": inboxes})
}

// GetRealtimeStats reports WebSocket hub statistics.
func (h *Handler) GetRealtimeStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connected_clients": h.hub.ClientCount()})
}

// HealthCheck reports service liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	_, loading, errMsg := h.refresher.State()
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"loading":    loading,
		"last_error": errMsg,
		"timestamp":  time.Now().UTC(),
	})
}
