package controller

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"alchemy/internal/competition/model"
	"alchemy/internal/competition/notify"
	"alchemy/internal/competition/service"
	"alchemy/internal/competition/status"
	"alchemy/pkg/utils/logger"
	"alchemy/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// CompetitionService is the subset of the service the HTTP layer needs.
type CompetitionService interface {
	UpsertDescriptor(ctx context.Context, d status.Descriptor) (*model.CompetitionView, error)
	DeleteDescriptor(ctx context.Context, id string) error
	GetStatus(ctx context.Context, id string) (*model.CompetitionView, error)
	ListStatuses(ctx context.Context, filter service.ListFilter) ([]model.CompetitionView, error)
	GetArchive(ctx context.Context, id string) (*model.ArchiveRecord, error)
}

// CompetitionController handles competition HTTP endpoints.
type CompetitionController struct {
	svc      CompetitionService
	hub      *notify.Hub
	upgrader websocket.Upgrader
}

// NewCompetitionController creates a new CompetitionController. A nil hub
// disables the websocket endpoint.
func NewCompetitionController(svc CompetitionService, hub *notify.Hub) *CompetitionController {
	return &CompetitionController{
		svc: svc,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ListResponse wraps a list of competitions.
type ListResponse struct {
	Items []model.CompetitionView `json:"items"`
	Total int                     `json:"total"`
}

// List returns competitions ordered for display.
func (h *CompetitionController) List(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			response.BadRequest(c, "Invalid limit")
			return
		}
		limit = v
	}
	views, err := h.svc.ListStatuses(c.Request.Context(), service.ListFilter{
		DAO:   strings.TrimSpace(c.Query("dao")),
		Limit: limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ListResponse{Items: views, Total: len(views)})
}

// GetStatus returns the current status of one competition.
func (h *CompetitionController) GetStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "Invalid competition id")
		return
	}
	view, err := h.svc.GetStatus(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// Upsert stores the descriptor in the body under the id from the path.
func (h *CompetitionController) Upsert(c *gin.Context) {
	var d status.Descriptor
	if err := c.ShouldBindJSON(&d); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	d.ID = c.Param("id")
	view, err := h.svc.UpsertDescriptor(c.Request.Context(), d)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// Delete removes one competition.
func (h *CompetitionController) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteDescriptor(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

// GetArchive returns the final snapshot of a finished competition.
func (h *CompetitionController) GetArchive(c *gin.Context) {
	rec, err := h.svc.GetArchive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rec)
}

// Watch upgrades to a websocket and streams status changes, optionally
// restricted to one DAO.
func (h *CompetitionController) Watch(c *gin.Context) {
	if h.hub == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "ws upgrade failed", zap.Error(err))
		return
	}
	h.hub.Add(conn, strings.TrimSpace(c.Query("dao")))
	defer h.hub.Remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
