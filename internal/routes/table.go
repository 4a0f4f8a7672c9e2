package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"table-call/internal/backend"
	"table-call/internal/tablecode"
	"table-call/internal/tableview"
	"table-call/internal/utils"
)

// ViewIDHeader routes a patron request to the view streaming its page.
const ViewIDHeader = "X-View-ID"

const tableKey = "table"

type callRequest struct {
	Type backend.CallType `json:"type" binding:"required"`
}

type feedbackRequest struct {
	StarRating int    `json:"starRating"`
	Comment    string `json:"comment"`
}

// TablePages serves the landing page, the table page and the legacy
// "/:location/:tableName" links.
func (s *Server) TablePages(r *gin.RouterGroup) {
	r.GET("/", func(c *gin.Context) {
		HTML(c, http.StatusOK, "home.html.tmpl", nil)
	})

	r.GET("/:key", func(c *gin.Context) {
		token := c.Param("key")
		table, ok := s.Codec.Decode(token)
		if !ok {
			slog.Debug("Unknown table token, redirecting home", "token", token)
			c.Redirect(http.StatusFound, "/")
			return
		}

		HTML(c, http.StatusOK, "table.html.tmpl", gin.H{
			"Token":        token,
			"TableURL":     utils.UrlFor(c, token),
			"Table":        table,
			"LocationName": s.locationName(c.Request.Context(), table.Location),
			"Queue":        tableview.Displays(nil, false),
		})
	})

	r.GET("/:key/:tableName", func(c *gin.Context) {
		table, err := tablecode.ParseLegacy(c.Param("key"), c.Param("tableName"))
		if err != nil {
			slog.Debug("Invalid legacy table link", "error", err)
			c.Redirect(http.StatusFound, "/")
			return
		}
		token, err := s.Codec.Encode(table.Location, table.Name)
		if err != nil {
			slog.Debug("Legacy table link cannot be encoded", "table", table.String(), "error", err)
			c.Redirect(http.StatusFound, "/")
			return
		}
		c.Redirect(http.StatusFound, "/"+token)
	})
}

// TableAPI serves the patron actions under /api/tables/:token.
func (s *Server) TableAPI(r *gin.RouterGroup) {
	r.Use(s.tableToken)

	r.GET("/queue", s.queueStatus)
	r.POST("/calls", s.submitCall)
	r.POST("/calls/cancel", s.cancelCall)
	r.POST("/feedback", s.submitFeedback)
	r.GET("/events", s.tableEvents)
}

// tableToken decodes the :token parameter into the request table.
func (s *Server) tableToken(c *gin.Context) {
	table, ok := s.Codec.Decode(c.Param("token"))
	if !ok {
		AbortWithError(c, ErrInvalidToken)
		return
	}
	c.Set(tableKey, table)
	c.Next()
}

func requestTable(c *gin.Context) tablecode.Table {
	return c.MustGet(tableKey).(tablecode.Table)
}

// mountedView returns the view named by the X-View-ID header. A nil view
// without error means the request goes straight to the backend.
func (s *Server) mountedView(c *gin.Context) (*tableview.View, error) {
	id := c.GetHeader(ViewIDHeader)
	if id == "" {
		return nil, nil
	}
	if !utils.VerifyViewID(id, s.viewSecret(), c.Param("token")) {
		return nil, ErrInvalidViewID
	}
	v, ok := s.Views.Get(id)
	if !ok {
		// Stream already ended
		return nil, nil
	}
	return v, nil
}

func (s *Server) queueStatus(c *gin.Context) {
	view, err := s.mountedView(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if view != nil {
		c.JSON(http.StatusOK, gin.H{"queue": view.QueueStatus(c.Request.Context())})
		return
	}

	table := requestTable(c)
	q, err := s.Backend.GetQueue(c.Request.Context(), table.Location, table.Name)
	if err != nil {
		slog.Warn("Queue status unavailable", "table", table.String(), "error", err)
		c.JSON(http.StatusOK, gin.H{"queue": tableview.Displays(nil, false), "available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": tableview.Displays(q, true), "available": true})
}

func (s *Server) submitCall(c *gin.Context) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	view, err := s.mountedView(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if view != nil {
		if err := view.SubmitCall(c.Request.Context(), req.Type); err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "state": view.State()})
		return
	}

	if !req.Type.Valid() {
		AbortWithError(c, tableview.ErrInvalidCallType)
		return
	}
	table := requestTable(c)
	call, err := s.Backend.CreateCall(c.Request.Context(), backend.CallInput{
		Location:  table.Location,
		Type:      req.Type,
		TableName: table.Name,
		Hour:      backend.Hour(s.now()),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": call})
}

func (s *Server) cancelCall(c *gin.Context) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	view, err := s.mountedView(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if view != nil {
		if err := view.CancelCall(c.Request.Context(), req.Type); err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "state": view.State()})
		return
	}

	if !req.Type.Valid() {
		AbortWithError(c, tableview.ErrInvalidCallType)
		return
	}
	table := requestTable(c)
	call, err := s.Backend.CloseFromCustomer(c.Request.Context(), backend.CloseCallInput{
		Location:  table.Location,
		TableName: table.Name,
		Hour:      backend.Hour(s.now()),
		Type:      req.Type,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": call})
}

func (s *Server) submitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	view, err := s.mountedView(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// A mounted view validates itself and streams the warning notice
	if view != nil {
		if err := view.SubmitFeedback(c.Request.Context(), req.StarRating, req.Comment); err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "state": view.State()})
		return
	}

	if err := tableview.ValidateFeedback(req.StarRating, req.Comment); err != nil {
		AbortWithError(c, err)
		return
	}
	table := requestTable(c)
	feedback, err := s.Backend.CreateFeedback(c.Request.Context(), backend.FeedbackInput{
		Location:   table.Location,
		TableName:  table.Name,
		StarRating: req.StarRating,
		Comment:    strings.TrimSpace(req.Comment),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "feedback": feedback})
}

// tableEvents mounts a view for the lifetime of the stream. The first event
// carries the view id the page sends back in X-View-ID.
func (s *Server) tableEvents(c *gin.Context) {
	table := requestTable(c)
	id, err := utils.GenerateViewID(s.viewSecret(), c.Param("token"))
	if err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInternalServer, err))
		return
	}

	ctx := c.Request.Context()
	view := tableview.Open(ctx, table, s.Backend, s.viewOptions(id))
	s.Views.Add(view)
	defer s.Views.Remove(view)

	states, cancel := view.Subscribe()
	defer cancel()

	startStream(c)
	if err := eventMessage(c, "view", gin.H{"viewId": view.ID}); err != nil {
		return
	}
	if err := eventMessage(c, "state", view.State()); err != nil {
		return
	}
	go view.QueueStatus(ctx)

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	clientGone := ctx.Done()
	for {
		select {
		case state, ok := <-states:
			if !ok {
				return
			}
			if err := eventMessage(c, "state", state); err != nil {
				return
			}
		case <-ticker.C:
			if err := keepAlive(c); err != nil {
				return
			}
		case <-clientGone:
			slog.Debug("SSE client disconnected", "view", view.ID)
			return
		}
	}
}
