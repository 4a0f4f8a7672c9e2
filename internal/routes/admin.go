package routes

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"

	"table-call/internal/backend"
	"table-call/internal/dashboard"
	"table-call/internal/tablecode"
	"table-call/internal/utils"
)

type closeRequest struct {
	TableName string           `json:"tableName" form:"tableName" binding:"required"`
	Type      backend.CallType `json:"type" form:"type" binding:"required"`
}

// AdminRoutes serves the staff dashboard and the QR roster under /admin.
func (s *Server) AdminRoutes(r *gin.RouterGroup) {
	r.Use(s.AdminAuth())

	r.GET("/active-calls/:location", s.activeCallsPage)
	r.GET("/active-calls/:location/events", s.activeCallsEvents)
	r.POST("/active-calls/:location/close", s.closeCall)

	r.GET("/qr-list", s.qrList)
	r.GET("/qr-list.csv", s.qrExport("csv"))
	r.GET("/qr-list.txt", s.qrExport("txt"))
	r.GET("/qr/:token", s.qrImage)
}

func (s *Server) activeCallsPage(c *gin.Context) {
	location, ok := requireLocation(c)
	if !ok {
		return
	}
	HTML(c, http.StatusOK, "active_calls.html.tmpl", gin.H{
		"Location":     location,
		"LocationName": s.locationName(c.Request.Context(), location),
		"Date":         c.Query("date"),
		"Groups":       dashboard.Groups,
	})
}

// activeCallsEvents mounts a dashboard for the lifetime of the stream and
// sends a snapshot on every tick and every list change.
func (s *Server) activeCallsEvents(c *gin.Context) {
	location, ok := requireLocation(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	board := dashboard.Open(ctx, location, s.Backend, dashboard.Options{
		Date:     c.Query("date"),
		Listener: s.Listener,
		Bindings: s.Bindings,
		Logger:   s.logger(),
		Now:      s.Now,
	})
	defer board.Close()

	snapshots, cancel := board.Subscribe()
	defer cancel()

	startStream(c)
	snap, err := board.Refresh(ctx)
	if err != nil {
		slog.Warn("Active calls unavailable", "location", location, "error", err)
	}
	if err := eventMessage(c, "snapshot", snap); err != nil {
		return
	}

	clientGone := ctx.Done()
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := eventMessage(c, "snapshot", snap); err != nil {
				return
			}
		case <-clientGone:
			slog.Debug("Dashboard SSE client disconnected", "location", location)
			return
		}
	}
}

func (s *Server) closeCall(c *gin.Context) {
	location, ok := requireLocation(c)
	if !ok {
		return
	}
	var req closeRequest
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	err := dashboard.CloseCall(c.Request.Context(), s.Backend, location, req.TableName, req.Type, s.now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	claim, _ := GetAdmin(c)
	slog.Info("Call closed from panel", "location", location, "table", req.TableName, "type", req.Type, "by", claim.Subject)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// adminEntries lists the roster entries visible to the request claim,
// optionally narrowed with ?location=.
func (s *Server) adminEntries(c *gin.Context) ([]tablecode.Entry, bool) {
	roster, err := s.roster(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	entries, err := s.Codec.GenerateAll(s.Cfg.BaseURL, roster)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}

	claim, err := GetAdmin(c)
	if err != nil {
		AbortWithError(c, ErrUnauthorized)
		return nil, false
	}
	entries = slices.DeleteFunc(entries, func(e tablecode.Entry) bool {
		return !claim.Allows(e.LocationID)
	})

	if raw := c.Query("location"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			AbortWithError(c, ErrInvalidLocation)
			return nil, false
		}
		entries = tablecode.FilterLocation(entries, id)
	}
	return entries, true
}

func (s *Server) qrList(c *gin.Context) {
	entries, ok := s.adminEntries(c)
	if !ok {
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"entries": entries})
		return
	}
	HTML(c, http.StatusOK, "qr_list.html.tmpl", gin.H{"Entries": entries})
}

// qrExport writes the roster as a CSV or text download. ?encoding=utf-16le
// adds the BOM spreadsheet tools expect.
func (s *Server) qrExport(format string) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, ok := s.adminEntries(c)
		if !ok {
			return
		}
		enc := tablecode.Encoding(c.DefaultQuery("encoding", string(tablecode.UTF8)))
		filename := fmt.Sprintf("qr-list-%s.%s", s.now().Format("20060102"), format)

		contentType := "text/plain"
		write := tablecode.WriteText
		if format == "csv" {
			contentType = "text/csv"
			write = tablecode.WriteCSV
		}
		if enc == tablecode.UTF16LE {
			contentType += "; charset=utf-16le"
		} else {
			contentType += "; charset=utf-8"
		}

		var buf bytes.Buffer
		if err := write(&buf, entries, enc); err != nil {
			AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, contentType, buf.Bytes())
	}
}

func (s *Server) qrImage(c *gin.Context) {
	token := c.Param("token")
	table, ok := s.Codec.Decode(token)
	if !ok {
		AbortWithError(c, ErrInvalidToken)
		return
	}
	claim, err := GetAdmin(c)
	if err != nil || !claim.Allows(table.Location) {
		AbortWithError(c, ErrForbidden)
		return
	}

	png, err := tablecode.QRCode(utils.JoinURL(s.Cfg.BaseURL, token), s.Cfg.QRImageSize)
	if err != nil {
		slog.Error("Failed to generate QR code", "table", table.String(), "error", err)
		AbortWithError(c, ErrInternalServer)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
