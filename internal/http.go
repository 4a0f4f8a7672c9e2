package app

import (
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"

	"table-call/internal/routes"
	"table-call/internal/utils"
	"table-call/web"
)

func securityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "same-origin")

	// Queue state must never be served from a cache
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Next()
}

// Middleware to check if the IP is allowed.
func IPAccessControl(allowedCIDRs []string) gin.HandlerFunc {
	var parsedCIDRs []*net.IPNet

	// Allow local networks in debug mode
	if os.Getenv("GIN_MODE") != "release" {
		allowedCIDRs = append(allowedCIDRs, "127.0.0.1/8", "::1/128")
	}

	for _, cidr := range allowedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("Invalid CIDR", "cidr", cidr)
			continue
		}
		slog.Debug("Allowed CIDR", "cidr", cidr)
		parsedCIDRs = append(parsedCIDRs, network)
	}

	return func(c *gin.Context) {
		clientIP := net.ParseIP(c.ClientIP())
		if clientIP == nil {
			slog.Warn("Invalid client IP", "ip", c.ClientIP())
			routes.AbortWithError(c, routes.ErrForbidden)
			return
		}

		for _, cidr := range parsedCIDRs {
			if cidr.Contains(clientIP) {
				c.Next()
				return
			}
		}
		slog.Warn("IP not allowed", "ip", clientIP)
		routes.AbortWithError(c, routes.ErrForbidden)
	}
}

// ParseNetworks splits a comma separated network list.
func ParseNetworks(list string) []string {
	var cidrs []string
	for cidr := range strings.SplitSeq(list, ",") {
		if cidr := strings.TrimSpace(cidr); cidr != "" {
			cidrs = append(cidrs, cidr)
		}
	}
	return cidrs
}

// renderer parses every page into the shared layout.
func renderer(funcs template.FuncMap) (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()
	for _, page := range web.Pages {
		tmpl, err := template.New(path.Base(web.Layout)).
			Funcs(funcs).
			ParseFS(web.Files(), web.Layout, path.Join("templates", page))
		if err != nil {
			return nil, err
		}
		r.Add(page, tmpl)
	}
	return r, nil
}

func HTTPServer(s *routes.Server) (*gin.Engine, error) {
	r := gin.Default()

	html, err := renderer(routes.TemplateFuncs(routes.NewAssets(web.Assets())))
	if err != nil {
		return nil, err
	}
	r.HTMLRender = html

	r.StaticFS("/assets", http.FS(web.Assets()))

	r.Use(securityHeaders)
	r.Use(func(c *gin.Context) {
		c.Set(routes.BaseURLKey, utils.GetBaseURL(c, s.Cfg.BaseURL))
		c.Next()
	})
	r.Use(routes.ErrorHandler())

	s.Health(&r.RouterGroup)

	api := r.Group("/api/tables/:token")
	s.TableAPI(api)

	admin := r.Group("/admin")
	if s.Cfg.AllowedNetworks != "" {
		slog.Debug("Enabling IP access control on /admin", "allowed_networks", s.Cfg.AllowedNetworks)
		admin.Use(IPAccessControl(ParseNetworks(s.Cfg.AllowedNetworks)))
	}
	s.AdminRoutes(admin)

	// Registered last, the token routes match any single segment
	s.TablePages(&r.RouterGroup)

	return r, nil
}
