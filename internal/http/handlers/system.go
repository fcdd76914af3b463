package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"

	intconfig "freight-backend/internal/config"
	intdb "freight-backend/internal/db"

	"github.com/gin-gonic/gin"
)

// SystemHandler serves the unauthenticated operational endpoints.
type SystemHandler struct {
	DB      intdb.DBTX
	Gateway interface{ Configured() bool }
	// Engine is set by the router once the routes exist.
	Engine *gin.Engine
}

func (h SystemHandler) db() intdb.DBTX {
	if h.DB != nil {
		return h.DB
	}
	if intconfig.DB != nil {
		return intconfig.DB
	}
	return nil
}

func (h SystemHandler) gatewayReady() bool {
	return h.Gateway != nil && h.Gateway.Configured()
}

// Health GET /api/health
func (h SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"message":  "freight backend berjalan",
		"paystack": h.gatewayReady(),
	})
}

// DBCheck GET /api/db-check reports missing ledger tables and the payment
// count per status.
func (h SystemHandler) DBCheck(c *gin.Context) {
	db := h.db()
	if db == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database belum terhubung"})
		return
	}
	ctx := c.Request.Context()

	missing := []string{}
	for _, name := range intdb.LedgerTables() {
		if !intdb.HasTable(ctx, db, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tabel ledger belum lengkap", "missing": missing})
		return
	}

	byStatus, err := paymentsByStatus(ctx, db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "gagal query ke database: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "koneksi database OK", "payments": byStatus})
}

func paymentsByStatus(ctx context.Context, db intdb.DBTX) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM payments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// Routes GET /api/routes lists the mounted API, grouped by surface.
func (h SystemHandler) Routes(c *gin.Context) {
	if h.Engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "router belum siap"})
		return
	}

	groups := map[string][]gin.H{}
	for _, rt := range h.Engine.Routes() {
		if rt.Method == http.MethodOptions {
			continue
		}
		groups[routeGroup(rt.Path)] = append(groups[routeGroup(rt.Path)], gin.H{"method": rt.Method, "path": rt.Path})
	}
	for _, list := range groups {
		sort.Slice(list, func(i, j int) bool {
			return list[i]["path"].(string) < list[j]["path"].(string)
		})
	}
	c.JSON(http.StatusOK, gin.H{"routes": groups})
}

// routeGroup maps /api/paystack/webhook to "paystack" and /metrics to "system".
func routeGroup(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "api" {
		return parts[1]
	}
	return "system"
}
