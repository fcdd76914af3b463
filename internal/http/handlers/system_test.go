package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	intdb "freight-backend/internal/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
)

type readyGateway bool

func (g readyGateway) Configured() bool { return bool(g) }

func serveSystem(t *testing.T, h SystemHandler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Engine = r
	r.GET("/api/health", h.Health)
	r.GET("/api/db-check", h.DBCheck)
	r.GET("/api/routes", h.Routes)
	r.POST("/api/paystack/webhook", func(c *gin.Context) {})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return w, body
}

func expectTables(mock sqlmock.Sqlmock, present func(string) bool) {
	for _, name := range intdb.LedgerTables() {
		rows := sqlmock.NewRows([]string{"table_name"})
		if present(name) {
			rows.AddRow(name)
		}
		mock.ExpectQuery(`information_schema.tables`).WithArgs(name).WillReturnRows(rows)
	}
}

func TestDBCheckReportsPaymentsByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	expectTables(mock, func(string) bool { return true })
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM payments GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("pending", 3).AddRow("authorized", 1))

	w, body := serveSystem(t, SystemHandler{DB: db}, "/api/db-check")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	payments, _ := body["payments"].(map[string]any)
	if payments["pending"] != float64(3) || payments["authorized"] != float64(1) {
		t.Fatalf("unexpected payments: %v", body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDBCheckReportsMissingTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	expectTables(mock, func(name string) bool { return name != "payments" })

	w, body := serveSystem(t, SystemHandler{DB: db}, "/api/db-check")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	missing, _ := body["missing"].([]any)
	if len(missing) != 1 || missing[0] != "payments" {
		t.Fatalf("missing = %v", body["missing"])
	}
}

func TestHealthAndRoutes(t *testing.T) {
	w, body := serveSystem(t, SystemHandler{Gateway: readyGateway(true)}, "/api/health")
	if w.Code != http.StatusOK || body["paystack"] != true {
		t.Fatalf("health = %d %v", w.Code, body)
	}

	_, body = serveSystem(t, SystemHandler{}, "/api/routes")
	routes, _ := body["routes"].(map[string]any)
	paystack, _ := routes["paystack"].([]any)
	if len(paystack) != 1 {
		t.Fatalf("paystack routes = %v", routes)
	}
	if first, _ := paystack[0].(map[string]any); first["path"] != "/api/paystack/webhook" {
		t.Fatalf("unexpected route %v", paystack[0])
	}
	if _, ok := routes["system"]; ok {
		t.Fatalf("api routes leaked into system group: %v", routes)
	}
}
