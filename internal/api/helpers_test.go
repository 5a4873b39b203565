package api

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/p-arndt/labkasten/internal/config"
	"github.com/p-arndt/labkasten/internal/testutil"
)

func testAPIServer(mgr SessionService, cat CatalogService) *Server {
	return testAPIServerWith(testutil.TestConfig(), mgr, cat)
}

func testAPIServerWith(cfg *config.Config, mgr SessionService, cat CatalogService) *Server {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewServer(cfg, mgr, cat, logger)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func asOwner(req *http.Request, owner string) *http.Request {
	req.Header.Set(OwnerHeader, owner)
	return req
}
