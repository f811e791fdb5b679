package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/config"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/logger"
)

// Serve runs the configured transport until ctx is done:
//
//	stdio  MCP over stdin/stdout
//	http   REST plus MCP streamable HTTP at /mcp
//	rest   REST only
func Serve(ctx context.Context, cfg config.ServerConfig, d Dispatcher, ing Ingester, log *logger.Logger, version string) error {
	if log == nil {
		log = logger.NewNop()
	}
	switch cfg.Transport {
	case "", "stdio":
		log.Info("mcp server starting", "transport", "stdio")
		return NewMCP(d, ing, version).Run(ctx, &mcp.StdioTransport{})
	case "http", "rest":
	default:
		return fmt.Errorf("unknown transport %q (use stdio, http or rest)", cfg.Transport)
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(d, ing, log)
	if cfg.Transport == "http" {
		srv := NewMCP(d, ing, version)
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
		router.Any("/mcp", gin.WrapH(h))
	}

	hs := &http.Server{Addr: cfg.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Addr, "transport", cfg.Transport)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("http server shutting down")
		return hs.Shutdown(shutdownCtx)
	}
}
