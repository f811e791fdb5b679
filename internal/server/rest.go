package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/dispatch"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/ingest"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/logger"
)

// Dispatcher is the tool entry point served by both transports.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, arguments map[string]any) dispatch.Response
	Tools() []dispatch.Tool
}

// Ingester accepts ingestion triggers.
type Ingester interface {
	ProcessLocation(ctx context.Context, req ingest.BatchRequest) (ingest.Report, error)
	ProcessDailyData(ctx context.Context) ingest.Report
}

type dispatchRequest struct {
	ToolName  string         `json:"toolName" binding:"required"`
	Arguments map[string]any `json:"arguments"`
}

type ingestRequest struct {
	Operation       string `json:"operation"`
	SourceKind      string `json:"sourceKind"`
	RecordsLocation string `json:"recordsLocation"`
}

type errorEnvelope struct {
	Error dispatch.ErrorBody `json:"error"`
}

// NewRouter builds the REST surface. ing may be nil to serve dispatch only.
func NewRouter(d Dispatcher, ing Ingester, log *logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(log))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/tools", func(c *gin.Context) { c.JSON(http.StatusOK, d.Tools()) })

	r.POST("/tools/:name", func(c *gin.Context) {
		args := map[string]any{}
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&args); err != nil {
				respondError(c, http.StatusBadRequest, errs.InvalidArguments, err)
				return
			}
		}
		c.JSON(statusCode(d.Dispatch(c.Request.Context(), c.Param("name"), args)))
	})

	r.POST("/dispatch", func(c *gin.Context) {
		var req dispatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, errs.InvalidArguments, err)
			return
		}
		c.JSON(statusCode(d.Dispatch(c.Request.Context(), req.ToolName, req.Arguments)))
	})

	if ing != nil {
		r.POST("/ingest", func(c *gin.Context) {
			var req ingestRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, errs.InvalidArguments, err)
				return
			}
			if req.Operation == "process_daily_data" {
				c.JSON(http.StatusOK, ing.ProcessDailyData(c.Request.Context()))
				return
			}
			if req.Operation != "" {
				respondError(c, http.StatusBadRequest, errs.InvalidArguments,
					errs.Errorf(errs.InvalidArguments, "ingest", "unknown operation %q", req.Operation))
				return
			}
			report, err := ing.ProcessLocation(c.Request.Context(), ingest.BatchRequest{
				SourceKind:      modelKind(req.SourceKind),
				RecordsLocation: req.RecordsLocation,
			})
			if err != nil {
				code := http.StatusBadGateway
				if k := errs.KindOf(err); k == errs.InvalidArguments || k == errs.MalformedRecord {
					code = http.StatusBadRequest
				}
				respondError(c, code, errs.KindOf(err), err)
				return
			}
			c.JSON(http.StatusOK, report)
		})
	}
	return r
}

// statusCode maps a dispatch response to an HTTP status. Business "no
// result" outcomes are successful responses.
func statusCode(resp dispatch.Response) (int, dispatch.Response) {
	if resp.Status != dispatch.StatusError {
		return http.StatusOK, resp
	}
	switch resp.Error.Kind {
	case errs.UnknownTool:
		return http.StatusNotFound, resp
	case errs.InvalidArguments:
		return http.StatusBadRequest, resp
	case errs.EmbeddingServiceFailure, errs.UpstreamFeedFailure:
		return http.StatusBadGateway, resp
	}
	return http.StatusInternalServerError, resp
}

func respondError(c *gin.Context, status int, kind errs.Kind, err error) {
	c.JSON(status, errorEnvelope{Error: dispatch.ErrorBody{Kind: kind, Message: err.Error()}})
}

func requestLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug("http request", "method", c.Request.Method, "path", c.FullPath(), "status", c.Writer.Status())
	}
}
