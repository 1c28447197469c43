package middleware

import (
	"net/http"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/query"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/rerank"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"
)

// Tenant headers. Authentication is handled upstream (gateway); these
// headers are trusted as already verified claims.
const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderClearance = "X-Clearance"
	HeaderRequestID = "X-Request-ID"
)

type App struct {
	DBConn       *pgxpool.Pool
	Queue        *amqp091.Channel
	S3           *s3.Client
	AiClient     ai.Client
	Rerank       *rerank.Client
	ChunkStore   store.ChunkStorage
	GraphStore   store.GraphStorage
	QueryOptions query.Options
}

type AppContext struct {
	echo.Context
	App    *App
	Tenant tenant.Context
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, tenant.Context{}}
			return next(cc)
		}
	}
}

// TenantMiddleware resolves the tenant context from request headers and
// rejects requests that carry none. Every store call downstream is
// scoped by this context, so there is no anonymous access path.
func TenantMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc, ok := c.(*AppContext)
		if !ok {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}

		appID := c.Request().Header.Get(HeaderTenantID)
		clearance := 0
		if raw := c.Request().Header.Get(HeaderClearance); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid clearance header"})
			}
			clearance = parsed
		}

		tc, err := tenant.New(appID, clearance, c.Request().Header.Get(HeaderRequestID))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}

		cc.Tenant = tc
		c.Response().Header().Set(HeaderRequestID, tc.RequestID)
		return next(cc)
	}
}
