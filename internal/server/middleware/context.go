package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/peakfunnel/intentgraph/internal/queue"
	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/intent"
	"github.com/peakfunnel/intentgraph/pkg/propagation"
	"github.com/peakfunnel/intentgraph/pkg/resilience"
	"github.com/peakfunnel/intentgraph/pkg/semantic"
)

// App bundles the engines and infrastructure handlers reach through the
// request context.
type App struct {
	Semantic     *semantic.Engine
	Intent       *intent.Engine
	Propagation  *propagation.Engine
	Resilience   *resilience.Manager
	Queue        *amqp091.Channel
	Publisher    *queue.Publisher
	Tuning       graph.Tuning
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
