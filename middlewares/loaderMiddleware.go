package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/models"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap your data loaders to inject via middleware
type Loaders struct {
	CashReportLoader *dataloader.Loader[string, *models.CashReport]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(conn *gorm.DB) *Loaders {
	cashReportReader := &cashReportReader{db: conn}

	return &Loaders{
		CashReportLoader: dataloader.NewBatchedLoader(cashReportReader.getCashReports, dataloader.WithWait[string, *models.CashReport](time.Millisecond)),
	}
}

// LoaderMiddleware installs fresh loaders per request. getDB defaults to config.GetDB.
func LoaderMiddleware(getDB func() *gorm.DB) gin.HandlerFunc {
	if getDB == nil {
		getDB = config.GetDB
	}
	return func(c *gin.Context) {
		loader := NewLoaders(getDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WithLoaders attaches loaders outside of a gin request (tests, cli tools).
func WithLoaders(ctx context.Context, conn *gorm.DB) context.Context {
	return context.WithValue(ctx, loadersKey, NewLoaders(conn))
}

// For returns the request's loaders.
func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}
