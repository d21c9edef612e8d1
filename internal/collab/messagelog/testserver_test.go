package messagelog

import (
	"github.com/labstack/echo/v4"

	"github.com/edcollab/edcollab/internal/domain/chat"
	"github.com/edcollab/edcollab/internal/platform/blobstore"
	"github.com/edcollab/edcollab/internal/platform/csrf"
)

// newTestBackend wires the real handlers over in-memory storage, CSRF
// enforcement included, so client tests run against the true contract.
func newTestBackend() *echo.Echo {
	e := echo.New()
	api := e.Group("/api", csrf.Middleware())
	api.GET("/csrf", csrf.TokenHandler)

	store := blobstore.NewInMemoryStore()
	chatSvc := chat.NewService(chat.NewMemRepo(), store, nil)
	chat.NewHandler(chatSvc).RegisterRoutes(api)
	blobstore.NewHandler(store).RegisterRoutes(api)
	return e
}
