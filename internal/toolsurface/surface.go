package toolsurface

import (
	"context"

	"github.com/sdforge/sdforge/internal/config"
	"github.com/sdforge/sdforge/internal/contentclassifier"
	"github.com/sdforge/sdforge/internal/convstore"
	"github.com/sdforge/sdforge/internal/llmrouter"
	"github.com/sdforge/sdforge/internal/loracatalog"
	"github.com/sdforge/sdforge/internal/queue"
	"github.com/sdforge/sdforge/internal/sdgateway"
	"github.com/sdforge/sdforge/internal/uploadrouter"
)

const component = "toolsurface"

// Gateway is the subset of sdgateway.Client the tool surface drives,
// narrowed to ease testing with a fake.
type Gateway interface {
	ListModels(ctx context.Context) ([]sdgateway.SDModel, error)
	ListSamplers(ctx context.Context) ([]sdgateway.Sampler, error)
	Txt2Img(ctx context.Context, p sdgateway.GenerationParams) (sdgateway.GenerationResult, error)
}

// Surface wires every domain component behind the tool catalog. It holds no
// state of its own beyond its dependencies; each tool is a thin, stateless
// adapter over one or a small composition of them.
type Surface struct {
	gateway    Gateway
	catalog    *loracatalog.Catalog
	classifier *contentclassifier.Classifier
	queue      *queue.Engine
	uploader   *uploadrouter.Router
	store      *convstore.Store
	router     *llmrouter.Router
	admins     map[string]bool
}

// New builds a Surface over the full set of domain components.
func New(
	gateway Gateway,
	catalog *loracatalog.Catalog,
	classifier *contentclassifier.Classifier,
	q *queue.Engine,
	uploader *uploadrouter.Router,
	store *convstore.Store,
	router *llmrouter.Router,
	moderation config.ModerationConfig,
) *Surface {
	admins := make(map[string]bool, len(moderation.AdminUserIDs))
	for _, id := range moderation.AdminUserIDs {
		admins[id] = true
	}
	return &Surface{
		gateway: gateway, catalog: catalog, classifier: classifier,
		queue: q, uploader: uploader, store: store, router: router, admins: admins,
	}
}

func (s *Surface) isAdmin(userID string) bool {
	return s.admins[userID]
}
