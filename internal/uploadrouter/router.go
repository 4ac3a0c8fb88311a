package uploadrouter

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/config"
	"github.com/sdforge/sdforge/internal/domain"
	"github.com/sdforge/sdforge/internal/queue"
	"github.com/sdforge/sdforge/internal/repo"
)

const component = "uploadrouter"

// Router picks the best available sink for a generated image: a per-user
// authenticated external host, a shared guest external host, or a local
// file sink, in that priority order. A step's failure falls through to the
// next rather than aborting the upload.
type Router struct {
	db     *gorm.DB
	cfg    config.HostingConfig
	client *externalHostClient
	local  *localSink
}

// New builds a Router.
func New(db *gorm.DB, cfg config.HostingConfig) *Router {
	return &Router{db: db, cfg: cfg, client: newExternalHostClient(cfg), local: newLocalSink(cfg)}
}

// Route uploads an image, trying the per-user host, then the guest host,
// then the local sink, and returns the outcome of whichever succeeded along
// with any earlier failures.
func (r *Router) Route(ctx context.Context, image []byte, userID string, opts UploadOptions) (Outcome, error) {
	var attempts []AttemptFailure

	if userID != "" {
		hosted, err := repo.GetHostedUser(ctx, r.db, userID)
		if err != nil {
			log.Warn().Err(err).Str("component", component).Msg("failed to look up hosted user credential")
		}
		if hosted != nil && hosted.PersonalAPIKey != "" {
			if opts.AlbumID == "" {
				opts.AlbumID = hosted.DefaultAlbumID
			}
			outcome, err := r.client.upload(ctx, hosted.PersonalAPIKey, image, filenameFor(userID), opts)
			if err == nil {
				outcome.Sink = SinkPerUser
				r.recordUpload(ctx, userID, outcome, false)
				return outcome, nil
			}
			attempts = append(attempts, AttemptFailure{Sink: SinkPerUser, Reason: err.Error()})
		}
	}

	if r.cfg.GuestAPIKey != "" {
		outcome, err := r.client.upload(ctx, r.cfg.GuestAPIKey, image, filenameFor(userID), opts)
		if err == nil {
			outcome.Sink = SinkGuest
			r.recordUpload(ctx, userID, outcome, false)
			outcome.Attempts = attempts
			return outcome, nil
		}
		attempts = append(attempts, AttemptFailure{Sink: SinkGuest, Reason: err.Error()})
	}

	if !r.cfg.LocalFallback {
		if len(attempts) == 0 {
			return Outcome{}, apperr.Configuration(component, "no hosting sink is configured and local fallback is disabled")
		}
		return Outcome{Attempts: attempts}, lastFailure(attempts)
	}

	outcome, err := r.local.upload(image, "png")
	if err != nil {
		attempts = append(attempts, AttemptFailure{Sink: SinkLocal, Reason: err.Error()})
		return Outcome{Attempts: attempts}, err
	}
	outcome.Attempts = attempts
	r.recordUpload(ctx, userID, outcome, false)
	return outcome, nil
}

// ServiceStatus reports whether one sink is configured and able to serve
// uploads right now.
type ServiceStatus struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

// Probe reports each sink's availability without performing an upload, the
// Go rendition of uploader.py::test_hosting_services: local storage is
// available when local fallback is enabled, and the guest host is reachable
// if an HTTP GET to its base URL succeeds (it reports "not configured" when
// the base URL or guest API key is missing). The per-user host is not
// probed and has no entry in the result.
func (r *Router) Probe(ctx context.Context) map[string]ServiceStatus {
	status := map[string]ServiceStatus{
		"local": {Available: r.cfg.LocalFallback, Message: "local storage"},
		"guest": {Available: false, Message: "not configured"},
	}
	if r.cfg.BaseURL != "" && r.cfg.GuestAPIKey != "" {
		if err := r.client.ping(ctx); err != nil {
			status["guest"] = ServiceStatus{Available: false, Message: err.Error()}
		} else {
			status["guest"] = ServiceStatus{Available: true, Message: "reachable"}
		}
	}
	return status
}

// Upload implements queue.Uploader, adapting Route's richer Outcome to the
// narrow shape the generation worker consumes.
func (r *Router) Upload(ctx context.Context, image []byte, userID string) (queue.UploadOutcome, error) {
	outcome, err := r.Route(ctx, image, userID, UploadOptions{})
	if err != nil {
		return queue.UploadOutcome{}, err
	}
	return queue.UploadOutcome{URL: outcome.URL, Sink: outcome.Sink}, nil
}

func (r *Router) recordUpload(ctx context.Context, userID string, outcome Outcome, nsfw bool) {
	rec := &domain.UploadRecord{
		ID: uuid.NewString(), UserID: userID, Sink: outcome.Sink, URL: outcome.URL,
		DeleteHash: outcome.DeleteHash, NSFW: nsfw,
	}
	if err := repo.RecordUpload(ctx, r.db, rec); err != nil {
		log.Warn().Err(err).Str("component", component).Msg("failed to record upload")
	}
}

func filenameFor(userID string) string {
	if userID == "" {
		return "sd_" + uuid.NewString() + ".png"
	}
	return userID + "_" + uuid.NewString() + ".png"
}

func lastFailure(attempts []AttemptFailure) error {
	if len(attempts) == 0 {
		return nil
	}
	last := attempts[len(attempts)-1]
	return &noSinkAvailableError{sink: last.Sink, reason: last.Reason}
}

type noSinkAvailableError struct {
	sink, reason string
}

func (e *noSinkAvailableError) Error() string {
	return "no sink available, last failure at " + e.sink + ": " + e.reason
}
