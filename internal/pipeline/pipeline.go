// Package pipeline runs one scheduled job end to end: topic discovery,
// script generation, media rendering, upload and publication, with the
// schedule's state machine driven to a terminal status.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/events"
	"github.com/jonesrussell/gopost/internal/keys"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
	"github.com/jonesrussell/gopost/internal/store"
)

// TopicDiscoverer returns candidate topics for a niche.
type TopicDiscoverer interface {
	Discover(ctx context.Context, niche string) ([]string, error)
}

// TopicSelector picks the first sufficiently novel candidate.
type TopicSelector interface {
	SelectUnique(ctx context.Context, niche string, candidates []string) (string, bool, error)
}

// ScriptGenerator produces structured scripts and follow-up comments.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, niche, topic string) (domain.Script, error)
	GenerateComment(ctx context.Context, title, caption, topic, appendURL string) (string, error)
}

// VoiceGenerator renders narration audio for a job.
type VoiceGenerator interface {
	GenerateVoiceover(ctx context.Context, text, jobID string) (string, error)
}

// ImageGenerator renders one scene image for a job.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, jobID string, sceneIdx int) (string, error)
}

// VideoAssembler renders the final video from scene images and audio,
// and burns title banners onto rendered media.
type VideoAssembler interface {
	AssembleVideo(ctx context.Context, jobID, audioPath string, imagePaths []string, scenes []domain.Scene) (string, error)
	AddTitleOverlay(ctx context.Context, videoPath, title string) (string, error)
	AddImageTitle(ctx context.Context, imagePath, title string) (string, error)
}

// Uploader pushes a rendered file to the hosting service.
type Uploader interface {
	Upload(ctx context.Context, path, userhash string) (string, error)
}

// Publisher publishes content to the social platform.
type Publisher interface {
	PublishVideo(ctx context.Context, page domain.Page, fileURL, description string) (string, error)
	PublishPhoto(ctx context.Context, page domain.Page, imageURL, caption string) (string, error)
	PublishFeed(ctx context.Context, page domain.Page, message string) (string, error)
	PublishComment(ctx context.Context, page domain.Page, objectID, message string) (string, error)
}

// AssetCleaner removes a job's transient media files.
type AssetCleaner interface {
	CleanupJob(jobID string) error
}

// Runner executes scheduled jobs. One Runner is shared by the scheduler
// and the manual-run API; runs themselves are dispatched sequentially by
// the scheduler.
type Runner struct {
	store   *store.Store
	keys    *keys.Service
	events  *events.Recorder
	metrics *metrics.Metrics
	logger  logger.Logger
	now     func() time.Time

	discoverer TopicDiscoverer
	selector   TopicSelector
	scripts    ScriptGenerator
	voices     VoiceGenerator
	images     ImageGenerator
	assembler  VideoAssembler
	uploader   Uploader
	publisher  Publisher
	assets     AssetCleaner

	// cloudflareAccountID backs config validation for image generation.
	cloudflareAccountID string
}

// Deps bundles the Runner's collaborators.
type Deps struct {
	Store   *store.Store
	Keys    *keys.Service
	Events  *events.Recorder
	Metrics *metrics.Metrics
	Logger  logger.Logger

	Discoverer TopicDiscoverer
	Selector   TopicSelector
	Scripts    ScriptGenerator
	Voices     VoiceGenerator
	Images     ImageGenerator
	Assembler  VideoAssembler
	Uploader   Uploader
	Publisher  Publisher
	Assets     AssetCleaner

	CloudflareAccountID string
}

// NewRunner creates a Runner from its dependencies.
func NewRunner(deps Deps) *Runner {
	return &Runner{
		store:               deps.Store,
		keys:                deps.Keys,
		events:              deps.Events,
		metrics:             deps.Metrics,
		logger:              deps.Logger,
		now:                 time.Now,
		discoverer:          deps.Discoverer,
		selector:            deps.Selector,
		scripts:             deps.Scripts,
		voices:              deps.Voices,
		images:              deps.Images,
		assembler:           deps.Assembler,
		uploader:            deps.Uploader,
		publisher:           deps.Publisher,
		assets:              deps.Assets,
		cloudflareAccountID: deps.CloudflareAccountID,
	}
}

// runStage executes one pipeline stage, recording its duration and
// outcome. Failures come back wrapped as StageError so the job-level
// handler knows which stage died.
func runStage[T any](ctx context.Context, r *Runner, ekind domain.EventKind, niche, stage string, fn func(context.Context) (T, error)) (T, error) {
	start := r.now()
	r.events.Info(ctx, ekind, stage+" started", niche)

	result, err := fn(ctx)
	elapsed := r.now().Sub(start)

	if err != nil {
		r.metrics.StageDuration.WithLabelValues(stage, "error").Observe(elapsed.Seconds())
		r.events.Error(ctx, ekind,
			fmt.Sprintf("%s failed after %dms: %s", stage, elapsed.Milliseconds(), domain.NormalizeError(err)),
			niche)
		return result, &domain.StageError{Stage: stage, Err: err}
	}

	r.metrics.StageDuration.WithLabelValues(stage, "ok").Observe(elapsed.Seconds())
	r.events.Success(ctx, ekind,
		fmt.Sprintf("%s completed in %dms", stage, elapsed.Milliseconds()),
		niche)
	return result, nil
}

// RunByID loads a schedule and runs it. Used by the manual-run API.
func (r *Runner) RunByID(ctx context.Context, kind domain.ContentKind, id string) error {
	schedules, err := store.Read[[]domain.Schedule](ctx, r.store, store.SchedulesKey(kind))
	if err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}
	for _, sched := range schedules {
		if sched.ID == id {
			return r.Run(ctx, sched)
		}
	}
	return fmt.Errorf("schedule %s not found", id)
}

// Run executes one job to a terminal status. The returned error is for
// the caller's log only; the failure is already recorded on the
// schedule and in the event log.
func (r *Runner) Run(ctx context.Context, sched domain.Schedule) error {
	ekind := domain.EventKindFor(sched.Kind)

	page, settings, err := r.prepare(ctx, sched)
	if err != nil {
		r.fail(ctx, sched, err)
		return err
	}

	defer func() {
		if cleanupErr := r.assets.CleanupJob(sched.ID); cleanupErr != nil {
			r.logger.Warn("asset cleanup failed",
				logger.String("schedule_id", sched.ID),
				logger.Error(cleanupErr))
		}
	}()

	topic, script, postURL, err := r.generateAndPublish(ctx, sched, page, settings)
	if err != nil {
		r.fail(ctx, sched, err)
		return err
	}

	if err := r.succeed(ctx, sched, topic, script, postURL); err != nil {
		r.logger.Error("failed to record job success",
			logger.String("schedule_id", sched.ID),
			logger.Error(err))
		return err
	}

	r.metrics.JobsTotal.WithLabelValues(string(sched.Kind), string(domain.StatusPosted)).Inc()
	r.events.Success(ctx, ekind,
		fmt.Sprintf("published %q for page %s", script.Title, page.Name),
		sched.Niche)
	return nil
}

// prepare validates configuration and moves the schedule to generating.
func (r *Runner) prepare(ctx context.Context, sched domain.Schedule) (domain.Page, domain.Settings, error) {
	started := r.now().UTC()
	err := r.updateSchedule(ctx, sched.Kind, sched.ID, func(s *domain.Schedule) {
		s.Status = domain.StatusGenerating
		s.StartedAt = &started
		s.ErrorMessage = ""
	})
	if err != nil {
		return domain.Page{}, domain.Settings{}, fmt.Errorf("mark generating: %w", err)
	}

	return r.validateRequiredConfig(ctx, sched)
}

// generateAndPublish runs the content stages and returns the selected
// topic, the generated script and the published object's URL.
func (r *Runner) generateAndPublish(ctx context.Context, sched domain.Schedule, page domain.Page, settings domain.Settings) (string, domain.Script, string, error) {
	ekind := domain.EventKindFor(sched.Kind)

	candidates, err := runStage(ctx, r, ekind, sched.Niche, "topic_discovery",
		func(ctx context.Context) ([]string, error) {
			return r.discoverer.Discover(ctx, sched.Niche)
		})
	if err != nil {
		return "", domain.Script{}, "", err
	}

	topic, err := runStage(ctx, r, ekind, sched.Niche, "topic_selection",
		func(ctx context.Context) (string, error) {
			selected, ok, selectErr := r.selector.SelectUnique(ctx, sched.Niche, candidates)
			if selectErr != nil {
				return "", selectErr
			}
			if !ok {
				return "", domain.ErrNoUniqueTopic
			}
			return selected, nil
		})
	if err != nil {
		return "", domain.Script{}, "", err
	}

	script, err := runStage(ctx, r, ekind, sched.Niche, "script_generation",
		func(ctx context.Context) (domain.Script, error) {
			generated, genErr := r.scripts.GenerateScript(ctx, sched.Niche, topic)
			if genErr != nil {
				return domain.Script{}, genErr
			}
			if len(generated.Scenes) == 0 {
				return domain.Script{}, fmt.Errorf("script has no scenes")
			}
			return generated, nil
		})
	if err != nil {
		return "", domain.Script{}, "", err
	}

	var postURL string
	if sched.Kind == domain.KindVideo {
		postURL, err = r.runVideoPath(ctx, sched, page, settings, topic, script)
	} else {
		postURL, err = r.runPostPath(ctx, sched, page, settings, topic, script)
	}
	if err != nil {
		return "", domain.Script{}, "", err
	}

	return topic, script, postURL, nil
}

// runVideoPath renders and publishes a video and returns its URL on the
// platform.
func (r *Runner) runVideoPath(ctx context.Context, sched domain.Schedule, page domain.Page, settings domain.Settings, topic string, script domain.Script) (string, error) {
	ekind := domain.EventKindFor(sched.Kind)

	audioPath, err := runStage(ctx, r, ekind, sched.Niche, "voiceover",
		func(ctx context.Context) (string, error) {
			return r.voices.GenerateVoiceover(ctx, script.Script, sched.ID)
		})
	if err != nil {
		return "", err
	}

	imagePaths, err := runStage(ctx, r, ekind, sched.Niche, "image_generation",
		func(ctx context.Context) ([]string, error) {
			return r.generateSceneImages(ctx, sched.ID, script.Scenes)
		})
	if err != nil {
		return "", err
	}

	videoPath, err := runStage(ctx, r, ekind, sched.Niche, "video_assembly",
		func(ctx context.Context) (string, error) {
			assembled, asmErr := r.assembler.AssembleVideo(ctx, sched.ID, audioPath, imagePaths, script.Scenes)
			if asmErr != nil {
				return "", asmErr
			}
			return r.assembler.AddTitleOverlay(ctx, assembled, script.Title)
		})
	if err != nil {
		return "", err
	}

	fileURL, err := runStage(ctx, r, ekind, sched.Niche, "upload",
		func(ctx context.Context) (string, error) {
			return r.uploader.Upload(ctx, videoPath, settings.CatboxHash)
		})
	if err != nil {
		return "", err
	}

	videoID, err := runStage(ctx, r, ekind, sched.Niche, "publish",
		func(ctx context.Context) (string, error) {
			return r.publisher.PublishVideo(ctx, page, fileURL, composeDescription(script))
		})
	if err != nil {
		return "", err
	}

	r.publishComment(ctx, sched, page, topic, script, videoID, settings)
	return facebookURL(videoID), nil
}

// runPostPath renders and publishes an image post and returns its URL on
// the platform. A failed photo publish degrades to a plain feed post so
// the job still lands.
func (r *Runner) runPostPath(ctx context.Context, sched domain.Schedule, page domain.Page, settings domain.Settings, topic string, script domain.Script) (string, error) {
	ekind := domain.EventKindFor(sched.Kind)

	imagePath, err := runStage(ctx, r, ekind, sched.Niche, "image_generation",
		func(ctx context.Context) (string, error) {
			path, genErr := r.images.GenerateImage(ctx, script.Scenes[0].ImagePrompt, sched.ID, 0)
			if genErr != nil {
				return "", genErr
			}
			return r.assembler.AddImageTitle(ctx, path, script.Title)
		})
	if err != nil {
		return "", err
	}

	imageURL, err := runStage(ctx, r, ekind, sched.Niche, "upload",
		func(ctx context.Context) (string, error) {
			return r.uploader.Upload(ctx, imagePath, settings.CatboxHash)
		})
	if err != nil {
		return "", err
	}

	postID, err := runStage(ctx, r, ekind, sched.Niche, "publish",
		func(ctx context.Context) (string, error) {
			id, pubErr := r.publisher.PublishPhoto(ctx, page, imageURL, composeDescription(script))
			if pubErr == nil {
				return id, nil
			}
			r.logger.Warn("photo publish failed; posting to feed instead",
				logger.String("schedule_id", sched.ID),
				logger.Error(pubErr))
			return r.publisher.PublishFeed(ctx, page, composeDescription(script))
		})
	if err != nil {
		return "", err
	}

	r.publishComment(ctx, sched, page, topic, script, postID, settings)
	return facebookURL(postID), nil
}

// generateSceneImages renders every scene image sequentially. A single
// scene failing fails the whole stage; the generator already degrades
// through its own fallbacks before erroring.
func (r *Runner) generateSceneImages(ctx context.Context, jobID string, scenes []domain.Scene) ([]string, error) {
	paths := make([]string, 0, len(scenes))
	for i, scene := range scenes {
		path, err := r.images.GenerateImage(ctx, scene.ImagePrompt, jobID, i)
		if err != nil {
			return nil, fmt.Errorf("scene %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// publishComment posts the follow-up comment under a fresh publication.
// Comment failures never fail the job; the content is already live.
func (r *Runner) publishComment(ctx context.Context, sched domain.Schedule, page domain.Page, topic string, script domain.Script, objectID string, settings domain.Settings) {
	comment, err := r.scripts.GenerateComment(ctx, script.Title, script.Caption, topic, settings.FacebookCommentURL)
	if err != nil {
		r.logger.Warn("comment generation failed",
			logger.String("schedule_id", sched.ID),
			logger.Error(err))
		return
	}

	if _, err := r.publisher.PublishComment(ctx, page, objectID, comment); err != nil {
		r.logger.Warn("comment publish failed",
			logger.String("schedule_id", sched.ID),
			logger.Error(err))
	}
}

// succeed records the published item, moves the schedule to posted and
// creates the next day's sibling for daily schedules.
func (r *Runner) succeed(ctx context.Context, sched domain.Schedule, topic string, script domain.Script, postURL string) error {
	posted := r.now().UTC()

	item := domain.PublishedItem{
		ID:          sched.ID,
		Kind:        sched.Kind,
		Title:       script.Title,
		Niche:       sched.Niche,
		PostedAt:    posted,
		Status:      "published",
		Caption:     script.Caption,
		Hashtags:    script.Hashtags,
		FacebookURL: postURL,
	}
	if err := store.Append(ctx, r.store, store.PublishedKey(sched.Kind), item); err != nil {
		return fmt.Errorf("record published item: %w", err)
	}

	return store.Update(ctx, r.store, store.SchedulesKey(sched.Kind), func(schedules []domain.Schedule) ([]domain.Schedule, error) {
		for i := range schedules {
			if schedules[i].ID != sched.ID {
				continue
			}
			schedules[i].Status = domain.StatusPosted
			schedules[i].PublishedAt = &posted
			schedules[i].FailedAt = nil
			schedules[i].ErrorMessage = ""
			schedules[i].LastTopic = topic
			schedules[i].GeneratedTitle = script.Title

			if sched.IsDaily {
				sibling := domain.Schedule{
					ID:          uuid.NewString(),
					Kind:        sched.Kind,
					Niche:       sched.Niche,
					PageID:      sched.PageID,
					PageName:    sched.PageName,
					ScheduledAt: sched.NextDailyOccurrence(posted),
					IsDaily:     true,
					Status:      domain.StatusPending,
					CreatedAt:   posted,
				}
				schedules = append([]domain.Schedule{sibling}, schedules...)
			}
			return schedules, nil
		}
		return schedules, fmt.Errorf("schedule %s disappeared", sched.ID)
	})
}

// fail moves the schedule to failed with a normalized error message.
// Failed daily schedules do not spawn a sibling; the operator decides
// whether to retry.
func (r *Runner) fail(ctx context.Context, sched domain.Schedule, cause error) {
	failed := r.now().UTC()
	message := domain.NormalizeError(cause)

	err := r.updateSchedule(ctx, sched.Kind, sched.ID, func(s *domain.Schedule) {
		s.Status = domain.StatusFailed
		s.FailedAt = &failed
		s.ErrorMessage = message
	})
	if err != nil {
		r.logger.Error("failed to record job failure",
			logger.String("schedule_id", sched.ID),
			logger.Error(err))
	}

	r.metrics.JobsTotal.WithLabelValues(string(sched.Kind), string(domain.StatusFailed)).Inc()
	r.events.Error(ctx, domain.EventKindFor(sched.Kind),
		fmt.Sprintf("job %s failed: %s", sched.ID, message),
		sched.Niche)
}

// updateSchedule applies fn to the schedule with the given ID.
func (r *Runner) updateSchedule(ctx context.Context, kind domain.ContentKind, id string, fn func(*domain.Schedule)) error {
	return store.Update(ctx, r.store, store.SchedulesKey(kind), func(schedules []domain.Schedule) ([]domain.Schedule, error) {
		for i := range schedules {
			if schedules[i].ID == id {
				fn(&schedules[i])
				return schedules, nil
			}
		}
		return schedules, fmt.Errorf("schedule %s not found", id)
	})
}

// composeDescription joins the caption and hashtags for publication.
func composeDescription(script domain.Script) string {
	caption := strings.TrimSpace(script.Caption)
	hashtags := strings.TrimSpace(script.Hashtags)
	switch {
	case caption == "":
		return hashtags
	case hashtags == "":
		return caption
	default:
		return caption + "\n\n" + hashtags
	}
}

// facebookURL renders the public URL for a published object ID.
func facebookURL(objectID string) string {
	return "https://www.facebook.com/" + objectID
}
