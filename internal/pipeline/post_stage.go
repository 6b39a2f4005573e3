package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"scenecast/internal/config"
	"scenecast/internal/logging"
	"scenecast/internal/overlay"
	"scenecast/internal/posting"
	"scenecast/internal/scenes"
	"scenecast/internal/services"
	"scenecast/internal/stage"
)

const sceneVideoMimeType = "video/mp4"

// PostStage publishes a rendered scene video and threads each choice as a
// numbered reply under the scene post.
type PostStage struct {
	cfg     *config.Config
	store   *scenes.Store
	service posting.Service
	logger  *slog.Logger
	now     func() time.Time
}

// NewPostStage wires the post stage from its collaborators.
func NewPostStage(cfg *config.Config, store *scenes.Store, service posting.Service, logger *slog.Logger) *PostStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PostStage{
		cfg:     cfg,
		store:   store,
		service: service,
		logger:  logger.With(logging.String(logging.FieldComponent, "post-stage")),
		now:     time.Now,
	}
}

// Prepare validates that the rendered artifact is still on disk.
func (s *PostStage) Prepare(ctx context.Context, item *scenes.Item) error {
	if !fileExists(item.RenderedFile) {
		return services.Wrap(services.ErrValidation, "post", "prepare",
			fmt.Sprintf("rendered video missing: %s", item.RenderedFile), nil)
	}
	item.SetProgress("Posting", "Post started", 0)
	return nil
}

// Execute uploads the video, creates the scene post, and replies with the
// scene's choices when reply posting is enabled.
func (s *PostStage) Execute(ctx context.Context, item *scenes.Item) error {
	video, err := os.ReadFile(item.RenderedFile)
	if err != nil {
		return services.Wrap(services.ErrValidation, "post", "read video", item.RenderedFile, err)
	}

	item.SetProgress("Posting", "Uploading video", 10)
	s.persistProgress(ctx, item)

	blob, err := s.service.UploadBlob(ctx, video, sceneVideoMimeType)
	if err != nil {
		return err
	}

	sceneText, choices := overlay.SplitScene(item.SceneText)
	item.SetProgress("Posting", "Creating scene post", 60)
	s.persistProgress(ctx, item)

	ref, err := s.service.CreatePost(ctx, posting.Post{
		Text:      postText(item.Title, sceneText),
		CreatedAt: s.now().UTC(),
		Embed: &posting.Embed{
			Type:  "app.bsky.embed.video",
			Video: blob,
		},
	})
	if err != nil {
		return err
	}
	item.PostURI = ref.URI
	item.PostCID = ref.CID

	if s.cfg.Posting.ReplyChoices && len(choices) > 0 {
		if err := s.replyChoices(ctx, item, ref, choices); err != nil {
			return err
		}
	}

	item.SetProgressComplete("Posting", "Scene posted")
	s.logger.Info("scene posted",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("post_uri", ref.URI),
		logging.Int("choices", len(choices)))
	return nil
}

// HealthCheck verifies credentials against the posting service.
func (s *PostStage) HealthCheck(ctx context.Context) stage.Health {
	const name = "post"
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := s.service.GetProfile(checkCtx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}

// replyChoices posts choices in order, each threaded under the scene post.
// Replies share the scene post as root so readers see a flat choice list.
func (s *PostStage) replyChoices(ctx context.Context, item *scenes.Item, root posting.PostRef, choices []string) error {
	for i, choice := range choices {
		text := fmt.Sprintf("%d. %s", i+1, strings.TrimSpace(choice))
		if _, err := s.service.CreatePost(ctx, posting.Post{
			Text:      text,
			CreatedAt: s.now().UTC(),
			Reply: &posting.ReplyRefs{
				Root:   root,
				Parent: root,
			},
		}); err != nil {
			return services.Wrap(services.ErrTransient, "post", "reply choice",
				fmt.Sprintf("choice %d failed after scene post %s", i+1, root.URI), err)
		}
		item.SetProgress("Posting", fmt.Sprintf("Posted choice %d of %d", i+1, len(choices)),
			60+float64(i+1)*40/float64(len(choices)+1))
		s.persistProgress(ctx, item)
	}
	return nil
}

func (s *PostStage) persistProgress(ctx context.Context, item *scenes.Item) {
	if err := s.store.UpdateProgress(ctx, item.ID, item.ProgressStage, item.ProgressMessage, item.ProgressPercent); err != nil {
		s.logger.Debug("progress update failed", logging.Error(err))
	}
}

func postText(title, sceneText string) string {
	title = strings.TrimSpace(title)
	sceneText = strings.TrimSpace(sceneText)
	switch {
	case title == "":
		return sceneText
	case sceneText == "":
		return title
	default:
		return title + "\n\n" + sceneText
	}
}
