package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"scenecast/internal/posting"
	"scenecast/internal/scenes"
	"scenecast/internal/services"
	"scenecast/internal/testsupport"
)

type fakePostingService struct {
	uploads    int
	posts      []posting.Post
	uploadErr  error
	postErr    error
	profileErr error
}

func (f *fakePostingService) UploadBlob(ctx context.Context, data []byte, mimeType string) (posting.BlobRef, error) {
	f.uploads++
	if f.uploadErr != nil {
		return posting.BlobRef{}, f.uploadErr
	}
	return posting.BlobRef{
		Type:     "blob",
		Ref:      posting.Link{Link: "bafyvideo"},
		MimeType: mimeType,
		Size:     int64(len(data)),
	}, nil
}

func (f *fakePostingService) GetPostThread(ctx context.Context, uri string, depth int) (posting.Thread, error) {
	return posting.Thread{URI: uri}, nil
}

func (f *fakePostingService) CreatePost(ctx context.Context, post posting.Post) (posting.PostRef, error) {
	if f.postErr != nil {
		return posting.PostRef{}, f.postErr
	}
	f.posts = append(f.posts, post)
	n := len(f.posts)
	return posting.PostRef{
		URI: fmt.Sprintf("at://did:plc:test/app.bsky.feed.post/%d", n),
		CID: fmt.Sprintf("bafypost%d", n),
	}, nil
}

func (f *fakePostingService) GetProfile(ctx context.Context) (posting.Profile, error) {
	if f.profileErr != nil {
		return posting.Profile{}, f.profileErr
	}
	return posting.Profile{DID: "did:plc:test", Handle: "teller.example.com"}, nil
}

func newPostFixture(t *testing.T, service posting.Service) (*PostStage, *scenes.Store, *scenes.Item) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Posting.ReplyChoices = true
	store := testsupport.MustOpenStore(t, cfg)

	item, err := store.NewScene(context.Background(), "The Cave",
		"You wake in a cave.\n---\nGo left\nGo right", "/audio/cave.mp3", "")
	if err != nil {
		t.Fatal(err)
	}
	item.Status = scenes.StatusRendered
	item.RenderedFile = filepath.Join(cfg.Paths.OutputDir, "scene.mp4")
	testsupport.WriteFile(t, item.RenderedFile, []byte("encoded-video"))
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatal(err)
	}
	return NewPostStage(cfg, store, service, nil), store, item
}

func TestPostStagePublishesSceneAndChoices(t *testing.T) {
	service := &fakePostingService{}
	stage, _, item := newPostFixture(t, service)
	ctx := context.Background()

	if err := stage.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if err := stage.Execute(ctx, item); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if service.uploads != 1 {
		t.Errorf("uploads = %d, want 1", service.uploads)
	}
	if len(service.posts) != 3 {
		t.Fatalf("posts = %d, want scene plus 2 choices", len(service.posts))
	}

	scene := service.posts[0]
	if !strings.Contains(scene.Text, "The Cave") || !strings.Contains(scene.Text, "You wake in a cave.") {
		t.Errorf("scene post text = %q", scene.Text)
	}
	if strings.Contains(scene.Text, "Go left") {
		t.Error("choices must not appear in the scene post body")
	}
	if scene.Embed == nil || scene.Embed.Video.Ref.Link != "bafyvideo" {
		t.Error("scene post must embed the uploaded video")
	}

	for i, want := range []string{"1. Go left", "2. Go right"} {
		reply := service.posts[i+1]
		if reply.Text != want {
			t.Errorf("choice %d text = %q, want %q", i+1, reply.Text, want)
		}
		if reply.Reply == nil || reply.Reply.Root.URI != item.PostURI {
			t.Errorf("choice %d must reference the scene post as root", i+1)
		}
		if reply.Reply.Root != reply.Reply.Parent {
			t.Errorf("choice %d must thread directly under the scene post", i+1)
		}
	}

	if item.PostURI == "" || item.PostCID == "" {
		t.Errorf("post refs not recorded: uri=%q cid=%q", item.PostURI, item.PostCID)
	}
}

func TestPostStageSkipsChoicesWhenDisabled(t *testing.T) {
	service := &fakePostingService{}
	stage, _, item := newPostFixture(t, service)
	stage.cfg.Posting.ReplyChoices = false

	if err := stage.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(service.posts) != 1 {
		t.Fatalf("posts = %d, want only the scene post", len(service.posts))
	}
}

func TestPostStagePrepareMissingVideo(t *testing.T) {
	stage, _, item := newPostFixture(t, &fakePostingService{})
	item.RenderedFile = "/nope/missing.mp4"

	err := stage.Prepare(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Prepare() error = %v, want ErrValidation", err)
	}
}

func TestPostStageUploadFailurePropagates(t *testing.T) {
	service := &fakePostingService{
		uploadErr: services.Wrap(services.ErrTransient, "posting", "upload_blob", "service unavailable", nil),
	}
	stage, _, item := newPostFixture(t, service)

	err := stage.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("Execute() error = %v, want ErrTransient", err)
	}
	if item.PostURI != "" {
		t.Error("failed post must not record a post uri")
	}
}

func TestPostStageHealthCheck(t *testing.T) {
	healthy := &fakePostingService{}
	stage, _, _ := newPostFixture(t, healthy)
	if health := stage.HealthCheck(context.Background()); !health.Ready {
		t.Errorf("healthy service reported %+v", health)
	}

	broken := &fakePostingService{
		profileErr: services.Wrap(services.ErrConfiguration, "posting", "create_session", "authentication rejected", nil),
	}
	stage, _, _ = newPostFixture(t, broken)
	if health := stage.HealthCheck(context.Background()); health.Ready {
		t.Error("failing credentials must report unhealthy")
	}
}
