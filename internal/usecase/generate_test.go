package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-video-generator/internal/config"
	"github.com/fairyhunter13/ai-video-generator/internal/domain"
	"github.com/fairyhunter13/ai-video-generator/internal/usecase"
)

func newGenerate(repo *stubJobRepo, pub *stubPublisher) usecase.GenerateService {
	return usecase.NewGenerateService(repo, pub, config.BuiltinRenderDefaults())
}

func TestGenerate_MinimalRequestFillsDefaults(t *testing.T) {
	t.Parallel()
	repo := &stubJobRepo{}
	pub := &stubPublisher{}
	svc := newGenerate(repo, pub)

	id, err := svc.Generate(context.Background(), "u1", usecase.GenerateInput{})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)

	require.Len(t, repo.created, 1)
	j := repo.created[0]
	assert.Equal(t, domain.JobPending, j.Status)
	assert.Equal(t, "u1", j.UserID)
	assert.Equal(t, domain.VoiceModeTTS, j.Request.VoiceMode)
	assert.NotEmpty(t, j.Request.ScriptText)
	assert.Equal(t, "avatar_default", j.Request.AvatarID)
	assert.Equal(t, "9:16", j.Request.AspectRatio)
	assert.True(t, j.Request.CaptionsEnabled)

	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.JobPending, pub.events[0].To)
}

func TestGenerate_ExplicitFieldsWin(t *testing.T) {
	t.Parallel()
	repo := &stubJobRepo{}
	svc := newGenerate(repo, &stubPublisher{})

	off := false
	_, err := svc.Generate(context.Background(), "u1", usecase.GenerateInput{
		ScriptText:      "custom script",
		AvatarID:        "avatar_alt",
		AspectRatio:     "16:9",
		CaptionsEnabled: &off,
	})
	require.NoError(t, err)
	j := repo.created[0]
	assert.Equal(t, "custom script", j.Request.ScriptText)
	assert.Equal(t, "avatar_alt", j.Request.AvatarID)
	assert.Equal(t, "16:9", j.Request.AspectRatio)
	assert.False(t, j.Request.CaptionsEnabled)
}

func TestGenerate_UserAudioRequiresAudioURL(t *testing.T) {
	t.Parallel()
	svc := newGenerate(&stubJobRepo{}, &stubPublisher{})

	_, err := svc.Generate(context.Background(), "u1", usecase.GenerateInput{VoiceMode: domain.VoiceModeUserAudio})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestGenerate_UserAudioWithURL(t *testing.T) {
	t.Parallel()
	repo := &stubJobRepo{}
	svc := newGenerate(repo, &stubPublisher{})

	_, err := svc.Generate(context.Background(), "u1", usecase.GenerateInput{
		VoiceMode: domain.VoiceModeUserAudio,
		AudioURL:  "https://audio/1.mp3",
	})
	require.NoError(t, err)
	j := repo.created[0]
	assert.Equal(t, "https://audio/1.mp3", j.Request.AudioURL)
	// The default script must not leak into an audio-driven request.
	assert.Empty(t, j.Request.ScriptText)
}

func TestGenerate_BadAspectRatio(t *testing.T) {
	t.Parallel()
	svc := newGenerate(&stubJobRepo{}, &stubPublisher{})

	_, err := svc.Generate(context.Background(), "u1", usecase.GenerateInput{AspectRatio: "4:3"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestGenerate_MissingUser(t *testing.T) {
	t.Parallel()
	svc := newGenerate(&stubJobRepo{}, &stubPublisher{})

	_, err := svc.Generate(context.Background(), "", usecase.GenerateInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestGenerate_PublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	repo := &stubJobRepo{}
	pub := &stubPublisher{err: assert.AnError}
	svc := newGenerate(repo, pub)

	id, err := svc.Generate(context.Background(), "u1", usecase.GenerateInput{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestGenerate_StoreErrorBubbles(t *testing.T) {
	t.Parallel()
	svc := newGenerate(&stubJobRepo{err: assert.AnError}, &stubPublisher{})

	_, err := svc.Generate(context.Background(), "u1", usecase.GenerateInput{})
	require.Error(t, err)
}
