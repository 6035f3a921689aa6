package admission

import (
	"context"
	"errors"
	"testing"

	"habersin/internal/contentfilter"
	"habersin/internal/models"
	"habersin/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(status models.PostStatus) *Gate {
	return NewGate(
		contentfilter.NewDefaultProfanityMatcher(),
		contentfilter.NewImageValidator(contentfilter.LimitsWithMaxBytes(10*contentfilter.MiB)),
		status,
	)
}

func skyImage(t *testing.T, name string) contentfilter.ImageFile {
	return contentfilter.NewImageFile(name, "image/jpeg", testutil.SolidJPEG(t, 24, 24, testutil.Sky))
}

func skinImage(t *testing.T, name string) contentfilter.ImageFile {
	return contentfilter.NewImageFile(name, "image/png", testutil.SolidPNG(t, 24, 24, testutil.SkinTone))
}

func validDraft(t *testing.T) Draft {
	return Draft{
		Title:      "Bridge repairs finished",
		Content:    "Crews reopened the river bridge after three weeks of work.",
		Category:   "Social",
		Images:     []contentfilter.ImageFile{skyImage(t, "bridge.jpg")},
		Consent:    true,
		AuthorID:   "user-1",
		AuthorName: "Deniz",
	}
}

func assertRejected(t *testing.T, err error, msg string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeValidation, appErr.Code)
	assert.Equal(t, msg, appErr.Message)
}

func TestGate_Admit_ValidDraft(t *testing.T) {
	t.Parallel()

	g := newTestGate(models.PostStatusPending)
	d := validDraft(t)
	d.Images = append(d.Images, skyImage(t, "second.jpg"))

	got, err := g.Admit(context.Background(), d)
	require.NoError(t, err)
	require.NotNil(t, got)

	p := got.Post
	assert.Equal(t, "BRIDGE REPAIRS FINISHED", p.Title)
	assert.Equal(t, d.Content, p.Content)
	assert.Equal(t, models.PostStatusPending, p.Status)
	assert.Zero(t, p.Likes)
	assert.Zero(t, p.Dislikes)
	assert.Zero(t, p.Views)
	assert.Equal(t, "Deniz", p.AuthorName)
	assert.Equal(t, "user-1", p.AuthorID)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, []string{
		"bridge", "repairs", "finished", "crews", "reopened", "the", "river",
		"after", "three", "weeks", "work.", "social",
	}, p.SearchTokens)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "bridge.jpg", got.Images[0].Filename)
	assert.Equal(t, "second.jpg", got.Images[1].Filename)
}

func TestGate_Admit_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(t *testing.T, d *Draft)
		msg    string
	}{
		{
			name: "no consent wins over every other problem",
			mutate: func(_ *testing.T, d *Draft) {
				d.Consent = false
				d.Images = nil
				d.Title = "sh1t"
				d.Category = ""
			},
			msg: MsgConsentRequired,
		},
		{
			name:   "zero images",
			mutate: func(_ *testing.T, d *Draft) { d.Images = nil },
			msg:    MsgImageCount,
		},
		{
			name: "four images",
			mutate: func(t *testing.T, d *Draft) {
				for i := 0; i < 3; i++ {
					d.Images = append(d.Images, skyImage(t, "extra.jpg"))
				}
			},
			msg: MsgImageCount,
		},
		{
			name:   "profane title checked before its length",
			mutate: func(_ *testing.T, d *Draft) { d.Title = "sh1t" },
			msg:    MsgTitleProfanity,
		},
		{
			name:   "spaced profanity in content",
			mutate: func(_ *testing.T, d *Draft) { d.Content = "Crews reopened the bridge, f u c k yes they did." },
			msg:    MsgContentProfanity,
		},
		{
			name:   "short title after trimming",
			mutate: func(_ *testing.T, d *Draft) { d.Title = "  Kısa   " },
			msg:    MsgTitleTooShort,
		},
		{
			name:   "short content",
			mutate: func(_ *testing.T, d *Draft) { d.Content = "Çok kısa metin" },
			msg:    MsgContentTooShort,
		},
		{
			name:   "unknown category",
			mutate: func(_ *testing.T, d *Draft) { d.Category = "Gossip" },
			msg:    MsgCategoryRequired,
		},
		{
			name: "one bad image aborts the submission",
			mutate: func(t *testing.T, d *Draft) {
				d.Images = append(d.Images, skinImage(t, "skin.png"), skyImage(t, "third.jpg"))
			},
			msg: "Image 2 (skin.png): " + contentfilter.MsgInappropriate,
		},
		{
			name: "unsupported image type",
			mutate: func(t *testing.T, d *Draft) {
				d.Images = []contentfilter.ImageFile{
					contentfilter.NewImageFile("anim.webp", "image/webp", []byte("RIFF")),
				}
			},
			msg: "Image 1 (anim.webp): " + contentfilter.MsgUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := validDraft(t)
			tt.mutate(t, &d)

			got, err := newTestGate(models.PostStatusPending).Admit(context.Background(), d)
			assert.Nil(t, got)
			assertRejected(t, err, tt.msg)
		})
	}
}

func TestGate_Admit_AuthorName(t *testing.T) {
	t.Parallel()

	g := newTestGate(models.PostStatusPending)

	d := validDraft(t)
	d.Anonymous = true
	got, err := g.Admit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, models.AnonymousAuthor, got.Post.AuthorName)
	assert.True(t, got.Post.IsAnonymous)
	assert.Equal(t, "user-1", got.Post.AuthorID)

	d = validDraft(t)
	d.AuthorName = "   "
	got, err = g.Admit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, models.UnnamedAuthor, got.Post.AuthorName)
}

func TestGate_Admit_ConfiguredStatus(t *testing.T) {
	t.Parallel()

	got, err := newTestGate(models.PostStatusActive).Admit(context.Background(), validDraft(t))
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusActive, got.Post.Status)

	got, err = newTestGate(models.PostStatus("bogus")).Admit(context.Background(), validDraft(t))
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPending, got.Post.Status)
}

func TestGate_Admit_ReevaluatesResubmission(t *testing.T) {
	t.Parallel()

	g := newTestGate(models.PostStatusPending)
	d := validDraft(t)
	d.Images = []contentfilter.ImageFile{skinImage(t, "skin.png")}

	for i := 0; i < 2; i++ {
		_, err := g.Admit(context.Background(), d)
		assertRejected(t, err, "Image 1 (skin.png): "+contentfilter.MsgInappropriate)
	}

	d.Images = []contentfilter.ImageFile{skyImage(t, "sky.jpg")}
	for i := 0; i < 2; i++ {
		got, err := g.Admit(context.Background(), d)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusPending, got.Post.Status)
	}
}

func TestSearchTokens(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"hello", "world", "çevre"}, SearchTokens("Hello  WORLD", "hello an ox", "Çevre"))
	assert.Empty(t, SearchTokens("a an", ""))
}
