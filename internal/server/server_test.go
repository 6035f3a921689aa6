package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"habersin/internal/admission"
	"habersin/internal/config"
	"habersin/internal/contentfilter"
	"habersin/internal/middleware"
	"habersin/internal/models"
	"habersin/internal/repository"
	"habersin/internal/service"
	"habersin/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "server-test-secret-0123456789abcdef0123"

func testConfig() *config.Config {
	return &config.Config{
		Env:                     "test",
		Port:                    "0",
		JWTSecret:               testSecret,
		DefaultPostStatus:       "pending",
		SubmissionMaxImageBytes: 10 * contentfilter.MiB,
		EditMaxImageBytes:       5 * contentfilter.MiB,
		ProfileMaxImageBytes:    20 * contentfilter.MiB,
		MaxImageDimension:       contentfilter.DefaultMaxDimension,
		SkinRatioThreshold:      contentfilter.DefaultSkinRatioThreshold,
		StoreRetryAttempts:      3,
		StoreRetryDelay:         time.Millisecond,
		RateLimitSubmissions:    10,
		RateLimitComments:       30,
		RateLimitWindow:         time.Minute,
	}
}

func TestMain(m *testing.M) {
	middleware.InitMiddleware(testConfig())
	os.Exit(m.Run())
}

type harness struct {
	app   *fiber.App
	store *repository.Store
	blobs *testutil.MemoryBlobs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	blobs := testutil.NewMemoryBlobs()
	s := NewServerWithDeps(testConfig(), Deps{DB: db, Blobs: blobs})
	return &harness{app: s.App(), store: repository.NewStore(db), blobs: blobs}
}

func (h *harness) addUser(t *testing.T, id, name string, moderator bool) {
	t.Helper()
	require.NoError(t, h.store.Users().Create(context.Background(), &models.User{ID: id, DisplayName: name, IsModerator: moderator}))
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func (h *harness) do(t *testing.T, req *http.Request, userID string) (int, []byte) {
	t.Helper()
	if userID != "" {
		req.Header.Set("Authorization", bearer(t, userID))
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func (h *harness) get(t *testing.T, path, userID string) (int, []byte) {
	return h.do(t, httptest.NewRequest(http.MethodGet, path, nil), userID)
}

func (h *harness) sendJSON(t *testing.T, method, path, userID string, payload any) (int, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	return h.do(t, req, userID)
}

type upload struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func skyUpload(t *testing.T, field, name string) upload {
	return upload{field: field, filename: name, contentType: "image/jpeg", data: testutil.SolidJPEG(t, 24, 24, testutil.Sky)}
}

func (h *harness) sendMultipart(t *testing.T, method, path, userID string, fields map[string]string, files ...upload) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		hdr.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return h.do(t, req, userID)
}

func submissionFields() map[string]string {
	return map[string]string{
		"title":    "Bridge repairs finished",
		"content":  "Crews reopened the river bridge after three weeks of work.",
		"category": "Social",
		"consent":  "true",
	}
}

func (h *harness) submit(t *testing.T, authorID string) models.Post {
	t.Helper()
	status, body := h.sendMultipart(t, http.MethodPost, "/api/posts", authorID, submissionFields(), skyUpload(t, "images", "bridge.jpg"))
	require.Equal(t, http.StatusCreated, status, string(body))
	return decode[models.Post](t, body)
}

func (h *harness) approve(t *testing.T, postID, moderatorID string) {
	t.Helper()
	status, body := h.sendJSON(t, http.MethodPost, "/api/moderation/posts/"+postID, moderatorID, fiber.Map{"decision": "approved"})
	require.Equal(t, http.StatusOK, status, string(body))
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func errorCode(t *testing.T, body []byte) string {
	return decode[models.ErrorResponse](t, body).Code
}

func TestHealthAndCategories(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	status, body := h.get(t, "/health/live", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", decode[map[string]any](t, body)["status"])

	status, body = h.get(t, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	ready := decode[map[string]any](t, body)
	assert.Equal(t, "degraded", ready["status"], "redis is optional")

	status, body = h.get(t, "/api/categories", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.Categories, decode[[]string](t, body))

	status, _ = h.get(t, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreatePost(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.addUser(t, "author-1", "Deniz", false)

	t.Run("requires sign in", func(t *testing.T) {
		status, body := h.sendMultipart(t, http.MethodPost, "/api/posts", "", submissionFields(), skyUpload(t, "images", "a.jpg"))
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, models.CodeUnauthorized, errorCode(t, body))
	})

	t.Run("rejected drafts write nothing", func(t *testing.T) {
		fields := submissionFields()
		delete(fields, "consent")
		status, body := h.sendMultipart(t, http.MethodPost, "/api/posts", "author-1", fields, skyUpload(t, "images", "a.jpg"))
		assert.Equal(t, http.StatusBadRequest, status)
		resp := decode[models.ErrorResponse](t, body)
		assert.Equal(t, admission.MsgConsentRequired, resp.Error)
		assert.Equal(t, 0, h.blobs.Puts())
	})

	t.Run("no images", func(t *testing.T) {
		status, body := h.sendMultipart(t, http.MethodPost, "/api/posts", "author-1", submissionFields())
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, admission.MsgImageCount, decode[models.ErrorResponse](t, body).Error)
	})

	t.Run("admitted", func(t *testing.T) {
		post := h.submit(t, "author-1")
		assert.Equal(t, models.PostStatusPending, post.Status)
		assert.Equal(t, "BRIDGE REPAIRS FINISHED", post.Title)
		assert.Equal(t, "Deniz", post.AuthorName)
		assert.Len(t, post.Images, 1)
		assert.Len(t, post.Thumbnails, 1)
		assert.Equal(t, 2, h.blobs.Puts())
	})
}

func TestModerationFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.addUser(t, "author-1", "Deniz", false)
	h.addUser(t, "reader-1", "Mert", false)
	h.addUser(t, "mod-1", "Ayla", true)

	post := h.submit(t, "author-1")
	path := "/api/posts/" + post.ID

	status, body := h.get(t, "/api/posts", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[repository.Page[models.Post]](t, body).Items)

	status, _ = h.get(t, path, "reader-1")
	assert.Equal(t, http.StatusNotFound, status, "pending posts are hidden from readers")
	status, _ = h.get(t, path, "author-1")
	assert.Equal(t, http.StatusOK, status)

	status, body = h.get(t, "/api/moderation/posts", "reader-1")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, errorCode(t, body))

	status, body = h.get(t, "/api/moderation/posts", "mod-1")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Post](t, body), 1)

	decide := "/api/moderation/posts/" + post.ID
	status, _ = h.sendJSON(t, http.MethodPost, decide, "reader-1", fiber.Map{"decision": "approved"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = h.sendJSON(t, http.MethodPost, decide, "mod-1", fiber.Map{"decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, service.MsgInvalidDecision, decode[models.ErrorResponse](t, body).Error)

	status, body = h.sendJSON(t, http.MethodPost, decide, "mod-1", fiber.Map{"decision": "Approved", "note": "Looks fine"})
	require.Equal(t, http.StatusOK, status, string(body))
	moderated := decode[models.Post](t, body)
	assert.Equal(t, models.PostStatusApproved, moderated.Status)
	assert.Equal(t, "Looks fine", moderated.ModerationNote)
	assert.Equal(t, "mod-1", moderated.ModeratedBy)

	status, body = h.sendJSON(t, http.MethodPost, decide, "mod-1", fiber.Map{"decision": "rejected"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeInvalidState, errorCode(t, body))

	status, body = h.get(t, "/api/posts", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[repository.Page[models.Post]](t, body).Items, 1)

	status, body = h.get(t, "/api/notifications", "author-1")
	require.Equal(t, http.StatusOK, status)
	list := decode[[]models.Notification](t, body)
	require.Len(t, list, 1)
	assert.Equal(t, service.MsgPostApproved, list[0].Message)
	require.NotNil(t, list[0].PostID)
	assert.Equal(t, post.ID, *list[0].PostID)
}

func TestGetPost_CountsUniqueViews(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.addUser(t, "mod-1", "Ayla", true)
	post := h.submit(t, "author-1")
	h.approve(t, post.ID, "mod-1")

	for i := 0; i < 2; i++ {
		status, body := h.get(t, "/api/posts/"+post.ID, "reader-1")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, int64(1), decode[models.Post](t, body).Views)
	}

	status, _ := h.get(t, "/api/posts/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestReactions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.addUser(t, "mod-1", "Ayla", true)
	post := h.submit(t, "author-1")
	h.approve(t, post.ID, "mod-1")
	path := "/api/posts/" + post.ID + "/reactions"

	status, _ := h.sendJSON(t, http.MethodPost, path, "", fiber.Map{"type": "like"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := h.sendJSON(t, http.MethodPost, path, "reader-1", fiber.Map{"type": "like"})
	require.Equal(t, http.StatusOK, status)
	result := decode[models.ReactionResult](t, body)
	assert.Equal(t, int64(1), result.Likes)
	require.NotNil(t, result.Current)
	assert.Equal(t, models.ReactionLike, *result.Current)

	status, body = h.sendJSON(t, http.MethodPost, path, "reader-1", fiber.Map{"type": "dislike"})
	require.Equal(t, http.StatusOK, status)
	result = decode[models.ReactionResult](t, body)
	assert.Equal(t, int64(0), result.Likes)
	assert.Equal(t, int64(1), result.Dislikes)

	status, body = h.sendJSON(t, http.MethodPost, path, "reader-1", fiber.Map{"type": "dislike"})
	require.Equal(t, http.StatusOK, status)
	result = decode[models.ReactionResult](t, body)
	assert.Nil(t, result.Current)
	assert.Equal(t, int64(0), result.Dislikes)

	status, _ = h.sendJSON(t, http.MethodPost, path, "reader-1", fiber.Map{"type": "love"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCommentsAndReports(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.addUser(t, "reader-1", "Mert", false)
	h.addUser(t, "mod-1", "Ayla", true)
	post := h.submit(t, "author-1")
	base := "/api/posts/" + post.ID

	status, body := h.sendJSON(t, http.MethodPost, base+"/comments", "reader-1", fiber.Map{"content": "Great news for the neighborhood"})
	require.Equal(t, http.StatusCreated, status, string(body))
	comment := decode[models.Comment](t, body)
	assert.Equal(t, "Mert", comment.AuthorName)

	status, body = h.sendJSON(t, http.MethodPost, base+"/comments", "reader-1", fiber.Map{"content": "what a sh1t take"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, service.MsgCommentProfanity, decode[models.ErrorResponse](t, body).Error)

	status, _ = h.sendJSON(t, http.MethodPost, "/api/posts/missing/comments", "reader-1", fiber.Map{"content": "Great news for the neighborhood"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = h.get(t, base+"/comments", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Comment](t, body), 1)

	report := fiber.Map{"reason": "spam", "description": "Duplicate listing of the same story"}
	status, body = h.sendJSON(t, http.MethodPost, base+"/reports", "reader-1", report)
	require.Equal(t, http.StatusCreated, status, string(body))
	created := decode[models.Report](t, body)

	status, body = h.sendJSON(t, http.MethodPost, base+"/reports", "reader-1", report)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, service.MsgReportDuplicate, decode[models.ErrorResponse](t, body).Error)

	status, _ = h.sendJSON(t, http.MethodPost, base+"/reports", "reader-2", fiber.Map{"reason": "boring"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.get(t, "/api/moderation/reports", "reader-1")
	assert.Equal(t, http.StatusForbidden, status)

	status, body = h.get(t, "/api/moderation/reports", "mod-1")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Report](t, body), 1)

	status, _ = h.sendJSON(t, http.MethodPost, "/api/moderation/reports/"+created.ID+"/review", "mod-1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = h.get(t, "/api/moderation/reports", "mod-1")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]models.Report](t, body))
}

func TestEditAndDeletePost(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.addUser(t, "mod-1", "Ayla", true)
	post := h.submit(t, "author-1")
	path := "/api/posts/" + post.ID

	edit := map[string]string{
		"title":    "River bridge reopened",
		"content":  "Crews reopened the river bridge after a month of repairs.",
		"category": "Social",
	}
	status, _ := h.sendMultipart(t, http.MethodPut, path, "reader-1", edit)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := h.sendMultipart(t, http.MethodPut, path, "author-1", edit, skyUpload(t, "image", "new.jpg"))
	require.Equal(t, http.StatusOK, status, string(body))
	edited := decode[models.Post](t, body)
	assert.Equal(t, "RIVER BRIDGE REOPENED", edited.Title)
	require.Len(t, edited.Images, 1)
	assert.NotEqual(t, post.Images[0], edited.Images[0])

	status, _ = h.sendMultipart(t, http.MethodPut, path, "author-1", edit,
		skyUpload(t, "images", "a.jpg"), skyUpload(t, "images", "b.jpg"))
	assert.Equal(t, http.StatusBadRequest, status)

	req := httptest.NewRequest(http.MethodDelete, path, nil)
	status, _ = h.do(t, req, "reader-1")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.do(t, httptest.NewRequest(http.MethodDelete, path, nil), "mod-1")
	assert.Equal(t, http.StatusNoContent, status)
	assert.Empty(t, h.blobs.Keys())

	status, _ = h.get(t, path, "author-1")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUserEndpoints(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	status, _ := h.get(t, "/api/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := h.get(t, "/api/users/me", "new-user")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "new-user", decode[models.User](t, body).ID)

	status, body = h.sendJSON(t, http.MethodPut, "/api/users/me", "new-user", fiber.Map{
		"display_name": "Riverside Reporter",
		"social_links": fiber.Map{"Twitter": "@riverside"},
	})
	require.Equal(t, http.StatusOK, status, string(body))
	user := decode[models.User](t, body)
	assert.Equal(t, "Riverside Reporter", user.DisplayName)
	assert.Equal(t, "@riverside", user.SocialLinks.Twitter)

	status, _ = h.sendJSON(t, http.MethodPut, "/api/users/me", "new-user", fiber.Map{
		"social_links": fiber.Map{"myspace": "x"},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = h.sendMultipart(t, http.MethodPost, "/api/users/me/photo", "new-user", nil, skyUpload(t, "photo", "me.jpg"))
	require.Equal(t, http.StatusOK, status, string(body))
	assert.NotEmpty(t, decode[models.User](t, body).PhotoURL)

	status, _ = h.sendMultipart(t, http.MethodPost, "/api/users/me/photo", "new-user", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUserPosts_HidesUnpublishedFromOthers(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.addUser(t, "mod-1", "Ayla", true)
	published := h.submit(t, "author-1")
	h.approve(t, published.ID, "mod-1")
	h.submit(t, "author-1")

	status, body := h.get(t, "/api/users/author-1/posts", "author-1")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[repository.Page[models.Post]](t, body).Items, 2)

	status, body = h.get(t, "/api/users/author-1/posts", "")
	require.Equal(t, http.StatusOK, status)
	items := decode[repository.Page[models.Post]](t, body).Items
	require.Len(t, items, 1)
	assert.Equal(t, published.ID, items[0].ID)
}

func TestNotifications(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	status, body := h.get(t, "/api/notifications", "user-1")
	require.Equal(t, http.StatusOK, status)
	list := decode[[]models.Notification](t, body)
	require.Len(t, list, 1)
	assert.Equal(t, service.MsgSystemWelcome, list[0].Message)

	read := "/api/notifications/" + list[0].ID + "/read"
	status, _ = h.sendJSON(t, http.MethodPost, read, "user-2", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.sendJSON(t, http.MethodPost, read, "user-1", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = h.get(t, "/api/notifications", "user-1")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]models.Notification](t, body), "the welcome is only created once")
}

func TestAuthRejections(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/any", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	status, _ := h.do(t, req, "")
	assert.Equal(t, http.StatusUnauthorized, status, "optional auth still rejects bad tokens")

	status, _ = h.get(t, "/api/ws/notifications", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = h.get(t, "/api/ws/notifications", "user-1")
	assert.Equal(t, http.StatusUpgradeRequired, status)
}
