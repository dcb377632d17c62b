package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nbsync/sync-server-go/internal/errors"
	"github.com/nbsync/sync-server-go/internal/model"
	"github.com/nbsync/sync-server-go/internal/service"
)

func TestPushByHashEndpoint(t *testing.T) {
	createdAt := "2025-01-01T00:00:00Z"
	parsed, _ := time.Parse(time.RFC3339Nano, createdAt)
	wantHash := service.ContentHash("u1", parsed)

	t.Run("new content gets 201", func(t *testing.T) {
		content := new(mockContentStore)
		content.On("Put", mock.Anything, wantHash, "print(1)", mock.Anything, mock.Anything).
			Return(true, nil)

		router := newTestRouter(new(mockSessionRepo), content, new(mockLedgerRepo))
		body := `{"unitId":"u1","createdAt":"` + createdAt + `","payload":"print(1)"}`
		rec := doRequest(router, http.MethodPost, "/v1/content", body, "teacher-1", "presenter")

		assert.Equal(t, http.StatusCreated, rec.Code)
		resp := decodeBody(t, rec)
		assert.Equal(t, wantHash, resp["contentHash"])
	})

	t.Run("duplicate content gets 200 with same hash", func(t *testing.T) {
		content := new(mockContentStore)
		content.On("Put", mock.Anything, wantHash, mock.Anything, mock.Anything, mock.Anything).
			Return(false, nil)

		router := newTestRouter(new(mockSessionRepo), content, new(mockLedgerRepo))
		body := `{"unitId":"u1","createdAt":"` + createdAt + `","payload":"changed"}`
		rec := doRequest(router, http.MethodPost, "/v1/content", body, "teacher-1", "presenter")

		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody(t, rec)
		assert.Equal(t, wantHash, resp["contentHash"])
	})

	t.Run("negative ttl gets 400", func(t *testing.T) {
		router := newTestRouter(new(mockSessionRepo), new(mockContentStore), new(mockLedgerRepo))
		body := `{"unitId":"u1","createdAt":"` + createdAt + `","payload":"x","ttlSeconds":-1}`
		rec := doRequest(router, http.MethodPost, "/v1/content", body, "teacher-1", "presenter")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing timestamp gets 400", func(t *testing.T) {
		router := newTestRouter(new(mockSessionRepo), new(mockContentStore), new(mockLedgerRepo))
		rec := doRequest(router, http.MethodPost, "/v1/content", `{"unitId":"u1","payload":"x"}`, "teacher-1", "presenter")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetByHashEndpoint(t *testing.T) {
	validHash := strings.Repeat("ab", 32)

	t.Run("returns payload for stored hash", func(t *testing.T) {
		content := new(mockContentStore)
		content.On("Get", mock.Anything, validHash).Return(&model.ContentEntry{
			Hash:      validHash,
			Payload:   "print(1)",
			CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}, nil)

		router := newTestRouter(new(mockSessionRepo), content, new(mockLedgerRepo))
		rec := doRequest(router, http.MethodGet, "/v1/content/"+validHash, "", "student-1", "follower")

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "print(1)", body["payload"])
	})

	t.Run("malformed hash gets 400", func(t *testing.T) {
		router := newTestRouter(new(mockSessionRepo), new(mockContentStore), new(mockLedgerRepo))
		rec := doRequest(router, http.MethodGet, "/v1/content/not-a-hash", "", "student-1", "follower")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("expired hash gets 404", func(t *testing.T) {
		content := new(mockContentStore)
		content.On("Get", mock.Anything, validHash).Return(nil, apperrors.NotFound("content"))

		router := newTestRouter(new(mockSessionRepo), content, new(mockLedgerRepo))
		rec := doRequest(router, http.MethodGet, "/v1/content/"+validHash, "", "student-1", "follower")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListHashesEndpoint(t *testing.T) {
	t.Run("returns page and continuation cursor", func(t *testing.T) {
		content := new(mockContentStore)
		content.On("List", mock.Anything, uint64(0), int64(50), "").
			Return([]string{"h1", "h2"}, uint64(42), nil)

		router := newTestRouter(new(mockSessionRepo), content, new(mockLedgerRepo))
		rec := doRequest(router, http.MethodGet, "/v1/content", "", "teacher-1", "presenter")

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		items := body["items"].([]any)
		require.Len(t, items, 2)
		assert.Equal(t, "42", body["nextCursor"])
	})

	t.Run("non-integer limit gets 400", func(t *testing.T) {
		router := newTestRouter(new(mockSessionRepo), new(mockContentStore), new(mockLedgerRepo))
		rec := doRequest(router, http.MethodGet, "/v1/content?limit=abc", "", "teacher-1", "presenter")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed cursor gets 400", func(t *testing.T) {
		router := newTestRouter(new(mockSessionRepo), new(mockContentStore), new(mockLedgerRepo))
		rec := doRequest(router, http.MethodGet, "/v1/content?cursor=xyz", "", "teacher-1", "presenter")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
