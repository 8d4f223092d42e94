package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/identityonboardflow/internal/apperr"
	"github.com/Lllllllleong/identityonboardflow/internal/auth"
	"github.com/Lllllllleong/identityonboardflow/internal/config"
	"github.com/Lllllllleong/identityonboardflow/internal/face"
	"github.com/Lllllllleong/identityonboardflow/internal/models"
	"github.com/Lllllllleong/identityonboardflow/internal/server"
	"github.com/Lllllllleong/identityonboardflow/internal/store"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
)

const testSecret = "handler-test-secret"

// --- fakes wired through the store and detector contracts ---

type fakeDocumentStore struct {
	docs   map[string]map[string]any
	order  []string
	nextID int
	calls  int
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: map[string]map[string]any{}}
}

func (f *fakeDocumentStore) Create(_ context.Context, _ string, fields map[string]any) (string, error) {
	f.calls++
	f.nextID++
	id := fmt.Sprintf("user-%d", f.nextID)
	f.docs[id] = fields
	f.order = append(f.order, id)
	return id, nil
}

func (f *fakeDocumentStore) Get(_ context.Context, _ string, key string) (store.Document, error) {
	f.calls++
	fields, ok := f.docs[key]
	if !ok {
		return store.Document{}, apperr.Newf(apperr.KindNotFound, "document %s not found", key)
	}
	return store.Document{ID: key, Fields: fields}, nil
}

func (f *fakeDocumentStore) Update(_ context.Context, _ string, key string, fields map[string]any) error {
	f.calls++
	existing, ok := f.docs[key]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "document %s not found", key)
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

func (f *fakeDocumentStore) ListAll(_ context.Context, _ string) store.DocumentIterator {
	f.calls++
	docs := make([]store.Document, 0, len(f.order))
	for _, id := range f.order {
		docs = append(docs, store.Document{ID: id, Fields: f.docs[id]})
	}
	return &sliceIterator{docs: docs}
}

type sliceIterator struct {
	docs []store.Document
	pos  int
}

func (it *sliceIterator) Next() (store.Document, error) {
	if it.pos >= len(it.docs) {
		return store.Document{}, iterator.Done
	}
	doc := it.docs[it.pos]
	it.pos++
	return doc, nil
}

func (it *sliceIterator) Stop() {}

type fakeBlobStore struct {
	uploads     map[string]string // path -> content type
	uploadOrder []string
	calls       int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{uploads: map[string]string{}}
}

func (f *fakeBlobStore) Upload(_ context.Context, path string, data []byte, contentType string) error {
	f.calls++
	f.uploads[path] = contentType
	f.uploadOrder = append(f.uploadOrder, path)
	return nil
}

func (f *fakeBlobStore) URL(_ context.Context, path string) (string, error) {
	f.calls++
	if _, ok := f.uploads[path]; !ok {
		return "", apperr.Newf(apperr.KindNotFound, "blob %s not found", path)
	}
	return "https://blobs.test/" + path, nil
}

func (f *fakeBlobStore) URI(path string) string {
	return "gs://test-bucket/" + path
}

type fakeDetector struct {
	count int
	err   error
	calls int
	last  face.Image
}

func (f *fakeDetector) Detect(_ context.Context, img face.Image) (int, error) {
	f.calls++
	f.last = img
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

// --- harness ---

type testEnv struct {
	handler   http.Handler
	documents *fakeDocumentStore
	blobs     *fakeBlobStore
	detector  *fakeDetector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Port:            "8080",
		ProjectID:       "test-project",
		StorageBucket:   "test-bucket",
		UsersCollection: "users",
		AuthJWTSecret:   testSecret,
		FaceProvider:    config.FaceProviderREST,
		MaxUploadBytes:  5 * 1024 * 1024,
		ListEnrichLimit: 4,
	}
	env := &testEnv{
		documents: newFakeDocumentStore(),
		blobs:     newFakeBlobStore(),
		detector:  &fakeDetector{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := auth.NewGate(auth.NewJWTVerifier(testSecret))
	env.handler = server.New(cfg, logger, gate, env.documents, env.blobs, env.detector).Handler()
	return env
}

func bearerToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "tester",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.Nil(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body io.Reader, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+bearerToken(t))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func registerBody() string {
	return `{
		"firstName": "Maria",
		"lastName": "Lopez",
		"email": "maria.lopez@example.com",
		"phoneCountryCode": "+502",
		"telephone": "55512345",
		"idType": "DPI",
		"idNumber": "A1B2C3D4",
		"department": "Guatemala",
		"municipality": "Mixco",
		"direction": "4a calle 5-67 zona 11",
		"monthlyEarns": 1500.50
	}`
}

func (e *testEnv) registerUser(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/registerUser", "application/json", strings.NewReader(registerBody()), true)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeJSON[models.RegisterUserResponse](t, rec).ID
}

func jpegBody() io.Reader {
	return bytes.NewReader([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02})
}

// --- root ---

func TestRootIsOpen(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/", "", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- registration ---

func TestRegisterUser(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/registerUser", "application/json", strings.NewReader(registerBody()), true)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeJSON[models.RegisterUserResponse](t, rec)
	assert.NotEmpty(t, resp.ID)
	fields := env.documents.docs[resp.ID]
	require.NotNil(t, fields)
	assert.Equal(t, "Maria", fields["firstName"])
	assert.Equal(t, 1500.50, fields["monthlyEarns"])
}

func TestRegisterUserAssignsDistinctKeys(t *testing.T) {
	env := newTestEnv(t)
	first := env.registerUser(t)
	second := env.registerUser(t)
	assert.NotEqual(t, first, second)
}

func TestRegisterUserValidationFailure(t *testing.T) {
	env := newTestEnv(t)
	body := `{"firstName": "M", "telephone": "123456"}`
	rec := env.do(t, http.MethodPost, "/registerUser", "application/json", strings.NewReader(body), true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeJSON[models.ErrorResponse](t, rec)
	assert.NotEmpty(t, resp.Violations)
	fields := make([]string, len(resp.Violations))
	for i, v := range resp.Violations {
		fields[i] = v.Field
	}
	assert.Contains(t, fields, "firstName")
	assert.Contains(t, fields, "telephone")
	assert.Contains(t, fields, "email")
	assert.Zero(t, env.documents.calls, "store must not be touched on validation failure")
}

func TestRegisterUserMalformedJSON(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/registerUser", "application/json", strings.NewReader("{not json"), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.documents.calls)
}

// --- credential gate ---

func TestProtectedRoutesRejectMissingCredential(t *testing.T) {
	env := newTestEnv(t)
	routes := []struct {
		method, path, contentType string
		body                      func() io.Reader
	}{
		{http.MethodPost, "/registerUser", "application/json", func() io.Reader { return strings.NewReader(registerBody()) }},
		{http.MethodGet, "/getAllUsers", "", func() io.Reader { return nil }},
		{http.MethodGet, "/getUser/user-1", "", func() io.Reader { return nil }},
		{http.MethodPost, "/imageUpload/user-1/front", "image/jpeg", jpegBody},
		{http.MethodPost, "/selfieUpload/user-1", "image/jpeg", jpegBody},
		{http.MethodPost, "/detectFace", "image/jpeg", jpegBody},
	}
	for _, route := range routes {
		rec := env.do(t, route.method, route.path, route.contentType, route.body(), false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
	assert.Zero(t, env.documents.calls, "document store must not be touched without a credential")
	assert.Zero(t, env.blobs.calls, "blob store must not be touched without a credential")
}

func TestProtectedRouteRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/getAllUsers", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, env.documents.calls)
}

func TestAuthDisabledOpensRoutes(t *testing.T) {
	env := newTestEnv(t)
	cfg := &config.Config{
		UsersCollection: "users",
		AuthDisabled:    true,
		FaceProvider:    config.FaceProviderREST,
		MaxUploadBytes:  5 * 1024 * 1024,
		ListEnrichLimit: 4,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	open := server.New(cfg, logger, nil, env.documents, env.blobs, env.detector).Handler()

	req := httptest.NewRequest(http.MethodGet, "/getAllUsers", nil)
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- listing ---

func TestGetAllUsersEmpty(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/getAllUsers", "", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.UserSummary{}, decodeJSON[[]models.UserSummary](t, rec))
}

func TestGetAllUsersEnrichesMissingSelfieURL(t *testing.T) {
	env := newTestEnv(t)
	id := env.registerUser(t)
	// Selfie blob exists but the record update never landed.
	require.Nil(t, env.blobs.Upload(context.Background(), "ID_Documents/"+id+"-selfie", []byte{1}, "image/jpeg"))

	rec := env.do(t, http.MethodGet, "/getAllUsers", "", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decodeJSON[[]models.UserSummary](t, rec)
	require.Len(t, users, 1)
	assert.Equal(t, "https://blobs.test/ID_Documents/"+id+"-selfie", users[0].SelfieImage)
}

// --- get user ---

func TestGetUser(t *testing.T) {
	env := newTestEnv(t)
	id := env.registerUser(t)
	rec := env.do(t, http.MethodGet, "/getUser/"+id, "", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeJSON[models.UserSummary](t, rec)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "Maria", user.FirstName)
}

func TestGetUserNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/getUser/no-such-user", "", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- document upload ---

func TestImageUploadAppendsInOrder(t *testing.T) {
	env := newTestEnv(t)
	id := env.registerUser(t)

	rec := env.do(t, http.MethodPost, "/imageUpload/"+id+"/front", "image/jpeg", jpegBody(), true)
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decodeJSON[models.UploadImageResponse](t, rec).ImageURL

	urls := env.documents.docs[id]["documentImageUrl"].([]string)
	assert.Equal(t, []string{first}, urls)

	rec = env.do(t, http.MethodPost, "/imageUpload/"+id+"/back", "image/png", jpegBody(), true)
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decodeJSON[models.UploadImageResponse](t, rec).ImageURL

	urls = env.documents.docs[id]["documentImageUrl"].([]string)
	assert.Equal(t, []string{first, second}, urls)
	assert.Equal(t, "image/jpeg", env.blobs.uploads["ID_Documents/"+id+"-front"])
	assert.Equal(t, "image/png", env.blobs.uploads["ID_Documents/"+id+"-back"])
}

func TestImageUploadUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/imageUpload/no-such-user/front", "image/jpeg", jpegBody(), true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImageUploadRejectsWrongContentType(t *testing.T) {
	env := newTestEnv(t)
	id := env.registerUser(t)
	blobCalls := env.blobs.calls
	docCalls := env.documents.calls

	rec := env.do(t, http.MethodPost, "/imageUpload/"+id+"/front", "image/gif", jpegBody(), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, blobCalls, env.blobs.calls, "blob store must not be touched for a rejected content type")
	assert.Equal(t, docCalls, env.documents.calls)
}

func TestImageUploadRejectsEmptyBody(t *testing.T) {
	env := newTestEnv(t)
	id := env.registerUser(t)
	rec := env.do(t, http.MethodPost, "/imageUpload/"+id+"/front", "image/jpeg", bytes.NewReader(nil), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImageUploadRejectsOversizedBody(t *testing.T) {
	env := newTestEnv(t)
	id := env.registerUser(t)
	oversized := bytes.Repeat([]byte{0xAB}, 5*1024*1024+1)
	rec := env.do(t, http.MethodPost, "/imageUpload/"+id+"/front", "image/jpeg", bytes.NewReader(oversized), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- selfie upload ---

func TestSelfieUploadOverwrites(t *testing.T) {
	env := newTestEnv(t)
	id := env.registerUser(t)

	rec := env.do(t, http.MethodPost, "/selfieUpload/"+id, "image/jpeg", jpegBody(), true)
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decodeJSON[models.UploadImageResponse](t, rec).ImageURL

	rec = env.do(t, http.MethodPost, "/selfieUpload/"+id, "image/png", jpegBody(), true)
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decodeJSON[models.UploadImageResponse](t, rec).ImageURL

	// The selfie field holds exactly one URL, the latest upload's, and the
	// blob now carries the second upload's content type.
	selfie := env.documents.docs[id]["selfieImage"].(string)
	assert.Equal(t, first, selfie)
	assert.Equal(t, second, selfie)
	assert.Equal(t, "image/png", env.blobs.uploads["ID_Documents/"+id+"-selfie"])
	assert.NotContains(t, env.documents.docs[id], "documentImageUrl")
}

// --- face detection ---

func TestDetectFaceValid(t *testing.T) {
	env := newTestEnv(t)
	env.detector.count = 1

	rec := env.do(t, http.MethodPost, "/detectFace", "image/jpeg", jpegBody(), true)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[models.DetectFaceResponse](t, rec)
	assert.True(t, resp.ValidFace)
	assert.Equal(t, 1, resp.FaceCount)
	assert.True(t, strings.HasPrefix(env.detector.last.GCSUri, "gs://test-bucket/temporalImages/"))
}

func TestDetectFaceNoFaces(t *testing.T) {
	env := newTestEnv(t)
	env.detector.count = 0

	rec := env.do(t, http.MethodPost, "/detectFace", "image/jpeg", jpegBody(), true)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[models.DetectFaceResponse](t, rec)
	assert.False(t, resp.ValidFace)
	assert.Equal(t, 0, resp.FaceCount)
}

func TestDetectFaceUsesUniqueTempPaths(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/detectFace", "image/jpeg", jpegBody(), true)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/detectFace", "image/jpeg", jpegBody(), true)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, env.blobs.uploadOrder, 2)
	assert.NotEqual(t, env.blobs.uploadOrder[0], env.blobs.uploadOrder[1])
}

func TestDetectFaceUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.detector.err = apperr.New(apperr.KindUpstream, "face detection request failed")

	rec := env.do(t, http.MethodPost, "/detectFace", "image/jpeg", jpegBody(), true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeJSON[models.ErrorResponse](t, rec)
	assert.NotEmpty(t, resp.Error)
}

func TestDetectFaceRejectsWrongContentType(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/detectFace", "image/gif", jpegBody(), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.blobs.calls)
	assert.Zero(t, env.detector.calls)
}
