package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Lllllllleong/identityonboardflow/internal/apperr"
	"github.com/Lllllllleong/identityonboardflow/internal/face"
	"github.com/Lllllllleong/identityonboardflow/internal/models"
	"github.com/Lllllllleong/identityonboardflow/internal/validation"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
)

const documentsPrefix = "ID_Documents"

var allowedContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

func documentPath(userID, imageType string) string {
	return fmt.Sprintf("%s/%s-%s", documentsPrefix, userID, imageType)
}

func selfiePath(userID string) string {
	return fmt.Sprintf("%s/%s-selfie", documentsPrefix, userID)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("identity onboarding backend is running"))
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	logCtx := s.requestLogger(r)

	var req models.RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.KindValidation, "request body must be valid JSON", err))
		return
	}

	result := validation.ValidateUser(&req)
	if !result.Valid {
		logCtx.Warn("Registration payload rejected", "violationCount", len(result.Violations))
		s.writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error:      "validation failed",
			Violations: result.Violations,
		})
		return
	}

	id, err := s.documents.Create(r.Context(), s.cfg.UsersCollection, req.Fields())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logCtx.Info("User registered", "userId", id)
	s.writeJSON(w, http.StatusCreated, models.RegisterUserResponse{
		Message: "user registered successfully",
		ID:      id,
	})
}

func (s *Server) handleGetAllUsers(w http.ResponseWriter, r *http.Request) {
	iter := s.documents.ListAll(r.Context(), s.cfg.UsersCollection)
	defer iter.Stop()

	var users []models.UserSummary
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		users = append(users, models.UserSummary{
			ID:         doc.ID,
			UserRecord: models.UserFromFields(doc.Fields),
		})
	}

	s.enrichSelfieURLs(r, users)

	if users == nil {
		users = []models.UserSummary{}
	}
	s.writeJSON(w, http.StatusOK, users)
}

// enrichSelfieURLs backfills missing selfie URLs from the deterministic blob
// path. A selfie blob can exist without a URL on the record when the record
// update failed after the upload succeeded. Lookup failures leave the record
// as stored.
func (s *Server) enrichSelfieURLs(r *http.Request, users []models.UserSummary) {
	logCtx := s.requestLogger(r)
	eg, ctx := errgroup.WithContext(r.Context())
	eg.SetLimit(s.cfg.ListEnrichLimit)

	for i := range users {
		if users[i].SelfieImage != "" {
			continue
		}
		i := i
		eg.Go(func() error {
			url, err := s.blobs.URL(ctx, selfiePath(users[i].ID))
			if err != nil {
				if apperr.KindOf(err) != apperr.KindNotFound {
					logCtx.Warn("Selfie URL enrichment failed", "userId", users[i].ID, "error", err)
				}
				return nil
			}
			users[i].SelfieImage = url
			return nil
		})
	}
	_ = eg.Wait()
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		s.writeError(w, r, apperr.New(apperr.KindValidation, "userId is required"))
		return
	}
	doc, err := s.documents.Get(r.Context(), s.cfg.UsersCollection, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.UserSummary{
		ID:         doc.ID,
		UserRecord: models.UserFromFields(doc.Fields),
	})
}

func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	imageType := r.PathValue("type")
	if userID == "" || imageType == "" {
		s.writeError(w, r, apperr.New(apperr.KindValidation, "userId and type are required"))
		return
	}
	logCtx := s.requestLogger(r).With("userId", userID, "imageType", imageType)

	body, contentType, err := s.readImageBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	path := documentPath(userID, imageType)
	if err := s.blobs.Upload(r.Context(), path, body, contentType); err != nil {
		s.writeError(w, r, err)
		return
	}
	url, err := s.blobs.URL(r.Context(), path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logCtx.Info("Document image stored", "path", path)

	// Read-merge-update: the URL sequence only ever grows and keeps append
	// order. Concurrent uploads for the same user race here; last write wins.
	doc, err := s.documents.Get(r.Context(), s.cfg.UsersCollection, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	urls := append(models.StringSliceField(doc.Fields, models.FieldDocumentImageURL), url)
	err = s.documents.Update(r.Context(), s.cfg.UsersCollection, userID, map[string]any{
		models.FieldDocumentImageURL: urls,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logCtx.Info("User record updated", "imageCount", len(urls))

	s.writeJSON(w, http.StatusCreated, models.UploadImageResponse{
		Message:  "image uploaded successfully",
		ImageURL: url,
	})
}

func (s *Server) handleSelfieUpload(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		s.writeError(w, r, apperr.New(apperr.KindValidation, "userId is required"))
		return
	}
	logCtx := s.requestLogger(r).With("userId", userID)

	body, contentType, err := s.readImageBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	path := selfiePath(userID)
	if err := s.blobs.Upload(r.Context(), path, body, contentType); err != nil {
		s.writeError(w, r, err)
		return
	}
	url, err := s.blobs.URL(r.Context(), path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// A selfie holds at most one URL; each upload replaces the previous one.
	err = s.documents.Update(r.Context(), s.cfg.UsersCollection, userID, map[string]any{
		models.FieldSelfieImage: url,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logCtx.Info("Selfie stored", "path", path)

	s.writeJSON(w, http.StatusCreated, models.UploadImageResponse{
		Message:  "selfie uploaded successfully",
		ImageURL: url,
	})
}

func (s *Server) handleDetectFace(w http.ResponseWriter, r *http.Request) {
	logCtx := s.requestLogger(r)

	body, contentType, err := s.readImageBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Unique object per request so concurrent detections cannot overwrite
	// each other's image between upload and URL fetch. Temp objects
	// accumulate; there is no cleanup primitive in this pipeline.
	path := fmt.Sprintf("temporalImages/%s.%s", uuid.New().String(), allowedContentTypes[contentType])
	if err := s.blobs.Upload(r.Context(), path, body, contentType); err != nil {
		s.writeError(w, r, err)
		return
	}
	url, err := s.blobs.URL(r.Context(), path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	count, err := s.detector.Detect(r.Context(), face.Image{URL: url, GCSUri: s.blobs.URI(path)})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logCtx.Info("Face detection complete", "path", path, "faceCount", count)

	s.writeJSON(w, http.StatusOK, models.DetectFaceResponse{
		ValidFace: count > 0,
		FaceCount: count,
	})
}

// readImageBody enforces the upload policy before any store interaction:
// content type exactly image/jpeg or image/png, body non-empty and within
// the configured size limit.
func (s *Server) readImageBody(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	contentType := r.Header.Get("Content-Type")
	if _, ok := allowedContentTypes[contentType]; !ok {
		return nil, "", apperr.Newf(apperr.KindValidation, "content type must be image/jpeg or image/png, got %q", contentType)
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", apperr.Newf(apperr.KindValidation, "image exceeds the %d byte limit", s.cfg.MaxUploadBytes)
		}
		return nil, "", apperr.Wrap(apperr.KindInternal, "failed to read request body", err)
	}
	if len(body) == 0 {
		return nil, "", apperr.New(apperr.KindValidation, "request body must not be empty")
	}
	return body, contentType, nil
}
