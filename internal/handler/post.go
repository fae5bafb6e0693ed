package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/httputil"
	"geojungle/internal/model"
	"geojungle/internal/service"
)

// multipartOverhead is allowed on top of the image size limit.
const multipartOverhead = 1 << 20

type PostHandler struct {
	postService  *service.PostService
	mediaService *service.MediaService
	maxImageSize int64
}

func NewPostHandler(postService *service.PostService, mediaService *service.MediaService, maxImageSize int64) *PostHandler {
	return &PostHandler{
		postService:  postService,
		mediaService: mediaService,
		maxImageSize: maxImageSize,
	}
}

// Create handles POST /posts. The body is JSON, or multipart/form-data with
// the same fields plus an optional "image" file.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var (
		req   model.CreatePostRequest
		image *model.Asset
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var err error
		req, image, err = h.parseMultipart(w, r)
		if err != nil {
			httputil.WriteServiceError(w, r, "CreatePost", err)
			return
		}
	} else if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "CreatePost", err)
		return
	}

	post, err := h.postService.Create(r.Context(), userID, req, image)
	if err != nil {
		httputil.WriteServiceError(w, r, "CreatePost", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, post)
}

// parseMultipart validates the text fields before the image is uploaded so
// a bad request never leaves an orphaned object behind.
func (h *PostHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (model.CreatePostRequest, *model.Asset, error) {
	maxForm := h.maxImageSize + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxForm)
	if err := r.ParseMultipartForm(maxForm); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.CreatePostRequest{}, nil, model.ErrFileTooLarge
		}
		return model.CreatePostRequest{}, nil, model.WrapError(model.KindValidation, "invalid form data", err)
	}

	req := model.CreatePostRequest{
		Kind:     model.PostKind(r.FormValue("kind")),
		Category: r.FormValue("category"),
		Title:    r.FormValue("title"),
		Body:     r.FormValue("body"),
		Country:  r.FormValue("country"),
	}
	if err := httputil.Validate(&req); err != nil {
		return req, nil, err
	}
	if !req.Kind.Valid() {
		return req, nil, model.ErrInvalidPostKind
	}
	if !req.Kind.ValidCategory(req.Category) {
		return req, nil, model.ErrInvalidCategory
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, model.WrapError(model.KindValidation, "invalid image upload", err)
	}
	defer file.Close()

	asset, err := h.mediaService.UploadPostImage(r.Context(), file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		return req, nil, err
	}
	return req, asset, nil
}

// List handles GET /posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filterFromQuery(w, r)
	if !ok {
		return
	}
	posts, err := h.postService.List(r.Context(), filter, viewerID(r))
	if err != nil {
		httputil.WriteServiceError(w, r, "ListPosts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, posts)
}

// AdminList handles GET /admin/posts; include_deleted is honoured for
// admins only.
func (h *PostHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filterFromQuery(w, r)
	if !ok {
		return
	}
	includeDeleted, err := httputil.QueryBool(r, "include_deleted")
	if err != nil {
		httputil.WriteServiceError(w, r, "AdminListPosts", err)
		return
	}
	filter.IncludeDeleted = includeDeleted && isAdmin(r)

	posts, err := h.postService.List(r.Context(), filter, nil)
	if err != nil {
		httputil.WriteServiceError(w, r, "AdminListPosts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) filterFromQuery(w http.ResponseWriter, r *http.Request) (model.PostFilter, bool) {
	cursor, limit, ok := page(w, r, model.DefaultPostPageSize)
	if !ok {
		return model.PostFilter{}, false
	}
	author, err := httputil.QueryInt64Ptr(r, "author")
	if err != nil {
		httputil.WriteServiceError(w, r, "ListPosts", err)
		return model.PostFilter{}, false
	}

	q := r.URL.Query()
	filter := model.PostFilter{
		Kind:     model.PostKind(q.Get("kind")),
		Category: q.Get("category"),
		Country:  q.Get("country"),
		Query:    strings.TrimSpace(q.Get("q")),
		Cursor:   cursor,
		Limit:    limit,
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		httputil.WriteServiceError(w, r, "ListPosts", model.ErrInvalidPostKind)
		return model.PostFilter{}, false
	}
	if author != nil {
		filter.AuthorID = *author
	}
	return filter, true
}

// CountryFeed handles GET /countries/{country}/feed
func (h *PostHandler) CountryFeed(w http.ResponseWriter, r *http.Request) {
	country := strings.TrimSpace(chi.URLParam(r, "country"))
	if country == "" {
		httputil.WriteBadRequest(w, "Country is required")
		return
	}
	cursor, limit, ok := page(w, r, model.DefaultPostPageSize)
	if !ok {
		return
	}

	feed, err := h.postService.CountryFeed(r.Context(), country, cursor, limit, viewerID(r))
	if err != nil {
		httputil.WriteServiceError(w, r, "CountryFeed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feed)
}

// GetByID handles GET /posts/{id}
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	post, err := h.postService.GetByID(r.Context(), postID, viewerID(r))
	if err != nil {
		httputil.WriteServiceError(w, r, "GetPost", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, post)
}

// Image handles GET /posts/{id}/image by streaming the stored bytes.
func (h *PostHandler) Image(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	body, contentType, err := h.postService.Image(r.Context(), postID)
	if err != nil {
		httputil.WriteServiceError(w, r, "PostImage", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.WithError(err).WithField("post_id", postID).Warn("[PostHandler] Image stream interrupted")
	}
}

// Reactions handles GET /posts/{id}/reactions
func (h *PostHandler) Reactions(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	reactions, err := h.postService.Reactions(r.Context(), postID)
	if err != nil {
		httputil.WriteServiceError(w, r, "PostReactions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reactions)
}

// Update handles PATCH /posts/{id} (owner only).
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.UpdatePostRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "UpdatePost", err)
		return
	}

	post, err := h.postService.Update(r.Context(), postID, userID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, "UpdatePost", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{id}. Owners need no reason.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.postService.Delete(r.Context(), postID, actor, ""); err != nil {
		httputil.WriteServiceError(w, r, "DeletePost", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Post deleted successfully"})
}

// Moderate handles DELETE /admin/posts/{id} with a required reason.
func (h *PostHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.ModeratePostRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "ModeratePost", err)
		return
	}

	if err := h.postService.Delete(r.Context(), postID, actor, req.Reason); err != nil {
		httputil.WriteServiceError(w, r, "ModeratePost", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Post deleted successfully"})
}

// Restore handles POST /admin/posts/{id}/restore
func (h *PostHandler) Restore(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	post, err := h.postService.Restore(r.Context(), postID)
	if err != nil {
		httputil.WriteServiceError(w, r, "RestorePost", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, post)
}
