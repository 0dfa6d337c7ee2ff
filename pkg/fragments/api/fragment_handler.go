package api

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/zeebo/blake3"

	"github.com/tendant/simple-fragments/pkg/fragments"
	"github.com/tendant/simple-fragments/pkg/fragments/mediatype"
)

// FragmentHandler handles HTTP requests for fragments
type FragmentHandler struct {
	service fragments.Service
	apiURL  string
	logger  *slog.Logger
}

// NewFragmentHandler creates a new fragment handler. apiURL is the public
// base used in Location headers; empty means derive it from the request.
func NewFragmentHandler(service fragments.Service, apiURL string, logger *slog.Logger) *FragmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FragmentHandler{
		service: service,
		apiURL:  strings.TrimRight(apiURL, "/"),
		logger:  logger,
	}
}

// Routes returns the routes for fragments
func (h *FragmentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateFragment)
	r.Get("/", h.ListFragments)
	r.Get("/{id}", h.GetFragment)
	r.Get("/{id}/info", h.GetFragmentInfo)
	r.Put("/{id}", h.UpdateFragment)
	r.Delete("/{id}", h.DeleteFragment)

	return r
}

func mustOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
	}
	return owner, ok
}

// readBody reads a raw fragment body. ok is false once a response was written.
func (h *FragmentHandler) readBody(w http.ResponseWriter, r *http.Request) (contentType string, data []byte, ok bool) {
	contentType = r.Header.Get("Content-Type")
	if !mediatype.IsSupported(contentType) {
		writeError(w, r, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported content type %q", contentType))
		return "", nil, false
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		if isTooLarge(err) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "fragment exceeds maximum size")
			return "", nil, false
		}
		writeError(w, r, http.StatusBadRequest, "failed to read request body")
		return "", nil, false
	}
	if data == nil {
		data = []byte{}
	}
	return contentType, data, true
}

func (h *FragmentHandler) location(r *http.Request, id string) string {
	base := h.apiURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/v1/fragments/" + id
}

// CreateFragment stores the raw request body as a new fragment
func (h *FragmentHandler) CreateFragment(w http.ResponseWriter, r *http.Request) {
	owner, ok := mustOwner(w, r)
	if !ok {
		return
	}
	contentType, data, ok := h.readBody(w, r)
	if !ok {
		return
	}

	fragment, err := h.service.Create(r.Context(), fragments.CreateFragmentRequest{
		OwnerID: owner,
		Type:    contentType,
		Data:    data,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", h.location(r, fragment.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, FragmentResponse{Status: "ok", Fragment: fragment})
}

// ListFragments lists the caller's fragments; ?expand=1 returns full records
func (h *FragmentHandler) ListFragments(w http.ResponseWriter, r *http.Request) {
	owner, ok := mustOwner(w, r)
	if !ok {
		return
	}
	expand := r.URL.Query().Get("expand") == "1"

	list, err := h.service.ByUser(r.Context(), owner, expand)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, FragmentListResponse{Status: "ok", Fragments: list})
}

// GetFragment returns the raw bytes of /{id}, or converted bytes of /{id}.{ext}
func (h *FragmentHandler) GetFragment(w http.ResponseWriter, r *http.Request) {
	owner, ok := mustOwner(w, r)
	if !ok {
		return
	}
	id, ext := splitExtension(chi.URLParam(r, "id"))

	fragment, err := h.service.ByID(r.Context(), owner, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	data, err := h.service.GetData(r.Context(), fragment)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	contentType := fragment.Type
	if ext != "" {
		res, err := h.service.Convert(r.Context(), fragment, data, ext)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		data = res.Data
		contentType = res.Type.String()
	}

	etag := contentETag(data)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write fragment body", "id", id, "err", err)
	}
}

// GetFragmentInfo returns fragment metadata
func (h *FragmentHandler) GetFragmentInfo(w http.ResponseWriter, r *http.Request) {
	owner, ok := mustOwner(w, r)
	if !ok {
		return
	}

	fragment, err := h.service.ByID(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, FragmentResponse{Status: "ok", Fragment: fragment})
}

// UpdateFragment replaces a fragment's content; the type may not change
func (h *FragmentHandler) UpdateFragment(w http.ResponseWriter, r *http.Request) {
	owner, ok := mustOwner(w, r)
	if !ok {
		return
	}
	contentType, data, ok := h.readBody(w, r)
	if !ok {
		return
	}

	fragment, err := h.service.Replace(r.Context(), fragments.ReplaceFragmentRequest{
		OwnerID: owner,
		ID:      chi.URLParam(r, "id"),
		Type:    contentType,
		Data:    data,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, FragmentResponse{Status: "ok", Fragment: fragment})
}

// DeleteFragment removes a fragment's bytes and metadata
func (h *FragmentHandler) DeleteFragment(w http.ResponseWriter, r *http.Request) {
	owner, ok := mustOwner(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, StatusResponse{Status: "ok"})
}

// splitExtension separates "abc.html" into ("abc", ".html").
func splitExtension(param string) (id, ext string) {
	if i := strings.LastIndexByte(param, '.'); i > 0 {
		return param[:i], param[i:]
	}
	return param, ""
}

// contentETag is a strong validator over the response bytes.
func contentETag(data []byte) string {
	sum := blake3.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
