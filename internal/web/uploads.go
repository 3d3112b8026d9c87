package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"archsite/internal/auth"
	"archsite/internal/content"
	"archsite/internal/upload"
)

// maxFieldBytes caps each non-file multipart field.
const maxFieldBytes = 4 << 10

// uploadSingle handles POST /api/upload with a multipart "file" part. The
// part is streamed to disk; the upload service enforces the size limits.
func (h *Handler) uploadSingle(w http.ResponseWriter, r *http.Request) {
	md, err := h.saveMultipart(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, md)
}

func (h *Handler) saveMultipart(r *http.Request) (*content.Media, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing file part", errBadRequest)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		md, err := h.deps.Uploads.Save(r.Context(), auth.Actor(r.Context()), part.FileName(), part)
		_ = part.Close()
		return md, err
	}
}

// uploadChunk handles POST /api/upload/chunk. Two encodings are accepted:
//   - multipart/form-data with uploadId, chunkIndex, totalChunks and fileName
//     fields placed before the "chunk" file part;
//   - a raw body with the same fields as query parameters.
func (h *Handler) uploadChunk(w http.ResponseWriter, r *http.Request) {
	fields := map[string]string{}
	for _, k := range []string{"uploadId", "chunkIndex", "totalChunks", "fileName"} {
		if v := r.URL.Query().Get(k); v != "" {
			fields[k] = v
		}
	}

	body := io.Reader(r.Body)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		part, err := chunkPart(r, fields)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		defer part.Close()
		body = part
	}

	c, err := parseChunk(fields)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.deps.Uploads.WriteChunk(r.Context(), auth.Actor(r.Context()), c, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if st.Complete {
		status = http.StatusCreated
	}
	writeJSON(w, status, st)
}

// chunkPart reads the text fields into fields and returns the file part.
func chunkPart(r *http.Request, fields map[string]string) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing chunk part", errBadRequest)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		name := part.FormName()
		if part.FileName() != "" || name == "chunk" || name == "file" {
			if fields["fileName"] == "" && part.FileName() != "" {
				fields["fileName"] = part.FileName()
			}
			return part, nil
		}
		var buf bytes.Buffer
		_, err = io.Copy(&buf, io.LimitReader(part, maxFieldBytes+1))
		_ = part.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		if buf.Len() > maxFieldBytes {
			return nil, fmt.Errorf("%w: field %s too long", errBadRequest, name)
		}
		fields[name] = strings.TrimSpace(buf.String())
	}
}

func parseChunk(fields map[string]string) (upload.Chunk, error) {
	idx, err := strconv.Atoi(fields["chunkIndex"])
	if err != nil {
		return upload.Chunk{}, fmt.Errorf("%w: chunkIndex", upload.ErrBadChunk)
	}
	total, err := strconv.Atoi(fields["totalChunks"])
	if err != nil {
		return upload.Chunk{}, fmt.Errorf("%w: totalChunks", upload.ErrBadChunk)
	}
	return upload.Chunk{
		UploadID: fields["uploadId"],
		Index:    idx,
		Total:    total,
		FileName: fields["fileName"],
	}, nil
}

func (h *Handler) chunkStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Uploads.Status(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) chunkAbort(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Uploads.Abort(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
