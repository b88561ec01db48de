package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mnohosten/pagecache/pkg/storage"
)

// CreateFile opens (creating if necessary) a backing file under the data
// directory and registers it with the buffer pool manager.
func (h *Handlers) CreateFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if name == "" {
		writeError(w, &BadRequestError{Message: "file name is required"})
		return
	}

	f, err := h.openFile(name)
	if err != nil {
		writeError(w, &InternalError{Message: err.Error()})
		return
	}

	writeSuccess(w, map[string]interface{}{
		"file": f.Filename(),
	})
}

// DeleteFile flushes and closes a file, removing it from the registry and
// from disk.
func (h *Handlers) DeleteFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if err := h.closeFile(name); err != nil {
		if _, ok := err.(*FileNotFoundError); ok {
			writeError(w, err)
			return
		}
		writeError(w, &InternalError{Message: err.Error()})
		return
	}

	writeSuccess(w, map[string]interface{}{"file": name, "removed": true})
}

// ListFiles returns the names of every currently registered file.
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	names := h.listFiles()
	writeSuccessWithCount(w, map[string]interface{}{"files": names}, len(names))
}

// pagePayload is the wire representation of a page's contents. Data is
// marshaled as base64 by encoding/json's default []byte handling.
type pagePayload struct {
	File   string         `json:"file"`
	PageNo storage.PageID `json:"page_no"`
	Type   string         `json:"type"`
	Data   []byte         `json:"data"`
}

// writePageRequest is the body of a page write request.
type writePageRequest struct {
	Data []byte `json:"data"`
}

// AllocPage allocates a new page on the named file, pins it, returns its
// contents, and unpins it clean. The page remains addressable by
// subsequent reads/writes; allocation alone does not persist it.
func (h *Handlers) AllocPage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	f, err := h.getFile(name)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	pageNo, page, err := h.bpm.AllocPage(f)
	h.recordOperation("alloc_page", name, pageNo, start, err == nil)
	if err != nil {
		writeError(w, toHandlerError(err))
		return
	}

	unpinStart := time.Now()
	unpinErr := h.bpm.UnpinPage(f, pageNo, false)
	h.recordOperation("unpin_page", name, pageNo, unpinStart, unpinErr == nil)
	h.recordPageWrite(len(page.Data))

	writeSuccess(w, pagePayload{
		File:   name,
		PageNo: pageNo,
		Type:   page.Type.String(),
		Data:   page.Data,
	})
}

// ReadPage fetches a page's current contents, pinning and immediately
// unpinning it clean.
func (h *Handlers) ReadPage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	f, err := h.getFile(name)
	if err != nil {
		writeError(w, err)
		return
	}

	pageNo, err := parsePageNo(r)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	page, readErr := h.bpm.ReadPage(f, pageNo)
	h.recordOperation("read_page", name, pageNo, start, readErr == nil)
	if readErr != nil {
		writeError(w, toHandlerError(readErr))
		return
	}

	unpinStart := time.Now()
	unpinErr := h.bpm.UnpinPage(f, pageNo, false)
	h.recordOperation("unpin_page", name, pageNo, unpinStart, unpinErr == nil)
	h.recordPageRead(len(page.Data))

	writeSuccess(w, pagePayload{
		File:   name,
		PageNo: pageNo,
		Type:   page.Type.String(),
		Data:   page.Data,
	})
}

// WritePage pins a page, overwrites its contents, and unpins it dirty. The
// write is only durable once the file is next flushed or the page is
// evicted.
func (h *Handlers) WritePage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	f, err := h.getFile(name)
	if err != nil {
		writeError(w, err)
		return
	}

	pageNo, err := parsePageNo(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req writePageRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	page, readErr := h.bpm.ReadPage(f, pageNo)
	h.recordOperation("read_page", name, pageNo, start, readErr == nil)
	if readErr != nil {
		writeError(w, toHandlerError(readErr))
		return
	}

	copy(page.Data, req.Data)
	for i := len(req.Data); i < len(page.Data); i++ {
		page.Data[i] = 0
	}

	unpinStart := time.Now()
	unpinErr := h.bpm.UnpinPage(f, pageNo, true)
	h.recordOperation("unpin_page", name, pageNo, unpinStart, unpinErr == nil)
	if unpinErr != nil {
		writeError(w, toHandlerError(unpinErr))
		return
	}
	h.recordPageWrite(len(page.Data))

	writeSuccess(w, pagePayload{
		File:   name,
		PageNo: pageNo,
		Type:   page.Type.String(),
		Data:   page.Data,
	})
}

// DeletePage discards a page's identity via DisposePage.
func (h *Handlers) DeletePage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	f, err := h.getFile(name)
	if err != nil {
		writeError(w, err)
		return
	}

	pageNo, err := parsePageNo(r)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	disposeErr := h.bpm.DisposePage(f, pageNo)
	h.recordOperation("dispose_page", name, pageNo, start, disposeErr == nil)
	if disposeErr != nil {
		writeError(w, toHandlerError(disposeErr))
		return
	}

	writeSuccess(w, map[string]interface{}{"file": name, "page_no": pageNo, "disposed": true})
}

// FlushFile writes back every dirty, unpinned frame belonging to a file.
func (h *Handlers) FlushFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	f, err := h.getFile(name)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	flushErr := h.bpm.FlushFile(f)
	h.recordOperation("flush_file", name, 0, start, flushErr == nil)
	if flushErr != nil {
		writeError(w, toHandlerError(flushErr))
		return
	}

	writeSuccess(w, map[string]interface{}{"file": name, "flushed": true})
}

func parsePageNo(r *http.Request) (storage.PageID, error) {
	raw := chi.URLParam(r, "pageNo")
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, &BadRequestError{Message: "invalid page number: " + raw}
	}
	return storage.PageID(n), nil
}

// toHandlerError passes storage package errors through unchanged so
// writeError can map them to the right status code; anything else is
// wrapped as an internal error.
func toHandlerError(err error) error {
	switch err.(type) {
	case *storage.PagePinnedError, *storage.PageNotPinnedError, *storage.BufferExceededError, *storage.BadBufferError:
		return err
	default:
		return &InternalError{Message: err.Error()}
	}
}
