package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
	"github.com/iliyamo/bus-seat-reservation/internal/seatstore"
	"github.com/iliyamo/bus-seat-reservation/internal/upload"
)

// BookingFiles records attachments against persisted bookings.
type BookingFiles interface {
	Exists(ctx context.Context, bookingID string) (bool, error)
	AddFile(ctx context.Context, bookingID, filename string) error
}

// UploadHandler accepts attachments for committed bookings.  Files is
// optional and only consulted for bookings the store does not know.
type UploadHandler struct {
	Uploads  *upload.Store
	Store    *seatstore.Store
	Files    BookingFiles
	MaxBytes int64
	Log      *zap.Logger
}

func NewUploadHandler(uploads *upload.Store, store *seatstore.Store, maxBytes int64, log *zap.Logger) *UploadHandler {
	if uploads == nil || store == nil {
		panic("nil dependency passed to NewUploadHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UploadHandler{Uploads: uploads, Store: store, MaxBytes: maxBytes, Log: log}
}

// Upload handles POST /api/upload with multipart fields booking_id and file.
func (h *UploadHandler) Upload(c echo.Context) error {
	if h.MaxBytes > 0 {
		// leave room for the multipart envelope
		c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, h.MaxBytes+1<<20)
	}
	bookingID := strings.TrimSpace(c.FormValue("booking_id"))
	if bookingID == "" {
		return uploadFail(c, http.StatusBadRequest, reservation.ReasonValidationFailed, "booking_id is required")
	}
	ctx := c.Request().Context()
	if !h.bookingExists(ctx, bookingID) {
		return uploadFail(c, http.StatusNotFound, reservation.ReasonValidationFailed, "booking not found")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return uploadFail(c, http.StatusRequestEntityTooLarge, reservation.ReasonValidationFailed, "file too large")
		}
		return uploadFail(c, http.StatusBadRequest, reservation.ReasonValidationFailed, "file is required")
	}
	if h.MaxBytes > 0 && fh.Size > h.MaxBytes {
		return uploadFail(c, http.StatusRequestEntityTooLarge, reservation.ReasonValidationFailed, "file too large")
	}
	src, err := fh.Open()
	if err != nil {
		return uploadFail(c, http.StatusBadRequest, reservation.ReasonValidationFailed, "cannot read file")
	}
	defer src.Close()

	name, err := h.Uploads.Save(bookingID, fh.Filename, src)
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		return uploadFail(c, http.StatusRequestEntityTooLarge, reservation.ReasonValidationFailed, "file too large")
	case errors.Is(err, upload.ErrTypeNotAllowed):
		return uploadFail(c, http.StatusBadRequest, reservation.ReasonValidationFailed, "file type not allowed")
	case errors.Is(err, upload.ErrEmpty):
		return uploadFail(c, http.StatusBadRequest, reservation.ReasonValidationFailed, "file is empty")
	case err != nil:
		h.Log.Error("store upload", zap.String("booking_id", bookingID), zap.Error(err))
		return uploadFail(c, http.StatusInternalServerError, reservation.ReasonInternal, "could not store file")
	}

	if h.Files != nil {
		if err := h.Files.AddFile(ctx, bookingID, name); err != nil {
			h.Log.Warn("record upload", zap.String("booking_id", bookingID), zap.String("filename", name), zap.Error(err))
		}
	}
	h.Log.Info("file uploaded", zap.String("booking_id", bookingID), zap.String("filename", name))
	return c.JSON(http.StatusOK, upload.Response{Success: true, Filename: name})
}

func (h *UploadHandler) bookingExists(ctx context.Context, bookingID string) bool {
	if h.Store.HasBooking(bookingID) {
		return true
	}
	if h.Files == nil {
		return false
	}
	ok, err := h.Files.Exists(ctx, bookingID)
	if err != nil {
		h.Log.Warn("lookup booking", zap.String("booking_id", bookingID), zap.Error(err))
	}
	return ok
}

func uploadFail(c echo.Context, status int, reason, msg string) error {
	return c.JSON(status, upload.Response{Success: false, Reason: reason, Message: msg})
}
