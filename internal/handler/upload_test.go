package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"creator_collab/internal/domain"
	apperrors "creator_collab/pkg/errors"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type part struct {
	name string
	body []byte
}

func (a *api) upload(t *testing.T, who domain.Identity, roomID string, fields map[string]string, parts ...part) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, p := range parts {
		fw, err := mw.CreateFormFile("files", p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/"+roomID+"/files", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	r.Header.Set("Authorization", "Bearer "+token(who))
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, r)
	return w
}

type uploadResponse struct {
	Files    []domain.RoomFile `json:"files"`
	Messages []domain.Message  `json:"messages"`
}

func TestFileHandler_UploadListDelete(t *testing.T) {
	req := require.New(t)
	a := newAPI(t)
	room := a.createRoom(t, gin.H{})

	// When two files are uploaded with a caption
	w := a.upload(t, maya, room.RoomID, map[string]string{"caption": "assets", "is_public": "true"},
		part{name: "Thumb.PNG", body: pngBytes},
		part{name: "notes.txt", body: []byte("shot list\n1. intro\n")},
	)

	// Then each is stored and announced as its own message
	req.Equal(http.StatusCreated, w.Code, w.Body.String())
	got := decodeBody[uploadResponse](t, w)
	req.Len(got.Files, 2)
	req.Len(got.Messages, 2)
	req.Equal(domain.FileCategoryImage, got.Files[0].FileType)
	req.Equal(domain.MessageTypeImage, got.Messages[0].Type)
	req.Equal(domain.FileCategoryDocument, got.Files[1].FileType)
	req.Equal(domain.MessageTypeFile, got.Messages[1].Type)
	req.Equal("assets", got.Messages[0].Content.Text)
	req.Equal("Thumb.PNG", got.Messages[0].Content.File.OriginalName)

	image := got.Files[0]
	onDisk := filepath.Join(a.dir, "images", image.Filename)
	req.FileExists(onDisk)

	w = a.do(t, maya, http.MethodGet, "/api/v1/rooms/"+room.RoomID+"/files", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Len(decodeBody[uploadResponse](t, w).Files, 2)

	// When the image is deleted
	w = a.do(t, maya, http.MethodDelete, "/api/v1/rooms/"+room.RoomID+"/files/"+image.Filename, nil)

	// Then the room and the disk forget it
	req.Equal(http.StatusOK, w.Code, w.Body.String())
	_, err := os.Stat(onDisk)
	req.True(os.IsNotExist(err))

	w = a.do(t, maya, http.MethodDelete, "/api/v1/rooms/"+room.RoomID+"/files/"+image.Filename, nil)
	req.Equal(http.StatusNotFound, w.Code)
}

func TestFileHandler_UploadRejects(t *testing.T) {
	a := newAPI(t)
	open := a.createRoom(t, gin.H{})
	noSharing := a.createRoom(t, gin.H{"allow_file_sharing": false})
	png := part{name: "a.png", body: pngBytes}

	tests := map[string]struct {
		who    domain.Identity
		roomID string
		fields map[string]string
		parts  []part
		status int
		kind   apperrors.Kind
	}{
		"no files": {
			who: maya, roomID: open.RoomID, fields: map[string]string{"caption": "x"},
			status: http.StatusBadRequest, kind: apperrors.KindValidation,
		},
		"too many files": {
			who: maya, roomID: open.RoomID, parts: []part{png, png, png},
			status: http.StatusBadRequest, kind: apperrors.KindValidation,
		},
		"bad is_public": {
			who: maya, roomID: open.RoomID, fields: map[string]string{"is_public": "sometimes"}, parts: []part{png},
			status: http.StatusBadRequest, kind: apperrors.KindValidation,
		},
		"disallowed type": {
			who: maya, roomID: open.RoomID, parts: []part{{name: "run.sh", body: []byte("\x7fELF\x02\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00")}},
			status: http.StatusBadRequest, kind: apperrors.KindValidation,
		},
		"not a member": {
			who: kim, roomID: open.RoomID, parts: []part{png},
			status: http.StatusForbidden, kind: apperrors.KindForbidden,
		},
		"sharing disabled": {
			who: maya, roomID: noSharing.RoomID, parts: []part{png},
			status: http.StatusForbidden, kind: apperrors.KindForbidden,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)

			w := a.upload(t, tt.who, tt.roomID, tt.fields, tt.parts...)

			req.Equal(tt.status, w.Code, w.Body.String())
			req.Equal(tt.kind, errorKind(t, w))
		})
	}
}
