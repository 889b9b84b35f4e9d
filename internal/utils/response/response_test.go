package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smartcampus/campus-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	FullName    string `json:"full_name" validate:"required"`
	Category    string `json:"category"  validate:"required,oneof=tech sports"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	PresidentID string `json:"president_id" validate:"omitempty,uuid"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var got Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	return got
}

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		ok      bool
		wantErr string
	}{
		{"valid", `{"full_name":"Asha","category":"tech"}`, true, ""},
		{"empty body", ``, false, "request body is empty"},
		{"malformed", `{"full_name":`, false, "unexpected EOF"},
		{"missing and enum", `{"category":"chess","image_url":"nope"}`, false,
			"field full_name is required, field category must be one of [tech sports], field image_url must be a valid URL"},
		{"initialism id", `{"full_name":"Asha","category":"tech","president_id":"42"}`, false,
			"field president_id must be a valid id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var p payload
			ok := ReadJSON(w, r, &p)

			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, "Asha", p.FullName)
				return
			}
			assert.Equal(t, http.StatusBadRequest, w.Code)
			got := decodeEnvelope(t, w)
			assert.Equal(t, StatusError, got.Status)
			assert.Equal(t, tt.wantErr, got.Error)
		})
	}
}

func TestStoreError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("GetEvent: %w", storage.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("JoinClub: %w", storage.ErrConflict), http.StatusConflict},
		{storage.ErrEventFull, http.StatusConflict},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		StoreError(w, tt.err)
		assert.Equal(t, tt.status, w.Code, tt.err.Error())
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, tt.err.Error(), decodeEnvelope(t, w).Error)
	}
}
