package i18n

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costura-backend/internal/platform/apierr"
)

func TestLocalize(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	assert.Equal(t, "No encontrado", tr.Localize("", "NOT_FOUND"))
	assert.Equal(t, "Not found", tr.Localize("en-US,en;q=0.9", "NOT_FOUND"))
	assert.Equal(t, "No encontrado", tr.Localize("es-PE", "NOT_FOUND"))
	assert.Equal(t, "", tr.Localize("en", "NO_SUCH_ID"))
}

func TestErrorBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tr, err := New()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Accept-Language", "en")

	tr.Error(c, apierr.ErrConflict("attendance already registered today"))

	require.Equal(t, http.StatusConflict, w.Code)
	var body apierr.ErrorDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apierr.CodeConflict, body.Error.Code)
	assert.Equal(t, "attendance already registered today", body.Error.Message)
	assert.Contains(t, body.Error.Localized, "Already registered")
}
