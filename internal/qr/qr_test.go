package qr

import (
	"bytes"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costura-backend/internal/platform/i18n"
)

func TestUniversalRoundTrip(t *testing.T) {
	text, err := Encode(Universal(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"locationId":"costura_pro"}`, text)

	p, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, DefaultLocation, p.LocationID)
	assert.False(t, p.SingleUse())
}

func TestOneTime(t *testing.T) {
	p := OneTime("taller", KindEntry)
	text, err := Encode(p)
	require.NoError(t, err)

	got, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, KindEntry, got.Type)
	assert.Equal(t, p.UniqueID, got.UniqueID)
	assert.True(t, got.SingleUse())

	other := OneTime("taller", KindEntry)
	assert.NotEqual(t, p.UniqueID, other.UniqueID)
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"not json":        `hello`,
		"array":           `[1,2]`,
		"missing":         `{"type":"ENTRY"}`,
		"empty location":  `{"locationId":""}`,
		"number location": `{"locationId":7}`,
		"bad type":        `{"locationId":"x","type":"LUNCH"}`,
		"bad permanent":   `{"locationId":"x","isPermanent":"no"}`,
		"bad unique":      `{"locationId":"x","uniqueId":12}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(text)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestPNG(t *testing.T) {
	buf, err := PNG(Universal("costura_pro"), 256)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())

	_, err = PNG(Payload{}, 256)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestRenderHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tr, err := i18n.New()
	require.NoError(t, err)
	r := gin.New()
	RegisterAdminRoutes(r, "taller", tr)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/qr?size=128", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	_, err = png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, w.Header().Get("X-QR-Unique-Id"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/qr?kind=ENTRY", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-QR-Unique-Id"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/qr?kind=LUNCH", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/qr?size=9", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
