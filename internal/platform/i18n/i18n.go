package i18n

import (
	"embed"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/gin-gonic/gin"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"costura-backend/internal/platform/apierr"
)

//go:embed locales/*.toml
var locales embed.FS

// Translator: エラーコード → 利用者向け文言（既定はスペイン語）
type Translator struct {
	bundle *goi18n.Bundle
}

func New() (*Translator, error) {
	bundle := goi18n.NewBundle(language.Spanish)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, err := bundle.LoadMessageFileFS(locales, "locales/"+e.Name()); err != nil {
			return nil, fmt.Errorf("load %s: %w", e.Name(), err)
		}
	}
	return &Translator{bundle: bundle}, nil
}

// Localize: 未登録の ID は空文字
func (t *Translator) Localize(acceptLanguage, id string) string {
	if t == nil {
		return ""
	}
	loc := goi18n.NewLocalizer(t.bundle, acceptLanguage)
	msg, err := loc.Localize(&goi18n.LocalizeConfig{MessageID: id})
	if err != nil {
		return ""
	}
	return msg
}

// Error: ハンドラ共通のエラーレスポンス
func (t *Translator) Error(c *gin.Context, err error) {
	body := apierr.BodyFrom(err)
	body.Error.Localized = t.Localize(c.GetHeader("Accept-Language"), string(body.Error.Code))
	c.JSON(apierr.ToHTTPStatus(err), body)
}

// Abort: ミドルウェア用
func (t *Translator) Abort(c *gin.Context, err error) {
	body := apierr.BodyFrom(err)
	body.Error.Localized = t.Localize(c.GetHeader("Accept-Language"), string(body.Error.Code))
	c.AbortWithStatusJSON(apierr.ToHTTPStatus(err), body)
}
