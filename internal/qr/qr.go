// Package qr は勤怠用 QR ペイロードの生成と解釈を行う。
package qr

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/tidwall/gjson"
)

const DefaultLocation = "costura_pro"

type Kind string

const (
	KindEntry Kind = "ENTRY"
	KindExit  Kind = "EXIT"
)

var ErrInvalidPayload = errors.New("qr: invalid payload")

// Payload: 現行は locationId のみ。type/uniqueId/isPermanent は旧形式
type Payload struct {
	LocationID  string `json:"locationId"`
	Type        Kind   `json:"type,omitempty"`
	UniqueID    string `json:"uniqueId,omitempty"`
	IsPermanent *bool  `json:"isPermanent,omitempty"`
}

// SingleUse: 旧形式の使い捨て QR（isPermanent=false かつ uniqueId あり）
func (p Payload) SingleUse() bool {
	return p.IsPermanent != nil && !*p.IsPermanent && p.UniqueID != ""
}

func Universal(locationID string) Payload {
	if locationID == "" {
		locationID = DefaultLocation
	}
	return Payload{LocationID: locationID}
}

// OneTime: 旧形式の使い捨て QR。uniqueId は UUID
func OneTime(locationID string, kind Kind) Payload {
	p := Universal(locationID)
	permanent := false
	p.Type = kind
	p.UniqueID = uuid.NewString()
	p.IsPermanent = &permanent
	return p
}

func Encode(p Payload) (string, error) {
	if p.LocationID == "" {
		return "", fmt.Errorf("%w: empty locationId", ErrInvalidPayload)
	}
	buf, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// Decode: locationId 必須。型違いは既定値に逃がさずエラー
func Decode(text string) (Payload, error) {
	if !gjson.Valid(text) {
		return Payload{}, fmt.Errorf("%w: not json", ErrInvalidPayload)
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return Payload{}, fmt.Errorf("%w: not an object", ErrInvalidPayload)
	}

	loc := doc.Get("locationId")
	if loc.Type != gjson.String || loc.Str == "" {
		return Payload{}, fmt.Errorf("%w: locationId is required", ErrInvalidPayload)
	}
	p := Payload{LocationID: loc.Str}

	if t := doc.Get("type"); t.Exists() {
		k := Kind(t.String())
		if t.Type != gjson.String || (k != KindEntry && k != KindExit) {
			return Payload{}, fmt.Errorf("%w: type must be ENTRY or EXIT", ErrInvalidPayload)
		}
		p.Type = k
	}
	if u := doc.Get("uniqueId"); u.Exists() {
		if u.Type != gjson.String {
			return Payload{}, fmt.Errorf("%w: uniqueId must be a string", ErrInvalidPayload)
		}
		p.UniqueID = u.Str
	}
	if perm := doc.Get("isPermanent"); perm.Exists() {
		if perm.Type != gjson.True && perm.Type != gjson.False {
			return Payload{}, fmt.Errorf("%w: isPermanent must be a boolean", ErrInvalidPayload)
		}
		b := perm.Bool()
		p.IsPermanent = &b
	}
	return p, nil
}

// PNG: size はピクセル
func PNG(p Payload, size int) ([]byte, error) {
	text, err := Encode(p)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 512
	}
	return qrcode.Encode(text, qrcode.Medium, size)
}
