package token

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/fxamacker/cbor/v2"
)

// MaxIconSize is the exclusive upper bound on an embedded icon.
const MaxIconSize = 1_000_000

// glyphMagic is the push that precedes a Glyph payload in a reveal input.
var glyphMagic = []byte("gly")

// Glyph decode errors.
var (
	ErrNoPayload = errors.New("no glyph payload")
	ErrNoReveal  = errors.New("reveal input missing")
)

// iconTypes maps the accepted embed content types to file extensions.
var iconTypes = map[string]string{
	"text/plain":    "txt",
	"image/jpeg":    "jpeg",
	"image/png":     "png",
	"image/webp":    "webp",
	"image/gif":     "gif",
	"image/avif":    "avif",
	"image/svg+xml": "svg",
}

// Embed is an inline file in a Glyph payload.
type Embed struct {
	Type string `cbor:"t"`
	Data []byte `cbor:"b"`
}

// Payload is the decoded metadata of a Glyph token.
type Payload struct {
	Ticker string
	Name   string
	Icon   *Embed
}

// rawPayload decodes only the fields the wallet reads. main is kept raw so
// a malformed embed drops the icon instead of the whole token.
type rawPayload struct {
	Ticker string          `cbor:"ticker"`
	Name   string          `cbor:"name"`
	Main   cbor.RawMessage `cbor:"main"`
}

// IconExtension returns the file extension for an accepted content type.
func IconExtension(contentType string) (string, bool) {
	ext, ok := iconTypes[contentType]
	return ext, ok
}

// acceptIcon reports whether an embed may be stored as an icon.
func acceptIcon(e *Embed) bool {
	if e == nil || len(e.Data) >= MaxIconSize {
		return false
	}
	_, ok := iconTypes[e.Type]
	return ok
}

// FindPayload returns the data push that follows the "gly" push in an
// unlocking script.
func FindPayload(unlocking []byte) ([]byte, error) {
	tok := txscript.MakeScriptTokenizer(0, unlocking)
	found := false
	for tok.Next() {
		data := tok.Data()
		if found {
			if data == nil {
				return nil, ErrNoPayload
			}
			return data, nil
		}
		if bytes.Equal(data, glyphMagic) {
			found = true
		}
	}
	if err := tok.Err(); err != nil {
		return nil, fmt.Errorf("tokenize unlocking script: %w", err)
	}
	return nil, ErrNoPayload
}

// DecodePayload decodes a CBOR Glyph payload. An icon is kept only when
// its content type is on the allow-list and it is below MaxIconSize.
func DecodePayload(data []byte) (*Payload, error) {
	var raw rawPayload
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode glyph payload: %w", err)
	}
	p := &Payload{Ticker: raw.Ticker, Name: raw.Name}
	if len(raw.Main) > 0 {
		var e Embed
		if err := cbor.Unmarshal(raw.Main, &e); err == nil && acceptIcon(&e) {
			p.Icon = &e
		}
	}
	return p, nil
}

// ParseReveal extracts the Glyph payload from a reveal input's unlocking
// script.
func ParseReveal(unlocking []byte) (*Payload, error) {
	data, err := FindPayload(unlocking)
	if err != nil {
		return nil, err
	}
	return DecodePayload(data)
}
