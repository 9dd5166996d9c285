package token

import (
	"bytes"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/fxamacker/cbor/v2"
)

func glyphPayload(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	data, err := cbor.Marshal(fields)
	if err != nil {
		t.Fatalf("cbor marshal: %v", err)
	}
	return data
}

// revealScript builds <sig> <pubkey> "gly" <payload>.
func revealScript(t *testing.T, payload []byte) []byte {
	t.Helper()
	s, err := txscript.NewScriptBuilder().
		AddData(bytes.Repeat([]byte{0x30}, 71)).
		AddData(bytes.Repeat([]byte{0x02}, 33)).
		AddData(glyphMagic).
		AddFullData(payload).
		Script()
	if err != nil {
		t.Fatalf("build reveal script: %v", err)
	}
	return s
}

func TestParseReveal(t *testing.T) {
	payload := glyphPayload(t, map[string]any{
		"p":      []int{1},
		"ticker": "TST",
		"name":   "Test Token",
		"main":   map[string]any{"t": "image/png", "b": []byte{0x89, 'P', 'N', 'G'}},
	})

	p, err := ParseReveal(revealScript(t, payload))
	if err != nil {
		t.Fatalf("ParseReveal: %v", err)
	}
	if p.Ticker != "TST" || p.Name != "Test Token" {
		t.Errorf("payload = %+v", p)
	}
	if p.Icon == nil || p.Icon.Type != "image/png" || len(p.Icon.Data) != 4 {
		t.Errorf("icon = %+v, want 4-byte png", p.Icon)
	}
}

func TestParseReveal_NoMagic(t *testing.T) {
	s, _ := txscript.NewScriptBuilder().AddData([]byte{1, 2, 3}).AddData([]byte{4}).Script()
	if _, err := ParseReveal(s); !errors.Is(err, ErrNoPayload) {
		t.Errorf("error = %v, want ErrNoPayload", err)
	}
}

func TestParseReveal_MagicLast(t *testing.T) {
	s, _ := txscript.NewScriptBuilder().AddData([]byte{1}).AddData(glyphMagic).Script()
	if _, err := ParseReveal(s); !errors.Is(err, ErrNoPayload) {
		t.Errorf("error = %v, want ErrNoPayload", err)
	}
}

func TestParseReveal_MagicFollowedByOpcode(t *testing.T) {
	s, _ := txscript.NewScriptBuilder().AddData(glyphMagic).AddOp(txscript.OP_DROP).Script()
	if _, err := ParseReveal(s); !errors.Is(err, ErrNoPayload) {
		t.Errorf("error = %v, want ErrNoPayload", err)
	}
}

func TestParseReveal_MalformedCBOR(t *testing.T) {
	if _, err := ParseReveal(revealScript(t, []byte{0xff, 0x00, 0x13})); err == nil {
		t.Error("expected decode error")
	}
}

func TestParseReveal_TruncatedScript(t *testing.T) {
	// PUSHDATA1 claiming more bytes than remain.
	if _, err := ParseReveal([]byte{txscript.OP_PUSHDATA1, 0x50, 0x01}); err == nil {
		t.Error("expected tokenizer error")
	}
}

func TestDecodePayload_IconRules(t *testing.T) {
	tests := []struct {
		name     string
		main     any
		wantIcon bool
	}{
		{"png", map[string]any{"t": "image/png", "b": []byte{1}}, true},
		{"svg", map[string]any{"t": "image/svg+xml", "b": []byte("<svg/>")}, true},
		{"text", map[string]any{"t": "text/plain", "b": []byte("hi")}, true},
		{"unknown type", map[string]any{"t": "application/pdf", "b": []byte{1}}, false},
		{"just under limit", map[string]any{"t": "image/gif", "b": make([]byte, MaxIconSize-1)}, true},
		{"at limit", map[string]any{"t": "image/gif", "b": make([]byte, MaxIconSize)}, false},
		{"b not bytes", map[string]any{"t": "image/png", "b": 12345}, false},
		{"main not a map", "oops", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodePayload(glyphPayload(t, map[string]any{"ticker": "X", "main": tt.main}))
			if err != nil {
				t.Fatalf("DecodePayload: %v", err)
			}
			if (p.Icon != nil) != tt.wantIcon {
				t.Errorf("icon present = %v, want %v", p.Icon != nil, tt.wantIcon)
			}
			if p.Ticker != "X" {
				t.Errorf("ticker = %q, want X", p.Ticker)
			}
		})
	}
}

func TestIconExtension(t *testing.T) {
	tests := map[string]string{
		"image/jpeg":    "jpeg",
		"image/svg+xml": "svg",
		"text/plain":    "txt",
		"image/avif":    "avif",
	}
	for ct, want := range tests {
		got, ok := IconExtension(ct)
		if !ok || got != want {
			t.Errorf("IconExtension(%q) = %q, %v; want %q", ct, got, ok, want)
		}
	}
	if _, ok := IconExtension("video/mp4"); ok {
		t.Error("video/mp4 should not be accepted")
	}
}
