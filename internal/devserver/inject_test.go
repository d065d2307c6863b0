package devserver

import (
	"bytes"
	"testing"
)

func TestInjectLiveReloadBeforeBody(t *testing.T) {
	html := []byte("<html><body><p>Hello</p></body></html>")
	result := InjectLiveReload(html, 1313, "abc123")

	if !bytes.Contains(result, []byte("ws://")) {
		t.Error("expected WebSocket script to be injected")
	}
	if !bytes.Contains(result, []byte(":1313/__bengal/ws")) {
		t.Error("expected port 1313 in WebSocket URL")
	}
	if !bytes.Contains(result, []byte(`nonce="abc123"`)) {
		t.Error("expected nonce attribute on injected script")
	}

	bodyIdx := bytes.Index(result, []byte("</body>"))
	scriptIdx := bytes.Index(result, []byte("<script"))
	if scriptIdx == -1 || bodyIdx == -1 {
		t.Fatal("expected both <script> and </body> in result")
	}
	if scriptIdx >= bodyIdx {
		t.Error("expected script to be injected before </body>")
	}
}

func TestInjectLiveReloadMissingBody(t *testing.T) {
	html := []byte("<html><p>No body tag</p></html>")
	result := InjectLiveReload(html, 8080, "n")

	if !bytes.Contains(result, []byte(":8080/__bengal/ws")) {
		t.Error("expected port 8080 in WebSocket URL")
	}
	if !bytes.HasSuffix(result, []byte("</script>")) {
		t.Error("expected script to be appended at end when no </body> tag")
	}
}

func TestInjectLiveReloadEmptyHTML(t *testing.T) {
	result := InjectLiveReload([]byte{}, 1313, "n")
	if !bytes.Contains(result, []byte("<script")) {
		t.Error("expected script to be added even to empty HTML")
	}
}

func TestInjectScriptNoncesAddsNonceToInlineScript(t *testing.T) {
	html := []byte(`<html><head><script>alert(1)</script></head></html>`)
	out := InjectScriptNonces(html, "zzz")
	if !bytes.Contains(out, []byte(`nonce="zzz"`)) {
		t.Error("expected nonce on inline script")
	}
}

func TestInjectScriptNoncesSkipsExternalScript(t *testing.T) {
	html := []byte(`<html><head><script src="/app.js"></script></head></html>`)
	out := InjectScriptNonces(html, "zzz")
	if bytes.Contains(out, []byte(`nonce="zzz"`)) {
		t.Error("external scripts should not receive a nonce")
	}
}

func TestInjectScriptNoncesSkipsNonJSType(t *testing.T) {
	html := []byte(`<html><head><script type="application/ld+json">{}</script></head></html>`)
	out := InjectScriptNonces(html, "zzz")
	if bytes.Contains(out, []byte(`nonce="zzz"`)) {
		t.Error("non-JS script type should not receive a nonce")
	}
}

func TestInjectScriptNoncesSkipsAlreadyNonced(t *testing.T) {
	html := []byte(`<html><head><script nonce="existing">alert(1)</script></head></html>`)
	out := InjectScriptNonces(html, "zzz")
	if bytes.Contains(out, []byte(`nonce="zzz"`)) {
		t.Error("existing nonce should not be overwritten")
	}
}
