package devserver

import (
	"fmt"
	"regexp"
)

// liveReloadScript is injected before </body> in every HTML response. It
// opens a WebSocket to the reload endpoint, applies reload/build_error/
// heartbeat messages, and reconnects with backoff after a disconnect.
// Grounded on the teacher's internal/server/inject.go liveReloadScript,
// rewritten to speak the spec's structured JSON message shapes instead of
// a bare "reload" string.
const liveReloadScript = `<script nonce="%s">
(function() {
  var scheme = location.protocol === "https:" ? "wss:" : "ws:";
  var url = scheme + "//" + location.hostname + ":%d/__bengal/ws";
  var retry = 0;

  function connect() {
    var ws = new WebSocket(url);
    ws.onmessage = function(ev) {
      var msg;
      try { msg = JSON.parse(ev.data); } catch (e) { return; }
      if (msg.type === "reload") {
        var onlyCSS = (msg.paths || []).length > 0 && (msg.paths || []).every(function(p) {
          return p.endsWith(".css");
        });
        if (onlyCSS) {
          document.querySelectorAll("link[rel=stylesheet]").forEach(function(link) {
            var href = link.href.split("?")[0];
            link.href = href + "?t=" + Date.now();
          });
        } else {
          location.reload();
        }
      } else if (msg.type === "build_error") {
        console.error("bengal build error:", msg.errors);
      }
    };
    ws.onopen = function() { retry = 0; };
    ws.onclose = function() {
      retry++;
      setTimeout(connect, Math.min(1000 * retry, 5000));
    };
  }
  connect();
})();
</script>`

var bodyCloseRe = regexp.MustCompile(`(?i)</body>`)

// InjectLiveReload inserts the reload script before the closing </body> tag,
// or appends it if no </body> tag is present. port is the HTTP port the
// live-reload WebSocket listens on; nonce authorizes the inline script
// under the dev CSP (internal/security.DevPolicy).
func InjectLiveReload(html []byte, port int, nonce string) []byte {
	script := []byte(fmt.Sprintf(liveReloadScript, nonce, port))
	loc := bodyCloseRe.FindIndex(html)
	if loc == nil {
		return append(html, script...)
	}
	out := make([]byte, 0, len(html)+len(script))
	out = append(out, html[:loc[0]]...)
	out = append(out, script...)
	out = append(out, html[loc[0]:]...)
	return out
}

var scriptTagRe = regexp.MustCompile(`(?i)<script\b([^>]*)>`)
var hasSrcOrNonceRe = regexp.MustCompile(`(?i)\b(src|nonce)\s*=`)
var typeAttrRe = regexp.MustCompile(`(?i)\btype\s*=\s*["']?([^"'\s>]+)`)

// InjectScriptNonces adds nonce="..." to inline <script> tags that carry
// no src= and no existing nonce=, so the dev CSP's script-src can allowlist
// them without 'unsafe-inline'. Scripts with a non-JS type (e.g.
// application/ld+json) are left alone since they never execute.
func InjectScriptNonces(html []byte, nonce string) []byte {
	return scriptTagRe.ReplaceAllFunc(html, func(tag []byte) []byte {
		if hasSrcOrNonceRe.Match(tag) {
			return tag
		}
		if m := typeAttrRe.FindSubmatch(tag); m != nil {
			t := string(m[1])
			if t != "" && t != "text/javascript" && t != "application/javascript" && t != "module" {
				return tag
			}
		}
		insertion := []byte(fmt.Sprintf(` nonce="%s"`, nonce))
		closing := []byte(">")
		out := make([]byte, 0, len(tag)+len(insertion))
		out = append(out, tag[:len(tag)-len(closing)]...)
		out = append(out, insertion...)
		return append(out, closing...)
	})
}
