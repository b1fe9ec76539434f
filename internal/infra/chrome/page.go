package chrome

import "fmt"

// framePage is the document of a preview window: a canvas of exactly w x h
// CSS pixels, a loader for straight-alpha RGBA pixels and an Escape handler.
func framePage(w, h int) string {
	return fmt.Sprintf(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Zebra label %[1]dx%[2]d</title>
<style>html,body{margin:0;padding:0;overflow:hidden;background:#fff}canvas{display:block}</style>
</head>
<body>
<canvas id="label" width="%[1]d" height="%[2]d"></canvas>
<script>
(function () {
  var frame = null;
  var dismissed = false;
  var ctx = document.getElementById("label").getContext("2d");
  window.__zebraLoad = function (b64) {
    var raw = atob(b64);
    var pix = new Uint8ClampedArray(raw.length);
    for (var i = 0; i < raw.length; i++) {
      pix[i] = raw.charCodeAt(i);
    }
    frame = new ImageData(pix, %[1]d, %[2]d);
    window.__zebraPaint();
    return true;
  };
  window.__zebraPaint = function () {
    if (frame !== null) {
      ctx.putImageData(frame, 0, 0);
    }
    return dismissed;
  };
  document.addEventListener("keydown", function (e) {
    if (e.key === "Escape") {
      dismissed = true;
    }
  });
})();
</script>
</body>
</html>`, w, h)
}
