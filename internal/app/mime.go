package app

import (
	"log/slog"
	"mime"
)

// Distroless images have no /etc/mime.types, so the types of the embedded
// assets are registered explicitly.
var assetTypes = map[string]string{
	".css":   "text/css; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".woff2": "font/woff2",
}

func init() {
	for ext, typ := range assetTypes {
		if mime.TypeByExtension(ext) != "" {
			continue
		}
		if err := mime.AddExtensionType(ext, typ); err != nil {
			slog.Warn("register asset mime type", slog.String("ext", ext), slog.Any("error", err))
		}
	}
}
