package inbound

import (
	"mime"
	"regexp"
)

var unsafeFileNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

const maxFileNameLen = 120

// sanitizeFileName applies the §4.6 step 5 rule: replace any character
// outside [a-zA-Z0-9._-] with '_', then cap the result at 120 bytes.
func sanitizeFileName(name string) string {
	clean := unsafeFileNameChars.ReplaceAllString(name, "_")
	if len(clean) > maxFileNameLen {
		clean = clean[:maxFileNameLen]
	}
	return clean
}

// defaultExtensions covers the media types whose mimetype does not resolve
// cleanly via mime.ExtensionsByType (notably WhatsApp's ogg/opus voice notes),
// and picks the preferred extension when a mimetype maps to several.
var defaultExtensions = map[string]string{
	"image":    ".jpg",
	"video":    ".mp4",
	"audio":    ".ogg",
	"document": ".bin",
}

// extensionFor infers a file extension from the mimetype, falling back to a
// per-media-type default when the mimetype is empty or unrecognized (§4.6 step 5).
// When the mimetype maps to several extensions and the media-type default is
// one of them, the default wins (image/jpeg gives ".jpg").
func extensionFor(mimeType, mediaType string) string {
	if mimeType != "" {
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			if def, ok := defaultExtensions[mediaType]; ok {
				for _, e := range exts {
					if e == def {
						return def
					}
				}
			}
			return exts[0]
		}
	}
	if ext, ok := defaultExtensions[mediaType]; ok {
		return ext
	}
	return ".bin"
}
