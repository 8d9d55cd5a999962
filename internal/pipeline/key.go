package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ContentHash returns the hex SHA-256 of an encoded image.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RequestKey builds the cache key "<pipelineVersion>:<contentHash>:<profileVersion>".
// Any change to pipeline behavior must bump pipelineVersion so stale results
// are not served.
func RequestKey(pipelineVersion string, image []byte, profileVersion int) string {
	return KeyFromHash(pipelineVersion, ContentHash(image), profileVersion)
}

// KeyFromHash is RequestKey for a caller that already hashed the image.
func KeyFromHash(pipelineVersion, contentHash string, profileVersion int) string {
	if pipelineVersion == "" {
		pipelineVersion = DefaultPipelineVersion
	}
	if profileVersion <= 0 {
		profileVersion = DefaultProfileVersion
	}
	return fmt.Sprintf("%s:%s:%d", pipelineVersion, contentHash, profileVersion)
}

// VariantVersion extends the pipeline version with the request settings that
// change the recognized result: the effective language set and both stage
// toggles, e.g. "v3+kor+eng+roi+rot". Blank languages fall back to
// c.Languages, as Run does.
func (c Config) VariantVersion(langs []string, opts Options) string {
	version := c.PipelineVersion
	if version == "" {
		version = DefaultPipelineVersion
	}
	if len(langs) == 0 {
		langs = c.Languages
	}

	parts := []string{version}
	for _, l := range langs {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	if opts.SmartROI {
		parts = append(parts, "roi")
	} else {
		parts = append(parts, "full")
	}
	if opts.AutoRotate {
		parts = append(parts, "rot")
	} else {
		parts = append(parts, "norot")
	}
	return strings.Join(parts, "+")
}
