// Package mimesniff describes a source file: its format is taken from its
// extension, and its broad category from content sniffing, falling back to
// the extension.
package mimesniff

import (
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"github.com/uniconv/uniconv/pkg/etl"
)

var extensionCategory = map[string]etl.Category{
	"jpg": etl.CategoryImage, "jpeg": etl.CategoryImage, "png": etl.CategoryImage,
	"heic": etl.CategoryImage, "gif": etl.CategoryImage, "webp": etl.CategoryImage,
	"bmp": etl.CategoryImage, "tiff": etl.CategoryImage, "avif": etl.CategoryImage,

	"mp4": etl.CategoryVideo, "mov": etl.CategoryVideo, "avi": etl.CategoryVideo,
	"mkv": etl.CategoryVideo, "webm": etl.CategoryVideo,

	"mp3": etl.CategoryAudio, "wav": etl.CategoryAudio, "flac": etl.CategoryAudio,
	"aac": etl.CategoryAudio, "ogg": etl.CategoryAudio,

	"pdf": etl.CategoryDocument, "docx": etl.CategoryDocument, "doc": etl.CategoryDocument,
	"txt": etl.CategoryDocument, "md": etl.CategoryDocument, "odt": etl.CategoryDocument,
}

// Sniff inspects the file at path and returns its FileInfo, using content
// sniffing first and the file extension as a fallback when the sniffed MIME
// type doesn't map to a known category.
func Sniff(path string) (etl.FileInfo, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return etl.FileInfo{}, errors.Wrapf(err, "sniffing %s", path)
	}

	format := extensionOf(path)
	category := categoryFromMIME(mtype)
	if category == etl.CategoryUnknown {
		category = extensionCategory[format]
	}

	info := etl.FileInfo{
		Path:     path,
		Format:   format,
		MimeType: mtype.String(),
		Category: category,
	}
	if fi, statErr := os.Stat(path); statErr == nil {
		info.Size = fi.Size()
	}
	return info, nil
}

// CategoryForExtension returns the best-guess category for a bare
// extension/target name, used when no source file is available to sniff
// (e.g. resolving a target format name alone).
func CategoryForExtension(ext string) etl.Category {
	if c, ok := extensionCategory[normalizeExt(ext)]; ok {
		return c
	}
	return etl.CategoryUnknown
}

func categoryFromMIME(mtype *mimetype.MIME) etl.Category {
	for m := mtype; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "image/"):
			return etl.CategoryImage
		case strings.HasPrefix(m.String(), "video/"):
			return etl.CategoryVideo
		case strings.HasPrefix(m.String(), "audio/"):
			return etl.CategoryAudio
		case strings.HasPrefix(m.String(), "application/pdf"),
			strings.HasPrefix(m.String(), "text/"),
			strings.Contains(m.String(), "document"):
			return etl.CategoryDocument
		}
	}
	return etl.CategoryUnknown
}

func extensionOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	return normalizeExt(path[idx+1:])
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
