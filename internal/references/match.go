package references

import (
	"net/url"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// foldName applies NFKC and collapses every run of Unicode whitespace to a
// single ASCII space, so a narrow no-break space written by macOS
// screenshots compares equal to a plain space.
func foldName(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// sameName reports whether a raw (possibly percent-encoded) name refers to
// want.
func sameName(raw, want string) bool {
	if raw == want {
		return true
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	return decoded == want || foldName(decoded) == foldName(want)
}

// lastSegment returns the part of target after the final slash and the
// byte offset where it starts.
func lastSegment(target string) (string, int) {
	i := strings.LastIndexAny(target, `/\`)
	return target[i+1:], i + 1
}

// image identifies the file a scan is looking for.
type image struct {
	name string
	stem string
	abs  string
}

func newImage(path string) (image, error) {
	abs, err := resolvePath(path)
	if err != nil {
		return image{}, err
	}
	name := filepath.Base(path)
	return image{
		name: name,
		stem: strings.TrimSuffix(name, filepath.Ext(name)),
		abs:  abs,
	}, nil
}

func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	return abs, nil
}

// matchesStandard applies the filename, decoded name and path rules to the
// target of an image or link reference found in a document under docDir.
func (img image) matchesStandard(target, docDir string) bool {
	seg, _ := lastSegment(target)
	if sameName(seg, img.name) {
		return true
	}

	decoded, err := url.PathUnescape(target)
	if err != nil {
		decoded = target
	}
	candidate := decoded
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(docDir, filepath.FromSlash(candidate))
	}
	resolved, err := resolvePath(candidate)
	if err != nil {
		return false
	}
	return resolved == img.abs
}

// matchesWiki compares a wiki target against the image name and stem.
// Wiki targets are never resolved as paths.
func (img image) matchesWiki(target string) bool {
	return sameName(target, img.name) || sameName(target, img.stem)
}
