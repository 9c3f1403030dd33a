package references

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagenamer/internal/log"
	"imagenamer/pkg/types"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func touchImage(t *testing.T, path string) string {
	t.Helper()
	return writeFile(t, path, "img")
}

func TestScanSyntaxes(t *testing.T) {
	tests := []struct {
		name    string
		image   string
		doc     string
		want    string
		refType types.RefType
	}{
		{"standard image", "test.png", "# Test\n![Alt text](test.png)\n", "![Alt text](test.png)", types.RefImage},
		{"standard link", "image.jpg", "[Link text](image.jpg)", "[Link text](image.jpg)", types.RefLink},
		{"wiki embed", "diagram.png", "![[diagram.png]]\n", "![[diagram.png]]", types.RefWikiEmbed},
		{"wiki embed with alias", "photo.jpg", "![[photo.jpg|My Photo]]\n", "![[photo.jpg|My Photo]]", types.RefWikiEmbed},
		{"wiki link", "chart.png", "[[chart.png]]\n", "[[chart.png]]", types.RefWikiLink},
		{"wiki link with alias", "graph.svg", "[[graph.svg|See the graph]]\n", "[[graph.svg|See the graph]]", types.RefWikiLink},
		{"stem-only wiki embed", "document.png", "![[document]]\n", "![[document]]", types.RefWikiEmbed},
		{"empty alt text", "image.png", "![](image.png)\n", "![](image.png)", types.RefImage},
		{"image with title", "image.png", "![x](image.png \"A caption\")\n", "![x](image.png \"A caption\")", types.RefImage},
		{"angle bracket target", "my photo.png", "![x](<my photo.png>)\n", "![x](<my photo.png>)", types.RefImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			img := touchImage(t, filepath.Join(dir, tt.image))
			doc := writeFile(t, filepath.Join(dir, "doc.md"), tt.doc)

			refs, err := Scan(img, dir, false)
			require.NoError(t, err)
			require.Len(t, refs, 1)
			assert.Equal(t, doc, refs[0].FilePath)
			assert.Equal(t, tt.want, refs[0].OriginalText)
			assert.Equal(t, tt.refType, refs[0].Type)
			assert.NotNil(t, refs[0].Capture)
		})
	}
}

func TestScanLineNumbers(t *testing.T) {
	dir := t.TempDir()
	img := touchImage(t, filepath.Join(dir, "test.png"))
	writeFile(t, filepath.Join(dir, "test.md"), "# Test\n![Alt text](test.png)\n")

	refs, err := Scan(img, dir, false)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, 2, refs[0].LineNumber)
	assert.Equal(t, 1, refs[0].Column)
}

func TestScanMultipleInSameFile(t *testing.T) {
	dir := t.TempDir()
	img := touchImage(t, filepath.Join(dir, "image.png"))
	writeFile(t, filepath.Join(dir, "multi.md"),
		"![First](image.png)\n"+
			"Some text\n"+
			"![[image.png]]\n"+
			"[Link](image.png)\n")

	refs, err := Scan(img, dir, false)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, 1, refs[0].LineNumber)
	assert.Equal(t, types.RefImage, refs[0].Type)
	assert.Equal(t, 3, refs[1].LineNumber)
	assert.Equal(t, types.RefWikiEmbed, refs[1].Type)
	assert.Equal(t, 4, refs[2].LineNumber)
	assert.Equal(t, types.RefLink, refs[2].Type)
}

func TestScanOrdersByColumnWithinLine(t *testing.T) {
	dir := t.TempDir()
	img := touchImage(t, filepath.Join(dir, "a.png"))
	writeFile(t, filepath.Join(dir, "doc.md"), "see [[a]] and [link](a.png) then ![img](a.png)\n")

	refs, err := Scan(img, dir, false)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, types.RefWikiLink, refs[0].Type)
	assert.Equal(t, types.RefLink, refs[1].Type)
	assert.Equal(t, types.RefImage, refs[2].Type)
	assert.Less(t, refs[0].Column, refs[1].Column)
	assert.Less(t, refs[1].Column, refs[2].Column)
}

func TestScanMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	img := touchImage(t, filepath.Join(dir, "shared.png"))
	f1 := writeFile(t, filepath.Join(dir, "doc1.md"), "![Image](shared.png)\n")
	f2 := writeFile(t, filepath.Join(dir, "doc2.md"), "![[shared.png]]\n")

	refs, err := Scan(img, dir, false)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, f1, refs[0].FilePath, "documents come in lexical order")
	assert.Equal(t, f2, refs[1].FilePath)
}

func TestScanRecursion(t *testing.T) {
	dir := t.TempDir()
	img := touchImage(t, filepath.Join(dir, "nested.png"))
	doc := writeFile(t, filepath.Join(dir, "subfolder", "nested.md"), "![Nested](nested.png)\n")

	t.Run("enabled", func(t *testing.T) {
		refs, err := Scan(img, dir, true)
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, doc, refs[0].FilePath)
	})

	t.Run("disabled", func(t *testing.T) {
		refs, err := Scan(img, dir, false)
		require.NoError(t, err)
		assert.Empty(t, refs)
	})
}

func TestScanNoMatches(t *testing.T) {
	dir := t.TempDir()
	img := touchImage(t, filepath.Join(dir, "target.png"))
	touchImage(t, filepath.Join(dir, "other.png"))
	writeFile(t, filepath.Join(dir, "empty.md"), "# No images here\n")
	writeFile(t, filepath.Join(dir, "doc.md"), "![Other](other.png)\n[[other]]\n")

	refs, err := Scan(img, dir, false)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestScanRelativePath(t *testing.T) {
	dir := t.TempDir()
	img := touchImage(t, filepath.Join(dir, "images", "photo.jpg"))
	writeFile(t, filepath.Join(dir, "doc.md"), "![Photo](images/photo.jpg)\n")

	refs, err := Scan(img, dir, false)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "![Photo](images/photo.jpg)", refs[0].OriginalText)
	assert.Equal(t, "images/photo.jpg", refs[0].ImagePath)
}

func TestScanPathResolution(t *testing.T) {
	dir := t.TempDir()
	img := touchImage(t, filepath.Join(dir, "assets", "photo.jpg"))
	// The last segment differs, so only path resolution can match.
	require.NoError(t, os.Symlink(filepath.Join(dir, "assets", "photo.jpg"), filepath.Join(dir, "assets", "alias.jpg")))
	writeFile(t, filepath.Join(dir, "notes", "doc.md"), "![A](../assets/alias.jpg)\n![B](../assets/missing.jpg)\n")

	refs, err := Scan(img, dir, true)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "![A](../assets/alias.jpg)", refs[0].OriginalText)
}

func TestScanDistinguishesEmbedsFromLinks(t *testing.T) {
	dir := t.TempDir()
	img := touchImage(t, filepath.Join(dir, "test.png"))
	writeFile(t, filepath.Join(dir, "mixed.md"), "![[test.png]]\n[[test.png]]\n![Image](test.png)\n[Link](test.png)\n")

	refs, err := Scan(img, dir, false)
	require.NoError(t, err)
	require.Len(t, refs, 4)
	assert.Equal(t, types.RefWikiEmbed, refs[0].Type)
	assert.Equal(t, types.RefWikiLink, refs[1].Type)
	assert.Equal(t, types.RefImage, refs[2].Type)
	assert.Equal(t, types.RefLink, refs[3].Type)
}

func TestScanURLEncoded(t *testing.T) {
	encoded := "![One](Screenshot%202025-11-02%20at%201.00.29%E2%80%AFPM.png)"

	t.Run("narrow no-break space in filename", func(t *testing.T) {
		dir := t.TempDir()
		img := touchImage(t, filepath.Join(dir, "Screenshot 2025-11-02 at 1.00.29\u202fPM.png"))
		writeFile(t, filepath.Join(dir, "doc.md"), encoded+"\n")

		refs, err := Scan(img, dir, false)
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, encoded, refs[0].OriginalText)
		assert.Equal(t, types.RefImage, refs[0].Type)
	})

	t.Run("plain space in filename", func(t *testing.T) {
		dir := t.TempDir()
		img := touchImage(t, filepath.Join(dir, "Screenshot 2025-11-02 at 1.00.29 PM.png"))
		writeFile(t, filepath.Join(dir, "doc.md"), encoded+"\n")

		refs, err := Scan(img, dir, false)
		require.NoError(t, err)
		require.Len(t, refs, 1)
	})

	t.Run("encoded spaces", func(t *testing.T) {
		dir := t.TempDir()
		img := touchImage(t, filepath.Join(dir, "my photo.jpg"))
		writeFile(t, filepath.Join(dir, "spaces.md"), "![Photo](my%20photo.jpg)\n")

		refs, err := Scan(img, dir, false)
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, types.RefImage, refs[0].Type)
	})
}

func TestScanSkipsExcludedAndHiddenDirs(t *testing.T) {
	dir := t.TempDir()
	img := touchImage(t, filepath.Join(dir, "a.png"))
	writeFile(t, filepath.Join(dir, ".git", "x.md"), "![](a.png)\n")
	writeFile(t, filepath.Join(dir, ".image_namer", "y.md"), "![](a.png)\n")
	writeFile(t, filepath.Join(dir, "drafts", "z.md"), "![](a.png)\n")
	writeFile(t, filepath.Join(dir, "notes", "keep.md"), "![](a.png)\n")
	writeFile(t, filepath.Join(dir, "notes", "skip.tmp.md"), "![](a.png)\n")

	s, err := NewScanner(WithExclude("drafts", "**.tmp.md"))
	require.NoError(t, err)

	refs, err := s.Scan(img, dir, true)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, filepath.Join(dir, "notes", "keep.md"), refs[0].FilePath)
}

func TestScanSkipsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	img := touchImage(t, filepath.Join(dir, "a.png"))
	writeFile(t, filepath.Join(dir, "bad.md"), "![](a.png)\xff\xfe\n")
	writeFile(t, filepath.Join(dir, "good.md"), "![](a.png)\n")

	refs, err := Scan(img, dir, false)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, filepath.Join(dir, "good.md"), refs[0].FilePath)
}

func TestScanRootErrors(t *testing.T) {
	dir := t.TempDir()
	img := touchImage(t, filepath.Join(dir, "a.png"))

	_, err := Scan(img, filepath.Join(dir, "missing"), true)
	assert.Error(t, err)

	_, err = Scan(img, img, true)
	assert.Error(t, err)

	_, err = NewScanner(WithExclude("[unclosed"))
	assert.Error(t, err)
}

func TestScanLineGrammarOverlap(t *testing.T) {
	spans := scanLine("![a [b](c.png)")
	require.Len(t, spans, 1, "the link inside the image span is not counted twice")
	assert.Equal(t, types.RefImage, spans[0].kind)

	spans = scanLine("x[[note]] ![[pic.png|alias]]")
	require.Len(t, spans, 2)
	assert.Equal(t, types.RefWikiLink, spans[0].kind)
	assert.Equal(t, types.WikiCapture{Target: "note"}, spans[0].capture)
	assert.Equal(t, types.RefWikiEmbed, spans[1].kind)
	assert.Equal(t, types.WikiCapture{Target: "pic.png", Alias: "alias", HasAlias: true}, spans[1].capture)
}

func TestParseAndRenderRoundTrip(t *testing.T) {
	cases := map[types.RefType][]string{
		types.RefImage:     {"![](a.png)", "![alt](dir/a.png)", `![t](a.png "title")`, "![t](<a b.png> 'x')", "![t](my photo.png)"},
		types.RefLink:      {"[text](a.png)", "[t](../x/a%20b.png)"},
		types.RefWikiEmbed: {"![[a.png]]", "![[a|Alias Text]]"},
		types.RefWikiLink:  {"[[a.png]]", "[[a.png|alias]]"},
	}
	for kind, texts := range cases {
		for _, text := range texts {
			c, err := ParseReference(kind, text)
			require.NoError(t, err, text)
			out, err := Render(kind, c)
			require.NoError(t, err)
			assert.Equal(t, text, out)
		}
	}

	_, err := ParseReference(types.RefImage, "not a ref")
	assert.Error(t, err)
	_, err = ParseReference(types.RefImage, "![a](b.png) trailing")
	assert.Error(t, err)
	_, err = Render(types.RefImage, types.WikiCapture{Target: "a"})
	assert.Error(t, err)
}

func TestSplitTarget(t *testing.T) {
	assert.Equal(t, types.StandardCapture{Text: "a", Target: "x.png", Title: ` "T"`}, splitTarget("a", `x.png "T"`))
	assert.Equal(t, types.StandardCapture{Text: "a", Target: "x y.png", Title: "", Angle: true}, splitTarget("a", "<x y.png>"))
	assert.Equal(t, types.StandardCapture{Text: "a", Target: "x y.png"}, splitTarget("a", "x y.png"))
}

func TestFoldName(t *testing.T) {
	assert.Equal(t, "a b", foldName("a\u202fb"))
	assert.Equal(t, "a b", foldName("a  \tb"))
	assert.True(t, sameName("my%20photo.jpg", "my photo.jpg"))
	assert.True(t, sameName("bad%zz.png", "bad%zz.png"))
	assert.False(t, sameName("other.png", "my photo.jpg"))
}

func TestScanAndRewriteAreLogged(t *testing.T) {
	var buf bytes.Buffer
	log.Configure(log.WithOutput(&buf), log.WithJSON(), log.WithLevel("debug"))
	log.SetDebug(true)
	t.Cleanup(func() {
		log.Configure()
		log.SetDebug(false)
	})

	root := t.TempDir()
	doc := writeFile(t, filepath.Join(root, "notes.md"), "![a](a.png) and [[a.png]]\n")
	refs, err := Scan(filepath.Join(root, "a.png"), root, true)
	require.NoError(t, err)
	_, err = Rewrite(refs, "a.png", "b.png")
	require.NoError(t, err)

	entries := map[string]map[string]interface{}{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry), string(line))
		entries[entry["message"].(string)] = entry
	}

	scan := entries["reference scan finished"]
	require.NotNil(t, scan, buf.String())
	assert.Equal(t, "a.png", scan["image"])
	assert.Equal(t, root, scan["root"])
	assert.Equal(t, float64(2), scan["count"])

	rewrite := entries["references rewritten"]
	require.NotNil(t, rewrite, buf.String())
	assert.Equal(t, doc, rewrite["document"])
	assert.Equal(t, float64(2), rewrite["replacements"])
}
