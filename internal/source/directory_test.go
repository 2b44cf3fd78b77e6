package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorganRO8/LoA-sub000/internal/common"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDirectoryList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "b")
	writeFile(t, filepath.Join(root, "a.md"), "a")
	writeFile(t, filepath.Join(root, "c.HTML"), "<p>c</p>")
	writeFile(t, filepath.Join(root, ".hidden.txt"), "h")
	writeFile(t, filepath.Join(root, "paper.pdf"), "%PDF")
	writeFile(t, filepath.Join(root, "a_images", "fig.png"), "png")

	ids, err := NewDirectory(root, false, nil).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.txt", "c.HTML"}, ids)

	ids, err = NewDirectory(root, true, nil).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden.txt", "a.md", "b.txt", "c.HTML"}, ids)

	_, err = NewDirectory(filepath.Join(root, "missing"), false, nil).List(context.Background())
	assert.Error(t, err)
}

func TestDirectoryLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "paper.txt"), "Yield was 50%.")
	writeFile(t, filepath.Join(root, "paper_images", "fig1.png"), "png-bytes")
	writeFile(t, filepath.Join(root, "paper_images", "fig2.JPG"), "jpg-bytes")
	writeFile(t, filepath.Join(root, "paper_images", "notes.txt"), "skip")

	d := NewDirectory(root, false, nil)
	doc, err := d.Load(context.Background(), "paper.txt")
	require.NoError(t, err)
	assert.Equal(t, "paper.txt", doc.ID)
	assert.Equal(t, "Yield was 50%.", doc.Text)
	require.Len(t, doc.Images, 2)
	assert.Equal(t, "fig1.png", doc.Images[0].Name)
	assert.Equal(t, "image/png", doc.Images[0].MIMEType)
	assert.Equal(t, []byte("png-bytes"), doc.Images[0].Data)
	assert.Equal(t, "image/jpeg", doc.Images[1].MIMEType)

	_, err = d.Load(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = d.Load(context.Background(), "../escape.txt")
	assert.Error(t, err)
}

func TestHTMLText(t *testing.T) {
	html := `<html><head><style>p{}</style><script>var x = 1;</script></head>
<body><nav>Home | About</nav>
<h1>Synthesis   of A</h1>
<ul><li><p>Step one</p></li><li>Step two</li></ul>
<table><tr><th>Compound</th><th>Yield</th></tr><tr><td>A</td><td>50%</td></tr></table>
</body></html>`
	text, err := HTMLText(html)
	require.NoError(t, err)
	assert.Equal(t, "Synthesis of A\nStep one\nStep two\nCompound | Yield\nA | 50%", text)
}

func TestHTMLTextWithoutBlocks(t *testing.T) {
	text, err := HTMLText("<div>just <b>inline</b> text</div>")
	require.NoError(t, err)
	assert.Equal(t, "just inline text", text)
}
