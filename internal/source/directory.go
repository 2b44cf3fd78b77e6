// Package source lists and loads documents from a directory of plain-text and HTML
// files.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/MorganRO8/LoA-sub000/constants"
	"github.com/MorganRO8/LoA-sub000/internal/common"
	"github.com/MorganRO8/LoA-sub000/internal/inference"
)

// Document is one already-lowered document: its id, text and optional images.
type Document struct {
	ID     string
	Path   string
	Text   string
	Images []inference.Image
}

// Directory serves the documents directly inside one directory. A document's id is its
// file name; images live in a sibling "<stem>_images" directory.
type Directory struct {
	root          string
	includeHidden bool
	logger        *slog.Logger
}

func NewDirectory(root string, includeHidden bool, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{root: root, includeHidden: includeHidden, logger: logger}
}

// List returns the ids of every document file, sorted by name.
func (d *Directory) List(ctx context.Context) ([]string, error) {
	if strings.TrimSpace(d.root) == "" {
		return nil, fmt.Errorf("source directory is required")
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !d.isDocument(e.Name()) {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	d.logger.Debug("source.listed", "root", d.root, "documents", len(ids))
	return ids, nil
}

// Load reads one document. HTML is reduced to its visible text.
func (d *Directory) Load(ctx context.Context, id string) (Document, error) {
	if id != filepath.Base(id) {
		return Document{}, fmt.Errorf("invalid document id %q", id)
	}
	path := filepath.Join(d.root, id)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, common.NewAppError("NOT_FOUND", "document "+id, common.ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("read document %s: %w", id, err)
	}

	text := string(raw)
	if constants.IsHTMLExt(filepath.Ext(id)) {
		text, err = HTMLText(string(raw))
		if err != nil {
			return Document{}, fmt.Errorf("convert %s: %w", id, err)
		}
	}

	images, err := d.images(ctx, id)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Path: path, Text: text, Images: images}, nil
}

func (d *Directory) images(ctx context.Context, id string) ([]inference.Image, error) {
	stem := strings.TrimSuffix(id, filepath.Ext(id))
	dir := filepath.Join(d.root, stem+constants.ImageDirSuffix)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list images for %s: %w", id, err)
	}

	var images []inference.Image
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ext := constants.NormalizeExt(filepath.Ext(e.Name()))
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, ok := constants.ImageExtensions[ext]; !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", e.Name(), err)
		}
		images = append(images, inference.Image{Name: e.Name(), MIMEType: mimeFor(ext), Data: data})
	}
	return images, nil
}

func mimeFor(ext string) string {
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		return mt
	}
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

const blockSelector = "h1,h2,h3,h4,h5,h6,p,li,pre,blockquote,caption,figcaption,tr,dt,dd"

// HTMLText returns the readable text of an HTML page, one block element per line.
// Scripts, styles and navigation chrome are dropped.
func HTMLText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script,style,noscript,nav,header,footer").Remove()

	var lines []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Only leaf blocks, so nested blocks are not emitted twice.
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		var text string
		if goquery.NodeName(s) == "tr" {
			var cells []string
			s.Find("th,td").Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, normalizeText(c.Text()))
			})
			text = strings.Join(cells, " | ")
		} else {
			text = normalizeText(s.Text())
		}
		if text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		return normalizeText(doc.Text()), nil
	}
	return strings.Join(lines, "\n"), nil
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
