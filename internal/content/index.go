package content

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
)

// indexTitle is the fixed page title the verification step checks for.
const indexTitle = "Course Library"

// Indexer renders the library index page from pack descriptions and
// verifies the deployed result.
type Indexer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewIndexer creates an Indexer. A nil logger falls back to slog.Default.
func NewIndexer(cfg *config.Config, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{cfg: cfg, logger: logger}
}

// Generate writes index.html under the content root, one section per pack
// description, and verifies the written page parses back with the expected
// title. A pack whose description fails to render is skipped with a log.
func (ix *Indexer) Generate() error {
	root := ix.cfg.Paths.ContentRoot
	packs, err := Discover(root)
	if err != nil {
		return err
	}

	md := goldmark.New()
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head><title>" + indexTitle + "</title></head>\n<body>\n")
	page.WriteString("<h1>" + indexTitle + "</h1>\n")

	sections := 0
	for _, pack := range packs {
		description, ok := pack.Description()
		if !ok {
			continue
		}
		var rendered bytes.Buffer
		if err := md.Convert(description, &rendered); err != nil {
			ix.logger.Warn("pack description failed to render, skipping",
				logfields.Pack(pack.Name), logfields.Error(err))
			continue
		}
		page.WriteString(`<section class="pack" id="` + html.EscapeString(pack.Name) + "\">\n")
		page.WriteString("<h2>" + html.EscapeString(pack.Name) + "</h2>\n")
		page.Write(rendered.Bytes())
		page.WriteString("</section>\n")
		sections++
	}
	page.WriteString("</body>\n</html>\n")

	indexPath := filepath.Join(root, "index.html")
	if err := os.WriteFile(indexPath, page.Bytes(), 0o644); err != nil {
		return foundation.BuildError("writing library index").
			WithCause(err).
			WithContext(foundation.Fields{"path": indexPath}).
			Build()
	}

	if err := ix.verify(indexPath); err != nil {
		return err
	}
	ix.logger.Info("library index generated",
		logfields.Path(indexPath), slog.Int("packs", sections))
	return nil
}

// verify re-reads the deployed page and checks it parses with the expected
// title, catching truncated or mangled writes.
func (ix *Indexer) verify(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path derived from configured content root
	if err != nil {
		return foundation.BuildError("reading back library index").
			WithCause(err).
			WithContext(foundation.Fields{"path": path}).
			Build()
	}
	defer func() { _ = f.Close() }()

	title, err := extractTitle(f)
	if err != nil {
		return foundation.BuildError("parsing library index").
			WithCause(err).
			WithContext(foundation.Fields{"path": path}).
			Build()
	}
	if title != indexTitle {
		return foundation.BuildError("library index verification failed").
			WithContext(foundation.Fields{"path": path, "title": title}).
			Build()
	}
	return nil
}

// extractTitle parses HTML and returns the first <title> text.
func extractTitle(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			title = strings.TrimSpace(textContent(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title, nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(textContent(c))
	}
	return text.String()
}
