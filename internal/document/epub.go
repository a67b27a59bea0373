package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// minChapterLen drops navigation and copyright stubs.
const minChapterLen = 50

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// extractEPUB converts the spine documents to markdown in reading order.
// Books without a readable package file fall back to every HTML entry in
// archive name order.
func extractEPUB(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open epub: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	order := spineOrder(files)
	if len(order) == 0 {
		for name := range files {
			if isHTML(name) {
				order = append(order, name)
			}
		}
		sort.Strings(order)
	}

	chunks := make([]string, 0, len(order))
	for _, name := range order {
		f, ok := files[name]
		if !ok {
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			continue
		}
		md, err := htmltomd.ConvertString(string(raw))
		if err != nil {
			continue
		}
		if md = strings.TrimSpace(md); len(md) > minChapterLen {
			chunks = append(chunks, md)
		}
	}
	return strings.Join(chunks, "\n\n"), nil
}

func spineOrder(files map[string]*zip.File) []string {
	var container epubContainer
	if err := decodeZipXML(files["META-INF/container.xml"], &container); err != nil || len(container.Rootfiles) == 0 {
		return nil
	}
	opfPath := container.Rootfiles[0].FullPath

	var pkg epubPackage
	if err := decodeZipXML(files[opfPath], &pkg); err != nil {
		return nil
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		if strings.Contains(item.MediaType, "html") || isHTML(item.Href) {
			hrefs[item.ID] = path.Join(path.Dir(opfPath), item.Href)
		}
	}

	order := make([]string, 0, len(pkg.Spine))
	for _, ref := range pkg.Spine {
		if href, ok := hrefs[ref.IDRef]; ok {
			order = append(order, href)
		}
	}
	return order
}

func decodeZipXML(f *zip.File, v any) error {
	if f == nil {
		return fmt.Errorf("missing file")
	}
	raw, err := readZipFile(f)
	if err != nil {
		return err
	}
	return xml.Unmarshal(raw, v)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func isHTML(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".xhtml" || ext == ".html" || ext == ".htm"
}
