package textextract

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns b as a string, reading it as Latin-1 when it is not
// valid UTF-8.
func decodeText(b []byte) (string, error) {
	b = bytes.TrimPrefix(b, utf8BOM)
	if utf8.Valid(b) {
		return string(b), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode latin-1: %w", err)
	}
	return string(out), nil
}

func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return decodeText(b)
}

func parseText(_ context.Context, path string) (string, error) {
	return readText(path)
}

// parseCSV joins every non-blank row's fields with spaces.
func parseCSV(_ context.Context, path string) (string, error) {
	text, err := readText(path)
	if err != nil {
		return "", err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows []string
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("csv: %w", err)
		}
		if strings.TrimSpace(strings.Join(fields, "")) == "" {
			continue
		}
		rows = append(rows, strings.Join(fields, " "))
	}
	return strings.Join(rows, " "), nil
}

// parseXML joins the trimmed character data of every element.
func parseXML(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d := xml.NewDecoder(f)
	d.CharsetReader = charset.NewReaderLabel
	var parts []string
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("xml: %w", err)
		}
		if cd, ok := tok.(xml.CharData); ok {
			if s := strings.TrimSpace(string(cd)); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, " "), nil
}

// parseHTML returns the visible text of a page, one space between runs.
func parseHTML(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r, err := charset.NewReader(f, "text/html")
	if err != nil {
		return "", fmt.Errorf("html charset: %w", err)
	}
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("html: %w", err)
	}
	return strings.Join(htmlText(doc), " "), nil
}

// htmlText collects text nodes depth first, skipping script and style bodies.
func htmlText(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)

	walk = func(nd *html.Node) {
		if nd.Type == html.ElementNode && (nd.Data == "script" || nd.Data == "style" || nd.Data == "noscript") {
			return
		}
		if nd.Type == html.TextNode {
			if s := strings.TrimSpace(nd.Data); s != "" {
				out = append(out, s)
			}
		}
		for c := nd.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return out
}

// parseDocconv handles the office and pdf formats. Some of them (doc, pdf,
// rtf) need docconv's external helper binaries installed.
func parseDocconv(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	res, err := docconv.Convert(f, docconv.MimeTypeByExtension(path), false)
	if err != nil {
		return "", fmt.Errorf("docconv: %w", err)
	}
	return strings.TrimSpace(res.Body), nil
}
