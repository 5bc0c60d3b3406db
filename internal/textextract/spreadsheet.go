package textextract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// parseXLSX returns every non-empty cell of every sheet, sheets in order.
func parseXLSX(_ context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("xlsx: %w", err)
	}
	defer zr.Close()

	var shared []string
	var sheets []*zip.File
	for _, f := range zr.File {
		switch {
		case f.Name == "xl/sharedStrings.xml":
			if shared, err = sharedStrings(f); err != nil {
				return "", fmt.Errorf("xlsx shared strings: %w", err)
			}
		case strings.HasPrefix(f.Name, "xl/worksheets/") && strings.HasSuffix(f.Name, ".xml"):
			sheets = append(sheets, f)
		}
	}
	// sheet2 before sheet10.
	sort.Slice(sheets, func(i, j int) bool {
		a, b := sheets[i].Name, sheets[j].Name
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})

	var cells []string
	for _, f := range sheets {
		got, err := sheetCells(f, shared)
		if err != nil {
			return "", fmt.Errorf("xlsx %s: %w", f.Name, err)
		}
		cells = append(cells, got...)
	}
	return strings.Join(cells, " "), nil
}

// sharedStrings reads the <si> table; rich-text runs are concatenated.
func sharedStrings(f *zip.File) ([]string, error) {
	var out []string
	var cur strings.Builder
	inSI, inT := false, false
	err := walkXML(f, func(tok xml.Token) {
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				inSI = true
				cur.Reset()
			case "t":
				inT = inSI
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				out = append(out, cur.String())
				inSI = false
			case "t":
				inT = false
			}
		case xml.CharData:
			if inT {
				cur.Write(t)
			}
		}
	})
	return out, err
}

func sheetCells(f *zip.File, shared []string) ([]string, error) {
	var out []string
	var val strings.Builder
	cellType := ""
	inValue := false
	err := walkXML(f, func(tok xml.Token) {
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "c":
				cellType = ""
				val.Reset()
				for _, a := range t.Attr {
					if a.Name.Local == "t" {
						cellType = a.Value
					}
				}
			case "v", "t":
				inValue = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "v", "t":
				inValue = false
			case "c":
				s := strings.TrimSpace(val.String())
				if cellType == "s" {
					if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(shared) {
						s = strings.TrimSpace(shared[i])
					} else {
						s = ""
					}
				}
				if s != "" {
					out = append(out, s)
				}
			}
		case xml.CharData:
			if inValue {
				val.Write(t)
			}
		}
	})
	return out, err
}

// parseODS returns each text paragraph of content.xml on its own line.
func parseODS(_ context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("ods: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "content.xml" {
			continue
		}
		var paras []string
		var cur strings.Builder
		depth := 0
		err := walkXML(f, func(tok xml.Token) {
			switch t := tok.(type) {
			case xml.StartElement:
				if t.Name.Local == "p" {
					if depth == 0 {
						cur.Reset()
					}
					depth++
				}
			case xml.EndElement:
				if t.Name.Local == "p" && depth > 0 {
					depth--
					if depth == 0 {
						if s := strings.TrimSpace(cur.String()); s != "" {
							paras = append(paras, s)
						}
					}
				}
			case xml.CharData:
				if depth > 0 {
					cur.Write(t)
				}
			}
		})
		if err != nil {
			return "", fmt.Errorf("ods content: %w", err)
		}
		return strings.Join(paras, "\n"), nil
	}
	return "", errors.New("ods: content.xml not found")
}

func walkXML(f *zip.File, fn func(xml.Token)) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	d := xml.NewDecoder(rc)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(tok)
	}
}
