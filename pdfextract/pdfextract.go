// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pdfextract turns PDF bytes into page-indexed text runs (§6.7).
// Accepts an in-memory byte slice rather than a file path, since the core
// never touches the filesystem for source material.
package pdfextract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/aurelius-labs/tutorcore/coreerrors"
)

// Page is one page's extracted plain text.
type Page struct {
	Number int
	Text   string
}

// Extract parses pdfBytes and returns one Page per page that produced
// non-blank text. A malformed or unreadable PDF returns ErrCorruptSource;
// no partial result is returned in that case (§4.R failure semantics).
func Extract(ctx context.Context, pdfBytes []byte) ([]Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrCorruptSource, "pdfextract: failed to open PDF", err)
	}

	total := reader.NumPage()
	if total <= 0 {
		return nil, coreerrors.New(coreerrors.ErrCorruptSource, "pdfextract: PDF has no pages")
	}

	pages := make([]Page, 0, total)
	for n := 1; n <= total; n++ {
		select {
		case <-ctx.Done():
			return nil, coreerrors.Wrap(coreerrors.ErrTimeout, "pdfextract: cancelled", ctx.Err())
		default:
		}

		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.ErrCorruptSource, fmt.Sprintf("pdfextract: page %d unreadable", n), err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: n, Text: text})
	}

	if len(pages) == 0 {
		return nil, coreerrors.New(coreerrors.ErrCorruptSource, "pdfextract: PDF produced no extractable text")
	}
	return pages, nil
}
