// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package api

import (
	"html/template"
	"net/http"

	"github.com/reelvault/reelvault/internal/catalog"
	"github.com/reelvault/reelvault/internal/logging"
)

// pageTemplate is the whole browse UI: a heading, a grid of blocks, and
// prev/next links. Each block shows its preview clip and opens either the
// tag's page or the movie's playlist.
var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="blocks">
{{range .Blocks}}<a href="{{.Href}}"><video src="{{.ClipURL}}" muted loop></video><span>{{.Title}}</span></a>
{{end}}</div>
<nav>
{{if .PreviousURL}}<a href="{{.PreviousURL}}">previous</a>{{end}}
{{if .NextURL}}<a href="{{.NextURL}}">next</a>{{end}}
</nav>
</body>
</html>
`))

type pageView struct {
	Title       string
	Blocks      []blockView
	PreviousURL string
	NextURL     string
}

type blockView struct {
	Title   string
	Href    string
	ClipURL string
}

func (h *Handler) renderPage(w http.ResponseWriter, page catalog.Page) {
	view := pageView{
		Title:       page.Title,
		PreviousURL: page.PreviousURL,
		NextURL:     page.NextURL,
	}
	for _, b := range page.Blocks {
		bv := blockView{
			Title:   b.Title,
			ClipURL: ClipURL(h.port, b.MovieID, h.secret),
		}
		if b.TagID != "" {
			bv.Href = TagPageURL(h.port, b.TagID, 1, h.secret)
		} else {
			bv.Href = PlaylistURL(h.port, b.MovieID, h.secret)
		}
		view.Blocks = append(view.Blocks, bv)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := pageTemplate.Execute(w, view); err != nil {
		logging.Error().Err(err).Msg("failed to render page")
	}
}
