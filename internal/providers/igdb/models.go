// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package igdb

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/autobrr/gamarr/internal/providers"
	"github.com/autobrr/gamarr/pkg/stringutils"
)

const coverURLFormat = "https://images.igdb.com/igdb/image/upload/t_cover_big/%s.jpg"

// gameFields is the projection requested for every game query.
const gameFields = "name,first_release_date,cover.image_id,genres.name,themes.name,total_rating," +
	"involved_companies.company.name,involved_companies.developer,involved_companies.publisher,similar_games.name"

type named struct {
	Name string `json:"name"`
}

type involvedCompany struct {
	Company   named `json:"company"`
	Developer bool  `json:"developer"`
	Publisher bool  `json:"publisher"`
}

type cover struct {
	ImageID string `json:"image_id"`
}

type game struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	FirstReleaseDate  int64             `json:"first_release_date"`
	Cover             *cover            `json:"cover"`
	Genres            []named           `json:"genres"`
	Themes            []named           `json:"themes"`
	TotalRating       float64           `json:"total_rating"`
	InvolvedCompanies []involvedCompany `json:"involved_companies"`
	SimilarGames      []named           `json:"similar_games"`
}

type multiResult struct {
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result"`
}

func (g game) toCandidate() providers.CandidateMetadata {
	c := providers.CandidateMetadata{
		ExternalID: strconv.FormatInt(g.ID, 10),
		Provider:   Name,
		Title:      g.Name,
		Rating:     g.TotalRating,
		Genres:     names(g.Genres),
		Themes:     names(g.Themes),
		Related:    names(g.SimilarGames),
	}
	if g.FirstReleaseDate > 0 {
		c.ReleaseYear = time.Unix(g.FirstReleaseDate, 0).UTC().Year()
	}
	if g.Cover != nil && g.Cover.ImageID != "" {
		c.Cover = fmt.Sprintf(coverURLFormat, g.Cover.ImageID)
	}
	for _, ic := range g.InvolvedCompanies {
		if ic.Developer && c.Developer == "" {
			c.Developer = ic.Company.Name
		}
		if ic.Publisher && c.Publisher == "" {
			c.Publisher = ic.Company.Name
		}
	}
	return c
}

func names(in []named) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, n := range in {
		if n.Name != "" {
			out = append(out, n.Name)
		}
	}
	return stringutils.InternAll(out)
}

func toCandidates(games []game) []providers.CandidateMetadata {
	out := make([]providers.CandidateMetadata, 0, len(games))
	for _, g := range games {
		out = append(out, g.toCandidate())
	}
	return out
}
