// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torznab

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/gamarr/internal/providers"
	"github.com/autobrr/gamarr/internal/resilient"
	"github.com/autobrr/gamarr/pkg/stringutils"
)

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title           string        `xml:"title"`
	GUID            string        `xml:"guid"`
	Link            string        `xml:"link"`
	Comments        string        `xml:"comments"`
	PubDate         string        `xml:"pubDate"`
	Size            string        `xml:"size"`
	Category        []string      `xml:"category"`
	JackettIndexer  string        `xml:"jackettindexer"`
	ProwlarrIndexer string        `xml:"prowlarrindexer"`
	Enclosure       rssEnclosure  `xml:"enclosure"`
	Attrs           []torznabAttr `xml:"attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length string `xml:"length,attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Error is the <error> document torznab servers return with HTTP 200.
type Error struct {
	Code    string `xml:"code,attr"`
	Message string `xml:"description,attr"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("torznab error %s: %s", e.Code, e.Message)
}

// checkError reports an <error> document as a typed error.
// Codes 100-102 are credential problems.
func checkError(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("<?xml")) {
		if idx := bytes.Index(trimmed, []byte("?>")); idx >= 0 {
			trimmed = bytes.TrimSpace(trimmed[idx+2:])
		}
	}
	if !bytes.HasPrefix(trimmed, []byte("<error")) {
		return nil
	}

	var terr Error
	if err := xml.Unmarshal(trimmed, &terr); err != nil {
		return fmt.Errorf("decode torznab error: %w", err)
	}

	switch code, _ := strconv.Atoi(terr.Code); {
	case code >= 100 && code <= 102:
		return fmt.Errorf("%w: %w", resilient.ErrAuthFailed, &terr)
	case code == 500:
		return fmt.Errorf("%w: %w", resilient.ErrRateLimited, &terr)
	default:
		return &resilient.ProviderError{Provider: Name, Status: code, Body: terr.Message}
	}
}

func validateResponse(resp *resilient.Response) error {
	return checkError(resp.Body)
}

func parseFeed(body []byte) ([]providers.ReleaseListing, error) {
	if err := checkError(body); err != nil {
		return nil, err
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode torznab feed: %w", err)
	}

	channel := stringutils.Intern(feed.Channel.Title)
	listings := make([]providers.ReleaseListing, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		listings = append(listings, item.toListing(channel))
	}
	return listings, nil
}

func (item rssItem) toListing(channel string) providers.ReleaseListing {
	l := providers.ReleaseListing{
		ID:      firstNonEmpty(item.GUID, item.Link, item.Enclosure.URL),
		Title:   strings.TrimSpace(item.Title),
		Indexer: stringutils.Intern(firstNonEmpty(item.JackettIndexer, item.ProwlarrIndexer, channel)),
	}

	if size, err := strconv.ParseInt(strings.TrimSpace(item.Size), 10, 64); err == nil {
		l.Size = size
	} else if size, err := strconv.ParseInt(item.Enclosure.Length, 10, 64); err == nil {
		l.Size = size
	}

	if item.PubDate != "" {
		if t, err := time.Parse(time.RFC1123Z, item.PubDate); err == nil {
			l.PublishedAt = t
		} else if t, err := time.Parse(time.RFC1123, item.PubDate); err == nil {
			l.PublishedAt = t
		}
	}

	var magnet string
	categories := make([]string, 0, len(item.Category))
	for _, c := range item.Category {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, stringutils.Intern(c))
		}
	}
	for _, attr := range item.Attrs {
		switch stringutils.InternNormalized(attr.Name) {
		case "seeders":
			if v, err := strconv.Atoi(attr.Value); err == nil {
				l.Seeders = v
			}
		case "peers":
			if v, err := strconv.Atoi(attr.Value); err == nil {
				l.Peers = v
			}
		case "size":
			if l.Size == 0 {
				if v, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
					l.Size = v
				}
			}
		case "magneturl":
			magnet = attr.Value
		case "category":
			categories = append(categories, stringutils.Intern(attr.Value))
		}
	}
	l.Categories = dedupe(categories)
	l.Locator = firstNonEmpty(magnet, item.Enclosure.URL, item.Link)
	return l
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
