package notification

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/openforge/forge-api/internal/repository"
)

// Feed is the syndication projection of the notification stream. It wraps the
// generic feed so the Atom rendering can attach each entry author's profile
// URI, which the generic item type has no field for.
type Feed struct {
	*feeds.Feed
	// authorURIs is parallel to Items; empty where the author is unknown.
	authorURIs []string
}

// WriteAtom renders the feed as Atom with author names and profile URIs.
func (f *Feed) WriteAtom(w io.Writer) error {
	atom := (&feeds.Atom{Feed: f.Feed}).AtomFeed()
	for i, entry := range atom.Entries {
		if i < len(f.authorURIs) && f.authorURIs[i] != "" && entry.Author != nil {
			entry.Author.Uri = f.authorURIs[i]
		}
	}
	return feeds.WriteXML(atom, w)
}

// Feed lists stored notifications as a syndication feed. Entries carry the
// notification's stable dedup id so aggregators do not re-surface items
// across polls.
func (s *Service) Feed(ctx context.Context, title string, q repository.FeedQuery) (*Feed, error) {
	notifs, err := s.notifications.ListForFeed(ctx, q)
	if err != nil {
		return nil, err
	}

	out := &Feed{
		Feed: &feeds.Feed{
			Title:   title,
			Link:    &feeds.Link{Href: s.baseURL},
			Created: time.Now().UTC(),
		},
	}

	for _, n := range notifs {
		item := &feeds.Item{
			Title:       n.Subject,
			Link:        &feeds.Link{Href: s.absoluteURL(n.Link)},
			Description: n.Text,
			Id:          n.UniqueID,
			Created:     n.PubDate,
		}
		authorURI := ""
		if n.AuthorID != "" {
			if author, err := s.users.GetUserByID(ctx, n.AuthorID); err == nil {
				item.Author = &feeds.Author{Name: author.DisplayName}
				authorURI = s.absoluteURL(author.URL())
			}
		}
		out.Items = append(out.Items, item)
		out.authorURIs = append(out.authorURIs, authorURI)
	}
	return out, nil
}

func (s *Service) absoluteURL(link string) string {
	if link == "" || strings.Contains(link, "://") {
		return link
	}
	return strings.TrimRight(s.baseURL, "/") + link
}
